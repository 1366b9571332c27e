package highlander

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Krayangel/ARSW-LAB03/pkg/config"
	"github.com/Krayangel/ARSW-LAB03/pkg/immortals"
	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
	"github.com/Krayangel/ARSW-LAB03/pkg/reporting"
	"github.com/Krayangel/ARSW-LAB03/pkg/simulation"
)

// Name is the registry key of the simulation.
const Name = "highlander"

// Menu actions of the interactive mode.
const (
	ActionStatus    = "Status"
	ActionSnapshot  = "Pause & snapshot"
	ActionResume    = "Resume"
	ActionInvariant = "Check invariant"
	ActionStop      = "Stop"
)

// minStallThreshold is the lowest heartbeat age reported as a stall.
const minStallThreshold = time.Second

//go:embed simulation.yaml
var descriptorYAML []byte

var descriptor = mustParseDescriptor()

func mustParseDescriptor() simulation.SimulationConfig {
	cfg, err := simulation.ParseConfig(descriptorYAML)
	if err != nil {
		panic(fmt.Sprintf("highlander: bad embedded descriptor: %v", err))
	}
	return cfg
}

// Simulation runs one population of immortals and reports on it.
type Simulation struct {
	settings *config.Settings
	out      io.Writer
	log      logger.Logger

	mu       sync.Mutex
	mgr      *immortals.Manager
	reporter *reporting.Reporter
	stats    immortals.Stats
	finished bool

	looping    atomic.Bool
	finishOnce sync.Once
	stopOnce   sync.Once
	stopCh     chan struct{}
}

// NewHighlanderSimulation creates a new instance of the simulation
func NewHighlanderSimulation() simulation.Simulation {
	return New()
}

// New returns an unconfigured simulation writing to logger.Output.
func New() *Simulation {
	return &Simulation{
		out:    logger.Output,
		log:    logger.WithPrefix(Name),
		stopCh: make(chan struct{}),
	}
}

// Name returns the simulation name
func (s *Simulation) Name() string { return Name }

// Description returns the simulation description
func (s *Simulation) Description() string { return descriptor.Description }

// Descriptor returns the embedded simulation.yaml.
func (s *Simulation) Descriptor() simulation.SimulationConfig { return descriptor }

// SetOutput redirects snapshot tables and the summary. Call before Run.
func (s *Simulation) SetOutput(w io.Writer) { s.out = w }

// SetLogger replaces the logger. Call before Run.
func (s *Simulation) SetLogger(l logger.Logger) { s.log = l }

// Configure sets up the simulation with provided parameters
func (s *Simulation) Configure(params map[string]interface{}) error {
	settings, err := ValidateAndParse(params, s.settings)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	s.settings = settings
	return nil
}

// ConfigureSettings uses settings as they are, after validation.
func (s *Simulation) ConfigureSettings(settings *config.Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	copied := *settings
	s.settings = &copied
	return nil
}

// Settings returns the active settings, nil before Configure.
func (s *Simulation) Settings() *config.Settings { return s.settings }

// Manager returns the running manager, nil before Start.
func (s *Simulation) Manager() *immortals.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr
}

// Stats returns the final statistics once the run ended.
func (s *Simulation) Stats() (immortals.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, s.finished
}

// Start builds the population and launches it without blocking.
func (s *Simulation) Start(_ context.Context) error {
	if s.settings == nil {
		return fmt.Errorf("simulation is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != nil {
		return fmt.Errorf("simulation already started")
	}

	mgr, err := immortals.NewManager(s.settings.Count, s.settings.Mode(), s.settings.Health, s.settings.Damage,
		immortals.WithOptions(s.settings.ManagerOptions()),
		immortals.WithLogger(s.log.WithPrefix("manager")),
	)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	s.mgr = mgr
	s.reporter = reporting.NewReporter(Name, s.settings.Health, s.out)
	mgr.Start()
	return nil
}

// Run executes the simulation: every report interval it pauses, snapshots
// and resumes, until the duration elapses, Stop is called or ctx ends.
func (s *Simulation) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	s.looping.Store(true)
	defer s.finish()

	s.log.Infof("running %d immortals in %s mode for %s", s.settings.Count, s.settings.Mode(), durationLabel(s.settings.Duration))

	var tick <-chan time.Time
	if s.settings.ReportInterval > 0 {
		ticker := time.NewTicker(s.settings.ReportInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var timeout <-chan time.Time
	if s.settings.Duration > 0 {
		timer := time.NewTimer(s.settings.Duration)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("context cancelled, stopping")
			return nil
		case <-s.stopCh:
			s.log.Info("simulation stopped by user")
			return nil
		case <-timeout:
			s.log.Infof("simulation completed after %s", s.settings.Duration)
			return nil
		case <-tick:
			s.report(true)
			if s.settings.StopOnWinner && s.lastStanding() {
				s.log.Infof("%s only one immortal remains", logger.IconSword)
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the simulation. Run returns on its own; a
// simulation driven through Do is finished here.
func (s *Simulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if !s.looping.Load() {
		s.finish()
	}
	return nil
}

// Actions lists the interactive menu.
func (s *Simulation) Actions() []string {
	return []string{ActionStatus, ActionSnapshot, ActionResume, ActionInvariant, ActionStop}
}

// Do performs one menu action.
func (s *Simulation) Do(_ context.Context, action string) (bool, error) {
	mgr := s.Manager()
	if mgr == nil {
		return false, fmt.Errorf("simulation is not started")
	}

	switch action {
	case ActionStatus:
		s.printStatus()
	case ActionSnapshot:
		s.report(false)
	case ActionResume:
		if !mgr.Resume() {
			s.log.Info("not paused")
		}
	case ActionInvariant:
		s.checkInvariant()
	case ActionStop:
		s.finish()
		return true, nil
	default:
		return false, fmt.Errorf("unknown action %q", action)
	}
	return false, nil
}

// WriteReport exports the run to path. Valid once the run ended.
func (s *Simulation) WriteReport(path string) error {
	s.mu.Lock()
	reporter, stats, finished := s.reporter, s.stats, s.finished
	s.mu.Unlock()

	if !finished || reporter == nil {
		return fmt.Errorf("simulation has not finished")
	}
	return reporter.WriteReport(path, *s.settings, stats)
}

// report pauses the run, records a snapshot and optionally resumes. While
// immortals are stalled nothing is paused, since their locks may be held
// forever.
func (s *Simulation) report(resume bool) {
	mgr := s.Manager()

	if stalled := mgr.StalledAgents(s.stallThreshold()); len(stalled) > 0 {
		s.reporter.PrintStalled(stalled)
		s.reporter.RecordSnapshot(reporting.Snapshot{
			Elapsed:       mgr.Elapsed(),
			Alive:         mgr.AliveCount(),
			ExpectedTotal: mgr.ExpectedTotalHealth(),
			Fights:        mgr.TotalFights(),
			Reaped:        mgr.DeadRemovedCount(),
			Stalled:       len(stalled),
		})
		return
	}

	status := mgr.Pause()
	snap := reporting.Snapshot{
		Elapsed:       mgr.Elapsed(),
		Quiesced:      status.Quiesced,
		ExpectedTotal: mgr.ExpectedTotalHealth(),
		Fights:        mgr.TotalFights(),
		Reaped:        mgr.DeadRemovedCount(),
	}

	if status.Quiesced {
		snap.Agents = mgr.PopulationSnapshot()
		snap.Alive = len(snap.Agents)
		for _, a := range snap.Agents {
			snap.TotalHealth += int64(a.Health)
		}
		s.reporter.RecordSnapshot(snap)
		s.reporter.PrintInvariant(snap.ExpectedTotal, snap.TotalHealth)
	} else {
		snap.Alive = mgr.AliveCount()
		s.reporter.RecordSnapshot(snap)
	}

	if resume {
		mgr.Resume()
	}
}

func (s *Simulation) checkInvariant() {
	mgr := s.Manager()
	if stalled := mgr.StalledAgents(s.stallThreshold()); len(stalled) > 0 {
		s.reporter.PrintStalled(stalled)
		return
	}

	wasPaused := mgr.Controller().Paused()
	if !mgr.Pause().Quiesced {
		s.log.Warn("could not quiesce, invariant not checked")
	} else {
		s.reporter.PrintInvariant(mgr.ExpectedTotalHealth(), mgr.TotalHealth())
	}
	if !wasPaused {
		mgr.Resume()
	}
}

func (s *Simulation) printStatus() {
	mgr := s.Manager()
	ctrl := mgr.Controller()

	logger.FprintKeyValue(s.out, "Run", mgr.RunID())
	logger.FprintKeyValue(s.out, "Elapsed", mgr.Elapsed().Round(time.Millisecond))
	logger.FprintKeyValue(s.out, "Mode", mgr.Mode())
	logger.FprintKeyValue(s.out, "Alive", fmt.Sprintf("%d/%d", mgr.AliveCount(), mgr.Count()))
	logger.FprintKeyValue(s.out, "Fights", mgr.TotalFights())
	logger.FprintKeyValue(s.out, "Reaped", mgr.DeadRemovedCount())
	logger.FprintKeyValue(s.out, "Paused", fmt.Sprintf("%t (%d/%d suspended)", ctrl.Paused(), ctrl.Suspended(), ctrl.Total()))
	s.reporter.PrintStalled(mgr.StalledAgents(s.stallThreshold()))
}

func (s *Simulation) lastStanding() bool {
	mgr := s.Manager()
	return mgr.Count() > 1 && mgr.AliveCount() <= 1
}

func (s *Simulation) stallThreshold() time.Duration {
	t := 50 * s.settings.TurnDelay
	if t < minStallThreshold {
		t = minStallThreshold
	}
	return t
}

// finish stops the manager once and prints the summary.
func (s *Simulation) finish() {
	mgr := s.Manager()
	if mgr == nil {
		return
	}

	s.finishOnce.Do(func() {
		stats := mgr.Stop()

		s.mu.Lock()
		s.stats = stats
		s.finished = true
		reporter := s.reporter
		s.mu.Unlock()

		reporter.PrintSummary(stats)
		if stats.AbandonedWorkers > 0 {
			s.log.Errorf("%s %d immortals were deadlocked and abandoned", logger.IconSkull, stats.AbandonedWorkers)
		}
	})
}

func durationLabel(d time.Duration) string {
	if d <= 0 {
		return "ever"
	}
	return d.String()
}

func init() {
	if err := simulation.DefaultRegistry.Register(Name, NewHighlanderSimulation); err != nil {
		logger.Errorf("Failed to register simulation: %v", err)
	}
}
