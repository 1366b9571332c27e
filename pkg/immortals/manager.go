package immortals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Krayangel/ARSW-LAB03/pkg/concurrency"
	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
)

// Defaults used by NewDefaultManager.
const (
	DefaultHealth = 100
	DefaultDamage = 10
)

// ErrInvalidConfig is wrapped by every constructor validation error.
var ErrInvalidConfig = errors.New("invalid immortals configuration")

// PauseStatus reports how far a pause got.
type PauseStatus struct {
	Suspended int
	Total     int
	Quiesced  bool
}

// AgentView is a copy of one immortal's observable state.
type AgentView struct {
	ID     int
	Name   string
	Health int
}

// StalledAgent is a running immortal that has not started a turn recently.
type StalledAgent struct {
	ID    int
	Name  string
	Since time.Duration
}

// Stats summarizes a finished run.
type Stats struct {
	RunID            string
	Mode             FightMode
	Duration         time.Duration
	TotalFights      int64
	DeadRemoved      int64
	Survivors        int
	AbandonedWorkers int
}

// Manager owns one run: the population, the worker goroutines, the reaper
// and the shared pause controller and scoreboard.
type Manager struct {
	count         int
	initialHealth int
	damage        int
	mode          FightMode
	opts          Options
	log           logger.Logger

	pop   *Population
	dead  *DeadQueue
	ctrl  *concurrency.PauseController
	board *ScoreBoard

	running     atomic.Bool
	active      atomic.Int32
	deadRemoved atomic.Int64

	// reapMu serializes the reaper with the reap run by Pause.
	reapMu sync.Mutex

	// mu guards the fields below.
	mu        sync.Mutex
	stopped   bool
	runID     string
	startTime time.Time
	elapsed   time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	last      Stats
}

// NewManager builds count immortals with the given health and damage. All
// three must be positive. An unknown mode falls back to FightOrdered.
func NewManager(count int, mode FightMode, initialHealth, damage int, opts ...Option) (*Manager, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be > 0, got %d", ErrInvalidConfig, count)
	}
	if initialHealth <= 0 {
		return nil, fmt.Errorf("%w: health must be > 0, got %d", ErrInvalidConfig, initialHealth)
	}
	if damage <= 0 {
		return nil, fmt.Errorf("%w: damage must be > 0, got %d", ErrInvalidConfig, damage)
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logger.WithPrefix("manager")
	}

	mode = ParseFightMode(string(mode))

	m := &Manager{
		count:         count,
		initialHealth: initialHealth,
		damage:        damage,
		mode:          mode,
		opts:          o,
		log:           o.Logger,
		pop:           NewPopulation(count),
		dead:          NewDeadQueue(count),
		ctrl:          concurrency.NewPauseController(),
		board:         &ScoreBoard{},
	}

	w := &world{
		pop:       m.pop,
		board:     m.board,
		ctrl:      m.ctrl,
		dead:      m.dead,
		mode:      mode,
		turnDelay: o.TurnDelay,
		log:       o.Logger,

		afterFirstLock: o.afterFirstLock,
	}
	for id := 0; id < count; id++ {
		m.pop.add(newImmortal(id, initialHealth, damage, w))
	}
	m.ctrl.Configure(count)

	m.log.Infof("created %d immortals | health %d | damage %d | mode %s", count, initialHealth, damage, mode)
	m.log.Infof("expected total health: %d", m.ExpectedTotalHealth())
	return m, nil
}

// NewDefaultManager builds count immortals with DefaultHealth and
// DefaultDamage.
func NewDefaultManager(count int, mode FightMode, opts ...Option) (*Manager, error) {
	return NewManager(count, mode, DefaultHealth, DefaultDamage, opts...)
}

// Start launches one goroutine per immortal and the reaper. Calling it on a
// running manager does nothing; a stopped manager cannot be restarted.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		m.log.Info("already running")
		return
	}
	if m.stopped {
		m.log.Warn("cannot restart a stopped simulation")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	m.runID = uuid.NewString()
	m.startTime = time.Now()
	m.ctx = gctx
	m.cancel = cancel
	m.group = group
	m.running.Store(true)

	group.Go(func() error {
		m.runReaper(gctx)
		return nil
	})

	live := m.pop.Live()
	for _, im := range live {
		m.active.Add(1)
		group.Go(func() error {
			defer m.active.Add(-1)
			im.Run()
			return nil
		})
	}

	m.log.WithField("run", m.runID).Infof("%s started %d immortals", logger.IconSword, len(live))
}

// Pause suspends every immortal and waits, up to the pause timeout, for all
// of them to park. It then runs one reap cycle so a following snapshot does
// not include the already dead. Pausing while paused returns at once.
func (m *Manager) Pause() PauseStatus {
	if !m.running.Load() {
		m.log.Warn("cannot pause: simulation is not running")
		return PauseStatus{}
	}
	if !m.ctrl.Pause() {
		return m.pauseStatus()
	}

	m.log.Infof("%s pausing %d immortals", logger.IconPause, m.ctrl.Total())

	last := -1
	quiesced := m.ctrl.WaitForAllQuiesced(m.runContext(), m.opts.PauseTimeout, func(suspended, total int) {
		if suspended != last {
			last = suspended
			m.log.Debugf("waiting... %d/%d suspended", suspended, total)
		}
	})

	status := m.pauseStatus()
	status.Quiesced = quiesced
	if quiesced {
		m.log.Infof("all paused (%d/%d)", status.Suspended, status.Total)
	} else {
		m.log.Warnf("timeout: only %d/%d immortals paused", status.Suspended, status.Total)
	}

	m.reap()
	return status
}

func (m *Manager) pauseStatus() PauseStatus {
	return PauseStatus{
		Suspended: m.ctrl.Suspended(),
		Total:     m.ctrl.Total(),
		Quiesced:  m.ctrl.Paused() && m.ctrl.Quiesced(),
	}
}

// Resume releases a pause. It reports whether anything was paused.
func (m *Manager) Resume() bool {
	if !m.running.Load() {
		m.log.Warn("cannot resume: simulation is not running")
		return false
	}
	if !m.ctrl.Resume() {
		return false
	}
	m.log.Infof("%s resumed", logger.IconResume)
	return true
}

// PopulationSnapshot returns the immortals alive right now. It pauses first
// when not already paused; the snapshot is only exact while quiesced.
func (m *Manager) PopulationSnapshot() []AgentView {
	if !m.ctrl.Paused() {
		m.log.Info("snapshot requested while running, pausing first")
		m.Pause()
	}

	live := m.pop.Live()
	out := make([]AgentView, 0, len(live))
	for _, im := range live {
		if im.Alive() {
			out = append(out, AgentView{ID: im.ID(), Name: im.Name(), Health: im.Health()})
		}
	}

	m.log.Infof("snapshot taken with %d living immortals", len(out))
	return out
}

// Stop ends the run: every immortal is stopped, the barrier is forced open
// and the workers get the shutdown grace period to exit. Workers still
// blocked after that (only possible under the naive protocol) are
// abandoned. Calling Stop again returns the first call's stats. A manager
// stopped before Start is emptied and can no longer be started.
func (m *Manager) Stop() Stats {
	if !m.running.CompareAndSwap(true, false) {
		return m.stopIdle()
	}

	m.log.Info("stopping simulation")

	for _, im := range m.pop.All() {
		im.Stop()
	}
	m.ctrl.ForceResume()

	m.mu.Lock()
	cancel, group, start, runID := m.cancel, m.group, m.startTime, m.runID
	m.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	abandoned := 0
	timer := time.NewTimer(m.opts.ShutdownGrace)
	select {
	case <-done:
		timer.Stop()
	case <-timer.C:
		abandoned = int(m.active.Load())
		m.log.Errorf("timeout waiting for workers, abandoning %d blocked immortals", abandoned)
	}

	survivors := 0
	for _, im := range m.pop.Live() {
		if !im.buried.Load() {
			survivors++
		}
	}
	m.dead.Drain()
	m.pop.Clear()

	stats := Stats{
		RunID:            runID,
		Mode:             m.mode,
		Duration:         time.Since(start),
		TotalFights:      m.board.TotalFights(),
		DeadRemoved:      m.deadRemoved.Load(),
		Survivors:        survivors,
		AbandonedWorkers: abandoned,
	}

	m.mu.Lock()
	m.stopped = true
	m.elapsed = stats.Duration
	m.last = stats
	m.mu.Unlock()

	m.log.Infof("final statistics | duration %s | fights %d | reaped %d | mode %s",
		stats.Duration.Round(time.Millisecond), stats.TotalFights, stats.DeadRemoved, stats.Mode)
	return stats
}

// stopIdle handles Stop on a manager that is not running: never started,
// already stopped or being stopped by another caller.
func (m *Manager) stopIdle() Stats {
	m.mu.Lock()
	if m.running.Load() {
		// Start won the race for mu.
		m.mu.Unlock()
		return m.Stop()
	}
	defer m.mu.Unlock()

	if m.stopped || m.group != nil {
		m.log.Debug("already stopped")
		return m.last
	}

	for _, im := range m.pop.All() {
		im.Stop()
	}
	m.dead.Drain()
	m.pop.Clear()
	m.stopped = true
	m.last = Stats{Mode: m.mode}

	m.log.Info("stopped before start")
	return m.last
}

// Close stops the manager so it can be used as an io.Closer.
func (m *Manager) Close() error {
	m.Stop()
	return nil
}

func (m *Manager) runContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// runReaper drains the dead queue every reap interval until ctx is done.
func (m *Manager) runReaper(ctx context.Context) {
	ticker := time.NewTicker(m.opts.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("reaper finished")
			return
		case <-ticker.C:
			m.reap()
		}
	}
}

// reap removes every queued dead immortal from the live population and
// returns how many were removed.
func (m *Manager) reap() int {
	m.reapMu.Lock()
	defer m.reapMu.Unlock()

	removed := 0
	var names []string
	for _, im := range m.dead.Drain() {
		if !m.pop.Remove(im) {
			continue
		}
		removed++
		if len(names) < 3 {
			names = append(names, im.Name())
		}
	}
	if removed == 0 {
		return 0
	}

	m.deadRemoved.Add(int64(removed))
	for _, name := range names {
		m.log.Debugf("%s removed %s", logger.IconSkull, name)
	}
	if removed > len(names) {
		m.log.Debugf("...and %d more", removed-len(names))
	}
	m.log.Infof("reaped %d immortals, population %d", removed, m.pop.Len())
	return removed
}

// TotalHealth sums the health of the live population.
func (m *Manager) TotalHealth() int64 {
	var sum int64
	for _, im := range m.pop.Live() {
		sum += int64(im.Health())
	}
	return sum
}

// ExpectedTotalHealth is count times initial health.
func (m *Manager) ExpectedTotalHealth() int64 {
	return int64(m.count) * int64(m.initialHealth)
}

// CheckInvariant compares TotalHealth with ExpectedTotalHealth. Each fight
// leaks damage - damage/2 health, so this only holds before the first one.
func (m *Manager) CheckInvariant() bool {
	expected, actual := m.ExpectedTotalHealth(), m.TotalHealth()
	ok := expected == actual

	icon := logger.IconSuccess
	if !ok {
		icon = logger.IconError
	}
	m.log.Infof("invariant | expected %d | actual %d | %s", expected, actual, icon)
	return ok
}

// AliveCount counts live members that are still running.
func (m *Manager) AliveCount() int {
	n := 0
	for _, im := range m.pop.Live() {
		if im.Alive() {
			n++
		}
	}
	return n
}

// StalledAgents lists running immortals whose last turn began more than
// threshold ago. Nothing is reported while paused.
func (m *Manager) StalledAgents(threshold time.Duration) []StalledAgent {
	if !m.running.Load() || m.ctrl.Paused() {
		return nil
	}

	now := time.Now()
	var out []StalledAgent
	for _, im := range m.pop.Live() {
		if !im.Alive() {
			continue
		}
		if since := now.Sub(im.LastTurn()); since > threshold {
			out = append(out, StalledAgent{ID: im.ID(), Name: im.Name(), Since: since})
		}
	}
	return out
}

// Elapsed is the run time so far, or the total run time once stopped.
func (m *Manager) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return time.Since(m.startTime)
	}
	return m.elapsed
}

// PopulationSize is the number of live members, dead-but-unreaped included.
func (m *Manager) PopulationSize() int { return m.pop.Len() }

// TotalFights is the number of completed fights.
func (m *Manager) TotalFights() int64 { return m.board.TotalFights() }

// DeadRemovedCount is how many immortals the reaper removed.
func (m *Manager) DeadRemovedCount() int64 { return m.deadRemoved.Load() }

// ActiveWorkers is how many immortal goroutines have not returned yet.
func (m *Manager) ActiveWorkers() int { return int(m.active.Load()) }

// IsRunning reports whether Start was called and Stop was not.
func (m *Manager) IsRunning() bool { return m.running.Load() }

// Controller exposes the pause controller for progress display.
func (m *Manager) Controller() *concurrency.PauseController { return m.ctrl }

// ScoreBoard exposes the fight counter.
func (m *Manager) ScoreBoard() *ScoreBoard { return m.board }

// Mode is the fight protocol in use.
func (m *Manager) Mode() FightMode { return m.mode }

// Count is the number of immortals the run started with.
func (m *Manager) Count() int { return m.count }

// RunID identifies the current or last run. Empty before Start.
func (m *Manager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}
