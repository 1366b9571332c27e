package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Krayangel/ARSW-LAB03/pkg/config"
	"github.com/Krayangel/ARSW-LAB03/pkg/immortals"
	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
)

// DefaultTableRows caps how many immortals a snapshot table prints.
const DefaultTableRows = 15

var (
	colorHealthy  = color.New(color.FgGreen)
	colorWounded  = color.New(color.FgYellow)
	colorCritical = color.New(color.FgRed)
	colorOK       = color.New(color.FgGreen, color.Bold)
	colorBroken   = color.New(color.FgRed, color.Bold)
	colorMuted    = color.New(color.FgHiBlack)
)

// Snapshot is one paused observation of a run.
type Snapshot struct {
	Elapsed       time.Duration `yaml:"elapsed"`
	Quiesced      bool          `yaml:"quiesced"`
	Alive         int           `yaml:"alive"`
	TotalHealth   int64         `yaml:"total_health"`
	ExpectedTotal int64         `yaml:"expected_total"`
	Fights        int64         `yaml:"fights"`
	Reaped        int64         `yaml:"reaped"`
	Stalled       int           `yaml:"stalled,omitempty"`

	Agents []immortals.AgentView `yaml:"-"`
}

// Leak is how much health the fights have cost so far.
func (s Snapshot) Leak() int64 {
	return s.ExpectedTotal - s.TotalHealth
}

// Report is the YAML document written at the end of a run.
type Report struct {
	ID          string            `yaml:"id"`
	RunID       string            `yaml:"run_id"`
	Simulation  string            `yaml:"simulation"`
	GeneratedAt time.Time         `yaml:"generated_at"`
	Settings    config.Settings   `yaml:"settings"`
	Summary     Summary           `yaml:"summary"`
	Snapshots   []Snapshot        `yaml:"snapshots"`
	Survivors   []SurvivorSummary `yaml:"survivors,omitempty"`
}

// Summary is the final statistics block of a report.
type Summary struct {
	Mode             string        `yaml:"mode"`
	Duration         time.Duration `yaml:"duration"`
	TotalFights      int64         `yaml:"total_fights"`
	DeadRemoved      int64         `yaml:"dead_removed"`
	Survivors        int           `yaml:"survivors"`
	AbandonedWorkers int           `yaml:"abandoned_workers"`
}

// SurvivorSummary is one entry of the last snapshot.
type SurvivorSummary struct {
	Name   string `yaml:"name"`
	Health int    `yaml:"health"`
}

// Reporter prints snapshots and summaries for one run and keeps them for
// the final report.
type Reporter struct {
	id            string
	simulation    string
	initialHealth int
	out           io.Writer
	log           logger.Logger
	rows          int

	mu        sync.Mutex
	snapshots []Snapshot
	last      []immortals.AgentView
}

// NewReporter creates a reporter writing tables to out. initialHealth sets
// the color brackets of the health column.
func NewReporter(simulation string, initialHealth int, out io.Writer) *Reporter {
	if out == nil {
		out = logger.Output
	}
	return &Reporter{
		id:            uuid.NewString(),
		simulation:    simulation,
		initialHealth: initialHealth,
		out:           out,
		log:           logger.WithPrefix("report"),
		rows:          DefaultTableRows,
	}
}

// ID identifies the report.
func (r *Reporter) ID() string { return r.id }

// SetRows changes how many immortals a snapshot table prints. Zero or less
// prints all of them.
func (r *Reporter) SetRows(n int) { r.rows = n }

// Snapshots returns a copy of the recorded snapshots.
func (r *Reporter) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snapshots))
	copy(out, r.snapshots)
	return out
}

// RecordSnapshot stores s and prints it.
func (r *Reporter) RecordSnapshot(s Snapshot) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	if s.Agents != nil {
		r.last = append(r.last[:0], s.Agents...)
	}
	r.mu.Unlock()

	r.PrintSnapshot(s)
}

// PrintSnapshot renders s as a header line plus the healthiest immortals.
func (r *Reporter) PrintSnapshot(s Snapshot) {
	state := colorOK.Sprint("quiesced")
	if !s.Quiesced {
		state = colorBroken.Sprint("partial")
	}
	_, _ = fmt.Fprintf(r.out, "%s t=%s | %s | alive %d | fights %d | reaped %d | health %d/%d (leak %d)\n",
		logger.IconPause, s.Elapsed.Round(time.Millisecond), state, s.Alive, s.Fights, s.Reaped,
		s.TotalHealth, s.ExpectedTotal, s.Leak())

	if len(s.Agents) == 0 {
		return
	}

	agents := make([]immortals.AgentView, len(s.Agents))
	copy(agents, s.Agents)
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].Health != agents[j].Health {
			return agents[i].Health > agents[j].Health
		}
		return agents[i].ID < agents[j].ID
	})

	limit := len(agents)
	if r.rows > 0 && limit > r.rows {
		limit = r.rows
	}

	table := logger.NewTable("ID", "NAME", "HEALTH")
	for _, a := range agents[:limit] {
		table.AddColoredRow(r.healthColor(a.Health), fmt.Sprint(a.ID), a.Name, fmt.Sprint(a.Health))
	}
	table.Fprint(r.out)

	if hidden := len(agents) - limit; hidden > 0 {
		_, _ = colorMuted.Fprintf(r.out, "... and %d more\n", hidden)
	}
}

func (r *Reporter) healthColor(h int) *color.Color {
	switch {
	case h >= r.initialHealth:
		return colorHealthy
	case h*4 >= r.initialHealth:
		return colorWounded
	default:
		return colorCritical
	}
}

// PrintInvariant prints the health check line.
func (r *Reporter) PrintInvariant(expected, actual int64) {
	if expected == actual {
		_, _ = fmt.Fprintf(r.out, "%s invariant holds: %d\n", logger.IconSuccess, actual)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s invariant broken: expected %d, actual %d (lost %d)\n",
		logger.IconError, expected, actual, expected-actual)
}

// PrintStalled warns about immortals that stopped taking turns.
func (r *Reporter) PrintStalled(stalled []immortals.StalledAgent) {
	if len(stalled) == 0 {
		return
	}
	r.log.Warnf("%s %d immortals have not taken a turn recently, possible deadlock", logger.IconWarning, len(stalled))
	for i, s := range stalled {
		if i == 3 {
			r.log.Warnf("...and %d more", len(stalled)-i)
			break
		}
		r.log.Warnf("  %s stalled for %s", s.Name, s.Since.Round(time.Millisecond))
	}
}

// PrintSummary prints the final statistics.
func (r *Reporter) PrintSummary(stats immortals.Stats) {
	logger.FprintSection(r.out, "Final statistics")
	logger.FprintKeyValue(r.out, "Run", stats.RunID)
	logger.FprintKeyValue(r.out, "Mode", stats.Mode)
	logger.FprintKeyValue(r.out, "Duration", stats.Duration.Round(time.Millisecond))
	logger.FprintKeyValue(r.out, "Total fights", stats.TotalFights)
	logger.FprintKeyValue(r.out, "Dead removed", stats.DeadRemoved)
	logger.FprintKeyValue(r.out, "Survivors", stats.Survivors)
	if stats.AbandonedWorkers > 0 {
		logger.FprintKeyValue(r.out, "Abandoned workers", colorBroken.Sprint(stats.AbandonedWorkers))
	}
}

// BuildReport assembles the report document.
func (r *Reporter) BuildReport(settings config.Settings, stats immortals.Stats) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := Report{
		ID:          r.id,
		RunID:       stats.RunID,
		Simulation:  r.simulation,
		GeneratedAt: time.Now().UTC(),
		Settings:    settings,
		Summary: Summary{
			Mode:             string(stats.Mode),
			Duration:         stats.Duration,
			TotalFights:      stats.TotalFights,
			DeadRemoved:      stats.DeadRemoved,
			Survivors:        stats.Survivors,
			AbandonedWorkers: stats.AbandonedWorkers,
		},
		Snapshots: make([]Snapshot, len(r.snapshots)),
	}
	copy(report.Snapshots, r.snapshots)
	for _, a := range r.last {
		report.Survivors = append(report.Survivors, SurvivorSummary{Name: a.Name, Health: a.Health})
	}
	return report
}

// WriteReport writes the report as YAML to path.
func (r *Reporter) WriteReport(path string, settings config.Settings, stats immortals.Stats) error {
	data, err := yaml.Marshal(r.BuildReport(settings, stats))
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	r.log.Infof("report %s written to %s", r.id, path)
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}
