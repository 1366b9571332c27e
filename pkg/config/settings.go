package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Krayangel/ARSW-LAB03/pkg/immortals"
)

// Keys shared by viper, the YAML files and the CLI override map.
const (
	KeyCount          = "count"
	KeyFightMode      = "fight_mode"
	KeyHealth         = "health"
	KeyDamage         = "damage"
	KeyDuration       = "duration"
	KeyReportInterval = "report_interval"
	KeyTurnDelay      = "turn_delay"
	KeyReapInterval   = "reap_interval"
	KeyPauseTimeout   = "pause_timeout"
	KeyShutdownGrace  = "shutdown_grace"
	KeyStopOnWinner   = "stop_on_winner"
)

// ErrInvalidSettings is wrapped by every Validate failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the parameters of one immortals run.
type Settings struct {
	Count          int           `yaml:"count" mapstructure:"count"`
	FightMode      string        `yaml:"fight_mode" mapstructure:"fight_mode"`
	Health         int           `yaml:"health" mapstructure:"health"`
	Damage         int           `yaml:"damage" mapstructure:"damage"`
	Duration       time.Duration `yaml:"duration" mapstructure:"duration"`
	ReportInterval time.Duration `yaml:"report_interval" mapstructure:"report_interval"`
	TurnDelay      time.Duration `yaml:"turn_delay,omitempty" mapstructure:"turn_delay"`
	ReapInterval   time.Duration `yaml:"reap_interval,omitempty" mapstructure:"reap_interval"`
	PauseTimeout   time.Duration `yaml:"pause_timeout,omitempty" mapstructure:"pause_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace,omitempty" mapstructure:"shutdown_grace"`
	// StopOnWinner ends the run at the first report that finds a single
	// immortal alive.
	StopOnWinner bool `yaml:"stop_on_winner" mapstructure:"stop_on_winner"`
}

// Default returns the stock settings.
func Default() *Settings {
	o := immortals.DefaultOptions()
	return &Settings{
		Count:          100,
		FightMode:      string(immortals.FightOrdered),
		Health:         immortals.DefaultHealth,
		Damage:         immortals.DefaultDamage,
		Duration:       10 * time.Second,
		ReportInterval: 2 * time.Second,
		TurnDelay:      o.TurnDelay,
		ReapInterval:   o.ReapInterval,
		PauseTimeout:   o.PauseTimeout,
		ShutdownGrace:  o.ShutdownGrace,
		StopOnWinner:   true,
	}
}

// Validate checks every field.
func (s *Settings) Validate() error {
	if s.Count <= 0 {
		return fmt.Errorf("%w: count must be > 0, got %d", ErrInvalidSettings, s.Count)
	}
	if s.Health <= 0 {
		return fmt.Errorf("%w: health must be > 0, got %d", ErrInvalidSettings, s.Health)
	}
	if s.Damage <= 0 {
		return fmt.Errorf("%w: damage must be > 0, got %d", ErrInvalidSettings, s.Damage)
	}
	if !strings.EqualFold(strings.TrimSpace(s.FightMode), string(s.Mode())) {
		return fmt.Errorf("%w: fight_mode must be one of %v, got %q", ErrInvalidSettings, immortals.FightModes, s.FightMode)
	}
	if s.Duration < 0 {
		return fmt.Errorf("%w: duration cannot be negative", ErrInvalidSettings)
	}
	if s.ReportInterval < 0 {
		return fmt.Errorf("%w: report_interval cannot be negative", ErrInvalidSettings)
	}
	for key, d := range map[string]time.Duration{
		KeyTurnDelay:     s.TurnDelay,
		KeyReapInterval:  s.ReapInterval,
		KeyPauseTimeout:  s.PauseTimeout,
		KeyShutdownGrace: s.ShutdownGrace,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s cannot be negative", ErrInvalidSettings, key)
		}
	}
	return nil
}

// Mode parses FightMode. Unknown values become ordered.
func (s *Settings) Mode() immortals.FightMode {
	return immortals.ParseFightMode(s.FightMode)
}

// ManagerOptions converts the tuning fields. Zero fields keep the manager
// defaults.
func (s *Settings) ManagerOptions() immortals.Options {
	return immortals.Options{
		TurnDelay:     s.TurnDelay,
		ReapInterval:  s.ReapInterval,
		PauseTimeout:  s.PauseTimeout,
		ShutdownGrace: s.ShutdownGrace,
	}
}

// Params flattens the settings into the parameter map simulations are
// configured with.
func (s *Settings) Params() map[string]interface{} {
	return map[string]interface{}{
		KeyCount:          s.Count,
		KeyFightMode:      s.FightMode,
		KeyHealth:         s.Health,
		KeyDamage:         s.Damage,
		KeyDuration:       s.Duration,
		KeyReportInterval: s.ReportInterval,
		KeyTurnDelay:      s.TurnDelay,
		KeyReapInterval:   s.ReapInterval,
		KeyPauseTimeout:   s.PauseTimeout,
		KeyShutdownGrace:  s.ShutdownGrace,
		KeyStopOnWinner:   s.StopOnWinner,
	}
}

// String renders the settings as YAML.
func (s *Settings) String() string {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%+v", *s)
	}
	return string(data)
}

// FromViper starts from Default and applies every key set in v, whether it
// came from a config file, an environment variable or a bound flag.
func FromViper(v *viper.Viper) *Settings {
	s := Default()
	if v == nil {
		return s
	}

	if v.IsSet(KeyCount) {
		s.Count = v.GetInt(KeyCount)
	}
	if v.IsSet(KeyFightMode) {
		s.FightMode = v.GetString(KeyFightMode)
	}
	if v.IsSet(KeyHealth) {
		s.Health = v.GetInt(KeyHealth)
	}
	if v.IsSet(KeyDamage) {
		s.Damage = v.GetInt(KeyDamage)
	}
	if v.IsSet(KeyDuration) {
		s.Duration = v.GetDuration(KeyDuration)
	}
	if v.IsSet(KeyReportInterval) {
		s.ReportInterval = v.GetDuration(KeyReportInterval)
	}
	if v.IsSet(KeyTurnDelay) {
		s.TurnDelay = v.GetDuration(KeyTurnDelay)
	}
	if v.IsSet(KeyReapInterval) {
		s.ReapInterval = v.GetDuration(KeyReapInterval)
	}
	if v.IsSet(KeyPauseTimeout) {
		s.PauseTimeout = v.GetDuration(KeyPauseTimeout)
	}
	if v.IsSet(KeyShutdownGrace) {
		s.ShutdownGrace = v.GetDuration(KeyShutdownGrace)
	}
	if v.IsSet(KeyStopOnWinner) {
		s.StopOnWinner = v.GetBool(KeyStopOnWinner)
	}
	return s
}

// MergeWithCLIOverrides applies parameter overrides to the settings. Values
// of the wrong type or out of range are ignored.
func MergeWithCLIOverrides(s *Settings, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case KeyCount:
			if n, ok := toInt(value); ok && n > 0 {
				s.Count = n
			}
		case KeyHealth:
			if n, ok := toInt(value); ok && n > 0 {
				s.Health = n
			}
		case KeyDamage:
			if n, ok := toInt(value); ok && n > 0 {
				s.Damage = n
			}
		case KeyFightMode:
			if mode, ok := value.(string); ok {
				for _, valid := range immortals.FightModes {
					if strings.EqualFold(strings.TrimSpace(mode), string(valid)) {
						s.FightMode = string(valid)
						break
					}
				}
			}
		case KeyDuration:
			if d, ok := toDuration(value); ok && d >= 0 {
				s.Duration = d
			}
		case KeyReportInterval:
			if d, ok := toDuration(value); ok && d >= 0 {
				s.ReportInterval = d
			}
		case KeyTurnDelay:
			if d, ok := toDuration(value); ok && d > 0 {
				s.TurnDelay = d
			}
		case KeyReapInterval:
			if d, ok := toDuration(value); ok && d > 0 {
				s.ReapInterval = d
			}
		case KeyPauseTimeout:
			if d, ok := toDuration(value); ok && d > 0 {
				s.PauseTimeout = d
			}
		case KeyShutdownGrace:
			if d, ok := toDuration(value); ok && d > 0 {
				s.ShutdownGrace = d
			}
		case KeyStopOnWinner:
			if b, ok := toBool(value); ok {
				s.StopOnWinner = b
			}
		}
	}
}

// LoadSettings reads settings from a YAML file. Missing keys keep their
// defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes s to path as YAML, creating the directory if needed.
func SaveSettings(s *Settings, path string) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}
	return nil
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

func toDuration(v interface{}) (time.Duration, bool) {
	switch val := v.(type) {
	case time.Duration:
		return val, true
	case string:
		d, err := time.ParseDuration(val)
		return d, err == nil
	case int:
		return time.Duration(val) * time.Second, true
	case float64:
		return time.Duration(val * float64(time.Second)), true
	default:
		return 0, false
	}
}

func toBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(val)
		return b, err == nil
	default:
		return false, false
	}
}
