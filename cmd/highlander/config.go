package highlander

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Krayangel/ARSW-LAB03/pkg/config"
)

// ValidateAndParse validates and parses raw parameters into settings.
// Parameters that are absent keep the values of base, or the defaults when
// base is nil.
func ValidateAndParse(params map[string]interface{}, base *config.Settings) (*config.Settings, error) {
	s := config.Default()
	if base != nil {
		copied := *base
		s = &copied
	}

	for _, key := range []string{config.KeyCount, config.KeyHealth, config.KeyDamage} {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		n, err := parseInt(key, v)
		if err != nil {
			return nil, err
		}
		switch key {
		case config.KeyCount:
			s.Count = n
		case config.KeyHealth:
			s.Health = n
		case config.KeyDamage:
			s.Damage = n
		}
	}

	if v, ok := params[config.KeyFightMode]; ok && v != nil {
		mode, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("fight_mode must be a string")
		}
		s.FightMode = mode
	}

	for _, key := range []string{
		config.KeyDuration, config.KeyReportInterval, config.KeyTurnDelay,
		config.KeyReapInterval, config.KeyPauseTimeout, config.KeyShutdownGrace,
	} {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		d, err := parseDuration(key, v)
		if err != nil {
			return nil, err
		}
		switch key {
		case config.KeyDuration:
			s.Duration = d
		case config.KeyReportInterval:
			s.ReportInterval = d
		case config.KeyTurnDelay:
			s.TurnDelay = d
		case config.KeyReapInterval:
			s.ReapInterval = d
		case config.KeyPauseTimeout:
			s.PauseTimeout = d
		case config.KeyShutdownGrace:
			s.ShutdownGrace = d
		}
	}

	if v, ok := params[config.KeyStopOnWinner]; ok && v != nil {
		b, err := parseBool(config.KeyStopOnWinner, v)
		if err != nil {
			return nil, err
		}
		s.StopOnWinner = b
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.FightMode = string(s.Mode())
	return s, nil
}

func parseInt(key string, v interface{}) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != float64(int(val)) {
			return 0, fmt.Errorf("%s must be a whole number", key)
		}
		return int(val), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

func parseBool(key string, v interface{}) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%s must be true or false", key)
	}
}

// parseDuration accepts Go duration strings and numbers of seconds.
func parseDuration(key string, v interface{}) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid %s format: %w", key, err)
		}
		return d, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("%s must be a duration", key)
	}
}
