package immortals

import (
	"time"

	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
)

// Options tunes a Manager. The zero value of any field means "use the
// default".
type Options struct {
	// TurnDelay is the pause between two turns of one immortal.
	TurnDelay time.Duration
	// ReapInterval is how often the reaper drains the dead queue.
	ReapInterval time.Duration
	// PauseTimeout bounds how long Pause waits for full quiescence.
	PauseTimeout time.Duration
	// ShutdownGrace bounds how long Stop waits for the workers.
	ShutdownGrace time.Duration
	// Logger receives lifecycle and progress messages.
	Logger logger.Logger

	afterFirstLock func(*Immortal)
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		TurnDelay:     10 * time.Millisecond,
		ReapInterval:  100 * time.Millisecond,
		PauseTimeout:  5 * time.Second,
		ShutdownGrace: 3 * time.Second,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithOptions replaces every non-zero field of the defaults with o's.
func WithOptions(o Options) Option {
	return func(dst *Options) {
		if o.TurnDelay > 0 {
			dst.TurnDelay = o.TurnDelay
		}
		if o.ReapInterval > 0 {
			dst.ReapInterval = o.ReapInterval
		}
		if o.PauseTimeout > 0 {
			dst.PauseTimeout = o.PauseTimeout
		}
		if o.ShutdownGrace > 0 {
			dst.ShutdownGrace = o.ShutdownGrace
		}
		if o.Logger != nil {
			dst.Logger = o.Logger
		}
	}
}

// withAfterFirstLock installs a hook that naive fights run while holding
// only the attacker's lock.
func withAfterFirstLock(fn func(*Immortal)) Option {
	return func(o *Options) { o.afterFirstLock = fn }
}

// WithLogger sets the manager's logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithTurnDelay sets the delay between turns.
func WithTurnDelay(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.TurnDelay = d
		}
	}
}

// WithReapInterval sets the reaper period.
func WithReapInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ReapInterval = d
		}
	}
}

// WithPauseTimeout sets the bound on waiting for quiescence.
func WithPauseTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PauseTimeout = d
		}
	}
}

// WithShutdownGrace sets the bound on waiting for workers in Stop.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ShutdownGrace = d
		}
	}
}
