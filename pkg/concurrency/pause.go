// Package concurrency holds the synchronization primitives shared by the
// simulation workers.
package concurrency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by AwaitIfPaused when the caller's stop channel
// closed while it was suspended.
var ErrStopped = errors.New("worker stopped while paused")

// PauseController is a reusable quiescence barrier. Workers call
// AwaitIfPaused between units of work; an orchestrator calls Pause, waits
// for every registered worker to be suspended and later calls Resume.
//
// Every field below is guarded by mu. Wake-ups are delivered by closing
// channels rather than by a condition variable so that a suspended worker
// can also select on its own stop channel.
type PauseController struct {
	mu        sync.Mutex
	total     int
	suspended int
	paused    bool

	// pauseCh is closed while paused; workers sleeping between turns
	// select on it to reach the suspension point promptly.
	pauseCh chan struct{}
	// resumeCh is closed while running; suspended workers block on it.
	resumeCh chan struct{}
	// changed is closed and replaced whenever suspended or total moves.
	changed chan struct{}
}

// NewPauseController returns a controller in the running state.
func NewPauseController() *PauseController {
	resumed := make(chan struct{})
	close(resumed)
	return &PauseController{
		pauseCh:  make(chan struct{}),
		resumeCh: resumed,
		changed:  make(chan struct{}),
	}
}

// Configure declares how many workers will call AwaitIfPaused and resets the
// suspended count. It must run before any worker starts.
func (c *PauseController) Configure(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total = total
	c.suspended = 0
	c.notifyLocked()
}

// Deregister removes a permanently exiting worker from the expected total,
// so a pause in progress can still reach full quiescence.
func (c *PauseController) Deregister() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.total > 0 {
		c.total--
	}
	c.notifyLocked()
}

// Pause asks every worker to suspend at its next suspension point. It
// reports whether this call changed the state; pausing twice is a no-op.
func (c *PauseController) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return false
	}
	c.paused = true
	c.resumeCh = make(chan struct{})
	close(c.pauseCh)
	return true
}

// Resume wakes every suspended worker. It reports whether this call changed
// the state; resuming while running is a no-op.
func (c *PauseController) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return false
	}
	c.resumeLocked()
	return true
}

// ForceResume clears the paused state no matter what it was. Shutdown uses
// it so that no worker stays parked on the barrier.
func (c *PauseController) ForceResume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		c.resumeLocked()
	}
}

func (c *PauseController) resumeLocked() {
	c.paused = false
	c.pauseCh = make(chan struct{})
	close(c.resumeCh)
}

// notifyLocked wakes anyone blocked in WaitForAllQuiesced.
func (c *PauseController) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// AwaitIfPaused is the suspension point. It returns nil immediately when
// not paused. Otherwise it counts the caller as suspended and blocks until
// Resume (returns nil) or until stop closes (returns ErrStopped). A worker
// woken by a Resume that was already followed by another Pause stays
// suspended and keeps counting toward quiescence.
func (c *PauseController) AwaitIfPaused(stop <-chan struct{}) error {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return nil
	}
	c.suspended++
	resumed := c.resumeCh
	c.notifyLocked()
	c.mu.Unlock()

	var err error
	for {
		select {
		case <-resumed:
		case <-stop:
			err = ErrStopped
		}

		c.mu.Lock()
		if err == nil && c.paused {
			resumed = c.resumeCh
			c.mu.Unlock()
			continue
		}
		c.suspended--
		c.notifyLocked()
		c.mu.Unlock()
		return err
	}
}

// PauseSignal returns a channel that is closed while the controller is
// paused. A fresh channel is handed out after every resume.
func (c *PauseController) PauseSignal() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseCh
}

// WaitForAllQuiesced blocks until every registered worker is suspended, the
// timeout elapses or ctx is done. onProgress, when not nil, is called with
// the current counts each time they change. It reports whether full
// quiescence was reached.
func (c *PauseController) WaitForAllQuiesced(ctx context.Context, timeout time.Duration, onProgress func(suspended, total int)) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		suspended, total := c.suspended, c.total
		changed := c.changed
		c.mu.Unlock()

		if suspended >= total {
			return true
		}
		if onProgress != nil {
			onProgress(suspended, total)
		}

		select {
		case <-changed:
		case <-timer.C:
			return c.Quiesced()
		case <-ctx.Done():
			return c.Quiesced()
		}
	}
}

// Quiesced reports whether every registered worker is currently suspended.
func (c *PauseController) Quiesced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended >= c.total
}

// Paused reports whether a pause is in effect.
func (c *PauseController) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Suspended returns how many workers are parked in AwaitIfPaused.
func (c *PauseController) Suspended() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// Total returns how many workers are expected to suspend.
func (c *PauseController) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
