package immortals

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Krayangel/ARSW-LAB03/pkg/concurrency"
	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
)

// opponentAttempts bounds the random picks made per turn.
const opponentAttempts = 5

// world is the state every immortal of a run shares.
type world struct {
	pop       *Population
	board     *ScoreBoard
	ctrl      *concurrency.PauseController
	dead      *DeadQueue
	mode      FightMode
	turnDelay time.Duration
	log       logger.Logger

	// afterFirstLock, when set, runs inside a naive fight between the two
	// acquisitions.
	afterFirstLock func(*Immortal)
}

// Immortal is one combatant. Its health is only read or written while its
// mu is held; a fight holds both participants' locks.
type Immortal struct {
	id     int
	name   string
	damage int

	mu     sync.Mutex
	health int

	running  atomic.Bool
	buried   atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	lastTurn atomic.Int64

	w *world
}

func newImmortal(id, health, damage int, w *world) *Immortal {
	im := &Immortal{
		id:     id,
		name:   fmt.Sprintf("Immortal-%04d", id),
		damage: damage,
		health: health,
		stopCh: make(chan struct{}),
		w:      w,
	}
	im.running.Store(true)
	im.lastTurn.Store(time.Now().UnixNano())
	return im
}

// ID returns the immortal's sequential id.
func (im *Immortal) ID() int { return im.id }

// Name returns the display name.
func (im *Immortal) Name() string { return im.name }

// Damage returns the damage dealt per fight.
func (im *Immortal) Damage() int { return im.damage }

// Health returns the current health under the immortal's lock.
func (im *Immortal) Health() int {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.health
}

// Alive reports whether the immortal is still running. A fight that drops
// health to zero stops the loser, so this never blocks on a lock.
func (im *Immortal) Alive() bool {
	return im.running.Load()
}

// LastTurn returns when the immortal last started a turn.
func (im *Immortal) LastTurn() time.Time {
	return time.Unix(0, im.lastTurn.Load())
}

// Stop ends the run loop and wakes the worker if it is sleeping or parked
// on the pause barrier.
func (im *Immortal) Stop() {
	im.running.Store(false)
	im.stopOnce.Do(func() { close(im.stopCh) })
}

// Run is the worker loop. Exactly one goroutine runs it per immortal.
func (im *Immortal) Run() {
	log := im.w.log.WithField("immortal", im.name)
	log.Debugf("started (id %d)", im.id)
	defer func() {
		im.w.ctrl.Deregister()
		log.Debug("finished")
	}()

	for im.running.Load() {
		if err := im.w.ctrl.AwaitIfPaused(im.stopCh); err != nil {
			return
		}
		if !im.running.Load() {
			return
		}
		im.lastTurn.Store(time.Now().UnixNano())

		if opponent := im.pickOpponent(); opponent != nil {
			im.fight(opponent)
		}

		if !im.yield() {
			return
		}
	}
}

// pickOpponent samples the live population a few times for someone else who
// is still alive. Returns nil to skip the turn.
func (im *Immortal) pickOpponent() *Immortal {
	live := im.w.pop.Live()
	if len(live) <= 1 {
		return nil
	}

	for attempt := 0; attempt < opponentAttempts && im.running.Load(); attempt++ {
		other := live[rand.IntN(len(live))]
		if other != im && other.Alive() {
			return other
		}
	}
	return nil
}

// yield sleeps between turns. Pause and stop both cut the sleep short; it
// returns false when the immortal was stopped.
func (im *Immortal) yield() bool {
	timer := time.NewTimer(im.w.turnDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-im.w.ctrl.PauseSignal():
		return true
	case <-im.stopCh:
		return false
	}
}
