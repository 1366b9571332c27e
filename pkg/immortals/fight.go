package immortals

import "time"

const (
	// tryLockAttempts bounds how often the trylock protocol retries before
	// giving up on the turn.
	tryLockAttempts = 3
	// tryLockBackoff is multiplied by the attempt number between retries.
	tryLockBackoff = time.Millisecond
)

// fight runs one fight against other using the configured protocol and
// reports whether a fight body completed.
func (im *Immortal) fight(other *Immortal) bool {
	if other == nil || other == im {
		return false
	}

	switch im.w.mode {
	case FightNaive:
		return im.fightNaive(other)
	case FightTryLock:
		return im.fightTryLock(other)
	default:
		return im.fightOrdered(other)
	}
}

// fightNaive locks in call order. Two immortals attacking each other at
// the same moment each hold their own lock and wait forever for the other.
func (im *Immortal) fightNaive(other *Immortal) bool {
	im.mu.Lock()
	defer im.mu.Unlock()

	if hook := im.w.afterFirstLock; hook != nil {
		hook(im)
	}

	other.mu.Lock()
	defer other.mu.Unlock()

	return im.strike(other)
}

// fightOrdered locks the lower id first, so every pair is locked in the
// same global order.
func (im *Immortal) fightOrdered(other *Immortal) bool {
	first, second := lockOrder(im, other)

	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	return im.strike(other)
}

// fightTryLock takes both locks without blocking, in id order. When it
// cannot hold both it lets go of whatever it took, backs off and retries;
// after tryLockAttempts failures the turn is skipped.
func (im *Immortal) fightTryLock(other *Immortal) bool {
	first, second := lockOrder(im, other)

	for attempt := 1; attempt <= tryLockAttempts; attempt++ {
		if first.mu.TryLock() {
			if second.mu.TryLock() {
				fought := im.strike(other)
				second.mu.Unlock()
				first.mu.Unlock()
				return fought
			}
			first.mu.Unlock()
		}

		if attempt == tryLockAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * tryLockBackoff):
		case <-im.stopCh:
			return false
		}
	}

	im.w.log.Debugf("%s skipped a turn: %s was busy", im.name, other.name)
	return false
}

func lockOrder(a, b *Immortal) (first, second *Immortal) {
	if a.id < b.id {
		return a, b
	}
	return b, a
}

// strike is the fight body. Both locks must be held. Health may have changed
// since the opponent was picked, so both participants are checked again.
func (im *Immortal) strike(other *Immortal) bool {
	if im.health <= 0 || other.health <= 0 {
		return false
	}

	other.health -= im.damage
	im.health += im.damage / 2

	if other.health <= 0 {
		im.w.dead.Offer(other)
		other.Stop()
	}
	if im.health <= 0 {
		im.w.dead.Offer(im)
		im.Stop()
	}

	im.w.board.RecordFight()
	return true
}
