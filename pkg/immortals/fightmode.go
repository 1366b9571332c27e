package immortals

import "strings"

// FightMode selects the locking discipline used for a fight.
type FightMode string

const (
	// FightOrdered acquires the lower id's lock first. Deadlock-free.
	FightOrdered FightMode = "ordered"
	// FightNaive acquires the attacker's lock, then the opponent's.
	// Two agents attacking each other at the same time deadlock.
	FightNaive FightMode = "naive"
	// FightTryLock never blocks on a lock; it skips the turn instead.
	FightTryLock FightMode = "trylock"
)

// FightModes lists every supported mode, default first.
var FightModes = []FightMode{FightOrdered, FightNaive, FightTryLock}

// ParseFightMode maps s to a FightMode. Unknown values fall back to
// FightOrdered.
func ParseFightMode(s string) FightMode {
	switch FightMode(strings.ToLower(strings.TrimSpace(s))) {
	case FightNaive:
		return FightNaive
	case FightTryLock:
		return FightTryLock
	default:
		return FightOrdered
	}
}

// Valid reports whether m is one of the known modes.
func (m FightMode) Valid() bool {
	switch m {
	case FightOrdered, FightNaive, FightTryLock:
		return true
	}
	return false
}

func (m FightMode) String() string {
	return string(m)
}
