package immortals

import "sync/atomic"

// ScoreBoard counts completed fights for one run.
type ScoreBoard struct {
	fights atomic.Int64
}

// RecordFight adds one completed fight.
func (s *ScoreBoard) RecordFight() {
	s.fights.Add(1)
}

// TotalFights returns the number of fights recorded so far.
func (s *ScoreBoard) TotalFights() int64 {
	return s.fights.Load()
}
