package immortals

import (
	"sync"
	"sync/atomic"
)

// Population is the arena of every immortal built for a run plus the view of
// those still alive. Readers get an immutable slice from Live; the only
// writers are construction (add) and the reaper (Remove), serialized by mu.
type Population struct {
	mu    sync.Mutex
	arena []*Immortal
	live  atomic.Pointer[[]*Immortal]
}

// NewPopulation returns an empty population sized for n members.
func NewPopulation(n int) *Population {
	p := &Population{arena: make([]*Immortal, 0, n)}
	empty := make([]*Immortal, 0)
	p.live.Store(&empty)
	return p
}

// add appends im to both the arena and the live view. Used while building.
func (p *Population) add(im *Immortal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.arena = append(p.arena, im)
	cur := *p.live.Load()
	next := make([]*Immortal, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, im)
	p.live.Store(&next)
}

// Live returns the current live members. The slice must not be modified.
func (p *Population) Live() []*Immortal {
	return *p.live.Load()
}

// Len returns the number of live members.
func (p *Population) Len() int {
	return len(p.Live())
}

// Remove drops im from the live view. It returns false when im is not a
// member, so each immortal is removed at most once.
func (p *Population) Remove(im *Immortal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := *p.live.Load()
	idx := -1
	for i, member := range cur {
		if member == im {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	next := make([]*Immortal, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	p.live.Store(&next)
	return true
}

// Get returns the immortal with the given id from the arena, alive or not.
func (p *Population) Get(id int) (*Immortal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id < 0 || id >= len(p.arena) {
		return nil, false
	}
	return p.arena[id], true
}

// All returns every immortal built for the run.
func (p *Population) All() []*Immortal {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Immortal, len(p.arena))
	copy(out, p.arena)
	return out
}

// Clear empties the live view. The arena is kept so late readers holding an
// id still resolve it.
func (p *Population) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	empty := make([]*Immortal, 0)
	p.live.Store(&empty)
}

// DeadQueue hands dying immortals to the reaper. Capacity equals the number
// of immortals and each one is offered at most once, so Offer never blocks.
type DeadQueue struct {
	ch chan *Immortal
}

// NewDeadQueue returns a queue able to hold n immortals.
func NewDeadQueue(n int) *DeadQueue {
	return &DeadQueue{ch: make(chan *Immortal, n)}
}

// Offer enqueues im unless it was already enqueued. It reports whether im
// was added.
func (q *DeadQueue) Offer(im *Immortal) bool {
	if !im.buried.CompareAndSwap(false, true) {
		return false
	}
	select {
	case q.ch <- im:
		return true
	default:
		// unreachable while capacity matches the arena size
		return false
	}
}

// Drain removes and returns everything currently queued without blocking.
func (q *DeadQueue) Drain() []*Immortal {
	var out []*Immortal
	for {
		select {
		case im := <-q.ch:
			out = append(out, im)
		default:
			return out
		}
	}
}

// Len returns the number of queued immortals.
func (q *DeadQueue) Len() int {
	return len(q.ch)
}
