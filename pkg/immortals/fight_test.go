package immortals

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krayangel/ARSW-LAB03/pkg/concurrency"
	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
)

func newTestWorld(mode FightMode, n int) *world {
	ctrl := concurrency.NewPauseController()
	ctrl.Configure(n)
	return &world{
		pop:       NewPopulation(n),
		board:     &ScoreBoard{},
		ctrl:      ctrl,
		dead:      NewDeadQueue(n),
		mode:      mode,
		turnDelay: time.Millisecond,
		log:       logger.Discard(),
	}
}

func newPair(mode FightMode, health, damage int) (*world, *Immortal, *Immortal) {
	w := newTestWorld(mode, 2)
	a := newImmortal(0, health, damage, w)
	b := newImmortal(1, health, damage, w)
	w.pop.add(a)
	w.pop.add(b)
	return w, a, b
}

func TestStrike_AppliesDamageAndHalfHeal(t *testing.T) {
	tests := []struct {
		name   string
		damage int
		leak   int
	}{
		{name: "even damage", damage: 10, leak: 5},
		{name: "odd damage", damage: 7, leak: 4},
		{name: "damage one", damage: 1, leak: 1},
	}

	for _, mode := range FightModes {
		for _, tt := range tests {
			t.Run(string(mode)+"/"+tt.name, func(t *testing.T) {
				w, a, b := newPair(mode, 100, tt.damage)

				require.True(t, a.fight(b))

				assert.Equal(t, 100+tt.damage/2, a.Health())
				assert.Equal(t, 100-tt.damage, b.Health())
				assert.Equal(t, int64(200-tt.leak), int64(a.Health()+b.Health()))
				assert.Equal(t, int64(1), w.board.TotalFights())
			})
		}
	}
}

func TestStrike_KillsOpponentOnce(t *testing.T) {
	w, a, b := newPair(FightOrdered, 10, 10)

	require.True(t, a.fight(b))
	assert.Equal(t, 0, b.Health())
	assert.False(t, b.Alive())
	assert.True(t, a.Alive())

	assert.False(t, a.fight(b), "fighting a dead opponent must abort")
	assert.Equal(t, int64(1), w.board.TotalFights())

	dead := w.dead.Drain()
	require.Len(t, dead, 1)
	assert.Same(t, b, dead[0])
	assert.False(t, w.dead.Offer(b), "an immortal is queued at most once")
}

func TestFight_SelfIsRejected(t *testing.T) {
	w, a, _ := newPair(FightNaive, 100, 10)

	assert.False(t, a.fight(a))
	assert.Equal(t, int64(0), w.board.TotalFights())
}

func TestFightTryLock_SkipsTurnWhenBusy(t *testing.T) {
	w, a, b := newPair(FightTryLock, 100, 10)

	b.mu.Lock()
	fought := a.fight(b)
	b.mu.Unlock()

	assert.False(t, fought)
	assert.Equal(t, 100, a.Health())
	assert.Equal(t, 100, b.Health())
	assert.Equal(t, int64(0), w.board.TotalFights())

	require.True(t, a.mu.TryLock(), "attacker lock must be released after giving up")
	a.mu.Unlock()
}

func TestFightTryLock_StopAbortsBackoff(t *testing.T) {
	_, a, b := newPair(FightTryLock, 100, 10)

	a.mu.Lock()
	defer a.mu.Unlock()
	b.Stop()

	start := time.Now()
	assert.False(t, b.fight(a))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestFightOrdered_MutualTargetingNeverDeadlocks(t *testing.T) {
	const rounds = 2000
	w, a, b := newPair(FightOrdered, 1_000_000, 10)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			a.fight(b)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			b.fight(a)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ordered fights between the same pair deadlocked")
	}

	assert.Equal(t, int64(2*rounds), w.board.TotalFights())
	assert.Equal(t, 2_000_000-2*rounds*5, a.Health()+b.Health())
}

// Both workers are held until each owns its own lock, then each reaches for
// the other's. The two goroutines stay blocked for the rest of the test
// binary.
func TestFightNaive_MutualTargetingDeadlocks(t *testing.T) {
	w, a, b := newPair(FightNaive, 100, 10)

	var holding sync.WaitGroup
	holding.Add(2)
	w.afterFirstLock = func(*Immortal) {
		holding.Done()
		holding.Wait()
	}

	finished := make(chan struct{}, 2)
	go func() {
		a.fight(b)
		finished <- struct{}{}
	}()
	go func() {
		b.fight(a)
		finished <- struct{}{}
	}()

	select {
	case <-finished:
		t.Fatal("naive mutual fight completed; expected both workers to block")
	case <-time.After(300 * time.Millisecond):
	}

	assert.Equal(t, int64(0), w.board.TotalFights())
	assert.False(t, a.mu.TryLock(), "a's lock should be held by its own worker")
	assert.False(t, b.mu.TryLock(), "b's lock should be held by its own worker")
}

func TestPickOpponent(t *testing.T) {
	t.Run("alone", func(t *testing.T) {
		w := newTestWorld(FightOrdered, 1)
		a := newImmortal(0, 100, 10, w)
		w.pop.add(a)
		assert.Nil(t, a.pickOpponent())
	})

	t.Run("only other is dead", func(t *testing.T) {
		_, a, b := newPair(FightOrdered, 100, 10)
		b.Stop()
		assert.Nil(t, a.pickOpponent())
	})

	t.Run("never self", func(t *testing.T) {
		w := newTestWorld(FightOrdered, 3)
		var all []*Immortal
		for id := 0; id < 3; id++ {
			im := newImmortal(id, 100, 10, w)
			w.pop.add(im)
			all = append(all, im)
		}
		for i := 0; i < 200; i++ {
			if got := all[0].pickOpponent(); got != nil {
				assert.NotSame(t, all[0], got)
			}
		}
	})
}

func TestImmortal_StopWakesYield(t *testing.T) {
	w, a, _ := newPair(FightOrdered, 100, 10)
	w.turnDelay = time.Hour

	done := make(chan bool, 1)
	go func() { done <- a.yield() }()

	a.Stop()
	select {
	case slept := <-done:
		assert.False(t, slept)
	case <-time.After(time.Second):
		t.Fatal("stop did not interrupt the yield")
	}
}

func TestImmortal_PauseWakesYield(t *testing.T) {
	w, a, _ := newPair(FightOrdered, 100, 10)
	w.turnDelay = time.Hour

	done := make(chan bool, 1)
	go func() { done <- a.yield() }()

	w.ctrl.Pause()
	defer w.ctrl.ForceResume()

	select {
	case slept := <-done:
		assert.True(t, slept)
	case <-time.After(time.Second):
		t.Fatal("pause did not interrupt the yield")
	}
}

func TestImmortal_RunExitsAndDeregisters(t *testing.T) {
	w, a, b := newPair(FightOrdered, 1_000, 10)

	var wg sync.WaitGroup
	for _, im := range []*Immortal{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			im.Run()
		}()
	}

	assert.Eventually(t, func() bool { return w.board.TotalFights() > 0 }, time.Second, time.Millisecond)

	a.Stop()
	b.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after stop")
	}
	assert.Equal(t, 0, w.ctrl.Total())
}
