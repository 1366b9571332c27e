package immortals

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T, n int) (*world, []*Immortal) {
	t.Helper()
	w := newTestWorld(FightOrdered, n)
	all := make([]*Immortal, 0, n)
	for id := 0; id < n; id++ {
		im := newImmortal(id, 100, 10, w)
		w.pop.add(im)
		all = append(all, im)
	}
	return w, all
}

func TestPopulation_RemoveIsExactlyOnce(t *testing.T) {
	w, all := populate(t, 16)

	var removed sync.Map
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, im := range all {
				if w.pop.Remove(im) {
					_, dup := removed.LoadOrStore(im.ID(), true)
					assert.False(t, dup, "%s removed twice", im.Name())
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, w.pop.Len())
	count := 0
	removed.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, 16, count)
}

func TestPopulation_LiveIsStableSnapshot(t *testing.T) {
	w, all := populate(t, 3)

	before := w.pop.Live()
	require.True(t, w.pop.Remove(all[1]))

	assert.Len(t, before, 3, "a slice handed out earlier must not change")
	after := w.pop.Live()
	require.Len(t, after, 2)
	assert.Same(t, all[0], after[0])
	assert.Same(t, all[2], after[1])
}

func TestPopulation_GetAndAll(t *testing.T) {
	w, all := populate(t, 4)

	w.pop.Remove(all[2])
	got, ok := w.pop.Get(2)
	require.True(t, ok, "the arena keeps removed members")
	assert.Same(t, all[2], got)

	_, ok = w.pop.Get(4)
	assert.False(t, ok)
	_, ok = w.pop.Get(-1)
	assert.False(t, ok)

	assert.Len(t, w.pop.All(), 4)

	w.pop.Clear()
	assert.Equal(t, 0, w.pop.Len())
	assert.Len(t, w.pop.All(), 4)
}

func TestDeadQueue_OfferOncePerImmortal(t *testing.T) {
	w, all := populate(t, 8)

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, im := range all {
				w.dead.Offer(im)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, w.dead.Len())
	drained := w.dead.Drain()
	assert.Len(t, drained, 8)
	assert.Equal(t, 0, w.dead.Len())
	assert.Empty(t, w.dead.Drain())

	assert.False(t, w.dead.Offer(all[0]))
	assert.Equal(t, 0, w.dead.Len())
}

func TestScoreBoard_ConcurrentFights(t *testing.T) {
	var board ScoreBoard

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				board.RecordFight()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), board.TotalFights())
}

func TestParseFightMode(t *testing.T) {
	tests := []struct {
		in   string
		want FightMode
	}{
		{in: "ordered", want: FightOrdered},
		{in: "naive", want: FightNaive},
		{in: "trylock", want: FightTryLock},
		{in: "  TryLock ", want: FightTryLock},
		{in: "NAIVE", want: FightNaive},
		{in: "", want: FightOrdered},
		{in: "optimistic", want: FightOrdered},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseFightMode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}

	assert.False(t, FightMode("optimistic").Valid())
	assert.Equal(t, "trylock", FightTryLock.String())
}
