package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSimulation struct{ name string }

func (s *stubSimulation) Name() string                           { return s.name }
func (s *stubSimulation) Description() string                    { return "stub" }
func (s *stubSimulation) Configure(map[string]interface{}) error { return nil }
func (s *stubSimulation) Run(context.Context) error              { return nil }
func (s *stubSimulation) Stop() error                            { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("zeta", func() Simulation { return &stubSimulation{name: "zeta"} }))
	require.NoError(t, r.Register("alpha", func() Simulation { return &stubSimulation{name: "alpha"} }))

	assert.Error(t, r.Register("alpha", func() Simulation { return &stubSimulation{} }))
	assert.Error(t, r.Register("", func() Simulation { return &stubSimulation{} }))
	assert.Error(t, r.Register("nil-factory", nil))

	assert.Equal(t, []string{"alpha", "zeta"}, r.List())

	first, err := r.Get("alpha")
	require.NoError(t, err)
	second, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", first.Name())
	assert.NotSame(t, first, second, "each Get builds a fresh instance")

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
name: highlander
description: test
version: 1.0.0
category: concurrency
parameters:
  - name: fight_mode
    type: string
    default: ordered
    options: [ordered, naive, trylock]
  - name: count
    type: integer
    default: 100
    min: 1
`)

	cfg, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "highlander", cfg.Name)
	require.Len(t, cfg.Parameters, 2)

	mode, ok := cfg.Parameter("fight_mode")
	require.True(t, ok)
	assert.Equal(t, []string{"ordered", "naive", "trylock"}, mode.Options)

	count, ok := cfg.Parameter("count")
	require.True(t, ok)
	assert.Equal(t, 100, count.Default)

	_, ok = cfg.Parameter("missing")
	assert.False(t, ok)

	_, err = ParseConfig([]byte("description: nameless"))
	assert.Error(t, err)
	_, err = ParseConfig([]byte("name: [unterminated"))
	assert.Error(t, err)
}
