package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/dago-render-helpers/internal/helper"
	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

func newEngine(t *testing.T) *helper.Engine {
	t.Helper()
	reg := helper.NewRegistry()
	require.NoError(t, helper.RegisterDefaults(reg))
	return helper.NewEngine(reg, helper.DefaultOptions(), nil)
}

func TestRouter_FirstMatchWins(t *testing.T) {
	store := tracking.NewStore()
	r := NewRouter(nil, store, nil)
	route, err := r.Route(&Config{
		Rules: []Rule{
			{Condition: "priority == 'high'", Target: "uppercase"},
			{Condition: "quiet", Target: "lowercase"},
		},
		Fallback: "trim",
	})
	require.NoError(t, err)

	engine := newEngine(t)
	run := func() any {
		v, _, err := engine.Run(nil, route)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "trim", run())

	store.Apply(map[string]any{"quiet": true})
	assert.Equal(t, "lowercase", run())

	store.Apply(map[string]any{"priority": "high"})
	assert.Equal(t, "uppercase", run())
}

func TestRouter_LaterRulesAreNotRead(t *testing.T) {
	store := tracking.NewStore()
	store.Apply(map[string]any{"first": true})

	route, err := NewRouter(nil, store, nil).Route(&Config{
		Rules: []Rule{
			{Condition: "first", Target: "a"},
			{Condition: "second", Target: "b"},
		},
		Fallback: "c",
	})
	require.NoError(t, err)

	engine := newEngine(t)
	p, err := engine.Begin(nil)
	require.NoError(t, err)
	s := p.Scope()
	v, err := s.Eval(route)
	require.NoError(t, err)
	p.End()

	assert.Equal(t, "a", v)
	assert.Equal(t, []string{"first"}, s.Frame().Close().Names())
}

func TestRouter_SkipsNonBooleanRules(t *testing.T) {
	store := tracking.NewStore()
	store.Apply(map[string]any{"n": 3})

	route, err := NewRouter(nil, store, nil).Route(&Config{
		Rules:    []Rule{{Condition: "n + 1", Target: "a"}},
		Fallback: "fallback",
	})
	require.NoError(t, err)

	v, _, err := newEngine(t).Run(nil, route)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestRouter_DrivesDynamicInvocation(t *testing.T) {
	store := tracking.NewStore()
	route, err := NewRouter(nil, store, nil).Route(&Config{
		Rules:    []Rule{{Condition: "loud == true", Target: "uppercase"}},
		Fallback: "lowercase",
	})
	require.NoError(t, err)

	engine := newEngine(t)
	site := helper.NewInvoke(helper.Dynamic(route), helper.Const("Mixed"))

	v, _, err := engine.Run(nil, site)
	require.NoError(t, err)
	assert.Equal(t, "mixed", v)

	store.Apply(map[string]any{"loud": true})
	v, _, err = engine.Run(nil, site)
	require.NoError(t, err)
	assert.Equal(t, "MIXED", v)
}

func TestRouter_ValidateConfig(t *testing.T) {
	r := NewRouter(nil, tracking.NewStore(), nil)

	tests := []struct {
		name   string
		config *Config
	}{
		{"nil", nil},
		{"no fallback", &Config{}},
		{"empty condition", &Config{Rules: []Rule{{Target: "a"}}, Fallback: "f"}},
		{"empty target", &Config{Rules: []Rule{{Condition: "a"}}, Fallback: "f"}},
		{"bad cel", &Config{Rules: []Rule{{Condition: "a >", Target: "a"}}, Fallback: "f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Route(tt.config)
			assert.Error(t, err)
		})
	}

	route, err := r.Route(&Config{Fallback: "f"})
	require.NoError(t, err)
	assert.Equal(t, "f", route.Config().Fallback)
}
