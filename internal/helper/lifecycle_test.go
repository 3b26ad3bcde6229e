package helper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// refreshHelper asks for a recompute from inside its first compute.
type refreshHelper struct {
	Base
	computes int
}

func (r *refreshHelper) Compute(_ *Scope, _ Args) (any, error) {
	r.computes++
	if r.computes == 1 {
		r.Recompute()
	}
	return fmt.Sprint(r.computes), nil
}

// bumpHelper reads a cell and writes it back within one compute.
type bumpHelper struct {
	Base
	cell *tracking.Cell
}

func (b *bumpHelper) Compute(s *Scope, _ Args) (any, error) {
	v, _ := s.Read(b.cell).(int)
	s.Write(b.cell, v+1)
	return v, nil
}

func TestInstance_InitializeRunsOnce(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	arg := f.store.Cell("arg")
	arg.Set("a")
	site := NewCall("counter", ContextCall, Read(arg))

	assert.Equal(t, "a:1", f.run(t, site))
	assert.Equal(t, "a:1", f.run(t, site))
	arg.Set("b")
	assert.Equal(t, "b:2", f.run(t, site))

	h := f.engine.Instance(site)
	require.NotNil(t, h)
	h.Recompute()
	assert.Equal(t, "b:3", f.run(t, site))

	require.Len(t, f.created, 1)
	assert.Equal(t, 1, f.created[0].inits)
	assert.Equal(t, 3, f.created[0].computes)
	assert.Same(t, h, f.engine.Instance(site), "recompute keeps the instance")
	assert.Equal(t, []string{"init"}, f.log, "recompute never tears down")
}

func TestInstance_OwnerAndHandle(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	site := NewCall("counter", ContextCall, Const("x"))
	owner := &struct{ name string }{"page"}

	_, _, err := f.engine.Run(owner, site)
	require.NoError(t, err)

	c := f.created[0]
	assert.Same(t, owner, c.Owner())
	require.NotNil(t, c.Handle())
	assert.Same(t, site, c.Handle().Site())
	assert.Equal(t, "counter", c.Handle().Definition().Name())
	assert.NotEmpty(t, c.Handle().ID())
}

func TestInstance_RecomputeOutsidePassIsScheduled(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	scheduled := 0
	f.engine.OnSchedule(func() { scheduled++ })
	site := NewCall("counter", ContextCall, Const("x"))

	f.run(t, site)
	h := f.engine.Instance(site)
	gen := h.Generation()

	f.created[0].Recompute()
	f.created[0].Recompute()
	assert.Equal(t, 1, scheduled, "one notification per batch")
	assert.Equal(t, 1, f.engine.Scheduler().Pending())
	assert.Equal(t, gen, h.Generation(), "nothing changes until the next pass")

	assert.Equal(t, "x:2", f.run(t, site))
	assert.Equal(t, 0, f.engine.Scheduler().Pending())
	assert.Equal(t, "x:2", f.run(t, site))
}

func TestInstance_RecomputeInsidePass(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	scheduled := 0
	f.engine.OnSchedule(func() { scheduled++ })
	site := NewCall("counter", ContextCall, Const("x"))
	f.run(t, site)

	p, err := f.engine.Begin(nil)
	require.NoError(t, err)
	before, err := p.Evaluate(site)
	require.NoError(t, err)
	assert.Equal(t, "x:1", before)

	f.created[0].Recompute()
	after, err := p.Evaluate(site)
	require.NoError(t, err)
	res := p.End()

	assert.Equal(t, "x:1", before, "already produced values are untouched")
	assert.Equal(t, "x:2", after, "remaining work of the pass sees the recompute")
	assert.True(t, res.Rerender)
	assert.Equal(t, 1, scheduled)
}

func TestInstance_RecomputePropagatesToConsumer(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	site := NewCall("words", ContextCall, Const("value"), NewCall("counter", ContextSubexpression, Const("x")))

	assert.Equal(t, "value x:1", f.run(t, site))
	assert.Equal(t, "value x:1", f.run(t, site))

	f.created[0].Recompute()
	assert.Equal(t, "value x:2", f.run(t, site))
}

func TestInstance_RecomputeDuringComputeReachesConsumer(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.reg.MustRegister("refresh", Stateful(func() Helper { return &refreshHelper{} }))
	site := NewCall("words", ContextCall, Const("value"), NewCall("refresh", ContextSubexpression))

	v, res, err := f.engine.Run(nil, site)
	require.NoError(t, err)
	assert.Equal(t, "value 1", v)
	assert.True(t, res.Rerender)

	v, res, err = f.engine.Run(nil, site)
	require.NoError(t, err)
	assert.Equal(t, "value 2", v, "consumer observed the generation before the recompute")
	assert.False(t, res.Rerender)

	assert.Equal(t, "value 2", f.run(t, site))
}

func TestInstance_MissingBaseState(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.reg.MustRegister("clobber", Stateful(func() Helper { return &counterHelper{clobber: true} }))

	_, _, err := f.engine.Run(nil, NewCall("clobber", ContextCall, Const("x")))
	var target *MissingSuperInitError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "clobber", target.Name)
}

func TestInstance_InitializeError(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.reg.MustRegister("broken", Stateful(func() Helper { return &counterHelper{failInit: true} }))

	site := NewCall("broken", ContextCall, Const("x"))
	_, _, err := f.engine.Run(nil, site)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Nil(t, f.engine.Instance(site))
}

// =============================================================================
// Teardown
// =============================================================================

func TestTeardown_WillTeardownPrecedesTeardown(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	site := NewCall("counter", ContextCall, Const("only"))
	f.run(t, site)

	require.NoError(t, f.engine.Teardown(site))
	assert.Equal(t, []string{"init", "willTeardown:only", "teardown:only"}, f.log)
	assert.True(t, f.created[0].Handle().Destroyed())
	assert.Nil(t, f.engine.Instance(site))
	assert.True(t, site.Destroyed())
}

func TestTeardown_ChildrenBeforeParents(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	inner := NewCall("counter", ContextSubexpression, Const("inner"))
	middle := NewCall("counter", ContextSubexpression, Const("middle"), inner)
	outer := NewCall("counter", ContextCall, Const("outer"), middle)
	f.run(t, outer)

	f.log = nil
	require.NoError(t, f.engine.Teardown(outer))
	assert.Equal(t, []string{
		"willTeardown:inner", "teardown:inner",
		"willTeardown:middle", "teardown:middle",
		"willTeardown:outer", "teardown:outer",
	}, f.log)
	assert.True(t, inner.Destroyed())
}

func TestTeardown_DuplicateStrict(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	site := NewCall("counter", ContextCall, Const("x"))
	f.run(t, site)
	require.NoError(t, f.engine.Teardown(site))

	err := f.engine.Teardown(site)
	var target *LifecycleError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, []string{"init", "willTeardown:x", "teardown:x"}, f.log, "release hooks never run twice")
}

func TestTeardown_DuplicateRelaxed(t *testing.T) {
	opts := DefaultOptions()
	opts.StrictLifecycle = false
	f := newFixture(t, opts)
	site := NewCall("counter", ContextCall, Const("x"))
	f.run(t, site)

	require.NoError(t, f.engine.Teardown(site))
	require.NoError(t, f.engine.Teardown(site))
	assert.Equal(t, []string{"init", "willTeardown:x", "teardown:x"}, f.log)
}

func TestTeardown_NeverEvaluatedSite(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	site := NewCall("counter", ContextCall, Const("x"))

	require.NoError(t, f.engine.Teardown(site))
	assert.Empty(t, f.created)
	assert.True(t, site.Destroyed())
}

func TestTeardown_EvaluateAfterTeardownFails(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	site := NewCall("uppercase", ContextCall, Const("x"))
	f.run(t, site)
	require.NoError(t, f.engine.Teardown(site))

	_, _, err := f.engine.Run(nil, site)
	assert.ErrorIs(t, err, ErrLifecycle)
}

func TestTeardown_DropsScheduledRecompute(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	site := NewCall("counter", ContextCall, Const("x"))
	f.run(t, site)

	f.created[0].Recompute()
	require.Equal(t, 1, f.engine.Scheduler().Pending())

	require.NoError(t, f.engine.Teardown(site))
	assert.Equal(t, 0, f.engine.Scheduler().Pending())

	f.created[0].Recompute()
	assert.Equal(t, 0, f.engine.Scheduler().Pending(), "recompute on a dead instance is dropped")

	p, err := f.engine.Begin(nil)
	require.NoError(t, err)
	p.End()
	assert.Equal(t, 1, f.created[0].computes)
}

func TestTeardown_ToggledBranchGetsFreshInstance(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	first := NewCall("counter", ContextCall, Const("x"))
	f.run(t, first)
	require.NoError(t, f.engine.Teardown(first))

	second := NewCall("counter", ContextCall, Const("x"))
	assert.Equal(t, "x:1", f.run(t, second), "prior instance state is never reused")
	require.Len(t, f.created, 2)
	assert.NotSame(t, f.created[0], f.created[1])
}

type failingTeardown struct {
	Base
}

func (failingTeardown) Compute(*Scope, Args) (any, error) { return "ok", nil }

func (failingTeardown) Teardown(*Handle) error { return errors.New("release failed") }

func TestTeardown_CollectsErrorsAndContinues(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.reg.MustRegister("failing", Stateful(func() Helper { return &failingTeardown{} }))

	child := NewCall("failing", ContextSubexpression)
	parent := NewCall("counter", ContextCall, Const("parent"), child)
	f.run(t, parent)

	err := f.engine.Teardown(parent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release failed")
	assert.Contains(t, f.log, "teardown:parent", "parent still torn down")
}

func TestTeardown_InvokeSwitchingDefinitionReplacesInstance(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.reg.MustRegister("other", Stateful(func() Helper {
		c := &counterHelper{log: &f.log}
		f.created = append(f.created, c)
		return c
	}))
	which := f.store.Cell("which")
	which.Set("counter")
	invoke := NewInvoke(Dynamic(Read(which)), Const("x"))

	assert.Equal(t, "x:1", f.run(t, invoke))
	assert.Equal(t, "x:1", f.run(t, invoke))
	require.Len(t, f.created, 1)

	which.Set("other")
	assert.Equal(t, "x:1", f.run(t, invoke))
	require.Len(t, f.created, 2)
	assert.Equal(t, []string{"init", "willTeardown:x", "teardown:x", "init"}, f.log)
}

func TestTeardown_InvokeSwitchingToFunctionalReleasesInstance(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	which := f.store.Cell("which")
	which.Set("counter")
	invoke := NewInvoke(Dynamic(Read(which)), Const("x"))

	assert.Equal(t, "x:1", f.run(t, invoke))
	require.NotNil(t, f.engine.Instance(invoke))

	which.Set("yes")
	assert.Equal(t, "yes", f.run(t, invoke))
	assert.Nil(t, f.engine.Instance(invoke))
	assert.Equal(t, []string{"init", "willTeardown:x", "teardown:x"}, f.log)

	assert.Equal(t, "yes", f.run(t, invoke))
	assert.Equal(t, "yes", f.run(t, invoke))
	assert.Equal(t, 1, f.calls["yes"], "functional result is cached once the instance is gone")
}

// =============================================================================
// Standalone construction
// =============================================================================

func TestBuild_Standalone(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	s, err := f.engine.Build("counter", "owner")
	require.NoError(t, err)

	require.Len(t, f.created, 1)
	assert.Equal(t, 1, f.created[0].inits, "initialize precedes the first compute")
	assert.Equal(t, 0, f.created[0].computes)
	assert.Nil(t, s.Handle().Site())
	assert.Equal(t, "owner", s.Handle().Owner())

	v, err := s.Compute([]any{"y"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "y:1", v)

	require.NoError(t, s.Destroy())
	assert.Equal(t, []string{"init", "willTeardown:y", "teardown:y"}, f.log)

	assert.ErrorIs(t, s.Destroy(), ErrLifecycle)
	_, err = s.Compute(nil, nil)
	assert.ErrorIs(t, err, ErrLifecycle)
}

func TestBuild_StandaloneSelfWrite(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	count := f.store.Cell("count")
	count.Set(1)
	f.reg.MustRegister("bump", Stateful(func() Helper { return &bumpHelper{cell: count} }))

	s, err := f.engine.Build("bump", nil)
	require.NoError(t, err)
	v, err := s.Compute(nil, nil)
	require.NoError(t, err, "diagnostic does not fail outside strict mode")
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, count.Peek())
}

func TestBuild_StandaloneSelfWriteStrict(t *testing.T) {
	opts := DefaultOptions()
	opts.StrictTracking = true
	f := newFixture(t, opts)
	count := f.store.Cell("count")
	count.Set(1)
	f.reg.MustRegister("bump", Stateful(func() Helper { return &bumpHelper{cell: count} }))

	s, err := f.engine.Build("bump", nil)
	require.NoError(t, err)
	_, err = s.Compute(nil, nil)
	require.ErrorIs(t, err, ErrTracking)

	var target *TrackingError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "count", target.Cell)
	assert.Equal(t, "bump", target.Name)
	assert.Equal(t, "standalone#"+s.Handle().ID(), target.Site)
}

func TestBuild_RejectsFunctional(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.engine.Build("uppercase", nil)
	assert.ErrorIs(t, err, ErrNotStateful)

	_, err = f.engine.Build("if", nil)
	assert.ErrorIs(t, err, ErrBuiltinOverride)
}
