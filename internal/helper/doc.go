// Package helper implements template helper invocation and incremental
// recomputation.
//
// A helper is registered under a name either as a pure function
// (Functional) or as a constructible type with a lifecycle (Stateful). The
// host's compiled template hands the engine call-sites; the engine resolves
// them, binds stateful instances one per call-site, caches computed values
// against the tracked state they read, and tears instances down when their
// call-site is removed.
//
// Example usage:
//
//	reg := helper.NewRegistry()
//	_ = helper.RegisterDefaults(reg)
//	engine := helper.NewEngine(reg, helper.DefaultOptions(), logger)
//
//	store := tracking.NewStore()
//	name := store.Cell("name")
//	name.Set("tom")
//
//	site := helper.NewCall("uppercase", helper.ContextCall, helper.Read(name))
//	v, _, err := engine.Run(nil, site) // "TOM", computed
//	v, _, err = engine.Run(nil, site)  // "TOM", cached
//	name.Set("ann")
//	v, _, err = engine.Run(nil, site)  // "ANN", recomputed
//
//	err = engine.Teardown(site)
//
// Stateful helpers embed Base and implement Helper:
//
//	type Clock struct {
//	    helper.Base
//	    ticks int
//	}
//
//	func (c *Clock) Compute(s *helper.Scope, args helper.Args) (any, error) {
//	    return c.ticks, nil
//	}
//
//	func (c *Clock) Tick() { c.ticks++; c.Recompute() }
//
//	reg.MustRegister("clock", helper.Stateful(func() helper.Helper { return &Clock{} }))
//
// Evaluation is demand driven: arguments are evaluated when Compute reads
// them, and If evaluates only its selected branch. Curried references
// (NewCurry, Dynamic) are ordinary values invoked through NewInvoke.
//
// Arguments are read-only snapshots. The mutators on Positional and Named
// exist only to fail with FrozenArgumentMutationError.
package helper
