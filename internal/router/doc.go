// Package router picks a helper name from ordered CEL rules.
//
// A route evaluates its rules in order inside the current tracking scope and
// yields the target of the first rule whose condition is true, or the
// fallback. Rules after the first match are not evaluated, so a change to a
// cell only they read does not invalidate the route. Pair a route with
// helper.Dynamic to invoke the chosen helper:
//
//	r := router.NewRouter(evaluator, store, logger)
//	route, err := r.Route(&router.Config{
//	    Rules: []router.Rule{
//	        {Condition: "priority == 'high'", Target: "uppercase"},
//	        {Condition: "quiet", Target: "lowercase"},
//	    },
//	    Fallback: "trim",
//	})
//	site := helper.NewInvoke(helper.Dynamic(route), helper.Read(message))
//
// A rule whose condition fails to evaluate or is not boolean is logged and
// skipped.
package router
