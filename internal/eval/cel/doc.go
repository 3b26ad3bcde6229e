// Package cel provides a CEL (Common Expression Language) evaluator for tracked conditions.
//
// Identifiers in an expression resolve to cells of a tracking.Store. Each
// cell read during evaluation becomes a dependency of the computation that
// evaluated the condition, so a condition placed in front of helper
// call-sites re-runs only when a cell it read changes.
//
// Example usage:
//
//	evaluator := cel.NewEvaluator()
//	store := tracking.NewStore()
//	store.Apply(map[string]interface{}{"priority": "high", "score": 0.95})
//
//	cond := evaluator.Condition("priority == 'high' && score > 0.8", store)
//	expr := helper.If(cond, helper.NewCall("urgent", helper.ContextSubexpression), helper.Const("normal"))
//
//	result, _, err := engine.Run(nil, expr)
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >=
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - Arithmetic: +, -, *, /, %
//   - List operations: in, size
//   - Map access: user.name, user["name"]
package cel
