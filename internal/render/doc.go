// Package render drives rendering passes over a tree of nodes.
//
// A tree is built from Text, Output, Block and Markup nodes. Each Render
// call runs one helper pass: call-sites whose tracked inputs did not change
// are served from cache, and a Block whose condition flips tears down the
// branch it leaves before building the one it enters.
//
// Example usage:
//
//	store := tracking.NewStore()
//	program, _ := render.LoadProgram("page.json")
//	root, _ := render.NewCompiler(store, nil).Compile(program)
//
//	tree := render.NewTree(engine, nil, root, logger)
//	store.Apply(map[string]any{"name": "tom"})
//	out, result, err := tree.Render(session)
//	...
//	tree.Destroy()
//
// A program is JSON or YAML:
//
//	{"nodes": [
//	  {"text": "Hello, "},
//	  {"output": {"helper": "uppercase", "args": [{"cell": "name"}]}},
//	  {"if": {"when": {"cel": "count > 2"}, "then": [{"text": "many"}]}},
//	  {"markup": {"source": "<p>{{slot \"list\"}}</p>",
//	              "slots": {"list": {"helper": "join", "args": [{"cell": "items"}, {"const": ", "}]}}}}
//	]}
package render
