package render

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/dago-render-helpers/internal/helper"
	"github.com/aescanero/dago-render-helpers/internal/router"
)

func compileFile(t *testing.T, h *harness, path string) *Tree {
	t.Helper()
	program, err := LoadProgram(path)
	require.NoError(t, err)
	root, err := NewCompiler(h.store, nil).Compile(program)
	require.NoError(t, err)
	return NewTree(h.engine, nil, root, nil)
}

func TestProgram_GoldenRender(t *testing.T) {
	h := newHarness(t)
	tree := compileFile(t, h, "testdata/program.json")

	h.store.Apply(map[string]any{
		"name":  "tom",
		"count": 3,
		"items": []any{"a", "b"},
	})

	out, _, err := tree.Render("session")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "program", []byte(out))
}

func TestProgram_ConditionFlipRerendersBranchOnly(t *testing.T) {
	h := newHarness(t)
	tree := compileFile(t, h, "testdata/program.json")

	h.store.Apply(map[string]any{"name": "tom", "count": 3, "items": []any{"a"}})
	_, first, err := tree.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Computes)

	h.store.Apply(map[string]any{"count": 1})
	out, res, err := tree.Render(nil)
	require.NoError(t, err)
	assert.Contains(t, out, "few items")
	assert.Equal(t, 0, res.Computes)
}

func TestProgram_ParseYAML(t *testing.T) {
	src := []byte(`
nodes:
  - text: "n="
  - output:
      if:
        cond: {cell: flag}
        then: {helper: concat, args: [{const: on}, {cell: n}]}
        else: {const: "off"}
`)
	p, err := ParseYAML(src)
	require.NoError(t, err)

	h := newHarness(t)
	root, err := NewCompiler(h.store, nil).Compile(p)
	require.NoError(t, err)
	tree := NewTree(h.engine, nil, root, nil)

	out, _, err := tree.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "n=off", out)

	h.store.Apply(map[string]any{"flag": true, "n": 2})
	out, _, err = tree.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "n=on2", out)
}

func TestProgram_CompileErrors(t *testing.T) {
	text := "x"
	tests := []struct {
		name    string
		program Program
	}{
		{
			name:    "empty node",
			program: Program{Nodes: []NodeSpec{{}}},
		},
		{
			name:    "two node kinds",
			program: Program{Nodes: []NodeSpec{{Text: &text, Output: &ExprSpec{Const: 1}}}},
		},
		{
			name:    "two expression kinds",
			program: Program{Nodes: []NodeSpec{{Output: &ExprSpec{Helper: "uppercase", Cell: "a"}}}},
		},
		{
			name:    "unknown context",
			program: Program{Nodes: []NodeSpec{{Output: &ExprSpec{Helper: "uppercase", Context: "weird"}}}},
		},
		{
			name:    "bad cel",
			program: Program{Nodes: []NodeSpec{{Output: &ExprSpec{CEL: "a >"}}}},
		},
		{
			name:    "args without helper",
			program: Program{Nodes: []NodeSpec{{Output: &ExprSpec{Args: []ExprSpec{{Const: 1}}}}}},
		},
		{
			name:    "curry without target",
			program: Program{Nodes: []NodeSpec{{Output: &ExprSpec{Curry: &CurrySpec{}}}}},
		},
		{
			name:    "route without fallback",
			program: Program{Nodes: []NodeSpec{{Output: &ExprSpec{Route: &router.Config{}}}}},
		},
		{
			name:    "markup without source",
			program: Program{Nodes: []NodeSpec{{Markup: &MarkupSpec{}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := NewCompiler(h.store, nil).Compile(&tt.program)
			assert.Error(t, err)
		})
	}
}

func TestProgram_RawStringCalleeIsRejected(t *testing.T) {
	p, err := ParseJSON([]byte(`{"nodes":[{"output":{"invoke":{"callee":{"const":"uppercase"},"args":[{"const":"x"}]}}}]}`))
	require.NoError(t, err)

	h := newHarness(t)
	root, err := NewCompiler(h.store, nil).Compile(p)
	require.NoError(t, err)

	_, _, err = NewTree(h.engine, nil, root, nil).Render(nil)
	assert.ErrorIs(t, err, helper.ErrDynamicReference)
}

func TestProgram_DynamicResolvesName(t *testing.T) {
	p, err := ParseJSON([]byte(`{"nodes":[{"output":{"invoke":{"callee":{"dynamic":{"cell":"fn"}},"args":[{"const":"Mixed"}]}}}]}`))
	require.NoError(t, err)

	h := newHarness(t)
	root, err := NewCompiler(h.store, nil).Compile(p)
	require.NoError(t, err)
	tree := NewTree(h.engine, nil, root, nil)

	h.store.Apply(map[string]any{"fn": "uppercase"})
	out, _, err := tree.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "MIXED", out)

	h.store.Apply(map[string]any{"fn": "lowercase"})
	out, _, err = tree.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "mixed", out)
}

func TestProgram_RouteSelectsHelper(t *testing.T) {
	p, err := ParseJSON([]byte(`{"nodes":[{"output":{"invoke":{
	  "callee":{"dynamic":{"route":{
	    "rules":[{"condition":"loud == true","target":"uppercase"}],
	    "fallback":"lowercase"}}},
	  "args":[{"const":"Mixed"}]}}}]}`))
	require.NoError(t, err)

	h := newHarness(t)
	root, err := NewCompiler(h.store, nil).Compile(p)
	require.NoError(t, err)
	tree := NewTree(h.engine, nil, root, nil)

	out, _, err := tree.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "mixed", out)

	h.store.Apply(map[string]any{"loud": true})
	out, _, err = tree.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "MIXED", out)
}

func TestProgram_ReservedContextFails(t *testing.T) {
	p, err := ParseJSON([]byte(`{"nodes":[{"output":{"helper":"uppercase","context":"modifier","args":[{"const":"x"}]}}]}`))
	require.NoError(t, err)

	h := newHarness(t)
	root, err := NewCompiler(h.store, nil).Compile(p)
	require.NoError(t, err)

	_, _, err = NewTree(h.engine, nil, root, nil).Render(nil)
	assert.ErrorIs(t, err, helper.ErrUnsupportedContext)
}
