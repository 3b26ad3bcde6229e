package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aescanero/dago-render-helpers/internal/eval/cel"
	"github.com/aescanero/dago-render-helpers/internal/helper"
	"github.com/aescanero/dago-render-helpers/internal/router"
	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// Program is a declarative description of a tree.
type Program struct {
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`
}

// NodeSpec describes one node. Exactly one field is set.
type NodeSpec struct {
	Text   *string     `json:"text,omitempty" yaml:"text,omitempty"`
	Output *ExprSpec   `json:"output,omitempty" yaml:"output,omitempty"`
	If     *BlockSpec  `json:"if,omitempty" yaml:"if,omitempty"`
	Markup *MarkupSpec `json:"markup,omitempty" yaml:"markup,omitempty"`
}

// BlockSpec is a structural conditional.
type BlockSpec struct {
	When ExprSpec   `json:"when" yaml:"when"`
	Then []NodeSpec `json:"then,omitempty" yaml:"then,omitempty"`
	Else []NodeSpec `json:"else,omitempty" yaml:"else,omitempty"`
}

// MarkupSpec is a Handlebars fragment with slots.
type MarkupSpec struct {
	Source string              `json:"source" yaml:"source"`
	Data   map[string]any      `json:"data,omitempty" yaml:"data,omitempty"`
	Slots  map[string]ExprSpec `json:"slots,omitempty" yaml:"slots,omitempty"`
}

// ExprSpec describes an expression. At most one of the kind fields is set;
// when none is, the expression is the Const literal (possibly null).
type ExprSpec struct {
	Helper  string              `json:"helper,omitempty" yaml:"helper,omitempty"`
	Context string              `json:"context,omitempty" yaml:"context,omitempty"`
	Args    []ExprSpec          `json:"args,omitempty" yaml:"args,omitempty"`
	Named   map[string]ExprSpec `json:"named,omitempty" yaml:"named,omitempty"`
	Cell    string              `json:"cell,omitempty" yaml:"cell,omitempty"`
	Const   any                 `json:"const,omitempty" yaml:"const,omitempty"`
	CEL     string              `json:"cel,omitempty" yaml:"cel,omitempty"`
	If      *IfSpec             `json:"if,omitempty" yaml:"if,omitempty"`
	Curry   *CurrySpec          `json:"curry,omitempty" yaml:"curry,omitempty"`
	Invoke  *InvokeSpec         `json:"invoke,omitempty" yaml:"invoke,omitempty"`
	Dynamic *ExprSpec           `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Route   *router.Config      `json:"route,omitempty" yaml:"route,omitempty"`
}

// IfSpec is an inline conditional expression.
type IfSpec struct {
	Cond ExprSpec  `json:"cond" yaml:"cond"`
	Then *ExprSpec `json:"then,omitempty" yaml:"then,omitempty"`
	Else *ExprSpec `json:"else,omitempty" yaml:"else,omitempty"`
}

// CurrySpec binds arguments to a helper named literally or to the reference
// Callee evaluates to.
type CurrySpec struct {
	Helper string              `json:"helper,omitempty" yaml:"helper,omitempty"`
	Callee *ExprSpec           `json:"callee,omitempty" yaml:"callee,omitempty"`
	Args   []ExprSpec          `json:"args,omitempty" yaml:"args,omitempty"`
	Named  map[string]ExprSpec `json:"named,omitempty" yaml:"named,omitempty"`
}

// InvokeSpec invokes the reference Callee evaluates to.
type InvokeSpec struct {
	Callee ExprSpec            `json:"callee" yaml:"callee"`
	Args   []ExprSpec          `json:"args,omitempty" yaml:"args,omitempty"`
	Named  map[string]ExprSpec `json:"named,omitempty" yaml:"named,omitempty"`
}

// LoadProgram reads a program from a JSON or YAML file, chosen by extension.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes a JSON program.
func ParseJSON(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	return &p, nil
}

// ParseYAML decodes a YAML program.
func ParseYAML(data []byte) (*Program, error) {
	var p Program
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	return &p, nil
}

type exprBuilder func() helper.Expr

// Compiler turns programs into templates whose cells live in one store.
type Compiler struct {
	store  *tracking.Store
	cel    *cel.Evaluator
	router *router.Router
}

// NewCompiler creates a compiler over store. A nil evaluator gets a
// private one.
func NewCompiler(store *tracking.Store, evaluator *cel.Evaluator) *Compiler {
	if evaluator == nil {
		evaluator = cel.NewEvaluator()
	}
	return &Compiler{
		store:  store,
		cel:    evaluator,
		router: router.NewRouter(evaluator, store, nil),
	}
}

// Compile validates p and returns a template building its nodes. Every
// CEL expression is parsed up front.
func (c *Compiler) Compile(p *Program) (Template, error) {
	if p == nil {
		return nil, fmt.Errorf("compile: nil program")
	}
	return c.compileNodes(p.Nodes, "nodes")
}

func (c *Compiler) compileNodes(specs []NodeSpec, path string) (Template, error) {
	builders := make([]func() Node, 0, len(specs))
	for i, spec := range specs {
		b, err := c.compileNode(spec, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		builders = append(builders, b)
	}
	return func() []Node {
		nodes := make([]Node, 0, len(builders))
		for _, b := range builders {
			nodes = append(nodes, b())
		}
		return nodes
	}, nil
}

func (c *Compiler) compileNode(spec NodeSpec, path string) (func() Node, error) {
	set := 0
	for _, ok := range []bool{spec.Text != nil, spec.Output != nil, spec.If != nil, spec.Markup != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%s: node must set exactly one of text, output, if, markup", path)
	}

	switch {
	case spec.Text != nil:
		text := *spec.Text
		return func() Node { return Text(text) }, nil

	case spec.Output != nil:
		expr, err := c.compileExpr(*spec.Output, path+".output", false)
		if err != nil {
			return nil, err
		}
		return func() Node { return Output(expr()) }, nil

	case spec.If != nil:
		when, err := c.compileExpr(spec.If.When, path+".if.when", false)
		if err != nil {
			return nil, err
		}
		var then, els Template
		if len(spec.If.Then) > 0 {
			if then, err = c.compileNodes(spec.If.Then, path+".if.then"); err != nil {
				return nil, err
			}
		}
		if len(spec.If.Else) > 0 {
			if els, err = c.compileNodes(spec.If.Else, path+".if.else"); err != nil {
				return nil, err
			}
		}
		return func() Node { return Block(when(), then, els) }, nil

	default:
		m := spec.Markup
		if m.Source == "" {
			return nil, fmt.Errorf("%s.markup: source is required", path)
		}
		slots, err := c.compileNamed(m.Slots, path+".markup.slots", false)
		if err != nil {
			return nil, err
		}
		source, data := m.Source, m.Data
		return func() Node { return Markup(source, data, buildNamed(slots)) }, nil
	}
}

func (c *Compiler) compileExpr(spec ExprSpec, path string, nested bool) (exprBuilder, error) {
	set := 0
	for _, ok := range []bool{
		spec.Helper != "", spec.Cell != "", spec.CEL != "", spec.If != nil,
		spec.Curry != nil, spec.Invoke != nil, spec.Dynamic != nil, spec.Route != nil,
	} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("%s: expression must set at most one kind", path)
	}
	if spec.Helper == "" && (len(spec.Args) > 0 || len(spec.Named) > 0) {
		return nil, fmt.Errorf("%s: args and named require helper", path)
	}

	switch {
	case spec.Helper != "":
		ctx, err := parseContext(spec.Context, nested)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		args, err := c.compileList(spec.Args, path+".args")
		if err != nil {
			return nil, err
		}
		named, err := c.compileNamed(spec.Named, path+".named", true)
		if err != nil {
			return nil, err
		}
		name := spec.Helper
		return func() helper.Expr {
			return helper.NewCall(name, ctx, buildList(args)...).WithNamed(buildNamed(named))
		}, nil

	case spec.Cell != "":
		cell := c.store.Cell(spec.Cell)
		return func() helper.Expr { return helper.Read(cell) }, nil

	case spec.CEL != "":
		if err := c.cel.ValidateExpression(spec.CEL); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cond := c.cel.Condition(spec.CEL, c.store)
		return func() helper.Expr { return cond }, nil

	case spec.If != nil:
		cond, err := c.compileExpr(spec.If.Cond, path+".if.cond", true)
		if err != nil {
			return nil, err
		}
		then, err := c.compileOptional(spec.If.Then, path+".if.then")
		if err != nil {
			return nil, err
		}
		els, err := c.compileOptional(spec.If.Else, path+".if.else")
		if err != nil {
			return nil, err
		}
		return func() helper.Expr { return helper.If(cond(), then(), els()) }, nil

	case spec.Curry != nil:
		cs := spec.Curry
		if (cs.Helper == "") == (cs.Callee == nil) {
			return nil, fmt.Errorf("%s.curry: set exactly one of helper, callee", path)
		}
		callee, err := c.compileOptional(cs.Callee, path+".curry.callee")
		if err != nil {
			return nil, err
		}
		args, err := c.compileList(cs.Args, path+".curry.args")
		if err != nil {
			return nil, err
		}
		named, err := c.compileNamed(cs.Named, path+".curry.named", true)
		if err != nil {
			return nil, err
		}
		name := cs.Helper
		return func() helper.Expr {
			var target any = name
			if name == "" {
				target = callee()
			}
			return helper.NewCurry(target, buildList(args)...).WithNamed(buildNamed(named))
		}, nil

	case spec.Invoke != nil:
		callee, err := c.compileExpr(spec.Invoke.Callee, path+".invoke.callee", true)
		if err != nil {
			return nil, err
		}
		args, err := c.compileList(spec.Invoke.Args, path+".invoke.args")
		if err != nil {
			return nil, err
		}
		named, err := c.compileNamed(spec.Invoke.Named, path+".invoke.named", true)
		if err != nil {
			return nil, err
		}
		return func() helper.Expr {
			return helper.NewInvoke(callee(), buildList(args)...).WithNamed(buildNamed(named))
		}, nil

	case spec.Dynamic != nil:
		name, err := c.compileExpr(*spec.Dynamic, path+".dynamic", true)
		if err != nil {
			return nil, err
		}
		return func() helper.Expr { return helper.Dynamic(name()) }, nil

	case spec.Route != nil:
		route, err := c.router.Route(spec.Route)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return func() helper.Expr { return route }, nil

	default:
		v := spec.Const
		return func() helper.Expr { return helper.Const(v) }, nil
	}
}

func (c *Compiler) compileOptional(spec *ExprSpec, path string) (exprBuilder, error) {
	if spec == nil {
		return func() helper.Expr { return nil }, nil
	}
	return c.compileExpr(*spec, path, true)
}

func (c *Compiler) compileList(specs []ExprSpec, path string) ([]exprBuilder, error) {
	out := make([]exprBuilder, 0, len(specs))
	for i, s := range specs {
		b, err := c.compileExpr(s, fmt.Sprintf("%s[%d]", path, i), true)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Compiler) compileNamed(specs map[string]ExprSpec, path string, nested bool) (map[string]exprBuilder, error) {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]exprBuilder, len(specs))
	for _, k := range keys {
		b, err := c.compileExpr(specs[k], path+"."+k, nested)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return out, nil
}

func buildList(builders []exprBuilder) []helper.Expr {
	if len(builders) == 0 {
		return nil
	}
	out := make([]helper.Expr, len(builders))
	for i, b := range builders {
		out[i] = b()
	}
	return out
}

func buildNamed(builders map[string]exprBuilder) map[string]helper.Expr {
	if len(builders) == 0 {
		return nil
	}
	out := make(map[string]helper.Expr, len(builders))
	for k, b := range builders {
		out[k] = b()
	}
	return out
}

func parseContext(s string, nested bool) (helper.Context, error) {
	switch s {
	case "":
		if nested {
			return helper.ContextSubexpression, nil
		}
		return helper.ContextCall, nil
	case "call":
		return helper.ContextCall, nil
	case "subexpression":
		return helper.ContextSubexpression, nil
	case "attribute":
		return helper.ContextAttribute, nil
	case "block":
		return helper.ContextBlock, nil
	case "modifier":
		return helper.ContextModifier, nil
	default:
		return 0, fmt.Errorf("unknown context %q", s)
	}
}
