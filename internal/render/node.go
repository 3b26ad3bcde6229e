package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/aescanero/dago-render-helpers/internal/helper"
)

// Node is one piece of a rendered tree.
type Node interface {
	render(c *renderCtx, b *strings.Builder) error
	destroy(e *helper.Engine) error
}

// Template builds a fresh set of nodes. Every call must return new
// call-sites, since a branch that comes back is a new occurrence.
type Template func() []Node

type textNode struct {
	text string
}

// Text is static content.
func Text(s string) Node {
	return &textNode{text: s}
}

func (n *textNode) render(_ *renderCtx, b *strings.Builder) error {
	b.WriteString(n.text)
	return nil
}

func (n *textNode) destroy(*helper.Engine) error {
	return nil
}

type outputNode struct {
	expr helper.Expr
}

// Output renders the value of expr.
func Output(expr helper.Expr) Node {
	return &outputNode{expr: expr}
}

func (n *outputNode) render(c *renderCtx, b *strings.Builder) error {
	v, err := c.scope.Eval(n.expr)
	if err != nil {
		return err
	}
	b.WriteString(Stringify(v))
	return nil
}

func (n *outputNode) destroy(e *helper.Engine) error {
	return e.TeardownAll(helper.SitesOf(n.expr))
}

// blockNode is a structural conditional. The live branch is built from
// its template the first time it is selected and torn down when the
// selection flips.
type blockNode struct {
	when  helper.Expr
	then  Template
	els   Template
	live  []Node
	taken int
}

const (
	branchNone = iota
	branchThen
	branchElse
)

// Block renders then when the condition is truthy, els otherwise. Either
// template may be nil.
func Block(when helper.Expr, then, els Template) Node {
	return &blockNode{when: when, then: then, els: els}
}

func (n *blockNode) render(c *renderCtx, b *strings.Builder) error {
	v, err := c.scope.Eval(n.when)
	if err != nil {
		return err
	}

	branch, tmpl := branchElse, n.els
	if helper.Truthy(v) {
		branch, tmpl = branchThen, n.then
	}

	if branch != n.taken {
		if err := destroyAll(c.engine, n.live); err != nil {
			c.teardownErrs = multierror.Append(c.teardownErrs, err)
		}
		n.live = nil
		if tmpl != nil {
			n.live = tmpl()
		}
		n.taken = branch
		c.toggles++
	}

	for _, child := range n.live {
		if err := child.render(c, b); err != nil {
			return err
		}
	}
	return nil
}

func (n *blockNode) destroy(e *helper.Engine) error {
	var result *multierror.Error
	if err := destroyAll(e, n.live); err != nil {
		result = multierror.Append(result, err)
	}
	n.live = nil
	n.taken = branchNone
	if err := e.TeardownAll(helper.SitesOf(n.when)); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

type markupNode struct {
	source string
	data   map[string]any
	slots  map[string]helper.Expr
}

// Markup renders a static Handlebars fragment. Slot expressions are
// evaluated only when the fragment renders them.
func Markup(source string, data map[string]any, slots map[string]helper.Expr) Node {
	return &markupNode{source: source, data: data, slots: slots}
}

func (n *markupNode) render(c *renderCtx, b *strings.Builder) error {
	out, err := c.markup.Render(n.source, n.data, func(name string) (interface{}, error) {
		expr, ok := n.slots[name]
		if !ok {
			return nil, errors.New("unknown slot")
		}
		return c.scope.Eval(expr)
	})
	if err != nil {
		return err
	}
	b.WriteString(out)
	return nil
}

func (n *markupNode) destroy(e *helper.Engine) error {
	names := make([]string, 0, len(n.slots))
	for name := range n.slots {
		names = append(names, name)
	}
	sort.Strings(names)

	var sites []*helper.CallSite
	for _, name := range names {
		sites = append(sites, helper.SitesOf(n.slots[name])...)
	}
	return e.TeardownAll(sites)
}

func destroyAll(e *helper.Engine, nodes []Node) error {
	var result *multierror.Error
	for _, n := range nodes {
		if err := n.destroy(e); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Stringify renders a value the way output positions show it: nil as
// nothing, whole floats without a fraction.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case *helper.Ref:
		return "<helper " + t.Name() + ">"
	default:
		return fmt.Sprint(v)
	}
}
