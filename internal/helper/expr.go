package helper

import (
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"

	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// Expr is a node of the lazy composition graph. Eval runs only when a
// consumer demands the value.
type Expr interface {
	Eval(s *Scope) (any, error)
}

// Composite is implemented by expressions that contain call-sites, so
// teardown can reach them.
type Composite interface {
	CallSites() []*CallSite
}

// SitesOf returns the call-sites directly held by e.
func SitesOf(e Expr) []*CallSite {
	switch v := e.(type) {
	case nil:
		return nil
	case *CallSite:
		return []*CallSite{v}
	case Composite:
		return v.CallSites()
	default:
		return nil
	}
}

type constExpr struct {
	v any
}

// Const is a literal value.
func Const(v any) Expr {
	return constExpr{v: v}
}

func (c constExpr) Eval(*Scope) (any, error) {
	return c.v, nil
}

type readExpr struct {
	cell *tracking.Cell
}

// Read is a tracked read of cell.
func Read(cell *tracking.Cell) Expr {
	return readExpr{cell: cell}
}

func (r readExpr) Eval(s *Scope) (any, error) {
	return s.Read(r.cell), nil
}

type ifExpr struct {
	cond Expr
	then Expr
	els  Expr
}

// If selects between two expressions. Only the selected one is evaluated;
// a nil branch yields nil.
func If(cond, then, els Expr) Expr {
	return &ifExpr{cond: cond, then: then, els: els}
}

func (e *ifExpr) Eval(s *Scope) (any, error) {
	c, err := s.Eval(e.cond)
	if err != nil {
		return nil, err
	}
	branch := e.els
	if Truthy(c) {
		branch = e.then
	}
	if branch == nil {
		return nil, nil
	}
	return s.Eval(branch)
}

func (e *ifExpr) CallSites() []*CallSite {
	var out []*CallSite
	out = append(out, SitesOf(e.cond)...)
	out = append(out, SitesOf(e.then)...)
	out = append(out, SitesOf(e.els)...)
	return out
}

type dynamicExpr struct {
	name Expr
}

// Dynamic resolves a helper reference from a runtime string. It is the only
// way a string becomes something invocable.
func Dynamic(name Expr) Expr {
	return &dynamicExpr{name: name}
}

func (d *dynamicExpr) Eval(s *Scope) (any, error) {
	v, err := s.Eval(d.name)
	if err != nil {
		return nil, err
	}
	if ref, ok := v.(*Ref); ok {
		return ref, nil
	}
	name, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%s: dynamic helper name must be a string, got %T", s.describe(), v)
	}
	def, err := s.engine().registry.Resolve(name, ContextCurried)
	if err != nil {
		return nil, err
	}
	return &Ref{def: def}, nil
}

func (d *dynamicExpr) CallSites() []*CallSite {
	return SitesOf(d.name)
}

// Truthy follows template conventions: nil, false, zero numbers, empty
// strings and empty collections are false.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Ref is a helper reference, possibly with bound arguments. It is an
// ordinary value: helpers may return it and call-sites may invoke it.
type Ref struct {
	def        *Definition
	positional []any
	named      map[string]any
}

// Definition returns the referenced definition.
func (r *Ref) Definition() *Definition {
	return r.def
}

// Name returns the referenced helper's name.
func (r *Ref) Name() string {
	return r.def.name
}

// Bound returns a copy of the bound positional values.
func (r *Ref) Bound() []any {
	return append([]any(nil), r.positional...)
}

// BoundNamed returns a copy of the bound named values.
func (r *Ref) BoundNamed() map[string]any {
	out := make(map[string]any, len(r.named))
	for k, v := range r.named {
		out[k] = v
	}
	return out
}

// With returns a new reference with more bound arguments.
func (r *Ref) With(positional []any, named map[string]any) *Ref {
	next := &Ref{
		def:        r.def,
		positional: append(append([]any(nil), r.positional...), positional...),
		named:      r.BoundNamed(),
	}
	for k, v := range named {
		next.named[k] = v
	}
	return next
}

type siteKind int

const (
	siteCall siteKind = iota
	siteInvoke
	siteCurry
)

var siteSeq atomic.Uint64

// CallSite is one occurrence of a helper invocation. Its identity is the
// pointer: the engine keys instances and caches by it, so a structurally
// new occurrence must use a new CallSite.
type CallSite struct {
	id         uint64
	kind       siteKind
	name       string
	callee     Expr
	context    Context
	positional []Expr
	named      map[string]Expr

	def       *Definition
	destroyed bool
}

// NewCall creates a call-site invoking the helper registered as name.
func NewCall(name string, ctx Context, positional ...Expr) *CallSite {
	return &CallSite{
		id:         siteSeq.Add(1),
		kind:       siteCall,
		name:       name,
		context:    ctx,
		positional: positional,
	}
}

// NewInvoke creates a call-site invoking the helper reference callee
// evaluates to. The reference's bound arguments precede positional.
func NewInvoke(callee Expr, positional ...Expr) *CallSite {
	return &CallSite{
		id:         siteSeq.Add(1),
		kind:       siteInvoke,
		callee:     callee,
		context:    ContextCall,
		positional: positional,
	}
}

// NewCurry creates a call-site producing a helper reference with bound
// arguments. callee is either a literal name (string) or an expression
// evaluating to a reference.
func NewCurry(callee any, positional ...Expr) *CallSite {
	site := &CallSite{
		id:         siteSeq.Add(1),
		kind:       siteCurry,
		context:    ContextCurried,
		positional: positional,
	}
	switch c := callee.(type) {
	case string:
		site.name = c
	case Expr:
		site.callee = c
	default:
		site.callee = Const(c)
	}
	return site
}

// WithNamed sets the named argument expressions. Call it while building the
// graph, before the first evaluation.
func (c *CallSite) WithNamed(named map[string]Expr) *CallSite {
	c.named = named
	return c
}

// Name returns the literal helper name, empty for invocations of a reference.
func (c *CallSite) Name() string {
	return c.name
}

// Context returns the syntactic context.
func (c *CallSite) Context() Context {
	return c.context
}

// Destroyed reports whether the call-site has been torn down.
func (c *CallSite) Destroyed() bool {
	return c.destroyed
}

func (c *CallSite) String() string {
	switch c.kind {
	case siteInvoke:
		return fmt.Sprintf("invoke#%d", c.id)
	case siteCurry:
		if c.name != "" {
			return fmt.Sprintf("curry(%s)#%d", c.name, c.id)
		}
		return fmt.Sprintf("curry#%d", c.id)
	default:
		return fmt.Sprintf("%s(%s)#%d", c.name, c.context, c.id)
	}
}

// Eval evaluates the call-site through the engine's cache.
func (c *CallSite) Eval(s *Scope) (any, error) {
	if s == nil || s.pass == nil {
		return nil, ErrNoPass
	}
	return s.pass.engine.evaluate(s.pass, c, s.frame)
}

// CallSites returns the call-sites nested in this one's arguments, in
// argument order.
func (c *CallSite) CallSites() []*CallSite {
	var out []*CallSite
	out = append(out, SitesOf(c.callee)...)
	for _, e := range c.positional {
		out = append(out, SitesOf(e)...)
	}
	keys := make([]string, 0, len(c.named))
	for k := range c.named {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, SitesOf(c.named[k])...)
	}
	return out
}
