package helper

import (
	"fmt"
	"sort"
)

// Args is the argument snapshot handed to a helper's compute step.
//
// Both views are read-only. Values are evaluated on first access and
// memoized for the lifetime of the snapshot, so an argument that is never
// read never runs. The snapshot is only valid while Compute runs.
type Args struct {
	Positional Positional
	Named      Named
}

type argState struct {
	scope *Scope
	name  string
	site  string

	pexprs []Expr
	pvals  []any
	pdone  []bool

	nexprs map[string]Expr
	nkeys  []string
	nvals  map[string]any
	ndone  map[string]bool

	err error
}

// newArgs builds a snapshot over live argument expressions. Values bound by
// a curried reference come first positionally; call-site named arguments
// override bound named values.
func newArgs(s *Scope, name string, positional []Expr, named map[string]Expr, bound *Ref) Args {
	a := &argState{
		scope: s,
		name:  name,
		site:  s.describe(),
		nvals: make(map[string]any),
		ndone: make(map[string]bool),
	}

	var boundPos []any
	var boundNamed map[string]any
	if bound != nil {
		boundPos = bound.positional
		boundNamed = bound.named
	}

	n := len(boundPos) + len(positional)
	a.pexprs = make([]Expr, n)
	a.pvals = make([]any, n)
	a.pdone = make([]bool, n)
	for i, v := range boundPos {
		a.pvals[i] = v
		a.pdone[i] = true
	}
	for i, e := range positional {
		a.pexprs[len(boundPos)+i] = e
	}

	a.nexprs = make(map[string]Expr, len(named))
	for k, v := range boundNamed {
		a.nvals[k] = v
		a.ndone[k] = true
	}
	for k, e := range named {
		a.nexprs[k] = e
		delete(a.ndone, k)
		delete(a.nvals, k)
	}
	for k := range a.nvals {
		a.nkeys = append(a.nkeys, k)
	}
	for k := range a.nexprs {
		a.nkeys = append(a.nkeys, k)
	}
	sort.Strings(a.nkeys)

	return Args{Positional: Positional{a: a}, Named: Named{a: a}}
}

// Err returns the first error raised while demanding an argument value.
func (a Args) Err() error {
	if a.Positional.a == nil {
		return nil
	}
	return a.Positional.a.err
}

func (a *argState) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

func (a *argState) frozen(op string) error {
	if a == nil {
		return &FrozenArgumentMutationError{Op: op}
	}
	return &FrozenArgumentMutationError{Name: a.name, Site: a.site, Op: op}
}

// Positional is a read-only view over positional arguments.
type Positional struct {
	a *argState
}

// Len returns the number of positional arguments.
func (p Positional) Len() int {
	if p.a == nil {
		return 0
	}
	return len(p.a.pexprs)
}

// At returns the i-th argument, evaluating it on first access. An
// evaluation error is recorded on the snapshot and fails the computation.
func (p Positional) At(i int) any {
	if p.a == nil || i < 0 || i >= len(p.a.pexprs) {
		return nil
	}
	a := p.a
	if !a.pdone[i] {
		v, err := a.scope.Eval(a.pexprs[i])
		if err != nil {
			a.fail(err)
			return nil
		}
		a.pvals[i] = v
		a.pdone[i] = true
	}
	return a.pvals[i]
}

// Values evaluates every positional argument and returns a copy.
func (p Positional) Values() []any {
	out := make([]any, p.Len())
	for i := range out {
		out[i] = p.At(i)
	}
	return out
}

// Append always fails: positional arguments are frozen.
func (p Positional) Append(v any) error {
	return p.a.frozen("append a positional argument")
}

// Set always fails: positional arguments are frozen.
func (p Positional) Set(i int, v any) error {
	return p.a.frozen(fmt.Sprintf("assign positional argument %d", i))
}

// Named is a read-only view over named arguments.
type Named struct {
	a *argState
}

// Len returns the number of named arguments.
func (n Named) Len() int {
	if n.a == nil {
		return 0
	}
	return len(n.a.nkeys)
}

// Has reports whether key was passed.
func (n Named) Has(key string) bool {
	if n.a == nil {
		return false
	}
	if _, ok := n.a.nexprs[key]; ok {
		return true
	}
	_, ok := n.a.nvals[key]
	return ok
}

// Keys returns the argument names in sorted order.
func (n Named) Keys() []string {
	if n.a == nil {
		return nil
	}
	return append([]string(nil), n.a.nkeys...)
}

// Get returns the named argument, evaluating it on first access. Missing
// keys return nil.
func (n Named) Get(key string) any {
	if n.a == nil {
		return nil
	}
	a := n.a
	if a.ndone[key] {
		return a.nvals[key]
	}
	e, ok := a.nexprs[key]
	if !ok {
		return nil
	}
	v, err := a.scope.Eval(e)
	if err != nil {
		a.fail(err)
		return nil
	}
	a.nvals[key] = v
	a.ndone[key] = true
	return v
}

// Map evaluates every named argument and returns a copy.
func (n Named) Map() map[string]any {
	out := make(map[string]any, n.Len())
	for _, k := range n.Keys() {
		out[k] = n.Get(k)
	}
	return out
}

// Set always fails: named arguments are frozen, including new keys.
func (n Named) Set(key string, v any) error {
	if n.Has(key) {
		return n.a.frozen(fmt.Sprintf("assign named argument %q", key))
	}
	return n.a.frozen(fmt.Sprintf("add named argument %q", key))
}

// Delete always fails: named arguments are frozen.
func (n Named) Delete(key string) error {
	return n.a.frozen(fmt.Sprintf("delete named argument %q", key))
}
