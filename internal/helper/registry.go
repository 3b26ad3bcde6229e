package helper

import (
	"fmt"
	"sort"
	"sync"
)

// Context is the syntactic position of a call-site.
type Context int

const (
	// ContextCall is a plain value-producing invocation.
	ContextCall Context = iota
	// ContextSubexpression is a call nested as an argument.
	ContextSubexpression
	// ContextAttribute is a call used as an attribute value.
	ContextAttribute
	// ContextCurried is a reference taken for later invocation.
	ContextCurried
	// ContextBlock is block position, reserved for components.
	ContextBlock
	// ContextModifier is element-attachment position, reserved for modifiers.
	ContextModifier
)

func (c Context) String() string {
	switch c {
	case ContextCall:
		return "call"
	case ContextSubexpression:
		return "subexpression"
	case ContextAttribute:
		return "attribute"
	case ContextCurried:
		return "curried reference"
	case ContextBlock:
		return "block"
	case ContextModifier:
		return "element modifier"
	default:
		return "unknown"
	}
}

// reserved names belong to built-in control syntax.
var reserved = map[string]bool{
	"if":               true,
	"unless":           true,
	"each":             true,
	"each-in":          true,
	"let":              true,
	"with":             true,
	"yield":            true,
	"outlet":           true,
	"component":        true,
	"helper":           true,
	"modifier":         true,
	"in-element":       true,
	"has-block":        true,
	"has-block-params": true,
	"debugger":         true,
	"mount":            true,
}

// IsReserved reports whether name belongs to built-in syntax.
func IsReserved(name string) bool {
	return reserved[name]
}

// Registry maps helper names to definitions.
type Registry struct {
	defs map[string]*Definition
	mu   sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]*Definition),
	}
}

// Register adds a definition under name.
func (r *Registry) Register(name string, def Definition) error {
	if name == "" {
		return fmt.Errorf("helper name is required")
	}
	if IsReserved(name) {
		return &BuiltinOverrideError{Name: name}
	}

	switch def.kind {
	case KindFunctional:
		if def.fn == nil {
			return fmt.Errorf("helper %q: functional definition has no function", name)
		}
	case KindStateful:
		if def.factory == nil {
			return fmt.Errorf("helper %q: stateful definition has no factory", name)
		}
	default:
		return fmt.Errorf("helper %q: unknown kind %d", name, def.kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[name]; ok {
		return fmt.Errorf("helper %q already registered", name)
	}

	// Copy so the caller's value cannot change the registered definition
	registered := def
	registered.name = name
	r.defs[name] = &registered
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, def Definition) {
	if err := r.Register(name, def); err != nil {
		panic(err)
	}
}

// Resolve looks up name and validates it for the syntactic context.
func (r *Registry) Resolve(name string, ctx Context) (*Definition, error) {
	if IsReserved(name) {
		return nil, &BuiltinOverrideError{Name: name}
	}

	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownHelperError{Name: name}
	}

	switch ctx {
	case ContextBlock:
		return nil, &UnsupportedContextError{Name: name, Context: ctx, Expected: "component"}
	case ContextModifier:
		return nil, &UnsupportedContextError{Name: name, Context: ctx, Expected: "modifier"}
	}

	return def, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
