package helper

// Kind tags a helper definition.
type Kind int

const (
	// KindFunctional is a stateless function of its arguments.
	KindFunctional Kind = iota
	// KindStateful is a constructible helper with one instance per call-site.
	KindStateful
)

func (k Kind) String() string {
	switch k {
	case KindFunctional:
		return "functional"
	case KindStateful:
		return "stateful"
	default:
		return "unknown"
	}
}

// Func is a functional helper. Tracked reads go through s.
type Func func(s *Scope, args Args) (any, error)

// Helper is implemented by stateful helper types.
type Helper interface {
	Compute(s *Scope, args Args) (any, error)
}

// Initializer is implemented by stateful helpers that need setup. It runs
// once per instance, after the base state is bound.
type Initializer interface {
	Initialize(h *Handle) error
}

// WillTeardowner is implemented by stateful helpers that want notice before
// teardown.
type WillTeardowner interface {
	WillTeardown(h *Handle)
}

// Teardowner is implemented by stateful helpers that release resources.
type Teardowner interface {
	Teardown(h *Handle) error
}

// binder is promoted from Base.
type binder interface {
	bindHandle(h *Handle)
	boundHandle() *Handle
}

// Base carries the state every stateful helper needs. Embed it to get
// Recompute and access to the owner.
//
//	type Clock struct {
//	    helper.Base
//	    now time.Time
//	}
//
// The engine binds Base before Initialize runs, so an Initialize override
// never has to delegate to it.
type Base struct {
	handle *Handle
}

func (b *Base) bindHandle(h *Handle) { b.handle = h }

func (b *Base) boundHandle() *Handle { return b.handle }

// Handle returns the instance handle, nil before binding.
func (b *Base) Handle() *Handle {
	return b.handle
}

// Owner returns the scope the instance was created in.
func (b *Base) Owner() any {
	if b.handle == nil {
		return nil
	}
	return b.handle.owner
}

// Recompute discards the cached value so Compute runs again on the next
// read. See Handle.Recompute.
func (b *Base) Recompute() {
	if b.handle != nil {
		b.handle.Recompute()
	}
}

// Definition is a registered helper. It is immutable once registered.
type Definition struct {
	name    string
	kind    Kind
	fn      Func
	factory func() Helper
}

// Functional defines a stateless helper.
func Functional(fn Func) Definition {
	return Definition{kind: KindFunctional, fn: fn}
}

// Stateful defines a helper whose instances are built by factory.
func Stateful(factory func() Helper) Definition {
	return Definition{kind: KindStateful, factory: factory}
}

// Name returns the registered name.
func (d *Definition) Name() string {
	return d.name
}

// Kind returns the definition's tag.
func (d *Definition) Kind() Kind {
	return d.kind
}
