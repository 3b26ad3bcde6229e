package helper

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// Handle is a live stateful helper instance.
type Handle struct {
	id     string
	def    *Definition
	helper Helper
	site   *CallSite
	owner  any
	engine *Engine

	// gen is bumped by Recompute; consumers record it like any other read.
	gen *tracking.Cell

	initialized bool
	tearingDown bool
	destroyed   bool
}

// ID returns the instance id.
func (h *Handle) ID() string {
	return h.id
}

// Definition returns the instance's definition.
func (h *Handle) Definition() *Definition {
	return h.def
}

// Helper returns the user helper value.
func (h *Handle) Helper() Helper {
	return h.helper
}

// Site returns the owning call-site, nil for standalone instances.
func (h *Handle) Site() *CallSite {
	return h.site
}

// Owner returns the scope the instance was created in.
func (h *Handle) Owner() any {
	return h.owner
}

// Destroyed reports whether teardown has completed.
func (h *Handle) Destroyed() bool {
	return h.destroyed
}

// Generation returns the manual recompute generation.
func (h *Handle) Generation() uint64 {
	return h.gen.Revision()
}

func (h *Handle) describe() string {
	if h.site == nil {
		return "standalone#" + h.id
	}
	return h.site.String()
}

// Recompute discards the cached value without running Initialize or
// Teardown again.
//
// Inside a pass the instance is invalidated at once, so the rest of the pass
// sees it, and another pass is requested. Outside a pass the recompute is
// queued and applied when the next pass begins. Recomputes on a torn-down
// instance are dropped.
func (h *Handle) Recompute() {
	e := h.engine
	if h.destroyed || h.tearingDown {
		e.logger.Debug("dropping recompute for torn down helper",
			zap.String("helper", h.def.name),
			zap.String("instance_id", h.id),
		)
		return
	}
	if p := e.current; p != nil {
		h.gen.Touch()
		p.rerender = true
		return
	}
	e.scheduler.enqueue(h)
}

type initHook func(h *Handle) error

// baseInit binds the engine state. It always runs first.
func baseInit(h *Handle) error {
	h.initialized = true
	if b, ok := h.helper.(binder); ok {
		b.bindHandle(h)
	}
	return nil
}

func userInit(h *Handle) error {
	if i, ok := h.helper.(Initializer); ok {
		return i.Initialize(h)
	}
	return nil
}

// construct builds and initializes an instance of a stateful definition.
func (e *Engine) construct(def *Definition, site *CallSite, owner any) (*Handle, error) {
	if def.kind != KindStateful {
		return nil, fmt.Errorf("helper %q: %w", def.name, ErrNotStateful)
	}
	hv := def.factory()
	if hv == nil {
		return nil, fmt.Errorf("helper %q: factory returned nil", def.name)
	}

	h := &Handle{
		id:     uuid.NewString(),
		def:    def,
		helper: hv,
		site:   site,
		owner:  owner,
		engine: e,
	}
	h.gen = tracking.NewCell(h.describe()+"/generation", nil)

	for _, hook := range []initHook{baseInit, userInit} {
		if err := hook(h); err != nil {
			return nil, fmt.Errorf("initialize helper %q at %s: %w", def.name, h.describe(), err)
		}
	}

	if !h.initialized {
		return nil, &MissingSuperInitError{Name: def.name, Site: h.describe()}
	}
	if b, ok := hv.(binder); ok && b.boundHandle() != h {
		return nil, &MissingSuperInitError{Name: def.name, Site: h.describe()}
	}

	e.logger.Debug("helper instance created",
		zap.String("helper", def.name),
		zap.String("call_site", h.describe()),
		zap.String("instance_id", h.id),
	)
	return h, nil
}

// instanceFor returns the instance bound to site, creating it on first use.
// An invocation whose reference now names a different definition replaces
// the instance.
func (e *Engine) instanceFor(site *CallSite, def *Definition, owner any) (*Handle, error) {
	if h := e.instances[site]; h != nil {
		if h.def == def {
			return h, nil
		}
		if err := e.destroyInstance(h); err != nil {
			return nil, err
		}
	}

	h, err := e.construct(def, site, owner)
	if err != nil {
		return nil, err
	}
	e.instances[site] = h
	return h, nil
}

// destroyInstance runs the teardown hook chain exactly once.
func (e *Engine) destroyInstance(h *Handle) error {
	if h.destroyed || h.tearingDown {
		return e.duplicateTeardown(h.def.name, h.describe())
	}
	h.tearingDown = true

	var result *multierror.Error
	chain := []func(){
		func() {
			if w, ok := h.helper.(WillTeardowner); ok {
				w.WillTeardown(h)
			}
		},
		func() {
			e.logger.Debug("helper will teardown",
				zap.String("helper", h.def.name),
				zap.String("instance_id", h.id),
			)
		},
		func() {
			if t, ok := h.helper.(Teardowner); ok {
				if err := t.Teardown(h); err != nil {
					result = multierror.Append(result, fmt.Errorf("teardown helper %q at %s: %w", h.def.name, h.describe(), err))
				}
			}
		},
		func() {
			h.destroyed = true
			e.scheduler.cancel(h)
			if h.site != nil && e.instances[h.site] == h {
				delete(e.instances, h.site)
				delete(e.caches, h.site)
			}
		},
	}
	for _, hook := range chain {
		hook()
	}
	return result.ErrorOrNil()
}

func (e *Engine) duplicateTeardown(name, site string) error {
	err := &LifecycleError{Name: name, Site: site, Reason: "teardown invoked more than once"}
	if e.opts.StrictLifecycle {
		e.logger.Error("duplicate helper teardown", zap.String("helper", name), zap.String("call_site", site))
		return err
	}
	e.logger.Warn("ignoring duplicate helper teardown", zap.String("helper", name), zap.String("call_site", site))
	return nil
}

// Standalone is an instance built without a call-site, for host tooling.
type Standalone struct {
	handle *Handle
}

// Build constructs a stateful helper directly. Initialize runs before Build
// returns, so it always precedes the first Compute.
func (e *Engine) Build(name string, owner any) (*Standalone, error) {
	def, err := e.registry.Resolve(name, ContextCall)
	if err != nil {
		return nil, err
	}
	if def.kind != KindStateful {
		return nil, fmt.Errorf("build %q: %w", name, ErrNotStateful)
	}
	h, err := e.construct(def, nil, owner)
	if err != nil {
		return nil, err
	}
	return &Standalone{handle: h}, nil
}

// Handle returns the instance handle.
func (s *Standalone) Handle() *Handle {
	return s.handle
}

// Compute runs the helper once with constant arguments.
func (s *Standalone) Compute(positional []any, named map[string]any) (any, error) {
	h := s.handle
	if h.destroyed {
		return nil, &LifecycleError{Name: h.def.name, Site: h.describe(), Reason: "compute after teardown"}
	}
	p := &Pass{id: uuid.NewString(), engine: h.engine, owner: h.owner, root: tracking.NewFrame("standalone")}
	scope := &Scope{pass: p, frame: tracking.NewFrame(h.describe())}
	args := newArgs(scope, h.def.name, nil, nil, &Ref{def: h.def, positional: positional, named: named})
	v, err := h.helper.Compute(scope, args)
	scope.frame.Close()
	if aerr := args.Err(); aerr != nil && err == nil {
		err = aerr
	}
	if err != nil {
		return nil, fmt.Errorf("helper %q at %s: %w", h.def.name, h.describe(), err)
	}
	for _, d := range scope.frame.Diagnostics() {
		if derr := p.diagnose(h.describe(), h.def, d); derr != nil {
			return nil, derr
		}
	}
	return v, nil
}

// Destroy tears the instance down.
func (s *Standalone) Destroy() error {
	return s.handle.engine.destroyInstance(s.handle)
}
