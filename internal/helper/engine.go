package helper

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// Options configures an Engine.
type Options struct {
	// StrictTracking fails a computation that writes a tracked value it
	// read. When false the condition is logged and collected as a diagnostic.
	StrictTracking bool

	// StrictLifecycle fails a duplicate teardown loudly. When false the
	// duplicate is logged and ignored.
	StrictLifecycle bool
}

// DefaultOptions returns the development-oriented defaults.
func DefaultOptions() Options {
	return Options{
		StrictTracking:  false,
		StrictLifecycle: true,
	}
}

// cacheEntry is the last computed value of a call-site.
type cacheEntry struct {
	value any
	deps  tracking.Deps
	inst  *Handle
	gen   uint64
}

// valid checks both invalidation paths: dependency revisions and the
// manual recompute generation.
func (c *cacheEntry) valid(inst *Handle) bool {
	if c.inst != inst {
		return false
	}
	if c.deps.Stale() {
		return false
	}
	if inst != nil && inst.gen.Revision() != c.gen {
		return false
	}
	return true
}

// Engine resolves, evaluates, recomputes and tears down helper call-sites.
//
// An Engine is not safe for concurrent use. Drive it from one goroutine,
// one pass at a time.
type Engine struct {
	registry  *Registry
	opts      Options
	logger    *zap.Logger
	instances map[*CallSite]*Handle
	caches    map[*CallSite]*cacheEntry
	scheduler *Scheduler
	current   *Pass
}

// NewEngine creates an engine over registry.
func NewEngine(registry *Registry, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:  registry,
		opts:      opts,
		logger:    logger,
		instances: make(map[*CallSite]*Handle),
		caches:    make(map[*CallSite]*cacheEntry),
		scheduler: newScheduler(),
	}
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Scheduler returns the engine's scheduler.
func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// OnSchedule sets the callback invoked when a new pass is needed.
func (e *Engine) OnSchedule(fn func()) {
	e.scheduler.onSchedule = fn
}

// Instance returns the live instance bound to site, if any.
func (e *Engine) Instance(site *CallSite) *Handle {
	return e.instances[site]
}

// Resolve resolves the helper named by a call-site.
func (e *Engine) Resolve(name string, ctx Context) (*Definition, error) {
	return e.registry.Resolve(name, ctx)
}

// Pass is one rendering pass. All evaluations of a pass see the tracked
// state as it was when they ran; recomputes requested during the pass never
// change values already produced.
type Pass struct {
	id     string
	engine *Engine
	owner  any
	root   *tracking.Frame
	ended  bool

	evaluations int
	computes    int
	diagnostics []error
	rerender    bool
}

// PassResult summarizes a finished pass.
type PassResult struct {
	ID          string
	Evaluations int
	Computes    int
	Diagnostics []error
	// Rerender is set when a recompute was requested during the pass.
	Rerender bool
}

// Begin starts a pass. Recomputes requested since the previous pass take
// effect now; those whose instance was torn down were already dropped.
func (e *Engine) Begin(owner any) (*Pass, error) {
	if e.current != nil {
		return nil, ErrPassInProgress
	}

	for _, h := range e.scheduler.flush() {
		if h.destroyed {
			continue
		}
		h.gen.Touch()
	}

	p := &Pass{
		id:     uuid.NewString(),
		engine: e,
		owner:  owner,
		root:   tracking.NewFrame("root"),
	}
	e.current = p
	return p, nil
}

// ID returns the pass id.
func (p *Pass) ID() string {
	return p.id
}

// Owner returns the pass owner.
func (p *Pass) Owner() any {
	return p.owner
}

// Scope returns the root scope of the pass.
func (p *Pass) Scope() *Scope {
	return &Scope{pass: p, frame: p.root}
}

// Evaluate demands the value of e at the root of the pass.
func (p *Pass) Evaluate(e Expr) (any, error) {
	if p.ended {
		return nil, ErrNoPass
	}
	return p.Scope().Eval(e)
}

// End finishes the pass.
func (p *Pass) End() PassResult {
	if !p.ended {
		p.ended = true
		p.root.Close()
		if p.engine.current == p {
			p.engine.current = nil
		}
		if p.rerender {
			p.engine.scheduler.request()
		}
	}
	return PassResult{
		ID:          p.id,
		Evaluations: p.evaluations,
		Computes:    p.computes,
		Diagnostics: p.diagnostics,
		Rerender:    p.rerender,
	}
}

// diagnose records a self-write. It fails the computation in strict mode.
func (p *Pass) diagnose(where string, def *Definition, d tracking.Diagnostic) error {
	err := &TrackingError{Name: def.name, Site: where, Cell: d.Cell}
	if p.engine.opts.StrictTracking {
		return err
	}
	p.engine.logger.Warn("helper wrote a tracked value it read",
		zap.String("helper", def.name),
		zap.String("call_site", where),
		zap.String("cell", d.Cell),
		zap.String("pass_id", p.id),
	)
	p.diagnostics = append(p.diagnostics, err)
	return nil
}

// Run is a convenience wrapper: one pass evaluating e.
func (e *Engine) Run(owner any, expr Expr) (any, PassResult, error) {
	p, err := e.Begin(owner)
	if err != nil {
		return nil, PassResult{}, err
	}
	v, err := p.Evaluate(expr)
	res := p.End()
	if err != nil {
		return nil, res, fmt.Errorf("pass %s: %w", res.ID, err)
	}
	return v, res, nil
}
