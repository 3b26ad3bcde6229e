package helper

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// evaluate returns the value of site, recomputing only when the cached
// value is stale. The consumed dependencies are merged into parent.
func (e *Engine) evaluate(p *Pass, site *CallSite, parent *tracking.Frame) (any, error) {
	if p.ended || e.current != p {
		return nil, ErrNoPass
	}
	if site.destroyed {
		return nil, &LifecycleError{Name: site.name, Site: site.String(), Reason: "call-site evaluated after teardown"}
	}
	p.evaluations++

	inst := e.instances[site]
	if entry := e.caches[site]; entry != nil && entry.valid(inst) {
		parent.Merge(entry.deps)
		if inst != nil {
			parent.ConsumeAt(inst.gen, entry.gen)
		}
		return entry.value, nil
	}

	frame := tracking.NewFrame(site.String())
	scope := &Scope{pass: p, frame: frame, site: site}

	var (
		value any
		def   *Definition
		err   error
	)
	switch site.kind {
	case siteCurry:
		value, def, err = e.curry(scope, site)
	case siteInvoke:
		var ref *Ref
		ref, err = e.callee(scope, site)
		if err == nil {
			def = ref.def
			inst, value, err = e.compute(scope, site, def, ref)
		}
	default:
		def, err = e.resolveSite(site)
		if err == nil {
			inst, value, err = e.compute(scope, site, def, nil)
		}
	}
	deps := frame.Close()
	if err != nil {
		return nil, err
	}

	for _, d := range frame.Diagnostics() {
		if derr := p.diagnose(site.String(), def, d); derr != nil {
			return nil, derr
		}
	}

	entry := &cacheEntry{value: value, deps: deps, inst: inst}
	if inst != nil {
		entry.gen = scope.genAtCompute
	}
	e.caches[site] = entry

	parent.Merge(deps)
	if inst != nil {
		parent.ConsumeAt(inst.gen, entry.gen)
	}
	return value, nil
}

// resolveSite resolves a literal call-site once; definitions never change.
func (e *Engine) resolveSite(site *CallSite) (*Definition, error) {
	if site.def != nil {
		return site.def, nil
	}
	def, err := e.registry.Resolve(site.name, site.context)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", site, err)
	}
	site.def = def
	return def, nil
}

// callee evaluates the invoked expression. Only helper references are
// invocable; a string must go through Dynamic.
func (e *Engine) callee(s *Scope, site *CallSite) (*Ref, error) {
	v, err := s.Eval(site.callee)
	if err != nil {
		return nil, err
	}
	switch ref := v.(type) {
	case *Ref:
		return ref, nil
	case string:
		return nil, &DynamicReferenceDisallowedError{Value: ref, Site: site.String()}
	default:
		return nil, fmt.Errorf("%s: %w: got %T", site, ErrNotHelperReference, v)
	}
}

// curry builds the reference a curry call-site produces. Bound arguments
// are evaluated here, inside the curry site's frame.
func (e *Engine) curry(s *Scope, site *CallSite) (*Ref, *Definition, error) {
	var base *Ref
	if site.name != "" {
		def, err := e.resolveSite(site)
		if err != nil {
			return nil, nil, err
		}
		base = &Ref{def: def}
	} else {
		ref, err := e.callee(s, site)
		if err != nil {
			return nil, nil, err
		}
		base = ref
	}

	args := newArgs(s, base.def.name, site.positional, site.named, nil)
	positional := args.Positional.Values()
	named := args.Named.Map()
	if err := args.Err(); err != nil {
		return nil, nil, err
	}
	return base.With(positional, named), base.def, nil
}

// compute runs the helper for site with a fresh argument snapshot.
func (e *Engine) compute(s *Scope, site *CallSite, def *Definition, bound *Ref) (*Handle, any, error) {
	var inst *Handle
	if def.kind == KindStateful {
		var err error
		inst, err = e.instanceFor(site, def, s.pass.owner)
		if err != nil {
			return nil, nil, err
		}
		s.genAtCompute = inst.gen.Revision()
	} else if old := e.instances[site]; old != nil {
		// The site switched from a stateful helper to a functional one.
		if err := e.destroyInstance(old); err != nil {
			return nil, nil, err
		}
	}

	args := newArgs(s, def.name, site.positional, site.named, bound)
	s.pass.computes++

	var (
		v   any
		err error
	)
	if inst != nil {
		v, err = inst.helper.Compute(s, args)
	} else {
		v, err = def.fn(s, args)
	}
	if aerr := args.Err(); aerr != nil && err == nil {
		err = aerr
	}
	if err != nil {
		e.logger.Debug("helper compute failed",
			zap.String("helper", def.name),
			zap.String("call_site", site.String()),
			zap.Error(err),
		)
		return inst, nil, fmt.Errorf("helper %q at %s: %w", def.name, site, err)
	}
	return inst, v, nil
}
