package helper

import (
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Teardown destroys site and every call-site nested in its arguments,
// children first. Stateful instances run WillTeardown then Teardown, whether
// or not their value was ever read, and any queued recompute for them is
// dropped. Hook errors are collected; the remaining call-sites are still
// torn down.
//
// Tearing down a call-site twice is a LifecycleError in strict mode and a
// logged no-op otherwise. Release hooks never run twice.
func (e *Engine) Teardown(site *CallSite) error {
	var result *multierror.Error
	e.teardown(site, &result)
	return result.ErrorOrNil()
}

// TeardownAll tears down several call-sites in order.
func (e *Engine) TeardownAll(sites []*CallSite) error {
	var result *multierror.Error
	for _, site := range sites {
		e.teardown(site, &result)
	}
	return result.ErrorOrNil()
}

func (e *Engine) teardown(site *CallSite, result **multierror.Error) {
	if site.destroyed {
		if err := e.duplicateTeardown(site.name, site.String()); err != nil {
			*result = multierror.Append(*result, err)
		}
		return
	}

	for _, child := range site.CallSites() {
		e.teardown(child, result)
	}

	site.destroyed = true
	if h := e.instances[site]; h != nil {
		if err := e.destroyInstance(h); err != nil {
			*result = multierror.Append(*result, err)
		}
	}
	delete(e.instances, site)
	delete(e.caches, site)

	e.logger.Debug("call-site torn down", zap.String("call_site", site.String()))
}
