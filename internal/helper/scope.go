package helper

import "github.com/aescanero/dago-render-helpers/internal/tracking"

// Scope is the explicit tracking context of one computation. Reads made
// through it become dependencies of the computation.
type Scope struct {
	pass  *Pass
	frame *tracking.Frame
	site  *CallSite

	genAtCompute uint64
}

// Read returns the cell's value and records it as a dependency.
func (s *Scope) Read(c *tracking.Cell) any {
	return s.frame.Read(c)
}

// Write sets the cell's value. Writing a cell this computation already read
// is reported as a tracking diagnostic.
func (s *Scope) Write(c *tracking.Cell, v any) {
	s.frame.Write(c, v)
}

// Eval demands the value of e within this computation.
func (s *Scope) Eval(e Expr) (any, error) {
	if e == nil {
		return nil, nil
	}
	return e.Eval(s)
}

// Frame returns the underlying tracking frame.
func (s *Scope) Frame() *tracking.Frame {
	return s.frame
}

// Site returns the call-site being computed, nil at the root of a pass.
func (s *Scope) Site() *CallSite {
	return s.site
}

// Owner returns the owner the pass was started with.
func (s *Scope) Owner() any {
	if s.pass == nil {
		return nil
	}
	return s.pass.owner
}

// Pass returns the rendering pass.
func (s *Scope) Pass() *Pass {
	return s.pass
}

func (s *Scope) engine() *Engine {
	return s.pass.engine
}

func (s *Scope) describe() string {
	if s.site == nil {
		return "root"
	}
	return s.site.String()
}
