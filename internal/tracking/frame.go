package tracking

import "fmt"

// Deps is the dependency set captured by one computation: every cell read,
// paired with the revision observed at read time.
type Deps struct {
	cells []*Cell
	revs  map[*Cell]uint64
}

// Len returns the number of dependencies.
func (d Deps) Len() int {
	return len(d.cells)
}

// Stale reports whether any dependency has been written since capture.
func (d Deps) Stale() bool {
	for _, c := range d.cells {
		if c.rev != d.revs[c] {
			return true
		}
	}
	return false
}

// Names returns the dependency names in read order.
func (d Deps) Names() []string {
	names := make([]string, len(d.cells))
	for i, c := range d.cells {
		names[i] = c.name
	}
	return names
}

// Contains reports whether the cell is a member of the set.
func (d Deps) Contains(c *Cell) bool {
	_, ok := d.revs[c]
	return ok
}

// Diagnostic describes a cell written by the same computation that read it.
type Diagnostic struct {
	Cell  string
	Frame string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s read and then written by %s", d.Cell, d.Frame)
}

// Frame collects the reads of a single computation.
type Frame struct {
	label       string
	deps        Deps
	diagnostics []Diagnostic
	closed      bool
}

// NewFrame opens a tracking frame. The label names the computation in
// diagnostics.
func NewFrame(label string) *Frame {
	return &Frame{
		label: label,
		deps:  Deps{revs: make(map[*Cell]uint64)},
	}
}

// Label returns the frame's label.
func (f *Frame) Label() string {
	return f.label
}

// Read returns the cell's value and records it as a dependency.
// A nil frame reads without tracking.
func (f *Frame) Read(c *Cell) any {
	if f != nil {
		f.record(c, c.rev)
	}
	return c.value
}

// Write sets the cell's value. Writing a cell this frame has already read
// records a diagnostic; the write still happens.
func (f *Frame) Write(c *Cell, v any) {
	if f != nil && f.deps.Contains(c) {
		f.diagnostics = append(f.diagnostics, Diagnostic{Cell: c.name, Frame: f.label})
	}
	c.Set(v)
}

// Merge adds a dependency set captured by a nested computation whose value
// this frame consumed.
func (f *Frame) Merge(d Deps) {
	if f == nil {
		return
	}
	for _, c := range d.cells {
		f.record(c, d.revs[c])
	}
}

// ConsumeAt records a read of c as observed at rev. A later write to c, or one
// that already happened after rev, leaves the captured dependencies stale.
func (f *Frame) ConsumeAt(c *Cell, rev uint64) {
	if f != nil {
		f.record(c, rev)
	}
}

func (f *Frame) record(c *Cell, rev uint64) {
	if f.closed {
		return
	}
	// First observation wins; it is the oldest revision this frame saw
	if _, ok := f.deps.revs[c]; ok {
		return
	}
	f.deps.cells = append(f.deps.cells, c)
	f.deps.revs[c] = rev
}

// Diagnostics returns the self-write diagnostics recorded so far.
func (f *Frame) Diagnostics() []Diagnostic {
	return f.diagnostics
}

// Close ends the frame and returns its dependency set. Reads after Close
// are not recorded.
func (f *Frame) Close() Deps {
	f.closed = true
	return f.deps
}
