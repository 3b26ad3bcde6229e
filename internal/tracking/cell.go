package tracking

// Cell is a tracked value.
//
// Cells are not safe for concurrent use; a rendering session owns its cells
// and drives them from a single goroutine.
type Cell struct {
	name  string
	value any
	rev   uint64
	clock *Clock
	set   bool
}

// NewCell creates a detached cell with its own clock.
func NewCell(name string, initial any) *Cell {
	c := &Cell{name: name, clock: NewClock()}
	c.value = initial
	c.set = true
	c.rev = c.clock.Next()
	return c
}

// Name returns the cell's name, used in diagnostics.
func (c *Cell) Name() string {
	return c.name
}

// Revision returns the revision of the last write.
func (c *Cell) Revision() uint64 {
	return c.rev
}

// Peek returns the value without recording a dependency.
func (c *Cell) Peek() any {
	return c.value
}

// Set writes the value and advances the revision. Writing an equal value
// still advances the revision.
func (c *Cell) Set(v any) {
	c.value = v
	c.set = true
	c.rev = c.clock.Next()
}

// Touch advances the revision without changing the value.
func (c *Cell) Touch() {
	c.rev = c.clock.Next()
}
