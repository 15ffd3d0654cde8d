package access

// Generation is a counter shared by a group of cells. Invalidating the
// generation invalidates every cell bound to it without touching them.
type Generation struct {
	token uint64
}

// Invalidate starts a new generation.
func (g *Generation) Invalidate() {
	g.token++
}

// Token returns the current generation.
func (g *Generation) Token() uint64 {
	return g.token
}

// Cell holds a lazily computed value. The value is valid while the cell
// was filled during the current generation and has not been invalidated
// on its own since. Storage is kept across fills so that cubes and slices
// can be reused by the fill function.
type Cell[T any] struct {
	gen   *Generation
	token uint64
	valid bool
	value T
	fills int
}

// NewCell binds a cell to a generation.
func NewCell[T any](gen *Generation) *Cell[T] {
	return &Cell[T]{gen: gen}
}

func (c *Cell[T]) IsValid() bool {
	return c.valid && c.token == c.gen.Token()
}

// Invalidate invalidates this cell only.
func (c *Cell[T]) Invalidate() {
	c.valid = false
}

// Value returns the cached value, calling fill first when the cell is not
// valid. fill receives the previous value to update in place. A failed
// fill leaves the cell invalid.
func (c *Cell[T]) Value(fill func(*T) error) (T, error) {
	if c.IsValid() {
		return c.value, nil
	}
	if err := fill(&c.value); err != nil {
		c.valid = false
		var zero T
		return zero, err
	}
	c.token = c.gen.Token()
	c.valid = true
	c.fills++
	return c.value, nil
}

// Fills returns how many times the cell has been filled.
func (c *Cell[T]) Fills() int {
	return c.fills
}
