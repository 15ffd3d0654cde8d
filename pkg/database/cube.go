package database

import "fmt"

// Cube is a rows x channels x polarisations array, polarisation fastest.
type Cube[T any] struct {
	NRow  int
	NChan int
	NPol  int
	Data  []T
}

// NewCube allocates a zeroed cube.
func NewCube[T any](nRow, nChan, nPol int) *Cube[T] {
	return &Cube[T]{NRow: nRow, NChan: nChan, NPol: nPol, Data: make([]T, nRow*nChan*nPol)}
}

// Shape returns the three dimensions.
func (c *Cube[T]) Shape() (int, int, int) {
	return c.NRow, c.NChan, c.NPol
}

// HasShape reports whether the cube has the given dimensions.
func (c *Cube[T]) HasShape(nRow, nChan, nPol int) bool {
	return c.NRow == nRow && c.NChan == nChan && c.NPol == nPol
}

// Resize changes the shape, reusing storage when possible. Contents are
// zeroed whenever the shape changes. It reports whether the shape changed.
func (c *Cube[T]) Resize(nRow, nChan, nPol int) bool {
	if c.HasShape(nRow, nChan, nPol) {
		return false
	}
	n := nRow * nChan * nPol
	if cap(c.Data) >= n {
		c.Data = c.Data[:n]
		var zero T
		for i := range c.Data {
			c.Data[i] = zero
		}
	} else {
		c.Data = make([]T, n)
	}
	c.NRow, c.NChan, c.NPol = nRow, nChan, nPol
	return true
}

// Index returns the flat offset of an element.
func (c *Cube[T]) Index(row, ch, pol int) int {
	return (row*c.NChan+ch)*c.NPol + pol
}

func (c *Cube[T]) At(row, ch, pol int) T {
	return c.Data[c.Index(row, ch, pol)]
}

func (c *Cube[T]) Set(row, ch, pol int, v T) {
	c.Data[c.Index(row, ch, pol)] = v
}

// RowSlice returns the NChan*NPol elements of one row, sharing storage.
func (c *Cube[T]) RowSlice(row int) []T {
	n := c.NChan * c.NPol
	return c.Data[row*n : (row+1)*n]
}

// Fill sets every element to v.
func (c *Cube[T]) Fill(v T) {
	for i := range c.Data {
		c.Data[i] = v
	}
}

// Clone returns a deep copy.
func (c *Cube[T]) Clone() *Cube[T] {
	out := &Cube[T]{NRow: c.NRow, NChan: c.NChan, NPol: c.NPol}
	out.Data = append([]T(nil), c.Data...)
	return out
}

// CopyFrom copies the contents of o, which must have the same shape.
func (c *Cube[T]) CopyFrom(o *Cube[T]) error {
	if !c.HasShape(o.NRow, o.NChan, o.NPol) {
		return fmt.Errorf("cannot copy %dx%dx%d cube into %dx%dx%d", o.NRow, o.NChan, o.NPol, c.NRow, c.NChan, c.NPol)
	}
	copy(c.Data, o.Data)
	return nil
}

func (c *Cube[T]) String() string {
	return fmt.Sprintf("Cube(%dx%dx%d)", c.NRow, c.NChan, c.NPol)
}
