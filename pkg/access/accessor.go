package access

import (
	"fmt"
	"sync"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/measures"
)

// Accessor exposes the current chunk of an Iterator. Each quantity is
// computed on first use and cached until the iterator moves to another
// chunk (or, for spectral quantities, another data descriptor).
//
// Visibility, RWVisibility, Flag and RWFlag may be called from several
// goroutines while the iterator does not move. Other quantities must be
// filled first, see Prewarm.
type Accessor struct {
	it *Iterator

	chunk    Generation
	spectral Generation

	mu   sync.Mutex
	vis  *Cell[*database.Cube[complex64]]
	flag *Cell[*database.Cube[bool]]
	// visDirty and flagDirty are set by RWVisibility and RWFlag. They only
	// count while the matching cell is still valid.
	visDirty  bool
	flagDirty bool

	noise     *Cell[*database.Cube[complex64]]
	uvw       *Cell[[][3]float64]
	time      *Cell[float64]
	ant1      *Cell[[]int]
	ant2      *Cell[[]int]
	feed1     *Cell[[]int]
	feed2     *Cell[[]int]
	feedPA1   *Cell[[]float64]
	feedPA2   *Cell[[]float64]
	pointing1 *Cell[[]measures.Direction]
	pointing2 *Cell[[]measures.Direction]
	dish1     *Cell[[]measures.Direction]
	dish2     *Cell[[]measures.Direction]

	rotated        *Cell[[][3]float64]
	rotatedTangent measures.Direction
	delay          *Cell[[]float64]
	delayKey       [2]measures.Direction

	frequency *Cell[[]float64]
	velocity  *Cell[[]float64]
	stokes    *Cell[[]measures.Stokes]

	columns map[string]*Cell[*database.Cube[complex64]]
}

func newAccessor(it *Iterator) *Accessor {
	a := &Accessor{it: it, columns: make(map[string]*Cell[*database.Cube[complex64]])}
	a.vis = NewCell[*database.Cube[complex64]](&a.chunk)
	a.flag = NewCell[*database.Cube[bool]](&a.chunk)
	a.noise = NewCell[*database.Cube[complex64]](&a.chunk)
	a.uvw = NewCell[[][3]float64](&a.chunk)
	a.time = NewCell[float64](&a.chunk)
	a.ant1 = NewCell[[]int](&a.chunk)
	a.ant2 = NewCell[[]int](&a.chunk)
	a.feed1 = NewCell[[]int](&a.chunk)
	a.feed2 = NewCell[[]int](&a.chunk)
	a.feedPA1 = NewCell[[]float64](&a.chunk)
	a.feedPA2 = NewCell[[]float64](&a.chunk)
	a.pointing1 = NewCell[[]measures.Direction](&a.chunk)
	a.pointing2 = NewCell[[]measures.Direction](&a.chunk)
	a.dish1 = NewCell[[]measures.Direction](&a.chunk)
	a.dish2 = NewCell[[]measures.Direction](&a.chunk)
	a.rotated = NewCell[[][3]float64](&a.chunk)
	a.delay = NewCell[[]float64](&a.chunk)
	a.frequency = NewCell[[]float64](&a.spectral)
	a.velocity = NewCell[[]float64](&a.spectral)
	a.stokes = NewCell[[]measures.Stokes](&a.spectral)
	return a
}

func (a *Accessor) NRow() int {
	return a.it.nRows
}

func (a *Accessor) NChannel() int {
	return a.it.nChanSel
}

func (a *Accessor) NPol() int {
	return a.it.nPolSel
}

// Visibility returns the nRow x nChannel x nPol visibility cube of the
// data column.
func (a *Accessor) Visibility() (*database.Cube[complex64], error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visibility()
}

func (a *Accessor) visibility() (*database.Cube[complex64], error) {
	return a.vis.Value(func(c **database.Cube[complex64]) error {
		return a.it.fillCube(c, a.it.dataColumn)
	})
}

// RWVisibility is Visibility for callers about to modify the cube. A
// WriteBackIterator writes the changes to the table when it moves on.
func (a *Accessor) RWVisibility() (*database.Cube[complex64], error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.visibility()
	if err != nil {
		return nil, err
	}
	a.visDirty = true
	return c, nil
}

// Flag returns the flag cube. Rows flagged through FLAG_ROW are fully
// flagged.
func (a *Accessor) Flag() (*database.Cube[bool], error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flag.Value(a.it.fillFlag)
}

func (a *Accessor) RWFlag() (*database.Cube[bool], error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.flag.Value(a.it.fillFlag)
	if err != nil {
		return nil, err
	}
	a.flagDirty = true
	return c, nil
}

// refresh drops the visibility or flag cube after it was written to the
// table, so that the next read sees the table contents.
func (a *Accessor) refresh(vis, flag bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if vis {
		a.vis.Invalidate()
		a.visDirty = false
	}
	if flag {
		a.flag.Invalidate()
		a.flagDirty = false
	}
}

// takeDirty reports which cubes were modified through RWVisibility and
// RWFlag for the current chunk and resets both marks.
func (a *Accessor) takeDirty() (vis, flag bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	vis = a.visDirty && a.vis.IsValid()
	flag = a.flagDirty && a.flag.IsValid()
	a.visDirty, a.flagDirty = false, false
	return vis, flag
}

// Noise returns the per element noise, complex(sigma, sigma).
func (a *Accessor) Noise() (*database.Cube[complex64], error) {
	return a.noise.Value(a.it.fillNoise)
}

// Column returns another visibility column of the chunk. Only the data
// column and the columns configured as extra columns are available.
func (a *Accessor) Column(name string) (*database.Cube[complex64], error) {
	if name == a.it.dataColumn {
		return a.Visibility()
	}
	if !a.it.hasExtraColumn(name) {
		return nil, fmt.Errorf("column %s is not part of the iteration", name)
	}
	cell, ok := a.columns[name]
	if !ok {
		cell = NewCell[*database.Cube[complex64]](&a.chunk)
		a.columns[name] = cell
	}
	return cell.Value(func(c **database.Cube[complex64]) error {
		return a.it.fillCube(c, name)
	})
}

func (a *Accessor) UVW() [][3]float64 {
	v, _ := a.uvw.Value(func(out *[][3]float64) error {
		*out = (*out)[:0]
		for _, r := range a.it.chunkRows() {
			*out = append(*out, r.row.UVW)
		}
		return nil
	})
	return v
}

// RotatedUVW returns the uvw coordinates rotated to the tangent point.
func (a *Accessor) RotatedUVW(tangent measures.Direction) ([][3]float64, error) {
	if a.rotated.IsValid() && a.rotatedTangent != tangent {
		a.rotated.Invalidate()
	}
	return a.rotated.Value(func(out *[][3]float64) error {
		rotated, err := a.it.uvwCache.Rotate(a, tangent)
		if err != nil {
			return err
		}
		*out = rotated
		a.rotatedTangent = tangent
		return nil
	})
}

// UVWDelay returns per row the delay (metres) to apply after rotating to
// tangent to image at imageCentre.
func (a *Accessor) UVWDelay(tangent, imageCentre measures.Direction) ([]float64, error) {
	key := [2]measures.Direction{tangent, imageCentre}
	if a.delay.IsValid() && a.delayKey != key {
		a.delay.Invalidate()
	}
	return a.delay.Value(func(out *[]float64) error {
		d, err := a.it.uvwCache.Delays(a, tangent, imageCentre)
		if err != nil {
			return err
		}
		*out = d
		a.delayKey = key
		return nil
	})
}

// Frequency returns the channel frequencies in the converter's frame and
// unit.
func (a *Accessor) Frequency() ([]float64, error) {
	return a.frequency.Value(a.it.fillFrequency)
}

// Velocity returns the radio velocity of each channel.
func (a *Accessor) Velocity() ([]float64, error) {
	return a.velocity.Value(a.it.fillVelocity)
}

// Time returns the time of the chunk in the converter's epoch frame.
func (a *Accessor) Time() float64 {
	v, _ := a.time.Value(func(t *float64) error {
		rows := a.it.chunkRows()
		if len(rows) == 0 {
			*t = 0
			return nil
		}
		*t = a.it.conv.Epoch(rows[0].row.Time)
		return nil
	})
	return v
}

func (a *Accessor) Stokes() ([]measures.Stokes, error) {
	return a.stokes.Value(a.it.fillStokes)
}

func (a *Accessor) intColumn(cell *Cell[[]int], get func(*database.Row) int) []int {
	v, _ := cell.Value(func(out *[]int) error {
		*out = (*out)[:0]
		for _, r := range a.it.chunkRows() {
			*out = append(*out, get(r.row))
		}
		return nil
	})
	return v
}

func (a *Accessor) Antenna1() []int {
	return a.intColumn(a.ant1, func(r *database.Row) int { return r.Antenna1 })
}

func (a *Accessor) Antenna2() []int {
	return a.intColumn(a.ant2, func(r *database.Row) int { return r.Antenna2 })
}

func (a *Accessor) Feed1() []int {
	return a.intColumn(a.feed1, func(r *database.Row) int { return r.Feed1 })
}

func (a *Accessor) Feed2() []int {
	return a.intColumn(a.feed2, func(r *database.Row) int { return r.Feed2 })
}

// FeedPA1 returns the position angle of the first feed of each row: the
// beam position angle plus the parallactic angle of the antenna.
func (a *Accessor) FeedPA1() ([]float64, error) {
	return a.feedPA1.Value(func(out *[]float64) error {
		return a.it.fillFeedPA(out, a.Antenna1(), a.Feed1())
	})
}

func (a *Accessor) FeedPA2() ([]float64, error) {
	return a.feedPA2.Value(func(out *[]float64) error {
		return a.it.fillFeedPA(out, a.Antenna2(), a.Feed2())
	})
}

// PointingDir1 returns the pointing direction of the first feed of each
// row, including the beam offset.
func (a *Accessor) PointingDir1() ([]measures.Direction, error) {
	return a.pointing1.Value(func(out *[]measures.Direction) error {
		return a.it.fillPointing(out, a.Antenna1(), a.Feed1())
	})
}

func (a *Accessor) PointingDir2() ([]measures.Direction, error) {
	return a.pointing2.Value(func(out *[]measures.Direction) error {
		return a.it.fillPointing(out, a.Antenna2(), a.Feed2())
	})
}

// DishPointing1 returns the pointing of the dish centre of the first
// antenna of each row.
func (a *Accessor) DishPointing1() ([]measures.Direction, error) {
	return a.dish1.Value(func(out *[]measures.Direction) error {
		return a.it.fillDishPointing(out, a.Antenna1())
	})
}

func (a *Accessor) DishPointing2() ([]measures.Direction, error) {
	return a.dish2.Value(func(out *[]measures.Direction) error {
		return a.it.fillDishPointing(out, a.Antenna2())
	})
}

// Prewarm fills every cached quantity except the rotated uvw, after which
// the accessor can be read from several goroutines.
func (a *Accessor) Prewarm() error {
	a.UVW()
	a.Time()
	a.Antenna1()
	a.Antenna2()
	a.Feed1()
	a.Feed2()
	steps := []func() error{
		func() error { _, err := a.Visibility(); return err },
		func() error { _, err := a.Flag(); return err },
		func() error { _, err := a.Noise(); return err },
		func() error { _, err := a.Frequency(); return err },
		func() error { _, err := a.Stokes(); return err },
		func() error { _, err := a.FeedPA1(); return err },
		func() error { _, err := a.FeedPA2(); return err },
		func() error { _, err := a.PointingDir1(); return err },
		func() error { _, err := a.PointingDir2(); return err },
		func() error { _, err := a.DishPointing1(); return err },
		func() error { _, err := a.DishPointing2(); return err },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	for _, name := range a.it.opts.ExtraColumns {
		if _, err := a.Column(name); err != nil {
			return err
		}
	}
	return nil
}
