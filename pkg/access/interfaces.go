package access

import (
	"fmt"
	"math"

	"github.com/bisegni/visdata/pkg/convert"
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/measures"
	"github.com/bisegni/visdata/pkg/meta"
	"github.com/bisegni/visdata/pkg/selection"
)

// ConstAccessor is the read-only view of one chunk. Every slice and cube
// returned is owned by the accessor and stays valid until the iterator
// advances; callers must copy what they keep.
type ConstAccessor interface {
	NRow() int
	// NChannel and NPol are the selected channel and polarisation counts.
	NChannel() int
	NPol() int

	Visibility() (*database.Cube[complex64], error)
	Flag() (*database.Cube[bool], error)
	Noise() (*database.Cube[complex64], error)

	UVW() [][3]float64
	RotatedUVW(tangent measures.Direction) ([][3]float64, error)
	UVWDelay(tangent, imageCentre measures.Direction) ([]float64, error)

	Frequency() ([]float64, error)
	Velocity() ([]float64, error)
	Time() float64
	Stokes() ([]measures.Stokes, error)

	Antenna1() []int
	Antenna2() []int
	Feed1() []int
	Feed2() []int
	FeedPA1() ([]float64, error)
	FeedPA2() ([]float64, error)
	PointingDir1() ([]measures.Direction, error)
	PointingDir2() ([]measures.Direction, error)
	DishPointing1() ([]measures.Direction, error)
	DishPointing2() ([]measures.Direction, error)
}

// DataAccessor adds write access to visibilities and flags. Changes are
// kept in the accessor until written back by a WriteBackIterator.
type DataAccessor interface {
	ConstAccessor
	RWVisibility() (*database.Cube[complex64], error)
	RWFlag() (*database.Cube[bool], error)
}

// TableInfo gives access to the dataset behind an iterator.
type TableInfo interface {
	Table() database.Table
	Info() *meta.Info
}

// SelectorHolder gives access to the selection of an iterator.
type SelectorHolder interface {
	Selector() *selection.Selector
}

// ConverterHolder gives access to the conversion policy of an iterator.
type ConverterHolder interface {
	Converter() *convert.Converter
}

type tableHolder struct {
	table database.Table
	info  *meta.Info
}

func (h tableHolder) Table() database.Table {
	return h.table
}

func (h tableHolder) Info() *meta.Info {
	return h.info
}

type selectorHolder struct {
	sel *selection.Selector
}

func (h selectorHolder) Selector() *selection.Selector {
	return h.sel
}

type converterHolder struct {
	conv *convert.Converter
}

func (h converterHolder) Converter() *convert.Converter {
	return h.conv
}

// Options are the iteration settings of a data source. They are copied
// into each iterator when it is created.
type Options struct {
	// MaxChunkSize bounds the number of rows of one chunk.
	MaxChunkSize int
	// UVWCacheSize is the number of rotation machines kept per iterator.
	UVWCacheSize int
	// UVWCacheTolerance is the angle (radians) below which two directions
	// share a rotation machine.
	UVWCacheTolerance float64
	// DataColumn is read unless the selector chooses another column.
	DataColumn string
	// ExtraColumns are other visibility columns served by Accessor.Column.
	ExtraColumns []string
}

func DefaultOptions() Options {
	return Options{
		MaxChunkSize:      math.MaxInt,
		UVWCacheSize:      1,
		UVWCacheTolerance: 1e-6,
		DataColumn:        database.ColData,
	}
}

func (o Options) Validate() error {
	if o.MaxChunkSize <= 0 {
		return fmt.Errorf("max chunk size must be positive, got %d", o.MaxChunkSize)
	}
	if o.UVWCacheSize <= 0 {
		return fmt.Errorf("uvw cache size must be positive, got %d", o.UVWCacheSize)
	}
	if o.UVWCacheTolerance < 0 {
		return fmt.Errorf("uvw cache tolerance must not be negative")
	}
	if o.DataColumn == "" {
		return fmt.Errorf("data column name is empty")
	}
	return nil
}
