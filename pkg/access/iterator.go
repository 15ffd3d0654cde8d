// Package access iterates over a visibility table in chunks of rows that
// share a time, a data descriptor and a field, and serves the data and
// derived geometry of each chunk through a lazily filled Accessor.
package access

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bisegni/visdata/pkg/convert"
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/logging"
	"github.com/bisegni/visdata/pkg/measures"
	"github.com/bisegni/visdata/pkg/meta"
	"github.com/bisegni/visdata/pkg/planner"
	"github.com/bisegni/visdata/pkg/selection"
)

// State is the position of an iterator.
type State int

const (
	BeforeStart State = iota
	Positioned
	Exhausted
)

func (s State) String() string {
	switch s {
	case BeforeStart:
		return "before-start"
	case Positioned:
		return "positioned"
	}
	return "exhausted"
}

// undefinedID marks a data descriptor or field not seen yet.
const undefinedID = -100

type groupRow struct {
	index int
	row   *database.Row
}

// Iterator walks the selected rows of a table one chunk at a time. A chunk
// is a run of consecutive rows of one time group with the same data
// descriptor (and field, when the table has FIELD_ID), at most
// MaxChunkSize rows long.
type Iterator struct {
	tableHolder
	selectorHolder
	converterHolder

	opts       Options
	dataColumn string
	columns    []string
	log        *slog.Logger

	rows    database.RowIterator
	pending *groupRow
	group   []groupRow
	state   State
	fresh   bool

	topRow int
	nRows  int

	dd         int
	field      int
	spw        int
	useFieldID bool

	nChan    int
	nPol     int
	nChanSel int
	nPolSel  int
	// startChan is the first channel of the channel window.
	startChan int
	// flagData is set when a frequency selection fell outside the band.
	flagData bool
	polIndex []int
	types    []measures.Stokes

	allOffsetsZero bool

	geometry   Generation
	pa         *Cell[[]float64]
	directions *Cell[[]measures.Direction]
	dish       *Cell[[]measures.Direction]

	uvwCache *UVWRotationCache
	acc      *Accessor
}

// NewIterator creates an iterator positioned at the first chunk. The
// selector and converter are cloned; nil means select everything and
// convert nothing.
func NewIterator(table database.Table, info *meta.Info, sel *selection.Selector, conv *convert.Converter, opts Options) (*Iterator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if sel == nil {
		sel = selection.NewSelector(nil)
	}
	if conv == nil {
		conv = convert.NewConverter()
	}
	it := &Iterator{
		tableHolder:     tableHolder{table: table, info: info},
		selectorHolder:  selectorHolder{sel: sel.Clone()},
		converterHolder: converterHolder{conv: conv.Clone()},
		opts:            opts,
		log:             logging.Component("access"),
		allOffsetsZero:  true,
	}
	it.opts.ExtraColumns = slices.Clone(opts.ExtraColumns)
	it.dataColumn = opts.DataColumn
	if c := it.sel.DataColumn(); c != "" {
		it.dataColumn = c
	}
	it.columns = append([]string{it.dataColumn}, it.opts.ExtraColumns...)
	it.pa = NewCell[[]float64](&it.geometry)
	it.directions = NewCell[[]measures.Direction](&it.geometry)
	it.dish = NewCell[[]measures.Direction](&it.geometry)
	it.uvwCache = NewUVWRotationCache(opts.UVWCacheSize, opts.UVWCacheTolerance)
	it.acc = newAccessor(it)

	if err := it.Restart(); err != nil {
		return nil, err
	}
	return it, nil
}

// Accessor returns the view of the current chunk. The same accessor is
// returned for the whole life of the iterator.
func (it *Iterator) Accessor() *Accessor {
	return it.acc
}

func (it *Iterator) State() State {
	return it.state
}

// HasMore reports whether the iterator is positioned at a chunk.
func (it *Iterator) HasMore() bool {
	return it.state == Positioned
}

// Restart runs the selection again and positions the iterator at the
// first chunk. Restarting an iterator that has not moved since the last
// restart does nothing.
func (it *Iterator) Restart() error {
	if it.fresh {
		return nil
	}
	if !it.table.HasColumn(it.dataColumn) {
		return errs.IO(nil, "table %s has no column %s", it.table.Name(), it.dataColumn)
	}
	for _, c := range it.opts.ExtraColumns {
		if !it.table.HasColumn(c) {
			return errs.IO(nil, "table %s has no column %s", it.table.Name(), c)
		}
	}
	if err := it.closeRows(); err != nil {
		return err
	}

	node, err := planner.CreatePlan(it.sel, it.table, it.columns)
	if err != nil {
		return err
	}
	rows, err := node.Execute()
	if err != nil {
		return errs.IO(err, "cannot execute selection on %s", it.table.Name())
	}
	it.rows = rows
	it.pending = nil
	it.group = nil
	it.topRow, it.nRows = 0, 0
	it.dd, it.field, it.spw = undefinedID, undefinedID, undefinedID
	it.useFieldID = it.table.HasColumn(database.ColFieldID)
	it.flagData = false
	it.allOffsetsZero = true
	it.geometry.Invalidate()
	it.acc.chunk.Invalidate()
	it.acc.spectral.Invalidate()
	it.state = BeforeStart

	if err := it.loadGroup(); err != nil {
		return err
	}
	if err := it.setUpIteration(); err != nil {
		return err
	}
	if len(it.group) == 0 {
		it.state = Exhausted
	} else {
		it.state = Positioned
	}
	it.fresh = true
	it.log.Debug("iteration restarted", "table", it.table.Name(), "selection", it.sel.String(), "plan", node.Explain())
	return nil
}

// Next moves to the next chunk. It returns false once the selection is
// exhausted. After an error the iterator must be restarted.
func (it *Iterator) Next() (bool, error) {
	if it.state != Positioned {
		return false, nil
	}
	it.fresh = false
	it.topRow += it.nRows
	if it.topRow >= len(it.group) {
		it.topRow = 0
		if it.pending == nil {
			it.group = nil
			it.nRows = 0
			it.state = Exhausted
			it.acc.chunk.Invalidate()
			return false, it.rows.Error()
		}
		if err := it.loadGroup(); err != nil {
			return false, err
		}
		if err := it.setUpIteration(); err != nil {
			return false, err
		}
	} else {
		it.nRows = min(len(it.group)-it.topRow, it.opts.MaxChunkSize)
		it.acc.chunk.Invalidate()
		if err := it.makeUniformDataDescID(); err != nil {
			return false, err
		}
		if err := it.makeUniformFieldID(); err != nil {
			return false, err
		}
	}
	it.logChunk()
	return it.HasMore(), nil
}

// Close releases the row source.
func (it *Iterator) Close() error {
	it.fresh = false
	it.state = Exhausted
	return it.closeRows()
}

func (it *Iterator) closeRows() error {
	if it.rows == nil {
		return nil
	}
	err := it.rows.Close()
	it.rows = nil
	return err
}

// loadGroup reads the rows of the next time group, keeping the first row
// of the following group aside.
func (it *Iterator) loadGroup() error {
	it.group = it.group[:0]
	first := it.pending
	it.pending = nil
	if first == nil {
		if !it.rows.Next() {
			return it.rows.Error()
		}
		first = &groupRow{index: it.rows.Index(), row: it.rows.Row()}
	}
	it.group = append(it.group, *first)
	for it.rows.Next() {
		r := groupRow{index: it.rows.Index(), row: it.rows.Row()}
		if r.row.Time != first.row.Time {
			if r.row.Time < first.row.Time {
				return fmt.Errorf("table %s is not time ordered at row %d", it.table.Name(), r.index)
			}
			it.pending = &r
			break
		}
		it.group = append(it.group, r)
	}
	return it.rows.Error()
}

func (it *Iterator) setUpIteration() error {
	it.acc.chunk.Invalidate()
	it.nRows = min(len(it.group), it.opts.MaxChunkSize)

	if len(it.group) == 0 {
		it.nChan, it.nPol, it.nChanSel, it.nPolSel = undefinedID, undefinedID, 0, 0
		it.dd, it.field = undefinedID, undefinedID
		it.geometry.Invalidate()
		it.acc.rotated.Invalidate()
		return nil
	}

	if (it.directions.IsValid() || it.pa.IsValid()) && it.dd >= 0 {
		epoch := it.epoch()
		newField := false
		if !it.useFieldID {
			newField = it.info.Fields.NewField(epoch)
		}
		allEquatorial := it.info.Antennas.AllEquatorial()
		if newField || !allEquatorial {
			it.pa.Invalidate()
		}
		newBeam := it.info.Feeds.NewBeamDetails(epoch, it.spw)
		offsetsZero := it.allOffsetsZero
		if newBeam {
			nowZero, err := it.info.Feeds.AllOffsetsZero(epoch, it.spw)
			if err != nil {
				return err
			}
			// a change to or from on-axis beams moves the pointing too
			offsetsZero = offsetsZero && nowZero
			it.allOffsetsZero = nowZero
		}
		if !allEquatorial || (newBeam && !offsetsZero) || newField {
			it.directions.Invalidate()
			it.acc.rotated.Invalidate()
		}
		if newField {
			it.dish.Invalidate()
		}
	}

	if err := it.makeUniformDataDescID(); err != nil {
		return err
	}
	return it.makeUniformFieldID()
}

func (it *Iterator) makeUniformDataDescID() error {
	first := it.group[it.topRow]
	if first.row.DataDescID != it.dd {
		if err := it.changeDataDesc(first); err != nil {
			return err
		}
	}
	if it.sel.FrequenciesSelected() {
		if err := it.updateChannelRange(); err != nil {
			return err
		}
	}
	for i := 1; i < it.nRows; i++ {
		if it.group[it.topRow+i].row.DataDescID != it.dd {
			it.nRows = i
			break
		}
	}
	return nil
}

func (it *Iterator) changeDataDesc(first groupRow) error {
	dd := first.row.DataDescID
	spw, err := it.info.DataDescs.SpectralWindowID(dd)
	if err != nil {
		return err
	}
	polID, err := it.info.DataDescs.PolarizationID(dd)
	if err != nil {
		return err
	}
	it.dd, it.spw = dd, spw
	it.acc.spectral.Invalidate()

	if it.directions.IsValid() && !it.allOffsetsZero && it.info.Feeds.NewBeamDetails(it.epoch(), spw) {
		it.directions.Invalidate()
		it.acc.rotated.Invalidate()
	}

	it.nChan, it.nPol = first.row.NChan, first.row.NPol
	if n, err := it.info.SpWindows.NumChannels(spw); err != nil {
		return err
	} else if n != it.nChan {
		return errs.ShapeMismatch("row has %d channels, spectral window %d has %d", it.nChan, spw, n).WithRow(first.index)
	}
	types, err := it.info.Polarizations.Types(polID)
	if err != nil {
		return err
	}
	if len(types) != it.nPol {
		return errs.ShapeMismatch("row has %d polarisations, setup %d has %d", it.nPol, polID, len(types)).WithRow(first.index)
	}
	if err := it.selectPolarizations(types); err != nil {
		return err
	}

	if it.sel.ChannelsSelected() {
		n, start := it.sel.ChannelSelection()
		if start+n > it.nChan {
			return errs.Selection("channel selection [%d,%d) exceeds the %d channels of spectral window %d", start, start+n, it.nChan, spw).WithChannel(start + n - 1)
		}
	}
	if !it.sel.FrequenciesSelected() {
		return it.updateChannelRange()
	}
	return nil
}

func (it *Iterator) selectPolarizations(types []measures.Stokes) error {
	want := it.sel.Polarizations()
	if len(want) == 0 {
		it.polIndex = nil
		it.types = types
		it.nPolSel = it.nPol
		return nil
	}
	it.polIndex = make([]int, 0, len(want))
	for _, s := range want {
		i := slices.Index(types, s)
		if i < 0 {
			return errs.Selection("polarisation %s not present in data descriptor %d (%s)", s, it.dd, measures.FormatStokesList(types))
		}
		it.polIndex = append(it.polIndex, i)
	}
	it.types = want
	it.nPolSel = len(want)
	return nil
}

func (it *Iterator) makeUniformFieldID() error {
	if !it.useFieldID {
		return nil
	}
	first := it.group[it.topRow].row
	if first.FieldID != it.field {
		it.field = first.FieldID
		it.directions.Invalidate()
		it.acc.rotated.Invalidate()
		it.pa.Invalidate()
		it.dish.Invalidate()
	}
	for i := 1; i < it.nRows; i++ {
		if it.group[it.topRow+i].row.FieldID != it.field {
			it.nRows = i
			break
		}
	}
	return nil
}

func (it *Iterator) chunkRows() []groupRow {
	if it.state == Exhausted || it.topRow+it.nRows > len(it.group) {
		return nil
	}
	return it.group[it.topRow : it.topRow+it.nRows]
}

func (it *Iterator) hasExtraColumn(name string) bool {
	return slices.Contains(it.opts.ExtraColumns, name)
}

// epoch returns the UTC epoch of the current chunk.
func (it *Iterator) epoch() measures.Epoch {
	return measures.NewEpoch(it.group[it.topRow].row.Time)
}

func (it *Iterator) logChunk() {
	if it.state != Positioned {
		it.log.Debug("iteration exhausted", "table", it.table.Name())
		return
	}
	it.log.Debug("chunk",
		"top_row", it.group[it.topRow].index,
		"rows", it.nRows,
		"time", it.group[it.topRow].row.Time,
		"data_desc", it.dd,
		"field", it.CurrentFieldID())
}

// CurrentTopRow returns the table row number of the first row of the
// current chunk, -1 when the iterator is not positioned.
func (it *Iterator) CurrentTopRow() int {
	if it.state != Positioned {
		return -1
	}
	return it.group[it.topRow].index
}

func (it *Iterator) CurrentDataDescID() int {
	return it.dd
}

// CurrentFieldID returns the field of the current chunk, 0 for tables
// without a FIELD_ID column.
func (it *Iterator) CurrentFieldID() int {
	if !it.useFieldID {
		return 0
	}
	return it.field
}

func (it *Iterator) CurrentSpWindowID() int {
	return it.spw
}

// DataColumn returns the visibility column read by the iterator.
func (it *Iterator) DataColumn() string {
	return it.dataColumn
}

// ChannelWindow returns the selected channel count and first channel.
func (it *Iterator) ChannelWindow() (n, start int) {
	return it.nChanSel, it.startChan
}

// ErrNotPositioned is returned by operations needing a current chunk.
var ErrNotPositioned = errors.New("iterator is not positioned at a chunk")
