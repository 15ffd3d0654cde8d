// Package selection builds row predicates and channel windows for
// iterators over a dataset.
package selection

import (
	"fmt"
	"sort"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"
)

// Dataset resolves selections that depend on dataset content.
type Dataset interface {
	// DescIDsForSpWindow returns the data descriptors of a spectral window.
	DescIDsForSpWindow(spw int) []int
	// Times returns the distinct timestamps of the main table in order.
	Times() ([]float64, error)
}

// Selector accumulates row and channel selections. Every Choose call
// narrows the selection (logical AND). A selector is cloned when an
// iterator is created, so later changes do not affect running iterators.
type Selector struct {
	dataset Dataset
	expr    Expression

	chanSelected bool
	nChan        int
	startChan    int

	freqSelected bool
	nFreq        int
	startFreq    float64
	incFreq      float64

	pols       []measures.Stokes
	dataColumn string
}

// NewSelector creates an empty selector. ds may be nil, in which case
// spectral window and cycle selections fail.
func NewSelector(ds Dataset) *Selector {
	return &Selector{dataset: ds}
}

// Where adds an arbitrary predicate, such as one returned by Parse.
func (s *Selector) Where(e Expression) {
	s.expr = And(s.expr, e)
}

func cond(column, op string, v float64) Expression {
	return &Condition{Column: column, Op: op, Value: v}
}

// ChooseFeed selects rows where both feeds equal id.
func (s *Selector) ChooseFeed(id int) {
	s.Where(And(cond(database.ColFeed1, "=", float64(id)), cond(database.ColFeed2, "=", float64(id))))
}

// ChooseBaseline selects a single antenna pair in the given order.
func (s *Selector) ChooseBaseline(ant1, ant2 int) {
	s.Where(And(cond(database.ColAntenna1, "=", float64(ant1)), cond(database.ColAntenna2, "=", float64(ant2))))
}

// ChooseAntenna selects all baselines involving ant.
func (s *Selector) ChooseAntenna(ant int) {
	s.Where(Or(cond(database.ColAntenna1, "=", float64(ant)), cond(database.ColAntenna2, "=", float64(ant))))
}

// ChooseUserDefinedIndex selects rows where an integer column equals value.
func (s *Selector) ChooseUserDefinedIndex(column string, value int) {
	s.Where(cond(column, "=", float64(value)))
}

func crossCorrelations() Expression {
	return Or(
		&NotExpression{Inner: &ColumnsEqual{Left: database.ColAntenna1, Right: database.ColAntenna2}},
		&NotExpression{Inner: &ColumnsEqual{Left: database.ColFeed1, Right: database.ColFeed2}},
	)
}

func autoCorrelations() Expression {
	return And(
		&ColumnsEqual{Left: database.ColAntenna1, Right: database.ColAntenna2},
		&ColumnsEqual{Left: database.ColFeed1, Right: database.ColFeed2},
	)
}

func (s *Selector) ChooseAutoCorrelations() {
	s.Where(autoCorrelations())
}

// ChooseCrossCorrelations selects rows with different antennas or feeds.
func (s *Selector) ChooseCrossCorrelations() {
	s.Where(crossCorrelations())
}

// ChooseMinUVDistance rejects baselines shorter than d metres.
func (s *Selector) ChooseMinUVDistance(d float64) {
	s.Where(&UVDistance{Op: ">=", Value: d})
}

// ChooseMaxUVDistance rejects baselines longer than d metres.
func (s *Selector) ChooseMaxUVDistance(d float64) {
	s.Where(&UVDistance{Op: "<=", Value: d})
}

// ChooseMinNonZeroUVDistance is ChooseMinUVDistance but keeps rows whose
// uvw is exactly zero, such as fully flagged samples.
func (s *Selector) ChooseMinNonZeroUVDistance(d float64) {
	s.Where(&UVDistance{Op: ">=", Value: d, KeepZero: true})
}

func (s *Selector) ChooseScanNumber(n int) {
	s.Where(cond(database.ColScanNumber, "=", float64(n)))
}

// ChooseTimeRange selects start <= TIME <= stop (seconds).
func (s *Selector) ChooseTimeRange(start, stop float64) {
	s.Where(And(cond(database.ColTime, ">=", start), cond(database.ColTime, "<=", stop)))
}

// ChooseCycles selects the start-th to stop-th (inclusive, 0-based)
// distinct timestamps of the whole table.
func (s *Selector) ChooseCycles(start, stop int) error {
	if s.dataset == nil {
		return fmt.Errorf("cycle selection needs a dataset")
	}
	if start < 0 || stop < start {
		return errs.Selection("invalid cycle range [%d,%d]", start, stop)
	}
	times, err := s.dataset.Times()
	if err != nil {
		return err
	}
	if start >= len(times) {
		// past the end, nothing to select
		s.Where(Constant(false))
		return nil
	}
	if stop >= len(times) {
		stop = len(times) - 1
	}
	s.ChooseTimeRange(times[start], times[stop])
	return nil
}

// ChooseSpectralWindow selects the rows of every data descriptor using
// spw. A window with no descriptor selects nothing.
func (s *Selector) ChooseSpectralWindow(spw int) error {
	if s.dataset == nil {
		return fmt.Errorf("spectral window selection needs a dataset")
	}
	ids := s.dataset.DescIDsForSpWindow(spw)
	if len(ids) == 0 {
		s.Where(Constant(false))
		return nil
	}
	sort.Ints(ids)
	var e Expression
	for _, id := range ids {
		e = Or(e, cond(database.ColDataDescID, "=", float64(id)))
	}
	s.Where(e)
	return nil
}

// ChooseChannels selects n channels starting at start. Averaging is not
// supported, nAvg must be 1. It replaces any frequency selection.
func (s *Selector) ChooseChannels(n, start, nAvg int) error {
	if nAvg != 1 {
		return errs.Selection("channel averaging (%d) is not supported", nAvg)
	}
	if n <= 0 || start < 0 {
		return errs.Selection("invalid channel selection of %d channels from %d", n, start)
	}
	s.chanSelected, s.nChan, s.startChan = true, n, start
	s.freqSelected = false
	return nil
}

// ChooseFrequencies selects n channels by frequency (Hz, in the frame of
// the iterator's converter). Only single channel selections are
// supported. It replaces any channel selection.
func (s *Selector) ChooseFrequencies(n int, start, inc float64) error {
	if n != 1 {
		return errs.Selection("frequency selection of %d channels is not supported, only single channels", n)
	}
	s.freqSelected, s.nFreq, s.startFreq, s.incFreq = true, n, start, inc
	s.chanSelected = false
	return nil
}

// ChoosePolarizations keeps only the named products, e.g. "XX,YY".
func (s *Selector) ChoosePolarizations(products string) error {
	list, err := measures.ParseStokesList(products)
	if err != nil {
		return errs.Selection("%v", err)
	}
	s.pols = list
	return nil
}

// ChooseDataColumn overrides the visibility column read by the iterator.
func (s *Selector) ChooseDataColumn(name string) {
	s.dataColumn = name
}

// Clone returns an independent copy.
func (s *Selector) Clone() *Selector {
	c := *s
	c.pols = append([]measures.Stokes(nil), s.pols...)
	return &c
}

// Expression returns the row predicate, nil when every row is selected.
func (s *Selector) Expression() Expression {
	return s.expr
}

func (s *Selector) ChannelsSelected() bool {
	return s.chanSelected
}

func (s *Selector) ChannelSelection() (n, start int) {
	return s.nChan, s.startChan
}

func (s *Selector) FrequenciesSelected() bool {
	return s.freqSelected
}

func (s *Selector) FrequencySelection() (n int, start, inc float64) {
	return s.nFreq, s.startFreq, s.incFreq
}

// Polarizations returns the selected products, nil for all.
func (s *Selector) Polarizations() []measures.Stokes {
	return s.pols
}

// DataColumn returns the selected visibility column, empty for the
// iterator default.
func (s *Selector) DataColumn() string {
	return s.dataColumn
}

func (s *Selector) String() string {
	out := Describe(s.expr)
	if s.chanSelected {
		out += fmt.Sprintf(" channels=%d@%d", s.nChan, s.startChan)
	}
	if s.freqSelected {
		out += fmt.Sprintf(" frequency=%gHz", s.startFreq)
	}
	if len(s.pols) > 0 {
		out += " pol=" + measures.FormatStokesList(s.pols)
	}
	return out
}
