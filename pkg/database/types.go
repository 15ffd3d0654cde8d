package database

import (
	"fmt"
)

// Main table column names.
const (
	ColTime          = "TIME"
	ColInterval      = "INTERVAL"
	ColAntenna1      = "ANTENNA1"
	ColAntenna2      = "ANTENNA2"
	ColFeed1         = "FEED1"
	ColFeed2         = "FEED2"
	ColDataDescID    = "DATA_DESC_ID"
	ColFieldID       = "FIELD_ID"
	ColScanNumber    = "SCAN_NUMBER"
	ColUVW           = "UVW"
	ColData          = "DATA"
	ColModelData     = "MODEL_DATA"
	ColCorrectedData = "CORRECTED_DATA"
	ColFlag          = "FLAG"
	ColFlagRow       = "FLAG_ROW"
	ColSigma         = "SIGMA"
	ColSigmaSpectrum = "SIGMA_SPECTRUM"
)

// RequiredColumns are present in every table.
var RequiredColumns = []string{
	ColTime, ColAntenna1, ColAntenna2, ColFeed1, ColFeed2, ColDataDescID, ColUVW,
}

// Row is one baseline at one time. Cube-valued cells are stored channel
// major with polarisation varying fastest: index = chan*NPol + pol.
type Row struct {
	Time       float64
	Interval   float64
	Antenna1   int
	Antenna2   int
	Feed1      int
	Feed2      int
	DataDescID int
	FieldID    int
	ScanID     int
	UVW        [3]float64

	NChan int
	NPol  int
	// Data holds one cube slice per visibility column (DATA, MODEL_DATA, ...).
	Data    map[string][]complex64
	Flag    []bool
	FlagRow bool
	// Sigma is either NPol long or NChan*NPol long.
	Sigma         []float32
	SigmaSpectrum []float32
}

// Get returns the value of a scalar column. It backs selections on
// arbitrary integer columns.
func (r *Row) Get(column string) (interface{}, error) {
	switch column {
	case ColTime:
		return r.Time, nil
	case ColInterval:
		return r.Interval, nil
	case ColAntenna1:
		return r.Antenna1, nil
	case ColAntenna2:
		return r.Antenna2, nil
	case ColFeed1:
		return r.Feed1, nil
	case ColFeed2:
		return r.Feed2, nil
	case ColDataDescID:
		return r.DataDescID, nil
	case ColFieldID:
		return r.FieldID, nil
	case ColScanNumber:
		return r.ScanID, nil
	case ColFlagRow:
		return r.FlagRow, nil
	}
	return nil, fmt.Errorf("column %s is not a scalar column", column)
}

// IntColumn returns the value of an integer scalar column.
func (r *Row) IntColumn(column string) (int, error) {
	v, err := r.Get(column)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("column %s is not an integer column", column)
	}
	return i, nil
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := *r
	if r.Data != nil {
		c.Data = make(map[string][]complex64, len(r.Data))
		for k, v := range r.Data {
			c.Data[k] = append([]complex64(nil), v...)
		}
	}
	c.Flag = append([]bool(nil), r.Flag...)
	c.Sigma = append([]float32(nil), r.Sigma...)
	c.SigmaSpectrum = append([]float32(nil), r.SigmaSpectrum...)
	return &c
}

// CheckShape verifies that every cube-valued cell matches NChan x NPol.
func (r *Row) CheckShape() error {
	n := r.NChan * r.NPol
	if r.NChan <= 0 || r.NPol <= 0 {
		return fmt.Errorf("row has empty cube shape %dx%d", r.NChan, r.NPol)
	}
	for name, d := range r.Data {
		if len(d) != n {
			return fmt.Errorf("column %s has %d elements, expected %d", name, len(d), n)
		}
	}
	if r.Flag != nil && len(r.Flag) != n {
		return fmt.Errorf("column %s has %d elements, expected %d", ColFlag, len(r.Flag), n)
	}
	if r.SigmaSpectrum != nil && len(r.SigmaSpectrum) != n {
		return fmt.Errorf("column %s has %d elements, expected %d", ColSigmaSpectrum, len(r.SigmaSpectrum), n)
	}
	if r.Sigma != nil && len(r.Sigma) != r.NPol && len(r.Sigma) != n {
		return fmt.Errorf("column %s has %d elements, expected %d or %d", ColSigma, len(r.Sigma), r.NPol, n)
	}
	return nil
}

// RowIterator allows iterating over rows in a table.
type RowIterator interface {
	// Next advances the iterator. Returns false if no more rows or error.
	Next() bool
	// Row returns the current row.
	Row() *Row
	// Index returns the table row number of the current row.
	Index() int
	// Error returns any error that occurred during iteration.
	Error() error
	// Close releases resources.
	Close() error
}

// Table is a time-ordered visibility table with its subtables.
type Table interface {
	Name() string
	NumRows() int
	HasColumn(name string) bool
	// Row returns row i. Implementations may return shared storage; callers
	// must not modify it.
	Row(i int) (*Row, error)
	// Iterate returns a new iterator over all rows in table order.
	Iterate() (RowIterator, error)
	Subtables() *Subtables
	Writable() bool
	// PutData overwrites channels [startChan, startChan+len(values)/NPol)
	// of a visibility column for one row.
	PutData(row int, column string, startChan int, values []complex64) error
	// PutFlag overwrites the same channel window of the FLAG column.
	PutFlag(row int, startChan int, values []bool) error
	Close() error
}

// FilterPushdown is implemented by tables able to evaluate a selection
// natively. The clause uses the main table column names.
type FilterPushdown interface {
	IterateWhere(clause string, args []interface{}) (RowIterator, error)
}
