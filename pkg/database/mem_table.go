package database

import (
	"fmt"
	"sync"

	"github.com/bisegni/visdata/pkg/errs"
)

// MemTable keeps the whole dataset in memory. Row returns the stored row,
// so writes through PutData are visible to later reads.
type MemTable struct {
	name      string
	rows      []*Row
	columns   map[string]bool
	subtables *Subtables
	readOnly  bool
	mu        sync.RWMutex
}

// NewMemTable creates an empty table holding the required columns and the
// optional ones given.
func NewMemTable(name string, subtables *Subtables, optional ...string) *MemTable {
	t := &MemTable{
		name:      name,
		columns:   make(map[string]bool),
		subtables: subtables,
	}
	for _, c := range RequiredColumns {
		t.columns[c] = true
	}
	for _, c := range optional {
		t.columns[c] = true
	}
	if t.subtables == nil {
		t.subtables = &Subtables{}
	}
	return t
}

// SetReadOnly marks the table as not writable.
func (t *MemTable) SetReadOnly(ro bool) {
	t.readOnly = ro
}

// Append adds a row. Rows must be appended in non-decreasing time order.
func (t *MemTable) Append(r *Row) error {
	if err := r.CheckShape(); err != nil {
		return errs.ShapeMismatch("%v", err).WithRow(len(t.rows))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.rows); n > 0 && r.Time < t.rows[n-1].Time {
		return fmt.Errorf("row %d breaks time order (%f < %f)", n, r.Time, t.rows[n-1].Time)
	}
	for name := range r.Data {
		t.columns[name] = true
	}
	if r.Flag != nil {
		t.columns[ColFlag] = true
	}
	if r.Sigma != nil {
		t.columns[ColSigma] = true
	}
	if r.SigmaSpectrum != nil {
		t.columns[ColSigmaSpectrum] = true
	}
	t.rows = append(t.rows, r)
	return nil
}

func (t *MemTable) Name() string {
	return t.name
}

func (t *MemTable) NumRows() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func (t *MemTable) HasColumn(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.columns[name]
}

// Columns returns the names of all columns present.
func (t *MemTable) Columns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.columns))
	for c := range t.columns {
		out = append(out, c)
	}
	return out
}

func (t *MemTable) Row(i int) (*Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.rows) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, len(t.rows))
	}
	return t.rows[i], nil
}

func (t *MemTable) Iterate() (RowIterator, error) {
	return &memIterator{table: t, index: -1}, nil
}

func (t *MemTable) Subtables() *Subtables {
	return t.subtables
}

func (t *MemTable) Writable() bool {
	return !t.readOnly
}

func (t *MemTable) PutData(row int, column string, startChan int, values []complex64) error {
	if t.readOnly {
		return errs.IO(nil, "table %s is not writable", t.name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	r, err := t.rowForWrite(row, startChan, len(values))
	if err != nil {
		return err
	}
	dst, ok := r.Data[column]
	if !ok {
		return errs.IO(nil, "column %s does not exist", column).WithRow(row)
	}
	copy(dst[startChan*r.NPol:], values)
	return nil
}

func (t *MemTable) PutFlag(row int, startChan int, values []bool) error {
	if t.readOnly {
		return errs.IO(nil, "table %s is not writable", t.name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	r, err := t.rowForWrite(row, startChan, len(values))
	if err != nil {
		return err
	}
	if r.Flag == nil {
		r.Flag = make([]bool, r.NChan*r.NPol)
		t.columns[ColFlag] = true
	}
	copy(r.Flag[startChan*r.NPol:], values)
	return nil
}

func (t *MemTable) rowForWrite(row, startChan, n int) (*Row, error) {
	if row < 0 || row >= len(t.rows) {
		return nil, errs.IO(nil, "row %d out of range", row)
	}
	r := t.rows[row]
	if n%r.NPol != 0 {
		return nil, errs.ShapeMismatch("slice of %d elements is not a whole number of channels of %d polarisations", n, r.NPol).WithRow(row)
	}
	if startChan < 0 || startChan+n/r.NPol > r.NChan {
		return nil, errs.ShapeMismatch("channel window [%d,%d) exceeds %d channels", startChan, startChan+n/r.NPol, r.NChan).WithRow(row)
	}
	return r, nil
}

func (t *MemTable) Close() error {
	return nil
}

type memIterator struct {
	table *MemTable
	index int
}

func (it *memIterator) Next() bool {
	it.index++
	return it.index < it.table.NumRows()
}

func (it *memIterator) Row() *Row {
	r, _ := it.table.Row(it.index)
	return r
}

func (it *memIterator) Index() int {
	return it.index
}

func (it *memIterator) Error() error {
	return nil
}

func (it *memIterator) Close() error {
	return nil
}
