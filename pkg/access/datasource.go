package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bisegni/visdata/pkg/bufstore"
	"github.com/bisegni/visdata/pkg/convert"
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/logging"
	"github.com/bisegni/visdata/pkg/meta"
	"github.com/bisegni/visdata/pkg/selection"
)

// DataSource is the entry point to a dataset: it holds the table, its
// metadata handlers and the iteration settings, and creates selectors,
// converters and iterators.
type DataSource struct {
	table database.Table
	info  *meta.Info
	store *bufstore.Store
	opts  Options
	log   *slog.Logger

	timesOnce sync.Once
	times     []float64
	timesErr  error
}

// NewDataSource builds the metadata handlers of table. Buffers are kept
// in memory until SetBufferStore is called.
func NewDataSource(table database.Table) (*DataSource, error) {
	info, err := meta.NewInfo(table.Subtables())
	if err != nil {
		return nil, fmt.Errorf("cannot read subtables of %s: %w", table.Name(), err)
	}
	return &DataSource{
		table: table,
		info:  info,
		store: bufstore.NewMemoryStore(),
		opts:  DefaultOptions(),
		log:   logging.Component("datasource"),
	}, nil
}

// SetBufferStore replaces the store of the buffers of iterators created
// from now on. The previous store is closed.
func (d *DataSource) SetBufferStore(store *bufstore.Store) {
	old := d.store
	d.store = store
	if err := old.Close(); err != nil {
		d.log.Warn("failed to close buffer store", "error", err)
	}
}

func (d *DataSource) Table() database.Table {
	return d.table
}

func (d *DataSource) Info() *meta.Info {
	return d.info
}

// Options returns a copy of the current iteration settings.
func (d *DataSource) Options() Options {
	o := d.opts
	o.ExtraColumns = slices.Clone(d.opts.ExtraColumns)
	return o
}

// CreateSelector returns a selector choosing every row.
func (d *DataSource) CreateSelector() *selection.Selector {
	return selection.NewSelector(d)
}

// CreateConverter returns a converter keeping the stored frames.
func (d *DataSource) CreateConverter() *convert.Converter {
	return convert.NewConverter()
}

// CreateConstIterator returns a read-only iterator over the rows chosen
// by sel. A nil sel or conv means defaults.
func (d *DataSource) CreateConstIterator(sel *selection.Selector, conv *convert.Converter) (*Iterator, error) {
	if sel == nil {
		sel = d.CreateSelector()
	}
	it, err := NewIterator(d.table, d.info, sel, conv, d.Options())
	if err != nil {
		return nil, err
	}
	d.log.Debug("iterator created", "table", d.table.Name(), "selection", sel.String(), "max_chunk", d.opts.MaxChunkSize)
	return it, nil
}

// CreateIterator returns an iterator able to write back to the table and
// to keep buffers.
func (d *DataSource) CreateIterator(ctx context.Context, sel *selection.Selector, conv *convert.Converter) (*WriteBackIterator, error) {
	it, err := d.CreateConstIterator(sel, conv)
	if err != nil {
		return nil, err
	}
	return NewWriteBackIterator(ctx, it, d.store), nil
}

// ConfigureMaxChunkSize bounds the rows of the chunks of iterators
// created from now on.
func (d *DataSource) ConfigureMaxChunkSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("max chunk size must be positive, got %d", n)
	}
	d.opts.MaxChunkSize = n
	return nil
}

// ConfigureUVWCache sets the number of rotation machines kept per
// iterator and the angle (radians) under which directions match.
func (d *DataSource) ConfigureUVWCache(size int, tolerance float64) error {
	o := d.opts
	o.UVWCacheSize, o.UVWCacheTolerance = size, tolerance
	if err := o.Validate(); err != nil {
		return err
	}
	d.opts = o
	return nil
}

// ConfigureDefaultDataColumn sets the column read when the selector does
// not choose one.
func (d *DataSource) ConfigureDefaultDataColumn(name string) error {
	if !d.table.HasColumn(name) {
		return fmt.Errorf("table %s has no column %s", d.table.Name(), name)
	}
	d.opts.DataColumn = name
	return nil
}

// ConfigureExtraColumns sets the visibility columns served by
// Accessor.Column besides the data column.
func (d *DataSource) ConfigureExtraColumns(names ...string) error {
	for _, n := range names {
		if !d.table.HasColumn(n) {
			return fmt.Errorf("table %s has no column %s", d.table.Name(), n)
		}
	}
	d.opts.ExtraColumns = slices.Clone(names)
	return nil
}

func (d *DataSource) DescIDsForSpWindow(spw int) []int {
	return d.info.DataDescs.DescIDsForSpWindow(spw)
}

// Times returns the distinct times of the main table in increasing order.
// They are read once.
func (d *DataSource) Times() ([]float64, error) {
	d.timesOnce.Do(func() {
		rows, err := d.table.Iterate()
		if err != nil {
			d.timesErr = err
			return
		}
		defer rows.Close()
		for rows.Next() {
			t := rows.Row().Time
			if n := len(d.times); n == 0 || d.times[n-1] != t {
				d.times = append(d.times, t)
			}
		}
		if err := rows.Error(); err != nil {
			d.timesErr = err
			return
		}
		slices.Sort(d.times)
		d.times = slices.Compact(d.times)
	})
	return d.times, d.timesErr
}

// Close closes the buffer store and the table.
func (d *DataSource) Close() error {
	return errors.Join(d.store.Close(), d.table.Close())
}
