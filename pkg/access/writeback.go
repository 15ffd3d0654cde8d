package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/bisegni/visdata/pkg/bufstore"
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
)

// WriteBackIterator is an Iterator able to write visibilities and flags
// back to the table and to keep named scratch buffers per chunk.
type WriteBackIterator struct {
	*Iterator

	ctx     context.Context
	store   *bufstore.Store
	buffers map[string]*BufferAccessor
	active  *BufferAccessor
	// counter numbers the chunks since the last restart.
	counter int
}

// NewWriteBackIterator wraps it. Buffers are kept in store.
func NewWriteBackIterator(ctx context.Context, it *Iterator, store *bufstore.Store) *WriteBackIterator {
	if store == nil {
		store = bufstore.NewMemoryStore()
	}
	return &WriteBackIterator{
		Iterator: it,
		ctx:      ctx,
		store:    store,
		buffers:  make(map[string]*BufferAccessor),
	}
}

// Buffer returns the accessor of a named buffer, creating it on first use.
func (w *WriteBackIterator) Buffer(name string) *BufferAccessor {
	b, ok := w.buffers[name]
	if !ok {
		b = newBufferAccessor(w.ctx, w.acc, w.store, name)
		b.newIteration(w.counter)
		w.buffers[name] = b
	}
	return b
}

// ChooseBuffer makes Active return the named buffer.
func (w *WriteBackIterator) ChooseBuffer(name string) {
	w.active = w.Buffer(name)
}

// ChooseOriginal makes Active return the table data again.
func (w *WriteBackIterator) ChooseOriginal() {
	w.active = nil
}

// Active returns the accessor chosen by ChooseBuffer or ChooseOriginal.
func (w *WriteBackIterator) Active() DataAccessor {
	if w.active != nil {
		return w.active
	}
	return w.acc
}

// MainTableWritable reports whether WriteOriginalVis and
// WriteOriginalFlag can succeed.
func (w *WriteBackIterator) MainTableWritable() bool {
	return w.table.Writable()
}

// Restart flushes modified buffers and restarts the iteration.
func (w *WriteBackIterator) Restart() error {
	syncErr := w.syncBuffers()
	if err := w.Iterator.Restart(); err != nil {
		return errors.Join(syncErr, err)
	}
	w.counter = 0
	w.notifyNewIteration()
	return syncErr
}

// Next flushes modified buffers and moves to the next chunk.
func (w *WriteBackIterator) Next() (bool, error) {
	if err := w.syncBuffers(); err != nil {
		return false, err
	}
	more, err := w.Iterator.Next()
	if err != nil {
		return false, err
	}
	if more {
		w.counter++
		w.notifyNewIteration()
	}
	return more, nil
}

// Close flushes the buffers and releases the row source. Flush failures
// are logged and returned.
func (w *WriteBackIterator) Close() error {
	syncErr := w.syncBuffers()
	if syncErr != nil {
		w.log.Error("failed to flush buffers on close", "error", syncErr)
	}
	return errors.Join(syncErr, w.Iterator.Close())
}

func (w *WriteBackIterator) notifyNewIteration() {
	for _, b := range w.buffers {
		b.newIteration(w.counter)
	}
}

// syncBuffers flushes the modified named buffers and the visibilities and
// flags modified through the table accessor.
func (w *WriteBackIterator) syncBuffers() error {
	var errList []error
	for name, b := range w.buffers {
		if err := b.sync(); err != nil {
			errList = append(errList, fmt.Errorf("buffer %s: %w", name, err))
		}
	}
	if err := w.syncOriginal(); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

func (w *WriteBackIterator) syncOriginal() error {
	visDirty, flagDirty := w.acc.takeDirty()
	if (!visDirty && !flagDirty) || w.state != Positioned {
		return nil
	}
	if !w.table.Writable() {
		w.log.Warn("discarding modified data of a read-only table", "table", w.table.Name(), "row", w.CurrentTopRow())
		return nil
	}
	if visDirty {
		if err := w.WriteOriginalVis(); err != nil {
			return fmt.Errorf("visibilities: %w", err)
		}
	}
	if flagDirty {
		if err := w.WriteOriginalFlag(); err != nil {
			return fmt.Errorf("flags: %w", err)
		}
	}
	return nil
}

func (w *WriteBackIterator) checkWritable() error {
	if w.state != Positioned {
		return ErrNotPositioned
	}
	if !w.table.Writable() {
		return errs.IO(nil, "table %s is not writable", w.table.Name())
	}
	return nil
}

// WriteOriginalVis writes the visibilities of the table accessor to the
// data column, within the selected channels and polarisations. The choice
// of ChooseBuffer does not matter.
func (w *WriteBackIterator) WriteOriginalVis() error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	vis, err := w.acc.Visibility()
	if err != nil {
		return err
	}
	if err := w.checkChunkShape(vis.NRow, vis.NChan, vis.NPol); err != nil {
		return err
	}
	for i, r := range w.chunkRows() {
		values := mergeWindow(r.row.Data[w.dataColumn], vis.RowSlice(i), w.nPol, w.startChan, w.nChanSel, w.polIndex)
		if err := w.table.PutData(r.index, w.dataColumn, w.startChan, values); err != nil {
			return err
		}
		// keep the buffered row in step with tables that decode copies
		copy(r.row.Data[w.dataColumn][w.startChan*w.nPol:], values)
	}
	w.acc.refresh(true, false)
	return nil
}

// WriteOriginalFlag writes the flags of the table accessor to the FLAG
// column. Clearing a flag of a row flagged through FLAG_ROW is an error.
func (w *WriteBackIterator) WriteOriginalFlag() error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	flags, err := w.acc.Flag()
	if err != nil {
		return err
	}
	if err := w.checkChunkShape(flags.NRow, flags.NChan, flags.NPol); err != nil {
		return err
	}
	rows := w.chunkRows()
	if w.table.HasColumn(database.ColFlagRow) {
		for i, r := range rows {
			if !r.row.FlagRow {
				continue
			}
			for _, f := range flags.RowSlice(i) {
				if !f {
					return errs.Consistency("row is flagged through FLAG_ROW but the new flags leave samples unflagged").WithRow(r.index)
				}
			}
		}
	}
	for i, r := range rows {
		src := r.row.Flag
		if src == nil {
			src = make([]bool, r.row.NChan*r.row.NPol)
		}
		values := mergeWindow(src, flags.RowSlice(i), w.nPol, w.startChan, w.nChanSel, w.polIndex)
		if err := w.table.PutFlag(r.index, w.startChan, values); err != nil {
			return err
		}
		if r.row.Flag == nil {
			r.row.Flag = src
		}
		copy(r.row.Flag[w.startChan*w.nPol:], values)
	}
	w.acc.refresh(false, true)
	return nil
}

func (w *WriteBackIterator) checkChunkShape(nRow, nChan, nPol int) error {
	if nRow != w.nRows || nChan != w.nChanSel || nPol != w.nPolSel {
		return errs.ShapeMismatch("cube of %dx%dx%d does not match the chunk shape %dx%dx%d",
			nRow, nChan, nPol, w.nRows, w.nChanSel, w.nPolSel)
	}
	return nil
}
