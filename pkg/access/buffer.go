package access

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/bisegni/visdata/pkg/bufstore"
	"github.com/bisegni/visdata/pkg/database"
)

// BufferAccessor is the accessor of a named buffer: the visibilities come
// from a buffer store, everything else from the iterator's accessor.
// Buffers hold one cube per chunk, shaped like the chunk.
type BufferAccessor struct {
	*Accessor

	name  string
	store *bufstore.Store
	ctx   context.Context

	mu        sync.Mutex
	buf       *database.Cube[complex64]
	iteration int
	loaded    bool
	dirty     bool
}

func newBufferAccessor(ctx context.Context, acc *Accessor, store *bufstore.Store, name string) *BufferAccessor {
	return &BufferAccessor{Accessor: acc, name: name, store: store, ctx: ctx}
}

// Name returns the buffer name.
func (b *BufferAccessor) Name() string {
	return b.name
}

// Visibility returns the buffer contents for the current chunk. A buffer
// never written for this chunk reads as zeros.
func (b *BufferAccessor) Visibility() (*database.Cube[complex64], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.load(); err != nil {
		return nil, err
	}
	return b.buf, nil
}

// RWVisibility marks the buffer for writing at the next sync.
func (b *BufferAccessor) RWVisibility() (*database.Cube[complex64], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.load(); err != nil {
		return nil, err
	}
	b.dirty = true
	return b.buf, nil
}

func (b *BufferAccessor) load() error {
	if b.loaded {
		return nil
	}
	nRow, nChan, nPol := b.NRow(), b.NChannel(), b.NPol()
	c, err := b.store.Read(b.ctx, b.name, b.iteration)
	switch {
	case err == nil:
		b.buf = c
		b.buf.Resize(nRow, nChan, nPol)
	case errors.Is(err, os.ErrNotExist):
		if b.buf == nil {
			b.buf = database.NewCube[complex64](nRow, nChan, nPol)
		} else if !b.buf.Resize(nRow, nChan, nPol) {
			b.buf.Fill(0)
		}
	default:
		return err
	}
	b.loaded = true
	return nil
}

// newIteration points the accessor at another chunk. The contents are
// read lazily.
func (b *BufferAccessor) newIteration(iteration int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.iteration = iteration
	b.loaded = false
	b.dirty = false
}

// sync writes the buffer back to the store if it was modified.
func (b *BufferAccessor) sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty || !b.loaded {
		return nil
	}
	if err := b.store.Write(b.ctx, b.name, b.iteration, b.buf); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

// MemBufferAccessor serves the data of a read-only accessor together with
// a visibility cube of its own, shaped like the accessor's chunk. The cube
// is not initialised from the data and keeps its contents while the shape
// does not change.
type MemBufferAccessor struct {
	ConstAccessor

	mu  sync.Mutex
	buf *database.Cube[complex64]
}

func NewMemBufferAccessor(acc ConstAccessor) *MemBufferAccessor {
	return &MemBufferAccessor{ConstAccessor: acc}
}

func (m *MemBufferAccessor) Visibility() (*database.Cube[complex64], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nRow, nChan, nPol := m.NRow(), m.NChannel(), m.NPol()
	if m.buf == nil {
		m.buf = database.NewCube[complex64](nRow, nChan, nPol)
	} else {
		m.buf.Resize(nRow, nChan, nPol)
	}
	return m.buf, nil
}

func (m *MemBufferAccessor) RWVisibility() (*database.Cube[complex64], error) {
	return m.Visibility()
}

// RWFlag is not available, the flags belong to the wrapped accessor.
func (m *MemBufferAccessor) RWFlag() (*database.Cube[bool], error) {
	return nil, errors.New("flags of a memory buffer accessor are read-only")
}
