package access

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/logging"
	"github.com/bisegni/visdata/pkg/measures"
)

// StackOrder is the order in which a StackedSource serves its chunks.
type StackOrder int

const (
	// StackByTime serves chunks in the order they were appended.
	StackByTime StackOrder = iota
	StackReverse
	// StackByW serves chunks by increasing mean w.
	StackByW
)

func (o StackOrder) String() string {
	switch o {
	case StackByTime:
		return "time"
	case StackReverse:
		return "reverse"
	case StackByW:
		return "w"
	}
	return fmt.Sprintf("StackOrder(%d)", int(o))
}

// ParseStackOrder parses "time", "reverse" or "w".
func ParseStackOrder(s string) (StackOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "time":
		return StackByTime, nil
	case "reverse":
		return StackReverse, nil
	case "w":
		return StackByW, nil
	}
	return StackByTime, fmt.Errorf("unknown stack order %q (time, reverse, w)", s)
}

// ChunkInfo locates a chunk in its table.
type ChunkInfo struct {
	TopRow       int
	DataDescID   int
	SpWindowID   int
	FieldID      int
	Channels     int
	StartChannel int
}

// ChunkInfo describes the current chunk.
func (it *Iterator) ChunkInfo() ChunkInfo {
	return ChunkInfo{
		TopRow:       it.CurrentTopRow(),
		DataDescID:   it.CurrentDataDescID(),
		SpWindowID:   it.CurrentSpWindowID(),
		FieldID:      it.CurrentFieldID(),
		Channels:     it.nChanSel,
		StartChannel: it.startChan,
	}
}

type captured[T any] struct {
	v   T
	err error
}

func (c captured[T]) get() (T, error) {
	return c.v, c.err
}

// chunkSnapshot is a copy of every quantity of one chunk. Quantities that
// failed to compute keep their error.
type chunkSnapshot struct {
	nRow, nChan, nPol int

	vis   *database.Cube[complex64]
	flag  *database.Cube[bool]
	noise captured[*database.Cube[complex64]]

	uvw        [][3]float64
	time       float64
	ant1, ant2 []int
	feed1      []int
	feed2      []int

	frequency captured[[]float64]
	velocity  captured[[]float64]
	stokes    captured[[]measures.Stokes]
	feedPA1   captured[[]float64]
	feedPA2   captured[[]float64]
	pointing1 captured[[]measures.Direction]
	pointing2 captured[[]measures.Direction]
	dish1     captured[[]measures.Direction]
	dish2     captured[[]measures.Direction]

	uvwCache *UVWRotationCache
}

var _ ConstAccessor = (*chunkSnapshot)(nil)

func snapshot(acc ConstAccessor, cache *UVWRotationCache) (*chunkSnapshot, error) {
	vis, err := acc.Visibility()
	if err != nil {
		return nil, err
	}
	flag, err := acc.Flag()
	if err != nil {
		return nil, err
	}
	c := &chunkSnapshot{
		nRow:     acc.NRow(),
		nChan:    acc.NChannel(),
		nPol:     acc.NPol(),
		vis:      vis.Clone(),
		flag:     flag.Clone(),
		uvw:      slices.Clone(acc.UVW()),
		time:     acc.Time(),
		ant1:     slices.Clone(acc.Antenna1()),
		ant2:     slices.Clone(acc.Antenna2()),
		feed1:    slices.Clone(acc.Feed1()),
		feed2:    slices.Clone(acc.Feed2()),
		uvwCache: cache,
	}
	if noise, err := acc.Noise(); err != nil {
		c.noise.err = err
	} else {
		c.noise.v = noise.Clone()
	}
	freq, err := acc.Frequency()
	c.frequency = captured[[]float64]{v: slices.Clone(freq), err: err}
	vel, err := acc.Velocity()
	c.velocity = captured[[]float64]{v: slices.Clone(vel), err: err}
	stokes, err := acc.Stokes()
	c.stokes = captured[[]measures.Stokes]{v: slices.Clone(stokes), err: err}
	pa1, err := acc.FeedPA1()
	c.feedPA1 = captured[[]float64]{v: slices.Clone(pa1), err: err}
	pa2, err := acc.FeedPA2()
	c.feedPA2 = captured[[]float64]{v: slices.Clone(pa2), err: err}
	p1, err := acc.PointingDir1()
	c.pointing1 = captured[[]measures.Direction]{v: slices.Clone(p1), err: err}
	p2, err := acc.PointingDir2()
	c.pointing2 = captured[[]measures.Direction]{v: slices.Clone(p2), err: err}
	d1, err := acc.DishPointing1()
	c.dish1 = captured[[]measures.Direction]{v: slices.Clone(d1), err: err}
	d2, err := acc.DishPointing2()
	c.dish2 = captured[[]measures.Direction]{v: slices.Clone(d2), err: err}
	return c, nil
}

func (c *chunkSnapshot) NRow() int     { return c.nRow }
func (c *chunkSnapshot) NChannel() int { return c.nChan }
func (c *chunkSnapshot) NPol() int     { return c.nPol }

func (c *chunkSnapshot) Visibility() (*database.Cube[complex64], error) { return c.vis, nil }
func (c *chunkSnapshot) Flag() (*database.Cube[bool], error)            { return c.flag, nil }
func (c *chunkSnapshot) Noise() (*database.Cube[complex64], error)      { return c.noise.get() }

func (c *chunkSnapshot) UVW() [][3]float64 { return c.uvw }

func (c *chunkSnapshot) RotatedUVW(tangent measures.Direction) ([][3]float64, error) {
	return c.uvwCache.Rotate(c, tangent)
}

func (c *chunkSnapshot) UVWDelay(tangent, imageCentre measures.Direction) ([]float64, error) {
	return c.uvwCache.Delays(c, tangent, imageCentre)
}

func (c *chunkSnapshot) Frequency() ([]float64, error)      { return c.frequency.get() }
func (c *chunkSnapshot) Velocity() ([]float64, error)       { return c.velocity.get() }
func (c *chunkSnapshot) Time() float64                      { return c.time }
func (c *chunkSnapshot) Stokes() ([]measures.Stokes, error) { return c.stokes.get() }
func (c *chunkSnapshot) Antenna1() []int                    { return c.ant1 }
func (c *chunkSnapshot) Antenna2() []int                    { return c.ant2 }
func (c *chunkSnapshot) Feed1() []int                       { return c.feed1 }
func (c *chunkSnapshot) Feed2() []int                       { return c.feed2 }
func (c *chunkSnapshot) FeedPA1() ([]float64, error)        { return c.feedPA1.get() }
func (c *chunkSnapshot) FeedPA2() ([]float64, error)        { return c.feedPA2.get() }
func (c *chunkSnapshot) PointingDir1() ([]measures.Direction, error) {
	return c.pointing1.get()
}
func (c *chunkSnapshot) PointingDir2() ([]measures.Direction, error) {
	return c.pointing2.get()
}
func (c *chunkSnapshot) DishPointing1() ([]measures.Direction, error) {
	return c.dish1.get()
}
func (c *chunkSnapshot) DishPointing2() ([]measures.Direction, error) {
	return c.dish2.get()
}

func (c *chunkSnapshot) meanW() float64 {
	if len(c.uvw) == 0 {
		return 0
	}
	var sum float64
	for _, b := range c.uvw {
		sum += b[2]
	}
	return sum / float64(len(c.uvw))
}

type stackedChunk struct {
	info ChunkInfo
	snap *chunkSnapshot
	// acc serves the snapshot with its visibilities in a memory buffer,
	// so that they can be modified.
	acc *MemBufferAccessor
}

type bufferKey struct {
	name  string
	chunk int
}

// StackedSource keeps chunks in memory so that they can be iterated again,
// in another order, without going back to the table.
type StackedSource struct {
	chunks   []stackedChunk
	order    []int
	ordering StackOrder
	buffers  map[bufferKey]*MemBufferAccessor
	uvwCache *UVWRotationCache
	log      *slog.Logger
}

// NewStackedSource returns an empty stack. Rotated uvw are computed with a
// cache sized from opts.
func NewStackedSource(opts Options) *StackedSource {
	return &StackedSource{
		buffers:  make(map[bufferKey]*MemBufferAccessor),
		uvwCache: NewUVWRotationCache(opts.UVWCacheSize, opts.UVWCacheTolerance),
		log:      logging.Component("stack"),
	}
}

// Stack restarts it and copies every chunk into a new StackedSource.
func Stack(ctx context.Context, it *Iterator) (*StackedSource, error) {
	if err := it.Restart(); err != nil {
		return nil, err
	}
	s := NewStackedSource(it.opts)
	for it.HasMore() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Append(it.ChunkInfo(), it.Accessor()); err != nil {
			return nil, fmt.Errorf("chunk at row %d: %w", it.CurrentTopRow(), err)
		}
		if _, err := it.Next(); err != nil {
			return nil, err
		}
	}
	s.log.Debug("iteration stacked", "chunks", s.Len())
	return s, nil
}

// Append copies the current chunk of acc to the end of the stack. The
// order set by OrderBy is applied again.
func (s *StackedSource) Append(info ChunkInfo, acc ConstAccessor) error {
	snap, err := snapshot(acc, s.uvwCache)
	if err != nil {
		return err
	}
	m := NewMemBufferAccessor(snap)
	vis, err := m.RWVisibility()
	if err != nil {
		return err
	}
	if err := vis.CopyFrom(snap.vis); err != nil {
		return err
	}
	s.chunks = append(s.chunks, stackedChunk{info: info, snap: snap, acc: m})
	s.OrderBy(s.ordering)
	return nil
}

// Len returns the number of chunks held.
func (s *StackedSource) Len() int {
	return len(s.chunks)
}

// OrderBy sets the order of the iterators created afterwards, and of those
// restarted afterwards.
func (s *StackedSource) OrderBy(o StackOrder) {
	s.ordering = o
	s.order = s.order[:0]
	for i := range s.chunks {
		s.order = append(s.order, i)
	}
	switch o {
	case StackReverse:
		slices.Reverse(s.order)
	case StackByW:
		slices.SortStableFunc(s.order, func(a, b int) int {
			return cmp.Compare(s.chunks[a].snap.meanW(), s.chunks[b].snap.meanW())
		})
	}
}

func (s *StackedSource) buffer(name string, chunk int) *MemBufferAccessor {
	key := bufferKey{name, chunk}
	b, ok := s.buffers[key]
	if !ok {
		b = NewMemBufferAccessor(s.chunks[chunk].snap)
		s.buffers[key] = b
	}
	return b
}

// CreateIterator returns an iterator positioned at the first chunk.
func (s *StackedSource) CreateIterator() *StackedIterator {
	it := &StackedIterator{src: s}
	it.Restart()
	return it
}

// StackedIterator walks a StackedSource. Named buffers belong to a chunk,
// they follow it when the stack is reordered.
type StackedIterator struct {
	src    *StackedSource
	order  []int
	pos    int
	active string
}

// Restart goes back to the first chunk, in the current order of the
// source.
func (it *StackedIterator) Restart() {
	it.order = slices.Clone(it.src.order)
	it.pos = 0
}

func (it *StackedIterator) HasMore() bool {
	return it.pos < len(it.order)
}

// Next moves to the next chunk and reports whether there is one.
func (it *StackedIterator) Next() bool {
	if it.HasMore() {
		it.pos++
	}
	return it.HasMore()
}

// Info describes the current chunk.
func (it *StackedIterator) Info() ChunkInfo {
	if !it.HasMore() {
		return ChunkInfo{TopRow: -1}
	}
	return it.src.chunks[it.order[it.pos]].info
}

// Accessor returns the stacked chunk, nil once the iteration is over.
// Its visibilities may be modified, the flags are read-only.
func (it *StackedIterator) Accessor() *MemBufferAccessor {
	if !it.HasMore() {
		return nil
	}
	return it.src.chunks[it.order[it.pos]].acc
}

// Buffer returns the named buffer of the current chunk, zero until
// written.
func (it *StackedIterator) Buffer(name string) (*MemBufferAccessor, error) {
	if !it.HasMore() {
		return nil, ErrNotPositioned
	}
	return it.src.buffer(name, it.order[it.pos]), nil
}

// ChooseBuffer makes Active return the named buffer.
func (it *StackedIterator) ChooseBuffer(name string) {
	it.active = name
}

func (it *StackedIterator) ChooseOriginal() {
	it.active = ""
}

// Active returns the accessor chosen by ChooseBuffer or ChooseOriginal,
// nil once the iteration is over.
func (it *StackedIterator) Active() DataAccessor {
	if !it.HasMore() {
		return nil
	}
	if it.active != "" {
		b, _ := it.Buffer(it.active)
		return b
	}
	return it.Accessor()
}
