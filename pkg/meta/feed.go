package meta

import (
	"math"
	"sync"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/logging"
	"github.com/bisegni/visdata/pkg/measures"
)

const (
	// zeroOffsetThreshold is the offset (radians) below which a beam counts
	// as on-axis.
	zeroOffsetThreshold = 1e-15

	// unboundedTime stands for the open ends of a zero-interval record.
	unboundedTime = 1e30

	undefinedSlot = -2
)

// FeedHandler serves beam offsets and position angles valid at a given
// epoch and spectral window. All records matching the query are cached
// together with the intersection of their validity intervals; the FEED
// subtable is only scanned again when a query falls outside that cache.
type FeedHandler struct {
	records []database.FeedRecord

	mu        sync.Mutex
	valid     bool
	start     float64
	stop      float64
	cachedSpw int
	offsets   [][2]float64
	pas       []float64
	antIDs    []int
	feedIDs   []int
	// indices maps [antenna][feed] to a position in the per-beam slices.
	indices [][]int
	allZero bool
}

func NewFeedHandler(records []database.FeedRecord) *FeedHandler {
	return &FeedHandler{records: records, cachedSpw: -1}
}

// NewBeamDetails reports whether a query at epoch for spw would need a new
// set of records. It does not touch the cache.
func (h *FeedHandler) NewBeamDetails(epoch measures.Epoch, spw int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stale(epoch.Seconds, spw)
}

func (h *FeedHandler) stale(t float64, spw int) bool {
	if !h.valid {
		return true
	}
	if t < h.start || t > h.stop {
		return true
	}
	return spw != h.cachedSpw && h.cachedSpw != -1
}

func (h *FeedHandler) ensure(epoch measures.Epoch, spw int) error {
	if spw < 0 {
		return errs.MetadataLookup("negative spectral window id %d in feed lookup", spw)
	}
	if !h.stale(epoch.Seconds, spw) {
		return nil
	}
	return h.fill(epoch.Seconds, spw)
}

func (h *FeedHandler) fill(t float64, spw int) error {
	h.valid = false
	var selected []database.FeedRecord
	for _, r := range h.records {
		if r.SpWindowID != spw && r.SpWindowID != -1 {
			continue
		}
		if r.Interval != 0 && math.Abs(t-r.Time) > r.Interval/2 {
			continue
		}
		selected = append(selected, r)
	}
	if len(selected) == 0 {
		return errs.MetadataLookup("no FEED records valid at time %.3f for spectral window %d", t, spw)
	}

	h.start, h.stop = -unboundedTime, unboundedTime
	h.cachedSpw = -1
	maxAnt, maxFeed := 0, 0
	for _, r := range selected {
		if r.AntennaID < 0 || r.FeedID < 0 {
			return errs.MetadataLookup("negative antenna or feed id in FEED subtable").WithAntenna(r.AntennaID, r.FeedID)
		}
		if r.Interval != 0 {
			h.start = math.Max(h.start, r.Time-r.Interval/2)
			h.stop = math.Min(h.stop, r.Time+r.Interval/2)
		}
		if h.cachedSpw == -1 && r.SpWindowID != -1 {
			h.cachedSpw = r.SpWindowID
		}
		if r.AntennaID > maxAnt {
			maxAnt = r.AntennaID
		}
		if r.FeedID > maxFeed {
			maxFeed = r.FeedID
		}
	}

	h.indices = make([][]int, maxAnt+1)
	for i := range h.indices {
		h.indices[i] = make([]int, maxFeed+1)
		for j := range h.indices[i] {
			h.indices[i][j] = undefinedSlot
		}
	}
	h.offsets = make([][2]float64, len(selected))
	h.pas = make([]float64, len(selected))
	h.antIDs = make([]int, len(selected))
	h.feedIDs = make([]int, len(selected))
	h.allZero = true
	for i, r := range selected {
		if h.indices[r.AntennaID][r.FeedID] != undefinedSlot {
			return errs.MetadataLookup("more than one FEED record valid at time %.3f", t).WithAntenna(r.AntennaID, r.FeedID)
		}
		if len(r.BeamOffsets) == 0 || len(r.ReceptorAngles) == 0 {
			return errs.MetadataLookup("FEED record has no receptors").WithAntenna(r.AntennaID, r.FeedID)
		}
		h.indices[r.AntennaID][r.FeedID] = i
		h.antIDs[i] = r.AntennaID
		h.feedIDs[i] = r.FeedID

		var off [2]float64
		for _, o := range r.BeamOffsets {
			off[0] += o[0]
			off[1] += o[1]
		}
		n := float64(len(r.BeamOffsets))
		off[0] /= n
		off[1] /= n
		h.offsets[i] = off
		h.pas[i] = r.ReceptorAngles[0]
		if math.Abs(off[0]) > zeroOffsetThreshold || math.Abs(off[1]) > zeroOffsetThreshold {
			h.allZero = false
		}
	}
	h.valid = true

	logging.Component("meta").Debug("feed cache refilled",
		"time", t, "spw", spw, "beams", len(selected), "start", h.start, "stop", h.stop)
	return nil
}

func (h *FeedHandler) slot(ant, feed int) (int, error) {
	if ant < 0 || feed < 0 || ant >= len(h.indices) || feed >= len(h.indices[ant]) {
		return 0, errs.MetadataLookup("antenna/feed pair outside FEED subtable").WithAntenna(ant, feed)
	}
	i := h.indices[ant][feed]
	if i < 0 {
		return 0, errs.MetadataLookup("no FEED record for antenna/feed pair").WithAntenna(ant, feed)
	}
	return i, nil
}

// BeamOffset returns the receptor-averaged beam offset of one feed.
func (h *FeedHandler) BeamOffset(epoch measures.Epoch, spw, ant, feed int) ([2]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return [2]float64{}, err
	}
	i, err := h.slot(ant, feed)
	if err != nil {
		return [2]float64{}, err
	}
	return h.offsets[i], nil
}

// BeamPA returns the position angle of the first receptor of one feed.
func (h *FeedHandler) BeamPA(epoch measures.Epoch, spw, ant, feed int) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return 0, err
	}
	i, err := h.slot(ant, feed)
	if err != nil {
		return 0, err
	}
	return h.pas[i], nil
}

// Index returns the cache slot of an antenna/feed pair. The slot indexes the
// slices returned by AllBeamOffsets, AllBeamPAs, AntennaIDs and FeedIDs.
func (h *FeedHandler) Index(epoch measures.Epoch, spw, ant, feed int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return 0, err
	}
	return h.slot(ant, feed)
}

// Indices returns a copy of the antenna x feed slot matrix; undefined
// pairs hold -2.
func (h *FeedHandler) Indices(epoch measures.Epoch, spw int) ([][]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return nil, err
	}
	out := make([][]int, len(h.indices))
	for i, row := range h.indices {
		out[i] = append([]int(nil), row...)
	}
	return out, nil
}

func (h *FeedHandler) AllBeamOffsets(epoch measures.Epoch, spw int) ([][2]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return nil, err
	}
	return append([][2]float64(nil), h.offsets...), nil
}

func (h *FeedHandler) AllBeamPAs(epoch measures.Epoch, spw int) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return nil, err
	}
	return append([]float64(nil), h.pas...), nil
}

func (h *FeedHandler) AntennaIDs(epoch measures.Epoch, spw int) ([]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return nil, err
	}
	return append([]int(nil), h.antIDs...), nil
}

func (h *FeedHandler) FeedIDs(epoch measures.Epoch, spw int) ([]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return nil, err
	}
	return append([]int(nil), h.feedIDs...), nil
}

// AllOffsetsZero reports whether every beam valid at epoch is on-axis.
func (h *FeedHandler) AllOffsetsZero(epoch measures.Epoch, spw int) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensure(epoch, spw); err != nil {
		return false, err
	}
	return h.allZero, nil
}
