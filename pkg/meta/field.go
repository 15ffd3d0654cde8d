package meta

import (
	"math"
	"sync"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/logging"
	"github.com/bisegni/visdata/pkg/measures"
)

// FieldHandler serves the reference (phase centre) direction of the field
// observed at a given epoch. Record i is valid from its own time up to the
// time of record i+1; the last record stays valid afterwards and a table
// with a single record is valid at all times.
type FieldHandler struct {
	records []database.FieldRecord

	mu            sync.Mutex
	neverAccessed bool
	pos           int
	start         float64
	stop          float64
}

func NewFieldHandler(records []database.FieldRecord) (*FieldHandler, error) {
	if len(records) == 0 {
		return nil, errs.MetadataLookup("FIELD subtable is empty")
	}
	return &FieldHandler{records: records, neverAccessed: true}, nil
}

// NewField reports whether the field valid at epoch differs from the
// cached one.
func (h *FieldHandler) NewField(epoch measures.Epoch) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.changed(epoch.Seconds)
}

func (h *FieldHandler) changed(t float64) bool {
	if h.neverAccessed {
		return true
	}
	if t < h.start {
		return true
	}
	if len(h.records) == 1 {
		return false
	}
	return t >= h.stop
}

// ReferenceDir returns the reference direction of the field valid at epoch.
func (h *FieldHandler) ReferenceDir(epoch measures.Epoch) (measures.Direction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.changed(epoch.Seconds) {
		if err := h.fill(epoch.Seconds); err != nil {
			return measures.Direction{}, err
		}
	}
	return h.records[h.pos].ReferenceDir, nil
}

// ReferenceDirByID returns the reference direction of a field by id,
// independently of the time-based cache.
func (h *FieldHandler) ReferenceDirByID(fieldID int) (measures.Direction, error) {
	if fieldID < 0 || fieldID >= len(h.records) {
		return measures.Direction{}, errs.MetadataLookup("field id %d outside FIELD subtable of %d entries", fieldID, len(h.records))
	}
	return h.records[fieldID].ReferenceDir, nil
}

// NumberOfFields returns the number of FIELD records.
func (h *FieldHandler) NumberOfFields() int {
	return len(h.records)
}

func (h *FieldHandler) fill(t float64) error {
	if len(h.records) == 1 {
		h.pos = 0
		h.start, h.stop = math.Inf(-1), math.Inf(1)
		h.neverAccessed = false
		return nil
	}
	if h.neverAccessed || t < h.start {
		// the cursor only moves forward; rewind for earlier epochs
		h.pos = 0
	}
	if t < h.records[0].Time {
		h.neverAccessed = true
		return errs.MetadataLookup("time %.3f precedes the first FIELD record at %.3f", t, h.records[0].Time)
	}
	for h.pos+1 < len(h.records) && h.records[h.pos+1].Time <= t {
		h.pos++
	}
	h.start = h.records[h.pos].Time
	if h.pos+1 < len(h.records) {
		h.stop = h.records[h.pos+1].Time
	} else {
		h.stop = math.Inf(1)
	}
	h.neverAccessed = false

	logging.Component("meta").Debug("field cache refilled",
		"time", t, "field", h.pos, "name", h.records[h.pos].Name)
	return nil
}
