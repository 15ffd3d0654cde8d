package meta

import (
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"
)

// AntennaHandler answers antenna position and mount queries. Antenna ids
// are indices into the ANTENNA subtable.
type AntennaHandler struct {
	records       []database.AntennaRecord
	allEquatorial bool
}

func NewAntennaHandler(records []database.AntennaRecord) *AntennaHandler {
	h := &AntennaHandler{records: records, allEquatorial: true}
	for _, r := range records {
		if r.Mount.Normalize() != measures.MountEquatorial {
			h.allEquatorial = false
		}
	}
	return h
}

func (h *AntennaHandler) check(ant int) error {
	if ant < 0 || ant >= len(h.records) {
		return errs.MetadataLookup("antenna id outside ANTENNA subtable of %d entries", len(h.records)).WithAntenna(ant, errs.NoIndex)
	}
	return nil
}

// Position returns the ITRF position of an antenna in metres.
func (h *AntennaHandler) Position(ant int) (measures.Position, error) {
	if err := h.check(ant); err != nil {
		return measures.Position{}, err
	}
	return h.records[ant].Position, nil
}

func (h *AntennaHandler) Mount(ant int) (measures.Mount, error) {
	if err := h.check(ant); err != nil {
		return "", err
	}
	return h.records[ant].Mount.Normalize(), nil
}

func (h *AntennaHandler) Name(ant int) (string, error) {
	if err := h.check(ant); err != nil {
		return "", err
	}
	return h.records[ant].Name, nil
}

// AllEquatorial reports whether every antenna has an equatorial mount, in
// which case parallactic angles are zero for all of them.
func (h *AntennaHandler) AllEquatorial() bool {
	return h.allEquatorial
}

func (h *AntennaHandler) NumberOfAntennas() int {
	return len(h.records)
}
