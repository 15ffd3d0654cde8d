package meta

import (
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"
)

// SpWindowHandler serves channel frequencies per spectral window.
type SpWindowHandler struct {
	records []database.SpWindowRecord
	unit    measures.FrequencyUnit
}

func NewSpWindowHandler(records []database.SpWindowRecord, unit measures.FrequencyUnit) *SpWindowHandler {
	if unit == "" {
		unit = measures.Hz
	}
	return &SpWindowHandler{records: records, unit: unit}
}

func (h *SpWindowHandler) check(spw int) error {
	if spw < 0 || spw >= len(h.records) {
		return errs.MetadataLookup("spectral window %d outside SPECTRAL_WINDOW subtable of %d entries", spw, len(h.records))
	}
	return nil
}

// ReferenceFrame returns the frame the frequencies of spw are stored in.
func (h *SpWindowHandler) ReferenceFrame(spw int) (measures.FrequencyFrame, error) {
	if err := h.check(spw); err != nil {
		return measures.FrequencyUndefined, err
	}
	return h.records[spw].Frame, nil
}

// FrequencyUnit returns the unit of all stored frequencies.
func (h *SpWindowHandler) FrequencyUnit() measures.FrequencyUnit {
	return h.unit
}

// Frequencies returns the stored channel axis. The slice is shared with the
// handler and must not be modified.
func (h *SpWindowHandler) Frequencies(spw int) ([]float64, error) {
	if err := h.check(spw); err != nil {
		return nil, err
	}
	return h.records[spw].Frequencies, nil
}

func (h *SpWindowHandler) Frequency(spw, ch int) (float64, error) {
	if err := h.check(spw); err != nil {
		return 0, err
	}
	freqs := h.records[spw].Frequencies
	if ch < 0 || ch >= len(freqs) {
		return 0, errs.Selection("channel outside spectral window %d of %d channels", spw, len(freqs)).WithChannel(ch)
	}
	return freqs[ch], nil
}

func (h *SpWindowHandler) NumChannels(spw int) (int, error) {
	if err := h.check(spw); err != nil {
		return 0, err
	}
	return len(h.records[spw].Frequencies), nil
}

func (h *SpWindowHandler) NumberOfWindows() int {
	return len(h.records)
}

// PolarizationHandler serves polarisation setups.
type PolarizationHandler struct {
	records []database.PolarizationRecord
}

func NewPolarizationHandler(records []database.PolarizationRecord) *PolarizationHandler {
	return &PolarizationHandler{records: records}
}

func (h *PolarizationHandler) NPol(polID int) (int, error) {
	types, err := h.Types(polID)
	return len(types), err
}

func (h *PolarizationHandler) Types(polID int) ([]measures.Stokes, error) {
	if polID < 0 || polID >= len(h.records) {
		return nil, errs.MetadataLookup("polarisation id %d outside POLARIZATION subtable of %d entries", polID, len(h.records))
	}
	return h.records[polID].Types, nil
}

// DataDescHandler maps data descriptors to spectral windows and
// polarisation setups.
type DataDescHandler struct {
	records []database.DataDescRecord
}

func NewDataDescHandler(records []database.DataDescRecord) *DataDescHandler {
	return &DataDescHandler{records: records}
}

func (h *DataDescHandler) check(dd int) error {
	if dd < 0 || dd >= len(h.records) {
		return errs.MetadataLookup("data descriptor %d outside DATA_DESCRIPTION subtable of %d entries", dd, len(h.records))
	}
	return nil
}

func (h *DataDescHandler) SpectralWindowID(dd int) (int, error) {
	if err := h.check(dd); err != nil {
		return 0, err
	}
	return h.records[dd].SpWindowID, nil
}

func (h *DataDescHandler) PolarizationID(dd int) (int, error) {
	if err := h.check(dd); err != nil {
		return 0, err
	}
	return h.records[dd].PolarizationID, nil
}

// DescIDForSpWindow returns the first data descriptor using spw, or -1.
func (h *DataDescHandler) DescIDForSpWindow(spw int) int {
	for i, r := range h.records {
		if r.SpWindowID == spw {
			return i
		}
	}
	return -1
}

// DescIDsForSpWindow returns every data descriptor using spw.
func (h *DataDescHandler) DescIDsForSpWindow(spw int) []int {
	var ids []int
	for i, r := range h.records {
		if r.SpWindowID == spw {
			ids = append(ids, i)
		}
	}
	return ids
}

func (h *DataDescHandler) NumberOfDescs() int {
	return len(h.records)
}
