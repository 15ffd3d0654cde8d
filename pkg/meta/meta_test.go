package meta

import (
	"errors"
	"math"
	"testing"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"
)

func at(t float64) measures.Epoch {
	return measures.NewEpoch(t)
}

func TestFeedHandlerLookup(t *testing.T) {
	records := []database.FeedRecord{
		// wildcard spectral window, valid for ever
		{AntennaID: 0, FeedID: 0, SpWindowID: -1, BeamOffsets: [][2]float64{{0, 0}, {0, 0}}, ReceptorAngles: []float64{0.1, 0.2}},
		// two beams on antenna 1, valid 100 +/- 50 s
		{AntennaID: 1, FeedID: 0, SpWindowID: -1, Time: 100, Interval: 100, BeamOffsets: [][2]float64{{0.01, 0}, {0.03, 0}}, ReceptorAngles: []float64{0.5, 0}},
		{AntennaID: 1, FeedID: 1, SpWindowID: -1, Time: 100, Interval: 100, BeamOffsets: [][2]float64{{0, -0.02}}, ReceptorAngles: []float64{0}},
		// later time range with spw 1 only
		{AntennaID: 0, FeedID: 1, SpWindowID: 1, Time: 300, Interval: 100, BeamOffsets: [][2]float64{{0.1, 0.1}}, ReceptorAngles: []float64{1}},
	}
	h := NewFeedHandler(records)

	if !h.NewBeamDetails(at(100), 0) {
		t.Error("Expected new beam details before first access")
	}
	off, err := h.BeamOffset(at(100), 0, 1, 0)
	if err != nil {
		t.Fatalf("BeamOffset failed: %v", err)
	}
	if math.Abs(off[0]-0.02) > 1e-12 || off[1] != 0 {
		t.Errorf("Expected receptor-averaged offset (0.02, 0), got %v", off)
	}
	pa, err := h.BeamPA(at(100), 0, 1, 0)
	if err != nil || pa != 0.5 {
		t.Errorf("Expected PA of first receptor 0.5, got %v (%v)", pa, err)
	}
	if zero, _ := h.AllOffsetsZero(at(100), 0); zero {
		t.Error("Expected non-zero offsets")
	}

	// cache covers [50, 150] for any spw
	if h.NewBeamDetails(at(120), 3) {
		t.Error("Expected cached beams to stay valid inside the interval")
	}
	if !h.NewBeamDetails(at(151), 0) {
		t.Error("Expected new beam details past the interval")
	}

	idx, err := h.Indices(at(100), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx) != 2 || len(idx[0]) != 2 || idx[0][1] != -2 {
		t.Errorf("Unexpected slot matrix %v", idx)
	}

	tests := []struct {
		name      string
		ant, feed int
	}{
		{"undefined slot", 0, 1},
		{"antenna out of range", 5, 0},
		{"negative feed", 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.Index(at(100), 0, tt.ant, tt.feed); !errors.Is(err, errs.ErrMetadataLookup) {
				t.Errorf("Expected metadata lookup error, got %v", err)
			}
		})
	}

	// at t=300 and spw 1 only the wildcard and the spw-1 record apply
	ids, err := h.FeedIDs(at(300), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[1] != 1 {
		t.Errorf("Expected feeds [0 1], got %v", ids)
	}
	if !h.NewBeamDetails(at(300), 2) {
		t.Error("Expected new beam details for another spectral window")
	}
	if _, err := h.BeamOffset(at(300), -1, 0, 0); !errors.Is(err, errs.ErrMetadataLookup) {
		t.Errorf("Expected error for negative spectral window, got %v", err)
	}
}

func TestFeedHandlerNoRecords(t *testing.T) {
	h := NewFeedHandler([]database.FeedRecord{
		{AntennaID: 0, FeedID: 0, SpWindowID: 0, Time: 100, Interval: 10, BeamOffsets: [][2]float64{{0, 0}}, ReceptorAngles: []float64{0}},
	})
	if _, err := h.AllBeamPAs(at(200), 0); !errors.Is(err, errs.ErrMetadataLookup) {
		t.Errorf("Expected metadata lookup error, got %v", err)
	}
	if zero, err := h.AllOffsetsZero(at(101), 0); err != nil || !zero {
		t.Errorf("Expected on-axis beams, got %v (%v)", zero, err)
	}
}

func TestFieldHandler(t *testing.T) {
	records := []database.FieldRecord{
		{Name: "a", Time: 100, ReferenceDir: measures.NewDirection(0.1, 0.1)},
		{Name: "b", Time: 200, ReferenceDir: measures.NewDirection(0.2, 0.2)},
		{Name: "c", Time: 300, ReferenceDir: measures.NewDirection(0.3, 0.3)},
	}
	h, err := NewFieldHandler(records)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		time    float64
		want    float64
		changed bool
	}{
		{150, 0.1, true},
		{199, 0.1, false},
		{200, 0.2, true},
		{1000, 0.3, true},
		{5000, 0.3, false},
		{120, 0.1, true},
	}
	for _, tt := range tests {
		if got := h.NewField(at(tt.time)); got != tt.changed {
			t.Errorf("t=%v: NewField = %v, want %v", tt.time, got, tt.changed)
		}
		dir, err := h.ReferenceDir(at(tt.time))
		if err != nil {
			t.Fatalf("t=%v: %v", tt.time, err)
		}
		if dir.Lon != tt.want {
			t.Errorf("t=%v: got field at %v, want %v", tt.time, dir.Lon, tt.want)
		}
	}

	if _, err := h.ReferenceDir(at(50)); !errors.Is(err, errs.ErrMetadataLookup) {
		t.Errorf("Expected lookup error before first record, got %v", err)
	}
	if d, err := h.ReferenceDirByID(2); err != nil || d.Lat != 0.3 {
		t.Errorf("ReferenceDirByID(2) = %v, %v", d, err)
	}
	if _, err := h.ReferenceDirByID(3); !errors.Is(err, errs.ErrMetadataLookup) {
		t.Errorf("Expected lookup error for field 3, got %v", err)
	}
}

func TestFieldHandlerSingleRecord(t *testing.T) {
	h, err := NewFieldHandler([]database.FieldRecord{{Time: 1000, ReferenceDir: measures.NewDirection(1, -1)}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.ReferenceDir(at(1)); err != nil {
		t.Errorf("Single record should be valid at any time: %v", err)
	}
	if h.NewField(at(1e9)) || h.NewField(at(-1e9)) {
		t.Error("Single record should never change")
	}
	if _, err := NewFieldHandler(nil); !errors.Is(err, errs.ErrMetadataLookup) {
		t.Errorf("Expected error for empty FIELD subtable, got %v", err)
	}
}

func TestAntennaAndSpectralHandlers(t *testing.T) {
	ant := NewAntennaHandler([]database.AntennaRecord{
		{Name: "a0", Mount: "equatorial"},
		{Name: "a1", Mount: measures.MountEquatorial},
	})
	if !ant.AllEquatorial() || ant.NumberOfAntennas() != 2 {
		t.Error("Expected two equatorial antennas")
	}
	if m, _ := ant.Mount(0); m != measures.MountEquatorial {
		t.Errorf("Mount not normalised: %q", m)
	}
	if _, err := ant.Position(2); !errors.Is(err, errs.ErrMetadataLookup) {
		t.Errorf("Expected lookup error, got %v", err)
	}
	if NewAntennaHandler([]database.AntennaRecord{{Mount: measures.MountAltAz}}).AllEquatorial() {
		t.Error("Alt-az antenna reported as equatorial")
	}

	spw := NewSpWindowHandler([]database.SpWindowRecord{{Frame: measures.TOPO, Frequencies: []float64{1, 2, 3}}}, "")
	if spw.FrequencyUnit() != measures.Hz {
		t.Errorf("Expected Hz default, got %s", spw.FrequencyUnit())
	}
	if f, err := spw.Frequency(0, 2); err != nil || f != 3 {
		t.Errorf("Frequency(0,2) = %v, %v", f, err)
	}
	if _, err := spw.Frequency(0, 3); !errors.Is(err, errs.ErrSelection) {
		t.Errorf("Expected selection error, got %v", err)
	}

	dd := NewDataDescHandler([]database.DataDescRecord{{SpWindowID: 1}, {SpWindowID: 0, PolarizationID: 1}})
	if dd.DescIDForSpWindow(0) != 1 || dd.DescIDForSpWindow(7) != -1 {
		t.Error("DescIDForSpWindow mismatch")
	}
	if p, _ := dd.PolarizationID(1); p != 1 {
		t.Errorf("PolarizationID(1) = %d", p)
	}

	pol := NewPolarizationHandler([]database.PolarizationRecord{{Types: []measures.Stokes{measures.StokesXX, measures.StokesYY}}})
	if n, _ := pol.NPol(0); n != 2 {
		t.Errorf("NPol(0) = %d", n)
	}
	if _, err := pol.Types(1); !errors.Is(err, errs.ErrMetadataLookup) {
		t.Errorf("Expected lookup error, got %v", err)
	}
}
