package database

import (
	"fmt"

	"github.com/bisegni/visdata/pkg/measures"
)

// AntennaRecord is one row of the ANTENNA subtable. The antenna id is the
// record index.
type AntennaRecord struct {
	Name     string
	Position measures.Position
	Mount    measures.Mount
}

// FeedRecord is one row of the FEED subtable. SpWindowID -1 applies to all
// spectral windows; Interval 0 makes the record valid at any time.
type FeedRecord struct {
	AntennaID  int
	FeedID     int
	SpWindowID int
	Time       float64
	Interval   float64
	// BeamOffsets holds one (x, y) offset in radians per receptor.
	BeamOffsets    [][2]float64
	ReceptorAngles []float64
}

// FieldRecord is one row of the FIELD subtable. The field id is the record
// index; records are expected in ascending time order.
type FieldRecord struct {
	Name         string
	Time         float64
	ReferenceDir measures.Direction
}

// SpWindowRecord is one row of the SPECTRAL_WINDOW subtable. Frequencies
// are in the table-wide frequency unit.
type SpWindowRecord struct {
	Frame       measures.FrequencyFrame
	Frequencies []float64
}

// PolarizationRecord is one row of the POLARIZATION subtable.
type PolarizationRecord struct {
	Types []measures.Stokes
}

// DataDescRecord maps a data descriptor (record index) to a spectral window
// and a polarisation setup.
type DataDescRecord struct {
	SpWindowID     int
	PolarizationID int
}

// Subtables holds the read-only metadata tables of a dataset.
type Subtables struct {
	Antennas      []AntennaRecord
	Feeds         []FeedRecord
	Fields        []FieldRecord
	SpWindows     []SpWindowRecord
	FrequencyUnit measures.FrequencyUnit
	Polarizations []PolarizationRecord
	DataDescs     []DataDescRecord
}

// Validate checks the cross references between subtables.
func (s *Subtables) Validate() error {
	if len(s.Antennas) == 0 {
		return fmt.Errorf("ANTENNA subtable is empty")
	}
	for i, a := range s.Antennas {
		if !a.Mount.Known() {
			return fmt.Errorf("antenna %d has unknown mount %q", i, a.Mount)
		}
	}
	for i, f := range s.Feeds {
		if f.AntennaID < 0 || f.FeedID < 0 {
			return fmt.Errorf("feed record %d: negative antenna or feed id", i)
		}
		if f.AntennaID >= len(s.Antennas) {
			return fmt.Errorf("feed record %d references antenna %d", i, f.AntennaID)
		}
		if len(f.BeamOffsets) == 0 || len(f.ReceptorAngles) == 0 {
			return fmt.Errorf("feed record %d has no receptors", i)
		}
		if f.SpWindowID >= len(s.SpWindows) {
			return fmt.Errorf("feed record %d references spectral window %d", i, f.SpWindowID)
		}
	}
	for i, sw := range s.SpWindows {
		if len(sw.Frequencies) == 0 {
			return fmt.Errorf("spectral window %d has no channels", i)
		}
	}
	if _, err := s.FrequencyUnit.Scale(); err != nil {
		return err
	}
	for i, p := range s.Polarizations {
		if len(p.Types) == 0 {
			return fmt.Errorf("polarisation setup %d is empty", i)
		}
	}
	for i, dd := range s.DataDescs {
		if dd.SpWindowID < 0 || dd.SpWindowID >= len(s.SpWindows) {
			return fmt.Errorf("data descriptor %d references spectral window %d", i, dd.SpWindowID)
		}
		if dd.PolarizationID < 0 || dd.PolarizationID >= len(s.Polarizations) {
			return fmt.Errorf("data descriptor %d references polarisation %d", i, dd.PolarizationID)
		}
	}
	for i := 1; i < len(s.Fields); i++ {
		if s.Fields[i].Time < s.Fields[i-1].Time {
			return fmt.Errorf("FIELD subtable is not time ordered at record %d", i)
		}
	}
	return nil
}
