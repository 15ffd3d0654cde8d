// Package simulate builds small synthetic datasets with an ASKAP-like
// array. Visibilities are deterministic so tests and demos can check the
// exact values read back: DATA of row r, channel c and polarisation p is
// complex(r, c*NPol+p) and MODEL_DATA is half of it.
package simulate

import (
	"fmt"
	"math"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/measures"
)

// Config describes the dataset to generate.
type Config struct {
	Name        string  `yaml:"name"`
	NAntennas   int     `yaml:"antennas"`
	NChannels   int     `yaml:"channels"`
	StartFreq   float64 `yaml:"start_frequency"`
	ChanWidth   float64 `yaml:"channel_width"`
	Stokes      string  `yaml:"stokes"`
	NTimes      int     `yaml:"times"`
	StartTime   float64 `yaml:"start_time"`
	Integration float64 `yaml:"integration"`
	// NDataDescs spectral windows are laid out back to back in frequency,
	// one data descriptor each.
	NDataDescs int `yaml:"data_descriptors"`
	NFields    int `yaml:"fields"`
	NBeams     int `yaml:"beams"`
	// BeamSpacing is the offset (radians) between adjacent beams along
	// the first axis. Beam 0 is on axis.
	BeamSpacing      float64 `yaml:"beam_spacing"`
	Autocorrelations bool    `yaml:"autocorrelations"`
	Mount            string  `yaml:"mount"`
	RA               float64 `yaml:"ra"`
	Dec              float64 `yaml:"dec"`
	Sigma            float32 `yaml:"sigma"`
}

func DefaultConfig() Config {
	return Config{
		Name:        "simulated",
		NAntennas:   6,
		NChannels:   13,
		StartFreq:   1.4e9,
		ChanWidth:   1e6,
		Stokes:      "XX,YY",
		NTimes:      3,
		StartTime:   4.9e9,
		Integration: 5,
		NDataDescs:  1,
		NFields:     1,
		NBeams:      1,
		BeamSpacing: 0.01,
		Mount:       string(measures.MountEquatorial),
		RA:          1.2,
		Dec:         -0.8,
		Sigma:       1,
	}
}

func (c Config) Validate() error {
	if c.NAntennas < 2 {
		return fmt.Errorf("need at least 2 antennas, got %d", c.NAntennas)
	}
	if c.NChannels <= 0 || c.NTimes <= 0 || c.NDataDescs <= 0 || c.NFields <= 0 || c.NBeams <= 0 {
		return fmt.Errorf("channels, times, data descriptors, fields and beams must be positive")
	}
	if c.Integration <= 0 {
		return fmt.Errorf("integration must be positive, got %g", c.Integration)
	}
	if !measures.Mount(c.Mount).Known() {
		return fmt.Errorf("unknown mount %q", c.Mount)
	}
	if _, err := measures.ParseStokesList(c.Stokes); err != nil {
		return err
	}
	return nil
}

// ASKAP antenna 1, the origin of the simulated array.
var siteOrigin = measures.Position{X: -2556084.669, Y: 5097398.337, Z: -2848424.133}

// antennaPosition spreads the antennas on a spiral around the site.
func antennaPosition(i int) measures.Position {
	if i == 0 {
		return siteOrigin
	}
	r := 40.0 * float64(i)
	a := 2.4 * float64(i)
	s, c := math.Sincos(a)
	return measures.Position{X: siteOrigin.X + r*c, Y: siteOrigin.Y + r*s, Z: siteOrigin.Z + 0.5*r*(s-c)}
}

// Baselines returns the antenna pairs of one integration in row order.
func (c Config) Baselines() [][2]int {
	var out [][2]int
	for a1 := 0; a1 < c.NAntennas; a1++ {
		for a2 := a1; a2 < c.NAntennas; a2++ {
			if a1 == a2 && !c.Autocorrelations {
				continue
			}
			out = append(out, [2]int{a1, a2})
		}
	}
	return out
}

// RowsPerTime is the number of rows of one integration.
func (c Config) RowsPerTime() int {
	return len(c.Baselines()) * c.NDataDescs * c.NBeams
}

// Subtables builds the metadata of the dataset.
func (c Config) Subtables() (*database.Subtables, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	stokes, _ := measures.ParseStokesList(c.Stokes)
	sub := &database.Subtables{
		FrequencyUnit: measures.Hz,
		Polarizations: []database.PolarizationRecord{{Types: stokes}},
	}
	for i := 0; i < c.NAntennas; i++ {
		sub.Antennas = append(sub.Antennas, database.AntennaRecord{
			Name:     fmt.Sprintf("ak%02d", i+1),
			Position: antennaPosition(i),
			Mount:    measures.Mount(c.Mount),
		})
		for b := 0; b < c.NBeams; b++ {
			off := [2]float64{float64(b) * c.BeamSpacing, 0}
			sub.Feeds = append(sub.Feeds, database.FeedRecord{
				AntennaID:      i,
				FeedID:         b,
				SpWindowID:     -1,
				BeamOffsets:    [][2]float64{off, off},
				ReceptorAngles: []float64{0, math.Pi / 2},
			})
		}
	}
	for f := 0; f < c.NFields; f++ {
		sub.Fields = append(sub.Fields, database.FieldRecord{
			Name:         fmt.Sprintf("field%d", f),
			Time:         c.StartTime,
			ReferenceDir: measures.NewDirection(c.RA+0.05*float64(f), c.Dec),
		})
	}
	for d := 0; d < c.NDataDescs; d++ {
		freqs := make([]float64, c.NChannels)
		for ch := range freqs {
			freqs[ch] = c.StartFreq + float64(d*c.NChannels+ch)*c.ChanWidth
		}
		sub.SpWindows = append(sub.SpWindows, database.SpWindowRecord{Frame: measures.TOPO, Frequencies: freqs})
		sub.DataDescs = append(sub.DataDescs, database.DataDescRecord{SpWindowID: d, PolarizationID: 0})
	}
	return sub, sub.Validate()
}

// uvw projects the baseline a1->a2, rotated with the earth, on the phase
// centre.
func uvw(a1, a2 int, dt float64, phase measures.Direction) [3]float64 {
	b := antennaPosition(a2).Sub(antennaPosition(a1))
	s, c := math.Sincos(measures.EarthRotationRate * dt)
	v := [3]float64{c*b.X - s*b.Y, s*b.X + c*b.Y, b.Z}
	m := phase.UVWBasis()
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Dataset generates the table. Rows of one integration are ordered by
// data descriptor, beam and baseline. The field cycles with time and data
// descriptor.
func Dataset(c Config) (*database.MemTable, error) {
	sub, err := c.Subtables()
	if err != nil {
		return nil, err
	}
	nPol := len(sub.Polarizations[0].Types)
	table := database.NewMemTable(c.Name, sub,
		database.ColFieldID, database.ColInterval, database.ColScanNumber,
		database.ColData, database.ColModelData, database.ColFlag, database.ColFlagRow, database.ColSigma)

	baselines := c.Baselines()
	row := 0
	for t := 0; t < c.NTimes; t++ {
		dt := float64(t) * c.Integration
		for dd := 0; dd < c.NDataDescs; dd++ {
			field := (t + dd) % c.NFields
			phase := sub.Fields[field].ReferenceDir
			for beam := 0; beam < c.NBeams; beam++ {
				for _, bl := range baselines {
					r := &database.Row{
						Time:       c.StartTime + dt,
						Interval:   c.Integration,
						Antenna1:   bl[0],
						Antenna2:   bl[1],
						Feed1:      beam,
						Feed2:      beam,
						DataDescID: dd,
						FieldID:    field,
						ScanID:     field,
						UVW:        uvw(bl[0], bl[1], dt, phase),
						NChan:      c.NChannels,
						NPol:       nPol,
						Data: map[string][]complex64{
							database.ColData:      Visibilities(row, c.NChannels, nPol, 1),
							database.ColModelData: Visibilities(row, c.NChannels, nPol, 0.5),
						},
						Flag:  make([]bool, c.NChannels*nPol),
						Sigma: make([]float32, nPol),
					}
					for p := range r.Sigma {
						r.Sigma[p] = c.Sigma
					}
					if err := table.Append(r); err != nil {
						return nil, err
					}
					row++
				}
			}
		}
	}
	return table, nil
}

// Visibilities returns the simulated cube of one row scaled by scale.
func Visibilities(row, nChan, nPol int, scale float32) []complex64 {
	out := make([]complex64, nChan*nPol)
	for i := range out {
		out[i] = complex(float32(row)*scale, float32(i)*scale)
	}
	return out
}
