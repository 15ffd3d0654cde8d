package database

import (
	"fmt"
	"io"

	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"
	"github.com/bisegni/visdata/pkg/parser"
)

// Document bodies of the JSON dataset format. One "dataset" document
// is optional; subtable documents are numbered by their order in the file.

type datasetDoc struct {
	Name          string   `json:"name"`
	FrequencyUnit string   `json:"frequency_unit,omitempty"`
	Columns       []string `json:"columns,omitempty"`
}

type antennaDoc struct {
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"`
	Mount    string     `json:"mount"`
}

type feedDoc struct {
	Antenna        int          `json:"antenna"`
	Feed           int          `json:"feed"`
	SpWindow       int          `json:"spw"`
	Time           float64      `json:"time"`
	Interval       float64      `json:"interval"`
	BeamOffsets    [][2]float64 `json:"beam_offsets"`
	ReceptorAngles []float64    `json:"receptor_angles"`
}

type fieldDoc struct {
	Name      string     `json:"name"`
	Time      float64    `json:"time"`
	Direction [2]float64 `json:"direction"`
	Frame     string     `json:"frame,omitempty"`
}

type spwDoc struct {
	Frame       string    `json:"frame"`
	Frequencies []float64 `json:"frequencies"`
}

type polarizationDoc struct {
	Types []string `json:"corr_types"`
}

type dataDescDoc struct {
	SpWindow     int `json:"spw"`
	Polarization int `json:"polarization"`
}

type rowDoc struct {
	Time          float64                 `json:"time"`
	Interval      float64                 `json:"interval,omitempty"`
	Antenna1      int                     `json:"antenna1"`
	Antenna2      int                     `json:"antenna2"`
	Feed1         int                     `json:"feed1"`
	Feed2         int                     `json:"feed2"`
	DataDescID    int                     `json:"data_desc_id"`
	FieldID       int                     `json:"field_id,omitempty"`
	Scan          int                     `json:"scan,omitempty"`
	UVW           [3]float64              `json:"uvw"`
	NChan         int                     `json:"nchan"`
	NPol          int                     `json:"npol"`
	Data          map[string][][2]float32 `json:"data"`
	Flag          []bool                  `json:"flag,omitempty"`
	FlagRow       bool                    `json:"flag_row,omitempty"`
	Sigma         []float32               `json:"sigma,omitempty"`
	SigmaSpectrum []float32               `json:"sigma_spectrum,omitempty"`
}

// LoadJSON reads a JSON or JSONL dataset file into a MemTable. Subtables
// are validated and rows must be time ordered.
func LoadJSON(filename string) (*MemTable, error) {
	p, err := parser.NewParser(filename)
	if err != nil {
		return nil, errs.IO(err, "cannot open dataset %s", filename)
	}
	defer p.Close()

	info := datasetDoc{Name: filename}
	sub := &Subtables{FrequencyUnit: measures.Hz}
	var rows []*Row

	err = p.ForEach(func(d parser.Document) error {
		switch d.Kind {
		case parser.KindDataset:
			if err := d.Decode(&info); err != nil {
				return err
			}
			if info.FrequencyUnit != "" {
				u, err := measures.ParseFrequencyUnit(info.FrequencyUnit)
				if err != nil {
					return err
				}
				sub.FrequencyUnit = u
			}
		case parser.KindAntenna:
			var a antennaDoc
			if err := d.Decode(&a); err != nil {
				return err
			}
			sub.Antennas = append(sub.Antennas, AntennaRecord{
				Name:     a.Name,
				Position: measures.Position{X: a.Position[0], Y: a.Position[1], Z: a.Position[2]},
				Mount:    measures.Mount(a.Mount).Normalize(),
			})
		case parser.KindFeed:
			var f feedDoc
			if err := d.Decode(&f); err != nil {
				return err
			}
			sub.Feeds = append(sub.Feeds, FeedRecord{
				AntennaID: f.Antenna, FeedID: f.Feed, SpWindowID: f.SpWindow,
				Time: f.Time, Interval: f.Interval,
				BeamOffsets: f.BeamOffsets, ReceptorAngles: f.ReceptorAngles,
			})
		case parser.KindField:
			var f fieldDoc
			if err := d.Decode(&f); err != nil {
				return err
			}
			frame, err := measures.ParseDirectionFrame(f.Frame)
			if err != nil {
				return err
			}
			sub.Fields = append(sub.Fields, FieldRecord{
				Name: f.Name, Time: f.Time,
				ReferenceDir: measures.Direction{Lon: f.Direction[0], Lat: f.Direction[1], Frame: frame},
			})
		case parser.KindSpWindow:
			var s spwDoc
			if err := d.Decode(&s); err != nil {
				return err
			}
			frame, err := measures.ParseFrequencyFrame(s.Frame)
			if err != nil {
				return err
			}
			sub.SpWindows = append(sub.SpWindows, SpWindowRecord{Frame: frame, Frequencies: s.Frequencies})
		case parser.KindPolarization:
			var pd polarizationDoc
			if err := d.Decode(&pd); err != nil {
				return err
			}
			rec := PolarizationRecord{}
			for _, name := range pd.Types {
				s, err := measures.ParseStokes(name)
				if err != nil {
					return err
				}
				rec.Types = append(rec.Types, s)
			}
			sub.Polarizations = append(sub.Polarizations, rec)
		case parser.KindDataDesc:
			var dd dataDescDoc
			if err := d.Decode(&dd); err != nil {
				return err
			}
			sub.DataDescs = append(sub.DataDescs, DataDescRecord{SpWindowID: dd.SpWindow, PolarizationID: dd.Polarization})
		case parser.KindRow:
			var rd rowDoc
			if err := d.Decode(&rd); err != nil {
				return err
			}
			rows = append(rows, rd.toRow())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", filename, err)
	}
	if len(rows) == 0 {
		return nil, errs.IO(nil, "dataset %s has no rows", filename)
	}
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", filename, err)
	}

	t := NewMemTable(info.Name, sub, info.Columns...)
	for _, r := range rows {
		if err := t.Append(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (rd *rowDoc) toRow() *Row {
	r := &Row{
		Time: rd.Time, Interval: rd.Interval,
		Antenna1: rd.Antenna1, Antenna2: rd.Antenna2,
		Feed1: rd.Feed1, Feed2: rd.Feed2,
		DataDescID: rd.DataDescID, FieldID: rd.FieldID, ScanID: rd.Scan,
		UVW: rd.UVW, NChan: rd.NChan, NPol: rd.NPol,
		Flag: rd.Flag, FlagRow: rd.FlagRow,
		Sigma: rd.Sigma, SigmaSpectrum: rd.SigmaSpectrum,
		Data: make(map[string][]complex64, len(rd.Data)),
	}
	for name, pairs := range rd.Data {
		values := make([]complex64, len(pairs))
		for i, p := range pairs {
			values[i] = complex(p[0], p[1])
		}
		r.Data[name] = values
	}
	return r
}

func rowToDoc(r *Row) rowDoc {
	rd := rowDoc{
		Time: r.Time, Interval: r.Interval,
		Antenna1: r.Antenna1, Antenna2: r.Antenna2,
		Feed1: r.Feed1, Feed2: r.Feed2,
		DataDescID: r.DataDescID, FieldID: r.FieldID, Scan: r.ScanID,
		UVW: r.UVW, NChan: r.NChan, NPol: r.NPol,
		Flag: r.Flag, FlagRow: r.FlagRow,
		Sigma: r.Sigma, SigmaSpectrum: r.SigmaSpectrum,
		Data: make(map[string][][2]float32, len(r.Data)),
	}
	for name, values := range r.Data {
		pairs := make([][2]float32, len(values))
		for i, v := range values {
			pairs[i] = [2]float32{real(v), imag(v)}
		}
		rd.Data[name] = pairs
	}
	return rd
}

// ExportJSON writes a table in the JSONL dataset format.
func ExportJSON(w io.Writer, t Table) error {
	out := parser.NewWriter(w, false)
	sub := t.Subtables()

	var optional []string
	for _, c := range []string{ColInterval, ColFieldID, ColScanNumber, ColFlag, ColFlagRow, ColSigma, ColSigmaSpectrum} {
		if t.HasColumn(c) {
			optional = append(optional, c)
		}
	}
	if err := out.Write(parser.KindDataset, datasetDoc{
		Name: t.Name(), FrequencyUnit: string(sub.FrequencyUnit), Columns: optional,
	}); err != nil {
		return err
	}
	for _, a := range sub.Antennas {
		if err := out.Write(parser.KindAntenna, antennaDoc{
			Name: a.Name, Position: [3]float64{a.Position.X, a.Position.Y, a.Position.Z}, Mount: string(a.Mount),
		}); err != nil {
			return err
		}
	}
	for _, f := range sub.Feeds {
		if err := out.Write(parser.KindFeed, feedDoc{
			Antenna: f.AntennaID, Feed: f.FeedID, SpWindow: f.SpWindowID, Time: f.Time, Interval: f.Interval,
			BeamOffsets: f.BeamOffsets, ReceptorAngles: f.ReceptorAngles,
		}); err != nil {
			return err
		}
	}
	for _, f := range sub.Fields {
		if err := out.Write(parser.KindField, fieldDoc{
			Name: f.Name, Time: f.Time,
			Direction: [2]float64{f.ReferenceDir.Lon, f.ReferenceDir.Lat}, Frame: f.ReferenceDir.Frame.String(),
		}); err != nil {
			return err
		}
	}
	for _, s := range sub.SpWindows {
		if err := out.Write(parser.KindSpWindow, spwDoc{Frame: s.Frame.String(), Frequencies: s.Frequencies}); err != nil {
			return err
		}
	}
	for _, p := range sub.Polarizations {
		names := make([]string, len(p.Types))
		for i, s := range p.Types {
			names[i] = s.String()
		}
		if err := out.Write(parser.KindPolarization, polarizationDoc{Types: names}); err != nil {
			return err
		}
	}
	for _, dd := range sub.DataDescs {
		if err := out.Write(parser.KindDataDesc, dataDescDoc{SpWindow: dd.SpWindowID, Polarization: dd.PolarizationID}); err != nil {
			return err
		}
	}

	it, err := t.Iterate()
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		if err := out.Write(parser.KindRow, rowToDoc(it.Row())); err != nil {
			return err
		}
	}
	return it.Error()
}
