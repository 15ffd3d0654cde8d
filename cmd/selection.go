package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/convert"
	"github.com/bisegni/visdata/pkg/measures"
	"github.com/bisegni/visdata/pkg/selection"
)

// selectionFlags are shared by the commands that iterate a dataset.
type selectionFlags struct {
	where    string
	baseline string
	antenna  int
	feed     int
	scan     int
	spw      int
	cycles   string
	auto     bool
	cross    bool
	uvMin    float64
	uvMax    float64
	nChan    int
	start    int
	avg      int
	pol      string
	column   string

	freqFrame string
	freqUnit  string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.where, "where", "w", "", `Selection expression (e.g. "antenna = 2 and uvmax < 300")`)
	fs.StringVar(&f.baseline, "baseline", "", "Baseline as ANT1-ANT2")
	fs.IntVar(&f.antenna, "antenna", -1, "Baselines involving this antenna")
	fs.IntVar(&f.feed, "feed", -1, "Feed (beam) id")
	fs.IntVar(&f.scan, "scan", -1, "Scan number")
	fs.IntVar(&f.spw, "spw", -1, "Spectral window id")
	fs.StringVar(&f.cycles, "cycles", "", "Integration cycles as START:STOP (STOP exclusive)")
	fs.BoolVar(&f.auto, "auto", false, "Autocorrelations only")
	fs.BoolVar(&f.cross, "cross", false, "Cross-correlations only")
	fs.Float64Var(&f.uvMin, "uvmin", 0, "Minimum uv distance in metres")
	fs.Float64Var(&f.uvMax, "uvmax", 0, "Maximum uv distance in metres")
	fs.IntVar(&f.nChan, "nchan", 0, "Number of channels to select")
	fs.IntVar(&f.start, "start-chan", 0, "First selected channel")
	fs.IntVar(&f.avg, "chan-avg", 1, "Channels averaged into one")
	fs.StringVar(&f.pol, "pol", "", `Polarisation products (e.g. "XX,YY")`)
	fs.StringVar(&f.column, "column", "", "Visibility column to read (default from configuration)")
	fs.StringVar(&f.freqFrame, "freq-frame", "", "Frequency frame of reported frequencies (TOPO, GEO, BARY, LSRK)")
	fs.StringVar(&f.freqUnit, "freq-unit", "Hz", "Unit of reported frequencies")
}

func parsePair(s, sep string) (int, int, error) {
	a, b, ok := strings.Cut(s, sep)
	if !ok {
		return 0, 0, fmt.Errorf("expected two integers separated by %q, got %q", sep, s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// selector builds a selector for ds from the flags.
func (f *selectionFlags) selector(ds *access.DataSource) (*selection.Selector, error) {
	sel := ds.CreateSelector()
	if f.where != "" {
		expr, err := selection.Parse(f.where)
		if err != nil {
			return nil, err
		}
		sel.Where(expr)
	}
	if f.baseline != "" {
		a1, a2, err := parsePair(f.baseline, "-")
		if err != nil {
			return nil, fmt.Errorf("--baseline: %w", err)
		}
		sel.ChooseBaseline(a1, a2)
	}
	if f.antenna >= 0 {
		sel.ChooseAntenna(f.antenna)
	}
	if f.feed >= 0 {
		sel.ChooseFeed(f.feed)
	}
	if f.scan >= 0 {
		sel.ChooseScanNumber(f.scan)
	}
	if f.spw >= 0 {
		if err := sel.ChooseSpectralWindow(f.spw); err != nil {
			return nil, err
		}
	}
	if f.cycles != "" {
		start, stop, err := parsePair(f.cycles, ":")
		if err != nil {
			return nil, fmt.Errorf("--cycles: %w", err)
		}
		if err := sel.ChooseCycles(start, stop); err != nil {
			return nil, err
		}
	}
	if f.auto && f.cross {
		return nil, fmt.Errorf("--auto and --cross are exclusive")
	}
	if f.auto {
		sel.ChooseAutoCorrelations()
	}
	if f.cross {
		sel.ChooseCrossCorrelations()
	}
	if f.uvMin > 0 {
		sel.ChooseMinUVDistance(f.uvMin)
	}
	if f.uvMax > 0 {
		sel.ChooseMaxUVDistance(f.uvMax)
	}
	if f.nChan > 0 {
		if err := sel.ChooseChannels(f.nChan, f.start, f.avg); err != nil {
			return nil, err
		}
	}
	if f.pol != "" {
		if err := sel.ChoosePolarizations(f.pol); err != nil {
			return nil, err
		}
	}
	if f.column != "" {
		sel.ChooseDataColumn(f.column)
	}
	return sel, nil
}

func (f *selectionFlags) converter(ds *access.DataSource) (*convert.Converter, error) {
	conv := ds.CreateConverter()
	frame, err := measures.ParseFrequencyFrame(f.freqFrame)
	if err != nil {
		return nil, err
	}
	unit, err := measures.ParseFrequencyUnit(f.freqUnit)
	if err != nil {
		return nil, err
	}
	if err := conv.SetFrequencyFrame(frame, unit); err != nil {
		return nil, err
	}
	return conv, nil
}

// iterator opens the dataset and creates a read-only iterator from the
// flags. Closing the returned data source is left to the caller.
func (f *selectionFlags) iterator(cmd *cobra.Command, path string) (*access.DataSource, *access.Iterator, error) {
	ds, err := openDataSource(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	sel, err := f.selector(ds)
	if err != nil {
		ds.Close()
		return nil, nil, err
	}
	conv, err := f.converter(ds)
	if err != nil {
		ds.Close()
		return nil, nil, err
	}
	it, err := ds.CreateConstIterator(sel, conv)
	if err != nil {
		ds.Close()
		return nil, nil, err
	}
	return ds, it, nil
}
