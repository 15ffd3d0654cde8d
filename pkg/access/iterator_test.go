package access

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/bisegni/visdata/pkg/convert"
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"
	"github.com/bisegni/visdata/pkg/simulate"
)

func TestIterateAll(t *testing.T) {
	ds, _ := newSource(t, nil)
	it, err := ds.CreateConstIterator(nil, nil)
	if err != nil {
		t.Fatalf("CreateConstIterator failed: %v", err)
	}
	defer it.Close()

	k := 0
	for it.HasMore() {
		acc := it.Accessor()
		if acc.NRow() != 15 || acc.NChannel() != 13 || acc.NPol() != 2 {
			t.Fatalf("chunk %d shape %dx%dx%d", k, acc.NRow(), acc.NChannel(), acc.NPol())
		}
		if got := it.CurrentTopRow(); got != 15*k {
			t.Errorf("chunk %d top row = %d", k, got)
		}
		vis, err := acc.Visibility()
		if err != nil {
			t.Fatalf("Visibility failed: %v", err)
		}
		for _, c := range [][3]int{{0, 0, 0}, {3, 12, 1}, {14, 5, 0}} {
			want := complex(float32(15*k+c[0]), float32(c[1]*2+c[2]))
			if got := vis.At(c[0], c[1], c[2]); got != want {
				t.Errorf("chunk %d vis%v = %v, want %v", k, c, got, want)
			}
		}
		if got, want := acc.Time(), 4.9e9+5*float64(k); got != want {
			t.Errorf("chunk %d time = %f, want %f", k, got, want)
		}
		if a1, a2 := acc.Antenna1(), acc.Antenna2(); a1[0] != 0 || a2[0] != 1 || a1[14] != 4 || a2[14] != 5 {
			t.Errorf("unexpected baselines %v %v", a1, a2)
		}
		if len(acc.UVW()) != 15 {
			t.Errorf("UVW has %d rows", len(acc.UVW()))
		}
		k++
		if _, err := it.Next(); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	if k != 3 {
		t.Errorf("iterated %d chunks, want 3", k)
	}
	if it.State() != Exhausted || it.CurrentTopRow() != -1 {
		t.Errorf("state after the end = %v", it.State())
	}
	if more, err := it.Next(); more || err != nil {
		t.Errorf("Next after the end = %v, %v", more, err)
	}
}

func TestIterateAntennaSelection(t *testing.T) {
	ds, _ := newSource(t, nil)
	sel := ds.CreateSelector()
	sel.ChooseAntenna(2)
	sel.ChooseCrossCorrelations()
	it, err := ds.CreateConstIterator(sel, nil)
	if err != nil {
		t.Fatalf("CreateConstIterator failed: %v", err)
	}
	defer it.Close()

	chunks := 0
	for it.HasMore() {
		acc := it.Accessor()
		if acc.NRow() != 5 {
			t.Errorf("chunk %d has %d rows, want 5", chunks, acc.NRow())
		}
		a1, a2 := acc.Antenna1(), acc.Antenna2()
		first, second := 0, 0
		for i := range a1 {
			if (a1[i] == 2) == (a2[i] == 2) {
				t.Errorf("row %d is baseline %d-%d", i, a1[i], a2[i])
			}
			if a1[i] == 2 {
				first++
			}
			if a2[i] == 2 {
				second++
			}
		}
		if first != 3 || second != 2 {
			t.Errorf("chunk %d: antenna 2 first in %d rows and second in %d, want 3 and 2", chunks, first, second)
		}
		chunks++
		it.Next()
	}
	if chunks != 3 {
		t.Errorf("iterated %d chunks, want 3", chunks)
	}
}

func TestMaxChunkSize(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		nDD   int
		sizes []int
	}{
		{"unbounded", math.MaxInt, 1, []int{15, 15, 15}},
		{"half", 7, 1, []int{7, 7, 1, 7, 7, 1, 7, 7, 1}},
		{"one", 1, 1, func() []int {
			s := make([]int, 45)
			for i := range s {
				s[i] = 1
			}
			return s
		}()},
		{"two descriptors", 10, 2, []int{10, 5, 10, 5, 10, 5, 10, 5, 10, 5, 10, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, _ := newSource(t, func(c *simulate.Config) { c.NDataDescs = tt.nDD })
			if err := ds.ConfigureMaxChunkSize(tt.max); err != nil {
				t.Fatalf("ConfigureMaxChunkSize failed: %v", err)
			}
			it, err := ds.CreateConstIterator(nil, nil)
			if err != nil {
				t.Fatalf("CreateConstIterator failed: %v", err)
			}
			defer it.Close()
			var sizes []int
			for _, c := range walk(t, it) {
				sizes = append(sizes, c.rows)
			}
			if !slices.Equal(sizes, tt.sizes) {
				t.Errorf("chunk sizes = %v, want %v", sizes, tt.sizes)
			}
		})
	}
}

func TestChunksAreUniform(t *testing.T) {
	ds, table := newSource(t, func(c *simulate.Config) {
		c.NDataDescs = 2
		c.NFields = 2
	})
	if err := ds.ConfigureMaxChunkSize(8); err != nil {
		t.Fatal(err)
	}
	it, err := ds.CreateConstIterator(nil, nil)
	if err != nil {
		t.Fatalf("CreateConstIterator failed: %v", err)
	}
	defer it.Close()

	seen := make(map[int]bool)
	for it.HasMore() {
		for _, r := range it.chunkRows() {
			if seen[r.index] {
				t.Fatalf("row %d served twice", r.index)
			}
			seen[r.index] = true
			if r.row.DataDescID != it.CurrentDataDescID() || r.row.FieldID != it.CurrentFieldID() {
				t.Errorf("row %d (dd %d field %d) in chunk of dd %d field %d",
					r.index, r.row.DataDescID, r.row.FieldID, it.CurrentDataDescID(), it.CurrentFieldID())
			}
		}
		freqs, err := it.Accessor().Frequency()
		if err != nil {
			t.Fatalf("Frequency failed: %v", err)
		}
		if want := 1.4e9 + float64(it.CurrentDataDescID()*13)*1e6; freqs[0] != want {
			t.Errorf("dd %d starts at %g, want %g", it.CurrentDataDescID(), freqs[0], want)
		}
		it.Next()
	}
	if len(seen) != table.NumRows() {
		t.Errorf("served %d rows of %d", len(seen), table.NumRows())
	}
}

func TestChannelSelection(t *testing.T) {
	ds, _ := newSource(t, nil)
	sel := ds.CreateSelector()
	if err := sel.ChooseChannels(3, 4, 1); err != nil {
		t.Fatal(err)
	}
	it, err := ds.CreateConstIterator(sel, nil)
	if err != nil {
		t.Fatalf("CreateConstIterator failed: %v", err)
	}
	defer it.Close()

	acc := it.Accessor()
	if acc.NChannel() != 3 {
		t.Fatalf("NChannel = %d, want 3", acc.NChannel())
	}
	vis, err := acc.Visibility()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := vis.At(2, 0, 1), complex(float32(2), float32(4*2+1)); got != want {
		t.Errorf("vis = %v, want %v", got, want)
	}
	freqs, _ := acc.Frequency()
	if !slices.Equal(freqs, []float64{1.404e9, 1.405e9, 1.406e9}) {
		t.Errorf("frequencies = %v", freqs)
	}
}

func TestNoise(t *testing.T) {
	// channels 4..6 of 13 are selected
	tests := []struct {
		name string
		pol  string
		set  func(r *database.Row)
		want func(ch, pol int) float32
	}{
		{
			name: "sigma spectrum before sigma",
			set: func(r *database.Row) {
				r.SigmaSpectrum = make([]float32, 26)
				for k := range r.SigmaSpectrum {
					r.SigmaSpectrum[k] = float32(k) + 0.5
				}
				r.Sigma = []float32{3, 4}
			},
			want: func(ch, pol int) float32 { return float32((ch+4)*2+pol) + 0.5 },
		},
		{
			name: "per polarisation sigma broadcast over channels",
			set:  func(r *database.Row) { r.Sigma = []float32{3, 4} },
			want: func(ch, pol int) float32 { return float32(3 + pol) },
		},
		{
			name: "per polarisation sigma of a selected product",
			pol:  "YY",
			set:  func(r *database.Row) { r.Sigma = []float32{3, 4} },
			want: func(ch, pol int) float32 { return 4 },
		},
		{
			name: "per channel sigma",
			set: func(r *database.Row) {
				r.Sigma = make([]float32, 26)
				for k := range r.Sigma {
					r.Sigma[k] = 2 * float32(k)
				}
			},
			want: func(ch, pol int) float32 { return 2 * float32((ch+4)*2+pol) },
		},
		{
			name: "no sigma columns",
			set:  func(r *database.Row) { r.Sigma = nil },
			want: func(ch, pol int) float32 { return 1 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, table := newSource(t, nil)
			for i := 0; i < table.NumRows(); i++ {
				r, _ := table.Row(i)
				tt.set(r)
			}
			sel := ds.CreateSelector()
			if err := sel.ChooseChannels(3, 4, 1); err != nil {
				t.Fatal(err)
			}
			if tt.pol != "" {
				if err := sel.ChoosePolarizations(tt.pol); err != nil {
					t.Fatal(err)
				}
			}
			it, err := ds.CreateConstIterator(sel, nil)
			if err != nil {
				t.Fatalf("CreateConstIterator failed: %v", err)
			}
			defer it.Close()

			noise, err := it.Accessor().Noise()
			if err != nil {
				t.Fatalf("Noise failed: %v", err)
			}
			nRow, nChan, nPol := noise.Shape()
			if nRow != 15 || nChan != 3 {
				t.Fatalf("noise shape %dx%dx%d", nRow, nChan, nPol)
			}
			for _, row := range []int{0, 14} {
				for ch := 0; ch < nChan; ch++ {
					for p := 0; p < nPol; p++ {
						w := tt.want(ch, p)
						if got := noise.At(row, ch, p); got != complex(w, w) {
							t.Errorf("row %d ch %d pol %d noise = %v, want %v", row, ch, p, got, complex(w, w))
						}
					}
				}
			}
		})
	}
}

func TestChannelSelectionOutOfRange(t *testing.T) {
	ds, _ := newSource(t, nil)
	sel := ds.CreateSelector()
	sel.ChooseChannels(5, 10, 1)
	if _, err := ds.CreateConstIterator(sel, nil); !errors.Is(err, errs.ErrSelection) {
		t.Fatalf("expected a selection error, got %v", err)
	}
}

func TestFrequencySelection(t *testing.T) {
	tests := []struct {
		name    string
		freq    float64
		start   int
		flagged bool
		// native sets the converter to the frame and unit of the data
		native bool
	}{
		{"channel 2", 1.402e9, 2, false, false},
		{"channel 2 in the native frame", 1.402e9, 2, false, true},
		{"between channels", 1.40249e9, 2, false, false},
		{"above the band", 1.5e9, 12, true, false},
		{"below the band", 1.3e9, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, _ := newSource(t, nil)
			sel := ds.CreateSelector()
			if err := sel.ChooseFrequencies(1, tt.freq, 0); err != nil {
				t.Fatal(err)
			}
			var conv *convert.Converter
			if tt.native {
				conv = ds.CreateConverter()
				if err := conv.SetFrequencyFrame(measures.TOPO, measures.Hz); err != nil {
					t.Fatal(err)
				}
			}
			it, err := ds.CreateConstIterator(sel, conv)
			if err != nil {
				t.Fatalf("CreateConstIterator failed: %v", err)
			}
			defer it.Close()
			n, start := it.ChannelWindow()
			if n != 1 || start != tt.start {
				t.Fatalf("channel window = %d@%d, want 1@%d", n, start, tt.start)
			}
			flags, err := it.Accessor().Flag()
			if err != nil {
				t.Fatal(err)
			}
			if flags.At(0, 0, 0) != tt.flagged {
				t.Errorf("flag = %v, want %v", flags.At(0, 0, 0), tt.flagged)
			}
			if tt.flagged {
				return
			}
			freqs, err := it.Accessor().Frequency()
			if err != nil {
				t.Fatal(err)
			}
			if len(freqs) != 1 || freqs[0] != 1.402e9 {
				t.Errorf("frequencies = %v", freqs)
			}
			vis, _ := it.Accessor().Visibility()
			if got := vis.At(1, 0, 0); got != complex(1, 4) {
				t.Errorf("vis = %v, want (1+4i)", got)
			}
		})
	}
}

func TestPolarizationSelection(t *testing.T) {
	ds, _ := newSource(t, nil)
	sel := ds.CreateSelector()
	if err := sel.ChoosePolarizations("YY"); err != nil {
		t.Fatal(err)
	}
	it, err := ds.CreateConstIterator(sel, nil)
	if err != nil {
		t.Fatalf("CreateConstIterator failed: %v", err)
	}
	defer it.Close()
	acc := it.Accessor()
	vis, err := acc.Visibility()
	if err != nil {
		t.Fatal(err)
	}
	if acc.NPol() != 1 || vis.NPol != 1 {
		t.Fatalf("NPol = %d", acc.NPol())
	}
	if got := vis.At(0, 3, 0); got != complex(0, 7) {
		t.Errorf("vis = %v, want (0+7i)", got)
	}
	stokes, _ := acc.Stokes()
	if !slices.Equal(stokes, []measures.Stokes{measures.StokesYY}) {
		t.Errorf("stokes = %v", stokes)
	}

	sel = ds.CreateSelector()
	sel.ChoosePolarizations("XY")
	if _, err := ds.CreateConstIterator(sel, nil); !errors.Is(err, errs.ErrSelection) {
		t.Errorf("expected a selection error for a missing product, got %v", err)
	}
}

func TestRestart(t *testing.T) {
	ds, _ := newSource(t, func(c *simulate.Config) { c.NDataDescs = 2 })
	ds.ConfigureMaxChunkSize(6)
	it, err := ds.CreateConstIterator(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	// restarting before moving changes nothing
	if err := it.Restart(); err != nil {
		t.Fatal(err)
	}
	first := walk(t, it)

	if err := it.Restart(); err != nil {
		t.Fatal(err)
	}
	it.Next()
	it.Next()
	if err := it.Restart(); err != nil {
		t.Fatal(err)
	}
	second := walk(t, it)
	if !slices.Equal(first, second) {
		t.Errorf("iteration after restart differs:\n%v\n%v", first, second)
	}
}

func TestDataColumn(t *testing.T) {
	ds, _ := newSource(t, nil)
	if err := ds.ConfigureDefaultDataColumn(database.ColCorrectedData); err == nil {
		t.Errorf("expected error for a missing column")
	}
	if err := ds.ConfigureDefaultDataColumn(database.ColModelData); err != nil {
		t.Fatal(err)
	}
	if err := ds.ConfigureExtraColumns(database.ColData); err != nil {
		t.Fatal(err)
	}
	it, err := ds.CreateConstIterator(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	vis, _ := it.Accessor().Visibility()
	if got := vis.At(2, 1, 1); got != complex(1, 1.5) {
		t.Errorf("model vis = %v, want (1+1.5i)", got)
	}
	data, err := it.Accessor().Column(database.ColData)
	if err != nil {
		t.Fatal(err)
	}
	if got := data.At(2, 1, 1); got != complex(2, 3) {
		t.Errorf("data = %v, want (2+3i)", got)
	}
	if _, err := it.Accessor().Column(database.ColFlag); err == nil {
		t.Errorf("expected error for a column outside the iteration")
	}

	sel := ds.CreateSelector()
	sel.ChooseDataColumn(database.ColCorrectedData)
	if _, err := ds.CreateConstIterator(sel, nil); !errors.Is(err, errs.ErrIO) {
		t.Errorf("expected an i/o error, got %v", err)
	}
}

func TestCycleSelection(t *testing.T) {
	ds, _ := newSource(t, func(c *simulate.Config) { c.NTimes = 5 })
	times, err := ds.Times()
	if err != nil || len(times) != 5 {
		t.Fatalf("Times = %v, %v", times, err)
	}
	sel := ds.CreateSelector()
	if err := sel.ChooseCycles(1, 2); err != nil {
		t.Fatal(err)
	}
	it, err := ds.CreateConstIterator(sel, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	chunks := walk(t, it)
	if len(chunks) != 2 || chunks[0].time != times[1] || chunks[1].time != times[2] {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestEmptySelection(t *testing.T) {
	ds, _ := newSource(t, nil)
	sel := ds.CreateSelector()
	if err := sel.ChooseSpectralWindow(7); err != nil {
		t.Fatal(err)
	}
	it, err := ds.CreateConstIterator(sel, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	if it.HasMore() || it.Accessor().NRow() != 0 {
		t.Errorf("empty selection produced a chunk")
	}
}
