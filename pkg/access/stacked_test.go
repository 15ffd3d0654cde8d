package access

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/bisegni/visdata/pkg/database"
)

func newStack(t *testing.T) (*StackedSource, *database.MemTable, *Iterator) {
	t.Helper()
	ds, table := newSource(t, nil)
	it, err := ds.CreateConstIterator(nil, nil)
	if err != nil {
		t.Fatalf("CreateConstIterator failed: %v", err)
	}
	t.Cleanup(func() { it.Close() })
	s, err := Stack(context.Background(), it)
	if err != nil {
		t.Fatalf("Stack failed: %v", err)
	}
	return s, table, it
}

func topRows(s *StackedIterator) []int {
	var rows []int
	for s.Restart(); s.HasMore(); s.Next() {
		rows = append(rows, s.Info().TopRow)
	}
	return rows
}

func TestParseStackOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    StackOrder
		wantErr bool
	}{
		{"", StackByTime, false},
		{"time", StackByTime, false},
		{"Reverse", StackReverse, false},
		{" w ", StackByW, false},
		{"u", StackByTime, true},
	}
	for _, tt := range tests {
		got, err := ParseStackOrder(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStackOrder(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestStackedSource(t *testing.T) {
	s, table, _ := newStack(t)
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}

	// the stack is a copy
	r, _ := table.Row(0)
	r.Data[database.ColData][0] = complex(100, 100)

	it := s.CreateIterator()
	for k := 0; it.HasMore(); k++ {
		info := it.Info()
		if info.TopRow != 15*k || info.Channels != 13 || info.StartChannel != 0 {
			t.Errorf("chunk %d info = %+v", k, info)
		}
		acc := it.Accessor()
		if acc.NRow() != 15 || acc.NChannel() != 13 || acc.NPol() != 2 {
			t.Fatalf("chunk %d shape %dx%dx%d", k, acc.NRow(), acc.NChannel(), acc.NPol())
		}
		vis, err := acc.Visibility()
		if err != nil {
			t.Fatal(err)
		}
		if got, want := vis.At(0, 0, 0), complex(float32(15*k), 0); got != want {
			t.Errorf("chunk %d vis = %v, want %v", k, got, want)
		}
		if got := acc.Time(); got != 4.9e9+5*float64(k) {
			t.Errorf("chunk %d time = %f", k, got)
		}
		if a1, a2 := acc.Antenna1(), acc.Antenna2(); len(a1) != 15 || a1[14] != 4 || a2[14] != 5 {
			t.Errorf("chunk %d baselines %v %v", k, a1, a2)
		}
		freqs, err := acc.Frequency()
		if err != nil || len(freqs) != 13 || freqs[0] != 1.4e9 {
			t.Errorf("chunk %d frequencies = %v, %v", k, freqs, err)
		}
		if _, err := acc.Velocity(); err == nil {
			t.Errorf("velocity without a rest frequency did not fail")
		}
		it.Next()
	}
	if it.Accessor() != nil || it.Active() != nil || it.Info().TopRow != -1 {
		t.Errorf("iterator past the end still serves a chunk")
	}
	if _, err := it.Buffer("x"); !errors.Is(err, ErrNotPositioned) {
		t.Errorf("Buffer past the end = %v, want ErrNotPositioned", err)
	}
}

func TestStackedSourceOrder(t *testing.T) {
	s, _, _ := newStack(t)

	it := s.CreateIterator()
	if got := topRows(it); len(got) != 3 || got[0] != 0 || got[2] != 30 {
		t.Errorf("time order = %v", got)
	}

	s.OrderBy(StackReverse)
	if got := topRows(it); len(got) != 3 || got[0] != 30 || got[1] != 15 || got[2] != 0 {
		t.Errorf("reverse order = %v", got)
	}
	// a restarted iterator sees the same order again
	if got := topRows(it); got[0] != 30 {
		t.Errorf("second pass = %v", got)
	}

	s.OrderBy(StackByW)
	prev := math.Inf(-1)
	n := 0
	for it.Restart(); it.HasMore(); it.Next() {
		var sum float64
		uvw := it.Accessor().UVW()
		for _, b := range uvw {
			sum += b[2]
		}
		mean := sum / float64(len(uvw))
		if mean < prev {
			t.Errorf("chunk at row %d has mean w %f after %f", it.Info().TopRow, mean, prev)
		}
		prev = mean
		n++
	}
	if n != 3 {
		t.Errorf("w order visited %d chunks", n)
	}
}

func TestStackedBuffers(t *testing.T) {
	s, _, _ := newStack(t)
	it := s.CreateIterator()

	buf, err := it.Buffer("model")
	if err != nil {
		t.Fatal(err)
	}
	vis, _ := buf.RWVisibility()
	if !vis.HasShape(15, 13, 2) || vis.At(2, 2, 1) != 0 {
		t.Fatalf("new buffer is not an empty cube of the chunk shape")
	}
	vis.Fill(complex(8, 8))

	data, _ := it.Accessor().RWVisibility()
	data.Set(0, 0, 0, complex(-1, -1))

	it.ChooseBuffer("model")
	if got, _ := it.Active().Visibility(); got.At(0, 0, 0) != complex(8, 8) {
		t.Errorf("chosen buffer = %v", got.At(0, 0, 0))
	}
	it.ChooseOriginal()
	if got, _ := it.Active().Visibility(); got.At(0, 0, 0) != complex(-1, -1) {
		t.Errorf("stacked data = %v", got.At(0, 0, 0))
	}
	if _, err := it.Active().RWFlag(); err == nil {
		t.Errorf("stacked flags are writable")
	}

	// buffers and changes follow their chunk
	s.OrderBy(StackReverse)
	for it.Restart(); it.HasMore(); it.Next() {
		b, _ := it.Buffer("model")
		v, _ := b.Visibility()
		d, _ := it.Accessor().Visibility()
		if it.Info().TopRow == 0 {
			if v.At(14, 12, 1) != complex(8, 8) || d.At(0, 0, 0) != complex(-1, -1) {
				t.Errorf("first chunk lost its contents: %v %v", v.At(14, 12, 1), d.At(0, 0, 0))
			}
		} else if v.At(14, 12, 1) != 0 {
			t.Errorf("buffer of chunk at row %d = %v", it.Info().TopRow, v.At(14, 12, 1))
		}
	}
}

func TestStackedRotatedUVW(t *testing.T) {
	s, _, live := newStack(t)
	if err := live.Restart(); err != nil {
		t.Fatal(err)
	}
	pointing, err := live.Accessor().PointingDir1()
	if err != nil {
		t.Fatal(err)
	}
	tangent := pointing[0]
	want, err := live.Accessor().RotatedUVW(tangent)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.CreateIterator().Accessor().RotatedUVW(tangent)
	if err != nil {
		t.Fatalf("RotatedUVW failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		for k := 0; k < 3; k++ {
			if math.Abs(got[i][k]-want[i][k]) > 1e-9 {
				t.Fatalf("row %d uvw = %v, want %v", i, got[i], want[i])
			}
		}
	}
}

func TestStackCancelled(t *testing.T) {
	ds, _ := newSource(t, nil)
	it, err := ds.CreateConstIterator(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Stack(ctx, it); !errors.Is(err, context.Canceled) {
		t.Errorf("Stack = %v, want context.Canceled", err)
	}
}
