package cmd

import (
	"testing"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/simulate"
)

func TestParsePair(t *testing.T) {
	tests := []struct {
		in      string
		sep     string
		a, b    int
		wantErr bool
	}{
		{"0-1", "-", 0, 1, false},
		{" 3 - 12 ", "-", 3, 12, false},
		{"2:5", ":", 2, 5, false},
		{"4", "-", 0, 0, true},
		{"a-1", "-", 0, 0, true},
	}
	for _, tt := range tests {
		a, b, err := parsePair(tt.in, tt.sep)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePair(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (a != tt.a || b != tt.b) {
			t.Errorf("parsePair(%q) = %d, %d", tt.in, a, b)
		}
	}
}

func TestSelectionFlags(t *testing.T) {
	table, err := simulate.Dataset(simulate.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ds, err := access.NewDataSource(table)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()

	tests := []struct {
		name     string
		flags    selectionFlags
		wantRows int
		wantErr  bool
	}{
		{"everything", selectionFlags{antenna: -1, feed: -1, scan: -1, spw: -1, avg: 1}, 15, false},
		{"baseline", selectionFlags{baseline: "0-1", antenna: -1, feed: -1, scan: -1, spw: -1, avg: 1}, 1, false},
		{"antenna", selectionFlags{antenna: 2, feed: -1, scan: -1, spw: -1, avg: 1}, 5, false},
		{"where", selectionFlags{where: "antenna1 = 0", antenna: -1, feed: -1, scan: -1, spw: -1, avg: 1}, 5, false},
		{"bad where", selectionFlags{where: "antenna1 = ", antenna: -1, feed: -1, scan: -1, spw: -1, avg: 1}, 0, true},
		{"auto and cross", selectionFlags{auto: true, cross: true, antenna: -1, feed: -1, scan: -1, spw: -1, avg: 1}, 0, true},
		{"bad pol", selectionFlags{pol: "ZZ", antenna: -1, feed: -1, scan: -1, spw: -1, avg: 1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := tt.flags.selector(ds)
			if (err != nil) != tt.wantErr {
				t.Fatalf("selector error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			it, err := ds.CreateConstIterator(sel, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer it.Close()
			if got := it.Accessor().NRow(); got != tt.wantRows {
				t.Errorf("first chunk has %d rows, want %d", got, tt.wantRows)
			}
		})
	}
}

func TestConverterFlags(t *testing.T) {
	table, err := simulate.Dataset(simulate.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ds, err := access.NewDataSource(table)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()

	f := selectionFlags{freqUnit: "MHz"}
	if _, err := f.converter(ds); err != nil {
		t.Errorf("converter failed: %v", err)
	}
	f = selectionFlags{freqUnit: "furlong"}
	if _, err := f.converter(ds); err == nil {
		t.Errorf("expected error for an unknown unit")
	}
	f = selectionFlags{freqFrame: "NOWHERE", freqUnit: "Hz"}
	if _, err := f.converter(ds); err == nil {
		t.Errorf("expected error for an unknown frame")
	}
}
