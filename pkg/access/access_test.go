package access

import (
	"context"
	"testing"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/selection"
	"github.com/bisegni/visdata/pkg/simulate"
)

// newSource simulates a dataset, 6 antennas and 13 channels by default.
func newSource(t *testing.T, modify func(*simulate.Config)) (*DataSource, *database.MemTable) {
	t.Helper()
	cfg := simulate.DefaultConfig()
	if modify != nil {
		modify(&cfg)
	}
	table, err := simulate.Dataset(cfg)
	if err != nil {
		t.Fatalf("simulate.Dataset failed: %v", err)
	}
	ds, err := NewDataSource(table)
	if err != nil {
		t.Fatalf("NewDataSource failed: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds, table
}

type chunkInfo struct {
	topRow int
	rows   int
	dd     int
	field  int
	time   float64
}

// walk iterates to the end and records every chunk.
func walk(t *testing.T, it *Iterator) []chunkInfo {
	t.Helper()
	var out []chunkInfo
	for it.HasMore() {
		acc := it.Accessor()
		out = append(out, chunkInfo{
			topRow: it.CurrentTopRow(),
			rows:   acc.NRow(),
			dd:     it.CurrentDataDescID(),
			field:  it.CurrentFieldID(),
			time:   it.group[it.topRow].row.Time,
		})
		if _, err := it.Next(); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	return out
}

func newWriteBack(t *testing.T, ds *DataSource, sel *selection.Selector) *WriteBackIterator {
	t.Helper()
	wb, err := ds.CreateIterator(context.Background(), sel, nil)
	if err != nil {
		t.Fatalf("CreateIterator failed: %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb
}
