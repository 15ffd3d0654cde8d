package access

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bisegni/visdata/pkg/bufstore"
	"github.com/bisegni/visdata/pkg/database"
)

func TestDataSourceConfigure(t *testing.T) {
	ds, _ := newSource(t, nil)
	tests := []struct {
		name    string
		apply   func() error
		wantErr bool
	}{
		{"chunk size", func() error { return ds.ConfigureMaxChunkSize(4) }, false},
		{"zero chunk size", func() error { return ds.ConfigureMaxChunkSize(0) }, true},
		{"uvw cache", func() error { return ds.ConfigureUVWCache(4, 1e-5) }, false},
		{"empty uvw cache", func() error { return ds.ConfigureUVWCache(0, 1e-5) }, true},
		{"negative tolerance", func() error { return ds.ConfigureUVWCache(1, -1) }, true},
		{"extra column", func() error { return ds.ConfigureExtraColumns(database.ColModelData) }, false},
		{"missing extra column", func() error { return ds.ConfigureExtraColumns(database.ColCorrectedData) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.apply()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	opts := ds.Options()
	if opts.MaxChunkSize != 4 || opts.UVWCacheSize != 4 || opts.UVWCacheTolerance != 1e-5 {
		t.Errorf("options = %+v", opts)
	}
	if len(opts.ExtraColumns) != 1 || opts.ExtraColumns[0] != database.ColModelData {
		t.Errorf("extra columns = %v", opts.ExtraColumns)
	}
}

func TestDataSourceOptionsAreCopied(t *testing.T) {
	ds, _ := newSource(t, nil)
	it, err := ds.CreateConstIterator(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	ds.ConfigureMaxChunkSize(2)
	if it.Accessor().NRow() != 15 {
		t.Errorf("existing iterator picked up the new chunk size")
	}
}

func TestDataSourceFileBuffers(t *testing.T) {
	ds, _ := newSource(t, nil)
	dir := t.TempDir()
	store, err := bufstore.Open(context.Background(), bufstore.Config{Backend: bufstore.BackendFile, Path: dir, Compress: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ds.SetBufferStore(store)

	wb := newWriteBack(t, ds, nil)
	for wb.HasMore() {
		vis, err := wb.Buffer("psf").RWVisibility()
		if err != nil {
			t.Fatal(err)
		}
		vis.Fill(complex(1, 0))
		wb.Next()
	}
	entries, err := os.ReadDir(filepath.Join(dir, "psf"))
	if err != nil {
		t.Fatalf("buffer directory missing: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("stored %d buffer files, want 3", len(entries))
	}
}
