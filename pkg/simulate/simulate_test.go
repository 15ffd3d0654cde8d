package simulate

import (
	"testing"

	"github.com/bisegni/visdata/pkg/database"
)

func TestDataset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NDataDescs = 2
	cfg.NFields = 2
	table, err := Dataset(cfg)
	if err != nil {
		t.Fatalf("Dataset failed: %v", err)
	}
	// 15 cross baselines of 6 antennas
	if got, want := table.NumRows(), 15*2*3; got != want {
		t.Fatalf("NumRows = %d, want %d", got, want)
	}
	r, err := table.Row(16)
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if r.DataDescID != 1 || r.FieldID != 1 {
		t.Errorf("row 16 has dd %d field %d, want 1 1", r.DataDescID, r.FieldID)
	}
	if got := r.Data[database.ColData][5]; got != complex(16, 5) {
		t.Errorf("DATA[5] = %v", got)
	}
	if got := r.Data[database.ColModelData][5]; got != complex(8, 2.5) {
		t.Errorf("MODEL_DATA[5] = %v", got)
	}
	if f := table.Subtables().SpWindows[1].Frequencies[0]; f != 1.4e9+13e6 {
		t.Errorf("spw 1 starts at %g", f)
	}
}

func TestBaselines(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NAntennas = 3
	if got := len(cfg.Baselines()); got != 3 {
		t.Errorf("cross baselines = %d, want 3", got)
	}
	cfg.Autocorrelations = true
	bl := cfg.Baselines()
	if len(bl) != 6 || bl[0] != [2]int{0, 0} {
		t.Errorf("baselines with autos = %v", bl)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"one antenna", func(c *Config) { c.NAntennas = 1 }},
		{"no channels", func(c *Config) { c.NChannels = 0 }},
		{"bad mount", func(c *Config) { c.Mount = "GIMBAL" }},
		{"bad stokes", func(c *Config) { c.Stokes = "XX,ZZ" }},
		{"zero integration", func(c *Config) { c.Integration = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}
