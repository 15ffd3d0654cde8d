package planner_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/measures"
	"github.com/bisegni/visdata/pkg/plan"
	"github.com/bisegni/visdata/pkg/planner"
	"github.com/bisegni/visdata/pkg/selection"
)

func mockTable(t *testing.T) *database.MemTable {
	t.Helper()
	sub := &database.Subtables{
		Antennas: []database.AntennaRecord{
			{Name: "A0", Mount: measures.MountEquatorial},
			{Name: "A1", Mount: measures.MountEquatorial},
			{Name: "A2", Mount: measures.MountEquatorial},
		},
		Feeds: []database.FeedRecord{
			{AntennaID: 0, SpWindowID: -1, BeamOffsets: [][2]float64{{0, 0}}, ReceptorAngles: []float64{0}},
			{AntennaID: 1, SpWindowID: -1, BeamOffsets: [][2]float64{{0, 0}}, ReceptorAngles: []float64{0}},
			{AntennaID: 2, SpWindowID: -1, BeamOffsets: [][2]float64{{0, 0}}, ReceptorAngles: []float64{0}},
		},
		Fields:        []database.FieldRecord{{Name: "F0", ReferenceDir: measures.NewDirection(0, -0.5)}},
		SpWindows:     []database.SpWindowRecord{{Frame: measures.TOPO, Frequencies: []float64{1e9, 1.1e9}}},
		FrequencyUnit: measures.Hz,
		Polarizations: []database.PolarizationRecord{{Types: []measures.Stokes{measures.StokesXX}}},
		DataDescs:     []database.DataDescRecord{{SpWindowID: 0, PolarizationID: 0}},
	}
	table := database.NewMemTable("mock", sub, database.ColModelData)
	for _, tm := range []float64{10, 20} {
		for a1 := 0; a1 < 3; a1++ {
			for a2 := a1; a2 < 3; a2++ {
				r := &database.Row{
					Time: tm, Antenna1: a1, Antenna2: a2,
					UVW:   [3]float64{float64(10 * (a2 - a1)), 0, 0},
					NChan: 2, NPol: 1,
					Data: map[string][]complex64{
						database.ColData:      {1, 2},
						database.ColModelData: {3, 4},
					},
				}
				if err := table.Append(r); err != nil {
					t.Fatalf("Append failed: %v", err)
				}
			}
		}
	}
	return table
}

func collect(t *testing.T, n plan.Node) []int {
	t.Helper()
	iter, err := n.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	defer iter.Close()
	var out []int
	for iter.Next() {
		out = append(out, iter.Index())
	}
	if err := iter.Error(); err != nil {
		t.Fatalf("Iteration failed: %v", err)
	}
	return out
}

func TestCreatePlan(t *testing.T) {
	table := mockTable(t)

	tests := []struct {
		name     string
		build    func(s *selection.Selector)
		expected []int
	}{
		{"Everything", func(s *selection.Selector) {}, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
		{"Cross", func(s *selection.Selector) { s.ChooseCrossCorrelations() }, []int{1, 2, 4, 7, 8, 10}},
		{"Antenna", func(s *selection.Selector) { s.ChooseAntenna(2) }, []int{2, 4, 5, 8, 10, 11}},
		{"Baseline and time", func(s *selection.Selector) {
			s.ChooseBaseline(0, 1)
			s.ChooseTimeRange(15, 25)
		}, []int{7}},
		{"Long baselines", func(s *selection.Selector) { s.ChooseMinUVDistance(15) }, []int{2, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := selection.NewSelector(nil)
			tt.build(s)
			p, err := planner.CreatePlan(s, table, nil)
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}
			got := collect(t, p)
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected rows %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Expected rows %v, got %v", tt.expected, got)
					break
				}
			}
		})
	}
}

func TestCreatePlanProjection(t *testing.T) {
	table := mockTable(t)
	p, err := planner.CreatePlan(nil, table, []string{database.ColModelData})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	iter, err := p.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	defer iter.Close()
	if !iter.Next() {
		t.Fatal("Expected a row")
	}
	row := iter.Row()
	if _, ok := row.Data[database.ColData]; ok {
		t.Error("DATA should have been projected away")
	}
	if got := row.Data[database.ColModelData]; len(got) != 2 || got[0] != 3 {
		t.Errorf("Unexpected MODEL_DATA %v", got)
	}
	orig, _ := table.Row(0)
	if _, ok := orig.Data[database.ColData]; !ok {
		t.Error("Projection modified the table row")
	}
}

func TestCreatePlanPushdown(t *testing.T) {
	mem := mockTable(t)
	cfg := database.DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "planner.db")
	table, err := database.CreateSQLiteTable(cfg, mem)
	if err != nil {
		t.Fatalf("CreateSQLiteTable failed: %v", err)
	}
	defer table.Close()

	s := selection.NewSelector(nil)
	s.ChooseCrossCorrelations()
	s.ChooseUserDefinedIndex("BEAM_ID", 0)
	p, err := planner.CreatePlan(s, table, nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	explained := plan.FormatPlan(p)
	if !strings.HasPrefix(explained, "Filter(expression: BEAM_ID=0)") {
		t.Errorf("Unexpected plan root:\n%s", explained)
	}
	if !strings.Contains(explained, "└─ PushdownScan(table: ") {
		t.Errorf("Expected a pushed down scan:\n%s", explained)
	}

	// BEAM_ID is not a column, so the residual filter rejects every row
	if got := collect(t, p); len(got) != 0 {
		t.Errorf("Expected no rows, got %v", got)
	}

	s = selection.NewSelector(nil)
	s.ChooseCrossCorrelations()
	s.ChooseAntenna(0)
	p, err = planner.CreatePlan(s, table, nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if _, ok := p.(*plan.PushdownScanNode); !ok {
		t.Fatalf("Expected the whole selection to be pushed down, got\n%s", plan.FormatPlan(p))
	}
	got := collect(t, p)
	want := []int{1, 2, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("Expected rows %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected rows %v, got %v", want, got)
		}
	}
}

func TestConjuncts(t *testing.T) {
	a := &selection.Condition{Column: database.ColAntenna1, Op: "=", Value: 1}
	b := &selection.Condition{Column: database.ColAntenna2, Op: "=", Value: 2}
	c := selection.Or(a, b)
	if got := planner.Conjuncts(selection.And(a, b, c)); len(got) != 3 {
		t.Errorf("Expected 3 conjuncts, got %d", len(got))
	}
	if got := planner.Conjuncts(c); len(got) != 1 {
		t.Errorf("Expected OR to stay whole, got %d", len(got))
	}
	if got := planner.Conjuncts(nil); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}
