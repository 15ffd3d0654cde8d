package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/database"
)

var infoCmd = &cobra.Command{
	Use:   "info [dataset]",
	Short: "Describe a dataset",
	Long: `Display the main table size, optional columns, time range and the
content of the subtables of a dataset.

Examples:
  visdata info sim.jsonl
  visdata info sim.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInfo,
}

var optionalColumns = []string{
	database.ColInterval, database.ColFieldID, database.ColScanNumber,
	database.ColData, database.ColModelData, database.ColCorrectedData,
	database.ColFlag, database.ColFlagRow, database.ColSigma, database.ColSigmaSpectrum,
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := datasetArg(args)
	ds, err := openDataSource(cmd, path)
	if err != nil {
		return err
	}
	defer ds.Close()

	table := ds.Table()
	sub := table.Subtables()
	format := "JSON"
	switch {
	case database.IsSQLitePath(path):
		format = "SQLite"
	case strings.HasSuffix(path, ".jsonl"):
		format = "JSONL"
	}

	fmt.Printf("Dataset: %s (%s)\n", table.Name(), path)
	fmt.Printf("Format: %s\n", format)
	fmt.Printf("Rows: %d\n", table.NumRows())
	fmt.Printf("Writable: %v\n", table.Writable())

	var present []string
	for _, c := range optionalColumns {
		if table.HasColumn(c) {
			present = append(present, c)
		}
	}
	fmt.Printf("Optional columns: %s\n", strings.Join(present, ", "))

	times, err := ds.Times()
	if err != nil {
		return err
	}
	if len(times) > 0 {
		fmt.Printf("Integrations: %d (%.3f .. %.3f s)\n", len(times), times[0], times[len(times)-1])
	}

	fmt.Printf("\nAntennas: %d\n", len(sub.Antennas))
	for i, a := range sub.Antennas {
		fmt.Printf("  %d: %s %s\n", i, a.Name, a.Mount)
	}
	fmt.Printf("Feeds: %d\n", len(sub.Feeds))
	fmt.Printf("Fields: %d\n", len(sub.Fields))
	for i, f := range sub.Fields {
		fmt.Printf("  %d: %s %s\n", i, f.Name, f.ReferenceDir)
	}
	fmt.Printf("Spectral windows: %d\n", len(sub.SpWindows))
	for i, w := range sub.SpWindows {
		if n := len(w.Frequencies); n > 0 {
			fmt.Printf("  %d: %d channels, %g .. %g %s %s\n", i, n, w.Frequencies[0], w.Frequencies[n-1], sub.FrequencyUnit, w.Frame)
		}
	}
	fmt.Printf("Polarisations: %d\n", len(sub.Polarizations))
	for i, p := range sub.Polarizations {
		names := make([]string, len(p.Types))
		for j, s := range p.Types {
			names[j] = s.String()
		}
		fmt.Printf("  %d: %s\n", i, strings.Join(names, ","))
	}
	fmt.Printf("Data descriptors: %d\n", len(sub.DataDescs))
	for i, d := range sub.DataDescs {
		fmt.Printf("  %d: spw %d, polarisation %d\n", i, d.SpWindowID, d.PolarizationID)
	}
	return nil
}
