package cmd

import (
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/engine"
)

var (
	statsFlags         selectionFlags
	statsSubtractModel bool
)

var statsCmd = &cobra.Command{
	Use:   "stats [dataset]",
	Short: "Show per-baseline statistics of a selection",
	Long: `Print one JSON line per baseline with the number of rows and samples,
the flagged fraction and the mean amplitude of every polarisation product.

Examples:
  visdata stats sim.jsonl
  visdata stats sim.db --cross --subtract-model`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsFlags.register(statsCmd)
	statsCmd.Flags().BoolVar(&statsSubtractModel, "subtract-model", false, "Use the residual of the data column and MODEL_DATA")
}

func runStats(cmd *cobra.Command, args []string) error {
	ds, err := openDataSource(cmd, datasetArg(args))
	if err != nil {
		return err
	}
	defer ds.Close()

	if statsSubtractModel {
		extra := ds.Options().ExtraColumns
		if !slices.Contains(extra, database.ColModelData) {
			if err := ds.ConfigureExtraColumns(append(extra, database.ColModelData)...); err != nil {
				return err
			}
		}
	}
	sel, err := statsFlags.selector(ds)
	if err != nil {
		return err
	}
	conv, err := statsFlags.converter(ds)
	if err != nil {
		return err
	}
	it, err := ds.CreateConstIterator(sel, conv)
	if err != nil {
		return err
	}
	defer it.Close()

	executor := engine.NewExecutor()
	executor.Pretty = QueryPretty
	agg := engine.NewAggregator(statsSubtractModel)
	if err := executor.Aggregate(cmd.Context(), it, agg); err != nil {
		return err
	}
	return executor.WriteBaselines(os.Stdout, agg.Results())
}
