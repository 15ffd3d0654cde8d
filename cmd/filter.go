package cmd

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/planner"
	"github.com/bisegni/visdata/pkg/selection"
)

var (
	filterOutput  string
	filterColumns []string
)

var filterCmd = &cobra.Command{
	Use:   "filter <dataset> <expression>",
	Short: "Extract the rows matching a selection into a new dataset",
	Long: `Write the rows of a dataset matching a selection expression as a new
dataset. Subtables are copied unchanged.

Expressions combine comparisons with and, or, not and parentheses:
  antenna, antenna1, antenna2, feed, feed1, feed2, ddid, field, scan,
  time, uv, uvmin, uvmax, uvnonzero, auto, cross and upper case column
  names such as SCAN_NUMBER.

Examples:
  visdata filter sim.db "antenna1 = 0 and uvmax < 500" -o short.jsonl
  visdata filter sim.jsonl "cross and field = 1" --columns DATA -o f1.db`,
	Args: cobra.ExactArgs(2),
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "-", "Output dataset (JSONL, SQLite by extension, - for stdout)")
	filterCmd.Flags().StringSliceVar(&filterColumns, "columns", nil, "Visibility columns to keep (default all)")
}

var visibilityColumns = []string{database.ColData, database.ColModelData, database.ColCorrectedData}

func runFilter(cmd *cobra.Command, args []string) error {
	table, err := database.OpenDataset(args[0], cfg.SQLiteTableConfig(args[0]))
	if err != nil {
		return err
	}
	defer table.Close()

	expr, err := selection.Parse(args[1])
	if err != nil {
		return err
	}
	sel := selection.NewSelector(nil)
	sel.Where(expr)

	node, err := planner.CreatePlan(sel, table, filterColumns)
	if err != nil {
		return err
	}
	rows, err := node.Execute()
	if err != nil {
		return err
	}
	defer rows.Close()

	var optional []string
	for _, c := range []string{
		database.ColInterval, database.ColFieldID, database.ColScanNumber,
		database.ColData, database.ColModelData, database.ColCorrectedData,
		database.ColFlag, database.ColFlagRow, database.ColSigma, database.ColSigmaSpectrum,
	} {
		if !table.HasColumn(c) {
			continue
		}
		if len(filterColumns) > 0 && slices.Contains(visibilityColumns, c) && !slices.Contains(filterColumns, c) {
			continue
		}
		optional = append(optional, c)
	}
	out := database.NewMemTable(table.Name(), table.Subtables(), optional...)
	for rows.Next() {
		if err := out.Append(rows.Row()); err != nil {
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return err
	}
	return writeDataset(out, filterOutput)
}
