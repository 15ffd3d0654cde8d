package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/plan"
	"github.com/bisegni/visdata/pkg/planner"
)

var explainFlags selectionFlags

var explainCmd = &cobra.Command{
	Use:   "explain [dataset]",
	Short: "Show the row plan of a selection",
	Long: `Print how the rows of a selection are produced: a full scan, a scan
with predicates pushed down to SQLite, and the predicates filtered in
memory.

Examples:
  visdata explain sim.db --where "antenna = 3 and uvmax < 500"
  visdata explain sim.jsonl --baseline 0-1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExplain,
}

func init() {
	explainFlags.register(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	ds, err := openDataSource(cmd, datasetArg(args))
	if err != nil {
		return err
	}
	defer ds.Close()

	sel, err := explainFlags.selector(ds)
	if err != nil {
		return err
	}
	node, err := planner.CreatePlan(sel, ds.Table(), nil)
	if err != nil {
		return err
	}
	fmt.Println("Execution Plan:")
	fmt.Println(plan.FormatPlan(node))
	return nil
}
