package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/engine"
)

var (
	iterateFlags selectionFlags
	iterateLimit int
	iterateOrder string
)

var iterateCmd = &cobra.Command{
	Use:   "iterate [dataset]",
	Short: "Iterate a selection and print one summary per chunk",
	Long: `Iterate the selected visibilities chunk by chunk. Every chunk shares
time, data descriptor and field; one JSON line is printed per chunk.

Examples:
  visdata iterate sim.jsonl
  visdata iterate sim.db --antenna 3 --nchan 16 --start-chan 100
  visdata iterate sim.db --where "feed = 0 and uvmin > 100" --freq-unit MHz
  visdata iterate sim.db --order w`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIterate,
}

func init() {
	iterateFlags.register(iterateCmd)
	iterateCmd.Flags().IntVarP(&iterateLimit, "limit", "n", 0, "Stop after this many chunks")
	iterateCmd.Flags().StringVar(&iterateOrder, "order", "", "Load all chunks in memory and print them in this order (time, reverse, w)")
}

func runIterate(cmd *cobra.Command, args []string) error {
	ds, it, err := iterateFlags.iterator(cmd, datasetArg(args))
	if err != nil {
		return err
	}
	defer ds.Close()
	defer it.Close()

	executor := engine.NewExecutor()
	executor.Pretty = QueryPretty
	executor.Limit = iterateLimit
	if iterateOrder == "" {
		_, err = executor.Execute(cmd.Context(), it, os.Stdout)
		return err
	}

	order, err := access.ParseStackOrder(iterateOrder)
	if err != nil {
		return err
	}
	stack, err := access.Stack(cmd.Context(), it)
	if err != nil {
		return err
	}
	stack.OrderBy(order)
	_, err = executor.ExecuteStacked(cmd.Context(), stack.CreateIterator(), os.Stdout)
	return err
}
