package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/parser"
)

var formatPretty bool

var formatCmd = &cobra.Command{
	Use:   "format [file|-]",
	Short: "Reformat dataset documents",
	Long: `Read a JSON or JSONL dataset document stream and write it back one
document per line, or indented with --pretty. Unknown document kinds are
rejected.

Supports:
  - File paths: visdata format sim.json
  - Stdin: cat sim.jsonl | visdata format --pretty

Examples:
  visdata format sim.json > sim.jsonl
  visdata format sim.jsonl --pretty`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFormat,
}

func init() {
	formatCmd.Flags().BoolVar(&formatPretty, "pretty", false, "Indent every document")
}

func runFormat(cmd *cobra.Command, args []string) error {
	filename := "-"
	if len(args) > 0 {
		filename = args[0]
	}

	p, err := parser.NewParser(filename)
	if err != nil {
		return err
	}
	defer p.Close()

	out := parser.NewWriter(os.Stdout, formatPretty || QueryPretty)
	return p.ForEach(out.WriteDocument)
}
