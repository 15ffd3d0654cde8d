package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/logging"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert a dataset between JSONL and SQLite",
	Long: `Convert a dataset between the JSON/JSONL document format and SQLite.
The output format follows the output extension; "-" writes JSONL to stdout.

Examples:
  visdata convert sim.jsonl sim.db
  visdata convert sim.db sim.jsonl
  visdata convert sim.db - | head`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	table, err := database.OpenDataset(args[0], cfg.SQLiteTableConfig(args[0]))
	if err != nil {
		return err
	}
	defer table.Close()
	return writeDataset(table, args[1])
}

// writeDataset stores table at path: SQLite for SQLite extensions, JSONL
// otherwise. "-" is stdout.
func writeDataset(table database.Table, path string) error {
	log := logging.GetLogger()
	if database.IsSQLitePath(path) {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		db, err := database.CreateSQLiteTable(cfg.SQLiteTableConfig(path), table)
		if err != nil {
			return err
		}
		log.Info("dataset written", "path", path, "rows", db.NumRows())
		return db.Close()
	}
	if path == "-" {
		return database.ExportJSON(os.Stdout, table)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := database.ExportJSON(f, table); err != nil {
		f.Close()
		return err
	}
	log.Info("dataset written", "path", path, "rows", table.NumRows())
	return f.Close()
}
