package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/config"
	"github.com/bisegni/visdata/pkg/logging"
)

var (
	ConfigPath      string
	LogLevel        string
	QueryPretty     bool
	InteractiveMode bool

	// cfg is loaded before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "visdata [dataset]",
	Short: "Radio interferometer visibility data access tool",
	Long: `visdata iterates over the visibilities of an interferometer dataset in
chunks that share time, spectral setup and field.

Datasets are JSON/JSONL documents or SQLite files (.db, .sqlite).
Without a subcommand, -i starts an interactive session on the dataset.

Examples:
  visdata simulate sim.jsonl
  visdata info sim.jsonl
  visdata iterate sim.jsonl --baseline 0-1 --nchan 4
  visdata stats sim.db --subtract-model
  visdata explain sim.db "antenna = 3 and uvmax < 500"
  visdata -i sim.db`,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	PersistentPreRunE: setUp,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !InteractiveMode {
			return cmd.Help()
		}
		return RunInteractive(cmd.Context(), datasetArg(args))
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	rootCmd.PersistentFlags().BoolVar(&QueryPretty, "pretty", false, "Pretty print JSON output")
	rootCmd.Flags().BoolVarP(&InteractiveMode, "interactive", "i", false, "Interactive REPL mode")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(iterateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(simulateCmd)
}

func setUp(cmd *cobra.Command, args []string) error {
	c, err := config.Load(ConfigPath)
	if err != nil {
		return err
	}
	if LogLevel != "" {
		level, err := logging.ParseLevel(LogLevel)
		if err != nil {
			return err
		}
		c.Logging.Level = level
	}
	if err := logging.Init(c.Logging); err != nil {
		return fmt.Errorf("cannot set up logging: %w", err)
	}
	cfg = c
	return nil
}

// datasetArg returns the dataset named on the command line, falling back
// to the configured one.
func datasetArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Dataset
}

func openDataSource(cmd *cobra.Command, path string) (*access.DataSource, error) {
	ds, err := cfg.OpenDataSource(cmd.Context(), path)
	if err != nil {
		return nil, err
	}
	logging.GetLogger().Debug("dataset opened", "path", path, "rows", ds.Table().NumRows())
	return ds, nil
}
