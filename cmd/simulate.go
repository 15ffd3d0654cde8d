package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/simulate"
)

var simulateFlags struct {
	antennas int
	channels int
	times    int
	beams    int
	dataDesc int
	fields   int
	autocorr bool
	stokes   string
	mount    string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <output>",
	Short: "Write a synthetic dataset",
	Long: `Generate a deterministic synthetic dataset from the simulate section of
the configuration, overridden by flags. The output format follows the
extension: SQLite for .db/.sqlite, JSONL otherwise, - for stdout.

Examples:
  visdata simulate sim.jsonl
  visdata simulate sim.db --antennas 36 --channels 64 --beams 9 --times 20`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	fs := simulateCmd.Flags()
	fs.IntVar(&simulateFlags.antennas, "antennas", 0, "Number of antennas")
	fs.IntVar(&simulateFlags.channels, "channels", 0, "Channels per spectral window")
	fs.IntVar(&simulateFlags.times, "times", 0, "Number of integrations")
	fs.IntVar(&simulateFlags.beams, "beams", 0, "Beams (feeds) per antenna")
	fs.IntVar(&simulateFlags.dataDesc, "ddids", 0, "Number of data descriptors (spectral windows)")
	fs.IntVar(&simulateFlags.fields, "fields", 0, "Number of fields")
	fs.BoolVar(&simulateFlags.autocorr, "autocorr", false, "Include autocorrelations")
	fs.StringVar(&simulateFlags.stokes, "stokes", "", `Polarisation products (e.g. "XX,XY,YX,YY")`)
	fs.StringVar(&simulateFlags.mount, "mount", "", "Antenna mount (EQUATORIAL, ALT-AZ)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	sc := cfg.Simulate
	fs := cmd.Flags()
	if fs.Changed("antennas") {
		sc.NAntennas = simulateFlags.antennas
	}
	if fs.Changed("channels") {
		sc.NChannels = simulateFlags.channels
	}
	if fs.Changed("times") {
		sc.NTimes = simulateFlags.times
	}
	if fs.Changed("beams") {
		sc.NBeams = simulateFlags.beams
	}
	if fs.Changed("ddids") {
		sc.NDataDescs = simulateFlags.dataDesc
	}
	if fs.Changed("fields") {
		sc.NFields = simulateFlags.fields
	}
	if fs.Changed("autocorr") {
		sc.Autocorrelations = simulateFlags.autocorr
	}
	if fs.Changed("stokes") {
		sc.Stokes = simulateFlags.stokes
	}
	if fs.Changed("mount") {
		sc.Mount = simulateFlags.mount
	}

	table, err := simulate.Dataset(sc)
	if err != nil {
		return err
	}
	return writeDataset(table, args[0])
}
