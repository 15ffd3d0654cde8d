package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dataset]",
	Short: "Check a dataset for consistency",
	Long: `Check that the subtables cross reference correctly, that every row
has a consistent shape, valid ids and non-decreasing time, and that the
whole dataset can be iterated (feed, field and spectral lookups succeed).

Examples:
  visdata validate sim.jsonl
  visdata validate sim.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	ds, err := openDataSource(cmd, datasetArg(args))
	if err != nil {
		fmt.Printf("❌ Validation failed: %v\n", err)
		return err
	}
	defer ds.Close()

	rows, err := validateRows(ds.Table())
	if err == nil {
		err = validateIteration(cmd, ds)
	}
	if err != nil {
		fmt.Printf("❌ Validation failed: %v\n", err)
		return err
	}
	fmt.Printf("✅ Valid dataset %s with %d row(s)\n", ds.Table().Name(), rows)
	return nil
}

func validateRows(table database.Table) (int, error) {
	sub := table.Subtables()
	it, err := table.Iterate()
	if err != nil {
		return 0, err
	}
	defer it.Close()

	n := 0
	prev := 0.0
	var problems []error
	for it.Next() {
		r := it.Row()
		i := it.Index()
		if err := r.CheckShape(); err != nil {
			problems = append(problems, errs.ShapeMismatch("%v", err).WithRow(i))
		}
		if n > 0 && r.Time < prev {
			problems = append(problems, errs.Consistency("time %f precedes %f", r.Time, prev).WithRow(i))
		}
		if r.Antenna1 < 0 || r.Antenna1 >= len(sub.Antennas) || r.Antenna2 < 0 || r.Antenna2 >= len(sub.Antennas) {
			problems = append(problems, errs.Consistency("antennas %d-%d out of range", r.Antenna1, r.Antenna2).WithRow(i))
		}
		if r.DataDescID < 0 || r.DataDescID >= len(sub.DataDescs) {
			problems = append(problems, errs.Consistency("data descriptor %d out of range", r.DataDescID).WithRow(i))
		}
		if table.HasColumn(database.ColFieldID) && (r.FieldID < 0 || r.FieldID >= len(sub.Fields)) {
			problems = append(problems, errs.Consistency("field %d out of range", r.FieldID).WithRow(i))
		}
		if len(problems) >= 10 {
			break
		}
		prev = r.Time
		n++
	}
	if err := it.Error(); err != nil {
		problems = append(problems, err)
	}
	return n, errors.Join(problems...)
}

func validateIteration(cmd *cobra.Command, ds *access.DataSource) error {
	it, err := ds.CreateConstIterator(nil, nil)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.HasMore() {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		acc := it.Accessor()
		if _, err := acc.Visibility(); err != nil {
			return err
		}
		if _, err := acc.Frequency(); err != nil {
			return err
		}
		if _, err := acc.PointingDir1(); err != nil {
			return err
		}
		if _, err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}
