package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/engine"
	"github.com/bisegni/visdata/pkg/plan"
	"github.com/bisegni/visdata/pkg/planner"
	"github.com/bisegni/visdata/pkg/selection"
)

const interactiveHelp = `Commands:
  <expression>          iterate the rows matching a selection expression
  all                   iterate every row
  explain <expression>  show the row plan of a selection
  stats <expression>    per-baseline statistics of a selection
  rows                  number of rows and integrations
  help                  this text
  exit, quit            leave`

// RunInteractive opens a dataset once and answers selections typed at a
// prompt.
func RunInteractive(ctx context.Context, path string) error {
	ds, err := cfg.OpenDataSource(ctx, path)
	if err != nil {
		return err
	}
	defer ds.Close()

	fmt.Println("Interactive mode enabled. Type 'help' for commands, 'exit' or 'quit' to leave.")
	fmt.Printf("Dataset: %s (%d rows)\n", ds.Table().Name(), ds.Table().NumRows())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "visdata> ",
		HistoryFile:     "", // in-memory history for this session
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, "exit") || strings.EqualFold(trimmed, "quit") {
			break
		}
		if err := executeInteractive(ctx, ds, trimmed); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return nil
}

func executeInteractive(ctx context.Context, ds *access.DataSource, line string) error {
	command, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(command) {
	case "help":
		fmt.Println(interactiveHelp)
		return nil
	case "rows":
		times, err := ds.Times()
		if err != nil {
			return err
		}
		fmt.Printf("%d rows, %d integrations\n", ds.Table().NumRows(), len(times))
		return nil
	case "explain":
		sel, err := interactiveSelector(ds, rest)
		if err != nil {
			return err
		}
		node, err := planner.CreatePlan(sel, ds.Table(), nil)
		if err != nil {
			return err
		}
		fmt.Println(plan.FormatPlan(node))
		return nil
	case "stats":
		sel, err := interactiveSelector(ds, rest)
		if err != nil {
			return err
		}
		it, err := ds.CreateConstIterator(sel, nil)
		if err != nil {
			return err
		}
		defer it.Close()
		executor := engine.NewExecutor()
		executor.Pretty = QueryPretty
		agg := engine.NewAggregator(false)
		if err := executor.Aggregate(ctx, it, agg); err != nil {
			return err
		}
		return executor.WriteBaselines(os.Stdout, agg.Results())
	case "all":
		line = ""
	}

	sel, err := interactiveSelector(ds, line)
	if err != nil {
		return err
	}
	it, err := ds.CreateConstIterator(sel, nil)
	if err != nil {
		return err
	}
	defer it.Close()
	executor := engine.NewExecutor()
	executor.Pretty = QueryPretty
	n, err := executor.Execute(ctx, it, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("(%d chunks)\n", n)
	return nil
}

// interactiveSelector parses expr into a selector; an empty expr selects
// everything.
func interactiveSelector(ds *access.DataSource, expr string) (*selection.Selector, error) {
	sel := ds.CreateSelector()
	if strings.TrimSpace(expr) == "" {
		return sel, nil
	}
	e, err := selection.Parse(expr)
	if err != nil {
		return nil, err
	}
	sel.Where(e)
	return sel, nil
}
