// Package planner turns a row selection into an execution plan.
package planner

import (
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/plan"
	"github.com/bisegni/visdata/pkg/selection"
)

// CreatePlan builds the plan producing the rows selected by sel, in table
// order. Top-level conjuncts the table can evaluate natively are pushed
// down; the rest is filtered in memory. When columns is not empty only
// those visibility columns are kept.
func CreatePlan(sel *selection.Selector, table database.Table, columns []string) (plan.Node, error) {
	var expr selection.Expression
	if sel != nil {
		expr = sel.Expression()
	}

	var currentNode plan.Node = &plan.ScanNode{TableName: table.Name(), Table: table}

	if expr != nil {
		var pushed, residual []selection.Expression
		pushdown, canPush := table.(database.FilterPushdown)
		for _, c := range Conjuncts(expr) {
			if canPush {
				if _, _, ok := c.SQL(); ok {
					pushed = append(pushed, c)
					continue
				}
			}
			residual = append(residual, c)
		}

		if len(pushed) > 0 {
			clause, args, _ := selection.And(pushed...).SQL()
			currentNode = &plan.PushdownScanNode{
				TableName: table.Name(),
				Table:     pushdown,
				Clause:    clause,
				Args:      args,
			}
		}
		if len(residual) > 0 {
			currentNode = &plan.FilterNode{
				Input:      currentNode,
				Expression: selection.And(residual...),
			}
		}
	}

	if len(columns) > 0 {
		currentNode = &plan.ProjectNode{
			Input:   currentNode,
			Columns: columns,
		}
	}

	return currentNode, nil
}

// Conjuncts flattens nested AND expressions into their operands.
func Conjuncts(e selection.Expression) []selection.Expression {
	if and, ok := e.(*selection.AndExpression); ok {
		return append(Conjuncts(and.Left), Conjuncts(and.Right)...)
	}
	if e == nil {
		return nil
	}
	return []selection.Expression{e}
}
