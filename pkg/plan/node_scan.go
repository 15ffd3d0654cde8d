package plan

import (
	"fmt"

	"github.com/bisegni/visdata/pkg/database"
)

// ScanNode scans a table
type ScanNode struct {
	TableName string
	Table     database.Table
}

func (n *ScanNode) Execute() (database.RowIterator, error) {
	return n.Table.Iterate()
}

func (n *ScanNode) Children() []Node {
	return nil
}

func (n *ScanNode) Explain() string {
	return fmt.Sprintf("Scan(table: %s, rows: %d)", n.TableName, n.Table.NumRows())
}

// PushdownScanNode scans a table that evaluates the clause itself.
type PushdownScanNode struct {
	TableName string
	Table     database.FilterPushdown
	Clause    string
	Args      []interface{}
}

func (n *PushdownScanNode) Execute() (database.RowIterator, error) {
	return n.Table.IterateWhere(n.Clause, n.Args)
}

func (n *PushdownScanNode) Children() []Node {
	return nil
}

func (n *PushdownScanNode) Explain() string {
	return fmt.Sprintf("PushdownScan(table: %s, where: %s, args: %v)", n.TableName, n.Clause, n.Args)
}
