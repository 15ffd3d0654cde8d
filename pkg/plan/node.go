// Package plan holds the execution nodes that produce the selected rows of
// a dataset, in table order.
package plan

import (
	"github.com/bisegni/visdata/pkg/database"
)

// Node represents an execution node in the row plan
type Node interface {
	Execute() (database.RowIterator, error)
	Children() []Node
	Explain() string
}
