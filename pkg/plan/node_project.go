package plan

import (
	"fmt"
	"strings"

	"github.com/bisegni/visdata/pkg/database"
)

// ProjectNode keeps only the named visibility columns of each row. Scalar
// columns, flags and noise are always kept.
type ProjectNode struct {
	Input   Node
	Columns []string
}

func (n *ProjectNode) Execute() (database.RowIterator, error) {
	inputIter, err := n.Input.Execute()
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(n.Columns))
	for _, c := range n.Columns {
		keep[c] = true
	}
	return &projectIterator{source: inputIter, keep: keep}, nil
}

func (n *ProjectNode) Children() []Node {
	return []Node{n.Input}
}

func (n *ProjectNode) Explain() string {
	return fmt.Sprintf("Project(columns: [%s])", strings.Join(n.Columns, ", "))
}
