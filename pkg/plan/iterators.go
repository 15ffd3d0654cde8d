package plan

import (
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/logging"
	"github.com/bisegni/visdata/pkg/selection"
)

// --- Filter Iterator ---

type filterIterator struct {
	source     database.RowIterator
	expression selection.Expression

	scanned int
	kept    int
}

func (it *filterIterator) Next() bool {
	for it.source.Next() {
		it.scanned++
		if it.expression.Evaluate(it.source.Row()) {
			it.kept++
			return true
		}
	}
	return false
}

func (it *filterIterator) Row() *database.Row {
	return it.source.Row()
}

func (it *filterIterator) Index() int {
	return it.source.Index()
}

func (it *filterIterator) Error() error {
	return it.source.Error()
}

func (it *filterIterator) Close() error {
	logging.Component("plan").Debug("filter finished",
		"expression", selection.Describe(it.expression),
		"scanned", it.scanned,
		"kept", it.kept)
	return it.source.Close()
}

// --- Project Iterator ---

type projectIterator struct {
	source     database.RowIterator
	keep       map[string]bool
	currentRow *database.Row
}

func (it *projectIterator) Next() bool {
	if !it.source.Next() {
		it.currentRow = nil
		return false
	}
	src := it.source.Row()
	// shallow copy, the cube slices stay shared with the table
	row := *src
	row.Data = make(map[string][]complex64, len(it.keep))
	for name, values := range src.Data {
		if it.keep[name] {
			row.Data[name] = values
		}
	}
	it.currentRow = &row
	return true
}

func (it *projectIterator) Row() *database.Row {
	return it.currentRow
}

func (it *projectIterator) Index() int {
	return it.source.Index()
}

func (it *projectIterator) Error() error {
	return it.source.Error()
}

func (it *projectIterator) Close() error {
	return it.source.Close()
}
