// Package meta wraps the subtables of a dataset with lookup handlers. The
// feed and field handlers cache the records valid at the last queried
// epoch.
package meta

import (
	"fmt"

	"github.com/bisegni/visdata/pkg/database"
)

// Info bundles the handlers of one dataset.
type Info struct {
	Antennas      *AntennaHandler
	Feeds         *FeedHandler
	Fields        *FieldHandler
	SpWindows     *SpWindowHandler
	Polarizations *PolarizationHandler
	DataDescs     *DataDescHandler
}

// NewInfo validates the subtables and builds the handlers.
func NewInfo(sub *database.Subtables) (*Info, error) {
	if sub == nil {
		return nil, fmt.Errorf("dataset has no subtables")
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	fields, err := NewFieldHandler(sub.Fields)
	if err != nil {
		return nil, err
	}
	return &Info{
		Antennas:      NewAntennaHandler(sub.Antennas),
		Feeds:         NewFeedHandler(sub.Feeds),
		Fields:        fields,
		SpWindows:     NewSpWindowHandler(sub.SpWindows, sub.FrequencyUnit),
		Polarizations: NewPolarizationHandler(sub.Polarizations),
		DataDescs:     NewDataDescHandler(sub.DataDescs),
	}, nil
}
