package scoring

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/urbanalytics/insights-cli/internal/model"
)

// ErrEmptyDataset is returned when a snapshot contains no raw metrics at
// all. The scoring batch is aborted without partial output; the caller must
// ensure ingestion ran before retrying.
var ErrEmptyDataset = eris.New("scoring: empty dataset, nothing to normalize")

// MissingComponentError reports that a region lacked one of the six
// component scores at composite time. It is fatal for that region only;
// the batch continues for all other regions.
type MissingComponentError struct {
	RegionID  string
	Component model.Component
}

func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("scoring: region %s missing component %s", e.RegionID, e.Component)
}
