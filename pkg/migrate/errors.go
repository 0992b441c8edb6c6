package migrate

import (
	"fmt"

	"github.com/framebase/framebase/pkg/store"
)

// MissingRevisionError reports a gap in the registered revisions that
// makes the requested path unreachable.
type MissingRevisionError struct {
	Version   int
	Direction Direction
}

func (e *MissingRevisionError) Error() string {
	return fmt.Sprintf("no revision registered for schema version %d (%s)", e.Version, e.Direction)
}

// PartialWriteError reports a step whose per-sample updates did not all
// apply. The dataset's schema version is left where it was before the
// step.
type PartialWriteError struct {
	Dataset    string
	Collection string
	Failed     []store.FailedUpdate
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%d updates to collection %q of dataset %q were not applied",
		len(e.Failed), e.Collection, e.Dataset)
}

// FailedIDs returns the ids of the documents whose updates failed.
func (e *PartialWriteError) FailedIDs() []string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ID
	}
	return ids
}

// LossWarning marks a transform that cannot preserve all data, such as a
// downgrade that rebuilds a summary from whatever is still present. It is
// reported through Changes.Warnings and logged, never returned as a
// failure.
type LossWarning struct {
	Reason string
}

func (w LossWarning) Error() string { return w.Reason }
