package reconcile

import (
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/types"
)

// Phase names the step of a run that failed.
type Phase string

const (
	PhasePush    Phase = "push"
	PhasePull    Phase = "pull"
	PhaseCatalog Phase = "catalog"
)

// SyncError aborts a run. RecordKey is empty when the failure is not tied
// to one record, such as a failed collection read.
type SyncError struct {
	Collection types.Collection
	RecordKey  string
	Phase      Phase
	Err        error
}

func (e *SyncError) Error() string {
	if e.RecordKey != "" {
		return fmt.Sprintf("sync %s %s failed on record %s: %v", e.Collection, e.Phase, e.RecordKey, e.Err)
	}
	return fmt.Sprintf("sync %s %s failed: %v", e.Collection, e.Phase, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
