package worker

import (
	"fmt"

	"github.com/cschleiden/go-wfmc/internal/workflowerrors"
)

type PanicError = workflowerrors.PanicError

// NewPermanentError marks an application error as not retryable.
func NewPermanentError(err error) error {
	return workflowerrors.NewPermanentError(err)
}

// Failure describes a work item whose application failed after all attempts, or whose results
// could not be delivered to the process.
type Failure struct {
	InstanceID  string
	ActivityID  int
	WorkItemID  int
	Application string
	Attempts    int

	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("work item %d of activity %d (%s) in process %s: %v", f.WorkItemID, f.ActivityID, f.Application, f.InstanceID, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
