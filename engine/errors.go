package engine

import "errors"

// ErrProcessFinished is returned when a work item is completed for a process that already finished.
var ErrProcessFinished = errors.New("process already finished")
