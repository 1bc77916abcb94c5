package bolt

import (
	"os"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
)

type options struct {
	*backend.Options

	// FileMode is the mode used when the database file is created. Defaults to 0600.
	FileMode os.FileMode

	// Timeout is the time to wait for the file lock when opening the database. 0 waits indefinitely.
	Timeout time.Duration
}

type option func(*options)

func WithFileMode(mode os.FileMode) option {
	return func(o *options) {
		o.FileMode = mode
	}
}

func WithTimeout(timeout time.Duration) option {
	return func(o *options) {
		o.Timeout = timeout
	}
}

// WithBackendOptions allows to pass generic backend options
func WithBackendOptions(opts ...backend.BackendOption) option {
	return func(o *options) {
		for _, opt := range opts {
			opt(o.Options)
		}
	}
}
