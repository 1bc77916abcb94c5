package backend

import (
	"time"
)

type RemovalOptions struct {
	FinishedBefore time.Time
}

type RemovalOption func(o *RemovalOptions)

func RemoveFinishedBefore(t time.Time) RemovalOption {
	return func(o *RemovalOptions) {
		o.FinishedBefore = t
	}
}

// ApplyRemovalOptions returns the removal options. Without FinishedBefore all finished
// instances match.
func ApplyRemovalOptions(opts ...RemovalOption) RemovalOptions {
	var o RemovalOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Matches reports whether an instance completed at completedAt is removed.
func (o RemovalOptions) Matches(completedAt *time.Time) bool {
	if completedAt == nil {
		return false
	}

	return o.FinishedBefore.IsZero() || completedAt.Before(o.FinishedBefore)
}
