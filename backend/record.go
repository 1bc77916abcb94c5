package backend

import (
	"time"

	"github.com/cschleiden/go-wfmc/converter"
	"github.com/cschleiden/go-wfmc/core"
)

// Clone returns a deep copy of the record.
func (r *ProcessRecord) Clone() *ProcessRecord {
	c := *r

	if r.Instance != nil {
		c.Instance = core.NewProcessInstance(r.Instance.InstanceID, r.Instance.DefinitionID)
	}

	if r.Snapshot != nil {
		c.Snapshot = append(converter.Payload(nil), r.Snapshot...)
	}

	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}

	return &c
}

// Finished reports whether the instance has finished.
func (r *ProcessRecord) Finished() bool {
	return r.State == core.ProcessStateFinished
}

// Timestamps are stored with millisecond precision by the SQL backends.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Normalize truncates the record's timestamps to the precision all backends store.
func (r *ProcessRecord) Normalize() {
	r.CreatedAt = truncate(r.CreatedAt)
	r.UpdatedAt = truncate(r.UpdatedAt)

	if r.CompletedAt != nil {
		t := truncate(*r.CompletedAt)
		r.CompletedAt = &t
	}
}
