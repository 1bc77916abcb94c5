package test

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/converter"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func BackendTest(t *testing.T, setup func(options ...backend.BackendOption) backend.Backend, teardown func(b backend.Backend)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, b backend.Backend)
	}{
		{
			name: "CreateProcessInstance_DoesNotError",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				err := b.CreateProcessInstance(ctx, NewRecord(core.ProcessStateCreated))
				require.NoError(t, err)
			},
		},
		{
			name: "CreateProcessInstance_SameInstanceIDErrors",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				r := NewRecord(core.ProcessStateCreated)

				err := b.CreateProcessInstance(ctx, r)
				require.NoError(t, err)

				err = b.CreateProcessInstance(ctx, r)
				require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
			},
		},
		{
			name: "GetProcessInstance_ReturnsRecord",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				r := NewRecord(core.ProcessStateRunning)
				require.NoError(t, b.CreateProcessInstance(ctx, r))

				got, err := b.GetProcessInstance(ctx, r.Instance.InstanceID)
				require.NoError(t, err)
				requireRecord(t, r, got)
			},
		},
		{
			name: "GetProcessInstance_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.GetProcessInstance(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "UpdateProcessInstance_ReplacesState",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				r := NewRecord(core.ProcessStateCreated)
				require.NoError(t, b.CreateProcessInstance(ctx, r))

				Finish(r, time.Now())
				r.Snapshot = converter.Payload(`{"state":2}`)
				require.NoError(t, b.UpdateProcessInstance(ctx, r))

				got, err := b.GetProcessInstance(ctx, r.Instance.InstanceID)
				require.NoError(t, err)
				requireRecord(t, r, got)
			},
		},
		{
			name: "UpdateProcessInstance_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				err := b.UpdateProcessInstance(ctx, NewRecord(core.ProcessStateRunning))
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "GetProcessInstanceState_ReturnsState",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				r := NewRecord(core.ProcessStateCreated)
				require.NoError(t, b.CreateProcessInstance(ctx, r))

				state, err := b.GetProcessInstanceState(ctx, r.Instance.InstanceID)
				require.NoError(t, err)
				require.Equal(t, core.ProcessStateCreated, state)

				r.State = core.ProcessStateRunning
				require.NoError(t, b.UpdateProcessInstance(ctx, r))

				state, err = b.GetProcessInstanceState(ctx, r.Instance.InstanceID)
				require.NoError(t, err)
				require.Equal(t, core.ProcessStateRunning, state)
			},
		},
		{
			name: "GetProcessInstanceState_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				_, err := b.GetProcessInstanceState(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "RemoveProcessInstance_RemovesFinishedInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				r := NewRecord(core.ProcessStateRunning)
				Finish(r, time.Now())
				require.NoError(t, b.CreateProcessInstance(ctx, r))

				require.NoError(t, b.RemoveProcessInstance(ctx, r.Instance.InstanceID))

				_, err := b.GetProcessInstance(ctx, r.Instance.InstanceID)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "RemoveProcessInstance_ErrorsForRunningInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				r := NewRecord(core.ProcessStateRunning)
				require.NoError(t, b.CreateProcessInstance(ctx, r))

				err := b.RemoveProcessInstance(ctx, r.Instance.InstanceID)
				require.ErrorIs(t, err, backend.ErrInstanceNotFinished)

				_, err = b.GetProcessInstance(ctx, r.Instance.InstanceID)
				require.NoError(t, err)
			},
		},
		{
			name: "RemoveProcessInstance_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				err := b.RemoveProcessInstance(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "RemoveProcessInstances_RemovesFinishedBefore",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				now := time.Now()

				old := NewRecord(core.ProcessStateRunning)
				Finish(old, now.Add(-2*time.Hour))
				recent := NewRecord(core.ProcessStateRunning)
				Finish(recent, now)
				running := NewRecord(core.ProcessStateRunning)

				for _, r := range []*backend.ProcessRecord{old, recent, running} {
					require.NoError(t, b.CreateProcessInstance(ctx, r))
				}

				require.NoError(t, b.RemoveProcessInstances(ctx, backend.RemoveFinishedBefore(now.Add(-time.Hour))))

				_, err := b.GetProcessInstance(ctx, old.Instance.InstanceID)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)

				_, err = b.GetProcessInstance(ctx, recent.Instance.InstanceID)
				require.NoError(t, err)

				_, err = b.GetProcessInstance(ctx, running.Instance.InstanceID)
				require.NoError(t, err)

				require.NoError(t, b.RemoveProcessInstances(ctx))

				_, err = b.GetProcessInstance(ctx, recent.Instance.InstanceID)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)

				_, err = b.GetProcessInstance(ctx, running.Instance.InstanceID)
				require.NoError(t, err)
			},
		},
		{
			name: "GetStats_CountsInstances",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				finished := NewRecord(core.ProcessStateRunning)
				Finish(finished, time.Now())

				for _, r := range []*backend.ProcessRecord{
					NewRecord(core.ProcessStateCreated),
					NewRecord(core.ProcessStateRunning),
					finished,
				} {
					require.NoError(t, b.CreateProcessInstance(ctx, r))
				}

				s, err := b.GetStats(ctx)
				require.NoError(t, err)
				require.Equal(t, int64(2), s.ActiveProcessInstances)
				require.Equal(t, int64(1), s.FinishedProcessInstances)
			},
		},
		{
			name: "Accessors_ReturnConfiguredValues",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				require.NotNil(t, b.Tracer())
				require.NotNil(t, b.Metrics())
				require.NotNil(t, b.Options())
				require.NotNil(t, b.Options().Converter)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			ctx := context.Background()

			tt.f(t, ctx, b)

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

// NewRecord returns a normalized record for a new instance of the "sample" definition.
func NewRecord(state core.ProcessState) *backend.ProcessRecord {
	now := time.Now()

	r := &backend.ProcessRecord{
		Instance:  core.NewProcessInstance(uuid.NewString(), "sample"),
		State:     state,
		Snapshot:  converter.Payload(`{"state":1}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Normalize()

	return r
}

// Finish marks the record as finished at the given time.
func Finish(r *backend.ProcessRecord, at time.Time) {
	r.State = core.ProcessStateFinished
	r.UpdatedAt = at
	r.CompletedAt = &at
	r.Normalize()
}

func requireRecord(t *testing.T, want, got *backend.ProcessRecord) {
	t.Helper()

	require.Equal(t, want.Instance, got.Instance)
	require.Equal(t, want.State, got.State)
	require.JSONEq(t, string(want.Snapshot), string(got.Snapshot))
	require.True(t, want.CreatedAt.Equal(got.CreatedAt), "created at: want %v, got %v", want.CreatedAt, got.CreatedAt)
	require.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated at: want %v, got %v", want.UpdatedAt, got.UpdatedAt)

	if want.CompletedAt == nil {
		require.Nil(t, got.CompletedAt)
	} else {
		require.NotNil(t, got.CompletedAt)
		require.True(t, want.CompletedAt.Equal(*got.CompletedAt), "completed at: want %v, got %v", *want.CompletedAt, *got.CompletedAt)
	}
}
