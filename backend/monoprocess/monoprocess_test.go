package monoprocess

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/backend/memory"
	"github.com/cschleiden/go-wfmc/backend/test"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/stretchr/testify/require"
)

func Test_MonoprocessBackend(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewMonoprocessBackend(memory.NewMemoryBackend(options...))
	}, nil)
}

func Test_EndToEndMonoprocessBackend(t *testing.T) {
	test.EndToEndBackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewMonoprocessBackend(memory.NewMemoryBackend(options...))
	}, nil)
}

func Test_MonoprocessBackend_NotifiesWaiters(t *testing.T) {
	ctx := context.Background()
	b := NewMonoprocessBackend(memory.NewMemoryBackend())

	now := time.Now()
	r := &backend.ProcessRecord{
		Instance:  core.NewProcessInstance("1", "sample"),
		State:     core.ProcessStateRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, b.CreateProcessInstance(ctx, r))

	finished, _ := b.NotifyFinished("1")
	other, cancelOther := b.NotifyFinished("2")
	defer cancelOther()

	require.NoError(t, b.UpdateProcessInstance(ctx, r))
	select {
	case <-finished:
		t.Fatal("notified before finish")
	default:
	}

	r.State = core.ProcessStateFinished
	r.CompletedAt = &now
	require.NoError(t, b.UpdateProcessInstance(ctx, r))

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("waiter was not notified")
	}

	select {
	case <-other:
		t.Fatal("unrelated waiter notified")
	default:
	}
}

func Test_MonoprocessBackend_CancelRemovesWaiter(t *testing.T) {
	b := NewMonoprocessBackend(memory.NewMemoryBackend())

	_, cancel := b.NotifyFinished("1")
	require.Len(t, b.waiters["1"], 1)

	cancel()
	require.NotContains(t, b.waiters, "1")
}
