package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/backend/test"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/stretchr/testify/require"
)

func Test_BoltBackend(t *testing.T) {
	dir := t.TempDir()

	test.BackendTest(t, createBackend(t, dir), func(b backend.Backend) {
		require.NoError(t, b.Close())
	})
}

func Test_EndToEndBoltBackend(t *testing.T) {
	dir := t.TempDir()

	test.EndToEndBackendTest(t, createBackend(t, dir), func(b backend.Backend) {
		require.NoError(t, b.Close())
	})
}

func Test_BoltBackend_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wfmc.db")

	b, err := NewBoltBackend(path)
	require.NoError(t, err)

	r := test.NewRecord(core.ProcessStateRunning)
	test.Finish(r, time.Now())
	require.NoError(t, b.CreateProcessInstance(ctx, r))
	require.NoError(t, b.Close())

	b, err = NewBoltBackend(path, WithTimeout(time.Second))
	require.NoError(t, err)
	defer b.Close()

	got, err := b.GetProcessInstance(ctx, r.Instance.InstanceID)
	require.NoError(t, err)
	require.Equal(t, core.ProcessStateFinished, got.State)
	require.True(t, r.CompletedAt.Equal(*got.CompletedAt))

	s, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), s.FinishedProcessInstances)
}

func Test_finishedKey(t *testing.T) {
	earlier := finishedKey(time.UnixMilli(1000), "b")
	later := finishedKey(time.UnixMilli(2000), "a")

	require.Less(t, string(earlier), string(later))

	ms, instanceID, err := unmarshalFinishedKey(later)
	require.NoError(t, err)
	require.Equal(t, int64(2000), ms)
	require.Equal(t, "a", instanceID)

	_, _, err = unmarshalFinishedKey([]byte{1, 2})
	require.Error(t, err)
}

// createBackend returns a setup function creating a new database file in dir for every call.
func createBackend(t *testing.T, dir string) func(options ...backend.BackendOption) backend.Backend {
	n := 0

	return func(options ...backend.BackendOption) backend.Backend {
		n++

		b, err := NewBoltBackend(filepath.Join(dir, fmt.Sprintf("wfmc-%d.db", n)), WithBackendOptions(options...))
		require.NoError(t, err)

		return b
	}
}
