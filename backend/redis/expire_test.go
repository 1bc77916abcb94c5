package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/backend/test"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/stretchr/testify/require"
)

func Test_AutoExpiration(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	b := getCreateBackend(mr, WithAutoExpiration(time.Second*2))()
	defer b.Close()

	r := test.NewRecord(core.ProcessStateRunning)
	require.NoError(t, b.CreateProcessInstance(ctx, r))

	// Running instances do not expire
	require.Zero(t, mr.TTL(b.(*redisBackend).keys.instanceKey(r.Instance.InstanceID)))

	test.Finish(r, time.Now())
	require.NoError(t, b.UpdateProcessInstance(ctx, r))

	require.Equal(t, time.Second*2, mr.TTL(b.(*redisBackend).keys.instanceKey(r.Instance.InstanceID)))

	// Let redis expire the keys
	mr.FastForward(time.Second * 3)

	_, err := b.GetProcessInstanceState(ctx, r.Instance.InstanceID)
	require.ErrorIs(t, err, backend.ErrInstanceNotFound)
}

func Test_AutoExpiration_PurgesIndexes(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	b := getCreateBackend(mr, WithAutoExpiration(time.Millisecond))()
	defer b.Close()

	r := test.NewRecord(core.ProcessStateRunning)
	test.Finish(r, time.Now())
	require.NoError(t, b.CreateProcessInstance(ctx, r))

	time.Sleep(time.Millisecond * 10)

	s, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Zero(t, s.FinishedProcessInstances)
	require.Zero(t, s.ActiveProcessInstances)
}
