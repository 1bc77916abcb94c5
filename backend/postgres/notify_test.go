package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNotifications_ProcessFinished(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	dbName := createDatabase()
	b := NewPostgresBackend("localhost", 5432, testUser, testPassword, dbName, WithNotifications(true))
	defer dropDatabase(b, dbName)

	ctx := context.Background()
	now := time.Now()
	r := &backend.ProcessRecord{
		Instance:  core.NewProcessInstance(uuid.NewString(), "sample"),
		State:     core.ProcessStateRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, b.CreateProcessInstance(ctx, r))

	finished, cancel := b.NotifyFinished(r.Instance.InstanceID)
	defer cancel()

	r.State = core.ProcessStateFinished
	r.CompletedAt = &now
	require.NoError(t, b.UpdateProcessInstance(ctx, r))

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestNotifications_Disabled(t *testing.T) {
	b := &postgresBackend{options: &options{Options: &backend.DefaultOptions}}

	ch, cancel := b.NotifyFinished("1")
	defer cancel()

	select {
	case <-ch:
		t.Fatal("unexpected notification")
	default:
	}
}
