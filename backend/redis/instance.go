package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/converter"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/redis/go-redis/v9"
)

// Instance records are stored as HASHes with the following fields
const (
	fieldInstanceID   = "instance_id"
	fieldDefinitionID = "definition_id"
	fieldState        = "state"
	fieldSnapshot     = "snapshot"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
	fieldCompletedAt  = "completed_at"
)

// Create the instance hash unless it exists and index it as active or finished
// KEYS[1] - instance key
// KEYS[2] - instances-active key
// KEYS[3] - instances-finished key
// ARGV[1] - instance id
// ARGV[2] - definition id
// ARGV[3] - state
// ARGV[4] - snapshot
// ARGV[5] - created at
// ARGV[6] - updated at
// ARGV[7] - completed at, empty if not finished
var createInstanceCmd = redis.NewScript(
	`if redis.call("EXISTS", KEYS[1]) == 1 then
		return 0
	end

	redis.call("HSET", KEYS[1],
		"instance_id", ARGV[1],
		"definition_id", ARGV[2],
		"state", ARGV[3],
		"snapshot", ARGV[4],
		"created_at", ARGV[5],
		"updated_at", ARGV[6],
		"completed_at", ARGV[7])

	if ARGV[7] == "" then
		redis.call("SADD", KEYS[2], ARGV[1])
	else
		redis.call("ZADD", KEYS[3], ARGV[7], ARGV[1])
	end

	return 1
	`,
)

// Update an existing instance hash and move it between the active and finished indexes
// KEYS[1] - instance key
// KEYS[2] - instances-active key
// KEYS[3] - instances-finished key
// ARGV[1] - instance id
// ARGV[2] - state
// ARGV[3] - snapshot
// ARGV[4] - updated at
// ARGV[5] - completed at, empty if not finished
var updateInstanceCmd = redis.NewScript(
	`if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end

	redis.call("HSET", KEYS[1],
		"state", ARGV[2],
		"snapshot", ARGV[3],
		"updated_at", ARGV[4],
		"completed_at", ARGV[5])

	if ARGV[5] == "" then
		redis.call("SADD", KEYS[2], ARGV[1])
		redis.call("ZREM", KEYS[3], ARGV[1])
	else
		redis.call("SREM", KEYS[2], ARGV[1])
		redis.call("ZADD", KEYS[3], ARGV[5], ARGV[1])
	end

	return 1
	`,
)

func (rb *redisBackend) CreateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	instanceID := record.Instance.InstanceID

	created, err := createInstanceCmd.Run(ctx, rb.rdb, []string{
		rb.keys.instanceKey(instanceID),
		rb.keys.instancesActive(),
		rb.keys.instancesFinished(),
	},
		instanceID,
		record.Instance.DefinitionID,
		formatState(record.State),
		string(record.Snapshot),
		formatMillis(&record.CreatedAt),
		formatMillis(&record.UpdatedAt),
		formatMillis(record.CompletedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("creating process instance: %w", err)
	}

	if created == 0 {
		return backend.ErrInstanceAlreadyExists
	}

	if record.Finished() {
		if err := rb.expireInstance(ctx, instanceID); err != nil {
			return err
		}
	}

	rb.options.Logger.Debug("Created new process instance")

	return nil
}

func (rb *redisBackend) UpdateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	instanceID := record.Instance.InstanceID

	updated, err := updateInstanceCmd.Run(ctx, rb.rdb, []string{
		rb.keys.instanceKey(instanceID),
		rb.keys.instancesActive(),
		rb.keys.instancesFinished(),
	},
		instanceID,
		formatState(record.State),
		string(record.Snapshot),
		formatMillis(&record.UpdatedAt),
		formatMillis(record.CompletedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("updating process instance: %w", err)
	}

	if updated == 0 {
		return backend.ErrInstanceNotFound
	}

	if record.Finished() {
		return rb.expireInstance(ctx, instanceID)
	}

	return nil
}

func (rb *redisBackend) GetProcessInstance(ctx context.Context, instanceID string) (*backend.ProcessRecord, error) {
	fields, err := rb.rdb.HGetAll(ctx, rb.keys.instanceKey(instanceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading process instance: %w", err)
	}

	if len(fields) == 0 {
		return nil, backend.ErrInstanceNotFound
	}

	return parseRecord(fields)
}

func (rb *redisBackend) GetProcessInstanceState(ctx context.Context, instanceID string) (core.ProcessState, error) {
	v, err := rb.rdb.HGet(ctx, rb.keys.instanceKey(instanceID), fieldState).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.ProcessStateCreated, backend.ErrInstanceNotFound
		}

		return core.ProcessStateCreated, fmt.Errorf("reading process instance state: %w", err)
	}

	return parseState(v)
}

func parseRecord(fields map[string]string) (*backend.ProcessRecord, error) {
	state, err := parseState(fields[fieldState])
	if err != nil {
		return nil, err
	}

	createdAt, err := parseMillis(fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parsing created at: %w", err)
	}

	updatedAt, err := parseMillis(fields[fieldUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("parsing updated at: %w", err)
	}

	completedAt, err := parseMillis(fields[fieldCompletedAt])
	if err != nil {
		return nil, fmt.Errorf("parsing completed at: %w", err)
	}

	r := &backend.ProcessRecord{
		Instance:    core.NewProcessInstance(fields[fieldInstanceID], fields[fieldDefinitionID]),
		State:       state,
		CompletedAt: completedAt,
	}

	if snapshot := fields[fieldSnapshot]; snapshot != "" {
		r.Snapshot = converter.Payload(snapshot)
	}

	if createdAt != nil {
		r.CreatedAt = *createdAt
	}

	if updatedAt != nil {
		r.UpdatedAt = *updatedAt
	}

	return r, nil
}

func formatState(s core.ProcessState) string {
	return strconv.Itoa(int(s))
}

func parseState(v string) (core.ProcessState, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return core.ProcessStateCreated, fmt.Errorf("parsing process state: %w", err)
	}

	return core.ProcessState(n), nil
}

func formatMillis(t *time.Time) string {
	if t == nil {
		return ""
	}

	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}

	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}

	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
