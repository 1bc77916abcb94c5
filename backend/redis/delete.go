package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/core"
	redis "github.com/redis/go-redis/v9"
)

// Delete a finished instance and remove it from all indexes
// KEYS[1] - instance key
// KEYS[2] - instances-active key
// KEYS[3] - instances-finished key
// KEYS[4] - instances-expiring key
// ARGV[1] - instance id
// ARGV[2] - finished state
//
// Returns -1 if the instance does not exist, 0 if it has not finished, 1 if it was deleted
var deleteInstanceCmd = redis.NewScript(
	`local state = redis.call("HGET", KEYS[1], "state")
	if not state then
		return -1
	end

	if state ~= ARGV[2] then
		return 0
	end

	redis.call("DEL", KEYS[1])
	redis.call("SREM", KEYS[2], ARGV[1])
	redis.call("ZREM", KEYS[3], ARGV[1])
	redis.call("ZREM", KEYS[4], ARGV[1])

	return 1
	`,
)

func (rb *redisBackend) RemoveProcessInstance(ctx context.Context, instanceID string) error {
	r, err := rb.deleteInstance(ctx, instanceID)
	if err != nil {
		return err
	}

	switch r {
	case -1:
		return backend.ErrInstanceNotFound
	case 0:
		return backend.ErrInstanceNotFinished
	}

	return nil
}

func (rb *redisBackend) RemoveProcessInstances(ctx context.Context, options ...backend.RemovalOption) error {
	o := backend.ApplyRemovalOptions(options...)

	max := "+inf"
	if !o.FinishedBefore.IsZero() {
		max = "(" + strconv.FormatInt(o.FinishedBefore.UnixMilli(), 10)
	}

	instanceIDs, err := rb.rdb.ZRangeByScore(ctx, rb.keys.instancesFinished(), &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return fmt.Errorf("reading finished instances: %w", err)
	}

	for _, instanceID := range instanceIDs {
		if _, err := rb.deleteInstance(ctx, instanceID); err != nil {
			return err
		}
	}

	return nil
}

// deleteInstance deletes an instance if it has finished.
func (rb *redisBackend) deleteInstance(ctx context.Context, instanceID string) (int, error) {
	r, err := deleteInstanceCmd.Run(ctx, rb.rdb, []string{
		rb.keys.instanceKey(instanceID),
		rb.keys.instancesActive(),
		rb.keys.instancesFinished(),
		rb.keys.instancesExpiring(),
	}, instanceID, formatState(core.ProcessStateFinished)).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to delete instance: %w", err)
	}

	return r, nil
}
