package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Drop instances whose expiration has passed from the index sets. The instance hashes themselves are
// removed by redis.
// KEYS[1] - instances-finished key
// KEYS[2] - instances-expiring key
// ARGV[1] - current timestamp
var purgeExpiredCmd = redis.NewScript(
	`local expiredInstances = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1])
	for i = 1, #expiredInstances do
		local instanceID = expiredInstances[i]
		redis.call("ZREM", KEYS[1], instanceID) -- finished set
		redis.call("ZREM", KEYS[2], instanceID) -- expiration set
	end

	return #expiredInstances
	`,
)

// Set the given expiration time on a finished instance
// KEYS[1] - instances-finished key
// KEYS[2] - instances-expiring key
// KEYS[3] - instance key
// ARGV[1] - current timestamp
// ARGV[2] - expiration time in seconds
// ARGV[3] - expiration timestamp in unix milliseconds
// ARGV[4] - instance id
var expireCmd = redis.NewScript(
	`-- Find instances which have already expired and remove from the index sets
	local expiredInstances = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1])
	for i = 1, #expiredInstances do
		local instanceID = expiredInstances[i]
		redis.call("ZREM", KEYS[1], instanceID)
		redis.call("ZREM", KEYS[2], instanceID)
	end

	-- Add expiration time for future cleanup
	redis.call("ZADD", KEYS[2], ARGV[3], ARGV[4])

	redis.call("EXPIRE", KEYS[3], ARGV[2])

	return 0
	`,
)

// expireInstance sets the configured expiration on a finished instance. It does nothing when
// auto expiration is disabled.
func (rb *redisBackend) expireInstance(ctx context.Context, instanceID string) error {
	expiration := rb.options.AutoExpiration
	if expiration <= 0 {
		return nil
	}

	now := time.Now()
	nowStr := strconv.FormatInt(now.UnixMilli(), 10)
	expStr := strconv.FormatInt(now.Add(expiration).UnixMilli(), 10)

	// EXPIRE only accepts whole seconds
	seconds := int64(expiration.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	if err := expireCmd.Run(ctx, rb.rdb, []string{
		rb.keys.instancesFinished(),
		rb.keys.instancesExpiring(),
		rb.keys.instanceKey(instanceID),
	},
		nowStr,
		seconds,
		expStr,
		instanceID,
	).Err(); err != nil {
		return fmt.Errorf("setting instance expiration: %w", err)
	}

	return nil
}

func (rb *redisBackend) purgeExpired(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	if err := purgeExpiredCmd.Run(ctx, rb.rdb, []string{
		rb.keys.instancesFinished(),
		rb.keys.instancesExpiring(),
	}, now).Err(); err != nil {
		return fmt.Errorf("purging expired instances: %w", err)
	}

	return nil
}
