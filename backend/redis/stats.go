package redis

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-wfmc/backend"
)

func (rb *redisBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	if err := rb.purgeExpired(ctx); err != nil {
		return nil, err
	}

	s := &backend.Stats{}

	activeInstances, err := rb.rdb.SCard(ctx, rb.keys.instancesActive()).Result()
	if err != nil {
		return nil, fmt.Errorf("getting active instances: %w", err)
	}

	s.ActiveProcessInstances = activeInstances

	finishedInstances, err := rb.rdb.ZCard(ctx, rb.keys.instancesFinished()).Result()
	if err != nil {
		return nil, fmt.Errorf("getting finished instances: %w", err)
	}

	s.FinishedProcessInstances = finishedInstances

	return s, nil
}
