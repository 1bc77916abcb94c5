package monoprocess

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/log"
)

type monoprocessBackend struct {
	backend.Backend

	mu      sync.Mutex
	waiters map[string][]chan struct{}

	logger *slog.Logger
}

var _ backend.FinishNotifier = (*monoprocessBackend)(nil)

// NewMonoprocessBackend wraps an existing backend and improves the responsiveness of waiting
// for process instances in case the backend and the engine are running in the same process.
// Instead of polling the backend, waiters are notified through a channel when an instance is
// stored as finished.
// IMPORTANT: Only use this backend if all engines using the backend run in the same process.
func NewMonoprocessBackend(b backend.Backend) *monoprocessBackend {
	return &monoprocessBackend{
		Backend: b,
		waiters: make(map[string][]chan struct{}),
		logger:  b.Options().Logger,
	}
}

func (b *monoprocessBackend) CreateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	if err := b.Backend.CreateProcessInstance(ctx, record); err != nil {
		return err
	}

	if record.Finished() {
		b.notify(ctx, record.Instance.InstanceID)
	}

	return nil
}

func (b *monoprocessBackend) UpdateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	if err := b.Backend.UpdateProcessInstance(ctx, record); err != nil {
		return err
	}

	if record.Finished() {
		b.notify(ctx, record.Instance.InstanceID)
	}

	return nil
}

// NotifyFinished returns a channel that is closed once the given instance is stored as
// finished, and a function to stop waiting.
func (b *monoprocessBackend) NotifyFinished(instanceID string) (<-chan struct{}, func()) {
	ch := make(chan struct{})

	b.mu.Lock()
	b.waiters[instanceID] = append(b.waiters[instanceID], ch)
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		waiters := b.waiters[instanceID]
		for i, w := range waiters {
			if w == ch {
				waiters = append(waiters[:i], waiters[i+1:]...)
				break
			}
		}

		if len(waiters) == 0 {
			delete(b.waiters, instanceID)
		} else {
			b.waiters[instanceID] = waiters
		}
	}
}

func (b *monoprocessBackend) notify(ctx context.Context, instanceID string) {
	b.mu.Lock()
	waiters := b.waiters[instanceID]
	delete(b.waiters, instanceID)
	b.mu.Unlock()

	if len(waiters) == 0 {
		return
	}

	b.logger.DebugContext(ctx, "notifying waiters of finished process", log.InstanceIDKey, instanceID, "waiters", len(waiters))

	for _, ch := range waiters {
		close(ch)
	}
}
