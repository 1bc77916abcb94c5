package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cschleiden/go-wfmc/log"
	"github.com/lib/pq"
)

const processFinishedChannel = "process_finished"

// notificationListener manages the LISTEN connection for finished process instances
type notificationListener struct {
	dsn    string
	logger *slog.Logger

	listener *pq.Listener

	mu      sync.Mutex
	waiters map[string][]chan struct{}
	started bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newNotificationListener(dsn string, logger *slog.Logger) *notificationListener {
	return &notificationListener{
		dsn:     dsn,
		logger:  logger,
		waiters: make(map[string][]chan struct{}),
	}
}

// Start begins listening for notifications
func (nl *notificationListener) Start() error {
	nl.mu.Lock()
	defer nl.mu.Unlock()

	if nl.started || nl.closed {
		return nil
	}

	nl.ctx, nl.cancel = context.WithCancel(context.Background())

	nl.listener = pq.NewListener(nl.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			nl.logger.Error("process listener event", "event", ev, "error", err)
		}
	})

	if err := nl.listener.Listen(processFinishedChannel); err != nil {
		nl.listener.Close()
		nl.listener = nil
		return fmt.Errorf("listening to process finished channel: %w", err)
	}

	nl.started = true

	nl.wg.Add(1)
	go nl.handleNotifications()

	return nil
}

// Close stops the listener and releases all waiters
func (nl *notificationListener) Close() error {
	nl.mu.Lock()
	if nl.closed {
		nl.mu.Unlock()
		return nil
	}
	nl.closed = true

	if nl.cancel != nil {
		nl.cancel()
	}
	nl.mu.Unlock()

	nl.wg.Wait()

	nl.mu.Lock()
	defer nl.mu.Unlock()

	for id, waiters := range nl.waiters {
		for _, ch := range waiters {
			close(ch)
		}
		delete(nl.waiters, id)
	}

	if nl.listener != nil {
		if err := nl.listener.Close(); err != nil {
			return fmt.Errorf("closing process listener: %w", err)
		}
	}

	return nil
}

// Subscribe returns a channel that is closed when a notification for the instance arrives
func (nl *notificationListener) Subscribe(instanceID string) (<-chan struct{}, func()) {
	ch := make(chan struct{})

	nl.mu.Lock()
	nl.waiters[instanceID] = append(nl.waiters[instanceID], ch)
	nl.mu.Unlock()

	return ch, func() {
		nl.mu.Lock()
		defer nl.mu.Unlock()

		waiters := nl.waiters[instanceID]
		for i, w := range waiters {
			if w == ch {
				waiters = append(waiters[:i], waiters[i+1:]...)
				break
			}
		}

		if len(waiters) == 0 {
			delete(nl.waiters, instanceID)
		} else {
			nl.waiters[instanceID] = waiters
		}
	}
}

func (nl *notificationListener) handleNotifications() {
	defer nl.wg.Done()

	for {
		select {
		case <-nl.ctx.Done():
			return
		case notification, ok := <-nl.listener.Notify:
			if !ok {
				return
			}

			// nil is sent after the connection was re-established, notifications might have been lost
			if notification == nil {
				nl.releaseAll()
				continue
			}

			nl.release(notification.Extra)
		case <-time.After(90 * time.Second):
			// Periodic ping to keep connection alive
			if err := nl.listener.Ping(); err != nil {
				nl.logger.Error("process listener ping failed", "error", err)
			}
		}
	}
}

func (nl *notificationListener) release(instanceID string) {
	nl.mu.Lock()
	waiters := nl.waiters[instanceID]
	delete(nl.waiters, instanceID)
	nl.mu.Unlock()

	if len(waiters) > 0 {
		nl.logger.Debug("process finished notification", log.InstanceIDKey, instanceID)
	}

	for _, ch := range waiters {
		close(ch)
	}
}

// releaseAll wakes every waiter, they check the instance state themselves
func (nl *notificationListener) releaseAll() {
	nl.mu.Lock()
	waiters := nl.waiters
	nl.waiters = make(map[string][]chan struct{})
	nl.mu.Unlock()

	for _, ws := range waiters {
		for _, ch := range ws {
			close(ch)
		}
	}
}
