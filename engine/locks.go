package engine

import "sync"

// instanceLocks hands out one mutex per process instance. Entries are dropped when no caller
// holds or waits for them.
type instanceLocks struct {
	mu    sync.Mutex
	locks map[string]*instanceLock
}

type instanceLock struct {
	sync.Mutex
	refs int
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{
		locks: make(map[string]*instanceLock),
	}
}

// Lock locks the given instance and returns the function to unlock it.
func (il *instanceLocks) Lock(instanceID string) func() {
	il.mu.Lock()
	l, ok := il.locks[instanceID]
	if !ok {
		l = &instanceLock{}
		il.locks[instanceID] = l
	}
	l.refs++
	il.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		il.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(il.locks, instanceID)
		}
		il.mu.Unlock()
	}
}

func (il *instanceLocks) len() int {
	il.mu.Lock()
	defer il.mu.Unlock()

	return len(il.locks)
}
