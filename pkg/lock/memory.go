package lock

import (
	"context"
	"sync"

	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/aldor007/easel/pkg/response"
	"go.uber.org/zap"
)

// MemoryLock is in memory lock for single easel instance
type MemoryLock struct {
	lock     sync.Mutex
	internal map[string]*waiters
}

// NewMemoryLock create a new empty instance of MemoryLock
func NewMemoryLock() *MemoryLock {
	m := &MemoryLock{}
	m.internal = make(map[string]*waiters)
	return m
}

// NotifyAndRelease notify all waiting goroutines about response, each of them gets own copy.
// nil response closes waiting channels
func (m *MemoryLock) NotifyAndRelease(_ context.Context, key string, res *response.Response) {
	m.lock.Lock()
	result, ok := m.internal[key]
	if !ok {
		m.lock.Unlock()
		return
	}

	delete(m.internal, key)
	m.lock.Unlock()

	if len(result.queue) == 0 {
		return
	}

	monitoring.Log().Debug("Notify queue", zap.String("key", key), zap.Int("len", len(result.queue)))
	monitoring.Report().Counter("collapsed_count", float64(len(result.queue)))

	for _, q := range result.queue {
		select {
		case <-q.Cancel:
			close(q.ResponseChan)
			continue
		default:
		}

		if res != nil {
			q.ResponseChan <- res.Copy()
		}
		close(q.ResponseChan)
	}
}

// Lock create unique entry in memory map
func (m *MemoryLock) Lock(_ context.Context, key string) (LockResult, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	result, ok := m.internal[key]
	if ok {
		return result.add(), false
	}

	m.internal[key] = newWaiters(key)
	return LockResult{}, true
}

// forceLockAndAddWatch creates entry when missing and returns watcher for it
func (m *MemoryLock) forceLockAndAddWatch(key string) LockResult {
	m.lock.Lock()
	defer m.lock.Unlock()
	result, ok := m.internal[key]
	if !ok {
		result = newWaiters(key)
		m.internal[key] = result
	}

	return result.add()
}

// Release remove entry from memory map and close channels of waiting goroutines
func (m *MemoryLock) Release(_ context.Context, key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	res, ok := m.internal[key]
	if !ok {
		return
	}

	for _, q := range res.queue {
		close(q.ResponseChan)
	}
	delete(m.internal, key)
}
