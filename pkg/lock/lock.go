// Package lock collapses concurrent renders of the same render key
package lock

import (
	"context"

	"github.com/aldor007/easel/pkg/config"
	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/aldor007/easel/pkg/response"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrLeaderGone is returned by Wait when holder of the lock released it without sharing response
var ErrLeaderGone = errors.New("lock released without response")

// Lock lets one caller render given render key while others wait for its response
type Lock interface {
	// Lock acquires render key. When other render holds it, acquired is false and observer waits for its result
	Lock(ctx context.Context, key string) (observer LockResult, acquired bool)
	// Release drops render key, waiters are woken without response
	Release(ctx context.Context, key string)
	// NotifyAndRelease drops render key and hands copy of res to every waiter
	NotifyAndRelease(ctx context.Context, key string, res *response.Response)
}

// LockResult is waiting side of lock
type LockResult struct {
	ResponseChan chan *response.Response // receives response of holder, closed without value when holder gave up
	Cancel       chan bool               // waiter reports that it stopped waiting
	Error        error                   // lock backend failure, caller renders without collapsing
}

// Wait blocks until holder of the lock shares response, gives up or ctx is done
func (l LockResult) Wait(ctx context.Context) (*response.Response, error) {
	if l.Error != nil {
		return nil, l.Error
	}

	select {
	case <-ctx.Done():
		select {
		case l.Cancel <- true:
		default:
		}
		return nil, ctx.Err()
	case res, ok := <-l.ResponseChan:
		if !ok || res == nil {
			return nil, ErrLeaderGone
		}
		return res, nil
	}
}

// waiters is queue of renders waiting for one render key
type waiters struct {
	key   string
	queue []LockResult
}

func newWaiters(key string) *waiters {
	return &waiters{key: key, queue: make([]LockResult, 0, 5)}
}

// add registers next waiter
func (w *waiters) add() LockResult {
	l := LockResult{
		ResponseChan: make(chan *response.Response, 1),
		Cancel:       make(chan bool, 1),
	}
	w.queue = append(w.queue, l)
	return l
}

// NewNopLock create lock that do nothing
func NewNopLock() *NopLock {
	return &NopLock{}
}

// NopLock lets every render run, used for one-shot renders
type NopLock struct {
}

// Lock always return that lock was acquired
func (l *NopLock) Lock(_ context.Context, _ string) (LockResult, bool) {
	return LockResult{}, true
}

// Release do nothing
func (l *NopLock) Release(_ context.Context, _ string) {

}

// NotifyAndRelease do nothing
func (l *NopLock) NotifyAndRelease(_ context.Context, _ string, _ *response.Response) {

}

// Create returns lock for server. Without lock section renders are collapsed only within instance
func Create(serverConfig config.Server) Lock {
	lockCfg := serverConfig.Lock
	if lockCfg == nil || lockCfg.Type != "redis" {
		monitoring.Log().Info("Creating memory lock")
		return NewMemoryLock()
	}

	monitoring.Log().Info("Creating redis lock", zap.Strings("addr", lockCfg.Address), zap.Int("lockTimeout", serverConfig.LockTimeout))
	r := NewRedisLock(lockCfg.Address, lockCfg.ClientConfig)
	if serverConfig.LockTimeout > 0 {
		r.LockTimeout = serverConfig.LockTimeout
	}
	return r
}
