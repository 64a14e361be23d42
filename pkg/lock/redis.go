package lock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/aldor007/easel/pkg/response"
	"github.com/bsm/redislock"
	goRedis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func parseAddress(addrs []string) map[string]string {
	mp := make(map[string]string, len(addrs))

	for _, addr := range addrs {
		parts := strings.Split(addr, ":")
		if len(parts) < 2 {
			mp[parts[0]] = parts[0] + ":6379"
			continue
		}
		mp[parts[0]] = parts[0] + ":" + parts[1]
	}

	return mp
}

type rediser interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goRedis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goRedis.Cmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *goRedis.Cmd
	ScriptExists(ctx context.Context, scripts ...string) *goRedis.BoolSliceCmd
	ScriptLoad(ctx context.Context, script string) *goRedis.StringCmd
	Exists(ctx context.Context, keys ...string) *goRedis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *goRedis.PubSub
	Publish(ctx context.Context, channel string, message interface{}) *goRedis.IntCmd
}

type internalLockRedis struct {
	lock   *redislock.Lock
	pubsub *goRedis.PubSub
}

// RedisLock collapses renders across many easel instances. Leader holds redis lock,
// other instances wait for release message on pub/sub channel named as the key
type RedisLock struct {
	client      *redislock.Client
	memoryLock  *MemoryLock
	locks       map[string]internalLockRedis
	lock        sync.Mutex
	LockTimeout int
	redisClient rediser
}

// NewRedisLock create connection to redis and update it config from clientConfig map
func NewRedisLock(redisAddress []string, clientConfig map[string]string) *RedisLock {
	ring := goRedis.NewRing(&goRedis.RingOptions{
		Addrs: parseAddress(redisAddress),
	})

	for key, value := range clientConfig {
		if err := ring.ConfigSet(context.Background(), key, value).Err(); err != nil {
			monitoring.Log().Warn("RedisLock unable to set config", zap.String("key", key), zap.Error(err))
		}
	}

	return newRedisLock(ring)
}

func newRedisLock(client rediser) *RedisLock {
	return &RedisLock{
		client:      redislock.New(client),
		memoryLock:  NewMemoryLock(),
		locks:       make(map[string]internalLockRedis),
		LockTimeout: 60,
		redisClient: client,
	}
}

func lockKey(key string) string {
	return "easel-lock:" + key
}

// NotifyAndRelease release redis lock, notify other instances and local waiting goroutines
func (m *RedisLock) NotifyAndRelease(ctx context.Context, key string, res *response.Response) {
	m.releaseRedis(ctx, key)
	m.memoryLock.NotifyAndRelease(ctx, key, res)
}

// Lock obtains redis lock for key. When other instance holds it, returned result waits for its release
func (m *RedisLock) Lock(ctx context.Context, key string) (LockResult, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.locks[key]; ok {
		return m.memoryLock.Lock(ctx, key)
	}

	l, err := m.client.Obtain(ctx, lockKey(key), time.Duration(m.LockTimeout)*time.Second, nil)
	if err == nil {
		m.locks[key] = internalLockRedis{lock: l}
		return m.memoryLock.Lock(ctx, key)
	}

	if err != redislock.ErrNotObtained {
		monitoring.Log().Error("RedisLock obtain error", zap.String("key", key), zap.Error(err))
		return LockResult{Error: err}, false
	}

	result := m.memoryLock.forceLockAndAddWatch(key)
	pubsub := m.redisClient.Subscribe(ctx, lockKey(key))
	m.locks[key] = internalLockRedis{pubsub: pubsub}
	// lock could be released before subscription
	if _, err := pubsub.Receive(ctx); err == nil {
		if n, _ := m.redisClient.Exists(ctx, lockKey(key)).Result(); n == 0 {
			pubsub.Close()
			delete(m.locks, key)
			m.memoryLock.Release(ctx, key)
			return result, false
		}
	}

	ch := pubsub.Channel()
	go func() {
		select {
		case <-ch:
		case <-ctx.Done():
		case <-time.After(time.Duration(m.LockTimeout) * time.Second):
		}

		m.lock.Lock()
		if current, ok := m.locks[key]; ok && current.pubsub == pubsub {
			delete(m.locks, key)
		}
		m.lock.Unlock()

		if err := pubsub.Close(); err != nil {
			monitoring.Log().Warn("RedisLock pubsub close error", zap.String("key", key), zap.Error(err))
		}
		m.memoryLock.Release(ctx, key)
	}()

	return result, false
}

// Release remove lock without passing result to waiting goroutines
func (m *RedisLock) Release(ctx context.Context, key string) {
	m.releaseRedis(ctx, key)
	m.memoryLock.Release(ctx, key)
}

func (m *RedisLock) releaseRedis(ctx context.Context, key string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	l, ok := m.locks[key]
	if !ok || l.lock == nil {
		return
	}

	delete(m.locks, key)
	if err := l.lock.Release(ctx); err != nil {
		monitoring.Log().Error("RedisLock release error", zap.String("key", key), zap.Error(err))
	}

	m.redisClient.Publish(ctx, lockKey(key), 1)
}
