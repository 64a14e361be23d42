package cache

import (
	"context"
	"strings"
	"time"

	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/aldor007/easel/pkg/response"
	redisCache "github.com/go-redis/cache/v8"
	goRedis "github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack"
	"go.uber.org/zap"
)

const keyPrefix = "easel-v1:"

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

// RedisCache store response in redis
type RedisCache struct {
	client *redisCache.Cache
}

// NewRedis create connection to redis and update it config from clientConfig map
func NewRedis(redisAddress []string, clientConfig map[string]string) *RedisCache {
	ring := goRedis.NewRing(&goRedis.RingOptions{
		Addrs: parseAddress(redisAddress),
	})

	for key, value := range clientConfig {
		if err := ring.ConfigSet(context.Background(), key, value).Err(); err != nil {
			monitoring.Log().Warn("RedisCache unable to set config", zap.String("key", key), zap.Error(err))
		}
	}

	return newRedisCache(ring)
}

func newRedisCache(client goRedis.Cmdable) *RedisCache {
	return &RedisCache{redisCache.New(&redisCache.Options{
		Redis:      client,
		LocalCache: redisCache.NewTinyLFU(10, time.Minute),
	})}
}

func (c *RedisCache) getKey(key string) string {
	return keyPrefix + key
}

// Set put response into cache
func (c *RedisCache) Set(ctx context.Context, key string, res *response.Response) error {
	monitoring.Report().Inc("cache_ratio;status:set")
	v, err := msgpack.Marshal(res)
	if err != nil {
		return err
	}

	item := redisCache.Item{
		Key:   c.getKey(key),
		Value: v,
		TTL:   time.Second * time.Duration(res.GetTTL()),
	}
	return c.client.Set(ctx, &item)
}

// Get returns response from cache or ErrNotFound
func (c *RedisCache) Get(ctx context.Context, key string) (*response.Response, error) {
	var buf []byte
	if err := c.client.Get(ctx, c.getKey(key), &buf); err != nil {
		monitoring.Report().Inc("cache_ratio;status:miss")
		if err == redisCache.ErrCacheMiss {
			return nil, ErrNotFound
		}
		return nil, err
	}

	res := response.Response{}
	if err := msgpack.Unmarshal(buf, &res); err != nil {
		monitoring.Report().Inc("cache_ratio;status:miss")
		return nil, err
	}

	monitoring.Report().Inc("cache_ratio;status:hit")
	if res.Headers == nil {
		res.Headers = make(map[string][]string)
	}
	res.SetCacheHit()
	return &res, nil
}

// Delete remove response from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, c.getKey(key))
}
