package cache

import (
	"context"
	"time"
	"unsafe"

	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/aldor007/easel/pkg/response"
	"github.com/karlseguin/ccache/v3"
	"go.uber.org/zap"
)

type (
	// MemoryCache uses memory for cache purpose
	MemoryCache struct {
		cache *ccache.Cache[responseSizeProvider] // cache for rendered images
	}

	// responseSizeProvider adapts response.Response to how ccache size computation requirements.
	responseSizeProvider struct {
		*response.Response
		cachedSize int64
	}
)

// Size returns the pre-calculated size of the cached response
func (r responseSizeProvider) Size() int64 {
	return r.cachedSize
}

func calculateResponseSize(res *response.Response) int64 {
	headerSize := int64(unsafe.Sizeof(res.Headers))
	for k, v := range res.Headers {
		headerSize += int64(len(k))
		for i := 0; i < len(v); i++ {
			headerSize += int64(len(v[i]))
		}
	}

	// ccache entry overhead is about 350 bytes
	return res.ContentLength() + headerSize + 350 + int64(unsafe.Sizeof(*res))
}

// NewMemoryCache returns instance of memory cache limited to maxSize bytes
func NewMemoryCache(maxSize int64) *MemoryCache {
	return &MemoryCache{ccache.New[responseSizeProvider](ccache.Configure[responseSizeProvider]().MaxSize(maxSize).ItemsToPrune(50))}
}

// Set put response to cache
func (c *MemoryCache) Set(_ context.Context, key string, res *response.Response) error {
	cachedResp := res.Copy()
	monitoring.Report().Inc("cache_ratio;status:set")
	provider := responseSizeProvider{
		Response:   cachedResp,
		cachedSize: calculateResponseSize(cachedResp),
	}
	c.cache.Set(key, provider, time.Second*time.Duration(res.GetTTL()))
	return nil
}

// Get returns instance from cache or ErrNotFound
func (c *MemoryCache) Get(_ context.Context, key string) (*response.Response, error) {
	item := c.cache.Get(key)
	if item == nil || item.Expired() {
		monitoring.Report().Inc("cache_ratio;status:miss")
		return nil, ErrNotFound
	}

	monitoring.Log().Debug("MemoryCache get", zap.String("cache", "hit"), zap.String("key", key))
	monitoring.Report().Inc("cache_ratio;status:hit")
	resCp := item.Value().Copy()
	resCp.SetCacheHit()
	return resCp, nil
}

// Delete remove given response from cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}
