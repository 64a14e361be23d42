// Package cache stores rendered responses under render key
package cache

import (
	"context"

	"github.com/aldor007/easel/pkg/config"
	"github.com/aldor007/easel/pkg/response"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when render key isn't in cache
var ErrNotFound = errors.New("not found")

type ResponseCache interface {
	Set(ctx context.Context, key string, res *response.Response) error
	Get(ctx context.Context, key string) (*response.Response, error)
	Delete(ctx context.Context, key string) error
}

func Create(cacheCfg config.CacheCfg) ResponseCache {
	switch cacheCfg.Type {
	case "redis":
		return NewRedis(cacheCfg.Address, cacheCfg.ClientConfig)
	default:
		return NewMemoryCache(cacheCfg.CacheSize)
	}
}
