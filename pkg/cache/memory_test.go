package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aldor007/easel/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheable(body string) *response.Response {
	res := response.NewString(200, body)
	res.Set("Cache-Control", "max-age=60")
	return res
}

func TestMemoryCache_Set(t *testing.T) {
	i := NewMemoryCache(1 << 20)
	ctx := context.Background()
	res := cacheable("test")

	require.Nil(t, i.Set(ctx, "cacheKey", res))
	resCache, err := i.Get(ctx, "cacheKey")
	require.Nil(t, err)

	assert.Equal(t, resCache.StatusCode, res.StatusCode)
	assert.Equal(t, string(resCache.Body()), "test")
	assert.True(t, resCache.IsFromCache())
	assert.False(t, res.IsFromCache())
}

func TestMemoryCache_Delete(t *testing.T) {
	t.Parallel()

	i := NewMemoryCache(1 << 20)
	ctx := context.Background()

	i.Set(ctx, "cacheKey", cacheable("test"))
	i.Delete(ctx, "cacheKey")
	_, err := i.Get(ctx, "cacheKey")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_GetNotFound(t *testing.T) {
	t.Parallel()

	i := NewMemoryCache(100)

	_, err := i.Get(context.Background(), "notfound")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMemoryCache_Concurrent(t *testing.T) {
	t.Parallel()

	i := NewMemoryCache(1 << 20)
	ctx := context.Background()

	var wg sync.WaitGroup
	for idx := 0; idx < 10; idx++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id)
			i.Set(ctx, key, cacheable("test"))
			_, err := i.Get(ctx, key)
			assert.Nil(t, err)
		}(idx)
	}

	wg.Wait()
}
