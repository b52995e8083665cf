package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"roleplay-coach-api/internal/domain/service"
)

const defaultCacheEntries = 512

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache 进程内结果缓存，实现 service.ResultCache。
// ttl 为 0 的条目常驻，不参与 LRU 淘汰；其余条目过期或被淘汰后视为未命中。
type MemoryCache struct {
	mu     sync.Mutex
	pinned map[string][]byte
	recent *lru.Cache[string, cacheEntry]
	now    func() time.Time
}

// NewMemoryCache size 为可淘汰条目的上限
func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = defaultCacheEntries
	}
	recent, err := lru.New[string, cacheEntry](size)
	if err != nil {
		panic(err)
	}
	return &MemoryCache{
		pinned: make(map[string][]byte),
		recent: recent,
		now:    time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.pinned[key]; ok {
		return v, nil
	}
	e, ok := c.recent.Get(key)
	if !ok {
		return nil, service.ErrCacheMiss
	}
	if c.now().After(e.expiresAt) {
		c.recent.Remove(key)
		return nil, service.ErrCacheMiss
	}
	return e.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		c.recent.Remove(key)
		c.pinned[key] = data
		return nil
	}
	delete(c.pinned, key)
	c.recent.Add(key, cacheEntry{value: data, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.pinned, k)
		c.recent.Remove(k)
	}
	return nil
}

var _ service.ResultCache = (*MemoryCache)(nil)

// getJSON 读取并解码缓存，未命中或解码失败返回 false
func getJSON[T any](ctx context.Context, cache service.ResultCache, key string) (*T, bool) {
	if cache == nil {
		return nil, false
	}
	data, err := cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return &v, true
}
