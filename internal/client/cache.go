package client

import (
	"strconv"
	"strings"
	"sync"
)

// PostsKey is the cache entry holding feed pages.
const PostsKey = "posts"

// FeedKey is the cache entry holding one feed page. It sits under PostsKey,
// so invalidating PostsKey drops every page.
func FeedKey(page, limit int) string {
	return PostsKey + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(limit)
}

// PostKey is the cache entry holding one post.
func PostKey(id string) string {
	return "post:" + id
}

// Invalidator drops cached query results so the next read refetches them.
type Invalidator interface {
	Invalidate(keys ...string)
}

// QueryCache is a small keyed cache of fetched results.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func NewQueryCache() *QueryCache {
	return &QueryCache{entries: map[string]interface{}{}}
}

func (c *QueryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *QueryCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Invalidate drops each key and every entry nested under it ("posts" also
// drops "posts:1:10").
func (c *QueryCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		prefix := k + ":"
		for existing := range c.entries {
			if strings.HasPrefix(existing, prefix) {
				delete(c.entries, existing)
			}
		}
	}
}
