package identity

import "sync"

type cacheKey struct {
	roomId string
	userId string
}

// Cache memoizes nicknames that are known to be persisted. It is local to
// one allocator and never consulted in place of the store when deciding
// whether a participant record has to be written.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]string
}

func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]string)}
}

func (c *Cache) Get(roomId, userId string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name, ok := c.entries[cacheKey{roomId: roomId, userId: userId}]
	return name, ok
}

func (c *Cache) Set(roomId, userId, nickname string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey{roomId: roomId, userId: userId}] = nickname
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[cacheKey]string)
}
