package identity

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	c := NewCache()

	_, ok := c.Get("r1", "u1")
	assert.False(t, ok, "expected empty cache")

	c.Set("r1", "u1", "Red Fox")
	name, ok := c.Get("r1", "u1")
	assert.True(t, ok)
	assert.Equal(t, "Red Fox", name)

	_, ok = c.Get("r2", "u1")
	assert.False(t, ok, "expected entries to be scoped by room")

	// keys must not collide when ids contain the separator of a joined key
	c.Set("a-b", "c", "first")
	c.Set("a", "b-c", "second")
	first, _ := c.Get("a-b", "c")
	second, _ := c.Get("a", "b-c")
	assert.Equal(t, "first", first)
	assert.Equal(t, "second", second)
	assert.Equal(t, 3, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
	_, ok = c.Get("r1", "u1")
	assert.False(t, ok)
}

func TestCacheInstancesAreIndependent(t *testing.T) {
	a, b := NewCache(), NewCache()
	a.Set("r1", "u1", "Red Fox")

	_, ok := b.Get("r1", "u1")
	assert.False(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			c.Set("r1", user, "nick")
			c.Get("r1", user)
			c.Len()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
}
