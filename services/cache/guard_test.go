package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// memoryCache implements CacheService in memory for testing
type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, ErrMiss
}

func (m *memoryCache) Set(key string, value []byte, expiration time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func TestGuard(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := NewGuard(newMemoryCache(), "search_blocked", 5*time.Minute)
	g.now = func() time.Time { return now }

	blocked, _ := g.Blocked()
	assert.False(t, blocked)

	assert.NoError(t, g.Block(0))
	blocked, remaining := g.Blocked()
	assert.True(t, blocked)
	assert.Equal(t, 5*time.Minute, remaining)

	// Retry-After overrides the configured block time
	assert.NoError(t, g.Block(30*time.Second))
	_, remaining = g.Blocked()
	assert.Equal(t, 30*time.Second, remaining)

	// once the deadline passed the guard opens even if the key lingers
	now = now.Add(time.Minute)
	blocked, _ = g.Blocked()
	assert.False(t, blocked)
}

func TestGuardWithoutCache(t *testing.T) {
	g := NewGuard(nil, "search_blocked", time.Minute)
	assert.NoError(t, g.Block(0))
	blocked, _ := g.Blocked()
	assert.False(t, blocked)

	var nilGuard *Guard
	blocked, _ = nilGuard.Blocked()
	assert.False(t, blocked)
}
