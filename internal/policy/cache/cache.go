// Package cache provides a small in-memory cache for expensive
// compilation artifacts: compiled policies and built flow graphs. The
// analysis service keys entries by a digest of the inputs so repeated
// requests against the same policy skip recompilation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

type InMemory[V any] struct {
	mu    sync.RWMutex
	max   int
	items map[string]V
}

func NewInMemory[V any](max int) *InMemory[V] {
	return &InMemory[V]{
		max:   max,
		items: make(map[string]V, max),
	}
}

// GetOrCompute returns the cached value for key, computing and storing
// it on a miss. Concurrent callers for the same cold key compute once.
// Errors are not cached, and a panicking compute is converted into an
// error so waiters are never wedged.
func (c *InMemory[V]) GetOrCompute(key string, fn func() (V, error)) (V, error) {
	c.mu.RLock()
	if v, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.items[key]; ok {
		return v, nil
	}

	v, err := compute(fn)
	if err != nil {
		var zero V
		return zero, err
	}

	if len(c.items) < c.max {
		c.items[key] = v
	}

	return v, nil
}

func compute[V any](fn func() (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache compute panicked: %v", r)
		}
	}()
	return fn()
}

// Key digests the given parts into a cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
