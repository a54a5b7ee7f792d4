package configbundle

import "sync"

// Cache memoizes loaded bundles by directory. Invalidate drops an entry so
// the next Get reloads from disk; swapping the process-wide pointer is the
// caller's job (SetCurrent).
type Cache struct {
	mu      sync.Mutex
	bundles map[string]*Bundle
}

// NewCache creates an empty bundle cache.
func NewCache() *Cache {
	return &Cache{bundles: make(map[string]*Bundle)}
}

// Get returns the cached bundle for dir, loading it on first use.
func (c *Cache) Get(dir string) (*Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.bundles[dir]; ok {
		return b, nil
	}
	b, err := Load(dir)
	if err != nil {
		return nil, err
	}
	c.bundles[dir] = b
	return b, nil
}

// Invalidate drops the cached bundle for dir.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bundles, dir)
}

// Reload loads dir fresh, replaces the cache entry and returns the bundle.
func (c *Cache) Reload(dir string) (*Bundle, error) {
	b, err := Load(dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.bundles[dir] = b
	c.mu.Unlock()
	return b, nil
}
