package emailstore

import "sync"

// Cache is a read-through cache over a Store. Callers that mutate the
// store must call Invalidate; the generation counter lets them detect
// stale snapshots they are still holding.
type Cache struct {
	mu    sync.Mutex
	store *Store
	gen   uint64
	data  map[string][]Email
	valid bool
}

func NewCache(store *Store) *Cache {
	return &Cache{store: store}
}

// All returns the cached histories, loading from disk on first use or
// after an invalidation, together with the generation they belong to.
func (c *Cache) All() (map[string][]Email, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		data, err := c.store.LoadAll()
		if err != nil {
			return nil, c.gen, err
		}
		c.data = data
		c.valid = true
	}
	return c.data, c.gen, nil
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.data = nil
	c.gen++
}

func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}
