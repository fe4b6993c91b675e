package profilestore

import "sync"

// Cache is a read-through cache over a Store with explicit invalidation
// and a generation counter, mirroring the email store's cache.
type Cache struct {
	mu    sync.Mutex
	store *Store
	gen   uint64
	data  map[string]Profile
	valid bool
}

func NewCache(store *Store) *Cache {
	return &Cache{store: store}
}

func (c *Cache) All() (map[string]Profile, uint64, error) {
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
