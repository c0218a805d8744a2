// Package cache is the read-side cache memory consumers go through. The sync
// channel invalidates it; subscribers are told to refetch.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"

	"github.com/toukan/toukan/internal/client/models"
)

// Invalidation tells subscribers what went stale.
type Invalidation struct {
	List     bool
	MemoryID string
}

// Cache stores memory list pages and memory details. Keys embed a version:
// a list generation shared by every page and a per-id detail version.
// Invalidation bumps the version, so a fetch that started before it stores
// under a key nobody reads any more.
type Cache struct {
	store *ristretto.Cache
	gen   atomic.Uint64

	vmu      sync.Mutex
	versions map[string]uint64

	mu   sync.Mutex
	subs map[chan Invalidation]struct{}
}

func New() (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10_000,
		MaxCost:            1_000, // in entries
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{
		store:    store,
		versions: make(map[string]uint64),
		subs:     make(map[chan Invalidation]struct{}),
	}, nil
}

func (c *Cache) Close() {
	c.store.Close()
}

func listKey(gen uint64, p models.ListParams) string {
	return fmt.Sprintf("memories:%d:%d:%d:%s:%s", gen, p.Page, p.PageSize, p.Search, p.Status)
}

func memoryKey(id string, version uint64) string {
	return fmt.Sprintf("memory:%s:%d", id, version)
}

// ListVersion is read before fetching a page and handed back to PutList.
func (c *Cache) ListVersion() uint64 {
	return c.gen.Load()
}

func (c *Cache) List(p models.ListParams) (*models.MemoryList, bool) {
	v, ok := c.store.Get(listKey(c.gen.Load(), p))
	if !ok {
		return nil, false
	}
	l, ok := v.(*models.MemoryList)
	return l, ok
}

// PutList stores a page fetched at version. A page fetched before the last
// InvalidateList is never served.
func (c *Cache) PutList(version uint64, p models.ListParams, l *models.MemoryList) {
	c.store.Set(listKey(version, p), l, 1)
	c.store.Wait()
}

// MemoryVersion is read before fetching a memory and handed back to
// PutMemory.
func (c *Cache) MemoryVersion(id string) uint64 {
	c.vmu.Lock()
	defer c.vmu.Unlock()
	return c.versions[id]
}

func (c *Cache) Memory(id string) (*models.Memory, bool) {
	v, ok := c.store.Get(memoryKey(id, c.MemoryVersion(id)))
	if !ok {
		return nil, false
	}
	m, ok := v.(*models.Memory)
	return m, ok
}

func (c *Cache) PutMemory(version uint64, m *models.Memory) {
	c.store.Set(memoryKey(m.ID, version), m, 1)
	c.store.Wait()
}

// InvalidateList drops every cached list page.
func (c *Cache) InvalidateList() {
	c.gen.Add(1)
	c.notify(Invalidation{List: true})
}

// InvalidateMemory drops one memory's detail entry.
func (c *Cache) InvalidateMemory(id string) {
	c.vmu.Lock()
	old := c.versions[id]
	c.versions[id] = old + 1
	c.vmu.Unlock()

	c.store.Del(memoryKey(id, old))
	c.notify(Invalidation{MemoryID: id})
}

// Subscribe returns a channel of invalidations and a func that closes it.
// A subscriber that falls behind misses notifications rather than blocking
// the invalidating side.
func (c *Cache) Subscribe() (<-chan Invalidation, func()) {
	ch := make(chan Invalidation, 16)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Cache) notify(inv Invalidation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- inv:
		default:
		}
	}
}
