package sheetdash

import (
	"sync"
)

// worksheetCache maps worksheet titles to sheet ids for one batcher
type worksheetCache struct {
	mu  sync.RWMutex
	ids map[string]int64
}

func newWorksheetCache() *worksheetCache {
	return &worksheetCache{
		ids: make(map[string]int64),
	}
}

func (c *worksheetCache) get(title string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.ids[title]
	return id, ok
}

func (c *worksheetCache) put(title string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ids[title] = id
}

func (c *worksheetCache) forget(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.ids, title)
}

func (c *worksheetCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.ids)
}
