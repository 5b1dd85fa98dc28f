package catalog

import (
	"strings"
	"sync"

	"pos.GO/agent"
)

// Index holds per-agent lookup maps (by id, by lowercased SKU, by barcode).
// Rebuild replaces an agent's maps in one swap, so the SKU/barcode maps can
// never point at an item missing from the id map.
type Index struct {
	mu     sync.RWMutex
	shards [2]shard
}

type shard struct {
	byID      map[string]Item
	bySKU     map[string]Item
	byBarcode map[string]Item
}

func NewIndex() *Index {
	return &Index{}
}

// Rebuild clears and repopulates one agent's maps from a fresh snapshot.
// Aliases pointing at unknown item ids are dropped.
func (ix *Index) Rebuild(k agent.Key, items []Item, aliases []BarcodeAlias) {
	s := shard{
		byID:      make(map[string]Item, len(items)),
		bySKU:     make(map[string]Item, len(items)),
		byBarcode: make(map[string]Item, len(items)+len(aliases)),
	}
	for _, it := range items {
		s.byID[it.ID] = it
		if sku := strings.ToLower(strings.TrimSpace(it.SKU)); sku != "" {
			s.bySKU[sku] = it
		}
		if bc := strings.TrimSpace(it.Barcode); bc != "" {
			s.byBarcode[bc] = it
		}
	}
	for _, al := range aliases {
		bc := strings.TrimSpace(al.Barcode)
		if bc == "" {
			continue
		}
		if it, ok := s.byID[al.ItemID]; ok {
			s.byBarcode[bc] = it
		}
	}

	ix.mu.Lock()
	ix.shards[k] = s
	ix.mu.Unlock()
}

// ItemByID returns an agent's item by id.
func (ix *Index) ItemByID(k agent.Key, id string) (Item, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	it, ok := ix.shards[k].byID[id]
	return it, ok
}

// Items returns a copy of an agent's current snapshot.
func (ix *Index) Items(k agent.Key) []Item {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Item, 0, len(ix.shards[k].byID))
	for _, it := range ix.shards[k].byID {
		out = append(out, it)
	}
	return out
}

// Count returns the number of items indexed for an agent.
func (ix *Index) Count(k agent.Key) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.shards[k].byID)
}

func (ix *Index) barcodeHit(k agent.Key, code string) (Item, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	it, ok := ix.shards[k].byBarcode[code]
	return it, ok
}

func (ix *Index) skuHit(k agent.Key, sku string) (Item, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	it, ok := ix.shards[k].bySKU[sku]
	return it, ok
}

// scan iterates an agent's items under the read lock.
func (ix *Index) scan(k agent.Key, fn func(Item)) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, it := range ix.shards[k].byID {
		fn(it)
	}
}
