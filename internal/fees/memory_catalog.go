package fees

import (
	"context"
	"sort"
	"sync"
)

// MemoryCatalog is an in-memory Catalog for tests and local runs.
type MemoryCatalog struct {
	mu        sync.RWMutex
	items     map[string]CatalogItem
	overrides map[string]Override
}

// NewMemoryCatalog builds an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[string]CatalogItem), overrides: make(map[string]Override)}
}

// PutItem inserts or replaces a catalog item.
func (c *MemoryCatalog) PutItem(item CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item.Status == "" {
		item.Status = StatusActive
	}
	c.items[item.Code] = item
}

// PutOverride inserts or replaces a merchant profile.
func (c *MemoryCatalog) PutOverride(o Override) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o.Status == "" {
		o.Status = StatusActive
	}
	c.overrides[o.MerchantID+"|"+o.Code] = o
}

func (c *MemoryCatalog) ActiveItems(_ context.Context, appliesTo Category) ([]CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []CatalogItem
	for _, item := range c.items {
		if item.AppliesTo == appliesTo && item.Status == StatusActive {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (c *MemoryCatalog) Overrides(_ context.Context, merchantID string, codes []string) (map[string]Override, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Override)
	for _, code := range codes {
		if o, ok := c.overrides[merchantID+"|"+code]; ok && o.Status == StatusActive {
			out[code] = o
		}
	}
	return out, nil
}
