package chain

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Mindburn-Labs/igcatalog/pkg/catalog"
	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
)

type cacheKey struct {
	kind fhir.ResourceType
	key  string
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Chain consults its sources most-specific-last: the last source that knows
// a key wins. Lookups are cached without eviction, including misses.
type Chain struct {
	sources []Source

	mu    sync.RWMutex
	cache map[cacheKey]*fhir.Resource

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a chain over sources in increasing order of precedence.
func New(sources ...Source) *Chain {
	return &Chain{
		sources: append([]Source(nil), sources...),
		cache:   make(map[cacheKey]*fhir.Resource),
	}
}

// Build assembles base, then terminology, then the catalog, so IG content
// overrides everything before it. A nil base is omitted.
func Build(cat *catalog.Catalog, base Source, terminology ...Source) *Chain {
	sources := make([]Source, 0, len(terminology)+2)
	if base != nil {
		sources = append(sources, base)
	}
	sources = append(sources, terminology...)
	sources = append(sources, NewCatalogSource(cat))
	return New(sources...)
}

// Fetch returns the resource of kind registered under key by the most
// specific source that has it.
func (c *Chain) Fetch(ctx context.Context, kind fhir.ResourceType, key string) (*fhir.Resource, bool) {
	ck := cacheKey{kind: kind, key: key}

	c.mu.RLock()
	res, cached := c.cache[ck]
	c.mu.RUnlock()
	if cached {
		c.hits.Add(1)
		return res, res != nil
	}
	c.misses.Add(1)

	for i := len(c.sources) - 1; i >= 0; i-- {
		if found, ok := c.sources[i].Fetch(ctx, kind, key); ok {
			res = found
			break
		}
	}

	c.mu.Lock()
	c.cache[ck] = res
	c.mu.Unlock()
	return res, res != nil
}

// Sources returns the sources in increasing order of precedence.
func (c *Chain) Sources() []Source {
	return append([]Source(nil), c.sources...)
}

// Stats returns cache counters.
func (c *Chain) Stats() Stats {
	c.mu.RLock()
	entries := len(c.cache)
	c.mu.RUnlock()
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: entries}
}

// Holder publishes the process-wide chain. Readers always see a complete
// chain; Swap replaces it atomically.
type Holder struct {
	current atomic.Pointer[Chain]
}

// NewHolder creates a holder publishing c.
func NewHolder(c *Chain) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Load returns the current chain, or nil if none has been published.
func (h *Holder) Load() *Chain {
	return h.current.Load()
}

// Swap publishes c and returns the previous chain.
func (h *Holder) Swap(c *Chain) *Chain {
	return h.current.Swap(c)
}
