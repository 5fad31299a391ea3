package graphql

import (
	"sync"

	"github.com/graphql-go/graphql"
	"golang.org/x/sync/singleflight"

	"github.com/wize-platform/wizegraph/internal/metadata"
)

// TypeKind names one cached type graph per schema key.
type TypeKind string

const (
	KindObject     TypeKind = "object"
	KindInput      TypeKind = "input"
	KindFilter     TypeKind = "filter"
	KindSort       TypeKind = "sort"
	KindListResult TypeKind = "listResult"
)

// TypeCache memoizes generated type graphs per (schema key, kind). The
// underlying schema library deduplicates types by identity, not by name, so
// repeated generation must return the identical instance. First builds for a
// key are single-flighted: concurrent callers await the same in-flight build
// instead of re-running the generator.
type TypeCache struct {
	mu    sync.RWMutex
	types map[string]graphql.Type
	group singleflight.Group
}

// NewTypeCache creates an empty cache.
func NewTypeCache() *TypeCache {
	return &TypeCache{types: make(map[string]graphql.Type)}
}

func cacheKey(key metadata.SchemaKey, kind TypeKind) string {
	return key.String() + "#" + string(kind)
}

// GetOrCreate returns the cached type for (key, kind), building it at most
// once for the cache's lifetime.
func (c *TypeCache) GetOrCreate(key metadata.SchemaKey, kind TypeKind, build func() (graphql.Type, error)) (graphql.Type, error) {
	ck := cacheKey(key, kind)

	c.mu.RLock()
	cached, ok := c.types[ck]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	result, err, _ := c.group.Do(ck, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.types[ck]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		built, err := build()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.types[ck] = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(graphql.Type), nil
}

// Clear removes every kind cached for key; used when metadata is replaced.
func (c *TypeCache) Clear(key metadata.SchemaKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, kind := range []TypeKind{KindObject, KindInput, KindFilter, KindSort, KindListResult} {
		delete(c.types, cacheKey(key, kind))
	}
}
