package provider

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CacheKey identifies a cached NodeProvider. Config is the canonical
// serialization of the provider config, so equal keys mean equal configs.
type CacheKey struct {
	Config      string
	ClusterName string
}

// CacheKeyOf returns the key of cfg for clusterName. It fails with
// ErrInvalidConfig when cfg cannot be serialized.
func CacheKeyOf(cfg Config, clusterName string) (CacheKey, error) {
	canonical, err := cfg.Canonical()
	if err != nil {
		return CacheKey{}, err
	}
	return CacheKey{Config: canonical, ClusterName: clusterName}, nil
}

// Cache holds at most one NodeProvider per key.
//
// The mutex only guards the map. Constructions run outside of it and are
// de-duplicated per key, so concurrent misses on one key construct a single
// instance which every caller receives. Clear starts a new generation: a
// construction begun before it still returns its instance to its callers
// but does not populate the new map.
type Cache struct {
	mu         sync.Mutex
	instances  map[CacheKey]NodeProvider
	generation uint64

	inflight singleflight.Group
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{instances: make(map[CacheKey]NodeProvider)}
}

// Get returns the instance cached under key, if any.
func (c *Cache) Get(key CacheKey) (NodeProvider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	instance, ok := c.instances[key]
	return instance, ok
}

type cacheResult struct {
	instance NodeProvider
	cached   bool
}

// GetOrCreate returns the instance cached under key, calling create on a
// miss. cached reports whether the instance was already in the cache. A
// failed create leaves the cache untouched.
func (c *Cache) GetOrCreate(key CacheKey, create func() (NodeProvider, error)) (instance NodeProvider, cached bool, err error) {
	c.mu.Lock()
	if instance, ok := c.instances[key]; ok {
		c.mu.Unlock()
		return instance, true, nil
	}
	generation := c.generation
	c.mu.Unlock()

	flight := fmt.Sprintf("%d\x00%s\x00%s", generation, key.ClusterName, key.Config)
	v, err, _ := c.inflight.Do(flight, func() (any, error) {
		// A previous flight may have stored the instance since our lookup
		if instance, ok := c.lookup(key, generation); ok {
			return cacheResult{instance, true}, nil
		}

		instance, err := create()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation == generation {
			c.instances[key] = instance
		}
		return cacheResult{instance, false}, nil
	})
	if err != nil {
		return nil, false, err
	}

	result := v.(cacheResult)
	return result.instance, result.cached, nil
}

func (c *Cache) lookup(key CacheKey, generation uint64) (NodeProvider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return nil, false
	}
	instance, ok := c.instances[key]
	return instance, ok
}

// Clear drops every cached instance at once.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances = make(map[CacheKey]NodeProvider)
	c.generation++
}

// Len returns the number of cached instances.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}
