package specialize

import (
	"sync"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
)

// DefaultThreshold is the distinct-tuple count above which a function earns
// a specialization-explosion warning.
const DefaultThreshold = 8

// Specialization is one analyzed variant of a function: the label tuple its
// parameters were resolved under and the full analysis result. Immutable
// once cached.
type Specialization struct {
	Key    string        // graph.SpecKey of (function ID, Labels)
	Name   string        // function name
	Labels []graph.Label // actual parameter labels
	Result *label.Result // analysis under Labels
}

// Cache is the append-only specialization store, keyed by
// (function identity, argument-label tuple). Entries are immutable once
// written; the lock covers only create-or-reuse, never entry contents.
type Cache struct {
	mu        sync.RWMutex
	threshold int
	entries   map[string]*Specialization
	order     []string            // insertion order of keys
	perFunc   map[string][]string // function name -> keys
	warnings  []label.Diagnostic
	warned    map[string]bool
}

// NewCache creates an empty cache. threshold <= 0 selects DefaultThreshold.
func NewCache(threshold int) *Cache {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Cache{
		threshold: threshold,
		entries:   make(map[string]*Specialization),
		perFunc:   make(map[string][]string),
		warned:    make(map[string]bool),
	}
}

// Lookup returns the cached specialization for key, if present.
func (c *Cache) Lookup(key string) (*Specialization, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[key]
	return s, ok
}

// Insert publishes a specialization, or returns the existing entry when a
// concurrent resolution already created one for the same key. The boolean
// reports whether spec itself was stored.
//
// Crossing the distinct-tuple threshold for a function records one W201
// warning against it; retrieve accumulated warnings with Warnings.
func (c *Cache) Insert(spec *Specialization) (*Specialization, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[spec.Key]; ok {
		return existing, false
	}
	c.entries[spec.Key] = spec
	c.order = append(c.order, spec.Key)
	c.perFunc[spec.Name] = append(c.perFunc[spec.Name], spec.Key)

	if n := len(c.perFunc[spec.Name]); n > c.threshold && !c.warned[spec.Name] {
		c.warned[spec.Name] = true
		c.warnings = append(c.warnings, label.NewSpecializationExplosion(spec.Name, n, c.threshold))
	}
	return spec, true
}

// PerFunc returns the specializations of one function in insertion order.
func (c *Cache) PerFunc(name string) []*Specialization {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Specialization, 0, len(c.perFunc[name]))
	for _, key := range c.perFunc[name] {
		out = append(out, c.entries[key])
	}
	return out
}

// All returns every specialization in insertion order.
func (c *Cache) All() []*Specialization {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Specialization, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

// Len returns the number of cached specializations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Warnings returns the explosion warnings accumulated so far.
func (c *Cache) Warnings() []label.Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]label.Diagnostic(nil), c.warnings...)
}
