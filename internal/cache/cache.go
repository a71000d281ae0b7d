// Package cache keeps per-template diagnostic results between watch-mode
// runs, keyed by content hash. Invalidation is conservative: any change to
// the scanned source set drops every entry, because bare-name ambiguity is a
// property of the whole global table, not of single files.
package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/typja/typja/internal/diag"
)

// Sum hashes one file's content.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Fingerprint hashes an ordered set of path/content pairs into one value.
// Callers must pass the pairs in a stable order.
func Fingerprint(paths []string, contents [][]byte) uint64 {
	h := xxhash.New()
	for i, p := range paths {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(contents[i])
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

type entry struct {
	sum   uint64
	diags diag.List
}

// Cache is safe for concurrent use by the parallel per-template passes.
type Cache struct {
	mu        sync.Mutex
	sourceSum uint64
	entries   map[string]entry
}

func New() *Cache {
	return &Cache{entries: map[string]entry{}}
}

// SetSourceFingerprint records the current global-table fingerprint. A
// changed fingerprint flushes all template entries.
func (c *Cache) SetSourceFingerprint(sum uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sum != c.sourceSum {
		c.sourceSum = sum
		c.entries = map[string]entry{}
	}
}

// Get returns the cached diagnostics for a template whose content hash still
// matches.
func (c *Cache) Get(path string, sum uint64) (diag.List, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.sum != sum {
		return nil, false
	}
	return e.diags, true
}

// Put stores a template's diagnostics under its content hash.
func (c *Cache) Put(path string, sum uint64, diags diag.List) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entry{sum: sum, diags: diags}
}

// Len reports the number of cached templates.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
