package archive

import (
	"sort"
	"sync"
)

// Histogram counts staged files by extension. It is safe for concurrent use.
// Keys are case-sensitive: "png" and "PNG" are distinct.
type Histogram struct {
	mu     sync.Mutex
	counts map[string]uint64
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: make(map[string]uint64)}
}

// Add increments key by one.
func (h *Histogram) Add(key string) {
	h.mu.Lock()
	h.counts[key]++
	h.mu.Unlock()
}

// AddFile counts a file by its HistogramKey.
func (h *Histogram) AddFile(name string) {
	h.Add(HistogramKey(name))
}

// Snapshot returns a copy of the current counts.
func (h *Histogram) Snapshot() map[string]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]uint64, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}

// Keys returns the keys in sorted order.
func (h *Histogram) Keys() []string {
	h.mu.Lock()
	keys := make([]string, 0, len(h.counts))
	for k := range h.counts {
		keys = append(keys, k)
	}
	h.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Total returns the sum of all counts.
func (h *Histogram) Total() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total uint64
	for _, v := range h.counts {
		total += v
	}
	return total
}
