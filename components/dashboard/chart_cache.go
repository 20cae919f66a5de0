package dashboard

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// DefaultSnapshotTTL bounds how long an unchanged snapshot is reused.
const DefaultSnapshotTTL = 5 * time.Minute

// RenderCache memoizes chart snapshots per image widget.
type RenderCache interface {
	Snapshot(widgetID string, chart ChartData, render func(ChartData) (string, error)) (string, error)
	Retain(widgetIDs []string) int
}

// SnapshotCache keeps the last rendered snapshot of each image widget. An
// entry is reused while the widget's chart data hashes the same and the TTL
// has not elapsed. A zero TTL never expires entries.
type SnapshotCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]snapshotEntry
	hits    uint64
	misses  uint64
}

type snapshotEntry struct {
	hash     string
	html     string
	rendered time.Time
}

// CacheStats reports snapshot reuse.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// NewSnapshotCache builds a cache whose entries live for ttl.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]snapshotEntry),
	}
}

// Snapshot returns the cached HTML for widgetID when chart is unchanged,
// otherwise renders it and replaces the widget's entry. Render errors keep
// the previous entry.
func (c *SnapshotCache) Snapshot(widgetID string, chart ChartData, render func(ChartData) (string, error)) (string, error) {
	hash := chartHash(chart)
	c.mu.Lock()
	entry, ok := c.entries[widgetID]
	if ok && entry.hash == hash && !c.expired(entry) {
		c.hits++
		c.mu.Unlock()
		return entry.html, nil
	}
	c.misses++
	c.mu.Unlock()

	html, err := render(chart)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.entries[widgetID] = snapshotEntry{hash: hash, html: html, rendered: c.now()}
	c.mu.Unlock()
	return html, nil
}

// Retain drops entries for widgets not in widgetIDs and reports how many
// were removed.
func (c *SnapshotCache) Retain(widgetIDs []string) int {
	keep := make(map[string]struct{}, len(widgetIDs))
	for _, id := range widgetIDs {
		keep[id] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id := range c.entries {
		if _, ok := keep[id]; !ok {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Stats returns the entry count and hit counters.
func (c *SnapshotCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

func (c *SnapshotCache) expired(entry snapshotEntry) bool {
	return c.ttl > 0 && c.now().Sub(entry.rendered) >= c.ttl
}

// chartHash fingerprints what a snapshot shows. The worksheet binding is
// excluded so rebinding to identical data reuses the snapshot.
func chartHash(chart ChartData) string {
	chart.WorksheetName = ""
	chart.AssociatedRange = ""
	chart.ChartIndex = nil
	b, err := json.Marshal(chart)
	if err != nil {
		return "invalid"
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
