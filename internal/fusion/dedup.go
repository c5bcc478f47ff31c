package fusion

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"
)

// dedupCache suppresses re-emission of an alert whose title and
// description were already seen within ttl. Keyed on xxh3("title|desc")
// rather than the alert content itself, since the engine never needs to
// recover the original strings from the cache.
type dedupCache struct {
	seen   *xsync.Map[uint64, time.Time]
	ttl    time.Duration
	gcMu   sync.Mutex
	lastGC time.Time
}

func newDedupCache(ttl time.Duration) *dedupCache {
	return &dedupCache{
		seen: xsync.NewMap[uint64, time.Time](),
		ttl:  ttl,
	}
}

func dedupKey(title, description string) uint64 {
	return xxh3.HashString(title + "|" + description)
}

// seenRecently reports whether title/description fired within ttl of now,
// and records this occurrence as the new last-seen time regardless of the
// outcome — a steady stream of the same alert keeps extending its own
// suppression window rather than flapping back on at the TTL boundary.
func (c *dedupCache) seenRecently(title, description string, now time.Time) bool {
	key := dedupKey(title, description)
	duplicate := false
	c.seen.Compute(key, func(last time.Time, loaded bool) (time.Time, xsync.ComputeOp) {
		if loaded && now.Sub(last) < c.ttl {
			duplicate = true
		}
		return now, xsync.UpdateOp
	})
	return duplicate
}

// gcIfDue sweeps entries older than 2×ttl, but only once per 2×ttl window,
// piggybacked on the ingest path rather than run by its own goroutine.
func (c *dedupCache) gcIfDue(now time.Time) {
	interval := 2 * c.ttl
	c.gcMu.Lock()
	due := c.lastGC.IsZero() || now.Sub(c.lastGC) >= interval
	if due {
		c.lastGC = now
	}
	c.gcMu.Unlock()
	if !due {
		return
	}

	var stale []uint64
	c.seen.Range(func(key uint64, last time.Time) bool {
		if now.Sub(last) >= interval {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		c.seen.Delete(key)
	}
}

// size reports the number of entries currently tracked, for tests.
func (c *dedupCache) size() int {
	return c.seen.Size()
}
