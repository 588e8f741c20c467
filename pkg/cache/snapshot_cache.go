package cache

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"stake-guard/internal/guard"
)

const numShards = 16

// ShardedSnapshotCache memoizes exposure snapshots keyed by ledger version
// and the candidate's group ids. Purely a performance optimization: the
// version component makes stale reads impossible, so hits and misses are
// observably identical.
type ShardedSnapshotCache struct {
	shards [numShards]*snapshotShard
}

type snapshotShard struct {
	mu    sync.RWMutex
	items map[string]snapshotEntry
}

type snapshotEntry struct {
	snap      guard.ExposureSnapshot
	updatedAt time.Time
}

// NewShardedSnapshotCache creates a new sharded cache.
func NewShardedSnapshotCache() *ShardedSnapshotCache {
	c := &ShardedSnapshotCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &snapshotShard{
			items: make(map[string]snapshotEntry),
		}
	}
	return c
}

// Key builds the cache key for one aggregation.
func Key(version uint64, eventID, teamID string) string {
	return fmt.Sprintf("%d|%s|%s", version, eventID, teamID)
}

// getShard returns the shard for the given key.
func (c *ShardedSnapshotCache) getShard(key string) *snapshotShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a snapshot.
func (c *ShardedSnapshotCache) Set(key string, snap guard.ExposureSnapshot) {
	shard := c.getShard(key)
	shard.mu.Lock()
	shard.items[key] = snapshotEntry{
		snap:      snap,
		updatedAt: time.Now(),
	}
	shard.mu.Unlock()
}

// Get retrieves a snapshot.
func (c *ShardedSnapshotCache) Get(key string) (guard.ExposureSnapshot, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, ok := shard.items[key]
	shard.mu.RUnlock()
	return entry.snap, ok
}

// Len returns total items across all shards.
func (c *ShardedSnapshotCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// EvictVersionsBelow drops every entry cached under a ledger version older
// than version. Once the ledger moves on, those keys are unreachable; callers
// evict them on each append so a long-running process never accumulates dead
// snapshots.
func (c *ShardedSnapshotCache) EvictVersionsBelow(version uint64) int {
	removed := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key := range shard.items {
			if keyVersion(key) < version {
				delete(shard.items, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// keyVersion parses the version prefix of a cache key. Malformed keys read
// as version 0 and fall to eviction.
func keyVersion(key string) uint64 {
	i := strings.IndexByte(key, '|')
	if i < 0 {
		return 0
	}
	v, err := strconv.ParseUint(key[:i], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Cleanup removes entries older than maxAge, as backstop hygiene for keys at
// the current version that were never superseded.
func (c *ShardedSnapshotCache) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-maxAge)

	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, entry := range shard.items {
			if entry.updatedAt.Before(cutoff) {
				delete(shard.items, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
