// Package metacache implements the two-tier metadata cache: an
// in-memory LRU front over a durable buntdb-backed store, keyed by
// virtual path and serialized with CBOR. Entries and directory
// listings carry independent, optional TTLs.
package metacache

import (
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/groupcache/lru"
	"github.com/tidwall/buntdb"

	"github.com/cfk-cache/cfk/pkg/cferrors"
	"github.com/cfk-cache/cfk/pkg/logging"
	"github.com/cfk-cache/cfk/pkg/vpath"
)

// Expiry is tracked entirely in ExpiresAt and checked explicitly by
// GetEntry/GetDirectory/PruneExpired, rather than via buntdb's own
// SetOptions TTL, so that PruneExpired can enumerate and report exactly
// which keys it reclaimed.

// CachedEntry wraps a single metadata record with its expiry.
type CachedEntry struct {
	Entry     vpath.Entry
	ExpiresAt *time.Time
}

func (c CachedEntry) expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// CachedDirectory wraps a directory listing with its expiry. It stores
// only the child paths; each child's own metadata lives independently
// under its entry key, so GetDirectory re-fetches every child through
// GetEntry rather than denormalizing a copy here.
type CachedDirectory struct {
	Children  []string
	ExpiresAt *time.Time
}

func (c CachedDirectory) expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Stats reports the memory- and durable-tier hit/miss counters.
type Stats struct {
	MemoryHits    uint64
	MemoryMisses  uint64
	DurableHits   uint64
	DurableMisses uint64
}

// Cache is the two-tier metadata cache. It's safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	memory     *lru.Cache
	memoryCap  int
	db         *buntdb.DB
	defaultTTL time.Duration
	logger     *logging.Logger

	memoryHits, memoryMisses   uint64
	durableHits, durableMisses uint64
}

// entryKeyPrefix and dirKeyPrefix match the stable on-disk key format:
// "entry:cfk://<backend>/<segs>" and "dir:cfk://<backend>/<segs>".
const (
	entryKeyPrefix = "entry:"
	dirKeyPrefix   = "dir:"
)

// Open opens (creating if necessary) the metadata cache backed by
// config.DurablePath.
func Open(config Config, logger *logging.Logger) (*Cache, error) {
	path := config.DurablePath
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cferrors.IO("unable to open metadata cache database", err)
	}

	memoryCap := config.MemoryEntries
	if memoryCap <= 0 {
		memoryCap = defaultMemoryEntries
	}

	return &Cache{
		memory:     lru.New(memoryCap),
		memoryCap:  memoryCap,
		db:         db,
		defaultTTL: config.DefaultTTL,
		logger:     logger,
	}, nil
}

// Close closes the underlying durable store.
func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return cferrors.IO("unable to close metadata cache database", err)
	}
	return nil
}

func entryKey(path vpath.VirtualPath) string {
	return entryKeyPrefix + path.String()
}

func dirKey(path vpath.VirtualPath) string {
	return dirKeyPrefix + path.String()
}

func expiresAtAfter(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().UTC().Add(ttl)
	return &t
}

// PutEntry stores entry's metadata under the cache's DefaultTTL.
func (c *Cache) PutEntry(entry vpath.Entry) error {
	return c.PutEntryWithTTL(entry, c.defaultTTL)
}

// PutEntryWithTTL stores entry's metadata with an explicit TTL. A zero
// TTL means the entry never expires on its own.
func (c *Cache) PutEntryWithTTL(entry vpath.Entry, ttl time.Duration) error {
	cached := CachedEntry{Entry: entry, ExpiresAt: expiresAtAfter(ttl)}
	data, err := cbor.Marshal(cached)
	if err != nil {
		return cferrors.Serialization("unable to encode cached entry", err)
	}

	key := entryKey(entry.Path)

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(data), nil)
		return err
	})
	if err != nil {
		return cferrors.IO("unable to persist cached entry", err)
	}

	c.memory.Add(key, cached)
	return nil
}

// GetEntry looks up cached metadata for path, checking the in-memory
// tier first and falling through to the durable tier on a miss.
// Expired entries are treated as absent.
func (c *Cache) GetEntry(path vpath.VirtualPath) (vpath.Entry, bool, error) {
	key := entryKey(path)
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.memory.Get(key); ok {
		cached := v.(CachedEntry)
		if cached.expired(now) {
			c.memory.Remove(key)
		} else {
			c.memoryHits++
			return cached.Entry, true, nil
		}
	}
	c.memoryMisses++

	var raw string
	err := c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err != nil {
		c.durableMisses++
		if err == buntdb.ErrNotFound {
			return vpath.Entry{}, false, nil
		}
		return vpath.Entry{}, false, cferrors.IO("unable to read cached entry", err)
	}

	var cached CachedEntry
	if err := cbor.Unmarshal([]byte(raw), &cached); err != nil {
		return vpath.Entry{}, false, cferrors.Serialization("unable to decode cached entry", err)
	}
	if cached.expired(now) {
		c.durableMisses++
		return vpath.Entry{}, false, nil
	}

	c.durableHits++
	c.memory.Add(key, cached)
	return cached.Entry, true, nil
}

// PutDirectory stores a directory listing under the cache's DefaultTTL.
func (c *Cache) PutDirectory(path vpath.VirtualPath, entries []vpath.Entry) error {
	return c.PutDirectoryWithTTL(path, entries, c.defaultTTL)
}

// PutDirectoryWithTTL stores a directory listing with an explicit TTL,
// then separately caches each child as its own independently-expirable
// entry (mirroring put_directory's "persist the directory doc, then
// cache every child individually" behavior).
func (c *Cache) PutDirectoryWithTTL(path vpath.VirtualPath, entries []vpath.Entry, ttl time.Duration) error {
	children := make([]string, len(entries))
	for i, entry := range entries {
		children[i] = entry.Path.String()
	}
	cached := CachedDirectory{Children: children, ExpiresAt: expiresAtAfter(ttl)}
	data, err := cbor.Marshal(cached)
	if err != nil {
		return cferrors.Serialization("unable to encode cached directory listing", err)
	}

	key := dirKey(path)

	c.mu.Lock()
	err = c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(data), nil)
		return err
	})
	if err != nil {
		c.mu.Unlock()
		return cferrors.IO("unable to persist cached directory listing", err)
	}
	c.memory.Add(key, cached)
	c.mu.Unlock()

	for _, entry := range entries {
		if err := c.PutEntryWithTTL(entry, ttl); err != nil {
			return err
		}
	}
	return nil
}

// GetDirectory looks up a cached directory listing for path and
// rehydrates each child by looking it up individually through GetEntry,
// so a child's own TTL and any invalidation of just that child are
// honored rather than serving a denormalized snapshot. A child that's
// since expired or been invalidated is silently omitted from the
// result.
func (c *Cache) GetDirectory(path vpath.VirtualPath) ([]vpath.Entry, bool, error) {
	key := dirKey(path)
	now := time.Now().UTC()

	c.mu.Lock()

	var cached CachedDirectory
	if v, ok := c.memory.Get(key); ok {
		cd := v.(CachedDirectory)
		if cd.expired(now) {
			c.memory.Remove(key)
		} else {
			c.memoryHits++
			cached = cd
			c.mu.Unlock()
			return c.rehydrateChildren(cached.Children), true, nil
		}
	}
	c.memoryMisses++

	var raw string
	err := c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err != nil {
		c.durableMisses++
		c.mu.Unlock()
		if err == buntdb.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, cferrors.IO("unable to read cached directory listing", err)
	}

	if err := cbor.Unmarshal([]byte(raw), &cached); err != nil {
		c.mu.Unlock()
		return nil, false, cferrors.Serialization("unable to decode cached directory listing", err)
	}
	if cached.expired(now) {
		c.durableMisses++
		c.mu.Unlock()
		return nil, false, nil
	}

	c.durableHits++
	c.memory.Add(key, cached)
	c.mu.Unlock()
	return c.rehydrateChildren(cached.Children), true, nil
}

// rehydrateChildren looks up each child path individually via GetEntry,
// omitting any that have since expired or been invalidated.
func (c *Cache) rehydrateChildren(children []string) []vpath.Entry {
	entries := make([]vpath.Entry, 0, len(children))
	for _, child := range children {
		childPath, ok := vpath.ParseURI(child)
		if !ok {
			continue
		}
		if entry, ok, err := c.GetEntry(childPath); err == nil && ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Invalidate removes any cached entry for path, in both tiers. It's not
// an error if nothing was cached.
func (c *Cache) Invalidate(path vpath.VirtualPath) error {
	key := entryKey(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory.Remove(key)
	return c.deleteKeyLocked(key)
}

// InvalidateDirectory removes a directory's cached listing along with
// every cached entry found under that path's prefix. Because the
// in-memory LRU front has no key enumeration, a cascade invalidation
// resets it entirely rather than picking out individual keys; nothing
// is lost, as evicted entries simply reload from the durable tier on
// next access.
func (c *Cache) InvalidateDirectory(path vpath.VirtualPath) error {
	prefix := entryKeyPrefix + path.String()
	dirPrefix := dirKeyPrefix + path.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	err := c.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, _ string) bool {
			keys = append(keys, key)
			return true
		})
	})
	if err != nil {
		return cferrors.IO("unable to scan directory entries for invalidation", err)
	}
	keys = append(keys, dirKey(path))
	if dirPrefix != prefix {
		var dirKeys []string
		if err := c.db.View(func(tx *buntdb.Tx) error {
			return tx.AscendKeys(dirPrefix+"*", func(key, _ string) bool {
				dirKeys = append(dirKeys, key)
				return true
			})
		}); err != nil {
			return cferrors.IO("unable to scan nested directories for invalidation", err)
		}
		keys = append(keys, dirKeys...)
	}

	if err := c.db.Update(func(tx *buntdb.Tx) error {
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	}); err != nil {
		return cferrors.IO("unable to delete invalidated directory entries", err)
	}

	c.resetMemoryLocked()
	return nil
}

// ClearBackend removes every cached entry and directory listing
// belonging to backend.
func (c *Cache) ClearBackend(backend string) error {
	entryPrefix := entryKeyPrefix + "cfk://" + backend + "/"
	dirPrefix := dirKeyPrefix + "cfk://" + backend + "/"

	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	scan := func(prefix string) error {
		return c.db.View(func(tx *buntdb.Tx) error {
			return tx.AscendKeys(prefix+"*", func(key, _ string) bool {
				keys = append(keys, key)
				return true
			})
		})
	}
	if err := scan(entryPrefix); err != nil {
		return cferrors.IO("unable to scan backend entries for clearing", err)
	}
	if err := scan(dirPrefix); err != nil {
		return cferrors.IO("unable to scan backend directories for clearing", err)
	}

	if err := c.db.Update(func(tx *buntdb.Tx) error {
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	}); err != nil {
		return cferrors.IO("unable to delete backend entries", err)
	}

	c.resetMemoryLocked()
	return nil
}

// PruneExpired sweeps the durable tier for entries and directory
// listings whose ExpiresAt has passed, removing them from both tiers,
// and returns the count removed.
func (c *Cache) PruneExpired() (int, error) {
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []string
	err := c.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			if isExpiredValue(key, value, now) {
				expired = append(expired, key)
			}
			return true
		})
	})
	if err != nil {
		return 0, cferrors.IO("unable to scan metadata cache for expired entries", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if err := c.db.Update(func(tx *buntdb.Tx) error {
		for _, key := range expired {
			if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	}); err != nil {
		return 0, cferrors.IO("unable to delete expired metadata cache entries", err)
	}

	for _, key := range expired {
		c.memory.Remove(key)
	}
	return len(expired), nil
}

func isExpiredValue(key, value string, now time.Time) bool {
	switch {
	case len(key) > len(entryKeyPrefix) && key[:len(entryKeyPrefix)] == entryKeyPrefix:
		var cached CachedEntry
		if cbor.Unmarshal([]byte(value), &cached) != nil {
			return false
		}
		return cached.expired(now)
	case len(key) > len(dirKeyPrefix) && key[:len(dirKeyPrefix)] == dirKeyPrefix:
		var cached CachedDirectory
		if cbor.Unmarshal([]byte(value), &cached) != nil {
			return false
		}
		return cached.expired(now)
	default:
		return false
	}
}

// deleteKeyLocked removes key from the durable tier, tolerating absence.
func (c *Cache) deleteKeyLocked(key string) error {
	err := c.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return cferrors.IO("unable to delete cached entry", err)
	}
	return nil
}

// resetMemoryLocked discards the entire in-memory tier.
func (c *Cache) resetMemoryLocked() {
	c.memory = lru.New(c.memoryCap)
}

// Stats returns a snapshot of tier hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		MemoryHits:    c.memoryHits,
		MemoryMisses:  c.memoryMisses,
		DurableHits:   c.durableHits,
		DurableMisses: c.durableMisses,
	}
}
