package metacache

import "time"

// Config carries the two-tier metadata cache's durable and in-memory
// knobs.
type Config struct {
	// DurablePath is the buntdb database file. Use ":memory:" for a
	// process-local cache with no durable backing.
	DurablePath string
	// MemoryEntries bounds the in-memory LRU front. Zero selects a
	// built-in default.
	MemoryEntries int
	// DefaultTTL is applied by PutEntry/PutDirectory when no explicit
	// TTL is given. Zero means entries never expire on their own.
	DefaultTTL time.Duration
}

const defaultMemoryEntries = 4096
