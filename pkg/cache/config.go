package cache

import (
	"time"

	"github.com/cfk-cache/cfk/pkg/blobstore"
	"github.com/cfk-cache/cfk/pkg/metacache"
	"github.com/cfk-cache/cfk/pkg/policy"
)

// Config carries the configuration for every subsystem the coordinator
// owns.
type Config struct {
	Blob   blobstore.Config
	Meta   metacache.Config
	Policy policy.Config
	// EntryTTL is passed through to metacache.Cache.PutEntryWithTTL for
	// entries and directory listings populated by cache misses. Zero
	// means entries never expire on their own.
	EntryTTL time.Duration
}
