// Package configuration defines the cache engine's YAML configuration
// envelope and loads it with the same encoding helpers the rest of the
// ambient stack uses.
package configuration

import (
	"github.com/cfk-cache/cfk/pkg/backend"
	"github.com/cfk-cache/cfk/pkg/backend/localfs"
	"github.com/cfk-cache/cfk/pkg/encoding"
)

// BlobConfiguration configures the content-addressed blob store.
type BlobConfiguration struct {
	// Path is the CAS root directory.
	Path string `yaml:"path"`
	// Compress enables LZ4 compression for bodies at or above
	// CompressThreshold.
	Compress bool `yaml:"compress"`
	// CompressThreshold is the minimum body size, in bytes, eligible
	// for compression.
	CompressThreshold ByteSize `yaml:"compress_threshold"`
	// VerifyOnRead re-hashes every body read back from storage and
	// compares it against its CID.
	VerifyOnRead bool `yaml:"verify_on_read"`
	// GCLockPath is an optional advisory lock file guarding concurrent
	// GC passes across processes.
	GCLockPath string `yaml:"gc_lock_path"`
}

// MetaConfiguration configures the two-tier metadata cache.
type MetaConfiguration struct {
	// DurablePath is the buntdb database file (spec's meta.db_path).
	DurablePath string `yaml:"durable_path"`
	// DefaultTTLSeconds is the default entry TTL, in seconds. Zero means
	// entries never expire on their own.
	DefaultTTLSeconds int64 `yaml:"default_ttl"`
	// MaxMemoryEntries bounds the in-memory LRU front.
	MaxMemoryEntries int `yaml:"max_memory_entries"`
}

// PolicyConfiguration configures the eviction policy engine.
type PolicyConfiguration struct {
	// MaxSize is the byte budget for tracked bodies.
	MaxSize ByteSize `yaml:"max_size"`
	// MaxEntries is the entry-count budget.
	MaxEntries int `yaml:"max_entries"`
	// Kind selects the eviction strategy: one of lru, lfu, fifo,
	// largest_first, smallest_first, adaptive, tiered.
	Kind string `yaml:"kind"`
	// TargetUtilization is the fraction of both budgets eviction aims
	// for after running.
	TargetUtilization float64 `yaml:"target_utilization"`
	// MinTTLSeconds is the minimum age, in seconds, an entry must reach
	// before it's eligible for eviction.
	MinTTLSeconds int64 `yaml:"min_ttl"`
	// TieredHotMaxEntries bounds the hot tier when Kind is tiered.
	TieredHotMaxEntries int `yaml:"tiered_hot_max_entries"`
	// TieredWarmMaxEntries bounds the warm tier when Kind is tiered.
	TieredWarmMaxEntries int `yaml:"tiered_warm_max_entries"`
	// TieredColdMaxEntries bounds the cold tier when Kind is tiered.
	TieredColdMaxEntries int `yaml:"tiered_cold_max_entries"`
}

// MetricsConfiguration configures Prometheus exposition.
type MetricsConfiguration struct {
	// Enabled is loaded from metrics.enabled. No code in this module reads
	// it; collectors are registered only by an explicit metrics.Register
	// call.
	Enabled bool `yaml:"enabled"`
}

// LogConfiguration configures the root logger's verbosity.
type LogConfiguration struct {
	// Level is one of disabled/error/warn/info/debug/trace.
	Level string `yaml:"level"`
}

// MountConfiguration names a local filesystem backend to register with
// the coordinator at startup. It's a CLI convenience, not part of the
// core cache engine: callers embedding the coordinator directly
// construct and register backend.Backend values of their own choosing.
type MountConfiguration struct {
	// ID is the backend identifier used in virtual paths
	// ("cfk://<id>/...").
	ID string `yaml:"id"`
	// Path is the local directory the backend serves.
	Path string `yaml:"path"`
}

// Open constructs the local filesystem backend named by this mount.
func (m MountConfiguration) Open() (backend.Backend, error) {
	return localfs.New(m.ID, m.Path)
}

// Configuration is the top-level YAML configuration object.
type Configuration struct {
	Blob    BlobConfiguration    `yaml:"blob"`
	Meta    MetaConfiguration    `yaml:"meta"`
	Policy  PolicyConfiguration  `yaml:"policy"`
	Metrics MetricsConfiguration `yaml:"metrics"`
	Log     LogConfiguration     `yaml:"log"`
	Mounts  []MountConfiguration `yaml:"mounts"`
}

// Load attempts to load a YAML-based cache engine configuration file
// from the specified path. os.IsNotExist errors are passed through
// unmodified so callers can choose to fall back to defaults.
func Load(path string) (*Configuration, error) {
	result := &Configuration{}
	if err := encoding.LoadAndUnmarshalYAML(path, result); err != nil {
		return nil, err
	}
	return result, nil
}
