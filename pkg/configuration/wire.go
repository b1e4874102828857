package configuration

import (
	"strings"
	"time"

	"github.com/cfk-cache/cfk/pkg/blobstore"
	"github.com/cfk-cache/cfk/pkg/cache"
	"github.com/cfk-cache/cfk/pkg/cferrors"
	"github.com/cfk-cache/cfk/pkg/metacache"
	"github.com/cfk-cache/cfk/pkg/policy"
)

// policyKindByName maps the configuration file's lower-case policy kind
// names to their policy.Kind values.
var policyKindByName = map[string]policy.Kind{
	"lru":            policy.Lru,
	"lfu":            policy.Lfu,
	"fifo":           policy.Fifo,
	"largest_first":  policy.LargestFirst,
	"smallest_first": policy.SmallestFirst,
	"adaptive":       policy.Adaptive,
	"tiered":         policy.Tiered,
}

// PolicyKind resolves the configured policy kind name. An empty value
// defaults to Lru; any other value not in policyKindByName is a
// configuration error rather than a silent fallback.
func (c *Configuration) PolicyKind() (policy.Kind, error) {
	name := strings.ToLower(c.Policy.Kind)
	if name == "" {
		return policy.Lru, nil
	}
	if kind, ok := policyKindByName[name]; ok {
		return kind, nil
	}
	return 0, cferrors.Unsupported("unrecognized policy kind: " + c.Policy.Kind)
}

// ToCacheConfig translates the loaded configuration into a
// cache.Config ready to hand to cache.Open. It fails if the configured
// policy kind isn't recognized.
func (c *Configuration) ToCacheConfig() (cache.Config, error) {
	kind, err := c.PolicyKind()
	if err != nil {
		return cache.Config{}, err
	}
	return cache.Config{
		Blob: blobstore.Config{
			Path:              c.Blob.Path,
			Compress:          c.Blob.Compress,
			CompressThreshold: int64(c.Blob.CompressThreshold),
			VerifyOnRead:      c.Blob.VerifyOnRead,
			GCLockPath:        c.Blob.GCLockPath,
		},
		Meta: metacache.Config{
			DurablePath:   c.Meta.DurablePath,
			MemoryEntries: c.Meta.MaxMemoryEntries,
			DefaultTTL:    time.Duration(c.Meta.DefaultTTLSeconds) * time.Second,
		},
		Policy: policy.Config{
			MaxSize:              uint64(c.Policy.MaxSize),
			MaxEntries:           c.Policy.MaxEntries,
			Kind:                 kind,
			TargetUtilization:    c.Policy.TargetUtilization,
			MinTTL:               time.Duration(c.Policy.MinTTLSeconds) * time.Second,
			TieredHotMaxEntries:  c.Policy.TieredHotMaxEntries,
			TieredWarmMaxEntries: c.Policy.TieredWarmMaxEntries,
			TieredColdMaxEntries: c.Policy.TieredColdMaxEntries,
		},
		EntryTTL: time.Duration(c.Meta.DefaultTTLSeconds) * time.Second,
	}, nil
}
