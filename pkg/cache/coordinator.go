// Package cache implements the cache coordinator: the component tying
// the blob store, metadata cache, eviction policy engine, and
// registered backends together into the engine's read/write/list/stat
// surface.
package cache

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cfk-cache/cfk/pkg/backend"
	"github.com/cfk-cache/cfk/pkg/blobstore"
	"github.com/cfk-cache/cfk/pkg/cferrors"
	"github.com/cfk-cache/cfk/pkg/content"
	"github.com/cfk-cache/cfk/pkg/logging"
	"github.com/cfk-cache/cfk/pkg/metacache"
	"github.com/cfk-cache/cfk/pkg/policy"
	"github.com/cfk-cache/cfk/pkg/vpath"
)

// Stats reports coordinator-level bookkeeping alongside the policy
// engine's own occupancy statistics.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Policy  policy.Stats
	Backend map[string]int
}

// Coordinator is the cache engine's top-level entry point: every read,
// write, list, and invalidation flows through it. It's safe for
// concurrent use.
type Coordinator struct {
	mu         sync.RWMutex
	blobs      *blobstore.Store
	meta       *metacache.Cache
	policy     policy.Policy
	backends   map[string]backend.Backend
	fetchGroup singleflight.Group
	entryTTL   time.Duration
	logger     *logging.Logger

	statsMu      sync.Mutex
	hits, misses uint64
}

// Open assembles a Coordinator from configuration, opening the blob
// store and metadata cache it owns.
func Open(config Config, logger *logging.Logger) (*Coordinator, error) {
	blobs, err := blobstore.Open(config.Blob, logger.Sublogger("blobstore"))
	if err != nil {
		return nil, err
	}
	meta, err := metacache.Open(config.Meta, logger.Sublogger("metacache"))
	if err != nil {
		return nil, err
	}
	engine := policy.NewPolicy(config.Policy, logger.Sublogger("policy"))

	return &Coordinator{
		blobs:    blobs,
		meta:     meta,
		policy:   engine,
		backends: make(map[string]backend.Backend),
		entryTTL: config.EntryTTL,
		logger:   logger,
	}, nil
}

// RegisterBackend adds b to the coordinator's backend registry, keyed
// by its ID. Registering a second backend under an already-registered
// ID replaces the first.
func (c *Coordinator) RegisterBackend(b backend.Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backends[b.ID()] = b
}

func (c *Coordinator) backendFor(id string) (backend.Backend, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.backends[id]
	if !ok {
		return nil, cferrors.BackendNotFound(id)
	}
	return b, nil
}

func (c *Coordinator) recordHit() {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
}

func (c *Coordinator) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
}

// Stat returns metadata for path, preferring the metadata cache and
// falling through to the origin backend on a miss.
func (c *Coordinator) Stat(ctx context.Context, path vpath.VirtualPath) (vpath.Entry, error) {
	if entry, ok, err := c.meta.GetEntry(path); err != nil {
		c.logger.Warnf("metadata cache read failed during Stat: %s", err.Error())
	} else if ok {
		c.recordHit()
		return entry, nil
	}
	c.recordMiss()

	b, err := c.backendFor(path.Backend())
	if err != nil {
		return vpath.Entry{}, err
	}
	entry, err := b.Stat(ctx, path)
	if err != nil {
		return vpath.Entry{}, err
	}
	if err := c.meta.PutEntryWithTTL(entry, c.entryTTL); err != nil {
		c.logger.Warnf("unable to cache entry metadata: %s", err.Error())
	}
	return entry, nil
}

// List returns a directory listing for path, preferring the metadata
// cache and falling through to the origin backend on a miss.
func (c *Coordinator) List(ctx context.Context, path vpath.VirtualPath, options backend.ListOptions) (backend.DirectoryListing, error) {
	if entries, ok, err := c.meta.GetDirectory(path); err != nil {
		c.logger.Warnf("metadata cache read failed during List: %s", err.Error())
	} else if ok {
		c.recordHit()
		return backend.DirectoryListing{Path: path, Entries: entries}, nil
	}
	c.recordMiss()

	b, err := c.backendFor(path.Backend())
	if err != nil {
		return backend.DirectoryListing{}, err
	}
	listing, err := b.List(ctx, path, options)
	if err != nil {
		return backend.DirectoryListing{}, err
	}
	if err := c.meta.PutDirectoryWithTTL(path, listing.Entries, c.entryTTL); err != nil {
		c.logger.Warnf("unable to cache directory listing: %s", err.Error())
	}
	return listing, nil
}

// Read returns path's body, preferring the blob store (verified against
// the metadata cache's recorded content hash) and falling through to
// the origin backend on a miss. Concurrent Read calls for the same path
// are coalesced via singleflight so a cache-miss storm results in at
// most one backend fetch.
func (c *Coordinator) Read(ctx context.Context, path vpath.VirtualPath) ([]byte, error) {
	if entry, ok, err := c.meta.GetEntry(path); err == nil && ok && entry.Meta.ContentHash != nil {
		cid, err := content.FromHex(*entry.Meta.ContentHash)
		if err == nil {
			if body, err := c.blobs.Get(cid); err == nil {
				c.recordHit()
				c.policy.RecordAccess(cid)
				return body, nil
			} else if cferrors.KindOf(err) == cferrors.KindCorruptedContent {
				c.logger.Warnf("corrupted cached content for %s, refetching from origin: %s", path.String(), err.Error())
				c.policy.RecordRemove(cid)
				if err := c.blobs.Delete(cid); err != nil {
					c.logger.Warnf("unable to delete corrupted blob %s: %s", cid.Hex(), err.Error())
				}
				if err := c.meta.Invalidate(path); err != nil {
					c.logger.Warnf("unable to invalidate cached entry for %s: %s", path.String(), err.Error())
				}
			}
		}
	}
	c.recordMiss()

	result, err, _ := c.fetchGroup.Do(path.String(), func() (interface{}, error) {
		if entry, ok, err := c.meta.GetEntry(path); err == nil && ok && entry.Meta.ContentHash != nil {
			if cid, err := content.FromHex(*entry.Meta.ContentHash); err == nil {
				if body, err := c.blobs.Get(cid); err == nil {
					return body, nil
				}
			}
		}

		b, err := c.backendFor(path.Backend())
		if err != nil {
			return nil, err
		}
		reader, err := b.Read(ctx, path, backend.ReadOptions{})
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		body, err := io.ReadAll(reader)
		if err != nil {
			return nil, cferrors.IO("unable to read backend body", err)
		}

		cid, err := c.blobs.Put(body)
		if err != nil {
			c.logger.Warnf("unable to cache fetched body for %s: %s", path.String(), err.Error())
			return body, nil
		}
		c.policy.RecordAdd(policy.EntryInfo{CID: cid, Size: uint64(len(body))})

		hashHex := cid.Hex()
		entry, statErr := b.Stat(ctx, path)
		if statErr != nil {
			entry = vpath.Entry{Path: path, Kind: vpath.KindFile}
		}
		entry.Meta.ContentHash = &hashHex
		if err := c.meta.PutEntryWithTTL(entry, c.entryTTL); err != nil {
			c.logger.Warnf("unable to cache entry metadata for %s: %s", path.String(), err.Error())
		}

		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Write writes body through to path's origin backend and invalidates
// any cached metadata and directory listing for path, so the next Read
// or Stat re-fetches fresh state. The engine carries no write-behind
// buffering: every Write blocks until the backend confirms it.
func (c *Coordinator) Write(ctx context.Context, path vpath.VirtualPath, body io.Reader, options backend.WriteOptions) error {
	b, err := c.backendFor(path.Backend())
	if err != nil {
		return err
	}
	if err := b.Write(ctx, path, body, options); err != nil {
		return err
	}
	if err := c.meta.Invalidate(path); err != nil {
		c.logger.Warnf("unable to invalidate cached entry after write to %s: %s", path.String(), err.Error())
	}
	if parent, ok := path.Parent(); ok {
		if err := c.meta.InvalidateDirectory(parent); err != nil {
			c.logger.Warnf("unable to invalidate cached parent directory after write to %s: %s", path.String(), err.Error())
		}
	}
	return nil
}

// Delete removes path from its origin backend and invalidates any
// cached state for it.
func (c *Coordinator) Delete(ctx context.Context, path vpath.VirtualPath, options backend.DeleteOptions) error {
	b, err := c.backendFor(path.Backend())
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, path, options); err != nil {
		return err
	}
	if options.Recursive {
		return c.InvalidateDirectory(path)
	}
	return c.Invalidate(path)
}

// Copy duplicates src to dst, preferring the origin backend's native
// Copy when src and dst share a backend and that backend advertises
// CapabilityCopy, and falling back to a read-then-write otherwise
// (including across two different registered backends). On success it
// invalidates any cached state for both src and dst, plus each one's
// parent directory listing.
func (c *Coordinator) Copy(ctx context.Context, src, dst vpath.VirtualPath, options backend.CopyOptions) error {
	if src.Backend() == dst.Backend() {
		b, err := c.backendFor(src.Backend())
		if err != nil {
			return err
		}
		if backend.HasCapability(b, backend.CapabilityCopy) {
			if err := b.Copy(ctx, src, dst, options); err != nil {
				return err
			}
			return c.invalidateCopyOrRename(src, dst)
		}
	}

	body, err := c.Read(ctx, src)
	if err != nil {
		return err
	}
	if err := c.Write(ctx, dst, bytes.NewReader(body), backend.WriteOptions{}); err != nil {
		return err
	}
	return c.invalidateCopyOrRename(src, dst)
}

// Rename relocates src to dst, preferring the origin backend's native
// Move when src and dst share a backend and that backend advertises
// CapabilityMove, and falling back to a read-then-write-then-delete
// otherwise (including across two different registered backends). On
// success it invalidates any cached state for both src and dst, plus
// each one's parent directory listing.
func (c *Coordinator) Rename(ctx context.Context, src, dst vpath.VirtualPath, options backend.MoveOptions) error {
	if src.Backend() == dst.Backend() {
		b, err := c.backendFor(src.Backend())
		if err != nil {
			return err
		}
		if backend.HasCapability(b, backend.CapabilityMove) {
			if err := b.Move(ctx, src, dst, options); err != nil {
				return err
			}
			return c.invalidateCopyOrRename(src, dst)
		}
	}

	body, err := c.Read(ctx, src)
	if err != nil {
		return err
	}
	if err := c.Write(ctx, dst, bytes.NewReader(body), backend.WriteOptions{}); err != nil {
		return err
	}
	if err := c.Delete(ctx, src, backend.DeleteOptions{}); err != nil {
		return err
	}
	return c.invalidateCopyOrRename(src, dst)
}

// invalidateCopyOrRename invalidates src, dst, and both of their parent
// directory listings, per the same non-fatal best-effort logging Write
// and Delete already follow.
func (c *Coordinator) invalidateCopyOrRename(src, dst vpath.VirtualPath) error {
	if err := c.Invalidate(src); err != nil {
		c.logger.Warnf("unable to invalidate source %s: %s", src.String(), err.Error())
	}
	if err := c.Invalidate(dst); err != nil {
		c.logger.Warnf("unable to invalidate destination %s: %s", dst.String(), err.Error())
	}
	if parent, ok := src.Parent(); ok {
		if err := c.InvalidateDirectory(parent); err != nil {
			c.logger.Warnf("unable to invalidate source parent directory %s: %s", parent.String(), err.Error())
		}
	}
	if parent, ok := dst.Parent(); ok {
		if err := c.InvalidateDirectory(parent); err != nil {
			c.logger.Warnf("unable to invalidate destination parent directory %s: %s", parent.String(), err.Error())
		}
	}
	return nil
}

// Invalidate removes path's cached metadata and stops the policy engine
// tracking its body, without touching the origin backend. The body stays
// in the blob store until the next GC pass reclaims it.
func (c *Coordinator) Invalidate(path vpath.VirtualPath) error {
	if entry, ok, err := c.meta.GetEntry(path); err == nil && ok && entry.Meta.ContentHash != nil {
		if cid, err := content.FromHex(*entry.Meta.ContentHash); err == nil {
			c.policy.RecordRemove(cid)
		}
	}
	return c.meta.Invalidate(path)
}

// InvalidateDirectory removes the cached metadata and directory listings
// for path and everything beneath it. Cached bodies are left in place and
// stay tracked by the policy engine.
func (c *Coordinator) InvalidateDirectory(path vpath.VirtualPath) error {
	return c.meta.InvalidateDirectory(path)
}

// ClearBackend removes every cached entry and directory listing
// belonging to backendID, without affecting the origin or other
// registered backends.
func (c *Coordinator) ClearBackend(backendID string) error {
	return c.meta.ClearBackend(backendID)
}

// Stats returns a snapshot of coordinator and policy-engine bookkeeping.
func (c *Coordinator) Stats() Stats {
	c.statsMu.Lock()
	hits, misses := c.hits, c.misses
	c.statsMu.Unlock()

	c.mu.RLock()
	backendCount := make(map[string]int, len(c.backends))
	for id := range c.backends {
		backendCount[id] = 1
	}
	c.mu.RUnlock()

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Policy:  c.policy.Stats(),
		Backend: backendCount,
	}
}

// GC runs a blob store garbage collection pass, keeping only content
// hashes the policy engine still has a live entry for. Bodies the
// policy engine already evicted (via RecordRemove from Invalidate or a
// prior SelectEvictions sweep) are swept away.
func (c *Coordinator) GC() (uint64, error) {
	keep := make(map[content.CID]struct{})
	for _, cid := range c.policy.TrackedCIDs() {
		keep[cid] = struct{}{}
	}
	return c.blobs.GC(keep)
}

// EvictAndSweep asks the policy engine which entries to evict, forgets
// them in the policy engine, and runs a blob store GC pass to reclaim
// their storage. Metadata entries that reference the evicted bodies stay
// cached; a later Read of such a path misses in the blob store and
// refetches from the backend. It returns the eviction result alongside
// the bytes actually freed on disk.
func (c *Coordinator) EvictAndSweep() (policy.Result, uint64, error) {
	if !c.policy.NeedsEviction() {
		return policy.Result{}, 0, nil
	}
	result := c.policy.SelectEvictions()
	for _, cid := range result.Evicted {
		c.policy.RecordRemove(cid)
	}
	freed, err := c.GC()
	if err != nil {
		return result, 0, err
	}
	return result, freed, nil
}

// Close releases resources held by the coordinator's owned subsystems.
func (c *Coordinator) Close() error {
	for _, b := range c.backends {
		if err := b.Shutdown(); err != nil {
			c.logger.Warnf("error shutting down backend %s: %s", b.ID(), err.Error())
		}
	}
	return c.meta.Close()
}
