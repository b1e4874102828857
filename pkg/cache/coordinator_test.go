package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cfk-cache/cfk/pkg/backend"
	"github.com/cfk-cache/cfk/pkg/backend/memfs"
	"github.com/cfk-cache/cfk/pkg/blobstore"
	"github.com/cfk-cache/cfk/pkg/logging"
	"github.com/cfk-cache/cfk/pkg/metacache"
	"github.com/cfk-cache/cfk/pkg/policy"
	"github.com/cfk-cache/cfk/pkg/vpath"
)

func openTestCoordinator(t *testing.T) (*Coordinator, *memfs.Backend) {
	t.Helper()
	config := Config{
		Blob: blobstore.Config{Path: t.TempDir()},
		Meta: metacache.Config{DurablePath: ":memory:"},
		Policy: policy.Config{
			MaxSize: 1 << 30, MaxEntries: 10000, Kind: policy.Lru, TargetUtilization: 0.8,
		},
		EntryTTL: time.Hour,
	}
	coordinator, err := Open(config, logging.RootLogger.Sublogger("cache-test"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { coordinator.Close() })

	origin := memfs.New("origin")
	coordinator.RegisterBackend(origin)
	return coordinator, origin
}

// TestReadFillsCacheOnMiss tests that a Read populates the blob store
// and metadata cache so a subsequent Read hits without touching the
// backend.
func TestReadFillsCacheOnMiss(t *testing.T) {
	coordinator, origin := openTestCoordinator(t)
	ctx := context.Background()
	path := vpath.New("origin", "a.txt")
	origin.Seed(path, []byte("hello"))

	body, err := coordinator.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("expected hello, got %q", body)
	}

	// Mutate the backend directly, bypassing the coordinator, so a
	// cache hit would observe the old body while a cache miss would
	// observe the new one.
	origin.Seed(path, []byte("changed"))

	body2, err := coordinator.Read(ctx, path)
	if err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if string(body2) != "hello" {
		t.Errorf("expected cached body hello, got %q", body2)
	}

	stats := coordinator.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

// TestWriteInvalidatesCache tests that Write invalidates the cached
// entry so the next Read observes the new body.
func TestWriteInvalidatesCache(t *testing.T) {
	coordinator, origin := openTestCoordinator(t)
	ctx := context.Background()
	path := vpath.New("origin", "a.txt")
	origin.Seed(path, []byte("v1"))

	if _, err := coordinator.Read(ctx, path); err != nil {
		t.Fatalf("initial Read failed: %v", err)
	}

	if err := coordinator.Write(ctx, path, bytes.NewReader([]byte("v2")), backend.WriteOptions{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	body, err := coordinator.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read after write failed: %v", err)
	}
	if string(body) != "v2" {
		t.Errorf("expected v2 after write-invalidate, got %q", body)
	}
}

// TestStatMiss tests that Stat falls through to the backend and
// populates the metadata cache.
func TestStatMiss(t *testing.T) {
	coordinator, origin := openTestCoordinator(t)
	ctx := context.Background()
	path := vpath.New("origin", "a.txt")
	origin.Seed(path, []byte("hello"))

	entry, err := coordinator.Stat(ctx, path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if entry.Kind != vpath.KindFile {
		t.Errorf("expected KindFile, got %v", entry.Kind)
	}

	entry2, err := coordinator.Stat(ctx, path)
	if err != nil {
		t.Fatalf("second Stat failed: %v", err)
	}
	if *entry2.Meta.Size != *entry.Meta.Size {
		t.Error("expected cached Stat to match original")
	}
}

// TestDeleteInvalidates tests that Delete removes the backend object
// and invalidates the cache.
func TestDeleteInvalidates(t *testing.T) {
	coordinator, origin := openTestCoordinator(t)
	ctx := context.Background()
	path := vpath.New("origin", "a.txt")
	origin.Seed(path, []byte("hello"))

	if _, err := coordinator.Read(ctx, path); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := coordinator.Delete(ctx, path, backend.DeleteOptions{}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := coordinator.Stat(ctx, path); err == nil {
		t.Error("expected Stat to fail after Delete")
	}
}

// TestCopyFallsBackToReadWrite tests that Copy, against a backend with
// no native CapabilityCopy (memfs), falls back to a read-then-write,
// leaves src intact, and invalidates any cached state for both paths.
func TestCopyFallsBackToReadWrite(t *testing.T) {
	coordinator, origin := openTestCoordinator(t)
	ctx := context.Background()
	src := vpath.New("origin", "a.txt")
	dst := vpath.New("origin", "b.txt")
	origin.Seed(src, []byte("hello"))

	if _, err := coordinator.Read(ctx, src); err != nil {
		t.Fatalf("initial Read of src failed: %v", err)
	}

	if err := coordinator.Copy(ctx, src, dst, backend.CopyOptions{}); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	srcBody, err := coordinator.Read(ctx, src)
	if err != nil {
		t.Fatalf("Read of src after Copy failed: %v", err)
	}
	if string(srcBody) != "hello" {
		t.Errorf("expected src to remain %q after Copy, got %q", "hello", srcBody)
	}

	dstBody, err := coordinator.Read(ctx, dst)
	if err != nil {
		t.Fatalf("Read of dst after Copy failed: %v", err)
	}
	if string(dstBody) != "hello" {
		t.Errorf("expected dst to contain %q after Copy, got %q", "hello", dstBody)
	}
}

// TestRenameFallsBackToReadWriteDelete tests that Rename, against a
// backend with no native CapabilityMove (memfs), falls back to a
// read-then-write-then-delete: src is gone and dst has src's old body.
func TestRenameFallsBackToReadWriteDelete(t *testing.T) {
	coordinator, origin := openTestCoordinator(t)
	ctx := context.Background()
	src := vpath.New("origin", "a.txt")
	dst := vpath.New("origin", "b.txt")
	origin.Seed(src, []byte("hello"))

	if _, err := coordinator.Read(ctx, src); err != nil {
		t.Fatalf("initial Read of src failed: %v", err)
	}

	if err := coordinator.Rename(ctx, src, dst, backend.MoveOptions{}); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if _, err := coordinator.Stat(ctx, src); err == nil {
		t.Error("expected Stat on src to fail after Rename")
	}

	dstBody, err := coordinator.Read(ctx, dst)
	if err != nil {
		t.Fatalf("Read of dst after Rename failed: %v", err)
	}
	if string(dstBody) != "hello" {
		t.Errorf("expected dst to contain %q after Rename, got %q", "hello", dstBody)
	}
}

// TestReadBackendNotFound tests that Read on an unregistered backend
// returns BackendNotFound.
func TestReadBackendNotFound(t *testing.T) {
	coordinator, _ := openTestCoordinator(t)
	_, err := coordinator.Read(context.Background(), vpath.New("unregistered", "a.txt"))
	if err == nil {
		t.Fatal("expected error for unregistered backend")
	}
}

// TestGCReclaimsInvalidatedBlobs tests that GC frees a blob's storage
// once its cache entry has been invalidated (and thus untracked by the
// policy engine).
func TestGCReclaimsInvalidatedBlobs(t *testing.T) {
	coordinator, origin := openTestCoordinator(t)
	ctx := context.Background()
	path := vpath.New("origin", "a.txt")
	origin.Seed(path, []byte("hello"))

	if _, err := coordinator.Read(ctx, path); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := coordinator.Invalidate(path); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	freed, err := coordinator.GC()
	if err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	if freed == 0 {
		t.Error("expected GC to free the invalidated blob's storage")
	}
}
