package metacache

import (
	"testing"
	"time"

	"github.com/cfk-cache/cfk/pkg/logging"
	"github.com/cfk-cache/cfk/pkg/vpath"
)

func openTestCache(t *testing.T, config Config) *Cache {
	t.Helper()
	if config.DurablePath == "" {
		config.DurablePath = ":memory:"
	}
	cache, err := Open(config, logging.RootLogger.Sublogger("metacache-test"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func testEntry(path vpath.VirtualPath) vpath.Entry {
	size := uint64(42)
	return vpath.Entry{Path: path, Kind: vpath.KindFile, Meta: vpath.Metadata{Size: &size}}
}

// TestPutGetEntryRoundTrip tests basic entry round-tripping through the
// memory tier.
func TestPutGetEntryRoundTrip(t *testing.T) {
	cache := openTestCache(t, Config{})
	path := vpath.New("origin", "a/b.txt")
	entry := testEntry(path)

	if err := cache.PutEntry(entry); err != nil {
		t.Fatalf("PutEntry failed: %v", err)
	}
	got, ok, err := cache.GetEntry(path)
	if err != nil || !ok {
		t.Fatalf("GetEntry failed: ok=%v err=%v", ok, err)
	}
	if *got.Meta.Size != 42 {
		t.Errorf("expected size 42, got %d", *got.Meta.Size)
	}

	stats := cache.Stats()
	if stats.MemoryHits != 1 {
		t.Errorf("expected one memory hit, got %d", stats.MemoryHits)
	}
}

// TestDurableTierSurvivesMemoryReset tests that an entry evicted from
// memory is still retrievable from the durable tier.
func TestDurableTierSurvivesMemoryReset(t *testing.T) {
	cache := openTestCache(t, Config{})
	path := vpath.New("origin", "a/b.txt")
	if err := cache.PutEntry(testEntry(path)); err != nil {
		t.Fatalf("PutEntry failed: %v", err)
	}

	cache.resetMemoryLocked()

	_, ok, err := cache.GetEntry(path)
	if err != nil || !ok {
		t.Fatalf("expected durable tier fallback to succeed: ok=%v err=%v", ok, err)
	}
	stats := cache.Stats()
	if stats.DurableHits != 1 {
		t.Errorf("expected one durable hit, got %d", stats.DurableHits)
	}
}

// TestS5TTLExpiry implements scenario S5: an entry stored with a short
// TTL is retrievable before expiry and absent after.
func TestS5TTLExpiry(t *testing.T) {
	cache := openTestCache(t, Config{})
	path := vpath.New("origin", "ephemeral.txt")

	if err := cache.PutEntryWithTTL(testEntry(path), 20*time.Millisecond); err != nil {
		t.Fatalf("PutEntryWithTTL failed: %v", err)
	}
	if _, ok, err := cache.GetEntry(path); err != nil || !ok {
		t.Fatalf("expected entry to be present before expiry: ok=%v err=%v", ok, err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok, err := cache.GetEntry(path); err != nil || ok {
		t.Fatalf("expected entry to be absent after expiry: ok=%v err=%v", ok, err)
	}
}

// TestTTLMonotonicity tests testable property 6: re-putting an entry
// with a later TTL supersedes the earlier expiry rather than shortening
// it.
func TestTTLMonotonicity(t *testing.T) {
	cache := openTestCache(t, Config{})
	path := vpath.New("origin", "renewed.txt")

	if err := cache.PutEntryWithTTL(testEntry(path), 20*time.Millisecond); err != nil {
		t.Fatalf("initial PutEntryWithTTL failed: %v", err)
	}
	if err := cache.PutEntryWithTTL(testEntry(path), time.Hour); err != nil {
		t.Fatalf("renewal PutEntryWithTTL failed: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok, err := cache.GetEntry(path); err != nil || !ok {
		t.Fatalf("expected renewed TTL to keep the entry alive past its original expiry: ok=%v err=%v", ok, err)
	}
}

// TestPutGetDirectoryRoundTrip tests directory listing round-tripping.
func TestPutGetDirectoryRoundTrip(t *testing.T) {
	cache := openTestCache(t, Config{})
	dir := vpath.New("origin", "docs")
	entries := []vpath.Entry{testEntry(dir.Join("a.txt")), testEntry(dir.Join("b.txt"))}

	if err := cache.PutDirectory(dir, entries); err != nil {
		t.Fatalf("PutDirectory failed: %v", err)
	}
	got, ok, err := cache.GetDirectory(dir)
	if err != nil || !ok {
		t.Fatalf("GetDirectory failed: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 directory entries, got %d", len(got))
	}
}

// TestPutDirectoryCachesEachChildEntryIndependently tests that
// PutDirectory also populates each child's own entry record, so a
// direct GetEntry on a child hits without ever having called PutEntry
// for it separately.
func TestPutDirectoryCachesEachChildEntryIndependently(t *testing.T) {
	cache := openTestCache(t, Config{})
	dir := vpath.New("origin", "docs")
	childA := dir.Join("a.txt")
	childB := dir.Join("b.txt")

	if err := cache.PutDirectory(dir, []vpath.Entry{testEntry(childA), testEntry(childB)}); err != nil {
		t.Fatalf("PutDirectory failed: %v", err)
	}

	if _, ok, err := cache.GetEntry(childA); err != nil || !ok {
		t.Fatalf("expected PutDirectory to have cached child a.txt's entry independently: ok=%v err=%v", ok, err)
	}
	if _, ok, err := cache.GetEntry(childB); err != nil || !ok {
		t.Fatalf("expected PutDirectory to have cached child b.txt's entry independently: ok=%v err=%v", ok, err)
	}
}

// TestGetDirectoryOmitsChildInvalidatedIndependently tests that
// GetDirectory rehydrates children through GetEntry rather than serving
// a denormalized snapshot, so invalidating just one child removes it
// from subsequent directory listings without touching its siblings.
func TestGetDirectoryOmitsChildInvalidatedIndependently(t *testing.T) {
	cache := openTestCache(t, Config{})
	dir := vpath.New("origin", "docs")
	childA := dir.Join("a.txt")
	childB := dir.Join("b.txt")

	if err := cache.PutDirectory(dir, []vpath.Entry{testEntry(childA), testEntry(childB)}); err != nil {
		t.Fatalf("PutDirectory failed: %v", err)
	}
	if err := cache.Invalidate(childA); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	got, ok, err := cache.GetDirectory(dir)
	if err != nil || !ok {
		t.Fatalf("GetDirectory failed: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 surviving child after invalidating a.txt independently, got %d", len(got))
	}
	if got[0].Path != childB {
		t.Errorf("expected surviving child to be b.txt, got %v", got[0].Path)
	}
}

// TestInvalidate tests that Invalidate removes an entry from both tiers.
func TestInvalidate(t *testing.T) {
	cache := openTestCache(t, Config{})
	path := vpath.New("origin", "a.txt")
	cache.PutEntry(testEntry(path))

	if err := cache.Invalidate(path); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok, _ := cache.GetEntry(path); ok {
		t.Error("expected entry to be absent after Invalidate")
	}
}

// TestInvalidateDirectoryCascade tests testable property 9: invalidating
// a directory also invalidates every entry cached under its prefix.
func TestInvalidateDirectoryCascade(t *testing.T) {
	cache := openTestCache(t, Config{})
	dir := vpath.New("origin", "docs")
	childA := dir.Join("a.txt")
	childB := dir.Join("b.txt")

	cache.PutEntry(testEntry(childA))
	cache.PutEntry(testEntry(childB))
	cache.PutDirectory(dir, []vpath.Entry{testEntry(childA), testEntry(childB)})

	if err := cache.InvalidateDirectory(dir); err != nil {
		t.Fatalf("InvalidateDirectory failed: %v", err)
	}

	if _, ok, _ := cache.GetDirectory(dir); ok {
		t.Error("expected directory listing to be invalidated")
	}
	if _, ok, _ := cache.GetEntry(childA); ok {
		t.Error("expected child entry a.txt to be invalidated by the directory cascade")
	}
	if _, ok, _ := cache.GetEntry(childB); ok {
		t.Error("expected child entry b.txt to be invalidated by the directory cascade")
	}
}

// TestClearBackend tests that ClearBackend only affects the named
// backend.
func TestClearBackend(t *testing.T) {
	cache := openTestCache(t, Config{})
	originPath := vpath.New("origin", "a.txt")
	otherPath := vpath.New("other", "a.txt")

	cache.PutEntry(testEntry(originPath))
	cache.PutEntry(testEntry(otherPath))

	if err := cache.ClearBackend("origin"); err != nil {
		t.Fatalf("ClearBackend failed: %v", err)
	}

	if _, ok, _ := cache.GetEntry(originPath); ok {
		t.Error("expected origin entry to be cleared")
	}
	if _, ok, _ := cache.GetEntry(otherPath); !ok {
		t.Error("expected other backend's entry to survive ClearBackend(\"origin\")")
	}
}

// TestPruneExpired tests that PruneExpired removes expired entries
// proactively.
func TestPruneExpired(t *testing.T) {
	cache := openTestCache(t, Config{})
	path := vpath.New("origin", "a.txt")
	if err := cache.PutEntryWithTTL(testEntry(path), 10*time.Millisecond); err != nil {
		t.Fatalf("PutEntryWithTTL failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	removed, err := cache.PruneExpired()
	if err != nil {
		t.Fatalf("PruneExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected PruneExpired to remove 1 entry, got %d", removed)
	}
}
