package blobstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cfk-cache/cfk/pkg/cferrors"
	"github.com/cfk-cache/cfk/pkg/content"
	"github.com/cfk-cache/cfk/pkg/logging"
)

func openTestStore(t *testing.T, config Config) *Store {
	t.Helper()
	if config.Path == "" {
		config.Path = t.TempDir()
	}
	store, err := Open(config, logging.RootLogger.Sublogger("blobstore-test"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

// TestPutGetRoundTrip tests invariant 1: get(put(b)) == b.
func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t, Config{})

	body := []byte("hello, cache")
	cid, err := store.Put(body)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(cid)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Error("round-tripped body does not match original")
	}
}

// TestS1DedupAndGC implements scenario S1 from the testable properties.
func TestS1DedupAndGC(t *testing.T) {
	store := openTestStore(t, Config{})

	helloCID, err := store.Put([]byte("hello"))
	if err != nil {
		t.Fatalf("Put(hello) failed: %v", err)
	}
	if dup, err := store.Put([]byte("hello")); err != nil || dup != helloCID {
		t.Fatalf("second Put(hello) should dedup to the same CID, got %v, err %v", dup, err)
	}
	worldCID, err := store.Put([]byte("world"))
	if err != nil {
		t.Fatalf("Put(world) failed: %v", err)
	}

	cids, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cids) != 2 {
		t.Fatalf("expected 2 CIDs after dedup, got %d", len(cids))
	}

	helloSize, err := store.Size(helloCID)
	if err != nil {
		t.Fatalf("Size(hello) failed: %v", err)
	}

	freed, err := store.GC(map[content.CID]struct{}{worldCID: {}})
	if err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	if freed != helloSize {
		t.Errorf("GC freed %d bytes, expected %d", freed, helloSize)
	}

	remaining, err := store.List()
	if err != nil {
		t.Fatalf("List after GC failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0] != worldCID {
		t.Errorf("expected only %v to remain after GC, got %v", worldCID, remaining)
	}

	if _, err := store.Get(helloCID); cferrors.KindOf(err) != cferrors.KindNotFound {
		t.Errorf("expected NotFound for GC'd CID, got %v", err)
	}
}

// TestS2CompressionPolicy implements scenario S2.
func TestS2CompressionPolicy(t *testing.T) {
	store := openTestStore(t, Config{Compress: true, CompressThreshold: 10})

	small := []byte("OK!\n")
	smallCID, err := store.Put(small)
	if err != nil {
		t.Fatalf("Put(small) failed: %v", err)
	}
	storedSmall, err := os.ReadFile(smallCID.StoragePath(store.root))
	if err != nil {
		t.Fatalf("unable to read stored small body: %v", err)
	}
	if !bytes.Equal(storedSmall, small) {
		t.Error("body below compress_threshold should be stored raw")
	}

	large := bytes.Repeat([]byte{0}, 1024)
	largeCID, err := store.Put(large)
	if err != nil {
		t.Fatalf("Put(large) failed: %v", err)
	}
	storedLarge, err := os.ReadFile(largeCID.StoragePath(store.root))
	if err != nil {
		t.Fatalf("unable to read stored large body: %v", err)
	}
	if len(storedLarge) >= len(large) {
		t.Errorf("expected compressed storage to be smaller than %d bytes, got %d", len(large), len(storedLarge))
	}

	got, err := store.Get(largeCID)
	if err != nil {
		t.Fatalf("Get(large) failed: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Error("decompressed body does not match original")
	}
}

// TestS3Verification implements scenario S3.
func TestS3Verification(t *testing.T) {
	store := openTestStore(t, Config{VerifyOnRead: true})

	body := []byte("verify me")
	cid, err := store.Put(body)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path := cid.StoragePath(store.root)
	stored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unable to read stored file: %v", err)
	}
	stored[0] ^= 0xFF
	if err := os.WriteFile(path, stored, 0600); err != nil {
		t.Fatalf("unable to corrupt stored file: %v", err)
	}

	if _, err := store.Get(cid); cferrors.KindOf(err) != cferrors.KindCorruptedContent {
		t.Errorf("expected CorruptedContent after corruption, got %v", err)
	}
}

// TestMixedCorpusRead tests invariant 4: a body put without compression is
// readable by a store with compression enabled, and vice versa.
func TestMixedCorpusRead(t *testing.T) {
	root := t.TempDir()

	uncompressedStore := openTestStore(t, Config{Path: root, Compress: false})
	body := bytes.Repeat([]byte("abc"), 100)
	cid, err := uncompressedStore.Put(body)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	compressedStore := openTestStore(t, Config{Path: root, Compress: true, CompressThreshold: 1})
	got, err := compressedStore.Get(cid)
	if err != nil {
		t.Fatalf("Get from compression-enabled store failed: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Error("compression-enabled store failed to read an uncompressed body")
	}
}

// TestStreamingWriter tests that the streaming writer produces the same
// CID and body as a one-shot Put of the concatenated chunks.
func TestStreamingWriter(t *testing.T) {
	store := openTestStore(t, Config{})

	writer, err := store.NewWriter()
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	chunks := [][]byte{[]byte("part one "), []byte("part two ")}
	for _, chunk := range chunks {
		if _, err := writer.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	cid, err := writer.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := store.Get(cid)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("part one part two ")) {
		t.Error("streamed body does not match expected concatenation")
	}
}

// TestGCSweepsOrphanedTemporaryFiles tests that the temp file of a
// streaming writer left unfinished by a simulated crash is collected by GC.
func TestGCSweepsOrphanedTemporaryFiles(t *testing.T) {
	store := openTestStore(t, Config{})

	writer, err := store.NewWriter()
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	writer.Write([]byte("abandoned"))
	orphanPath := writer.path
	writer.file.Close()
	writer.finished = true // simulate a crash rather than a clean Abort

	if _, err := os.Stat(orphanPath); err != nil {
		t.Fatalf("expected orphan temp file to exist before GC: %v", err)
	}

	if _, err := store.GC(nil); err != nil {
		t.Fatalf("GC failed: %v", err)
	}

	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Error("expected GC to sweep the orphaned streaming-writer temp file")
	}
}

// TestListSkipsMalformedShardContents tests that List tolerates stray
// non-CID files within shard directories.
func TestListSkipsMalformedShardContents(t *testing.T) {
	store := openTestStore(t, Config{})

	cid, err := store.Put([]byte("ok"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	shardDir := filepath.Dir(cid.StoragePath(store.root))
	if err := os.WriteFile(filepath.Join(shardDir, "not-a-cid"), []byte("junk"), 0600); err != nil {
		t.Fatalf("unable to write stray file: %v", err)
	}

	cids, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cids) != 1 || cids[0] != cid {
		t.Errorf("expected List to skip the stray file and return only %v, got %v", cid, cids)
	}
}
