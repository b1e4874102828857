package memfs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cfk-cache/cfk/pkg/backend"
	"github.com/cfk-cache/cfk/pkg/vpath"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := New("mem")
	ctx := context.Background()
	path := vpath.New("mem", "a/b.txt")

	if err := b.Write(ctx, path, bytes.NewReader([]byte("hello")), backend.WriteOptions{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	reader, err := b.Read(ctx, path, backend.ReadOptions{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	defer reader.Close()
	got, _ := io.ReadAll(reader)
	if string(got) != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
}

func TestListReportsImplicitDirectories(t *testing.T) {
	b := New("mem")
	ctx := context.Background()
	b.Seed(vpath.New("mem", "docs/a.txt"), []byte("a"))
	b.Seed(vpath.New("mem", "docs/nested/b.txt"), []byte("b"))

	listing, err := b.List(ctx, vpath.New("mem", "docs"), backend.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listing.Entries) != 2 {
		t.Fatalf("expected 2 entries (a.txt file, nested dir), got %d", len(listing.Entries))
	}

	foundDir := false
	for _, entry := range listing.Entries {
		if entry.Kind == vpath.KindDirectory && entry.Path.Name() == "nested" {
			foundDir = true
		}
	}
	if !foundDir {
		t.Error("expected an implicit directory entry for nested")
	}
}

func TestWriteIfMatchConflict(t *testing.T) {
	b := New("mem")
	ctx := context.Background()
	path := vpath.New("mem", "a.txt")
	b.Seed(path, []byte("v1"))

	err := b.Write(ctx, path, bytes.NewReader([]byte("v2")), backend.WriteOptions{IfMatch: "wrong-revision"})
	if err == nil {
		t.Fatal("expected Conflict error for mismatched IfMatch")
	}
}

func TestDeleteRecursive(t *testing.T) {
	b := New("mem")
	ctx := context.Background()
	b.Seed(vpath.New("mem", "docs/a.txt"), []byte("a"))
	b.Seed(vpath.New("mem", "docs/b.txt"), []byte("b"))

	if err := b.Delete(ctx, vpath.New("mem", "docs"), backend.DeleteOptions{Recursive: true}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := b.Stat(ctx, vpath.New("mem", "docs/a.txt")); err == nil {
		t.Error("expected recursive delete to remove docs/a.txt")
	}
}
