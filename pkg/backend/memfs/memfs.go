// Package memfs implements an in-memory Backend, used to exercise the
// cache coordinator in tests without touching the local filesystem.
package memfs

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cfk-cache/cfk/pkg/backend"
	"github.com/cfk-cache/cfk/pkg/cferrors"
	"github.com/cfk-cache/cfk/pkg/vpath"
)

type object struct {
	body     []byte
	modified time.Time
	revision string
}

// Backend is an in-memory Backend. Directories are implicit: any path
// that's a proper prefix of a stored file's path is treated as an
// existing directory.
type Backend struct {
	mu      sync.RWMutex
	id      string
	objects map[string]*object
	nextRev uint64
}

// New creates an empty in-memory backend identified by id.
func New(id string) *Backend {
	return &Backend{id: id, objects: make(map[string]*object)}
}

// ID implements Backend.ID.
func (b *Backend) ID() string {
	return b.id
}

// Capabilities implements Backend.Capabilities.
func (b *Backend) Capabilities() []backend.Capability {
	return []backend.Capability{backend.CapabilityRead, backend.CapabilityWrite, backend.CapabilityDelete}
}

func key(path vpath.VirtualPath) string {
	return strings.Join(path.Segments(), "/")
}

// Seed directly installs body under path, bypassing Write, for test
// setup.
func (b *Backend) Seed(path vpath.VirtualPath, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextRev++
	b.objects[key(path)] = &object{body: body, modified: time.Now().UTC(), revision: revisionString(b.nextRev)}
}

func revisionString(n uint64) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%36]}, buf...)
		n /= 36
	}
	return string(buf)
}

// Stat implements Backend.Stat.
func (b *Backend) Stat(ctx context.Context, path vpath.VirtualPath) (vpath.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	k := key(path)
	if obj, ok := b.objects[k]; ok {
		size := uint64(len(obj.body))
		modified := obj.modified
		revision := obj.revision
		return vpath.Entry{
			Path: path,
			Kind: vpath.KindFile,
			Meta: vpath.Metadata{Size: &size, Modified: &modified, Revision: &revision},
		}, nil
	}
	if b.hasChildren(k) {
		return vpath.Entry{Path: path, Kind: vpath.KindDirectory}, nil
	}
	return vpath.Entry{}, cferrors.NotFound(path.String())
}

func (b *Backend) hasChildren(prefix string) bool {
	if prefix == "" {
		return len(b.objects) > 0
	}
	for k := range b.objects {
		if strings.HasPrefix(k, prefix+"/") {
			return true
		}
	}
	return false
}

// List implements Backend.List.
func (b *Backend) List(ctx context.Context, path vpath.VirtualPath, options backend.ListOptions) (backend.DirectoryListing, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	prefix := key(path)
	listing := backend.DirectoryListing{Path: path}
	seenDirs := make(map[string]struct{})

	for k, obj := range b.objects {
		rest := k
		if prefix != "" {
			if !strings.HasPrefix(k, prefix+"/") {
				continue
			}
			rest = k[len(prefix)+1:]
		}
		if rest == "" {
			continue
		}
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 1 || options.Recursive {
			if options.Recursive {
				segments := strings.Split(rest, "/")
				for i := 1; i < len(segments); i++ {
					dir := strings.Join(segments[:i], "/")
					if _, seen := seenDirs[dir]; !seen {
						seenDirs[dir] = struct{}{}
						listing.Entries = append(listing.Entries, vpath.Entry{Path: path.Join(dir), Kind: vpath.KindDirectory})
					}
				}
			}
			size := uint64(len(obj.body))
			modified := obj.modified
			revision := obj.revision
			listing.Entries = append(listing.Entries, vpath.Entry{
				Path: path.Join(rest),
				Kind: vpath.KindFile,
				Meta: vpath.Metadata{Size: &size, Modified: &modified, Revision: &revision},
			})
		} else if !options.Recursive {
			if _, seen := seenDirs[parts[0]]; !seen {
				seenDirs[parts[0]] = struct{}{}
				listing.Entries = append(listing.Entries, vpath.Entry{
					Path: path.Join(parts[0]),
					Kind: vpath.KindDirectory,
				})
			}
		}
	}
	return listing, nil
}

// Read implements Backend.Read.
func (b *Backend) Read(ctx context.Context, path vpath.VirtualPath, options backend.ReadOptions) (io.ReadCloser, error) {
	b.mu.RLock()
	obj, ok := b.objects[key(path)]
	b.mu.RUnlock()
	if !ok {
		return nil, cferrors.NotFound(path.String())
	}

	body := obj.body
	if options.Offset > 0 {
		if int(options.Offset) >= len(body) {
			body = nil
		} else {
			body = body[options.Offset:]
		}
	}
	if options.Length > 0 && int(options.Length) < len(body) {
		body = body[:options.Length]
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// Write implements Backend.Write.
func (b *Backend) Write(ctx context.Context, path vpath.VirtualPath, body io.Reader, options backend.WriteOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return cferrors.IO("unable to read write body", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := key(path)
	if options.IfMatch != "" {
		existing, ok := b.objects[k]
		if !ok || existing.revision != options.IfMatch {
			return cferrors.Conflict(path.String())
		}
	}
	b.nextRev++
	b.objects[k] = &object{body: data, modified: time.Now().UTC(), revision: revisionString(b.nextRev)}
	return nil
}

// Delete implements Backend.Delete.
func (b *Backend) Delete(ctx context.Context, path vpath.VirtualPath, options backend.DeleteOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key(path)
	if _, ok := b.objects[k]; ok {
		delete(b.objects, k)
		return nil
	}
	if options.Recursive {
		removed := false
		for existing := range b.objects {
			if strings.HasPrefix(existing, k+"/") {
				delete(b.objects, existing)
				removed = true
			}
		}
		if removed {
			return nil
		}
	}
	return cferrors.NotFound(path.String())
}

// Copy implements Backend.Copy. It returns Unsupported: memfs advertises
// only Read, Write and Delete, so the coordinator falls back to a
// read-then-write.
func (b *Backend) Copy(ctx context.Context, src, dst vpath.VirtualPath, options backend.CopyOptions) error {
	return cferrors.Unsupported("memfs: native copy")
}

// Move implements Backend.Move. See Copy.
func (b *Backend) Move(ctx context.Context, src, dst vpath.VirtualPath, options backend.MoveOptions) error {
	return cferrors.Unsupported("memfs: native move")
}

// Space implements Backend.Space. memfs advertises no space capability.
func (b *Backend) Space(ctx context.Context) (backend.SpaceInfo, error) {
	return backend.SpaceInfo{}, cferrors.Unsupported("memfs: space")
}

// Watch implements Backend.Watch. memfs has no push notification
// source.
func (b *Backend) Watch(ctx context.Context, path vpath.VirtualPath) (<-chan vpath.VirtualPath, func(), error) {
	return nil, func() {}, nil
}

// Shutdown implements Backend.Shutdown.
func (b *Backend) Shutdown() error {
	return nil
}
