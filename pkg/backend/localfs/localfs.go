// Package localfs implements a Backend over a directory on the local
// filesystem.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cfk-cache/cfk/pkg/backend"
	"github.com/cfk-cache/cfk/pkg/cferrors"
	"github.com/cfk-cache/cfk/pkg/vpath"
)

// Backend is a Backend rooted at a directory on the local filesystem.
type Backend struct {
	id   string
	root string
}

// New creates a local filesystem backend identified by id and rooted at
// root. root must already exist.
func New(id, root string) (*Backend, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, cferrors.IO("unable to stat backend root", err)
	}
	if !info.IsDir() {
		return nil, cferrors.NotADirectory(root)
	}
	return &Backend{id: id, root: root}, nil
}

// ID implements Backend.ID.
func (b *Backend) ID() string {
	return b.id
}

// Capabilities implements Backend.Capabilities.
func (b *Backend) Capabilities() []backend.Capability {
	return []backend.Capability{
		backend.CapabilityRead,
		backend.CapabilityWrite,
		backend.CapabilityDelete,
		backend.CapabilityCopy,
		backend.CapabilityMove,
		backend.CapabilitySpace,
	}
}

// resolve converts a virtual path into an absolute filesystem path,
// rejecting any path that would escape root.
func (b *Backend) resolve(path vpath.VirtualPath) (string, error) {
	joined := filepath.Join(append([]string{b.root}, path.Segments()...)...)
	if joined != b.root && !strings.HasPrefix(joined, b.root+string(filepath.Separator)) {
		return "", cferrors.InvalidPath(path.String())
	}
	return joined, nil
}

func entryFromFileInfo(path vpath.VirtualPath, info os.FileInfo) vpath.Entry {
	kind := vpath.KindFile
	if info.IsDir() {
		kind = vpath.KindDirectory
	} else if info.Mode()&os.ModeSymlink != 0 {
		kind = vpath.KindSymlink
	}

	size := uint64(info.Size())
	modified := info.ModTime()
	permissions := uint32(info.Mode().Perm())

	return vpath.Entry{
		Path: path,
		Kind: kind,
		Meta: vpath.Metadata{
			Size:        &size,
			Modified:    &modified,
			Permissions: &permissions,
		},
	}
}

// Stat implements Backend.Stat.
func (b *Backend) Stat(ctx context.Context, path vpath.VirtualPath) (vpath.Entry, error) {
	full, err := b.resolve(path)
	if err != nil {
		return vpath.Entry{}, err
	}
	info, err := os.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return vpath.Entry{}, cferrors.NotFound(path.String())
		}
		return vpath.Entry{}, cferrors.IO("unable to stat path", err)
	}
	return entryFromFileInfo(path, info), nil
}

func excluded(relative string, patterns []string) bool {
	for _, pattern := range patterns {
		if match, _ := doublestar.Match(pattern, relative); match {
			return true
		}
	}
	return false
}

// List implements Backend.List.
func (b *Backend) List(ctx context.Context, path vpath.VirtualPath, options backend.ListOptions) (backend.DirectoryListing, error) {
	full, err := b.resolve(path)
	if err != nil {
		return backend.DirectoryListing{}, err
	}

	listing := backend.DirectoryListing{Path: path}

	var walk func(dirPath vpath.VirtualPath, dirFull string) error
	walk = func(dirPath vpath.VirtualPath, dirFull string) error {
		children, err := os.ReadDir(dirFull)
		if err != nil {
			if os.IsNotExist(err) {
				return cferrors.NotFound(dirPath.String())
			}
			return cferrors.IO("unable to read directory", err)
		}
		for _, child := range children {
			if err := ctx.Err(); err != nil {
				return cferrors.Cancelled()
			}
			childPath := dirPath.Join(child.Name())
			relative := strings.Join(childPath.Segments(), "/")
			if excluded(relative, options.ExcludePatterns) {
				continue
			}
			info, err := child.Info()
			if err != nil {
				continue
			}
			listing.Entries = append(listing.Entries, entryFromFileInfo(childPath, info))
			if options.Recursive && child.IsDir() {
				if err := walk(childPath, filepath.Join(dirFull, child.Name())); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(path, full); err != nil {
		return backend.DirectoryListing{}, err
	}
	return listing, nil
}

// Read implements Backend.Read.
func (b *Backend) Read(ctx context.Context, path vpath.VirtualPath, options backend.ReadOptions) (io.ReadCloser, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cferrors.NotFound(path.String())
		}
		return nil, cferrors.IO("unable to open file", err)
	}
	if options.Offset > 0 {
		if _, err := file.Seek(options.Offset, io.SeekStart); err != nil {
			file.Close()
			return nil, cferrors.IO("unable to seek file", err)
		}
	}
	if options.Length > 0 {
		return struct {
			io.Reader
			io.Closer
		}{io.LimitReader(file, options.Length), file}, nil
	}
	return file, nil
}

// Write implements Backend.Write. options.IfMatch is not checked: local
// files carry no revision, so the write always proceeds.
func (b *Backend) Write(ctx context.Context, path vpath.VirtualPath, body io.Reader, options backend.WriteOptions) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return cferrors.IO("unable to create parent directory", err)
	}

	temp, err := os.CreateTemp(filepath.Dir(full), ".tmp-"+filepath.Base(full)+"-")
	if err != nil {
		return cferrors.IO("unable to create temporary file", err)
	}
	tempPath := temp.Name()
	succeeded := false
	defer func() {
		if !succeeded {
			temp.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := io.Copy(temp, body); err != nil {
		return cferrors.IO("unable to write file body", err)
	}
	if err := temp.Sync(); err != nil {
		return cferrors.IO("unable to sync file body", err)
	}
	if err := temp.Close(); err != nil {
		return cferrors.IO("unable to close temporary file", err)
	}
	if err := os.Rename(tempPath, full); err != nil {
		return cferrors.IO("unable to rename file into place", err)
	}
	succeeded = true
	return nil
}

// Delete implements Backend.Delete.
func (b *Backend) Delete(ctx context.Context, path vpath.VirtualPath, options backend.DeleteOptions) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	if options.Recursive {
		if err := os.RemoveAll(full); err != nil {
			return cferrors.IO("unable to remove path recursively", err)
		}
		return nil
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return cferrors.NotFound(path.String())
		}
		return cferrors.IO("unable to remove path", err)
	}
	return nil
}

// Copy implements Backend.Copy.
func (b *Backend) Copy(ctx context.Context, src, dst vpath.VirtualPath, options backend.CopyOptions) error {
	fullSrc, err := b.resolve(src)
	if err != nil {
		return err
	}
	fullDst, err := b.resolve(dst)
	if err != nil {
		return err
	}
	if !options.Overwrite {
		if _, err := os.Stat(fullDst); err == nil {
			return cferrors.Conflict(dst.String())
		}
	}
	source, err := os.Open(fullSrc)
	if err != nil {
		if os.IsNotExist(err) {
			return cferrors.NotFound(src.String())
		}
		return cferrors.IO("unable to open copy source", err)
	}
	defer source.Close()
	return b.Write(ctx, dst, source, backend.WriteOptions{})
}

// Move implements Backend.Move.
func (b *Backend) Move(ctx context.Context, src, dst vpath.VirtualPath, options backend.MoveOptions) error {
	fullSrc, err := b.resolve(src)
	if err != nil {
		return err
	}
	fullDst, err := b.resolve(dst)
	if err != nil {
		return err
	}
	if !options.Overwrite {
		if _, err := os.Stat(fullDst); err == nil {
			return cferrors.Conflict(dst.String())
		}
	}
	if err := os.MkdirAll(filepath.Dir(fullDst), 0700); err != nil {
		return cferrors.IO("unable to create destination parent directory", err)
	}
	if err := os.Rename(fullSrc, fullDst); err != nil {
		if os.IsNotExist(err) {
			return cferrors.NotFound(src.String())
		}
		return cferrors.IO("unable to rename path", err)
	}
	return nil
}

// Space implements Backend.Space. On Linux it queries the underlying
// filesystem with statfs; other platforms report zero values, since the
// standard library offers no portable capacity query.
func (b *Backend) Space(ctx context.Context) (backend.SpaceInfo, error) {
	return queryStatfs(b.root)
}

// Watch implements Backend.Watch. The local backend has no push
// notification source; callers relying on cache freshness should use
// TTLs instead.
func (b *Backend) Watch(ctx context.Context, path vpath.VirtualPath) (<-chan vpath.VirtualPath, func(), error) {
	return nil, func() {}, nil
}

// Shutdown implements Backend.Shutdown. The local backend holds no
// persistent resources between calls.
func (b *Backend) Shutdown() error {
	return nil
}
