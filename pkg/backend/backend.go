// Package backend defines the origin facade: the interface every
// storage provider (local filesystem, object store, remote API) must
// implement for the cache coordinator to read through, list, and write
// back to it.
package backend

import (
	"context"
	"io"
	"time"

	"github.com/cfk-cache/cfk/pkg/vpath"
)

// Capability names an optional operation a Backend may or may not
// support. Backend.Capabilities reports the subset a given instance
// implements; callers should check before invoking an optional method,
// though every Backend method is also individually safe to call and
// will return an Unsupported error on its own if the capability is
// absent.
type Capability int

const (
	// CapabilityRead indicates Read and Stat are implemented against
	// live origin data (as opposed to a write-only sink).
	CapabilityRead Capability = iota
	// CapabilityWrite indicates Write is implemented.
	CapabilityWrite
	// CapabilityDelete indicates Delete is implemented.
	CapabilityDelete
	// CapabilityCopy indicates Copy is implemented natively (rather than
	// falling back to read+write at the coordinator level).
	CapabilityCopy
	// CapabilityMove indicates Move is implemented natively.
	CapabilityMove
	// CapabilitySpace indicates Space is implemented.
	CapabilitySpace
	// CapabilitySearch indicates the backend can answer content or
	// metadata search queries beyond a directory listing. No reference
	// backend implements it; declaring it is purely advisory for future
	// providers.
	CapabilitySearch
	// CapabilityVersioning indicates the backend retains prior
	// revisions of a path and can address them.
	CapabilityVersioning
	// CapabilitySharing indicates the backend can mint shareable links
	// or grants for a path.
	CapabilitySharing
	// CapabilityResumableUploads indicates Write supports resuming a
	// partial upload rather than restarting it.
	CapabilityResumableUploads
	// CapabilityContentHashing indicates the backend reports its own
	// content hash for a path (so the coordinator can skip a redundant
	// local hash on ingest).
	CapabilityContentHashing
)

// ListOptions configures a List call.
type ListOptions struct {
	// Recursive requests a full subtree listing rather than just the
	// immediate children of the target path.
	Recursive bool
	// ExcludePatterns are doublestar glob patterns; matching paths (and,
	// for directories, everything beneath them) are omitted from the
	// listing.
	ExcludePatterns []string
}

// DirectoryListing is the result of a List call.
type DirectoryListing struct {
	Path    vpath.VirtualPath
	Entries []vpath.Entry
}

// ReadOptions configures a Read call.
type ReadOptions struct {
	// Offset and Length request a byte range rather than the full body.
	// Length of zero means "to the end."
	Offset, Length int64
}

// WriteOptions configures a Write call.
type WriteOptions struct {
	// IfMatch, when non-empty, requires the origin's current revision to
	// equal this value or the write fails with a Conflict error.
	IfMatch string
	// MimeType is an optional content-type hint for origins that track
	// one.
	MimeType string
}

// DeleteOptions configures a Delete call.
type DeleteOptions struct {
	Recursive bool
}

// CopyOptions configures a Copy call.
type CopyOptions struct {
	Overwrite bool
}

// MoveOptions configures a Move call.
type MoveOptions struct {
	Overwrite bool
}

// SpaceInfo reports an origin's capacity, where meaningful.
type SpaceInfo struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// Backend defines the interface to which every origin provider must
// adhere. None of its methods are required to be safe for concurrent
// invocation on the same path, though distinct paths may be accessed
// concurrently unless a specific implementation documents otherwise.
// Optional methods (Write, Delete, Copy, Move, Space) return an
// Unsupported error from implementations that don't back the
// corresponding capability; callers may consult Capabilities to avoid
// the round trip.
type Backend interface {
	// ID returns the backend identifier under which its virtual paths
	// are rooted.
	ID() string

	// Capabilities reports which optional methods this backend
	// implements.
	Capabilities() []Capability

	// Stat retrieves metadata for a single path without reading its
	// body.
	Stat(ctx context.Context, path vpath.VirtualPath) (vpath.Entry, error)

	// List enumerates the contents of a directory path.
	List(ctx context.Context, path vpath.VirtualPath, options ListOptions) (DirectoryListing, error)

	// Read opens a streaming reader for a file path's body. The caller
	// must close the returned reader.
	Read(ctx context.Context, path vpath.VirtualPath, options ReadOptions) (io.ReadCloser, error)

	// Write stores body at path, creating or overwriting it.
	Write(ctx context.Context, path vpath.VirtualPath, body io.Reader, options WriteOptions) error

	// Delete removes path.
	Delete(ctx context.Context, path vpath.VirtualPath, options DeleteOptions) error

	// Copy duplicates src to dst.
	Copy(ctx context.Context, src, dst vpath.VirtualPath, options CopyOptions) error

	// Move relocates src to dst.
	Move(ctx context.Context, src, dst vpath.VirtualPath, options MoveOptions) error

	// Space reports capacity information for the backend root, where
	// meaningful.
	Space(ctx context.Context) (SpaceInfo, error)

	// Watch subscribes to change notifications under path, if the
	// backend supports push invalidation. It returns a channel of
	// changed paths and a cancel function; the channel is closed once
	// cancel is called or the backend's connection ends. Backends
	// without push support return a nil channel and a no-op cancel.
	Watch(ctx context.Context, path vpath.VirtualPath) (<-chan vpath.VirtualPath, func(), error)

	// Shutdown releases any resources held by the backend (open
	// connections, file handles, watchers). It's safe to call more than
	// once and should be the last call made on a Backend.
	Shutdown() error
}

// HasCapability reports whether backend advertises capability.
func HasCapability(backend Backend, capability Capability) bool {
	for _, c := range backend.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}

// DefaultTimeout bounds a single Backend call when no context deadline
// is already set by the caller.
const DefaultTimeout = 30 * time.Second
