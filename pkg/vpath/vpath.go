// Package vpath defines the virtual path model: a backend-qualified path
// that the cache engine indexes, independent of the backend's own notion
// of paths or the local filesystem.
package vpath

import (
	"errors"
	"strings"
)

// VirtualPath is an ordered pair of a backend identifier and a normalized,
// slash-joined path. Both fields are plain strings, so VirtualPath is
// comparable with == and usable directly as a map key; segment-wise
// operations split path on demand.
type VirtualPath struct {
	backend string
	path    string
}

// Kind identifies what an Entry refers to.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDirectory
	KindSymlink
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// New constructs a VirtualPath from a backend identifier and a slash
// separated path string. Empty segments (from leading, trailing, or
// duplicated separators) are dropped; "." segments are dropped; ".."
// segments pop the previous segment (without popping past the root).
func New(backend, path string) VirtualPath {
	return VirtualPath{backend: backend, path: strings.Join(normalize(strings.Split(path, "/")), "/")}
}

// normalize drops empty and "." segments and resolves ".." against what's
// been accumulated so far.
func normalize(raw []string) []string {
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, s)
		}
	}
	return segments
}

// ParseURI parses a canonical "cfk://<backend>/<seg1>/<seg2>/..." URI. It
// returns false if the string doesn't carry the required scheme prefix.
func ParseURI(uri string) (VirtualPath, bool) {
	const prefix = "cfk://"
	if !strings.HasPrefix(uri, prefix) {
		return VirtualPath{}, false
	}
	rest := uri[len(prefix):]
	backend, path, _ := strings.Cut(rest, "/")
	if backend == "" {
		return VirtualPath{}, false
	}
	return New(backend, path), true
}

// Backend returns the backend identifier.
func (p VirtualPath) Backend() string {
	return p.backend
}

// Segments returns the path's segments, split fresh on every call.
func (p VirtualPath) Segments() []string {
	if p.path == "" {
		return nil
	}
	return strings.Split(p.path, "/")
}

// IsRoot reports whether the path has no segments.
func (p VirtualPath) IsRoot() bool {
	return p.path == ""
}

// Join appends a relative, slash-separated path to p, applying the same
// "." and ".." handling as New.
func (p VirtualPath) Join(relative string) VirtualPath {
	combined := append(p.Segments(), strings.Split(relative, "/")...)
	return VirtualPath{backend: p.backend, path: strings.Join(normalize(combined), "/")}
}

// Parent returns the path one level up, or false if p is already the root.
func (p VirtualPath) Parent() (VirtualPath, bool) {
	segments := p.Segments()
	if len(segments) == 0 {
		return VirtualPath{}, false
	}
	return VirtualPath{backend: p.backend, path: strings.Join(segments[:len(segments)-1], "/")}, true
}

// Name returns the final segment, or "" at the root.
func (p VirtualPath) Name() string {
	segments := p.Segments()
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// Extension returns the substring of Name() after its final ".", or false
// if Name() has no ".".
func (p VirtualPath) Extension() (string, bool) {
	name := p.Name()
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return "", false
	}
	return name[idx+1:], true
}

// String returns the canonical URI form, "cfk://<backend>/<seg1>/...",
// with a trailing "/" at the root.
func (p VirtualPath) String() string {
	if p.IsRoot() {
		return "cfk://" + p.backend + "/"
	}
	return "cfk://" + p.backend + "/" + p.path
}

// ToURI is an alias for String, named for parity with ParseURI.
func (p VirtualPath) ToURI() string {
	return p.String()
}

// Equal reports structural equality: same backend, same segments.
func (p VirtualPath) Equal(other VirtualPath) bool {
	return p == other
}

// MarshalBinary encodes p as its canonical URI, so encoders that skip
// unexported fields (such as CBOR) still keep the backend and path.
func (p VirtualPath) MarshalBinary() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalBinary decodes a canonical URI produced by MarshalBinary.
func (p *VirtualPath) UnmarshalBinary(data []byte) error {
	if string(data) == (VirtualPath{}).String() {
		*p = VirtualPath{}
		return nil
	}
	parsed, ok := ParseURI(string(data))
	if !ok {
		return errors.New("invalid virtual path URI")
	}
	*p = parsed
	return nil
}
