package vpath

import (
	"time"
)

// Entry describes a single virtual-filesystem object: its path, its kind,
// and whatever metadata the origin backend reported for it.
type Entry struct {
	Path VirtualPath
	Kind Kind
	Meta Metadata
}

// Metadata carries optional origin-reported attributes. Every field is
// optional: the origin backend may not report it, so a nil/zero field
// means "unknown," not "zero."
type Metadata struct {
	Size        *uint64
	Created     *time.Time
	Modified    *time.Time
	Accessed    *time.Time
	Permissions *uint32
	ContentHash *string
	MimeType    *string
	Revision    *string
	Custom      map[string]string
}
