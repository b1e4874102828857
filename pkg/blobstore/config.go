package blobstore

// Config carries the options enumerated in the blob store's configuration
// table: root directory, compression policy, and read-time verification.
type Config struct {
	// Path is the root directory of the content-addressed store. It's
	// created on Open if missing.
	Path string
	// Compress, if true, attempts LZ4 compression for bodies at least
	// CompressThreshold bytes long, keeping the compressed form only if
	// it's strictly smaller than the original.
	Compress bool
	// CompressThreshold is the minimum uncompressed length at which
	// compression is attempted.
	CompressThreshold int64
	// VerifyOnRead, if true, recomputes a body's CID on every Get and
	// fails with CorruptedContent on mismatch.
	VerifyOnRead bool
	// GCLockPath, if non-empty, names an advisory lock file acquired for
	// the duration of GC to discourage a concurrent process's GC from
	// racing this one. It's not required for single-process correctness.
	GCLockPath string
}
