package blobstore

import (
	"os"
	"path/filepath"

	"github.com/cfk-cache/cfk/pkg/cferrors"
	"github.com/cfk-cache/cfk/pkg/content"
	"github.com/cfk-cache/cfk/pkg/must"
)

// uploadTempFilePrefix names the transient files created by streaming
// writers at the blob store root, per the on-disk layout contract:
// "<root>/upload_<hextag>".
const uploadTempFilePrefix = "upload_"

// Writer is a streaming ingest handle: callers write chunks incrementally,
// and Finish computes the final CID, optionally compresses, and publishes
// the body via the same atomic rename used by Put. Abort removes the temp
// file at once; a Writer that's neither finished nor aborted (process
// crash) leaves an orphaned temp file for the next GC sweep to collect.
type Writer struct {
	store    *Store
	file     *os.File
	path     string
	hasher   *content.Hasher
	size     int64
	finished bool
}

// NewWriter opens a new streaming writer.
func (s *Store) NewWriter() (*Writer, error) {
	tempPath := filepath.Join(s.root, uploadTempFilePrefix+nextUploadTag())
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, cferrors.IO("unable to create streaming writer temp file", err)
	}
	return &Writer{
		store:  s,
		file:   file,
		path:   tempPath,
		hasher: content.NewHasher(),
	}, nil
}

// Write appends a chunk of body data, updating the incremental hash.
func (w *Writer) Write(chunk []byte) (int, error) {
	if w.finished {
		return 0, cferrors.IO("write to finished streaming writer", nil)
	}
	n, err := w.file.Write(chunk)
	if err != nil {
		return n, cferrors.IO("unable to write streaming chunk", err)
	}
	w.hasher.Write(chunk[:n])
	w.size += int64(n)
	return n, nil
}

// Finish finalizes the hash, derives the final storage path, optionally
// compresses (by reading back what was written), and atomically publishes
// the result. It returns the finished CID.
func (w *Writer) Finish() (content.CID, error) {
	if w.finished {
		return content.CID{}, cferrors.IO("Finish called twice on streaming writer", nil)
	}
	w.finished = true

	cid := w.hasher.Sum()
	finalPath := cid.StoragePath(w.store.root)

	if err := w.file.Close(); err != nil {
		must.OSRemove(w.path, w.store.logger)
		return content.CID{}, cferrors.IO("unable to close streaming writer temp file", err)
	}

	if _, err := os.Stat(finalPath); err == nil {
		must.OSRemove(w.path, w.store.logger)
		return cid, nil
	}

	shardDir := filepath.Dir(finalPath)
	if err := os.MkdirAll(shardDir, 0700); err != nil {
		must.OSRemove(w.path, w.store.logger)
		return content.CID{}, cferrors.IO("unable to create shard directory", err)
	}

	if !w.store.compress || w.size < w.store.threshold {
		// No compression to attempt: the temp file we already wrote
		// during streaming IS the final form, so just rename it
		// directly instead of reading it back into memory.
		if err := os.Rename(w.path, finalPath); err != nil {
			must.OSRemove(w.path, w.store.logger)
			return content.CID{}, cferrors.IO("unable to rename streamed body into place", err)
		}
		return cid, nil
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		must.OSRemove(w.path, w.store.logger)
		return content.CID{}, cferrors.IO("unable to read back streamed body", err)
	}

	stored := data
	if compressed, ok := tryCompress(data); ok {
		stored = compressed
	}

	if err := w.store.publish(shardDir, finalPath, stored); err != nil {
		must.OSRemove(w.path, w.store.logger)
		return content.CID{}, err
	}

	must.OSRemove(w.path, w.store.logger)
	return cid, nil
}

// Abort discards the writer without publishing anything, removing its
// temp file immediately rather than leaving it for GC.
func (w *Writer) Abort() {
	if w.finished {
		return
	}
	w.finished = true
	must.Close(w.file, w.store.logger)
	must.OSRemove(w.path, w.store.logger)
}
