// Package blobstore implements the content-addressed blob store: durable
// storage of file bodies keyed by their BLAKE3 content identifier, with
// optional LZ4 compression, atomic publish, streaming ingest, and garbage
// collection.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cfk-cache/cfk/pkg/cferrors"
	"github.com/cfk-cache/cfk/pkg/content"
	"github.com/cfk-cache/cfk/pkg/logging"
	"github.com/cfk-cache/cfk/pkg/must"
)

// uploadTagCounter disambiguates streaming-writer temp file names created
// within the same nanosecond.
var uploadTagCounter uint64

// Store is a content-addressed blob store rooted at a single directory.
// It's safe for concurrent use: Put/Get/Delete/Exists/Size operate
// independently per CID and rely only on the filesystem's own atomicity
// guarantees (create-temp + fsync + rename).
type Store struct {
	root      string
	compress  bool
	threshold int64
	verify    bool
	gcLock    *flock.Flock
	logger    *logging.Logger
}

// Open opens (creating if necessary) the blob store rooted at
// config.Path.
func Open(config Config, logger *logging.Logger) (*Store, error) {
	if config.Path == "" {
		return nil, errors.New("blob store path must not be empty")
	}
	if err := os.MkdirAll(config.Path, 0700); err != nil {
		return nil, errors.Wrap(err, "unable to create blob store root")
	}

	store := &Store{
		root:      config.Path,
		compress:  config.Compress,
		threshold: config.CompressThreshold,
		verify:    config.VerifyOnRead,
		logger:    logger,
	}
	if config.GCLockPath != "" {
		store.gcLock = flock.New(config.GCLockPath)
	}
	return store, nil
}

// Put stores data under its content identifier, returning the CID. If the
// content is already present (deduplication), Put returns immediately
// without writing anything.
func (s *Store) Put(data []byte) (content.CID, error) {
	cid := content.Hash(data)
	finalPath := cid.StoragePath(s.root)

	if _, err := os.Stat(finalPath); err == nil {
		return cid, nil
	}

	shardDir := filepath.Dir(finalPath)
	if err := os.MkdirAll(shardDir, 0700); err != nil {
		return content.CID{}, cferrors.IO("unable to create shard directory", err)
	}

	stored := data
	if s.compress && int64(len(data)) >= s.threshold {
		if compressed, ok := tryCompress(data); ok {
			stored = compressed
		}
	}

	if err := s.publish(shardDir, finalPath, stored); err != nil {
		return content.CID{}, err
	}
	return cid, nil
}

// publish writes stored to a temp file in dir and atomically renames it to
// finalPath, fsyncing before the rename.
func (s *Store) publish(dir, finalPath string, stored []byte) error {
	temp, err := os.CreateTemp(dir, filepath.Base(finalPath)+".tmp-")
	if err != nil {
		return cferrors.IO("unable to create temporary file", err)
	}
	tempPath := temp.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			must.Close(temp, s.logger)
			must.OSRemove(tempPath, s.logger)
		}
	}()

	if _, err := temp.Write(stored); err != nil {
		return cferrors.IO("unable to write temporary file", err)
	}
	if err := temp.Sync(); err != nil {
		return cferrors.IO("unable to sync temporary file", err)
	}
	if err := temp.Close(); err != nil {
		return cferrors.IO("unable to close temporary file", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		return cferrors.IO("unable to rename temporary file into place", err)
	}
	succeeded = true
	return nil
}

// Get reads and returns the body stored under cid.
func (s *Store) Get(cid content.CID) ([]byte, error) {
	path := cid.StoragePath(s.root)
	stored, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cferrors.NotFound(cid.Hex())
		}
		return nil, cferrors.IO("unable to read blob", err)
	}

	body := stored
	if decoded, ok := tryDecompress(stored); ok {
		body = decoded
	}

	if s.verify {
		if content.Hash(body) != cid {
			return nil, cferrors.CorruptedContent(cid.Hex())
		}
	}
	return body, nil
}

// Exists reports whether cid is stored, without reading its body.
func (s *Store) Exists(cid content.CID) bool {
	_, err := os.Stat(cid.StoragePath(s.root))
	return err == nil
}

// Delete removes the body stored under cid. Deleting a missing CID is not
// an error.
func (s *Store) Delete(cid content.CID) error {
	err := os.Remove(cid.StoragePath(s.root))
	if err != nil && !os.IsNotExist(err) {
		return cferrors.IO("unable to delete blob", err)
	}
	return nil
}

// Size returns the on-disk (possibly compressed) byte count for cid.
func (s *Store) Size(cid content.CID) (uint64, error) {
	info, err := os.Stat(cid.StoragePath(s.root))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, cferrors.NotFound(cid.Hex())
		}
		return 0, cferrors.IO("unable to stat blob", err)
	}
	return uint64(info.Size()), nil
}

// TotalSize sums the on-disk size of every stored object.
func (s *Store) TotalSize() (uint64, error) {
	var total uint64
	cids, err := s.List()
	if err != nil {
		return 0, err
	}
	for _, cid := range cids {
		size, err := s.Size(cid)
		if err != nil {
			if cferrors.KindOf(err) == cferrors.KindNotFound {
				continue
			}
			return 0, err
		}
		total += size
	}
	return total, nil
}

// List enumerates every CID currently stored, by walking the two-character
// shard directories. Entries that don't decode as valid CIDs are skipped.
func (s *Store) List() ([]content.CID, error) {
	shardEntries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cferrors.IO("unable to list blob store root", err)
	}

	var cids []content.CID
	for _, shard := range shardEntries {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		shardPath := filepath.Join(s.root, shard.Name())
		files, err := os.ReadDir(shardPath)
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || strings.HasSuffix(file.Name(), ".tmp") || len(file.Name()) != 62 {
				continue
			}
			cid, err := content.FromHex(shard.Name() + file.Name())
			if err != nil {
				continue
			}
			cids = append(cids, cid)
		}
	}
	sortCIDs(cids)
	return cids, nil
}

// GC deletes every stored object whose CID is not present in keep, and
// returns the total bytes freed. If the store was opened with a
// GCLockPath, GC acquires that advisory lock for its duration so that a
// concurrent GC in another process doesn't race this one; no lock is
// required for correctness (deletions racing a concurrent Put of the same
// CID are tolerated as idempotent double-deletes).
func (s *Store) GC(keep map[content.CID]struct{}) (uint64, error) {
	if s.gcLock != nil {
		locked, err := s.gcLock.TryLock()
		if err != nil {
			return 0, cferrors.IO("unable to acquire GC lock", err)
		}
		if !locked {
			return 0, errors.New("blob store GC lock is held by another process")
		}
		defer must.Unlock(s.gcLock, s.logger)
	}

	cids, err := s.List()
	if err != nil {
		return 0, err
	}

	var freed uint64
	for _, cid := range cids {
		if _, keepThis := keep[cid]; keepThis {
			continue
		}
		size, err := s.Size(cid)
		if err != nil {
			if cferrors.KindOf(err) == cferrors.KindNotFound {
				continue
			}
			s.logger.Warnf("unable to stat %s during GC: %s", cid.Hex(), err.Error())
			continue
		}
		if err := s.Delete(cid); err != nil {
			s.logger.Warnf("unable to delete %s during GC: %s", cid.Hex(), err.Error())
			continue
		}
		freed += size
	}

	freed += s.sweepOrphanedTemporaryFiles()
	return freed, nil
}

// sweepOrphanedTemporaryFiles removes Put's "<cid-tail>.tmp-<random>" shard
// temp files and "upload_" streaming writer temp files left behind by
// crashed writers, returning
// the bytes freed. Both classes of file are safe to remove unconditionally
// at GC time since a live writer holds its own file descriptor open and
// the rename races are resolved by the filesystem, not by this sweep.
func (s *Store) sweepOrphanedTemporaryFiles() uint64 {
	var freed uint64

	rootEntries, err := os.ReadDir(s.root)
	if err != nil {
		return 0
	}
	for _, entry := range rootEntries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), uploadTempFilePrefix) {
			continue
		}
		if info, err := entry.Info(); err == nil {
			freed += uint64(info.Size())
		}
		must.OSRemove(filepath.Join(s.root, entry.Name()), s.logger)
	}

	shardEntries, err := os.ReadDir(s.root)
	if err != nil {
		return freed
	}
	for _, shard := range shardEntries {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		shardPath := filepath.Join(s.root, shard.Name())
		files, err := os.ReadDir(shardPath)
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.Contains(file.Name(), ".tmp") {
				continue
			}
			if !hasValidCIDPrefix(shard.Name(), file.Name()) {
				continue
			}
			if info, err := file.Info(); err == nil {
				freed += uint64(info.Size())
			}
			must.OSRemove(filepath.Join(shardPath, file.Name()), s.logger)
		}
	}
	return freed
}

// hasValidCIDPrefix reports whether the part of a temp file's name before
// ".tmp" forms a well-formed CID when combined with its shard prefix.
func hasValidCIDPrefix(shard, fileName string) bool {
	base, _, _ := strings.Cut(fileName, ".tmp")
	_, err := content.FromHex(shard + base)
	return err == nil
}

// nextUploadTag returns a random tag used to name streaming-writer temp
// files uniquely, even across concurrent writers started in the same
// instant or restarted processes sharing a store root.
func nextUploadTag() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// crypto/rand failure: fall back to a counter plus timestamp
		// rather than fail the write outright.
		n := atomic.AddUint64(&uploadTagCounter, 1)
		return fmt.Sprintf("%d-%s", time.Now().UnixNano(), strconv.FormatUint(n, 36))
	}
	return id.String()
}

// sortCIDs sorts a slice of CIDs by hex form, giving List/GC callers a
// stable, deterministic order for tests.
func sortCIDs(cids []content.CID) {
	sort.Slice(cids, func(i, j int) bool { return cids[i].Hex() < cids[j].Hex() })
}
