package blobstore

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"
)

// lengthPrefixSize is the width of the little-endian uncompressed-length
// prefix written before every LZ4 block.
const lengthPrefixSize = 4

// tryCompress attempts size-prepended LZ4 compression of data. It returns
// the compressed form and true only if compression succeeded and produced
// a result strictly smaller than data; otherwise it returns nil, false and
// the caller should store data as-is.
func tryCompress(data []byte) ([]byte, bool) {
	bound := lz4.CompressBlockBound(len(data))
	dst := make([]byte, lengthPrefixSize+bound)
	binary.LittleEndian.PutUint32(dst[:lengthPrefixSize], uint32(len(data)))

	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(data, dst[lengthPrefixSize:])
	if err != nil || n == 0 || lengthPrefixSize+n >= len(data) {
		return nil, false
	}
	return dst[:lengthPrefixSize+n], true
}

// tryDecompress attempts to interpret stored as a size-prepended LZ4 block.
// It returns the decoded bytes and true on success. On any failure
// (too short, corrupt block, bad length prefix) it returns nil, false and
// the caller should treat stored as the raw, uncompressed body — this is
// what lets a store with compress=false read bodies written by a store
// with compress=true, and vice versa.
func tryDecompress(stored []byte) ([]byte, bool) {
	if len(stored) < lengthPrefixSize {
		return nil, false
	}
	uncompressedLen := binary.LittleEndian.Uint32(stored[:lengthPrefixSize])
	dst := make([]byte, uncompressedLen)
	n, err := lz4.UncompressBlock(stored[lengthPrefixSize:], dst)
	if err != nil || uint32(n) != uncompressedLen {
		return nil, false
	}
	return dst, true
}
