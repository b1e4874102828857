// Package content implements content identifiers: the 32-byte BLAKE3
// digests that address bodies in the blob store.
package content

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/cfk-cache/cfk/pkg/cferrors"
)

// Size is the length of a CID in bytes.
const Size = 32

// CID is a content identifier: a 32-byte BLAKE3 digest of a body's
// uncompressed bytes.
type CID [Size]byte

// Zero is the all-zero CID, never a valid digest of real content but
// useful as a sentinel.
var Zero CID

// Hash computes the CID of data.
func Hash(data []byte) CID {
	return CID(blake3.Sum256(data))
}

// FromHex parses a 64-character hex string into a CID. Both lowercase and
// mixed-case input are accepted; the canonical form produced by Hex is
// always lowercase.
func FromHex(s string) (CID, error) {
	if len(s) != Size*2 {
		return CID{}, cferrors.InvalidContentID(fmt.Sprintf("expected %d hex characters, got %d", Size*2, len(s)))
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return CID{}, cferrors.InvalidContentID(err.Error())
	}
	var cid CID
	copy(cid[:], decoded)
	return cid, nil
}

// Hex returns the lowercase hex encoding of the CID.
func (c CID) Hex() string {
	return hex.EncodeToString(c[:])
}

// String implements fmt.Stringer as an alias for Hex.
func (c CID) String() string {
	return c.Hex()
}

// IsZero reports whether c is the Zero sentinel.
func (c CID) IsZero() bool {
	return c == Zero
}

// StoragePath returns the blob store's on-disk relative path for c, joined
// onto base: a two-character shard directory followed by the remaining
// 62-character file name. The shard is always computed from the lowercase
// hex form so that layouts are identical across platforms.
func (c CID) StoragePath(base string) string {
	hexForm := c.Hex()
	return base + "/" + hexForm[:2] + "/" + hexForm[2:]
}

// Hasher incrementally computes a CID over a stream of writes, used by the
// blob store's streaming writer so that large bodies never need to be
// buffered in memory just to be hashed.
type Hasher struct {
	inner *blake3.Hasher
}

// NewHasher creates a new streaming Hasher.
func NewHasher() *Hasher {
	return &Hasher{inner: blake3.New(Size, nil)}
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.inner.Write(p)
}

// Sum finalizes the hash computed so far and returns it as a CID. The
// Hasher remains usable for further writes followed by further Sum calls,
// matching hash.Hash semantics.
func (h *Hasher) Sum() CID {
	var cid CID
	copy(cid[:], h.inner.Sum(nil))
	return cid
}
