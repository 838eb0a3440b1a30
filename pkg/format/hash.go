package format

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/opencontainers/go-digest"
)

// HashSize is the size of a content hash in bytes.
const HashSize = sha256.Size

// Hash is a raw SHA-256 digest.
type Hash [HashSize]byte

// SumHash computes the SHA-256 digest of data.
func SumHash(data []byte) Hash {
	return sha256.Sum256(data)
}

// HashFromBytes converts a digest slice read from an index into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, NewFormatError("hash is %d bytes, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// String returns the hex encoding of the digest.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Digest returns the digest in "sha256:<hex>" form.
func (h Hash) Digest() digest.Digest {
	return digest.NewDigestFromBytes(digest.SHA256, h[:])
}
