// Package fingerprint computes the content fingerprints the rest of the
// backup engine uses to decide whether a file changed between runs. The
// fingerprint is SHA-256 of plaintext bytes only — compression codec and
// encryption key never enter into it, so the same file fingerprints
// identically across runs regardless of how it was stored.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"

	"github.com/vaultkeep/vaultkeep/internal/pathkernel"
	"github.com/vaultkeep/vaultkeep/internal/util"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// Size is the length in bytes of a Digest.
const Size = sha256.Size

// Digest is a 32-byte SHA-256 fingerprint.
type Digest [Size]byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:])
}

// IsZero reports whether d is the zero digest (never a valid SHA-256 of any
// input, but used as a sentinel for "not yet computed").
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// HashFile streams path through SHA-256 in bounded chunks and returns the
// digest of its plaintext content. It is safe to call concurrently across
// distinct files; a single call always reads its file sequentially.
//
// If the file's size changes between the initial stat and the final read
// (a concurrent writer), HashFile returns ErrFileChangedDuringRead rather
// than silently returning a digest of a torn read.
func HashFile(path string) (Digest, error) {
	f, err := pathkernel.SafeOpenReadonly(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Digest{}, vaulterrors.NewPathError("hash_file", path, err)
	}
	expectedSize := info.Size()

	h := sha256.New()
	n, err := copyBuffered(h, f)
	if err != nil {
		return Digest{}, vaulterrors.NewFileError(path, vaulterrors.ErrFileChangedDuringRead, err)
	}
	if n != expectedSize {
		return Digest{}, vaulterrors.NewFileError(path, vaulterrors.ErrFileChangedDuringRead,
			fmt.Errorf("read %d bytes, expected %d", n, expectedSize))
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// HashBytes returns the SHA-256 digest of an in-memory buffer.
func HashBytes(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// copyBuffered streams src into h using a pooled chunk-sized buffer, mirroring
// the bounded-chunk discipline used by the codec and AEAD streaming layers.
func copyBuffered(h hash.Hash, src io.Reader) (int64, error) {
	buf := util.ChunkPool.Get()
	defer util.ChunkPool.Put(buf)

	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
