//go:build debug

package aead

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// Under a debug build, the engine remembers every (key, nonce) pair it has
// produced and fails loudly on a collision. This is pure bookkeeping memory
// overhead and is compiled out entirely in release builds (see
// noncetrack_release.go).
var (
	seenMu sync.Mutex
	seen   = make(map[[32 + NonceSize]byte]struct{})
)

func keyFingerprint(key []byte) [32]byte {
	return sha256.Sum256(key)
}

// checkNonce records (key, nonce) and returns ErrNonceReuseDetected if this
// exact pair has been produced before during the process lifetime.
func checkNonce(key []byte, nonce [NonceSize]byte) error {
	fp := keyFingerprint(key)

	var entry [32 + NonceSize]byte
	copy(entry[:32], fp[:])
	copy(entry[32:], nonce[:])

	seenMu.Lock()
	defer seenMu.Unlock()

	if _, ok := seen[entry]; ok {
		return vaulterrors.NewCryptoError("aead-encrypt", fmt.Errorf("%w: nonce %x under key %x", vaulterrors.ErrNonceReuseDetected, nonce, fp))
	}
	seen[entry] = struct{}{}
	return nil
}
