//go:build !debug

package aead

// checkNonce is a no-op in release builds; the bookkeeping set used to
// detect collisions under -tags debug is compiled out entirely.
func checkNonce(key []byte, nonce [NonceSize]byte) error {
	return nil
}
