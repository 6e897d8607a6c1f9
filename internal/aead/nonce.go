package aead

import "encoding/binary"

// NonceSize is the AES-256-GCM nonce length: a 4-byte per-file prefix
// followed by an 8-byte little-endian frame counter.
const NonceSize = 12

// buildNonce constructs the 12-byte nonce for frame index counter, given the
// file's random nonce prefix. The counter starts at 0 for the first frame
// and increments by one per frame; at a 64-bit counter width, exhaustion
// requires more frames than any realistic file could produce at the 64 KiB
// default chunk size.
func buildNonce(prefix [NoncePrefixSize]byte, counter uint64) [NonceSize]byte {
	var nonce [NonceSize]byte
	copy(nonce[:NoncePrefixSize], prefix[:])
	binary.LittleEndian.PutUint64(nonce[NoncePrefixSize:], counter)
	return nonce
}
