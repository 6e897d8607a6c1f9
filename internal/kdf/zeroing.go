package kdf

import "crypto/subtle"

// SecureZero overwrites b with zeros so that a derived key does not linger
// in memory past its useful lifetime. Go's garbage collector and compiler
// optimizations mean this cannot be an absolute guarantee, but
// subtle.ConstantTimeCopy prevents the store from being optimized away.
func SecureZero(b []byte) {
	if len(b) == 0 {
		return
	}
	zeros := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zeros)
}

// KeyMaterial wraps a derived key with automatic zeroing on Close, so
// callers can defer cleanup immediately after derivation instead of
// tracking the key's lifetime by hand.
type KeyMaterial struct {
	data   []byte
	closed bool
}

// NewKeyMaterial copies data into an owned KeyMaterial.
func NewKeyMaterial(data []byte) *KeyMaterial {
	if data == nil {
		return &KeyMaterial{}
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return &KeyMaterial{data: copied}
}

// Bytes returns the key data, or nil if Close has already been called.
func (km *KeyMaterial) Bytes() []byte {
	if km.closed {
		return nil
	}
	return km.data
}

// Len returns the length of the key data.
func (km *KeyMaterial) Len() int {
	if km.closed || km.data == nil {
		return 0
	}
	return len(km.data)
}

// Close zeros the key data and marks the material closed. Idempotent.
func (km *KeyMaterial) Close() {
	if km.closed || km.data == nil {
		return
	}
	SecureZero(km.data)
	km.data = nil
	km.closed = true
}

// IsClosed reports whether Close has been called.
func (km *KeyMaterial) IsClosed() bool {
	return km.closed
}
