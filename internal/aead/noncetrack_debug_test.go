//go:build debug

package aead

import (
	"testing"

	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// Only built with -tags debug, where checkNonce remembers every (key, nonce)
// pair the engine has produced. Presenting the same prefix and counter twice
// under one key must trip the tracker.
func TestNonceReuseDetectedUnderDebugTracking(t *testing.T) {
	// A key no other test uses, so the process-wide tracking set can't
	// have seen these pairs already.
	key := make([]byte, 32)
	for i := range key {
		key[i] = 0xA5
	}

	var prefix [NoncePrefixSize]byte
	copy(prefix[:], []byte{9, 9, 9, 9})

	nonce := buildNonce(prefix, 0)
	if err := checkNonce(key, nonce); err != nil {
		t.Fatalf("first use of a fresh nonce should pass: %v", err)
	}
	if err := checkNonce(key, nonce); !vaulterrors.Is(err, vaulterrors.ErrNonceReuseDetected) {
		t.Fatalf("expected ErrNonceReuseDetected on reuse, got %v", err)
	}
	if err := checkNonce(key, buildNonce(prefix, 1)); err != nil {
		t.Fatalf("advancing the counter under the same prefix should pass: %v", err)
	}
}
