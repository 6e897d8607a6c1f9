package archive

import (
	"sync"

	"github.com/vaultkeep/vaultkeep/internal/aead"
	"github.com/vaultkeep/vaultkeep/internal/kdf"
	"github.com/vaultkeep/vaultkeep/internal/util"
)

// keyDeriver derives a fresh per-file key from the run's password, with a
// new random salt per call. Every derivation holds mu for its duration:
// Argon2id's 128 MiB scratch allocation must never run more than once at a
// time across the worker pool, even though file I/O and compression proceed
// fully in parallel.
type keyDeriver struct {
	mu       sync.Mutex
	password []byte
}

func newKeyDeriver(password []byte) *keyDeriver {
	return &keyDeriver{password: password}
}

// DeriveFileKey produces a fresh salt and the key derived from it, for use
// in a single file's AEAD header.
func (k *keyDeriver) DeriveFileKey() (salt [aead.SaltSize]byte, key []byte, err error) {
	saltBytes, err := util.RandomBytes(aead.SaltSize)
	if err != nil {
		return salt, nil, err
	}
	copy(salt[:], saltBytes)

	k.mu.Lock()
	defer k.mu.Unlock()
	key, err = kdf.DeriveKey(k.password, salt[:])
	return salt, key, err
}
