// Package kdf derives and verifies encryption keys from operator passwords.
// It wraps Argon2id with the parameters fixed by the backup format and
// provides a self-describing verifier string for password confirmation
// without ever persisting the derived key itself.
//
// CRITICAL: the parameters below MUST NOT change, or existing runs become
// undecryptable with the correct password.
package kdf

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/vaultkeep/vaultkeep/internal/util"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// Argon2id parameters fixed by the backup format.
const (
	Memory      uint32 = 128 * 1024 // 128 MiB, in KiB as required by argon2.IDKey
	Iterations  uint32 = 4
	Parallelism uint8  = 2
	KeySize     int    = 32
	SaltSize    int    = 16
)

// verifierPrefix tags the self-describing verifier string, in the style of
// the PHC string format: $vaultkeep-argon2id$m=<kib>,t=<iter>,p=<par>$<salt>$<hash>
const verifierPrefix = "vaultkeep-argon2id"

// DeriveKey derives a 32-byte key from password and salt using the fixed
// Argon2id parameters. The same (password, salt) pair always yields the same
// key; salt must be unique per file (see the AEAD engine's header format).
func DeriveKey(password, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, vaulterrors.NewCryptoError("argon2", fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt)))
	}
	key := argon2.IDKey(password, salt, Iterations, Memory, Parallelism, uint32(KeySize))
	return key, nil
}

// HashPassword derives a key from password with a fresh random salt and
// encodes salt, parameters, and key into a single self-describing verifier
// string suitable for storage alongside a run's integrity index.
func HashPassword(password []byte) (string, error) {
	salt, err := util.RandomBytes(SaltSize)
	if err != nil {
		return "", vaulterrors.NewCryptoError("argon2", err)
	}
	key, err := DeriveKey(password, salt)
	if err != nil {
		return "", err
	}
	defer SecureZero(key)

	return encodeVerifier(salt, key), nil
}

// VerifyPassword checks password against a verifier string produced by
// HashPassword, in constant time with respect to the comparison itself.
// VerifyPassword does not short-circuit on a malformed verifier in a way
// that would leak timing about *where* it is malformed; a malformed
// verifier is reported as ErrVerifierMalformed.
func VerifyPassword(password []byte, verifier string) (bool, error) {
	salt, wantKey, err := decodeVerifier(verifier)
	if err != nil {
		return false, err
	}

	gotKey, err := DeriveKey(password, salt)
	if err != nil {
		return false, err
	}
	defer SecureZero(gotKey)
	defer SecureZero(wantKey)

	return subtle.ConstantTimeCompare(gotKey, wantKey) == 1, nil
}

func encodeVerifier(salt, key []byte) string {
	return strings.Join([]string{
		"",
		verifierPrefix,
		fmt.Sprintf("m=%d,t=%d,p=%d", Memory, Iterations, Parallelism),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$")
}

func decodeVerifier(verifier string) (salt, key []byte, err error) {
	parts := strings.Split(verifier, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != verifierPrefix {
		return nil, nil, vaulterrors.NewCryptoError("argon2", vaulterrors.ErrVerifierMalformed)
	}

	if _, _, _, err := parseParams(parts[2]); err != nil {
		return nil, nil, vaulterrors.NewCryptoError("argon2", vaulterrors.ErrVerifierMalformed)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, nil, vaulterrors.NewCryptoError("argon2", vaulterrors.ErrVerifierMalformed)
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, vaulterrors.NewCryptoError("argon2", vaulterrors.ErrVerifierMalformed)
	}
	return salt, key, nil
}

func parseParams(s string) (m, t uint32, p uint8, err error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return 0, 0, 0, vaulterrors.ErrVerifierMalformed
	}
	vals := make(map[string]string, 3)
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return 0, 0, 0, vaulterrors.ErrVerifierMalformed
		}
		vals[kv[0]] = kv[1]
	}
	mi, err1 := strconv.ParseUint(vals["m"], 10, 32)
	ti, err2 := strconv.ParseUint(vals["t"], 10, 32)
	pi, err3 := strconv.ParseUint(vals["p"], 10, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, vaulterrors.ErrVerifierMalformed
	}
	return uint32(mi), uint32(ti), uint8(pi), nil
}
