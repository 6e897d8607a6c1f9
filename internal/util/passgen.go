package util

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// RandomBytes generates n cryptographically secure random bytes using crypto/rand.
// Suitable for salts, nonce prefixes, and other cryptographic material.
//
// Returns an error if n <= 0 or if the system's cryptographic random number generator fails.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("invalid length")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto/rand: %w", err)
	}
	return b, nil
}

// passwordAlphabet is the symbol set used for generated passwords: 26 upper +
// 26 lower + 10 digits + 10 symbols = 72 distinct characters, comfortably
// above a 64-symbol floor.
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-=_+!@#$^&()"

// GeneratedPasswordLength is the length of operator-facing generated passwords.
const GeneratedPasswordLength = 20

// GenPassword produces a cryptographically random password of the given
// length, drawn uniformly from passwordAlphabet.
func GenPassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid password length")
	}
	out := make([]byte, length)
	for i := range out {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand: %w", err)
		}
		out[i] = passwordAlphabet[j.Int64()]
	}
	return string(out), nil
}

// ShannonEntropyBits estimates the Shannon entropy, in bits, of password
// treated as a sequence of independent symbols drawn from its own observed
// alphabet. This backs the non-blocking password-strength warning described
// in the key-derivation component's password policy; it is advisory, not an
// enforcement gate.
func ShannonEntropyBits(password string) float64 {
	if len(password) == 0 {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range password {
		counts[r]++
		total++
	}
	var entropyPerSymbol float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropyPerSymbol -= p * math.Log2(p)
	}
	return entropyPerSymbol * float64(total)
}
