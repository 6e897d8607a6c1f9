// Package aead implements the chunked AES-256-GCM streaming engine used to
// encrypt and decrypt backup payloads. It is deliberately narrower than a
// general-purpose AEAD wrapper: one fixed cipher, one fixed header, one
// fixed nonce discipline, all chosen so that encryption and decryption are
// streaming and memory use is bounded by a single chunk regardless of file
// size.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vaultkeep/vaultkeep/internal/util"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// DefaultChunkSize is the plaintext chunk size used when the caller does not
// specify one.
const DefaultChunkSize = util.DefaultChunkSize

const tagSize = 16

// EncryptStream reads plaintext from r in chunkSize-sized pieces, seals each
// with AES-256-GCM under key, and writes the framed ciphertext to w. salt is
// carried in the header purely for self-description (the caller has already
// used it to derive key); it is not used cryptographically here. A fresh
// random nonce prefix is generated per call.
func EncryptStream(r io.Reader, w io.Writer, key []byte, salt [SaltSize]byte, chunkSize uint32) error {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return vaulterrors.NewCryptoError("aead-encrypt", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return vaulterrors.NewCryptoError("aead-encrypt", err)
	}

	var prefix [NoncePrefixSize]byte
	prefixBytes, err := util.RandomBytes(NoncePrefixSize)
	if err != nil {
		return vaulterrors.NewCryptoError("aead-encrypt", err)
	}
	copy(prefix[:], prefixBytes)

	if err := WriteHeader(w, Header{Salt: salt, NoncePrefix: prefix, ChunkSize: chunkSize}); err != nil {
		return err
	}

	plain := make([]byte, chunkSize)
	sealed := make([]byte, 0, chunkSize+tagSize)
	frameHeader := make([]byte, 4)

	var counter uint64
	wroteAny := false
	for {
		n, readErr := io.ReadFull(r, plain)
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return vaulterrors.NewCryptoError("aead-encrypt", readErr)
		}

		// A zero-length read past at least one already-written full chunk
		// means the input was an exact multiple of chunkSize: there is no
		// final short frame to emit, and emitting a spurious empty one
		// would violate the "zero-length frame iff empty plaintext" rule.
		if n == 0 && readErr == io.EOF && wroteAny {
			return nil
		}

		nonce := buildNonce(prefix, counter)
		if err := checkNonce(key, nonce); err != nil {
			return err
		}

		sealed = gcm.Seal(sealed[:0], nonce[:], plain[:n], nil)

		binary.LittleEndian.PutUint32(frameHeader, uint32(n))
		if _, err := w.Write(frameHeader); err != nil {
			return vaulterrors.NewCryptoError("aead-encrypt", err)
		}
		if _, err := w.Write(sealed); err != nil {
			return vaulterrors.NewCryptoError("aead-encrypt", err)
		}

		counter++
		wroteAny = true

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}
	}
}

// DecryptStream parses the header from r, verifies and decrypts each frame
// with key, and writes the recovered plaintext to w. Any tag mismatch is
// reported as ErrAuthenticationFailed; plaintext from frames already
// verified and written before the failing frame remains in w (see the error
// handling design for why partial output is not rolled back).
func DecryptStream(r io.Reader, w io.Writer, key []byte) error {
	header, err := ReadHeader(r)
	if err != nil {
		return err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return vaulterrors.NewCryptoError("aead-decrypt", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return vaulterrors.NewCryptoError("aead-decrypt", err)
	}

	frameHeader := make([]byte, 4)
	sealed := make([]byte, 0, header.ChunkSize+tagSize)
	opened := make([]byte, 0, header.ChunkSize)

	var counter uint64
	for {
		_, err := io.ReadFull(r, frameHeader)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return vaulterrors.NewCryptoError("aead-decrypt", err)
		}

		plainLen := binary.LittleEndian.Uint32(frameHeader)
		if plainLen > header.ChunkSize {
			return vaulterrors.NewCryptoError("aead-decrypt", fmt.Errorf("frame length %d exceeds chunk size %d", plainLen, header.ChunkSize))
		}

		sealedLen := int(plainLen) + tagSize
		if cap(sealed) < sealedLen {
			sealed = make([]byte, sealedLen)
		}
		sealed = sealed[:sealedLen]
		if _, err := io.ReadFull(r, sealed); err != nil {
			return vaulterrors.NewCryptoError("aead-decrypt", err)
		}

		nonce := buildNonce(header.NoncePrefix, counter)
		opened, err = gcm.Open(opened[:0], nonce[:], sealed, nil)
		if err != nil {
			return vaulterrors.NewCryptoError("aead-decrypt", vaulterrors.ErrAuthenticationFailed)
		}

		if len(opened) > 0 {
			if _, err := w.Write(opened); err != nil {
				return vaulterrors.NewCryptoError("aead-decrypt", err)
			}
		}

		counter++

		// A frame shorter than the chunk size is only legal as the final
		// frame; the next iteration's header read will hit EOF. If instead
		// more data follows a short frame, that next ReadFull succeeds and
		// the loop (harmlessly) keeps decoding — but the encoder never
		// produces that shape, so in practice a short frame is always last.
	}
}
