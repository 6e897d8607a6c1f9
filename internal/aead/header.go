package aead

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// Magic identifies a backup engine encrypted stream.
var Magic = [4]byte{'B', 'K', 'P', '1'}

// CurrentVersion is the only header version this engine writes or accepts.
const CurrentVersion = 0x01

const (
	SaltSize        = 16
	NoncePrefixSize = 4
	// HeaderSize is the fixed on-disk size of Header: 4 (magic) + 1 (version)
	// + 16 (salt) + 4 (nonce prefix) + 4 (chunk size).
	HeaderSize = 4 + 1 + SaltSize + NoncePrefixSize + 4
)

// Header is the fixed-size preamble of an encrypted stream. Salt is carried
// for self-description only — the key derivation component has already
// consumed it by the time encryption starts.
type Header struct {
	Salt        [SaltSize]byte
	NoncePrefix [NoncePrefixSize]byte
	ChunkSize   uint32
}

// WriteHeader serializes h to w.
func WriteHeader(w io.Writer, h Header) error {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic[:])
	buf[4] = CurrentVersion
	copy(buf[5:5+SaltSize], h.Salt[:])
	copy(buf[5+SaltSize:5+SaltSize+NoncePrefixSize], h.NoncePrefix[:])
	binary.LittleEndian.PutUint32(buf[5+SaltSize+NoncePrefixSize:], h.ChunkSize)

	if _, err := w.Write(buf); err != nil {
		return vaulterrors.NewCryptoError("aead-encrypt", err)
	}
	return nil
}

// ReadHeader parses and validates the header at the start of r.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, vaulterrors.NewCryptoError("aead-decrypt", err)
	}

	if [4]byte(buf[0:4]) != Magic {
		return Header{}, vaulterrors.NewCryptoError("aead-decrypt", vaulterrors.ErrUnsupportedFormat)
	}
	if buf[4] != CurrentVersion {
		return Header{}, vaulterrors.NewCryptoError("aead-decrypt", fmt.Errorf("%w: version %d", vaulterrors.ErrUnsupportedFormat, buf[4]))
	}

	var h Header
	copy(h.Salt[:], buf[5:5+SaltSize])
	copy(h.NoncePrefix[:], buf[5+SaltSize:5+SaltSize+NoncePrefixSize])
	h.ChunkSize = binary.LittleEndian.Uint32(buf[5+SaltSize+NoncePrefixSize:])
	return h, nil
}
