// Package codec provides the streaming compression layer used by the
// pipeline: compress-then-encrypt composition requires compression to run
// entirely on plaintext, independent of any key, so every codec here only
// ever sees an io.Reader/io.Writer pair.
package codec

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// Kind identifies a compression codec.
type Kind int

const (
	None Kind = iota
	Zstd
	Gzip
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case Gzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// ParseKind maps a codec name to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "none", "":
		return None, nil
	case "zstd":
		return Zstd, nil
	case "gzip":
		return Gzip, nil
	default:
		return 0, vaulterrors.NewCryptoError("codec", fmt.Errorf("%w: %q", vaulterrors.ErrUnsupportedCodec, name))
	}
}

// Level ranges and defaults per codec.
const (
	ZstdMinLevel     = 1
	ZstdMaxLevel     = 22
	ZstdDefaultLevel = 3

	GzipMinLevel     = 1
	GzipMaxLevel     = 9
	GzipDefaultLevel = 6
)

// ValidateLevel checks level against the valid range for kind. A zero level
// is treated as "use the codec's default" and always passes.
func ValidateLevel(kind Kind, level int) error {
	if level == 0 {
		return nil
	}
	switch kind {
	case Zstd:
		if level < ZstdMinLevel || level > ZstdMaxLevel {
			return vaulterrors.NewCryptoError("codec", fmt.Errorf("%w: zstd level %d out of range [%d,%d]", vaulterrors.ErrInvalidLevel, level, ZstdMinLevel, ZstdMaxLevel))
		}
	case Gzip:
		if level < GzipMinLevel || level > GzipMaxLevel {
			return vaulterrors.NewCryptoError("codec", fmt.Errorf("%w: gzip level %d out of range [%d,%d]", vaulterrors.ErrInvalidLevel, level, GzipMinLevel, GzipMaxLevel))
		}
	case None:
		if level != 0 {
			return vaulterrors.NewCryptoError("codec", fmt.Errorf("%w: codec none does not accept a level", vaulterrors.ErrInvalidLevel))
		}
	}
	return nil
}

// EncodeStream reads plaintext from r and writes the compressed form of kind
// to w, at the given level (0 meaning the codec's default). Both directions
// stream: memory is bounded to the codec's internal window regardless of
// input size.
func EncodeStream(r io.Reader, w io.Writer, kind Kind, level int) error {
	if err := ValidateLevel(kind, level); err != nil {
		return err
	}

	switch kind {
	case None:
		_, err := io.Copy(w, r)
		return err

	case Gzip:
		if level == 0 {
			level = GzipDefaultLevel
		}
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return vaulterrors.NewCryptoError("codec", err)
		}
		if _, err := io.Copy(gw, r); err != nil {
			gw.Close()
			return vaulterrors.NewCryptoError("codec", err)
		}
		return vaulterrors.NewCryptoErrorOrNil("codec", gw.Close())

	case Zstd:
		if level == 0 {
			level = ZstdDefaultLevel
		}
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdEncoderLevel(level)))
		if err != nil {
			return vaulterrors.NewCryptoError("codec", err)
		}
		if _, err := io.Copy(zw, r); err != nil {
			zw.Close()
			return vaulterrors.NewCryptoError("codec", err)
		}
		return vaulterrors.NewCryptoErrorOrNil("codec", zw.Close())

	default:
		return vaulterrors.NewCryptoError("codec", vaulterrors.ErrUnsupportedCodec)
	}
}

// DecodeStream reads a compressed stream of kind from r and writes the
// recovered plaintext to w.
func DecodeStream(r io.Reader, w io.Writer, kind Kind) error {
	switch kind {
	case None:
		_, err := io.Copy(w, r)
		return err

	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return vaulterrors.NewCryptoError("codec", fmt.Errorf("%w: %v", vaulterrors.ErrCorruptStream, err))
		}
		defer gr.Close()
		if _, err := io.Copy(w, gr); err != nil {
			return vaulterrors.NewCryptoError("codec", fmt.Errorf("%w: %v", vaulterrors.ErrCorruptStream, err))
		}
		return nil

	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return vaulterrors.NewCryptoError("codec", fmt.Errorf("%w: %v", vaulterrors.ErrCorruptStream, err))
		}
		defer zr.Close()
		if _, err := io.Copy(w, zr); err != nil {
			return vaulterrors.NewCryptoError("codec", fmt.Errorf("%w: %v", vaulterrors.ErrCorruptStream, err))
		}
		return nil

	default:
		return vaulterrors.NewCryptoError("codec", vaulterrors.ErrUnsupportedCodec)
	}
}

// zstdEncoderLevel maps the zstd level domain (1..22, matching the
// reference zstd CLI) onto the klauspost/compress/zstd encoder's four speed
// presets, since that implementation does not expose a 22-level knob
// directly.
func zstdEncoderLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 3:
		return zstd.SpeedFastest
	case level <= 9:
		return zstd.SpeedDefault
	case level <= 15:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
