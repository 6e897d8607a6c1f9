// Package pipeline composes the codec and AEAD layers into the single
// transform the rest of the backup engine calls to turn a file's plaintext
// into stored bytes and back. The composition order is fixed: compress then
// encrypt, because compression is a plaintext-only property that must never
// depend on the key, while encrypting the already-compressed stream leaks
// nothing about the plaintext beyond its (post-compression) length.
package pipeline

import (
	"io"

	"github.com/vaultkeep/vaultkeep/internal/aead"
	"github.com/vaultkeep/vaultkeep/internal/codec"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
	"github.com/vaultkeep/vaultkeep/internal/vaultlog"
)

// LargeFileWarningThreshold is the size past which ProcessStream logs a
// warning to prompt operator acknowledgement; it never fails the run.
const LargeFileWarningThreshold = 100 * 1024 * 1024 * 1024 // 100 GiB

// Options configures a single pipeline run over one file's content.
type Options struct {
	Codec      codec.Kind
	Level      int // 0 means the codec's default
	Encrypt    bool
	Key        []byte      // required when Encrypt is true
	Salt       [aead.SaltSize]byte // carried into the AEAD header for self-description
	ChunkSize  uint32      // 0 means aead.DefaultChunkSize
	InputSize  int64       // advisory, for the large-file warning; 0 to skip the check
}

// ProcessStream reads plaintext from r, compresses it per opts.Codec, then
// (if opts.Encrypt) encrypts the compressed stream, writing the result to w.
// Both stages run concurrently over an in-memory pipe so that at no point is
// the whole file held in memory.
func ProcessStream(r io.Reader, w io.Writer, opts Options) error {
	if opts.Encrypt && len(opts.Key) == 0 {
		return vaulterrors.NewCryptoError("pipeline", vaulterrors.ErrInvalidConfig)
	}
	if err := codec.ValidateLevel(opts.Codec, opts.Level); err != nil {
		return err
	}

	if opts.InputSize > LargeFileWarningThreshold {
		vaultlog.Warn("processing file larger than the large-file advisory threshold",
			vaultlog.Int64("size_bytes", opts.InputSize),
			vaultlog.Int64("threshold_bytes", LargeFileWarningThreshold))
	}

	if !opts.Encrypt {
		return codec.EncodeStream(r, w, opts.Codec, opts.Level)
	}

	pr, pw := io.Pipe()
	compressErrCh := make(chan error, 1)

	go func() {
		err := codec.EncodeStream(r, pw, opts.Codec, opts.Level)
		if err != nil {
			pw.CloseWithError(err)
		} else {
			pw.Close()
		}
		compressErrCh <- err
	}()

	encryptErr := aead.EncryptStream(pr, w, opts.Key, opts.Salt, opts.ChunkSize)
	compressErr := <-compressErrCh

	if compressErr != nil {
		return compressErr
	}
	return encryptErr
}

// RestoreStream applies the inverse of ProcessStream: if opts.Encrypt,
// decrypt first, then decompress per opts.Codec, writing recovered
// plaintext to w.
func RestoreStream(r io.Reader, w io.Writer, opts Options) error {
	if !opts.Encrypt {
		return codec.DecodeStream(r, w, opts.Codec)
	}
	if len(opts.Key) == 0 {
		return vaulterrors.NewCryptoError("pipeline", vaulterrors.ErrInvalidConfig)
	}

	pr, pw := io.Pipe()
	decryptErrCh := make(chan error, 1)

	go func() {
		err := aead.DecryptStream(r, pw, opts.Key)
		if err != nil {
			pw.CloseWithError(err)
		} else {
			pw.Close()
		}
		decryptErrCh <- err
	}()

	decodeErr := codec.DecodeStream(pr, w, opts.Codec)
	decryptErr := <-decryptErrCh

	if decryptErr != nil {
		return decryptErr
	}
	return decodeErr
}
