package pipeline

import (
	"bytes"
	"testing"

	"github.com/vaultkeep/vaultkeep/internal/codec"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x7a}, 32)
}

func TestProcessRestoreRoundTripPlainNoEncrypt(t *testing.T) {
	data := []byte("plaintext, no compression, no encryption")

	var stored bytes.Buffer
	opts := Options{Codec: codec.None}
	if err := ProcessStream(bytes.NewReader(data), &stored, opts); err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}

	var recovered bytes.Buffer
	if err := RestoreStream(&stored, &recovered, opts); err != nil {
		t.Fatalf("RestoreStream: %v", err)
	}
	if !bytes.Equal(recovered.Bytes(), data) {
		t.Error("round-trip mismatch")
	}
}

func TestProcessRestoreRoundTripCompressedOnly(t *testing.T) {
	data := bytes.Repeat([]byte("compress me please "), 500)

	for _, kind := range []codec.Kind{codec.Zstd, codec.Gzip} {
		var stored bytes.Buffer
		opts := Options{Codec: kind}
		if err := ProcessStream(bytes.NewReader(data), &stored, opts); err != nil {
			t.Fatalf("%s: ProcessStream: %v", kind, err)
		}

		var recovered bytes.Buffer
		if err := RestoreStream(&stored, &recovered, opts); err != nil {
			t.Fatalf("%s: RestoreStream: %v", kind, err)
		}
		if !bytes.Equal(recovered.Bytes(), data) {
			t.Errorf("%s: round-trip mismatch", kind)
		}
	}
}

func TestProcessRestoreRoundTripCompressAndEncrypt(t *testing.T) {
	data := bytes.Repeat([]byte("secret compressible payload "), 1000)
	key := testKey()

	opts := Options{Codec: codec.Zstd, Encrypt: true, Key: key}
	var stored bytes.Buffer
	if err := ProcessStream(bytes.NewReader(data), &stored, opts); err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}

	var recovered bytes.Buffer
	if err := RestoreStream(&stored, &recovered, opts); err != nil {
		t.Fatalf("RestoreStream: %v", err)
	}
	if !bytes.Equal(recovered.Bytes(), data) {
		t.Error("round-trip mismatch")
	}
}

func TestProcessRestoreRoundTripEncryptNoCompress(t *testing.T) {
	data := []byte("small secret")
	key := testKey()

	opts := Options{Codec: codec.None, Encrypt: true, Key: key}
	var stored bytes.Buffer
	if err := ProcessStream(bytes.NewReader(data), &stored, opts); err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}

	var recovered bytes.Buffer
	if err := RestoreStream(&stored, &recovered, opts); err != nil {
		t.Fatalf("RestoreStream: %v", err)
	}
	if !bytes.Equal(recovered.Bytes(), data) {
		t.Error("round-trip mismatch")
	}
}

func TestProcessStreamRequiresKeyWhenEncrypting(t *testing.T) {
	opts := Options{Codec: codec.None, Encrypt: true}
	if err := ProcessStream(bytes.NewReader([]byte("x")), &bytes.Buffer{}, opts); err == nil {
		t.Error("expected error when Encrypt is set without a Key")
	}
}

func TestProcessStreamRejectsInvalidLevel(t *testing.T) {
	opts := Options{Codec: codec.Zstd, Level: 99}
	if err := ProcessStream(bytes.NewReader([]byte("x")), &bytes.Buffer{}, opts); err == nil {
		t.Error("expected error for out-of-range compression level")
	}
}

func TestProcessRestoreRoundTripEmptyFile(t *testing.T) {
	key := testKey()
	opts := Options{Codec: codec.Zstd, Encrypt: true, Key: key}

	var stored bytes.Buffer
	if err := ProcessStream(bytes.NewReader(nil), &stored, opts); err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}

	var recovered bytes.Buffer
	if err := RestoreStream(&stored, &recovered, opts); err != nil {
		t.Fatalf("RestoreStream: %v", err)
	}
	if recovered.Len() != 0 {
		t.Errorf("expected empty recovered content, got %d bytes", recovered.Len())
	}
}
