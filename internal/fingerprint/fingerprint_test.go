package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	const wantHex = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85"
	if got.String() != wantHex {
		t.Errorf("HashFile(empty) = %s, want %s", got.String(), wantHex)
	}
}

func TestHashFileMatchesHashBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	data := make([]byte, 3*64*1024+17) // spans several chunk boundaries
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	fromFile, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	fromBytes := HashBytes(data)

	if fromFile != fromBytes {
		t.Errorf("HashFile() = %x, HashBytes() = %x; want equal", fromFile, fromBytes)
	}
}

func TestHashFileStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stable.txt")
	if err := os.WriteFile(path, []byte("the quick brown fox"), 0644); err != nil {
		t.Fatal(err)
	}

	first, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	second, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if first != second {
		t.Error("HashFile should be deterministic across repeated calls")
	}
}

func TestHashBytesDiffersOnContentChange(t *testing.T) {
	a := HashBytes([]byte("alpha"))
	b := HashBytes([]byte("beta"))
	if a == b {
		t.Error("different inputs should not collide")
	}
}

func TestDigestIsZero(t *testing.T) {
	var d Digest
	if !d.IsZero() {
		t.Error("zero-value Digest should report IsZero")
	}
	nonZero := HashBytes([]byte("x"))
	if nonZero.IsZero() {
		t.Error("non-zero digest should not report IsZero")
	}
}

func TestHashFileMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := HashFile(filepath.Join(dir, "does-not-exist.txt")); err == nil {
		t.Error("expected error hashing a missing file")
	}
}
