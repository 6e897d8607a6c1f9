package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestGenPassword(t *testing.T) {
	password, err := GenPassword(GeneratedPasswordLength)
	if err != nil {
		t.Fatalf("GenPassword failed: %v", err)
	}
	if len(password) != GeneratedPasswordLength {
		t.Errorf("GenPassword length = %d; want %d", len(password), GeneratedPasswordLength)
	}

	password2, err := GenPassword(GeneratedPasswordLength)
	if err != nil {
		t.Fatalf("GenPassword failed: %v", err)
	}
	if password == password2 {
		t.Error("GenPassword generated identical passwords (unlikely if random)")
	}

	for _, c := range password {
		if !strings.ContainsRune(passwordAlphabet, c) {
			t.Errorf("password contains character %q outside alphabet", c)
		}
	}
}

func TestGenPasswordInvalidLength(t *testing.T) {
	if _, err := GenPassword(0); err == nil {
		t.Error("GenPassword(0) should return error")
	}
	if _, err := GenPassword(-1); err == nil {
		t.Error("GenPassword(-1) should return error")
	}
}

func TestShannonEntropyBits(t *testing.T) {
	if got := ShannonEntropyBits(""); got != 0 {
		t.Errorf("empty password entropy = %v; want 0", got)
	}

	low := ShannonEntropyBits("aaaaaaaaaa")
	high := ShannonEntropyBits("Tr0ub4dor&3xQzK9")
	if low >= high {
		t.Errorf("expected a repeated-character password to score lower entropy: low=%v high=%v", low, high)
	}
}

func TestRandomBytes(t *testing.T) {
	lengths := []int{1, 16, 32, 64, 128, 1024}

	for _, length := range lengths {
		data, err := RandomBytes(length)
		if err != nil {
			t.Fatalf("RandomBytes(%d) failed: %v", length, err)
		}

		if len(data) != length {
			t.Errorf("RandomBytes(%d) returned %d bytes", length, len(data))
		}

		if length >= 8 {
			allZero := true
			for _, b := range data {
				if b != 0 {
					allZero = false
					break
				}
			}
			if allZero {
				t.Errorf("RandomBytes(%d) returned all zeros (extremely unlikely)", length)
			}
		}
	}
}

func TestRandomBytesUniqueness(t *testing.T) {
	data1, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes(32) failed: %v", err)
	}

	data2, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes(32) failed: %v", err)
	}

	if bytes.Equal(data1, data2) {
		t.Error("two RandomBytes calls should produce different results")
	}
}

func TestRandomBytesInvalidLength(t *testing.T) {
	if _, err := RandomBytes(0); err == nil {
		t.Error("RandomBytes(0) should return error")
	}
	if _, err := RandomBytes(-1); err == nil {
		t.Error("RandomBytes(-1) should return error")
	}
}
