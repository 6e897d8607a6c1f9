package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vaultkeep/vaultkeep/internal/codec"
	"github.com/vaultkeep/vaultkeep/internal/integrity"
	"github.com/vaultkeep/vaultkeep/internal/target"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func singleTarget(t *testing.T, root string) target.Target {
	t.Helper()
	return target.Target{Path: root, Priority: target.PriorityMedium, Category: "docs"}
}

func TestEmptyFileRoundTrip(t *testing.T) {
	src := t.TempDir()
	mustWrite(t, filepath.Join(src, "empty.txt"), "")

	dest := t.TempDir()
	tgt := singleTarget(t, src)

	summary, err := WriteRun("backup_20260101_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest,
		Kind:            integrity.KindFull,
		Codec:           codec.Zstd,
		Encrypt:         true,
		Password:        []byte("pw-test-12345"),
	})
	if err != nil {
		t.Fatalf("WriteRun: %v", err)
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", summary.Errors)
	}

	idx, err := integrity.Load(filepath.Join(dest, "backup_20260101_000000"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	base := filepath.Base(src)
	relPath := "docs/" + base + "/empty.txt"
	gotHash, ok := idx.Files[relPath]
	if !ok {
		t.Fatalf("index missing %q: %+v", relPath, idx.Files)
	}
	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85"
	if gotHash != emptySHA256 {
		t.Errorf("expected empty-file SHA-256 %s, got %s", emptySHA256, gotHash)
	}

	restoreTo := t.TempDir()
	restoreSummary, err := RestoreRun("backup_20260101_000000", RestoreOptions{
		DestinationRoot: dest,
		RestoreTo:       restoreTo,
		Password:        []byte("pw-test-12345"),
		Verify:          true,
	})
	if err != nil {
		t.Fatalf("RestoreRun: %v", err)
	}
	if len(restoreSummary.Errors) != 0 || len(restoreSummary.IntegrityFailures) != 0 {
		t.Fatalf("unexpected restore failures: %+v / %+v", restoreSummary.Errors, restoreSummary.IntegrityFailures)
	}

	restoredPath := filepath.Join(restoreTo, relPath)
	info, err := os.Stat(restoredPath)
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected 0-byte restored file, got %d bytes", info.Size())
	}
}

func TestIncrementalSkipsUnchangedFile(t *testing.T) {
	src := t.TempDir()
	mustWrite(t, filepath.Join(src, "a.txt"), "hello")
	mustWrite(t, filepath.Join(src, "b.txt"), "world")

	dest := t.TempDir()
	tgt := singleTarget(t, src)
	base := filepath.Base(src)

	fullSummary, err := WriteRun("backup_20260101_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest,
		Kind:            integrity.KindFull,
		Codec:           codec.None,
	})
	if err != nil {
		t.Fatalf("full WriteRun: %v", err)
	}
	if fullSummary.FilesOK != 2 {
		t.Fatalf("expected 2 files captured in full run, got %d", fullSummary.FilesOK)
	}

	mustWrite(t, filepath.Join(src, "a.txt"), "HELLO")

	fullIdx, err := integrity.Load(filepath.Join(dest, "backup_20260101_000000"))
	if err != nil {
		t.Fatal(err)
	}

	incSummary, err := WriteRun("backup_20260102_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest,
		Kind:            integrity.KindIncremental,
		ParentRunID:     "backup_20260101_000000",
		ParentChain:     []*integrity.Index{fullIdx},
		Codec:           codec.None,
	})
	if err != nil {
		t.Fatalf("incremental WriteRun: %v", err)
	}
	if incSummary.FilesOK != 1 || incSummary.FilesSkipped != 1 {
		t.Fatalf("expected 1 stored + 1 skipped, got ok=%d skipped=%d", incSummary.FilesOK, incSummary.FilesSkipped)
	}

	incRunDir := filepath.Join(dest, "backup_20260102_000000")
	if _, err := os.Stat(filepath.Join(incRunDir, "docs", base, "a.txt")); err != nil {
		t.Errorf("expected a.txt present in incremental run directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(incRunDir, "docs", base, "b.txt")); !os.IsNotExist(err) {
		t.Errorf("expected b.txt absent from incremental run directory (relies on parent), got err=%v", err)
	}

	incIdx, err := integrity.Load(incRunDir)
	if err != nil {
		t.Fatal(err)
	}
	wantChanged := "docs/" + base + "/a.txt"
	if len(incIdx.ChangedFiles) != 1 || incIdx.ChangedFiles[0] != wantChanged {
		t.Errorf("expected changed_files = [%q], got %v", wantChanged, incIdx.ChangedFiles)
	}

	restoreTo := t.TempDir()
	restoreSummary, err := RestoreRun("backup_20260102_000000", RestoreOptions{
		DestinationRoot: dest,
		RestoreTo:       restoreTo,
	})
	if err != nil {
		t.Fatalf("RestoreRun: %v", err)
	}
	if len(restoreSummary.Errors) != 0 {
		t.Fatalf("unexpected restore errors: %+v", restoreSummary.Errors)
	}

	aContent, err := os.ReadFile(filepath.Join(restoreTo, "docs", base, "a.txt"))
	if err != nil || string(aContent) != "HELLO" {
		t.Errorf("expected restored a.txt = HELLO, got %q err=%v", aContent, err)
	}
	bContent, err := os.ReadFile(filepath.Join(restoreTo, "docs", base, "b.txt"))
	if err != nil || string(bContent) != "world" {
		t.Errorf("expected restored b.txt = world (from parent run), got %q err=%v", bContent, err)
	}
}

func TestChainRestoreAcrossThreeRuns(t *testing.T) {
	src := t.TempDir()
	mustWrite(t, filepath.Join(src, "a.txt"), "a-v1")
	mustWrite(t, filepath.Join(src, "b.txt"), "b-v1")
	mustWrite(t, filepath.Join(src, "c.txt"), "c-v1")

	dest := t.TempDir()
	tgt := singleTarget(t, src)
	base := filepath.Base(src)

	if _, err := WriteRun("backup_20260101_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest, Kind: integrity.KindFull, Codec: codec.None,
	}); err != nil {
		t.Fatalf("full: %v", err)
	}
	fullIdx, _ := integrity.Load(filepath.Join(dest, "backup_20260101_000000"))

	mustWrite(t, filepath.Join(src, "b.txt"), "b-v2")
	if _, err := WriteRun("backup_20260102_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest, Kind: integrity.KindIncremental, ParentRunID: "backup_20260101_000000",
		ParentChain: []*integrity.Index{fullIdx}, Codec: codec.None,
	}); err != nil {
		t.Fatalf("inc1: %v", err)
	}
	inc1Idx, _ := integrity.Load(filepath.Join(dest, "backup_20260102_000000"))

	mustWrite(t, filepath.Join(src, "c.txt"), "c-v2")
	if _, err := WriteRun("backup_20260103_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest, Kind: integrity.KindIncremental, ParentRunID: "backup_20260102_000000",
		ParentChain: []*integrity.Index{fullIdx, inc1Idx}, Codec: codec.None,
	}); err != nil {
		t.Fatalf("inc2: %v", err)
	}

	restoreTo := t.TempDir()
	summary, err := RestoreRun("backup_20260103_000000", RestoreOptions{DestinationRoot: dest, RestoreTo: restoreTo})
	if err != nil {
		t.Fatalf("RestoreRun: %v", err)
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", summary.Errors)
	}

	for name, want := range map[string]string{"a.txt": "a-v1", "b.txt": "b-v2", "c.txt": "c-v2"} {
		got, err := os.ReadFile(filepath.Join(restoreTo, "docs", base, name))
		if err != nil {
			t.Fatalf("reading restored %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s: got %q, want %q", name, got, want)
		}
	}
}

func TestSymlinkInsideTargetIsNotFollowed(t *testing.T) {
	src := t.TempDir()
	mustWrite(t, filepath.Join(src, "inside.txt"), "ok")

	outsideDir := t.TempDir()
	secretPath := filepath.Join(outsideDir, "secret.txt")
	mustWrite(t, secretPath, "top secret")

	if err := os.Symlink(secretPath, filepath.Join(src, "link")); err != nil {
		t.Skipf("symlink not supported in this environment: %v", err)
	}

	dest := t.TempDir()
	tgt := singleTarget(t, src)

	summary, err := WriteRun("backup_20260101_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest, Kind: integrity.KindFull, Codec: codec.None,
	})
	if err != nil {
		t.Fatalf("WriteRun: %v", err)
	}

	found := false
	for _, s := range summary.SkippedSymlinks {
		if filepath.Base(s) == "link" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the symlink to be reported as skipped: %+v", summary.SkippedSymlinks)
	}

	base := filepath.Base(src)
	if _, err := os.Stat(filepath.Join(dest, "backup_20260101_000000", "docs", base, "link")); !os.IsNotExist(err) {
		t.Error("symlink must not have been followed or copied into the run")
	}
	if _, err := os.Stat(filepath.Join(dest, "backup_20260101_000000", "docs", base, "secret.txt")); !os.IsNotExist(err) {
		t.Error("target outside the backup root must never be written")
	}
}

func TestVerifyTreeDetectsMissingAndMismatchedFiles(t *testing.T) {
	src := t.TempDir()
	mustWrite(t, filepath.Join(src, "a.txt"), "hello")
	mustWrite(t, filepath.Join(src, "b.txt"), "world")

	dest := t.TempDir()
	tgt := singleTarget(t, src)
	base := filepath.Base(src)

	if _, err := WriteRun("backup_20260101_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest, Kind: integrity.KindFull, Codec: codec.None,
	}); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}

	restoreTo := t.TempDir()
	if _, err := RestoreRun("backup_20260101_000000", RestoreOptions{DestinationRoot: dest, RestoreTo: restoreTo}); err != nil {
		t.Fatalf("RestoreRun: %v", err)
	}

	result, err := VerifyTree(dest, "backup_20260101_000000", restoreTo)
	if err != nil {
		t.Fatalf("VerifyTree: %v", err)
	}
	if result.FilesChecked != 2 || len(result.Missing) != 0 || len(result.Mismatched) != 0 {
		t.Fatalf("expected a clean verify, got %+v", result)
	}

	if err := os.Remove(filepath.Join(restoreTo, "docs", base, "a.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(restoreTo, "docs", base, "b.txt"), []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err = VerifyTree(dest, "backup_20260101_000000", restoreTo)
	if err != nil {
		t.Fatalf("VerifyTree: %v", err)
	}
	if len(result.Missing) != 1 || len(result.Mismatched) != 1 {
		t.Fatalf("expected 1 missing + 1 mismatched, got %+v", result)
	}
}

func TestAuthenticationFailureOnTamper(t *testing.T) {
	src := t.TempDir()
	mustWrite(t, filepath.Join(src, "data.bin"), "sensitive content that gets encrypted")

	dest := t.TempDir()
	tgt := singleTarget(t, src)
	base := filepath.Base(src)

	if _, err := WriteRun("backup_20260101_000000", []target.Target{tgt}, WriteOptions{
		DestinationRoot: dest, Kind: integrity.KindFull, Codec: codec.Zstd,
		Encrypt: true, Password: []byte("pw-test-12345"),
	}); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}

	storedPath := filepath.Join(dest, "backup_20260101_000000", "docs", base, "data.bin")
	data, err := os.ReadFile(storedPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) <= 100 {
		t.Fatalf("expected encrypted output longer than 100 bytes to tamper with, got %d", len(data))
	}
	data[100] ^= 0xFF
	if err := os.WriteFile(storedPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	restoreTo := t.TempDir()
	summary, err := RestoreRun("backup_20260101_000000", RestoreOptions{
		DestinationRoot: dest, RestoreTo: restoreTo, Password: []byte("pw-test-12345"),
	})
	if err != nil {
		t.Fatalf("RestoreRun: %v", err)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected exactly one restore failure, got %+v", summary.Errors)
	}
	if !vaulterrors.Is(summary.Errors[0].Kind, vaulterrors.ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", summary.Errors[0].Kind)
	}
	if _, err := os.Stat(filepath.Join(restoreTo, "docs", base, "data.bin")); !os.IsNotExist(err) {
		t.Error("no plaintext should be written for a tampered file")
	}
}
