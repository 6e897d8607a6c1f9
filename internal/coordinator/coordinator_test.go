package coordinator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vaultkeep/vaultkeep/internal/codec"
	"github.com/vaultkeep/vaultkeep/internal/history"
	"github.com/vaultkeep/vaultkeep/internal/integrity"
	"github.com/vaultkeep/vaultkeep/internal/registry"
	"github.com/vaultkeep/vaultkeep/internal/target"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunDowngradesToFullWithNoParent(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	regDir := t.TempDir()
	reg := registry.New(filepath.Join(regDir, "targets.yaml"))
	if err := reg.Add(target.Target{Path: srcDir, Priority: target.PriorityMedium}); err != nil {
		t.Fatal(err)
	}

	destRoot := t.TempDir()
	histSink := history.NewJSONLSink(filepath.Join(destRoot, "history.jsonl"))

	c := New(reg, histSink)
	c.Now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	result, err := c.Run(Options{
		DestinationRoot: destRoot,
		Mode:            integrity.KindIncremental,
		Codec:           codec.None,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RunID != "backup_20260101_000000" {
		t.Errorf("unexpected run id: %s", result.RunID)
	}

	idx, err := integrity.Load(filepath.Join(destRoot, result.RunID))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx.Kind != integrity.KindFull {
		t.Errorf("expected downgrade to Full, got %s", idx.Kind)
	}

	records, err := histSink.List()
	if err != nil {
		t.Fatalf("List history: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != history.Success {
		t.Errorf("unexpected history records: %+v", records)
	}
}

func TestRunRejectsEncryptWithoutPassword(t *testing.T) {
	regDir := t.TempDir()
	reg := registry.New(filepath.Join(regDir, "targets.yaml"))
	c := New(reg, nil)

	_, err := c.Run(Options{
		DestinationRoot: t.TempDir(),
		Mode:            integrity.KindFull,
		Codec:           codec.None,
		Encrypt:         true,
	})
	if err == nil {
		t.Fatal("expected an error when encryption is requested without a password")
	}
}

func TestRunFindsParentForIncremental(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	regDir := t.TempDir()
	reg := registry.New(filepath.Join(regDir, "targets.yaml"))
	if err := reg.Add(target.Target{Path: srcDir, Priority: target.PriorityMedium}); err != nil {
		t.Fatal(err)
	}

	destRoot := t.TempDir()
	c := New(reg, nil)
	c.Now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	if _, err := c.Run(Options{DestinationRoot: destRoot, Mode: integrity.KindFull, Codec: codec.None}); err != nil {
		t.Fatalf("full run: %v", err)
	}

	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("HELLO"), 0644); err != nil {
		t.Fatal(err)
	}

	c.Now = fixedClock(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	result, err := c.Run(Options{DestinationRoot: destRoot, Mode: integrity.KindIncremental, Codec: codec.None})
	if err != nil {
		t.Fatalf("incremental run: %v", err)
	}

	idx, err := integrity.Load(filepath.Join(destRoot, result.RunID))
	if err != nil {
		t.Fatal(err)
	}
	if idx.Kind != integrity.KindIncremental {
		t.Errorf("expected an Incremental run now that a parent exists, got %s", idx.Kind)
	}
	if idx.ParentRunID != "backup_20260101_000000" {
		t.Errorf("unexpected parent run id: %s", idx.ParentRunID)
	}
}
