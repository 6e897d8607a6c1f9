package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vaultkeep/vaultkeep/internal/target"
)

func TestAddListRemove(t *testing.T) {
	dir := t.TempDir()
	reg := New(filepath.Join(dir, "targets.yaml"))

	src := filepath.Join(dir, "src")
	if err := os.Mkdir(src, 0755); err != nil {
		t.Fatal(err)
	}

	if err := reg.Add(target.Target{Path: src, Priority: target.PriorityHigh, Category: "docs"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	list, err := reg.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Category != "docs" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := reg.Remove(list[0].Path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	list, err = reg.List()
	if err != nil {
		t.Fatalf("List after remove: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list after remove, got %+v", list)
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	reg := New(filepath.Join(dir, "targets.yaml"))

	src := filepath.Join(dir, "src")
	if err := os.Mkdir(src, 0755); err != nil {
		t.Fatal(err)
	}

	if err := reg.Add(target.Target{Path: src, Priority: target.PriorityLow}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := reg.Add(target.Target{Path: src, Priority: target.PriorityLow}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRemoveUnknownFails(t *testing.T) {
	dir := t.TempDir()
	reg := New(filepath.Join(dir, "targets.yaml"))
	if err := reg.Remove("/does/not/exist"); err == nil {
		t.Fatal("expected error removing an unregistered target")
	}
}
