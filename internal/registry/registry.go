// Package registry provides the default, file-backed implementation of
// target.Registry: one YAML document holding the full list of registered
// targets. The registry's on-disk format is this package's concern alone —
// core packages depend only on target.Registry, never on this package.
package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vaultkeep/vaultkeep/internal/pathkernel"
	"github.com/vaultkeep/vaultkeep/internal/target"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// document is the on-disk shape of the registry file.
type document struct {
	Targets []target.Target `yaml:"targets"`
}

// FileRegistry persists targets as a single YAML document at Path, saved
// atomically (temp file, fsync, rename) following the same discipline as
// internal/integrity's Save.
type FileRegistry struct {
	Path string
}

// New returns a FileRegistry backed by path. The file need not exist yet;
// List returns an empty slice until the first Add.
func New(path string) *FileRegistry {
	return &FileRegistry{Path: path}
}

// Add registers t, rejecting a duplicate by canonical path.
func (r *FileRegistry) Add(t target.Target) error {
	canonical, err := t.Validate()
	if err != nil {
		return err
	}
	t.Path = canonical

	doc, err := r.load()
	if err != nil {
		return err
	}

	for _, existing := range doc.Targets {
		if existingCanonical, err := pathkernel.Canonicalize(existing.Path); err == nil && existingCanonical == canonical {
			return fmt.Errorf("target %q is already registered", canonical)
		}
	}

	doc.Targets = append(doc.Targets, t)
	return r.save(doc)
}

// Remove deletes the target whose path canonicalizes to canonicalPath. It
// is not an error to remove a target whose directory has since vanished;
// canonicalPath is compared against each entry's stored (already-canonical)
// path directly rather than re-resolving it.
func (r *FileRegistry) Remove(canonicalPath string) error {
	doc, err := r.load()
	if err != nil {
		return err
	}

	kept := doc.Targets[:0]
	removed := false
	for _, existing := range doc.Targets {
		if existing.Path == canonicalPath {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return fmt.Errorf("no registered target at %q", canonicalPath)
	}

	doc.Targets = kept
	return r.save(doc)
}

// List returns every registered target.
func (r *FileRegistry) List() ([]target.Target, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.Targets, nil
}

func (r *FileRegistry) load() (document, error) {
	data, err := os.ReadFile(r.Path)
	if os.IsNotExist(err) {
		return document{}, nil
	}
	if err != nil {
		return document{}, vaulterrors.Wrap(err, "read target registry")
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, vaulterrors.Wrap(err, "parse target registry")
	}
	return doc, nil
}

func (r *FileRegistry) save(doc document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return vaulterrors.Wrap(err, "marshal target registry")
	}

	if dir := filepath.Dir(r.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return vaulterrors.Wrap(err, "create target registry directory")
		}
	}

	tmp := r.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return vaulterrors.Wrap(err, "create target registry tmp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return vaulterrors.Wrap(err, "write target registry tmp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return vaulterrors.Wrap(err, "fsync target registry tmp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return vaulterrors.Wrap(err, "close target registry tmp file")
	}
	if err := os.Rename(tmp, r.Path); err != nil {
		os.Remove(tmp)
		return vaulterrors.Wrap(err, "rename target registry tmp file")
	}
	return nil
}
