// Package changeset implements incremental change detection: given a
// candidate set of files and a parent run's integrity chain, it classifies
// each file as something that must be written into the new
// run (Store) or something unchanged that can be satisfied from an ancestor
// run (Copy).
package changeset

import (
	"github.com/vaultkeep/vaultkeep/internal/fingerprint"
	"github.com/vaultkeep/vaultkeep/internal/integrity"
)

// Action classifies a candidate file relative to the parent chain.
type Action int

const (
	// Store means the file is new or has changed since the parent chain
	// and its bytes must be written into the new run.
	Store Action = iota
	// Copy means the file is unchanged: its bytes already live in an
	// ancestor run and the new run relies on that copy rather than
	// rewriting it.
	Copy
)

func (a Action) String() string {
	if a == Copy {
		return "copy"
	}
	return "store"
}

// Candidate is one file discovered by the archive writer's walk, before
// change detection has classified it.
type Candidate struct {
	SourcePath   string // absolute path on the source filesystem
	RelativePath string // target-relative, category-prefixed destination path
}

// Entry is a classified candidate.
type Entry struct {
	Candidate
	Action Action
	Digest fingerprint.Digest
}

// Failure is a candidate whose content hash could not be computed (the file
// vanished or changed mid-read). It is excluded from the classified entries
// and from the new run's hash map; the caller records it as a per-file
// error.
type Failure struct {
	Candidate
	Err error
}

// Result is the outcome of a full change-detection pass over a candidate
// set.
type Result struct {
	Entries       []Entry
	Failed        []Failure
	CurrentHashes map[string]fingerprint.Digest // relative_path -> digest, for the new run's index
}

// Detect hashes every candidate and classifies it against parentChain
// (oldest-first; nil or empty means a Full run with no ancestor). A hashing
// error for a single candidate never aborts the pass: the candidate lands in
// Result.Failed and detection continues with the rest, the same way the
// archive writer collects per-file errors from its workers.
func Detect(candidates []Candidate, parentChain []*integrity.Index) (Result, error) {
	currentHashes := make(map[string]fingerprint.Digest, len(candidates))
	entries := make([]Entry, 0, len(candidates))
	var failed []Failure

	for _, c := range candidates {
		digest, err := fingerprint.HashFile(c.SourcePath)
		if err != nil {
			failed = append(failed, Failure{Candidate: c, Err: err})
			continue
		}
		currentHashes[c.RelativePath] = digest
		entries = append(entries, Entry{Candidate: c, Digest: digest})
	}

	actions := integrity.DiffAgainstChain(currentHashes, parentChain)
	for i := range entries {
		switch actions[entries[i].RelativePath] {
		case integrity.Unchanged:
			entries[i].Action = Copy
		default: // Added or Modified
			entries[i].Action = Store
		}
	}

	return Result{Entries: entries, Failed: failed, CurrentHashes: currentHashes}, nil
}
