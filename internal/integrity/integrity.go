// Package integrity builds, persists, and diffs the per-run integrity
// index: the JSON document that records, for every file a run captured, the
// SHA-256 of its plaintext content. Incremental runs consult the chain of
// parent indices to decide what changed; the archive reader consults the
// index to know what to restore.
package integrity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vaultkeep/vaultkeep/internal/fingerprint"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// SchemaVersion is the only index schema version this engine writes or
// accepts. A mismatch on load is ErrUnsupportedFormat.
const SchemaVersion = 1

// IndexFileName is the name of the integrity document within a run
// directory.
const IndexFileName = ".integrity"

// Kind distinguishes a full capture from an incremental one.
type Kind string

const (
	KindFull        Kind = "Full"
	KindIncremental Kind = "Incremental"
)

// Index is the JSON document persisted at <run>/.integrity: schema, run_id,
// kind, parent, created_at, file_hashes, changed_files. For Incremental
// runs, Files
// contains only the entries that differ from the parent chain;
// ChangedFiles duplicates those keys as a flat list for fast enumeration
// without walking the map.
type Index struct {
	SchemaVersion int               `json:"schema"`
	RunID         string            `json:"run_id"`
	Kind          Kind              `json:"kind"`
	ParentRunID   string            `json:"parent,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Files         map[string]string `json:"file_hashes"` // relative_path -> sha256_hex
	ChangedFiles  []string          `json:"changed_files,omitempty"`

	// Codec and Encrypted record the storage form this run used — uniform
	// across all files in one run — so the archive reader can restore
	// without the operator having to remember how a given run was
	// captured. Additive fields; older indexes without them still load.
	Codec     string `json:"codec,omitempty"`
	Level     int    `json:"level,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

// NewIndex creates an empty Index for runID/kind, optionally chained to a
// parent run.
func NewIndex(runID string, kind Kind, parentRunID string, createdAt time.Time) *Index {
	return &Index{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Kind:          kind,
		ParentRunID:   parentRunID,
		CreatedAt:     createdAt,
		Files:         make(map[string]string),
	}
}

// Put records the digest for a relative path and, for Incremental indices,
// appends it to ChangedFiles.
func (idx *Index) Put(relPath string, digest fingerprint.Digest) {
	idx.Files[relPath] = digest.String()
	if idx.Kind == KindIncremental {
		idx.ChangedFiles = append(idx.ChangedFiles, relPath)
	}
}

// Save writes idx atomically to <runDir>/.integrity: write to a sibling
// .tmp file, fsync, then rename over the final path.
func Save(idx *Index, runDir string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return vaulterrors.Wrap(err, "marshal integrity index")
	}

	final := filepath.Join(runDir, IndexFileName)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return vaulterrors.Wrap(err, "create integrity tmp file")
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return vaulterrors.Wrap(err, "write integrity tmp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return vaulterrors.Wrap(err, "fsync integrity tmp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return vaulterrors.Wrap(err, "close integrity tmp file")
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return vaulterrors.Wrap(err, "rename integrity tmp file")
	}
	return nil
}

// Load reads and validates the integrity index at <runDir>/.integrity.
func Load(runDir string) (*Index, error) {
	path := filepath.Join(runDir, IndexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vaulterrors.Wrap(err, "read integrity index")
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, vaulterrors.NewCryptoError("integrity", fmt.Errorf("%w: %v", vaulterrors.ErrIndexMalformed, err))
	}
	if idx.SchemaVersion != SchemaVersion {
		return nil, vaulterrors.NewCryptoError("integrity", fmt.Errorf("%w: schema version %d", vaulterrors.ErrUnsupportedFormat, idx.SchemaVersion))
	}
	return &idx, nil
}

// Action classifies a file relative to a parent index during change
// detection.
type Action int

const (
	Added Action = iota
	Modified
	Unchanged
)

func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Diff classifies every entry in currentHashes against parent (which may be
// nil for a Full run or a run with no prior chain), keyed by relative path.
func Diff(currentHashes map[string]fingerprint.Digest, parent *Index) map[string]Action {
	result := make(map[string]Action, len(currentHashes))

	for relPath, digest := range currentHashes {
		if parent == nil {
			result[relPath] = Added
			continue
		}
		parentHash, ok := parent.Files[relPath]
		switch {
		case !ok:
			result[relPath] = Added
		case parentHash == digest.String():
			result[relPath] = Unchanged
		default:
			result[relPath] = Modified
		}
	}

	return result
}

// FoldChain composes the effective full-run mapping for a chain of indices
// ordered oldest (a Full run) to newest. Each successive index's Files
// override the accumulated mapping at the same relative path, so the result
// equals the mapping a hypothetical Full run taken at the newest run's time
// would have produced — this is the "chain fold" referenced by change
// detection and by the archive reader when locating a file's most recent
// bytes.
func FoldChain(chain []*Index) map[string]string {
	effective := make(map[string]string)
	for _, idx := range chain {
		if idx == nil {
			continue
		}
		for relPath, hash := range idx.Files {
			effective[relPath] = hash
		}
	}
	return effective
}

// DiffAgainstChain classifies currentHashes against the effective mapping
// produced by folding parentChain (oldest first). Pass a nil or empty chain
// for a Full run with no parent.
func DiffAgainstChain(currentHashes map[string]fingerprint.Digest, parentChain []*Index) map[string]Action {
	effective := FoldChain(parentChain)
	result := make(map[string]Action, len(currentHashes))

	for relPath, digest := range currentHashes {
		parentHash, ok := effective[relPath]
		switch {
		case !ok:
			result[relPath] = Added
		case parentHash == digest.String():
			result[relPath] = Unchanged
		default:
			result[relPath] = Modified
		}
	}

	return result
}
