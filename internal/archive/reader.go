package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vaultkeep/vaultkeep/internal/aead"
	"github.com/vaultkeep/vaultkeep/internal/codec"
	"github.com/vaultkeep/vaultkeep/internal/fingerprint"
	"github.com/vaultkeep/vaultkeep/internal/integrity"
	"github.com/vaultkeep/vaultkeep/internal/kdf"
	"github.com/vaultkeep/vaultkeep/internal/pathkernel"
	"github.com/vaultkeep/vaultkeep/internal/pipeline"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
	"github.com/vaultkeep/vaultkeep/internal/vaultlog"
)

// ResolveChain follows parent pointers from runID up to the first Full run
// and returns the chain oldest (the Full run) first. A run directory with no saved integrity index (an interrupted
// capture) breaks the chain with ErrChainBroken.
func ResolveChain(destinationRoot, runID string) ([]*integrity.Index, error) {
	var chain []*integrity.Index
	seen := make(map[string]bool)

	current := runID
	for current != "" {
		if seen[current] {
			return nil, vaulterrors.Wrap(vaulterrors.ErrChainBroken, fmt.Sprintf("cycle detected at run %q", current))
		}
		seen[current] = true

		runDir := filepath.Join(destinationRoot, current)
		idx, err := integrity.Load(runDir)
		if err != nil {
			return nil, vaulterrors.Wrap(fmt.Errorf("%w: %v", vaulterrors.ErrChainBroken, err), "resolve incremental chain")
		}

		chain = append(chain, idx)
		current = idx.ParentRunID
	}

	// chain is newest-first (runID, its parent, ...); reverse to oldest-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// locateSourceIndex finds the most recent index in chain (oldest-first)
// whose own Files map contains relPath: the run whose directory physically
// holds that file's bytes, since an incremental run stores a file only when
// it changed.
func locateSourceIndex(relPath string, chain []*integrity.Index) (*integrity.Index, bool) {
	for i := len(chain) - 1; i >= 0; i-- {
		if _, ok := chain[i].Files[relPath]; ok {
			return chain[i], true
		}
	}
	return nil, false
}

// RestoreOptions configures a single restore of one run (and its chain).
type RestoreOptions struct {
	DestinationRoot string // backup destination root containing run directories
	RestoreTo       string // directory to restore the tree into
	// Password is required if any run in the chain is encrypted.
	Password []byte
	// Verify re-hashes every written file and compares it against the
	// effective index after restore.
	Verify bool

	// OnProgress, if non-nil, is called after each file is restored with
	// the running count of files done vs. the total in the effective
	// index. The encrypted file format carries no plaintext size ahead of
	// decryption, so restore progress is tracked by file count rather
	// than bytes (contrast archive.WriteOptions.OnProgress).
	OnProgress func(filesDone, filesTotal int)
}

// RestoreFileError is a single per-file failure during restore.
type RestoreFileError struct {
	Path string
	Kind error
}

// RestoreSummary reports the outcome of a RestoreRun call.
type RestoreSummary struct {
	RunID              string
	FilesTotal         int
	FilesOK            int
	Errors             []RestoreFileError
	IntegrityFailures  []string
}

// RestoreRun resolves runID's incremental chain, builds the effective file
// map, and writes every file's recovered plaintext under opts.RestoreTo.
// Restore is idempotent: a destination file whose content already matches
// the expected hash is left untouched; anything else is overwritten.
func RestoreRun(runID string, opts RestoreOptions) (*RestoreSummary, error) {
	chain, err := ResolveChain(opts.DestinationRoot, runID)
	if err != nil {
		return nil, err
	}

	effective := integrity.FoldChain(chain)
	summary := &RestoreSummary{RunID: runID, FilesTotal: len(effective)}

	relPaths := make([]string, 0, len(effective))
	for relPath := range effective {
		relPaths = append(relPaths, relPath)
	}
	sort.Strings(relPaths)

	for i, relPath := range relPaths {
		wantHash := effective[relPath]

		sourceIdx, ok := locateSourceIndex(relPath, chain)
		if !ok {
			summary.Errors = append(summary.Errors, RestoreFileError{Path: relPath, Kind: vaulterrors.ErrChainBroken})
			if opts.OnProgress != nil {
				opts.OnProgress(i+1, len(relPaths))
			}
			continue
		}

		if err := restoreOneFile(relPath, wantHash, sourceIdx, opts); err != nil {
			summary.Errors = append(summary.Errors, RestoreFileError{Path: relPath, Kind: err})
			vaultlog.Error("restore failed", vaultlog.RunID(runID), vaultlog.TargetPath(relPath), vaultlog.Err(err))
			if opts.OnProgress != nil {
				opts.OnProgress(i+1, len(relPaths))
			}
			continue
		}
		summary.FilesOK++
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(relPaths))
		}
	}

	if opts.Verify {
		summary.IntegrityFailures = verifyRestored(relPaths, effective, opts.RestoreTo)
	}

	return summary, nil
}

// alreadyPresent reports whether destPath exists with content matching
// wantHashHex, so RestoreRun can skip rewriting unchanged files and stay
// idempotent across repeated invocations.
func alreadyPresent(destPath, wantHashHex string) bool {
	if _, err := os.Stat(destPath); err != nil {
		return false
	}
	digest, err := fingerprint.HashFile(destPath)
	if err != nil {
		return false
	}
	return digest.String() == wantHashHex
}

func restoreOneFile(relPath, wantHashHex string, sourceIdx *integrity.Index, opts RestoreOptions) error {
	destPath, err := pathkernel.SafeJoin(opts.RestoreTo, relPath)
	if err != nil {
		return err
	}

	if alreadyPresent(destPath, wantHashHex) {
		return nil
	}

	runDir := filepath.Join(opts.DestinationRoot, sourceIdx.RunID)
	srcPath, err := pathkernel.SafeJoin(runDir, relPath)
	if err != nil {
		return err
	}

	src, err := pathkernel.SafeOpenReadonly(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return vaulterrors.NewPathError("restore_run", destPath, err)
	}

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return vaulterrors.NewPathError("restore_run", destPath, err)
	}
	defer dst.Close()

	codecKind, err := codec.ParseKind(sourceIdx.Codec)
	if err != nil {
		return err
	}

	popts := pipeline.Options{Codec: codecKind, Encrypt: sourceIdx.Encrypted}

	var reader io.Reader = src
	if sourceIdx.Encrypted {
		if len(opts.Password) == 0 {
			return vaulterrors.NewCryptoError("restore_run", vaulterrors.ErrInvalidConfig)
		}

		headerBuf := make([]byte, aead.HeaderSize)
		if _, err := io.ReadFull(src, headerBuf); err != nil {
			return vaulterrors.NewCryptoError("restore_run", err)
		}
		header, err := aead.ReadHeader(bytes.NewReader(headerBuf))
		if err != nil {
			return err
		}

		key, err := kdf.DeriveKey(opts.Password, header.Salt[:])
		if err != nil {
			return err
		}
		popts.Key = key
		reader = io.MultiReader(bytes.NewReader(headerBuf), src)
	}

	if err := pipeline.RestoreStream(reader, dst, popts); err != nil {
		os.Remove(destPath)
		return err
	}
	return dst.Sync()
}

// VerifyResult reports the outcome of a standalone VerifyTree call.
type VerifyResult struct {
	FilesChecked int
	Missing      []string
	Mismatched   []string
}

// VerifyTree re-hashes every file named by runID's effective index (its own
// files folded with its incremental ancestors) under root and reports any
// that are missing or whose content no longer matches the recorded digest.
// Unlike RestoreRun's --verify pass, this never writes anything; it checks an
// already-restored or otherwise independently populated tree.
func VerifyTree(destinationRoot, runID, root string) (*VerifyResult, error) {
	chain, err := ResolveChain(destinationRoot, runID)
	if err != nil {
		return nil, err
	}
	effective := integrity.FoldChain(chain)

	result := &VerifyResult{FilesChecked: len(effective)}
	relPaths := make([]string, 0, len(effective))
	for relPath := range effective {
		relPaths = append(relPaths, relPath)
	}
	sort.Strings(relPaths)

	for _, relPath := range relPaths {
		destPath, err := pathkernel.SafeJoin(root, relPath)
		if err != nil {
			result.Mismatched = append(result.Mismatched, relPath)
			continue
		}
		if _, err := os.Stat(destPath); err != nil {
			result.Missing = append(result.Missing, relPath)
			continue
		}
		digest, err := fingerprint.HashFile(destPath)
		if err != nil || digest.String() != effective[relPath] {
			result.Mismatched = append(result.Mismatched, relPath)
		}
	}
	return result, nil
}

// verifyRestored re-hashes every restored file and compares it to the
// effective index's recorded digest.
func verifyRestored(relPaths []string, effective map[string]string, restoreTo string) []string {
	var failures []string
	for _, relPath := range relPaths {
		destPath, err := pathkernel.SafeJoin(restoreTo, relPath)
		if err != nil {
			failures = append(failures, relPath)
			continue
		}
		digest, err := fingerprint.HashFile(destPath)
		if err != nil || digest.String() != effective[relPath] {
			failures = append(failures, relPath)
		}
	}
	return failures
}
