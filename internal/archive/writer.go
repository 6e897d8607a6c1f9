// Package archive implements the per-run capture and restore engine: the
// Archive Writer and Archive Reader. Both drive the lower layers (path kernel, fingerprint, codec, AEAD,
// pipeline, integrity, changeset) to turn a set of targets into a sealed run
// directory, and the inverse.
package archive

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/vaultkeep/vaultkeep/internal/changeset"
	"github.com/vaultkeep/vaultkeep/internal/codec"
	"github.com/vaultkeep/vaultkeep/internal/integrity"
	"github.com/vaultkeep/vaultkeep/internal/pathkernel"
	"github.com/vaultkeep/vaultkeep/internal/pipeline"
	"github.com/vaultkeep/vaultkeep/internal/target"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
	"github.com/vaultkeep/vaultkeep/internal/vaultlog"
)

// WriteOptions configures a single run of the Archive Writer.
type WriteOptions struct {
	DestinationRoot string
	Kind            integrity.Kind
	ParentRunID     string
	// ParentChain is the resolved parent chain, oldest (Full) first, used
	// for incremental change detection. Empty for a Full run.
	ParentChain []*integrity.Index

	Codec   codec.Kind
	Level   int
	Encrypt bool
	// Password is required when Encrypt is true; a fresh per-file key is
	// derived from it with a fresh random salt.
	Password []byte

	Workers int // 0 means runtime.NumCPU()

	// OnProgress, if non-nil, is called after each file in the run finishes
	// (successfully or not) with the running totals so far: files done vs.
	// the total selected for this run, and bytes captured vs. the estimated
	// total across files that must be stored. The CLI reporter uses this to
	// drive its progress bar (internal/util.Statify).
	OnProgress func(filesDone, filesTotal int, bytesDone, bytesTotal int64)
}

// FileError is a single per-file failure recorded into a run's error list;
// it does not abort the run.
type FileError struct {
	Path string
	Kind error
}

// Summary reports the outcome of a completed WriteRun call.
type Summary struct {
	RunID           string
	FilesTotal      int
	FilesOK         int
	FilesSkipped    int // unchanged; relies on an ancestor run
	BytesTotal      int64
	Errors          []FileError
	SkippedSymlinks []string
}

// DryRunReport is the informational output of a dry run: what would have
// been written, structured as path lists and byte totals. Failed lists the
// candidates whose pre-pass hash failed; a real run would record those as
// per-file errors.
type DryRunReport struct {
	ToStore    []string
	ToCopy     []string
	Failed     []string
	TotalBytes int64
}

type job struct {
	entry   changeset.Entry
	destDir string
}

type jobResult struct {
	relPath string
	bytes   int64
	err     error
}

// WriteRun creates <destination>/<run_id>/, walks every target's source
// tree, applies exclusions and change detection, and writes the retained
// files through the pipeline into the run directory. It returns once every
// worker has drained and the integrity index has been saved — the run is
// not observable as complete before that point.
func WriteRun(runID string, targets []target.Target, opts WriteOptions) (*Summary, error) {
	runDir := filepath.Join(opts.DestinationRoot, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, vaulterrors.Wrap(err, "create run directory")
	}

	entries, failed, skippedSymlinks, err := collectEntries(runDir, targets, opts.ParentChain)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: runID, FilesTotal: len(entries) + len(failed), SkippedSymlinks: skippedSymlinks}

	// Candidates whose pre-pass hash failed are per-file errors, not a run
	// abort: record them and capture everything else.
	for _, f := range failed {
		summary.Errors = append(summary.Errors, FileError{Path: f.RelativePath, Kind: f.Err})
		vaultlog.Error("file hash failed", vaultlog.RunID(runID), vaultlog.TargetPath(f.RelativePath), vaultlog.Err(f.Err))
	}

	toStore := 0
	var bytesTotal int64
	for _, e := range entries {
		if e.Action == changeset.Copy {
			continue
		}
		toStore++
		if info, statErr := os.Stat(e.SourcePath); statErr == nil {
			bytesTotal += info.Size()
		}
	}

	idx := integrity.NewIndex(runID, opts.Kind, opts.ParentRunID, time.Now().UTC())
	idx.Codec = opts.Codec.String()
	idx.Level = opts.Level
	idx.Encrypted = opts.Encrypt

	var deriver *keyDeriver
	if opts.Encrypt {
		deriver = newKeyDeriver(opts.Password)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan job)
	results := make(chan jobResult)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				n, werr := writeOneFile(j, opts, deriver)
				results <- jobResult{relPath: j.entry.RelativePath, bytes: n, err: werr}
			}
		}()
	}

	go func() {
		for _, e := range entries {
			if e.Action == changeset.Copy {
				continue
			}
			jobs <- job{entry: e, destDir: runDir}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var fatal error
	filesDone := 0
	var bytesDone int64
	for r := range results {
		filesDone++
		if r.err != nil {
			if vaulterrors.Is(r.err, vaulterrors.ErrPathEscape) || vaulterrors.Is(r.err, vaulterrors.ErrNonceReuseDetected) {
				fatal = vaulterrors.NewRunError(runID, r.err)
				continue
			}
			summary.Errors = append(summary.Errors, FileError{Path: r.relPath, Kind: r.err})
			vaultlog.Error("file capture failed", vaultlog.RunID(runID), vaultlog.TargetPath(r.relPath), vaultlog.Err(r.err))
			if opts.OnProgress != nil {
				opts.OnProgress(filesDone, toStore, bytesDone, bytesTotal)
			}
			continue
		}
		summary.FilesOK++
		summary.BytesTotal += r.bytes
		bytesDone += r.bytes
		if opts.OnProgress != nil {
			opts.OnProgress(filesDone, toStore, bytesDone, bytesTotal)
		}
	}

	if fatal != nil {
		return summary, fatal
	}

	for _, e := range entries {
		if e.Action == changeset.Copy {
			summary.FilesSkipped++
			continue
		}
		idx.Put(e.RelativePath, e.Digest)
	}

	if err := integrity.Save(idx, runDir); err != nil {
		return summary, err
	}

	return summary, nil
}

// PlanDryRun performs the walk and change-detection steps without writing
// any bytes, reporting what a real run would do.
func PlanDryRun(targets []target.Target, parentChain []*integrity.Index) (*DryRunReport, error) {
	candidates, _, err := gatherCandidates(targets, "")
	if err != nil {
		return nil, err
	}

	result, err := changeset.Detect(candidates, parentChain)
	if err != nil {
		return nil, err
	}

	report := &DryRunReport{}
	for _, f := range result.Failed {
		report.Failed = append(report.Failed, f.RelativePath)
	}
	for _, e := range result.Entries {
		if e.Action == changeset.Copy {
			report.ToCopy = append(report.ToCopy, e.RelativePath)
			continue
		}
		report.ToStore = append(report.ToStore, e.RelativePath)
		if info, err := os.Stat(e.SourcePath); err == nil {
			report.TotalBytes += info.Size()
		}
	}
	return report, nil
}

// gatherCandidates walks every target and produces the flat candidate list
// change detection operates on, plus the symlinks the walk declined to
// follow. When runDir is non-empty, every destination path is additionally
// validated through the path kernel before it is accepted as a candidate —
// the dry-run caller passes an empty runDir since it has no run directory
// to validate against yet.
func gatherCandidates(targets []target.Target, runDir string) ([]changeset.Candidate, []string, error) {
	var candidates []changeset.Candidate
	var skippedSymlinks []string

	for _, tgt := range targets {
		canonicalRoot, err := tgt.Validate()
		if err != nil {
			return nil, nil, err
		}
		excludes, err := target.CompileExcludes(tgt.ExcludePatterns)
		if err != nil {
			return nil, nil, err
		}

		files, skipped, err := walkTarget(canonicalRoot, excludes)
		if err != nil {
			return nil, nil, vaulterrors.NewPathError("walk_target", canonicalRoot, err)
		}
		for _, s := range skipped {
			skippedSymlinks = append(skippedSymlinks, s.Path)
		}

		base := filepath.Base(canonicalRoot)
		category := tgt.CategoryOrDefault()

		for _, f := range files {
			relDest := filepath.ToSlash(filepath.Join(category, base, f.RelPath))
			if runDir != "" {
				if _, err := pathkernel.SafeJoin(runDir, relDest); err != nil {
					return nil, nil, err
				}
			}
			candidates = append(candidates, changeset.Candidate{SourcePath: f.SourcePath, RelativePath: relDest})
		}
	}

	return candidates, skippedSymlinks, nil
}

// collectEntries gathers candidates across all targets and classifies them
// against parentChain, additionally returning the candidates whose pre-pass
// hash failed and the symlinks the walk declined to follow.
func collectEntries(runDir string, targets []target.Target, parentChain []*integrity.Index) ([]changeset.Entry, []changeset.Failure, []string, error) {
	candidates, skippedSymlinks, err := gatherCandidates(targets, runDir)
	if err != nil {
		return nil, nil, nil, err
	}

	result, err := changeset.Detect(candidates, parentChain)
	if err != nil {
		return nil, nil, nil, err
	}
	return result.Entries, result.Failed, skippedSymlinks, nil
}

// writeOneFile applies the pipeline to a single changeset entry, writing
// its stored form under j.destDir. Each worker owns its own compressor and
// AEAD state implicitly (ProcessStream allocates fresh buffers per call) so
// there is no shared mutable state across concurrent files other than the
// key deriver's mutex.
func writeOneFile(j job, opts WriteOptions, deriver *keyDeriver) (int64, error) {
	destPath, err := pathkernel.SafeJoin(j.destDir, j.entry.RelativePath)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, vaulterrors.NewFileError(j.entry.RelativePath, vaulterrors.ErrDestinationUnwritable, err)
	}

	src, err := pathkernel.SafeOpenReadonly(j.entry.SourcePath)
	if err != nil {
		return 0, vaulterrors.NewFileError(j.entry.RelativePath, vaulterrors.ErrFileChangedDuringRead, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, vaulterrors.NewFileError(j.entry.RelativePath, vaulterrors.ErrFileChangedDuringRead, err)
	}

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, vaulterrors.NewFileError(j.entry.RelativePath, vaulterrors.ErrDestinationUnwritable, err)
	}
	defer dst.Close()

	popts := pipeline.Options{
		Codec:     opts.Codec,
		Level:     opts.Level,
		Encrypt:   opts.Encrypt,
		InputSize: info.Size(),
	}

	if opts.Encrypt {
		salt, key, derr := deriver.DeriveFileKey()
		if derr != nil {
			return 0, vaulterrors.NewFileError(j.entry.RelativePath, vaulterrors.ErrInvalidConfig, derr)
		}
		popts.Salt = salt
		popts.Key = key
	}

	if err := pipeline.ProcessStream(src, dst, popts); err != nil {
		return 0, vaulterrors.NewFileError(j.entry.RelativePath, vaulterrors.ErrDestinationUnwritable, err)
	}

	if err := dst.Sync(); err != nil {
		return 0, vaulterrors.NewFileError(j.entry.RelativePath, vaulterrors.ErrDestinationUnwritable, err)
	}

	return info.Size(), nil
}
