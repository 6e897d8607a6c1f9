// Package coordinator implements the Run Coordinator: the top-level
// orchestration the CLI calls to turn a target selection and a mode into a
// sealed run. It validates inputs, allocates the run id,
// resolves the parent chain for incremental mode, drives the archive
// writer, and emits history.
package coordinator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vaultkeep/vaultkeep/internal/archive"
	"github.com/vaultkeep/vaultkeep/internal/codec"
	"github.com/vaultkeep/vaultkeep/internal/history"
	"github.com/vaultkeep/vaultkeep/internal/integrity"
	"github.com/vaultkeep/vaultkeep/internal/target"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
	"github.com/vaultkeep/vaultkeep/internal/vaultlog"
)

// RunIDLayout is the timestamp layout backing a run id,
// backup_YYYYMMDD_HHMMSS.
const RunIDLayout = "20060102_150405"

// NewRunID formats t as a run id.
func NewRunID(t time.Time) string {
	return "backup_" + t.UTC().Format(RunIDLayout)
}

// Options configures a single run.
type Options struct {
	DestinationRoot string
	Mode            integrity.Kind // Full or Incremental
	Codec           codec.Kind
	Level           int
	Encrypt         bool
	Password        []byte
	DryRun          bool
	Workers         int

	// PriorityFilter and CategoryFilter, if non-empty, restrict which
	// registered targets this run selects.
	PriorityFilter target.Priority
	CategoryFilter string

	// OnProgress, if non-nil, is forwarded to the archive writer's
	// WriteOptions.OnProgress for this run.
	OnProgress func(filesDone, filesTotal int, bytesDone, bytesTotal int64)
}

// Coordinator drives the archive writer/reader against a target registry
// and a history sink.
type Coordinator struct {
	Registry target.Registry
	History  history.Sink
	Now      func() time.Time // overridable for tests
}

// New returns a Coordinator backed by reg and hist, using wall-clock time.
func New(reg target.Registry, hist history.Sink) *Coordinator {
	return &Coordinator{Registry: reg, History: hist, Now: time.Now}
}

// RunResult is returned by Run: the allocated run id and its writer summary.
type RunResult struct {
	RunID   string
	Summary *archive.Summary
}

// Run selects targets, allocates a run id, resolves the incremental parent
// chain if applicable, and drives the archive writer, emitting a history
// record on completion. An Incremental request with no prior non-failed run
// for the same selection silently downgrades to Full.
func (c *Coordinator) Run(opts Options) (*RunResult, error) {
	if err := c.validateOptions(&opts); err != nil {
		return nil, err
	}

	targets, err := c.selectTargets(opts)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no registered targets match the selection")
	}

	mode := opts.Mode
	var parentRunID string
	var parentChain []*integrity.Index

	if mode == integrity.KindIncremental {
		latest, chain, err := c.findLatestRun(opts.DestinationRoot)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			vaultlog.Info("no prior run found; downgrading to a full backup")
			mode = integrity.KindFull
		} else {
			parentRunID = latest
			parentChain = chain
		}
	}

	if opts.DryRun {
		report, err := archive.PlanDryRun(targets, parentChain)
		if err != nil {
			return nil, err
		}
		vaultlog.Info("dry run complete",
			vaultlog.Int("to_store", len(report.ToStore)),
			vaultlog.Int("to_copy", len(report.ToCopy)),
			vaultlog.Int("failed", len(report.Failed)),
			vaultlog.Int64("total_bytes", report.TotalBytes))
		return &RunResult{Summary: &archive.Summary{
			FilesTotal: len(report.ToStore) + len(report.ToCopy),
			BytesTotal: report.TotalBytes,
		}}, nil
	}

	runID, err := c.allocateRunID(opts.DestinationRoot)
	if err != nil {
		return nil, err
	}
	runLog := vaultlog.ForRun(runID)
	runLog.Info("run starting", vaultlog.String("kind", string(mode)))

	startedAt := c.now()
	record := history.NewRecord(runID, string(mode), parentRunID, startedAt)

	summary, writeErr := archive.WriteRun(runID, targets, archive.WriteOptions{
		DestinationRoot: opts.DestinationRoot,
		Kind:            mode,
		ParentRunID:     parentRunID,
		ParentChain:     parentChain,
		Codec:           opts.Codec,
		Level:           opts.Level,
		Encrypt:         opts.Encrypt,
		Password:        opts.Password,
		Workers:         opts.Workers,
		OnProgress:      opts.OnProgress,
	})

	record.FinishedAt = c.now()
	if summary != nil {
		record.FilesTotal = summary.FilesTotal
		record.FilesOK = summary.FilesOK
		record.BytesTotal = summary.BytesTotal
		for _, e := range summary.Errors {
			record.Errors = append(record.Errors, history.ErrorSummary{Path: e.Path, Kind: e.Kind.Error()})
		}
	}

	switch {
	case writeErr != nil:
		record.Outcome = history.Failure
	case summary != nil && len(summary.Errors) > 0:
		record.Outcome = history.PartialFailure
	default:
		record.Outcome = history.Success
	}

	if c.History != nil {
		if err := c.History.Append(*record); err != nil {
			runLog.Warn("failed to append history record", vaultlog.Err(err))
		}
	}

	if writeErr != nil {
		return &RunResult{RunID: runID, Summary: summary}, writeErr
	}
	return &RunResult{RunID: runID, Summary: summary}, nil
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) validateOptions(opts *Options) error {
	if opts.DestinationRoot == "" {
		return fmt.Errorf("%w: destination root is required", vaulterrors.ErrInvalidConfig)
	}
	if err := codec.ValidateLevel(opts.Codec, opts.Level); err != nil {
		return err
	}
	if opts.Encrypt && len(opts.Password) == 0 {
		return fmt.Errorf("%w: encryption requires a password", vaulterrors.ErrInvalidConfig)
	}
	return nil
}

func (c *Coordinator) selectTargets(opts Options) ([]target.Target, error) {
	all, err := c.Registry.List()
	if err != nil {
		return nil, err
	}

	var selected []target.Target
	for _, t := range all {
		if opts.PriorityFilter != "" && t.Priority != opts.PriorityFilter {
			continue
		}
		if opts.CategoryFilter != "" && t.Category != opts.CategoryFilter {
			continue
		}
		if _, err := t.Validate(); err != nil {
			return nil, err
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// allocateRunID derives a run id from wall-clock time; if that run
// directory already exists the call fails with ErrRunIDConflict and the
// caller retries one second later.
func (c *Coordinator) allocateRunID(destinationRoot string) (string, error) {
	runID := NewRunID(c.now())
	runDir := filepath.Join(destinationRoot, runID)
	if _, err := os.Stat(runDir); err == nil {
		return "", vaulterrors.NewRunError(runID, vaulterrors.ErrRunIDConflict)
	}
	return runID, nil
}

// findLatestRun locates the most recent non-failed run under
// destinationRoot and resolves its full ancestor chain, for use as the
// parent of a new Incremental run.
func (c *Coordinator) findLatestRun(destinationRoot string) (string, []*integrity.Index, error) {
	entries, err := os.ReadDir(destinationRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, vaulterrors.Wrap(err, "list destination root")
	}

	var runIDs []string
	for _, e := range entries {
		if e.IsDir() {
			runIDs = append(runIDs, e.Name())
		}
	}
	sort.Strings(runIDs)

	for i := len(runIDs) - 1; i >= 0; i-- {
		runID := runIDs[i]
		idx, err := integrity.Load(filepath.Join(destinationRoot, runID))
		if err != nil {
			// No (or malformed) integrity index means an incomplete,
			// likely cancelled run: never usable as a parent.
			vaultlog.Warn("skipping incomplete run as an incremental parent candidate", vaultlog.RunID(runID))
			continue
		}

		chain, err := archive.ResolveChain(destinationRoot, runID)
		if err != nil {
			continue
		}
		return idx.RunID, chain, nil
	}

	return "", nil, nil
}
