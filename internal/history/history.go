// Package history implements the process-wide append-only History Record
// sink. The core emits one Record per run; consumers (dashboard, audit log)
// read the sink back but the core never does, except for the CLI's own
// "history" display command. The sink's storage format is the
// implementation's concern — JSONLSink is the default, swappable
// implementation, analogous to internal/registry's role for targets.
package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// Outcome is the terminal status of a run.
type Outcome string

const (
	Success        Outcome = "success"
	PartialFailure Outcome = "partial_failure"
	Failure        Outcome = "failure"
)

// ErrorSummary is one entry in a Record's per-file error list.
type ErrorSummary struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Record is one history entry emitted per run.
type Record struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	Kind       string         `json:"kind"` // "Full" | "Incremental"
	ParentRun  string         `json:"parent_run,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	FilesTotal int            `json:"files_total"`
	FilesOK    int            `json:"files_ok"`
	BytesTotal int64          `json:"bytes_total"`
	Outcome    Outcome        `json:"outcome"`
	Errors     []ErrorSummary `json:"errors,omitempty"`
}

// NewRecord stamps a Record with a fresh UUID. Two runs started within the
// same wall-clock second still get distinct history entries even though the
// run id itself is timestamp-derived to only one-second resolution.
func NewRecord(runID, kind, parentRun string, startedAt time.Time) *Record {
	return &Record{
		ID:        uuid.NewString(),
		RunID:     runID,
		Kind:      kind,
		ParentRun: parentRun,
		StartedAt: startedAt,
	}
}

// Sink is the persistence collaborator for history records.
type Sink interface {
	Append(r Record) error
	List() ([]Record, error)
}

// JSONLSink appends one JSON object per line to Path, never rewriting
// previously written records — a true append-only log.
type JSONLSink struct {
	Path string
}

// NewJSONLSink returns a JSONLSink backed by path.
func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{Path: path}
}

// Append writes r as one more line of the JSONL file, creating the file and
// any parent directory if needed.
func (s *JSONLSink) Append(r Record) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return vaulterrors.Wrap(err, "create history directory")
		}
	}

	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return vaulterrors.Wrap(err, "open history sink")
	}
	defer f.Close()

	data, err := json.Marshal(r)
	if err != nil {
		return vaulterrors.Wrap(err, "marshal history record")
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return vaulterrors.Wrap(err, "append history record")
	}
	return f.Sync()
}

// List reads every record in the sink, oldest first.
func (s *JSONLSink) List() ([]Record, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, vaulterrors.Wrap(err, "read history sink")
	}

	var records []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var r Record
		if err := dec.Decode(&r); err != nil {
			break
		}
		records = append(records, r)
	}
	return records, nil
}
