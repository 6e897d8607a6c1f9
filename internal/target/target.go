// Package target defines the Target data model: a registered source path
// carrying priority, category, and exclusion patterns, plus the Registry
// interface its persistence collaborator implements. Core packages depend on this package only; the default
// file-backed registry lives in internal/registry.
package target

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vaultkeep/vaultkeep/internal/pathkernel"
	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// Priority tags a target for selection filtering.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority parses a user-supplied priority string, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(s)) {
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	}
	return "", fmt.Errorf("%w: priority must be high, medium, or low, got %q", vaulterrors.ErrInvalidConfig, s)
}

// Target is one registered backup source.
type Target struct {
	Path      string    `yaml:"path"`
	Priority  Priority  `yaml:"priority"`
	Category  string    `yaml:"category,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	// ExcludePatterns are regular expressions matched against paths
	// relative to the target root. A leading "/" anchors the pattern at
	// the root; a trailing "/" restricts it to directories.
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
}

// Validate canonicalizes the target's path through the path kernel and
// checks the rest of the record, returning the canonical path. It is called
// at registration and again on every use, so a target whose directory was
// replaced or removed mid-lifetime never reaches the walk unchecked.
func (t Target) Validate() (string, error) {
	if t.Path == "" {
		return "", fmt.Errorf("%w: target path is empty", vaulterrors.ErrInvalidConfig)
	}
	if t.Priority != PriorityHigh && t.Priority != PriorityMedium && t.Priority != PriorityLow {
		return "", fmt.Errorf("%w: unknown priority %q", vaulterrors.ErrInvalidConfig, t.Priority)
	}
	if _, err := CompileExcludes(t.ExcludePatterns); err != nil {
		return "", err
	}

	canonical, err := pathkernel.Canonicalize(t.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", vaulterrors.ErrTargetNotFound, t.Path, err)
	}
	return canonical, nil
}

// CategoryOrDefault returns the target's category, or "all" when
// uncategorized; the archive writer uses it as the category subdirectory
// name under a run.
func (t Target) CategoryOrDefault() string {
	if t.Category == "" {
		return "all"
	}
	return t.Category
}

// Registry is the persistence collaborator holding registered targets. The
// on-disk format is the implementation's concern; see internal/registry for
// the default.
type Registry interface {
	// Add registers t, rejecting duplicates by canonical path.
	Add(t Target) error
	// Remove unregisters the target stored under canonicalPath.
	Remove(canonicalPath string) error
	// List returns every registered target.
	List() ([]Target, error)
}

// ExcludePattern is one compiled exclusion rule.
type ExcludePattern struct {
	re      *regexp.Regexp
	dirOnly bool
}

// CompileExcludes compiles raw exclusion patterns. A leading "/" anchors
// the expression at the target root; a trailing "/" makes it match
// directories only; the remainder is a regular expression.
func CompileExcludes(patterns []string) ([]ExcludePattern, error) {
	compiled := make([]ExcludePattern, 0, len(patterns))
	for _, raw := range patterns {
		expr := raw
		dirOnly := strings.HasSuffix(expr, "/")
		if dirOnly {
			expr = strings.TrimSuffix(expr, "/")
		}
		if strings.HasPrefix(expr, "/") {
			expr = "^" + strings.TrimPrefix(expr, "/")
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: exclude pattern %q: %v", vaulterrors.ErrInvalidConfig, raw, err)
		}
		compiled = append(compiled, ExcludePattern{re: re, dirOnly: dirOnly})
	}
	return compiled, nil
}

// Match reports whether relPath (slash-separated, target-relative) is
// excluded by this pattern.
func (p ExcludePattern) Match(relPath string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	return p.re.MatchString(relPath)
}

// AnyMatch reports whether any of patterns excludes relPath.
func AnyMatch(patterns []ExcludePattern, relPath string, isDir bool) bool {
	for _, p := range patterns {
		if p.Match(relPath, isDir) {
			return true
		}
	}
	return false
}
