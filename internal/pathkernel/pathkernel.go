// Package pathkernel is the single gate every externally supplied path must
// pass through before it touches the filesystem. No other package in the
// backup engine is permitted to call os.Open/os.OpenFile on a path derived
// from target registration, archive entries, or restore destinations — it
// must go through SafeJoin and SafeOpenReadonly first.
package pathkernel

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/text/unicode/norm"

	"github.com/vaultkeep/vaultkeep/internal/vaulterrors"
)

// SafeJoin normalizes child (NFKC), rejects a NUL byte or any ".." component
// or an absolute child, joins it against base, and verifies the canonical
// result still begins with the canonical base. It is the only sanctioned way
// to turn a target-relative path into a filesystem path anywhere in the
// backup engine.
func SafeJoin(base, child string) (string, error) {
	if strings.IndexByte(child, 0) != -1 {
		return "", vaulterrors.NewPathError("safe_join", child, vaulterrors.ErrNulByteInPath)
	}

	normalized := norm.NFKC.String(child)
	if normalized != child {
		// Accept normalization rather than reject it outright: two byte
		// sequences for the same text must not resolve to different
		// filesystem entries, so the kernel always operates on the
		// normalized form from here on.
		child = normalized
	}

	if filepath.IsAbs(child) {
		return "", vaulterrors.NewPathError("safe_join", child, vaulterrors.ErrPathEscape)
	}

	for _, part := range strings.Split(filepath.ToSlash(child), "/") {
		if part == ".." {
			return "", vaulterrors.NewPathError("safe_join", child, vaulterrors.ErrPathEscape)
		}
	}

	canonicalBase, err := canonicalize(base)
	if err != nil {
		return "", vaulterrors.NewPathError("safe_join", base, err)
	}

	joined := filepath.Join(base, child)

	// The joined path need not exist yet (it may be a restore destination
	// about to be created), so canonicalize only the existing portion: walk
	// up from joined until a path component exists, resolve that, then
	// re-append the remainder.
	canonicalJoined, err := canonicalizeExistingPrefix(joined)
	if err != nil {
		return "", vaulterrors.NewPathError("safe_join", joined, err)
	}

	if !withinBase(canonicalJoined, canonicalBase) {
		return "", vaulterrors.NewPathError("safe_join", joined, vaulterrors.ErrPathEscape)
	}

	return joined, nil
}

// Canonicalize resolves path to its canonical, symlink-free absolute form.
// Target registration and every subsequent use of a target's root path call
// this directly (rather than SafeJoin, which validates a base/child pair)
// so that a target re-validated mid-lifetime is checked against the same
// rules the kernel applies everywhere else.
func Canonicalize(path string) (string, error) {
	resolved, err := canonicalize(path)
	if err != nil {
		return "", vaulterrors.NewPathError("canonicalize", path, err)
	}
	return resolved, nil
}

// withinBase reports whether candidate is equal to base or a descendant of
// it, comparing cleaned, separator-bounded paths so that a sibling directory
// sharing a name prefix (e.g. "/data/run" vs "/data/run2") is never
// mistaken for a descendant.
func withinBase(candidate, base string) bool {
	candidate = filepath.Clean(candidate)
	base = filepath.Clean(base)
	if candidate == base {
		return true
	}
	return strings.HasPrefix(candidate, base+string(filepath.Separator))
}

// canonicalize resolves path to its canonical, symlink-free absolute form.
// The path must exist.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// canonicalizeExistingPrefix canonicalizes the longest existing ancestor of
// path and re-appends the non-existent remainder uncanonicalized. This lets
// SafeJoin validate restore-destination paths that don't exist yet while
// still defeating a symlink planted at an intermediate, already-existing
// component.
func canonicalizeExistingPrefix(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	var suffix []string
	current := abs
	for {
		if _, err := os.Lstat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				return "", err
			}
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached the filesystem root without finding an existing
			// component; nothing to canonicalize against.
			return abs, nil
		}
		suffix = append(suffix, filepath.Base(current))
		current = parent
	}
}

// SafeOpenReadonly opens path for reading without following a symbolic link
// at the final path component. Intermediate components may be symlinks and
// are resolved normally by the kernel; only the leaf is protected.
func SafeOpenReadonly(path string) (*os.File, error) {
	flags := unix.O_RDONLY | unix.O_NOFOLLOW | unix.O_CLOEXEC
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		if err == unix.ELOOP {
			return nil, vaulterrors.NewPathError("safe_open_readonly", path, vaulterrors.ErrSymlinkRejected)
		}
		return nil, vaulterrors.NewPathError("safe_open_readonly", path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}
