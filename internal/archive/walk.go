package archive

import (
	"os"
	"path/filepath"

	"github.com/vaultkeep/vaultkeep/internal/target"
	"github.com/vaultkeep/vaultkeep/internal/vaultlog"
)

// walkedFile is one retained file discovered under a target's root.
type walkedFile struct {
	SourcePath   string // absolute path on the source filesystem
	RelPath      string // slash-separated, relative to the target root
	Size         int64
}

// skippedSymlink records a symbolic link the walk declined to follow.
type skippedSymlink struct {
	Path   string
	Reason string
}

// walkTarget walks canonicalRoot, skipping any entry that matches one of
// excludes and every symbolic link (surfaced via the returned skip list
// rather than followed).
func walkTarget(canonicalRoot string, excludes []target.ExcludePattern) ([]walkedFile, []skippedSymlink, error) {
	var files []walkedFile
	var skipped []skippedSymlink

	err := filepath.Walk(canonicalRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == canonicalRoot {
			return nil
		}

		relPath, relErr := filepath.Rel(canonicalRoot, path)
		if relErr != nil {
			return relErr
		}
		relPath = filepath.ToSlash(relPath)

		if info.Mode()&os.ModeSymlink != 0 {
			skipped = append(skipped, skippedSymlink{Path: path, Reason: "SymlinkRejected"})
			vaultlog.Warn("skipping symlink", vaultlog.TargetPath(path))
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if target.AnyMatch(excludes, relPath, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		files = append(files, walkedFile{SourcePath: path, RelPath: relPath, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return files, skipped, nil
}
