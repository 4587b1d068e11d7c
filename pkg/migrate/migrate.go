// Package migrate moves files between a part's step directories: install
// to stage, stage to prime. It preserves symlinks verbatim and prefers
// hardlinks over copies, falling back across filesystem boundaries.
package migrate

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Options tweaks migration behavior. Stage and prime migrations both use
// the zero value (MissingOK=false, FollowSymlinks=false).
type Options struct {
	MissingOK      bool
	FollowSymlinks bool
}

// Files migrates dirs then files (both sorted for determinism) from
// srcDir to destDir.
func Files(files, dirs []string, srcDir, destDir string, opts Options) error {
	sortedDirs := append([]string(nil), dirs...)
	sort.Strings(sortedDirs)

	for _, d := range sortedDirs {
		src := filepath.Join(srcDir, d)
		dst := filepath.Join(destDir, d)
		if err := createSimilarDirectory(src, dst); err != nil {
			return errors.Wrapf(err, "create directory %s", dst)
		}
	}

	sortedFiles := append([]string(nil), files...)
	sort.Strings(sortedFiles)

	for _, f := range sortedFiles {
		src := filepath.Join(srcDir, f)
		dst := filepath.Join(destDir, f)

		if opts.MissingOK {
			if _, err := os.Lstat(src); os.IsNotExist(err) {
				continue
			}
		}

		if info, err := os.Lstat(dst); err == nil && info.Mode()&os.ModeSymlink != 0 {
			// Already a symlink at the destination: leave it alone.
			continue
		}

		if _, err := os.Lstat(dst); err == nil {
			if err := os.Remove(dst); err != nil {
				return errors.Wrapf(err, "remove existing %s", dst)
			}
		}

		if err := linkOrCopy(src, dst, opts.FollowSymlinks); err != nil {
			return errors.Wrapf(err, "migrate %s to %s", src, dst)
		}
	}

	return nil
}

func createSimilarDirectory(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

// linkOrCopy preserves src's symlink target verbatim if it is a symlink
// and followSymlinks is false; otherwise it hardlinks src to dst, falling
// back to a byte copy when the hardlink fails (e.g. across filesystems).
func linkOrCopy(src, dst string, followSymlinks bool) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 && !followSymlinks {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	}

	if err := os.Link(src, dst); err == nil {
		return nil
	}

	return copyFile(src, dst, info.Mode())
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
