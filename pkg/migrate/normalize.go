package migrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// NormalizeEscapingSymlinks rewrites absolute symlinks under root whose
// target would resolve outside the tree (as OS packages commonly ship,
// e.g. "/usr/lib/libfoo.so.1") into relative links that stay inside root.
func NormalizeEscapingSymlinks(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return nil
		}

		target, err := os.Readlink(path)
		if err != nil {
			return errors.Wrapf(err, "read symlink %s", path)
		}
		if !filepath.IsAbs(target) {
			return nil
		}

		newTarget := filepath.Join(root, target)
		rel, err := filepath.Rel(filepath.Dir(path), newTarget)
		if err != nil {
			return errors.Wrapf(err, "relativize symlink %s", path)
		}

		if err := os.Remove(path); err != nil {
			return errors.Wrapf(err, "remove symlink %s", path)
		}
		if err := os.Symlink(rel, path); err != nil {
			return errors.Wrapf(err, "recreate symlink %s", path)
		}
		return nil
	})
}

// StripSetuidSetgid clears the setuid and setgid bits from every regular
// file under root.
func StripSetuidSetgid(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if info.Mode()&(os.ModeSetuid|os.ModeSetgid) == 0 {
			return nil
		}
		return os.Chmod(path, info.Mode()&^(os.ModeSetuid|os.ModeSetgid))
	})
}

var pcPrefixLine = regexp.MustCompile(`(?m)^prefix=/usr\s*$`)

// RewritePkgconfigPrefixes rewrites "prefix=/usr" in every *.pc file under
// root to point inside installRoot, so pkg-config queries against the
// relocated tree resolve correctly.
func RewritePkgconfigPrefixes(root, installRoot string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".pc" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}

		rewritten := pcPrefixLine.ReplaceAll(data, []byte(fmt.Sprintf("prefix=%s/usr", installRoot)))
		if string(rewritten) == string(data) {
			return nil
		}
		return os.WriteFile(path, rewritten, info.Mode().Perm())
	})
}

var pythonShebang = regexp.MustCompile(`^#!\s*/usr/bin/(python[0-9.]*)(\s+.*)?$`)

// RewritePythonShebangs rewrites "#!/usr/bin/pythonX [args]" shebangs
// under root to "#!/usr/bin/env pythonX", using a POSIX-sh/Python
// polyglot trampoline when the original shebang carried interpreter
// arguments (env does not support a second argument portably).
func RewritePythonShebangs(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		if !scanner.Scan() {
			f.Close()
			return nil
		}
		firstLine := scanner.Text()
		match := pythonShebang.FindStringSubmatch(firstLine)
		if match == nil {
			f.Close()
			return nil
		}

		var rest strings.Builder
		for scanner.Scan() {
			rest.WriteString(scanner.Text())
			rest.WriteByte('\n')
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		interpreter := match[1]
		args := strings.TrimSpace(match[2])

		var newContent string
		if args == "" {
			newContent = "#!/usr/bin/env " + interpreter + "\n" + rest.String()
		} else {
			newContent = fmt.Sprintf(
				"#!/bin/sh\n''''exec /usr/bin/env %s %s \"$0\" \"$@\" # '''\n%s",
				interpreter, args, rest.String(),
			)
		}

		return os.WriteFile(path, []byte(newContent), info.Mode().Perm())
	})
}

// Normalize runs the full artifact normalization pass needed after
// unpacking OS packages into a part's install directory: symlink
// rewriting, setuid/setgid stripping, and pkg-config prefix fixups.
func Normalize(installDir string) error {
	if err := NormalizeEscapingSymlinks(installDir); err != nil {
		return errors.Wrap(err, "normalize symlinks")
	}
	if err := StripSetuidSetgid(installDir); err != nil {
		return errors.Wrap(err, "strip setuid/setgid")
	}
	if err := RewritePkgconfigPrefixes(installDir, installDir); err != nil {
		return errors.Wrap(err, "rewrite pkgconfig prefixes")
	}
	if err := RewritePythonShebangs(installDir); err != nil {
		return errors.Wrap(err, "rewrite python shebangs")
	}
	return nil
}
