// Package fileset implements the include/exclude glob lists that govern
// what migrates between a part's install, stage and prime directories.
package fileset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Fileset is a part's declared stage/prime file selector: a list of
// globs, each either an include (bare) or an exclude (prefixed with "-").
type Fileset struct {
	Entries []string
}

// New builds a Fileset from the parts document's raw entry list.
func New(entries []string) Fileset {
	return Fileset{Entries: append([]string(nil), entries...)}
}

// Includes returns the include globs, in declaration order.
func (f Fileset) Includes() []string {
	var out []string
	for _, e := range f.Entries {
		if !strings.HasPrefix(e, "-") {
			out = append(out, e)
		}
	}
	return out
}

// Excludes returns the exclude globs (without their leading "-"), in
// declaration order.
func (f Fileset) Excludes() []string {
	var out []string
	for _, e := range f.Entries {
		if strings.HasPrefix(e, "-") {
			out = append(out, strings.TrimPrefix(e, "-"))
		}
	}
	return out
}

// IsWildcardOrEmpty reports whether this fileset selects "everything":
// no include entries at all, or a single "*" include (exclude entries are
// not counted). This is the trigger for the
// PRIME step combining with the STAGE fileset.
func (f Fileset) IsWildcardOrEmpty() bool {
	includes := f.Includes()
	return len(includes) == 0 || (len(includes) == 1 && includes[0] == "*")
}

// Combine appends other's entries after this fileset's own, the behavior
// a wildcard-or-empty prime fileset falls back to: it combines with the
// whole stage fileset rather than just its includes.
func (f *Fileset) Combine(other Fileset) {
	f.Entries = append(append([]string(nil), f.Entries...), other.Entries...)
}

// MigratableFilesets walks srcDir and returns the relative file paths and
// directory paths that fs selects: a path is selected if it matches an
// include glob (or sits under a directory an include entry names
// exactly) and neither it nor any ancestor matches an exclude glob. With
// no include globs, everything not excluded is selected.
func MigratableFilesets(fs Fileset, srcDir string) (files []string, dirs []string, err error) {
	includes := fs.Includes()
	excludes := fs.Excludes()
	includeAll := len(includes) == 0

	fileSet := map[string]bool{}
	dirSet := map[string]bool{}

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(excludes, rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !includeAll && !matchesAny(includes, rel) {
			return nil
		}

		if info.IsDir() {
			dirSet[rel] = true
			return nil
		}

		fileSet[rel] = true
		for _, ancestor := range ancestors(rel) {
			dirSet[ancestor] = true
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, errors.Wrapf(walkErr, "walk %s for fileset", srcDir)
	}

	return sortedSlice(fileSet), sortedSlice(dirSet), nil
}

// matchesAny reports whether rel matches one of patterns directly, via a
// doublestar glob, or sits underneath a path one of patterns names
// exactly (selecting the whole subtree).
func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(p, "/")
		if p == rel {
			return true
		}
		if strings.HasPrefix(rel, p+"/") {
			return true
		}
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func ancestors(rel string) []string {
	var out []string
	dir := filepath.Dir(rel)
	for dir != "." && dir != "/" && dir != "" {
		out = append(out, dir)
		dir = filepath.Dir(dir)
	}
	return out
}

func sortedSlice(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
