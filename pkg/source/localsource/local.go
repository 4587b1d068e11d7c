// Package localsource registers the "local" source type: a part whose
// source is already a directory on disk, pulled into the part's source
// directory by hardlink-or-copy rather than network fetch.
package localsource

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/mensylisir/craftkit/pkg/fileset"
	"github.com/mensylisir/craftkit/pkg/migrate"
	"github.com/mensylisir/craftkit/pkg/source"
)

func init() {
	source.Register("local", func(sourceType, url, checksum, destDir string) (source.Handler, error) {
		return &Handler{path: url, destDir: destDir}, nil
	})
}

// Handler copies (or hardlinks) a local directory tree into a part's
// source directory. It never reports changes: a local directory copy has
// no reliable modification signal, so Check returns ErrCheckUnsupported.
type Handler struct {
	path    string
	destDir string
}

func (h *Handler) Pull(ctx context.Context) error {
	return h.Provision(ctx, h.destDir, false, h.path)
}

func (h *Handler) Check(ctx context.Context, stateFilePath string) (bool, error) {
	return false, source.ErrCheckUnsupported
}

func (h *Handler) Update(ctx context.Context) error {
	return h.Provision(ctx, h.destDir, false, h.path)
}

func (h *Handler) Provision(ctx context.Context, dest string, cleanTarget bool, src string) error {
	if cleanTarget {
		if err := os.RemoveAll(dest); err != nil {
			return errors.Wrapf(err, "clean %s before provisioning from %s", dest, src)
		}
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}

	files, dirs, err := fileset.MigratableFilesets(fileset.New(nil), src)
	if err != nil {
		return errors.Wrapf(err, "walk local source %s", src)
	}
	return migrate.Files(files, dirs, src, dest, migrate.Options{})
}
