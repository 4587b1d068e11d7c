// Package pkgcache implements the content-addressed stage-packages cache:
// fetched package archives are stored once under <root>/<algorithm>/<digest>
// and reused across parts/projects that request the same content, and
// unpacked into a part's install directory on demand.
package pkgcache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mensylisir/craftkit/pkg/filehash"
)

const hashAlgorithm = "xxhash64"

// Cache is a namespaced, content-addressed file store rooted at a
// directory (lifecycle.Manager uses <WorkDir>/cache unless
// Options.CacheRoot is set).
type Cache struct {
	root string
}

// New returns a Cache rooted at filepath.Join(cacheRoot, namespace).
func New(cacheRoot, namespace string) *Cache {
	return &Cache{root: filepath.Join(cacheRoot, namespace)}
}

// Path returns the cache path for the given digest, whether or not the
// file exists yet.
func (c *Cache) Path(digest string) string {
	return filepath.Join(c.root, hashAlgorithm, digest)
}

// Get returns the cached file path for digest if present.
func (c *Cache) Get(digest string) (string, bool) {
	p := c.Path(digest)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// Store copies filename into the cache under its own content hash,
// returning the cached path and digest. A file already present under
// that digest is left untouched: content never changes for a given
// hash, so re-fetching the same package is a no-op.
func (c *Cache) Store(filename string) (path, digest string, err error) {
	h, err := filehash.Sum64(filename)
	if err != nil {
		return "", "", err
	}
	digest = fmt.Sprintf("%x", h)
	dest := c.Path(digest)

	if _, statErr := os.Stat(dest); statErr == nil {
		return dest, digest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", "", errors.Wrapf(err, "create cache directory for %s", digest)
	}
	if err := copyFile(filename, dest); err != nil {
		return "", "", err
	}
	return dest, digest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	// A unique suffix, not just dst+".tmp": StoreAll may run several
	// Store calls concurrently, and two different-named packages that
	// happen to hash identically would otherwise race on one tmp path.
	tmp := dst + ".tmp." + uuid.NewString()
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", tmp)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "copy %s to cache", src)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// Unpack extracts a cached (or freshly downloaded) package archive into
// destDir. Format is detected from the archive's extension, covering the
// .deb/.tar*/.zip shapes stage-package fetches hand back.
func Unpack(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrapf(err, "create install directory %s", destDir)
	}
	if err := archiver.Unarchive(archivePath, destDir); err != nil {
		return errors.Wrapf(err, "unpack %s", archivePath)
	}
	return nil
}

// FetchedPackage is one resolved package artifact handed to StoreAll,
// normally produced by a pkgrepo.Repository fetch.
type FetchedPackage struct {
	Name        string
	ArchivePath string
}

// StoredPackage is a FetchedPackage once it has a place in the cache.
type StoredPackage struct {
	FetchedPackage
	CachePath string
	Digest    string
}

// StoreAll caches every fetched package concurrently, bounded by
// maxParallel. This is internal fan-out for one Pull action's independent
// package downloads; the engine's action-by-action execution itself stays
// single-threaded.
func StoreAll(ctx context.Context, c *Cache, pkgs []FetchedPackage, maxParallel int) ([]StoredPackage, error) {
	results := make([]StoredPackage, len(pkgs))

	g, ctx := errgroup.WithContext(ctx)
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}

	for i, pkg := range pkgs {
		i, pkg := i, pkg
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			path, digest, err := c.Store(pkg.ArchivePath)
			if err != nil {
				return errors.Wrapf(err, "cache package %s", pkg.Name)
			}
			results[i] = StoredPackage{FetchedPackage: pkg, CachePath: path, Digest: digest}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
