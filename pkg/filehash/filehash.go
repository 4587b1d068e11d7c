// Package filehash provides the xxhash64 content digest shared by staging
// collision detection and the stage-packages cache, kept separate from
// both callers so neither package has to import the other.
package filehash

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Sum64 returns the xxhash64 digest of path's content.
func Sum64(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s for hashing", path)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, errors.Wrapf(err, "hash %s", path)
	}
	return h.Sum64(), nil
}
