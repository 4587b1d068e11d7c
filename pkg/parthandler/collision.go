package parthandler

import (
	"path/filepath"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts/errors"
	"github.com/mensylisir/craftkit/pkg/filehash"
)

// CheckCollisions verifies that staging partName's files would not
// overwrite a file already staged by a different part with different
// content: two parts may both stage the same path only if the bytes are
// identical.
//
// installDir is partName's install directory (the source of the files
// about to be migrated); stageDir is the shared stage directory.
// stagedBy maps relative path to the name of the part that already
// staged it in the current run; Stage actions fill it as they migrate
// files (see Handler.StagedBy). Files staged in earlier runs are not in
// it.
func CheckCollisions(partName string, files []string, installDir, stageDir string, stagedBy map[string]string) error {
	for _, f := range files {
		owner, ok := stagedBy[f]
		if !ok || owner == partName {
			continue
		}

		same, err := sameContent(filepath.Join(installDir, f), filepath.Join(stageDir, f))
		if err != nil {
			return err
		}
		if !same {
			return &craftparts.PartFilesConflict{Path: f, PartA: owner, PartB: partName}
		}
	}
	return nil
}

func sameContent(a, b string) (bool, error) {
	ha, err := filehash.Sum64(a)
	if err != nil {
		return false, err
	}
	hb, err := filehash.Sum64(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}
