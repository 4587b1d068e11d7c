package state

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts/errors"
	"github.com/mensylisir/craftkit/pkg/step"
)

// stateFormatVersion is embedded in every persisted state file so a
// future format change can be detected and migrated explicitly.
const stateFormatVersion = 1

// document is the deterministic, key-sorted on-disk representation of a
// PartState. gopkg.in/yaml.v3 sorts map[string]any keys lexically when
// marshaling, giving deterministic key-sorted text without any custom
// encoder.
type document struct {
	Version        int            `yaml:"version"`
	Step           string         `yaml:"step"`
	PartProperties map[string]any `yaml:"part_properties"`
	ProjectOptions map[string]any `yaml:"project_options"`
	Assets         map[string]any `yaml:"assets,omitempty"`
	Files          []string       `yaml:"files,omitempty"`
	Directories    []string       `yaml:"directories,omitempty"`
}

// FilePath returns the persistence path for a part's step state:
// <work>/parts/<part>/state/<step>.
func FilePath(workDir, partName string, s step.Step) string {
	return filepath.Join(workDir, "parts", partName, "state", s.String())
}

// Save writes st's document to path, creating parent directories as
// needed. The write is key-sorted and reproducible for identical inputs.
func Save(path string, st PartState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create state directory for %s", path)
	}

	doc := document{
		Version:        stateFormatVersion,
		Step:           st.Step().String(),
		PartProperties: st.PartProperties(),
		ProjectOptions: st.ProjectOptions(),
		Assets:         st.Assets(),
		Files:          sortedKeys(st.Files()),
		Directories:    sortedKeys(st.Directories()),
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "marshal state for %s", path)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return errors.Wrapf(err, "write state file %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "finalize state file %s", path)
	}
	return nil
}

// Load reads the persisted state at path. It returns (nil, zero-time, nil)
// if no file exists at path, which the caller treats as "step has not
// run". The returned timestamp is the file's modification time, used by
// the state manager's persisted StateWrapper.
func Load(path string) (PartState, time.Time, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "read state file %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "stat state file %s", path)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "parse state file %s", path)
	}

	if doc.Version != stateFormatVersion {
		return nil, time.Time{}, &craftparts.InternalError{
			Reason: "unsupported state file version " + strconv.Itoa(doc.Version),
		}
	}

	var s step.Step
	switch doc.Step {
	case step.Pull.String():
		s = step.Pull
	case step.Build.String():
		s = step.Build
	case step.Stage.String():
		s = step.Stage
	case step.Prime.String():
		s = step.Prime
	default:
		return nil, time.Time{}, &craftparts.InternalError{Reason: "unknown step tag " + doc.Step}
	}

	var ps PartState
	switch s {
	case step.Pull:
		ps = NewPullState(doc.PartProperties, doc.ProjectOptions)
	case step.Build:
		ps = NewBuildState(doc.PartProperties, doc.ProjectOptions, doc.Assets)
	case step.Stage:
		ps = NewStageState(doc.PartProperties, doc.ProjectOptions, doc.Files, doc.Directories)
	case step.Prime:
		ps = NewPrimeState(doc.PartProperties, doc.ProjectOptions, doc.Files, doc.Directories)
	}

	return ps, info.ModTime(), nil
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
