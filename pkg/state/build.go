package state

import "github.com/mensylisir/craftkit/pkg/step"

// buildPropertyKeys are the declarative keys the BUILD step's behavior
// depends on.
var buildPropertyKeys = []string{
	"build-packages", "build-snaps", "build-attributes", "build-environment",
	"override-build", "organize", "plugin",
}

// BuildState records the inputs a BUILD step last ran with, plus the
// machine-manifest assets captured when the state was written.
type BuildState struct {
	base
}

// NewBuildState builds a BuildState. The Sequencer and Part Handler pass
// only machine-manifest entries as assets; resolved build-package and
// build-snap lists are not recorded there.
func NewBuildState(partProperties, projectOptions, assets map[string]any) *BuildState {
	b := newBase(partProperties, projectOptions, buildPropertyKeys, nil)
	b.assets = copyMap(assets)
	return &BuildState{base: b}
}

func (s *BuildState) Step() step.Step { return step.Build }

var _ PartState = (*BuildState)(nil)
