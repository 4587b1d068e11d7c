package state

import "github.com/mensylisir/craftkit/pkg/step"

// pullPropertyKeys are the declarative keys the PULL step's behavior
// depends on: the source declaration, stage-packages (fetched during
// pull), and any pull scriptlet override.
var pullPropertyKeys = []string{
	"source", "source-type", "source-checksum", "source-branch", "source-tag",
	"source-commit", "source-depth", "source-submodules",
	"stage-packages", "override-pull",
}

// pullOptionKeys are the project options the PULL step depends on.
// target-arch affects which stage-packages get fetched.
var pullOptionKeys = []string{"target-arch"}

// PullState records the inputs a PULL step last ran with.
type PullState struct {
	base
}

// NewPullState builds a PullState from the current part properties and
// project options.
func NewPullState(partProperties, projectOptions map[string]any) *PullState {
	return &PullState{base: newBase(partProperties, projectOptions, pullPropertyKeys, pullOptionKeys)}
}

func (s *PullState) Step() step.Step { return step.Pull }

var _ PartState = (*PullState)(nil)
