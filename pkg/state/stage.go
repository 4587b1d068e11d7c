package state

import "github.com/mensylisir/craftkit/pkg/step"

// stagePropertyKeys are the declarative keys the STAGE step's behavior
// depends on.
var stagePropertyKeys = []string{"stage", "override-stage"}

// StageState records the inputs a STAGE step last ran with, plus the
// files and directories it migrated into the shared stage directory.
type StageState struct {
	base
}

// NewStageState builds a StageState. files/dirs are the relative paths
// migrated into the stage directory; they start empty in the Sequencer's
// synthetic write and are filled in by the Part Handler once it actually
// performs the migration.
func NewStageState(partProperties, projectOptions map[string]any, files, dirs []string) *StageState {
	b := newBase(partProperties, projectOptions, stagePropertyKeys, nil)
	b.files = copySet(files)
	b.directories = copySet(dirs)
	return &StageState{base: b}
}

func (s *StageState) Step() step.Step { return step.Stage }

var _ PartState = (*StageState)(nil)
