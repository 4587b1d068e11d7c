package state

import "github.com/mensylisir/craftkit/pkg/step"

// primePropertyKeys are the declarative keys the PRIME step's behavior
// depends on.
var primePropertyKeys = []string{"prime", "stage", "override-prime"}

// PrimeState records the inputs a PRIME step last ran with, plus the
// files and directories it migrated into the shared prime directory.
type PrimeState struct {
	base
}

// NewPrimeState builds a PrimeState. See NewStageState for the
// files/dirs lifecycle.
func NewPrimeState(partProperties, projectOptions map[string]any, files, dirs []string) *PrimeState {
	b := newBase(partProperties, projectOptions, primePropertyKeys, nil)
	b.files = copySet(files)
	b.directories = copySet(dirs)
	return &PrimeState{base: b}
}

func (s *PrimeState) Step() step.Step { return step.Prime }

var _ PartState = (*PrimeState)(nil)
