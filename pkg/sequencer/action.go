// Package sequencer computes the ordered action list a target step and
// part selection resolve to, consulting the state manager to decide
// whether each step runs, re-runs, updates, or is skipped.
package sequencer

import (
	"fmt"

	"github.com/mensylisir/craftkit/pkg/step"
)

// ActionType is the kind of work an Action represents.
type ActionType int

const (
	Run ActionType = iota
	Rerun
	Update
	Skip
)

func (t ActionType) String() string {
	switch t {
	case Run:
		return "run"
	case Rerun:
		return "rerun"
	case Update:
		return "update"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Action is one entry in a plan: a part's step and what must happen to
// it, with an optional human-readable reason.
type Action struct {
	PartName string
	Step     step.Step
	Type     ActionType
	Reason   string
}

func (a Action) String() string {
	if a.Reason == "" {
		return fmt.Sprintf("%s:%s(%s)", a.PartName, a.Step, a.Type)
	}
	return fmt.Sprintf("%s:%s(%s) — %s", a.PartName, a.Step, a.Type, a.Reason)
}
