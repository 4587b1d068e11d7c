// Package step defines the ordered lifecycle steps every part moves through.
package step

import "fmt"

// Step is one stage of a part's lifecycle.
type Step int

const (
	Pull Step = iota
	Build
	Stage
	Prime
)

// Steps is the full ordered set, pull first.
var Steps = []Step{Pull, Build, Stage, Prime}

var names = map[Step]string{
	Pull:  "pull",
	Build: "build",
	Stage: "stage",
	Prime: "prime",
}

var verbs = map[Step]string{
	Pull:  "pull",
	Build: "build",
	Stage: "stage",
	Prime: "prime",
}

func (s Step) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return "unknown"
}

// Verb returns the imperative verb used in sequencer reasons, e.g.
// "required to stage 'foo'".
func (s Step) Verb() string {
	if v, ok := verbs[s]; ok {
		return v
	}
	return s.String()
}

// PreviousSteps returns the steps strictly before s, in lifecycle order.
func (s Step) PreviousSteps() []Step {
	out := make([]Step, 0, int(s))
	for _, o := range Steps {
		if o < s {
			out = append(out, o)
		}
	}
	return out
}

// NextSteps returns the steps strictly after s, in lifecycle order.
func (s Step) NextSteps() []Step {
	out := make([]Step, 0, len(Steps))
	for _, o := range Steps {
		if o > s {
			out = append(out, o)
		}
	}
	return out
}

// DependencyPrerequisiteStep returns the step a dependency must reach
// before a dependent part may advance through s. Stage and Prime require
// dependencies to have reached Stage; Pull and Build have no cross-part
// prerequisite, since plugins consume dependency output from the stage
// directory rather than another part's build tree.
func DependencyPrerequisiteStep(s Step) (Step, bool) {
	switch s {
	case Stage, Prime:
		return Stage, true
	default:
		return 0, false
	}
}

// Valid reports whether s is one of the four defined steps.
func (s Step) Valid() bool {
	_, ok := names[s]
	return ok
}

// Parse resolves a step name (pull/build/stage/prime) to its Step value,
// for command-line and parts-document input.
func Parse(name string) (Step, error) {
	for _, s := range Steps {
		if names[s] == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("step: unknown step %q", name)
}
