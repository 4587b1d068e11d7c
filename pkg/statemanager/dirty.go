package statemanager

import (
	"fmt"
	"strings"

	"github.com/mensylisir/craftkit/pkg/step"
)

// Dependency names a part whose state at a prerequisite step changed in a
// way that dirties a dependent step.
type Dependency struct {
	PartName string
	Step     step.Step
}

// DirtyReport explains why a step must be cleaned and re-run: its
// recorded inputs no longer match the part's current properties or
// project options, or a dependency advanced past it.
type DirtyReport struct {
	DirtyProperties     []string
	DirtyProjectOptions []string
	ChangedDependencies []Dependency
}

// Empty reports whether nothing about the step is actually dirty.
func (r *DirtyReport) Empty() bool {
	return r == nil || (len(r.DirtyProperties) == 0 && len(r.DirtyProjectOptions) == 0 && len(r.ChangedDependencies) == 0)
}

// Summary renders a short human-readable reason, used as the Action's
// Reason field.
func (r *DirtyReport) Summary() string {
	if r.Empty() {
		return ""
	}
	var parts []string
	if len(r.DirtyProperties) > 0 {
		parts = append(parts, fmt.Sprintf("properties changed: %s", strings.Join(r.DirtyProperties, ", ")))
	}
	if len(r.DirtyProjectOptions) > 0 {
		parts = append(parts, fmt.Sprintf("project options changed: %s", strings.Join(r.DirtyProjectOptions, ", ")))
	}
	if len(r.ChangedDependencies) > 0 {
		names := make([]string, len(r.ChangedDependencies))
		for i, d := range r.ChangedDependencies {
			names[i] = fmt.Sprintf("%s:%s", d.PartName, d.Step)
		}
		parts = append(parts, fmt.Sprintf("dependencies changed: %s", strings.Join(names, ", ")))
	}
	return strings.Join(parts, "; ")
}

// OutdatedReport explains why a step needs a non-destructive refresh:
// either its upstream source advanced (PULL only) or an earlier step of
// the same part ran more recently.
type OutdatedReport struct {
	SourceUpdated       bool
	PreviousStepModified *step.Step
}

// Empty reports whether the step is actually outdated.
func (r *OutdatedReport) Empty() bool {
	return r == nil || (!r.SourceUpdated && r.PreviousStepModified == nil)
}

// Summary renders a short human-readable reason.
func (r *OutdatedReport) Summary() string {
	if r.Empty() {
		return ""
	}
	if r.SourceUpdated {
		return "source has changed"
	}
	return fmt.Sprintf("%s changed since this step ran", r.PreviousStepModified)
}
