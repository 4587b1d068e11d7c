// Package state defines the four PartState variants (Pull, Build, Stage,
// Prime) and the property/option "of interest" machinery the State
// Manager uses to decide whether a step is dirty.
package state

import (
	"sort"

	"github.com/mensylisir/craftkit/pkg/step"
)

// PartState is the typed record of what a step's inputs looked like the
// last time it ran.
type PartState interface {
	Step() step.Step
	PartProperties() map[string]any
	ProjectOptions() map[string]any
	Assets() map[string]any
	Files() map[string]bool
	Directories() map[string]bool

	// PropertiesOfInterest returns the subset of full that this step's
	// variant cares about.
	PropertiesOfInterest(full map[string]any) map[string]any
	// ProjectOptionsOfInterest returns the subset of full that this step's
	// variant cares about.
	ProjectOptionsOfInterest(full map[string]any) map[string]any

	// DiffPropertiesOfInterest returns the keys of interest whose value in
	// current differs from the value recorded in this state.
	DiffPropertiesOfInterest(current map[string]any) []string
	// DiffProjectOptionsOfInterest returns the keys of interest whose value
	// in current differs from the value recorded in this state.
	DiffProjectOptionsOfInterest(current map[string]any) []string
}

// base holds the fields and diff machinery shared by all four variants.
type base struct {
	partProperties map[string]any
	projectOptions map[string]any
	assets         map[string]any
	files          map[string]bool
	directories    map[string]bool

	propertyKeys []string
	optionKeys   []string
}

func newBase(partProperties, projectOptions map[string]any, propertyKeys, optionKeys []string) base {
	return base{
		partProperties: copyMap(partProperties),
		projectOptions: copyMap(projectOptions),
		propertyKeys:   propertyKeys,
		optionKeys:     optionKeys,
	}
}

func (b base) PartProperties() map[string]any { return b.partProperties }
func (b base) ProjectOptions() map[string]any { return b.projectOptions }
func (b base) Assets() map[string]any         { return b.assets }
func (b base) Files() map[string]bool         { return b.files }
func (b base) Directories() map[string]bool   { return b.directories }

func (b base) PropertiesOfInterest(full map[string]any) map[string]any {
	return subset(full, b.propertyKeys)
}

func (b base) ProjectOptionsOfInterest(full map[string]any) map[string]any {
	return subset(full, b.optionKeys)
}

func (b base) DiffPropertiesOfInterest(current map[string]any) []string {
	return diffKeys(b.PropertiesOfInterest(b.partProperties), subset(current, b.propertyKeys))
}

func (b base) DiffProjectOptionsOfInterest(current map[string]any) []string {
	return diffKeys(b.ProjectOptionsOfInterest(b.projectOptions), subset(current, b.optionKeys))
}

func subset(full map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = full[k]
	}
	return out
}

// diffKeys returns, sorted, the keys present in either map whose values
// differ (comparing via reflection-free deep equality for the value
// shapes the parts document actually produces: scalars, strings, slices
// of strings, and maps of strings, including the []any and map[string]any
// forms those take after a round trip through a state file).
func diffKeys(old, current map[string]any) []string {
	var changed []string
	seen := make(map[string]bool)
	for k, v := range old {
		seen[k] = true
		if !valuesEqual(v, current[k]) {
			changed = append(changed, k)
		}
	}
	for k, v := range current {
		if seen[k] {
			continue
		}
		if !valuesEqual(old[k], v) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case []string:
		bv, ok := b.([]string)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case map[string]string:
		bv, ok := b.(map[string]string)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if bv[k] != v {
				return false
			}
		}
		return true
	case []any:
		strs := make([]string, len(av))
		for i, v := range av {
			strs[i], _ = v.(string)
		}
		return valuesEqual(strs, b)
	case map[string]any:
		strs := make(map[string]string, len(av))
		for k, v := range av {
			strs[k], _ = v.(string)
		}
		return valuesEqual(strs, b)
	default:
		return a == b
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySet(s []string) map[string]bool {
	out := make(map[string]bool, len(s))
	for _, v := range s {
		out[v] = true
	}
	return out
}
