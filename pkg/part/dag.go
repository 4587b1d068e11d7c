package part

import (
	"sort"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts/errors"
)

// SortParts returns parts topologically sorted by their After edges, with
// ties broken by name for determinism. Returns CycleDetected if the graph
// is not a DAG.
func SortParts(parts []*Part) ([]*Part, error) {
	byName := make(map[string]*Part, len(parts))
	for _, p := range parts {
		byName[p.Name] = p
	}

	for _, p := range parts {
		for _, dep := range p.After {
			if _, ok := byName[dep]; !ok {
				return nil, &craftparts.InvalidPartName{Name: dep}
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(parts))
	var sorted []*Part
	var stack []string

	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.Name)
	}
	sort.Strings(names)

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			cycle := append(append([]string{}, stack...), name)
			return &craftparts.CycleDetected{Cycle: cycle}
		}

		color[name] = gray
		stack = append(stack, name)

		p := byName[name]
		deps := append([]string(nil), p.After...)
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		sorted = append(sorted, p)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return sorted, nil
}

// PartDependencies returns the set of parts that name depends on, either
// direct-only or transitive, indexed by name.
func PartDependencies(name string, parts []*Part, recursive bool) (map[string]*Part, error) {
	byName := make(map[string]*Part, len(parts))
	for _, p := range parts {
		byName[p.Name] = p
	}

	root, ok := byName[name]
	if !ok {
		return nil, &craftparts.InvalidPartName{Name: name}
	}

	result := make(map[string]*Part)
	var walk func(p *Part) error
	walk = func(p *Part) error {
		for _, depName := range p.After {
			dep, ok := byName[depName]
			if !ok {
				return &craftparts.InvalidPartName{Name: depName}
			}
			if _, seen := result[depName]; seen {
				continue
			}
			result[depName] = dep
			if recursive {
				if err := walk(dep); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return result, nil
}

// ByName indexes parts by name.
func ByName(parts []*Part) map[string]*Part {
	out := make(map[string]*Part, len(parts))
	for _, p := range parts {
		out[p.Name] = p
	}
	return out
}

// SelectByName returns the named parts, in the order they appear in
// allParts (topological order, if allParts is already sorted). If names
// is empty, all parts are returned.
func SelectByName(names []string, allParts []*Part) ([]*Part, error) {
	if len(names) == 0 {
		return allParts, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var selected []*Part
	for _, p := range allParts {
		if want[p.Name] {
			selected = append(selected, p)
			delete(want, p.Name)
		}
	}
	for missing := range want {
		return nil, &craftparts.InvalidPartName{Name: missing}
	}
	return selected, nil
}
