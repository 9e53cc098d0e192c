package stacks

import "github.com/oriys/microstack/internal/apierr"

// topoSort orders tmpl's resources depth-first over DependsOn: a resource
// is emitted only after every resource it depends on. Resources with no
// dependency relationship keep their first-appearance order in the
// template, because the outer loop visits tmpl.Resources in document
// order and a resource already emitted by an earlier dependency walk is
// skipped on its own turn. Cycles fail as a validation error.
func topoSort(tmpl *Template) ([]ResourceDef, error) {
	byID := make(map[string]ResourceDef, len(tmpl.Resources))
	for _, r := range tmpl.Resources {
		byID[r.LogicalID] = r
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]int, len(tmpl.Resources))
	out := make([]ResourceDef, 0, len(tmpl.Resources))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			return apierr.InvalidArgumentf("ValidationError", "dependency cycle detected at resource %q", id)
		}
		state[id] = visiting
		for _, dep := range byID[id].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = visited
		out = append(out, byID[id])
		return nil
	}

	for _, r := range tmpl.Resources {
		if err := visit(r.LogicalID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
