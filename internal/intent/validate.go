package intent

import (
	"fmt"

	"github.com/lyzr/workflowverify/internal/verrors"
)

// Validate returns every problem found in s (§4.2: it does not
// short-circuit on the first error). An empty result means s is valid.
func (s IntentSpec) Validate() []string {
	var errs []string

	if s.Name == "" {
		errs = append(errs, "intent name must not be empty")
	}
	if len(s.Steps) == 0 {
		errs = append(errs, "intent must declare at least one step")
	}

	seen := map[string]bool{}
	for _, st := range s.Steps {
		if st.ID == "" {
			errs = append(errs, "step id must not be empty")
			continue
		}
		if seen[st.ID] {
			errs = append(errs, fmt.Sprintf("duplicate step id %q", st.ID))
		}
		seen[st.ID] = true
	}

	for _, st := range s.Steps {
		for _, dep := range st.Dependencies {
			if !seen[dep] {
				errs = append(errs, fmt.Sprintf("step %q depends on unknown step %q", st.ID, dep))
			}
		}
	}

	if cyc := findCycle(s); len(cyc) > 0 {
		errs = append(errs, fmt.Sprintf("dependency cycle detected: %v", cyc))
	}

	return errs
}

// ValidateErr is Validate wrapped as a single verrors.ErrInvalidIntent
// error, for callers (the compiler) that want a single error value rather
// than a problem list.
func (s IntentSpec) ValidateErr() error {
	errs := s.Validate()
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0]
	for _, e := range errs[1:] {
		msg += "; " + e
	}
	return fmt.Errorf("%w: %s", verrors.ErrInvalidIntent, msg)
}

// findCycle runs DFS with a recursion-path set (§4.2) and returns the ids
// forming the first cycle discovered, or nil if the dependency graph is
// acyclic.
func findCycle(s IntentSpec) []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current recursion path
		black = 2 // fully explored
	)

	color := make(map[string]int, len(s.Steps))
	parent := make(map[string]string, len(s.Steps))
	var cyclePath []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		st, ok := s.Step(id)
		if ok {
			for _, dep := range st.Dependencies {
				switch color[dep] {
				case white:
					parent[dep] = id
					if visit(dep) {
						return true
					}
				case gray:
					// found a cycle: reconstruct it by walking parent
					// pointers back from id to dep.
					cyclePath = []string{dep}
					cur := id
					for cur != dep {
						cyclePath = append(cyclePath, cur)
						cur = parent[cur]
					}
					cyclePath = append(cyclePath, dep)
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, st := range s.Steps {
		if color[st.ID] == white {
			if visit(st.ID) {
				return cyclePath
			}
		}
	}
	return nil
}
