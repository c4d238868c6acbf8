package tasks

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
)

// plan returns the transitive dependency closure of target, dependencies
// first. Ties are broken by the order tasks were defined in.
func (r *Registry) plan(target string) ([]*Task, error) {
	if _, ok := r.tasks[target]; !ok {
		return nil, unknownTask(target, "")
	}

	// Collect the closure.
	closure := map[string]bool{}
	stack := []string{target}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if closure[name] {
			continue
		}
		task, ok := r.tasks[name]
		if !ok {
			return nil, unknownTask(name, target)
		}
		closure[name] = true
		stack = append(stack, task.Deps...)
	}

	// Kahn's algorithm over the closure.
	inDegree := make(map[string]int, len(closure))
	dependents := make(map[string][]string, len(closure))
	for name := range closure {
		deps := uniq(r.tasks[name].Deps)
		inDegree[name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ordered []*Task
	done := map[string]bool{}
	for len(ordered) < len(closure) {
		next := ""
		for _, name := range r.order {
			if closure[name] && !done[name] && inDegree[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			return nil, ferrors.ValidationError(fmt.Sprintf("cycle detected in task graph of %s", target)).Build()
		}
		done[next] = true
		ordered = append(ordered, r.tasks[next])
		for _, dependent := range dependents[next] {
			inDegree[dependent]--
		}
	}
	return ordered, nil
}

func unknownTask(name, requiredBy string) error {
	b := ferrors.NewError(ferrors.CategoryNotFound, fmt.Sprintf("unknown task %q", name)).UserAction()
	if requiredBy != "" {
		b = b.WithContext("required_by", requiredBy)
	}
	return b.Build()
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
