package resolver

import "github.com/shibukawa/sqlasm"

// order sorts entries topologically (Kahn's algorithm) so that every entry
// follows the entries it references. Ties keep the incoming sequence.
func order(entries []*Entry) ([]*Entry, error) {
	index := make(map[string]int, len(entries))
	for i, entry := range entries {
		index[sqlasm.FoldName(entry.Name)] = i
	}

	// deps[i] lists the entries i references; dependents is the reverse.
	deps := make([][]int, len(entries))
	dependents := make([][]int, len(entries))
	inDegree := make([]int, len(entries))

	for i, entry := range entries {
		seen := make(map[int]bool)

		for _, word := range entry.Definition.Body.Words {
			j, ok := index[sqlasm.FoldName(word)]
			if !ok || j == i || seen[j] {
				continue
			}

			seen[j] = true
			deps[i] = append(deps[i], j)
			dependents[j] = append(dependents[j], i)
			inDegree[i]++
		}
	}

	emitted := make([]bool, len(entries))
	result := make([]*Entry, 0, len(entries))

	for len(result) < len(entries) {
		next := -1

		for i := range entries {
			if !emitted[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}

		if next < 0 {
			return nil, &sqlasm.CycleError{Path: cyclePath(entries, deps, emitted)}
		}

		emitted[next] = true
		result = append(result, entries[next])

		for _, dependent := range dependents[next] {
			inDegree[dependent]--
		}
	}

	return result, nil
}

// cyclePath follows references among the entries left over by the sort
// until a name repeats. Every leftover entry references another leftover
// entry, so the walk always closes a cycle.
func cyclePath(entries []*Entry, deps [][]int, emitted []bool) []string {
	current := -1

	for i := range entries {
		if !emitted[i] {
			current = i
			break
		}
	}

	position := make(map[int]int)

	var walk []int

	for {
		if at, ok := position[current]; ok {
			path := make([]string, 0, len(walk)-at+1)
			for _, i := range walk[at:] {
				path = append(path, entries[i].Name)
			}

			return append(path, entries[current].Name)
		}

		position[current] = len(walk)
		walk = append(walk, current)

		for _, dep := range deps[current] {
			if !emitted[dep] {
				current = dep
				break
			}
		}
	}
}
