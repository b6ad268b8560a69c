package orchestrator

import (
	"fmt"
	"sort"
	"strings"
)

// node is the scheduling view of one registered adapter.
type node struct {
	id       string
	deps     []string
	priority int
	seq      int
}

// topoOrder sorts nodes so every adapter follows its registered
// dependencies (Kahn's algorithm). Among adapters that are ready at the
// same time, higher priority goes first, then registration order.
// Dependencies that are not in nodes are ignored here; activation reports
// them. A cycle returns ErrCyclicDependency naming its members.
func topoOrder(nodes []node) ([]string, error) {
	byID := make(map[string]node, len(nodes))
	for _, n := range nodes {
		byID[n.id] = n
	}

	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		for _, dep := range n.deps {
			if _, ok := byID[dep]; !ok {
				continue
			}
			indegree[n.id]++
			dependents[dep] = append(dependents[dep], n.id)
		}
	}

	var ready []node
	for _, n := range nodes {
		if indegree[n.id] == 0 {
			ready = append(ready, n)
		}
	}

	out := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			if ready[i].priority != ready[j].priority {
				return ready[i].priority > ready[j].priority
			}
			return ready[i].seq < ready[j].seq
		})
		next := ready[0]
		ready = ready[1:]
		out = append(out, next.id)

		for _, d := range dependents[next.id] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, byID[d])
			}
		}
	}

	if len(out) != len(nodes) {
		var stuck []string
		for _, n := range nodes {
			if indegree[n.id] > 0 {
				stuck = append(stuck, n.id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCyclicDependency, strings.Join(stuck, ", "))
	}
	return out, nil
}

// closure returns id and everything it transitively depends on that is
// present in nodes.
func closure(nodes []node, id string) []node {
	byID := make(map[string]node, len(nodes))
	for _, n := range nodes {
		byID[n.id] = n
	}

	seen := make(map[string]bool)
	var out []node
	var visit func(string)
	visit = func(cur string) {
		n, ok := byID[cur]
		if !ok || seen[cur] {
			return
		}
		seen[cur] = true
		out = append(out, n)
		for _, dep := range n.deps {
			visit(dep)
		}
	}
	visit(id)
	return out
}
