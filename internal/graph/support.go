package graph

import (
	"sort"

	"github.com/alfredjeanlab/agora/internal/model"
)

// supportsOf returns the nodes id directly supports: targets of its SUPPORTS
// edges, plus its conclusion when id is an argument.
func (g *Graph) supportsOf(id string) []string {
	var result []string
	if n, ok := g.nodes[id]; ok && n.IsArgument() {
		result = append(result, n.Conclusion)
	}
	for _, eid := range g.out[id] {
		if e := g.edges[eid]; e.Relation == model.RelSupports {
			result = append(result, e.Target)
		}
	}
	return result
}

// supportPath returns the support chain from -> ... -> to, or nil if to is not
// reachable from from through support links.
func (g *Graph) supportPath(from, to string) []string {
	visited := make(map[string]bool)
	var path []string

	var visit func(id string) bool
	visit = func(id string) bool {
		if visited[id] {
			return false
		}
		visited[id] = true
		path = append(path, id)
		if id == to {
			return true
		}
		for _, next := range g.supportsOf(id) {
			if visit(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if visit(from) {
		return path
	}
	return nil
}

// DetectSupportCycles checks the whole graph for a cycle among support links.
// Insertion already rejects such cycles; this verifies replayed graphs.
func (g *Graph) DetectSupportCycles() error {
	// permanent: nodes fully explored and known to be off any cycle.
	// temporary: nodes on the current DFS stack.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			start := 0
			for i, s := range stack {
				if s == id {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), stack[start:]...), id)
			return &model.SupportCycleError{Path: cycle}
		}

		temporary[id] = true
		stack = append(stack, id)
		for _, next := range g.supportsOf(id) {
			if err := visit(next); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
