// Package semantics computes acceptability labelings over the attack graph
// derived from a graph snapshot.
package semantics

import (
	"sort"

	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
)

// Framework is the abstract attack graph of one snapshot with support
// closure applied. Nodes are indexed in ascending id order.
type Framework struct {
	DeliberationID string
	Version        uint64

	IDs   []string
	Kinds []model.NodeKind
	index map[string]int

	// attackers[i] and targets[i] hold the closed attack relation, sorted.
	attackers [][]int
	targets   [][]int

	edges       int
	supports    int
	baseAttacks int
}

// Build derives the framework of snap. Base attacks are REBUTS, UNDERCUTS
// and UNDERMINES edges. Supports are SUPPORTS edges plus the link from every
// argument to its conclusion. The closure adds, for every base attack a->b,
// an attack from each transitive supporter of a (supported attack) onto b and
// each transitive supporter of b (mediated attack).
func Build(snap *graph.Snapshot) *Framework {
	n := len(snap.Nodes)
	fw := &Framework{
		DeliberationID: snap.DeliberationID,
		Version:        snap.Version,
		IDs:            make([]string, n),
		Kinds:          make([]model.NodeKind, n),
		index:          make(map[string]int, n),
		attackers:      make([][]int, n),
		targets:        make([][]int, n),
		edges:          len(snap.Edges),
	}
	nodes := append([]*model.Node(nil), snap.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for i, node := range nodes {
		fw.IDs[i] = node.ID
		fw.Kinds[i] = node.Kind
		fw.index[node.ID] = i
	}

	// supportedBy[i] lists nodes that directly support i.
	supportedBy := make([][]int, n)
	for i, node := range nodes {
		if node.IsArgument() {
			if c, ok := fw.index[node.Conclusion]; ok {
				supportedBy[c] = append(supportedBy[c], i)
				fw.supports++
			}
		}
	}
	type pair struct{ src, tgt int }
	var base []pair
	for _, e := range snap.Edges {
		s, okS := fw.index[e.Source]
		t, okT := fw.index[e.Target]
		if !okS || !okT {
			continue
		}
		switch {
		case e.Relation == model.RelSupports:
			supportedBy[t] = append(supportedBy[t], s)
			fw.supports++
		case e.Relation.IsAttack():
			base = append(base, pair{s, t})
		}
	}
	fw.baseAttacks = len(base)

	closure := make([][]int, n)
	supporters := func(i int) []int {
		if closure[i] == nil {
			closure[i] = transitiveSupporters(i, supportedBy)
		}
		return closure[i]
	}

	seen := make(map[pair]bool)
	for _, a := range base {
		for _, s := range supporters(a.src) {
			for _, t := range supporters(a.tgt) {
				p := pair{s, t}
				if seen[p] {
					continue
				}
				seen[p] = true
				fw.targets[s] = append(fw.targets[s], t)
				fw.attackers[t] = append(fw.attackers[t], s)
			}
		}
	}
	for i := 0; i < n; i++ {
		sort.Ints(fw.attackers[i])
		sort.Ints(fw.targets[i])
	}
	return fw
}

// transitiveSupporters returns i and every node that reaches i through
// support links. Support links are acyclic, but visited marks keep the walk
// linear on diamonds.
func transitiveSupporters(i int, supportedBy [][]int) []int {
	visited := map[int]bool{i: true}
	result := []int{i}
	stack := []int{i}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range supportedBy[cur] {
			if !visited[s] {
				visited[s] = true
				result = append(result, s)
				stack = append(stack, s)
			}
		}
	}
	return result
}

// Len returns the number of nodes.
func (fw *Framework) Len() int { return len(fw.IDs) }

// Index returns the position of a node id.
func (fw *Framework) Index(id string) (int, bool) {
	i, ok := fw.index[id]
	return i, ok
}

// Attackers returns the ids of every node attacking id after closure.
func (fw *Framework) Attackers(id string) []string {
	i, ok := fw.index[id]
	if !ok {
		return nil
	}
	result := make([]string, len(fw.attackers[i]))
	for k, a := range fw.attackers[i] {
		result[k] = fw.IDs[a]
	}
	return result
}

// Attacks reports whether src attacks tgt after closure.
func (fw *Framework) Attacks(src, tgt string) bool {
	s, okS := fw.index[src]
	t, okT := fw.index[tgt]
	if !okS || !okT {
		return false
	}
	ts := fw.targets[s]
	k := sort.SearchInts(ts, t)
	return k < len(ts) && ts[k] == t
}
