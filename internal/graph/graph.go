// Package graph holds the typed argument graph of one deliberation: claim and
// argument nodes joined by support and attack edges, with write-time invariants
// and a monotonic version bumped by every structural change.
//
// A Graph is not safe for concurrent mutation. Owners mutate a private Clone
// and publish it; published graphs are only read.
package graph

import (
	"fmt"
	"sort"

	"github.com/alfredjeanlab/agora/internal/model"
)

// Graph is the node/edge store of one deliberation.
type Graph struct {
	deliberationID string
	version        uint64

	nodes map[string]*model.Node
	edges map[string]*model.Edge
	keys  map[model.EdgeKey]string

	out map[string][]string // node id -> ids of edges leaving it
	in  map[string][]string // node id -> ids of edges entering it

	concludedBy map[string][]string // claim id -> arguments concluding it
}

// New returns an empty graph at version 0.
func New(deliberationID string) *Graph {
	return &Graph{
		deliberationID: deliberationID,
		nodes:          make(map[string]*model.Node),
		edges:          make(map[string]*model.Edge),
		keys:           make(map[model.EdgeKey]string),
		out:            make(map[string][]string),
		in:             make(map[string][]string),
		concludedBy:    make(map[string][]string),
	}
}

// DeliberationID returns the deliberation the graph belongs to.
func (g *Graph) DeliberationID() string { return g.deliberationID }

// Version returns the number of structural mutations applied so far.
func (g *Graph) Version() uint64 { return g.version }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*model.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id string) (*model.Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// FindEdge returns the edge with the given content key.
func (g *Graph) FindEdge(key model.EdgeKey) (*model.Edge, bool) {
	id, ok := g.keys[key]
	if !ok {
		return nil, false
	}
	return g.edges[id], true
}

// EdgesFrom returns the edges leaving a node in insertion order.
func (g *Graph) EdgesFrom(id string) []*model.Edge {
	return g.collect(g.out[id])
}

// EdgesTo returns the edges entering a node in insertion order.
func (g *Graph) EdgesTo(id string) []*model.Edge {
	return g.collect(g.in[id])
}

func (g *Graph) collect(ids []string) []*model.Edge {
	result := make([]*model.Edge, 0, len(ids))
	for _, id := range ids {
		result = append(result, g.edges[id])
	}
	return result
}

// ArgumentsConcluding returns the ids of arguments whose conclusion is claimID.
func (g *Graph) ArgumentsConcluding(claimID string) []string {
	return append([]string(nil), g.concludedBy[claimID]...)
}

// ArgumentsWithPremise returns the ids of arguments that bind claimID as a premise.
func (g *Graph) ArgumentsWithPremise(claimID string) []string {
	var ids []string
	for id, n := range g.nodes {
		if !n.IsArgument() {
			continue
		}
		for _, p := range n.Premises {
			if p.ClaimID == claimID {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Nodes returns all nodes sorted by id.
func (g *Graph) Nodes() []*model.Node {
	result := make([]*model.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Edges returns all edges sorted by id.
func (g *Graph) Edges() []*model.Edge {
	result := make([]*model.Edge, 0, len(g.edges))
	for _, e := range g.edges {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AddNode inserts a node. Adding a claim that already exists with the same
// id is a no-op and reports added=false; the version is unchanged.
func (g *Graph) AddNode(n *model.Node) (added bool, err error) {
	if err := g.checkNode(n); err != nil {
		return false, err
	}
	if existing, ok := g.nodes[n.ID]; ok {
		if existing.Kind == model.NodeClaim && n.Kind == model.NodeClaim {
			return false, nil
		}
		return false, invariant("duplicate node id %q", n.ID)
	}

	g.nodes[n.ID] = n
	if n.IsArgument() {
		g.concludedBy[n.Conclusion] = append(g.concludedBy[n.Conclusion], n.ID)
	}
	g.version++
	return true, nil
}

// CheckNode reports whether AddNode would accept n, without mutating.
func (g *Graph) CheckNode(n *model.Node) error {
	if err := g.checkNode(n); err != nil {
		return err
	}
	if existing, ok := g.nodes[n.ID]; ok && !(existing.Kind == model.NodeClaim && n.Kind == model.NodeClaim) {
		return invariant("duplicate node id %q", n.ID)
	}
	return nil
}

func (g *Graph) checkNode(n *model.Node) error {
	if n == nil || n.ID == "" {
		return invariant("node id is required")
	}
	switch n.Kind {
	case model.NodeClaim:
		if n.Text == "" {
			return invariant("claim %q has no text", n.ID)
		}
	case model.NodeArgument:
		c, ok := g.nodes[n.Conclusion]
		if !ok {
			return invariant("argument %q concludes unknown node %q", n.ID, n.Conclusion)
		}
		if c.Kind != model.NodeClaim {
			return invariant("argument %q must conclude a claim, %q is an argument", n.ID, n.Conclusion)
		}
		for _, p := range n.Premises {
			pn, ok := g.nodes[p.ClaimID]
			if !ok {
				return invariant("argument %q binds unknown premise %q", n.ID, p.ClaimID)
			}
			if pn.Kind != model.NodeClaim {
				return invariant("argument %q binds argument %q as a premise", n.ID, p.ClaimID)
			}
			if p.ClaimID == n.Conclusion {
				return invariant("argument %q uses its conclusion %q as a premise", n.ID, p.ClaimID)
			}
		}
	default:
		return invariant("node %q has invalid kind %q", n.ID, n.Kind)
	}
	return nil
}

// AddEdge inserts an edge after checking every write-time invariant.
func (g *Graph) AddEdge(e *model.Edge) error {
	if err := g.CheckEdge(e); err != nil {
		return err
	}
	g.edges[e.ID] = e
	g.keys[e.Key()] = e.ID
	g.out[e.Source] = append(g.out[e.Source], e.ID)
	g.in[e.Target] = append(g.in[e.Target], e.ID)
	g.version++
	return nil
}

// CheckEdge reports whether AddEdge would accept e, without mutating.
func (g *Graph) CheckEdge(e *model.Edge) error {
	if e == nil || e.ID == "" {
		return invariant("edge id is required")
	}
	if _, ok := g.edges[e.ID]; ok {
		return invariant("duplicate edge id %q", e.ID)
	}
	if !e.Relation.IsValid() {
		return invariant("edge %q has invalid relation %q", e.ID, e.Relation)
	}
	if !g.HasNode(e.Source) {
		return invariant("edge %q has unknown source %q", e.ID, e.Source)
	}
	target, ok := g.nodes[e.Target]
	if !ok {
		return invariant("edge %q has unknown target %q", e.ID, e.Target)
	}
	if e.Source == e.Target {
		return invariant("edge %q is a self-edge on %q", e.ID, e.Source)
	}
	if e.Relation.TargetsArgument() && target.Kind != model.NodeArgument {
		return invariant("%s edge %q must target an argument, %q is a %s", e.Relation, e.ID, e.Target, target.Kind)
	}
	if e.Scope != e.Relation.Scope() {
		return invariant("%s edge %q requires scope %q, got %q", e.Relation, e.ID, e.Relation.Scope(), e.Scope)
	}
	if id, dup := g.keys[e.Key()]; dup {
		return invariant("edge %s %s-%s (%s) duplicates %q", e.Relation, e.Source, e.Target, e.Scope, id)
	}
	if e.Relation == model.RelSupports {
		if path := g.supportPath(e.Target, e.Source); path != nil {
			return &model.SupportCycleError{Path: append([]string{e.Source}, path...)}
		}
	}
	return nil
}

// RemoveEdgesFrom deletes every edge whose source is nodeID and returns them.
// The version is bumped only when at least one edge was removed.
func (g *Graph) RemoveEdgesFrom(nodeID string) ([]*model.Edge, error) {
	if !g.HasNode(nodeID) {
		return nil, invariant("unknown node %q", nodeID)
	}
	ids := g.out[nodeID]
	if len(ids) == 0 {
		return nil, nil
	}
	removed := make([]*model.Edge, 0, len(ids))
	for _, id := range ids {
		e := g.edges[id]
		removed = append(removed, e)
		delete(g.edges, id)
		delete(g.keys, e.Key())
		g.in[e.Target] = without(g.in[e.Target], id)
		if len(g.in[e.Target]) == 0 {
			delete(g.in, e.Target)
		}
	}
	delete(g.out, nodeID)
	g.version++
	return removed, nil
}

func without(ids []string, drop string) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			result = append(result, id)
		}
	}
	return result
}

// Clone returns a graph that can be mutated without affecting g. Nodes and
// edges are immutable once inserted, so their pointers are shared.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		deliberationID: g.deliberationID,
		version:        g.version,
		nodes:          make(map[string]*model.Node, len(g.nodes)),
		edges:          make(map[string]*model.Edge, len(g.edges)),
		keys:           make(map[model.EdgeKey]string, len(g.keys)),
		out:            make(map[string][]string, len(g.out)),
		in:             make(map[string][]string, len(g.in)),
		concludedBy:    make(map[string][]string, len(g.concludedBy)),
	}
	for id, n := range g.nodes {
		c.nodes[id] = n
	}
	for id, e := range g.edges {
		c.edges[id] = e
	}
	for k, id := range g.keys {
		c.keys[k] = id
	}
	for id, ids := range g.out {
		c.out[id] = append([]string(nil), ids...)
	}
	for id, ids := range g.in {
		c.in[id] = append([]string(nil), ids...)
	}
	for id, ids := range g.concludedBy {
		c.concludedBy[id] = append([]string(nil), ids...)
	}
	return c
}

func invariant(format string, args ...any) error {
	return &model.GraphInvariantError{Reason: fmt.Sprintf(format, args...)}
}
