package graph

import "github.com/alfredjeanlab/agora/internal/model"

// Snapshot is an immutable view of a graph at one version. Nodes and edges
// are sorted by id.
type Snapshot struct {
	DeliberationID string        `json:"deliberation_id"`
	Version        uint64        `json:"version"`
	Nodes          []*model.Node `json:"nodes"`
	Edges          []*model.Edge `json:"edges"`
}

// Snapshot captures the graph's current version, nodes and edges.
func (g *Graph) Snapshot() *Snapshot {
	return &Snapshot{
		DeliberationID: g.deliberationID,
		Version:        g.version,
		Nodes:          g.Nodes(),
		Edges:          g.Edges(),
	}
}
