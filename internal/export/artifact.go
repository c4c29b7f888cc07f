// Package export serializes deliberations for archival and interchange and
// pushes the result to external destinations on a schedule.
package export

import (
	"time"

	"github.com/alfredjeanlab/agora/internal/dialogue"
	"github.com/alfredjeanlab/agora/internal/model"
)

// Artifact is the complete exported form of one deliberation.
type Artifact struct {
	DeliberationID string                    `json:"deliberation_id"`
	GraphVersion   uint64                    `json:"graph_version"`
	ExportedAt     time.Time                 `json:"exported_at"`
	Nodes          []*model.Node             `json:"nodes"`
	Edges          []*model.Edge             `json:"edges"`
	Questions      []*model.CriticalQuestion `json:"critical_questions"`
	Moves          []*model.Move             `json:"moves"`
	Obligations    []*model.Obligation       `json:"obligations"`
	Commitments    map[string][]string       `json:"commitments"`
	Labels         *model.Labeling           `json:"labels,omitempty"`
}

// Build captures st together with the labeling to ship alongside it. The
// caller supplies labels computed for st's graph version.
func Build(st *dialogue.State, labels *model.Labeling, now time.Time) *Artifact {
	g := st.Graph()
	a := &Artifact{
		DeliberationID: st.DeliberationID(),
		GraphVersion:   st.Version(),
		ExportedAt:     now,
		Nodes:          g.Nodes(),
		Edges:          g.Edges(),
		Questions:      st.AllQuestions(),
		Moves:          st.Moves(),
		Obligations:    st.Obligations(),
		Commitments:    make(map[string][]string),
		Labels:         labels,
	}
	for _, actor := range st.Actors() {
		a.Commitments[actor] = st.CommitmentStore(actor)
	}
	return a
}
