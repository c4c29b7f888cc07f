package dialogue

import (
	"fmt"

	"github.com/alfredjeanlab/agora/internal/model"
)

// DeltaKind names a primitive state change. Every mutation of a State is a
// sequence of deltas, which is also what the journal stores.
type DeltaKind string

const (
	DeltaNodeAdded        DeltaKind = "node.added"
	DeltaEdgeAdded        DeltaKind = "edge.added"
	DeltaEdgesRemoved     DeltaKind = "edges.removed"
	DeltaQuestionCreated  DeltaKind = "question.created"
	DeltaQuestionUpdated  DeltaKind = "question.updated"
	DeltaCommitted        DeltaKind = "commitment.added"
	DeltaWithdrawn        DeltaKind = "commitment.removed"
	DeltaObligationOpened DeltaKind = "obligation.opened"
	DeltaObligationClosed DeltaKind = "obligation.closed"
	DeltaMoveRecorded     DeltaKind = "move.recorded"
)

// Delta is one primitive state change. Which fields are set depends on Kind.
type Delta struct {
	Kind       DeltaKind               `json:"kind"`
	Node       *model.Node             `json:"node,omitempty"`
	Edge       *model.Edge             `json:"edge,omitempty"`
	Source     string                  `json:"source,omitempty"`
	EdgeIDs    []string                `json:"edge_ids,omitempty"`
	Question   *model.CriticalQuestion `json:"question,omitempty"`
	Actor      string                  `json:"actor,omitempty"`
	NodeID     string                  `json:"node_id,omitempty"`
	Obligation *model.Obligation       `json:"obligation,omitempty"`
	Move       *model.Move             `json:"move,omitempty"`
}

// TouchesGraph reports whether the delta changes graph structure.
func (d *Delta) TouchesGraph() bool {
	switch d.Kind {
	case DeltaNodeAdded, DeltaEdgeAdded, DeltaEdgesRemoved:
		return true
	}
	return false
}

// Apply performs one delta on the state. Objects referenced by the delta are
// stored as given and must not be modified afterwards.
func (st *State) Apply(d Delta) error {
	switch d.Kind {
	case DeltaNodeAdded:
		if _, err := st.graph.AddNode(d.Node); err != nil {
			return err
		}
	case DeltaEdgeAdded:
		return st.graph.AddEdge(d.Edge)
	case DeltaEdgesRemoved:
		_, err := st.graph.RemoveEdgesFrom(d.Source)
		return err
	case DeltaQuestionCreated:
		if _, dup := st.questions[d.Question.ID]; dup {
			return fmt.Errorf("question %s already exists", d.Question.ID)
		}
		st.questions[d.Question.ID] = d.Question
		st.questionsByArg[d.Question.ArgumentID] = append(st.questionsByArg[d.Question.ArgumentID], d.Question.ID)
	case DeltaQuestionUpdated:
		if _, ok := st.questions[d.Question.ID]; !ok {
			return &model.NotFoundError{Kind: "critical question", ID: d.Question.ID}
		}
		st.questions[d.Question.ID] = d.Question
	case DeltaCommitted:
		set := st.commitments[d.Actor]
		if set == nil {
			set = make(map[string]bool)
			st.commitments[d.Actor] = set
		}
		set[d.NodeID] = true
	case DeltaWithdrawn:
		delete(st.commitments[d.Actor], d.NodeID)
		st.retractions[d.NodeID]++
	case DeltaObligationOpened:
		if _, dup := st.obligations[d.Obligation.ID]; dup {
			return fmt.Errorf("obligation %s already exists", d.Obligation.ID)
		}
		st.obligations[d.Obligation.ID] = d.Obligation
		st.obligationOrder = append(st.obligationOrder, d.Obligation.ID)
	case DeltaObligationClosed:
		if _, ok := st.obligations[d.Obligation.ID]; !ok {
			return &model.NotFoundError{Kind: "obligation", ID: d.Obligation.ID}
		}
		st.obligations[d.Obligation.ID] = d.Obligation
	case DeltaMoveRecorded:
		st.moveIndex[d.Move.ID] = len(st.moves)
		st.moves = append(st.moves, d.Move)
		if d.Move.Type == model.MoveAssert && d.Move.TargetType == model.TargetArgument {
			if _, ok := st.origin[d.Move.TargetID]; !ok {
				st.origin[d.Move.TargetID] = d.Move.ID
			}
		}
	default:
		return fmt.Errorf("unknown delta kind %q", d.Kind)
	}
	return nil
}

// Replay rebuilds a state from its journal.
func Replay(deliberationID string, deltas []Delta) (*State, error) {
	st := NewState(deliberationID)
	for i, d := range deltas {
		if err := st.Apply(d); err != nil {
			return nil, fmt.Errorf("replay delta %d (%s): %w", i, d.Kind, err)
		}
	}
	if err := st.graph.DetectSupportCycles(); err != nil {
		return nil, fmt.Errorf("replay %s: %w", deliberationID, err)
	}
	return st, nil
}
