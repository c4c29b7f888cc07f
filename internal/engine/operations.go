package engine

import (
	"context"

	"github.com/alfredjeanlab/agora/internal/dialogue"
	"github.com/alfredjeanlab/agora/internal/events"
	"github.com/alfredjeanlab/agora/internal/model"
)

// InstantiateRequest asks for a new argument built from a scheme.
type InstantiateRequest struct {
	DeliberationID string              `json:"deliberation_id"`
	ActorID        string              `json:"actor_id"`
	SchemeKey      string              `json:"scheme_key"`
	ConclusionID   string              `json:"conclusion_id"`
	Premises       map[string][]string `json:"premises"`
}

// InstantiateResult is the argument created by InstantiateArgument.
type InstantiateResult struct {
	Argument     *model.Node               `json:"argument"`
	Questions    []*model.CriticalQuestion `json:"critical_questions"`
	Move         *model.Move               `json:"move"`
	GraphVersion uint64                    `json:"graph_version"`
}

// MoveRequest is a dialogue move submitted by an actor.
type MoveRequest struct {
	DeliberationID string             `json:"deliberation_id"`
	ActorID        string             `json:"actor_id"`
	Type           model.MoveType     `json:"type"`
	TargetType     model.TargetType   `json:"target_type"`
	TargetID       string             `json:"target_id"`
	ReplyToMoveID  string             `json:"reply_to_move_id,omitempty"`
	Payload        *model.MovePayload `json:"payload,omitempty"`
}

// MoveResult reports the effects of an accepted move.
type MoveResult struct {
	Move         *model.Move               `json:"move"`
	Node         *model.Node               `json:"node,omitempty"`
	Edge         *model.Edge               `json:"edge,omitempty"`
	Questions    []*model.CriticalQuestion `json:"critical_questions,omitempty"`
	Closed       []*model.Obligation       `json:"closed_obligations,omitempty"`
	GraphChanged bool                      `json:"graph_changed"`
	GraphVersion uint64                    `json:"graph_version"`
}

// MaterializeResult is the attack a critical question turned into.
type MaterializeResult struct {
	Question     *model.CriticalQuestion `json:"critical_question"`
	Edge         *model.Edge             `json:"edge"`
	GraphVersion uint64                  `json:"graph_version"`
}

// ClaimResult is the claim returned by AddClaim.
type ClaimResult struct {
	Claim        *model.Node `json:"claim"`
	Created      bool        `json:"created"`
	GraphVersion uint64      `json:"graph_version"`
}

// InstantiateArgument creates an argument from a scheme on behalf of the
// actor, who becomes committed to it, and opens one critical question per
// template of the scheme.
func (e *Engine) InstantiateArgument(ctx context.Context, req InstantiateRequest) (*InstantiateResult, error) {
	out, st, err := e.mutate(ctx, req.DeliberationID, func(st *dialogue.State) (*dialogue.Outcome, []pendingEvent, error) {
		out, err := e.machine.Instantiate(st, req.ActorID, &model.SchemeBinding{
			SchemeKey:    req.SchemeKey,
			ConclusionID: req.ConclusionID,
			Premises:     req.Premises,
		})
		if err != nil {
			return nil, nil, err
		}
		return out, []pendingEvent{
			{events.TopicArgumentInstantiated, req.ActorID, events.ArgumentInstantiated{
				DeliberationID: req.DeliberationID,
				Argument:       out.Node,
				Questions:      out.Questions,
				GraphVersion:   st.Version(),
			}},
			{events.TopicMoveRecorded, req.ActorID, events.MoveRecorded{Move: out.Move, GraphChanged: true}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &InstantiateResult{
		Argument:     out.Node,
		Questions:    out.Questions,
		Move:         out.Move,
		GraphVersion: st.Version(),
	}, nil
}

// ApplyMove validates a move against the dialogue protocol and applies it.
// Illegal moves fail with model.ErrIllegalMove and change nothing.
func (e *Engine) ApplyMove(ctx context.Context, req MoveRequest) (*MoveResult, error) {
	out, st, err := e.mutate(ctx, req.DeliberationID, func(st *dialogue.State) (*dialogue.Outcome, []pendingEvent, error) {
		out, err := e.machine.ApplyMove(st, dialogue.Request{
			Type:          req.Type,
			ActorID:       req.ActorID,
			TargetType:    req.TargetType,
			TargetID:      req.TargetID,
			ReplyToMoveID: req.ReplyToMoveID,
			Payload:       req.Payload,
		})
		if err != nil {
			return nil, nil, err
		}
		evs := []pendingEvent{
			{events.TopicMoveRecorded, req.ActorID, events.MoveRecorded{Move: out.Move, GraphChanged: out.GraphChanged}},
		}
		if len(out.Closed) > 0 {
			evs = append(evs, pendingEvent{events.TopicObligationsClosed, req.ActorID, events.ObligationsClosed{
				DeliberationID: req.DeliberationID,
				Obligations:    out.Closed,
			}})
		}
		return out, evs, nil
	})
	if err != nil {
		return nil, err
	}
	return &MoveResult{
		Move:         out.Move,
		Node:         out.Node,
		Edge:         out.Edge,
		Questions:    out.Questions,
		Closed:       out.Closed,
		GraphChanged: out.GraphChanged,
		GraphVersion: st.Version(),
	}, nil
}

// MaterializeCQ answers a critical question with a counter-argument, adding
// the attack its template declares. Repeating it is a no-op.
func (e *Engine) MaterializeCQ(ctx context.Context, deliberationID, actorID, questionID, counterArgumentID string) (*MaterializeResult, error) {
	out, st, err := e.mutate(ctx, deliberationID, func(st *dialogue.State) (*dialogue.Outcome, []pendingEvent, error) {
		out, err := e.machine.MaterializeCQ(st, actorID, questionID, counterArgumentID)
		if err != nil {
			return nil, nil, err
		}
		var q *model.CriticalQuestion
		if len(out.Questions) > 0 {
			q = out.Questions[0]
		}
		return out, []pendingEvent{
			{events.TopicQuestionMaterialized, actorID, events.QuestionMaterialized{
				DeliberationID: deliberationID,
				Question:       q,
				Edge:           out.Edge,
				GraphVersion:   st.Version(),
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	res := &MaterializeResult{Edge: out.Edge, GraphVersion: st.Version()}
	if len(out.Questions) > 0 {
		res.Question = out.Questions[0]
	}
	return res, nil
}

// AddClaim adds a claim without committing anyone to it. Claims are keyed by
// their normalized text, so adding the same text twice returns one claim.
func (e *Engine) AddClaim(ctx context.Context, deliberationID, actorID, text string) (*ClaimResult, error) {
	out, st, err := e.mutate(ctx, deliberationID, func(st *dialogue.State) (*dialogue.Outcome, []pendingEvent, error) {
		out, err := e.machine.AddClaim(st, actorID, text)
		if err != nil {
			return nil, nil, err
		}
		return out, []pendingEvent{
			{events.TopicClaimAdded, actorID, events.ClaimAdded{DeliberationID: deliberationID, Claim: out.Node, GraphVersion: st.Version()}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &ClaimResult{Claim: out.Node, Created: len(out.Deltas) > 0, GraphVersion: st.Version()}, nil
}
