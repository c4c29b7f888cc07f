package events

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/agora/internal/model"
)

// Event topic constants
const (
	TopicClaimAdded           = "agora.claim.added"
	TopicArgumentInstantiated = "agora.argument.instantiated"
	TopicMoveRecorded         = "agora.move.recorded"
	TopicObligationsClosed    = "agora.obligation.closed"
	TopicQuestionMaterialized = "agora.cq.materialized"
	TopicLabelsUpdated        = "agora.labels.updated"
	TopicDeliberationRestored = "agora.deliberation.restored"
	TopicExportWritten        = "agora.export.written"
)

// All matches every agora topic (NATS wildcard).
const All = "agora.>"

// Event types

type ClaimAdded struct {
	DeliberationID string      `json:"deliberation_id"`
	Claim          *model.Node `json:"claim"`
	GraphVersion   uint64      `json:"graph_version"`
}

type ArgumentInstantiated struct {
	DeliberationID string                    `json:"deliberation_id"`
	Argument       *model.Node               `json:"argument"`
	Questions      []*model.CriticalQuestion `json:"questions,omitempty"`
	GraphVersion   uint64                    `json:"graph_version"`
}

type MoveRecorded struct {
	Move         *model.Move `json:"move"`
	GraphChanged bool        `json:"graph_changed"`
}

type ObligationsClosed struct {
	DeliberationID string              `json:"deliberation_id"`
	Obligations    []*model.Obligation `json:"obligations"`
}

type QuestionMaterialized struct {
	DeliberationID string                  `json:"deliberation_id"`
	Question       *model.CriticalQuestion `json:"question"`
	Edge           *model.Edge             `json:"edge"`
	GraphVersion   uint64                  `json:"graph_version"`
}

// LabelsUpdated announces a completed labeling. Labels may lag the graph;
// Version says which graph version they describe.
type LabelsUpdated struct {
	DeliberationID string                      `json:"deliberation_id"`
	Semantics      model.Semantics             `json:"semantics"`
	Version        uint64                      `json:"version"`
	Labels         map[string]model.LabelValue `json:"labels"`
}

type DeliberationRestored struct {
	DeliberationID string `json:"deliberation_id"`
	Entries        int    `json:"entries"`
	GraphVersion   uint64 `json:"graph_version"`
}

type ExportWritten struct {
	Destination   string `json:"destination"`
	Deliberations int    `json:"deliberations"`
	Bytes         int    `json:"bytes"`
}

// Scoped is implemented by events that belong to one deliberation.
type Scoped interface {
	Deliberation() string
}

func (e ClaimAdded) Deliberation() string           { return e.DeliberationID }
func (e ArgumentInstantiated) Deliberation() string { return e.DeliberationID }
func (e ObligationsClosed) Deliberation() string    { return e.DeliberationID }
func (e QuestionMaterialized) Deliberation() string { return e.DeliberationID }
func (e LabelsUpdated) Deliberation() string        { return e.DeliberationID }
func (e DeliberationRestored) Deliberation() string { return e.DeliberationID }

func (e MoveRecorded) Deliberation() string {
	if e.Move == nil {
		return ""
	}
	return e.Move.DeliberationID
}

// DeliberationOf returns the deliberation event belongs to, or "" for
// events that are not scoped to one (such as ExportWritten).
func DeliberationOf(event any) string {
	if s, ok := event.(Scoped); ok {
		return s.Deliberation()
	}
	return ""
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Multi publishes every event to each of pubs in order.
func Multi(pubs ...Publisher) Publisher {
	return multi(pubs)
}

type multi []Publisher

func (m multi) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
