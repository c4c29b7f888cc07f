package model

import "time"

// MoveType is the closed set of dialogue locutions.
type MoveType string

const (
	MoveAssert  MoveType = "ASSERT"
	MoveWhy     MoveType = "WHY"
	MoveGrounds MoveType = "GROUNDS"
	MoveConcede MoveType = "CONCEDE"
	MoveRetract MoveType = "RETRACT"
	MoveDefer   MoveType = "DEFER"
)

// MoveTypes lists every move type in protocol order.
var MoveTypes = []MoveType{MoveAssert, MoveWhy, MoveGrounds, MoveConcede, MoveRetract, MoveDefer}

// String returns the string representation of the move type.
func (m MoveType) String() string {
	return string(m)
}

// IsValid checks whether the move type is a known value.
func (m MoveType) IsValid() bool {
	switch m {
	case MoveAssert, MoveWhy, MoveGrounds, MoveConcede, MoveRetract, MoveDefer:
		return true
	}
	return false
}

// TargetType names what kind of object a move addresses.
type TargetType string

const (
	TargetClaim            TargetType = "claim"
	TargetArgument         TargetType = "argument"
	TargetCriticalQuestion TargetType = "criticalQuestion"
)

// String returns the string representation of the target type.
func (t TargetType) String() string {
	return string(t)
}

// IsValid checks whether the target type is a known value.
func (t TargetType) IsValid() bool {
	switch t {
	case TargetClaim, TargetArgument, TargetCriticalQuestion:
		return true
	}
	return false
}

// SchemeBinding instantiates a scheme as part of a move.
type SchemeBinding struct {
	SchemeKey    string              `json:"scheme_key"`
	ConclusionID string              `json:"conclusion_id"`
	Premises     map[string][]string `json:"premises"`
}

// MovePayload carries the content a move introduces. At most one of Text,
// ArgumentID and Scheme is used, depending on the move.
type MovePayload struct {
	Text       string         `json:"text,omitempty"`
	ArgumentID string         `json:"argument_id,omitempty"`
	Scheme     *SchemeBinding `json:"scheme,omitempty"`
}

// IsEmpty reports whether the payload carries no content.
func (p *MovePayload) IsEmpty() bool {
	return p == nil || (p.Text == "" && p.ArgumentID == "" && p.Scheme == nil)
}

// Move is one entry of a deliberation's append-only move log.
type Move struct {
	ID             string       `json:"id"`
	DeliberationID string       `json:"deliberation_id"`
	Type           MoveType     `json:"type"`
	ActorID        string       `json:"actor_id"`
	TargetType     TargetType   `json:"target_type"`
	TargetID       string       `json:"target_id"`
	ReplyToMoveID  string       `json:"reply_to_move_id,omitempty"`
	Payload        *MovePayload `json:"payload,omitempty"`
	GraphVersion   uint64       `json:"graph_version"`
	CreatedAt      time.Time    `json:"created_at"`
}
