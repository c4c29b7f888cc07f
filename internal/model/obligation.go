package model

import "time"

// ObligationStatus is the lifecycle state of a burden of proof.
type ObligationStatus string

const (
	ObligationOpen     ObligationStatus = "open"
	ObligationAnswered ObligationStatus = "answered"
	ObligationConceded ObligationStatus = "conceded"
	ObligationDeferred ObligationStatus = "deferred"
)

// String returns the string representation of the status.
func (s ObligationStatus) String() string {
	return string(s)
}

// Obligation is a burden of proof owed by Debtors to Challenger. Obligations
// derived from open critical questions have no challenger and no stored
// record; they exist as long as the question stays open.
type Obligation struct {
	ID             string           `json:"id"`
	DeliberationID string           `json:"deliberation_id"`
	Challenger     string           `json:"challenger,omitempty"`
	Debtors        []string         `json:"debtors"`
	TargetType     TargetType       `json:"target_type"`
	TargetID       string           `json:"target_id"`
	OpenedByMoveID string           `json:"opened_by_move_id,omitempty"`
	OpenedAt       time.Time        `json:"opened_at"`
	Status         ObligationStatus `json:"status"`
	ClosedByMoveID string           `json:"closed_by_move_id,omitempty"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
}

// Owes reports whether actor is one of the obligation's debtors.
func (o *Obligation) Owes(actor string) bool {
	for _, d := range o.Debtors {
		if d == actor {
			return true
		}
	}
	return false
}

// IsOpen reports whether the obligation is still open.
func (o *Obligation) IsOpen() bool {
	return o.Status == ObligationOpen
}

// Clone returns a copy of the obligation that shares no memory with o.
func (o *Obligation) Clone() *Obligation {
	c := *o
	c.Debtors = append([]string(nil), o.Debtors...)
	if o.ClosedAt != nil {
		t := *o.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// Consensus summarizes how actors stand on one node.
type Consensus struct {
	NodeID      string   `json:"node_id"`
	Committed   int      `json:"committed"`
	Actors      []string `json:"actors"`
	Retractions int      `json:"retractions"`
}
