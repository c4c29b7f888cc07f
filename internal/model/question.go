package model

import "time"

// CQStatus is the lifecycle state of a critical question.
type CQStatus string

const (
	CQOpen     CQStatus = "open"
	CQAnswered CQStatus = "answered"
	CQConceded CQStatus = "conceded"
	CQDeferred CQStatus = "deferred"
)

// String returns the string representation of the status.
func (s CQStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s CQStatus) IsValid() bool {
	switch s {
	case CQOpen, CQAnswered, CQConceded, CQDeferred:
		return true
	}
	return false
}

// CriticalQuestion is a template instantiated against one argument.
type CriticalQuestion struct {
	ID                string      `json:"id"`
	DeliberationID    string      `json:"deliberation_id"`
	SchemeKey         string      `json:"scheme_key"`
	ArgumentID        string      `json:"argument_id"`
	CQKey             string      `json:"cq_key"`
	Text              string      `json:"text"`
	AttackType        Relation    `json:"attack_type"`
	Scope             TargetScope `json:"scope"`
	Status            CQStatus    `json:"status"`
	CounterArgumentID string      `json:"counter_argument_id,omitempty"`
	EdgeID            string      `json:"edge_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
