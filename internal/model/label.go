package model

import "time"

// LabelValue is the acceptance status of a node under a labeling.
type LabelValue string

const (
	LabelIn    LabelValue = "IN"
	LabelOut   LabelValue = "OUT"
	LabelUndec LabelValue = "UNDEC"
)

// String returns the string representation of the label.
func (l LabelValue) String() string {
	return string(l)
}

// Semantics selects the acceptability semantics a labeling is computed under.
type Semantics string

const (
	SemanticsGrounded  Semantics = "grounded"
	SemanticsPreferred Semantics = "preferred"
	// SemanticsHybrid is reserved and not computable.
	SemanticsHybrid Semantics = "hybrid"
)

// String returns the string representation of the semantics.
func (s Semantics) String() string {
	return string(s)
}

// IsValid checks whether the semantics is a known value, reserved ones included.
func (s Semantics) IsValid() bool {
	switch s {
	case SemanticsGrounded, SemanticsPreferred, SemanticsHybrid:
		return true
	}
	return false
}

// Labeling is an immutable label map computed from one graph version.
type Labeling struct {
	DeliberationID string                `json:"deliberation_id"`
	Semantics      Semantics             `json:"semantics"`
	Version        uint64                `json:"version"`
	Labels         map[string]LabelValue `json:"labels"`
	Iterations     int                   `json:"iterations"`
	ComputedAt     time.Time             `json:"computed_at"`
}

// Label returns the label of a node, UNDEC for nodes the labeling does not know.
func (l *Labeling) Label(id string) LabelValue {
	if v, ok := l.Labels[id]; ok {
		return v
	}
	return LabelUndec
}
