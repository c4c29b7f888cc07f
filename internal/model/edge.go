package model

import "time"

// Relation is the typed relationship an edge asserts from source to target.
type Relation string

const (
	RelSupports   Relation = "SUPPORTS"
	RelRebuts     Relation = "REBUTS"
	RelUndercuts  Relation = "UNDERCUTS"
	RelUndermines Relation = "UNDERMINES"
)

// String returns the string representation of the relation.
func (r Relation) String() string {
	return string(r)
}

// IsValid checks whether the relation is a known value.
func (r Relation) IsValid() bool {
	switch r {
	case RelSupports, RelRebuts, RelUndercuts, RelUndermines:
		return true
	}
	return false
}

// IsAttack reports whether the relation is one of the three attack kinds.
func (r Relation) IsAttack() bool {
	switch r {
	case RelRebuts, RelUndercuts, RelUndermines:
		return true
	}
	return false
}

// Scope returns the target scope an edge of this relation must carry.
// SUPPORTS edges carry no scope.
func (r Relation) Scope() TargetScope {
	switch r {
	case RelRebuts:
		return ScopeConclusion
	case RelUndercuts:
		return ScopeInference
	case RelUndermines:
		return ScopePremise
	}
	return ScopeNone
}

// TargetsArgument reports whether edges of this relation may only point at argument nodes.
func (r Relation) TargetsArgument() bool {
	return r == RelUndercuts || r == RelUndermines
}

// TargetScope names the part of the target an attack addresses.
type TargetScope string

const (
	ScopeNone       TargetScope = ""
	ScopePremise    TargetScope = "premise"
	ScopeInference  TargetScope = "inference"
	ScopeConclusion TargetScope = "conclusion"
)

// String returns the string representation of the scope.
func (s TargetScope) String() string {
	return string(s)
}

// IsValid checks whether the scope is a known value. The empty scope is valid
// and is the only scope accepted on SUPPORTS edges.
func (s TargetScope) IsValid() bool {
	switch s {
	case ScopeNone, ScopePremise, ScopeInference, ScopeConclusion:
		return true
	}
	return false
}

// Edge is a typed directed relationship between two nodes.
type Edge struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	Target    string      `json:"target"`
	Relation  Relation    `json:"relation"`
	Scope     TargetScope `json:"scope,omitempty"`
	CreatedBy string      `json:"created_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// EdgeKey identifies an edge by content. No two edges in a graph share a key.
type EdgeKey struct {
	Source   string
	Target   string
	Relation Relation
	Scope    TargetScope
}

// Key returns the content key of the edge.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Relation: e.Relation, Scope: e.Scope}
}
