package model

import "time"

// NodeKind distinguishes atomic propositions from inference applications.
type NodeKind string

const (
	NodeClaim    NodeKind = "claim"
	NodeArgument NodeKind = "argument"
)

// String returns the string representation of the node kind.
func (k NodeKind) String() string {
	return string(k)
}

// IsValid checks whether the node kind is a known value.
func (k NodeKind) IsValid() bool {
	switch k {
	case NodeClaim, NodeArgument:
		return true
	}
	return false
}

// Premise binds a claim to a slot role of the scheme an argument instantiates.
type Premise struct {
	ClaimID string `json:"claim_id"`
	Role    string `json:"role"`
}

// Node is a vertex of the argument graph. Claims are immutable and
// content-addressed; arguments carry their premises and concluded claim.
type Node struct {
	ID         string    `json:"id"`
	Kind       NodeKind  `json:"kind"`
	Text       string    `json:"text,omitempty"`
	Conclusion string    `json:"conclusion,omitempty"`
	Premises   []Premise `json:"premises,omitempty"`
	SchemeKey  string    `json:"scheme_key,omitempty"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsArgument reports whether the node is an argument node.
func (n *Node) IsArgument() bool {
	return n.Kind == NodeArgument
}

// PremiseIDs returns the distinct premise claim ids in binding order.
func (n *Node) PremiseIDs() []string {
	seen := make(map[string]bool, len(n.Premises))
	var ids []string
	for _, p := range n.Premises {
		if seen[p.ClaimID] {
			continue
		}
		seen[p.ClaimID] = true
		ids = append(ids, p.ClaimID)
	}
	return ids
}

// Clone returns a copy of the node that shares no slices with n.
func (n *Node) Clone() *Node {
	c := *n
	if n.Premises != nil {
		c.Premises = append([]Premise(nil), n.Premises...)
	}
	return &c
}
