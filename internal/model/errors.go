package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGraphInvariant    = errors.New("graph invariant violation")
	ErrSupportCycle      = errors.New("cycle detected in support closure")
	ErrUnknownScheme     = errors.New("unknown scheme")
	ErrSlotUnfilled      = errors.New("slot unfilled")
	ErrUnknownPremise    = errors.New("unknown premise")
	ErrIllegalMove       = errors.New("illegal move")
	ErrCQClosed          = errors.New("critical question closed")
	ErrNotFound          = errors.New("not found")
	ErrSemanticsReserved = errors.New("semantics reserved")
)

// GraphInvariantError reports a structural mutation the graph refused.
type GraphInvariantError struct {
	Reason string
}

func (e *GraphInvariantError) Error() string {
	return "graph invariant violation: " + e.Reason
}

func (e *GraphInvariantError) Unwrap() error { return ErrGraphInvariant }

// SupportCycleError reports a support edge that would close a cycle. Path
// lists the node ids of the cycle, starting and ending at the same node.
type SupportCycleError struct {
	Path []string
}

func (e *SupportCycleError) Error() string {
	return "cycle detected in support closure: " + strings.Join(e.Path, " -> ")
}

func (e *SupportCycleError) Unwrap() []error {
	return []error{ErrSupportCycle, ErrGraphInvariant}
}

// UnknownSchemeError reports an instantiation against a scheme the catalog lacks.
type UnknownSchemeError struct {
	Key string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("unknown scheme %q", e.Key)
}

func (e *UnknownSchemeError) Unwrap() error { return ErrUnknownScheme }

// SlotUnfilledError reports a slot whose binding violates its cardinality.
type SlotUnfilledError struct {
	Role   string
	Reason string
}

func (e *SlotUnfilledError) Error() string {
	return fmt.Sprintf("slot %q unfilled: %s", e.Role, e.Reason)
}

func (e *SlotUnfilledError) Unwrap() error { return ErrSlotUnfilled }

// UnknownPremiseError reports a binding to a claim id the graph does not hold.
type UnknownPremiseError struct {
	ClaimID string
}

func (e *UnknownPremiseError) Error() string {
	return fmt.Sprintf("unknown premise %q", e.ClaimID)
}

func (e *UnknownPremiseError) Unwrap() error { return ErrUnknownPremise }

// IllegalMoveError reports a move rejected by the dialogue protocol.
type IllegalMoveError struct {
	Move   MoveType
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %s: %s", e.Move, e.Reason)
}

func (e *IllegalMoveError) Unwrap() error { return ErrIllegalMove }

// NotFoundError reports a lookup of an object that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
