package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateScheme checks a Scheme definition before it enters a catalog.
// It returns a *ValidationError if any rules fail, or nil if the scheme is valid.
func ValidateScheme(s *Scheme) error {
	var ve ValidationError

	if strings.TrimSpace(s.Key) == "" {
		ve.add("key", "is required")
	}
	if len(s.Slots) == 0 {
		ve.add("slots", "at least one slot is required")
	}

	roles := make(map[string]bool, len(s.Slots))
	for i, slot := range s.Slots {
		field := fmt.Sprintf("slots[%d]", i)
		if strings.TrimSpace(slot.Role) == "" {
			ve.add(field+".role", "is required")
		} else if roles[slot.Role] {
			ve.add(field+".role", "duplicate role %q", slot.Role)
		}
		roles[slot.Role] = true
		if slot.Min < 0 {
			ve.add(field+".min", "must be non-negative, got %d", slot.Min)
		}
		if slot.Max != 0 && slot.Max < slot.Min {
			ve.add(field+".max", "must be 0 (unbounded) or at least min %d, got %d", slot.Min, slot.Max)
		}
	}

	keys := make(map[string]bool, len(s.CQTemplates))
	for i, cq := range s.CQTemplates {
		field := fmt.Sprintf("critical_questions[%d]", i)
		if strings.TrimSpace(cq.Key) == "" {
			ve.add(field+".key", "is required")
		} else if keys[cq.Key] {
			ve.add(field+".key", "duplicate key %q", cq.Key)
		}
		keys[cq.Key] = true
		if strings.TrimSpace(cq.Text) == "" {
			ve.add(field+".text", "is required")
		}
		// Attack type and scope must describe an edge the graph would accept.
		if !cq.AttackType.IsAttack() {
			ve.add(field+".attack_type", "invalid value %q", cq.AttackType)
		} else if cq.Scope != cq.AttackType.Scope() {
			ve.add(field+".scope", "%s requires scope %q, got %q", cq.AttackType, cq.AttackType.Scope(), cq.Scope)
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateMove checks the shape of a move before protocol rules are consulted.
func ValidateMove(m *Move) error {
	var ve ValidationError

	if strings.TrimSpace(m.DeliberationID) == "" {
		ve.add("deliberation_id", "is required")
	}
	if strings.TrimSpace(m.ActorID) == "" {
		ve.add("actor_id", "is required")
	}
	if !m.Type.IsValid() {
		ve.add("type", "invalid value %q", m.Type)
	}
	if !m.TargetType.IsValid() {
		ve.add("target_type", "invalid value %q", m.TargetType)
	}
	// ASSERT may name its target through the payload alone.
	if strings.TrimSpace(m.TargetID) == "" && !(m.Type == MoveAssert && !m.Payload.IsEmpty()) {
		ve.add("target_id", "is required")
	}
	if m.Payload != nil && m.Payload.Scheme != nil && m.TargetType != TargetArgument {
		ve.add("payload.scheme", "only valid for argument targets")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
