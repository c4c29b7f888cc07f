package model

// Slot is a named premise role of a scheme. Max of 0 means unbounded.
type Slot struct {
	Role string `json:"role" toml:"role"`
	Min  int    `json:"min" toml:"min"`
	Max  int    `json:"max,omitempty" toml:"max"`
}

// CQTemplate is a critical question attached to a scheme. Answering it
// adversely materializes an attack of AttackType at Scope on the argument.
type CQTemplate struct {
	Key        string      `json:"key" toml:"key"`
	Text       string      `json:"text" toml:"text"`
	AttackType Relation    `json:"attack_type" toml:"attack_type"`
	Scope      TargetScope `json:"scope" toml:"scope"`
}

// Scheme is a named argumentation pattern: premise slots plus the critical
// questions every instance must face.
type Scheme struct {
	Key         string       `json:"key" toml:"key"`
	Name        string       `json:"name" toml:"name"`
	Description string       `json:"description,omitempty" toml:"description"`
	Slots       []Slot       `json:"slots" toml:"slots"`
	CQTemplates []CQTemplate `json:"cq_templates" toml:"critical_questions"`
}

// Slot returns the slot with the given role, or nil.
func (s *Scheme) Slot(role string) *Slot {
	for i := range s.Slots {
		if s.Slots[i].Role == role {
			return &s.Slots[i]
		}
	}
	return nil
}
