package semantics

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/agora/internal/model"
)

// Result is a labeling of every node of a framework.
type Result struct {
	Semantics  model.Semantics
	Version    uint64
	Labels     map[string]model.LabelValue
	Iterations int
}

type label uint8

const (
	undec label = iota
	in
	out
)

func (l label) value() model.LabelValue {
	switch l {
	case in:
		return model.LabelIn
	case out:
		return model.LabelOut
	}
	return model.LabelUndec
}

// Compute labels fw under the requested semantics.
func Compute(ctx context.Context, s model.Semantics, fw *Framework) (*Result, error) {
	switch s {
	case model.SemanticsGrounded:
		return Grounded(ctx, fw)
	case model.SemanticsPreferred:
		return Preferred(ctx, fw)
	case model.SemanticsHybrid:
		return nil, fmt.Errorf("%s semantics: %w", s, model.ErrSemanticsReserved)
	}
	return nil, fmt.Errorf("unknown semantics %q", s)
}

// Grounded computes the grounded labeling: starting from all UNDEC, a node
// becomes IN once every attacker is OUT and OUT once some attacker is IN,
// repeated until nothing changes. Odd attack cycles stay UNDEC.
func Grounded(ctx context.Context, fw *Framework) (*Result, error) {
	labels, iterations, err := grounded(ctx, fw)
	if err != nil {
		return nil, err
	}
	return fw.result(model.SemanticsGrounded, labels, iterations), nil
}

func grounded(ctx context.Context, fw *Framework) ([]label, int, error) {
	labels := make([]label, fw.Len())
	iterations := 0
	for changed := true; changed; {
		if err := ctx.Err(); err != nil {
			return nil, iterations, err
		}
		changed = false
		iterations++
		for i := range labels {
			if labels[i] != undec {
				continue
			}
			allOut, someIn := true, false
			for _, a := range fw.attackers[i] {
				switch labels[a] {
				case in:
					someIn = true
				case undec:
					allOut = false
				}
			}
			switch {
			case someIn:
				labels[i] = out
				changed = true
			case allOut:
				labels[i] = in
				changed = true
			}
		}
	}
	return labels, iterations, nil
}

// Preferred computes one preferred extension. It keeps the grounded IN and
// OUT nodes fixed and searches the remaining nodes in ascending id order,
// trying inclusion before exclusion; the first admissible set reached is
// maximal. When several preferred extensions exist this tie-break picks the
// one favouring the lowest ids.
func Preferred(ctx context.Context, fw *Framework) (*Result, error) {
	base, _, err := grounded(ctx, fw)
	if err != nil {
		return nil, err
	}

	s := &search{ctx: ctx, fw: fw, member: make([]bool, fw.Len())}
	for i, l := range base {
		switch {
		case l == in:
			s.member[i] = true
		case l == undec && !fw.attacksSelf(i):
			s.candidates = append(s.candidates, i)
		}
	}
	s.open = make([]bool, fw.Len())
	for _, c := range s.candidates {
		s.open[c] = true
	}

	found, err := s.run(0)
	if err != nil {
		return nil, err
	}
	if !found {
		// The grounded extension is admissible, so the search always succeeds.
		return nil, fmt.Errorf("preferred search found no admissible extension for %s@%d", fw.DeliberationID, fw.Version)
	}

	labels := make([]label, fw.Len())
	for i, m := range s.member {
		if m {
			labels[i] = in
			for _, t := range fw.targets[i] {
				labels[t] = out
			}
		}
	}
	return fw.result(model.SemanticsPreferred, labels, s.steps), nil
}

type search struct {
	ctx        context.Context
	fw         *Framework
	candidates []int
	member     []bool // current extension
	open       []bool // candidates not yet decided
	steps      int
}

func (s *search) run(k int) (bool, error) {
	s.steps++
	if s.steps%256 == 0 {
		if err := s.ctx.Err(); err != nil {
			return false, err
		}
	}
	if !s.defensible() {
		return false, nil
	}
	if k == len(s.candidates) {
		return s.admissible(), nil
	}

	c := s.candidates[k]
	s.open[c] = false
	if s.conflictFreeWith(c) {
		s.member[c] = true
		found, err := s.run(k + 1)
		if err != nil || found {
			return found, err
		}
		s.member[c] = false
	}
	found, err := s.run(k + 1)
	if err != nil || found {
		return found, err
	}
	s.open[c] = true
	return false, nil
}

func (s *search) conflictFreeWith(c int) bool {
	for _, a := range s.fw.attackers[c] {
		if s.member[a] {
			return false
		}
	}
	for _, t := range s.fw.targets[c] {
		if s.member[t] {
			return false
		}
	}
	return true
}

// defensible reports whether every attacker of the current extension is
// still attacked by a member or an undecided candidate.
func (s *search) defensible() bool {
	return s.defended(func(z int) bool { return s.member[z] || s.open[z] })
}

func (s *search) admissible() bool {
	return s.defended(func(z int) bool { return s.member[z] })
}

func (s *search) defended(counts func(int) bool) bool {
	for x, m := range s.member {
		if !m {
			continue
		}
		for _, y := range s.fw.attackers[x] {
			ok := false
			for _, z := range s.fw.attackers[y] {
				if counts(z) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
	}
	return true
}

func (fw *Framework) attacksSelf(i int) bool {
	for _, t := range fw.targets[i] {
		if t == i {
			return true
		}
	}
	return false
}

func (fw *Framework) result(s model.Semantics, labels []label, iterations int) *Result {
	r := &Result{
		Semantics:  s,
		Version:    fw.Version,
		Labels:     make(map[string]model.LabelValue, len(labels)),
		Iterations: iterations,
	}
	for i, l := range labels {
		r.Labels[fw.IDs[i]] = l.value()
	}
	return r
}

// Labeling converts the result into the versioned labeling record.
func (r *Result) Labeling(deliberationID string) *model.Labeling {
	return &model.Labeling{
		DeliberationID: deliberationID,
		Semantics:      r.Semantics,
		Version:        r.Version,
		Labels:         r.Labels,
		Iterations:     r.Iterations,
	}
}
