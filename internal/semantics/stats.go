package semantics

import "github.com/alfredjeanlab/agora/internal/model"

// Stats describes the shape of a framework.
type Stats struct {
	Nodes          int     `json:"nodes"`
	Claims         int     `json:"claims"`
	Arguments      int     `json:"arguments"`
	Edges          int     `json:"edges"`
	Supports       int     `json:"supports"`
	BaseAttacks    int     `json:"base_attacks"`
	DerivedAttacks int     `json:"derived_attacks"`
	MaxInDegree    int     `json:"max_in_degree"`
	MaxOutDegree   int     `json:"max_out_degree"`
	AvgDegree      float64 `json:"avg_degree"`
	HasCycles      bool    `json:"has_cycles"`
}

// Summary counts labels of a result.
type Summary struct {
	In       int  `json:"in"`
	Out      int  `json:"out"`
	Undec    int  `json:"undec"`
	Complete bool `json:"complete"`
}

// Stats computes degree statistics over the closed attack relation.
// HasCycles reports whether any attack cycle exists.
func (fw *Framework) Stats() Stats {
	st := Stats{
		Nodes:       fw.Len(),
		Edges:       fw.edges,
		Supports:    fw.supports,
		BaseAttacks: fw.baseAttacks,
	}
	total := 0
	for i := range fw.IDs {
		if fw.Kinds[i] == model.NodeArgument {
			st.Arguments++
		} else {
			st.Claims++
		}
		in, out := len(fw.attackers[i]), len(fw.targets[i])
		total += out
		st.MaxInDegree = max(st.MaxInDegree, in)
		st.MaxOutDegree = max(st.MaxOutDegree, out)
	}
	st.DerivedAttacks = total
	if st.Nodes > 0 {
		st.AvgDegree = float64(2*total) / float64(st.Nodes)
	}
	st.HasCycles = fw.hasAttackCycle()
	return st
}

func (fw *Framework) hasAttackCycle() bool {
	permanent := make([]bool, fw.Len())
	temporary := make([]bool, fw.Len())

	var visit func(i int) bool
	visit = func(i int) bool {
		if permanent[i] {
			return false
		}
		if temporary[i] {
			return true
		}
		temporary[i] = true
		for _, t := range fw.targets[i] {
			if visit(t) {
				return true
			}
		}
		temporary[i] = false
		permanent[i] = true
		return false
	}

	for i := range fw.IDs {
		if visit(i) {
			return true
		}
	}
	return false
}

// Summarize counts IN, OUT and UNDEC labels. A result is complete when no
// node is left UNDEC.
func Summarize(labels map[string]model.LabelValue) Summary {
	var s Summary
	for _, l := range labels {
		switch l {
		case model.LabelIn:
			s.In++
		case model.LabelOut:
			s.Out++
		default:
			s.Undec++
		}
	}
	s.Complete = s.Undec == 0
	return s
}
