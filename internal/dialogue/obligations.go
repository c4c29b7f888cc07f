package dialogue

import "github.com/alfredjeanlab/agora/internal/model"

// OpenObligations returns every open burden of proof: open challenges in the
// order they were raised, followed by one implicit obligation per open
// critical question, owed by the argument's author.
func (st *State) OpenObligations() []*model.Obligation {
	var result []*model.Obligation
	for _, o := range st.Obligations() {
		if o.IsOpen() {
			result = append(result, o)
		}
	}
	return result
}

// Obligations returns every obligation ever opened, closed ones included.
func (st *State) Obligations() []*model.Obligation {
	result := make([]*model.Obligation, 0, len(st.obligationOrder))
	for _, id := range st.obligationOrder {
		result = append(result, st.obligations[id])
	}
	for _, q := range st.AllQuestions() {
		result = append(result, st.implicitObligation(q))
	}
	return result
}

// Closed reports whether no obligation is open.
func (st *State) Closed() bool {
	return len(st.OpenObligations()) == 0
}

func (st *State) implicitObligation(q *model.CriticalQuestion) *model.Obligation {
	var debtors []string
	if arg, ok := st.graph.Node(q.ArgumentID); ok && arg.CreatedBy != "" {
		debtors = []string{arg.CreatedBy}
	}
	o := &model.Obligation{
		ID:             q.ID,
		DeliberationID: q.DeliberationID,
		Debtors:        debtors,
		TargetType:     model.TargetCriticalQuestion,
		TargetID:       q.ID,
		OpenedByMoveID: st.origin[q.ArgumentID],
		OpenedAt:       q.CreatedAt,
	}
	switch q.Status {
	case model.CQOpen:
		o.Status = model.ObligationOpen
	case model.CQAnswered:
		o.Status = model.ObligationAnswered
	case model.CQConceded:
		o.Status = model.ObligationConceded
	case model.CQDeferred:
		o.Status = model.ObligationDeferred
	}
	if o.Status != model.ObligationOpen {
		closed := q.UpdatedAt
		o.ClosedAt = &closed
	}
	return o
}

// pendingOn returns the challenges on a target that actor owes and that are
// still answerable: open ones, plus deferred ones unless openOnly is set.
func (st *State) pendingOn(targetType model.TargetType, targetID, actor string, openOnly bool) []*model.Obligation {
	var result []*model.Obligation
	for _, id := range st.obligationOrder {
		o := st.obligations[id]
		if o.TargetType != targetType || o.TargetID != targetID {
			continue
		}
		if actor != "" && !o.Owes(actor) {
			continue
		}
		if o.Status == model.ObligationOpen || (!openOnly && o.Status == model.ObligationDeferred) {
			result = append(result, o)
		}
	}
	return result
}

// openChallengeBy returns the open challenge raised by challenger on a target.
func (st *State) openChallengeBy(targetType model.TargetType, targetID, challenger string) *model.Obligation {
	for _, id := range st.obligationOrder {
		o := st.obligations[id]
		if o.IsOpen() && o.Challenger == challenger && o.TargetType == targetType && o.TargetID == targetID {
			return o
		}
	}
	return nil
}
