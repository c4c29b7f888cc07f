package dialogue

import (
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/agora/internal/idgen"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/scheme"
)

// Request is a move as submitted by an actor.
type Request struct {
	Type          model.MoveType
	ActorID       string
	TargetType    model.TargetType
	TargetID      string
	ReplyToMoveID string
	Payload       *model.MovePayload
}

// Outcome reports what an operation changed.
type Outcome struct {
	Deltas       []Delta
	Move         *model.Move
	Node         *model.Node
	Edge         *model.Edge
	Questions    []*model.CriticalQuestion
	Closed       []*model.Obligation
	GraphChanged bool
}

// Machine validates and applies dialogue operations. Every precondition is
// checked before the first delta is applied. Operations still modify the
// state they are given, so callers pass a Clone and publish it on success.
type Machine struct {
	catalog *scheme.Catalog
	now     func() time.Time
}

// NewMachine returns a machine resolving schemes against catalog.
func NewMachine(catalog *scheme.Catalog) *Machine {
	return &Machine{catalog: catalog, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of the machine reading time from now.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	c := *m
	c.now = now
	return &c
}

// Catalog returns the scheme catalog the machine instantiates from.
func (m *Machine) Catalog() *scheme.Catalog { return m.catalog }

type tx struct {
	st  *State
	out *Outcome
}

func (t *tx) do(d Delta) error {
	if err := t.st.Apply(d); err != nil {
		return err
	}
	t.out.Deltas = append(t.out.Deltas, d)
	if d.TouchesGraph() {
		t.out.GraphChanged = true
	}
	return nil
}

func (t *tx) commit(actor, id string) error {
	if t.st.Committed(actor, id) {
		return nil
	}
	return t.do(Delta{Kind: DeltaCommitted, Actor: actor, NodeID: id})
}

func (t *tx) close(o *model.Obligation, status model.ObligationStatus, mv *model.Move) error {
	c := o.Clone()
	c.Status = status
	c.ClosedByMoveID = mv.ID
	at := mv.CreatedAt
	c.ClosedAt = &at
	if err := t.do(Delta{Kind: DeltaObligationClosed, Obligation: c}); err != nil {
		return err
	}
	t.out.Closed = append(t.out.Closed, c)
	return nil
}

func (t *tx) updateQuestion(q *model.CriticalQuestion, status model.CQStatus, at time.Time, edge *model.Edge) error {
	c := *q
	c.Status = status
	c.UpdatedAt = at
	if edge != nil {
		c.CounterArgumentID = edge.Source
		c.EdgeID = edge.ID
	}
	if err := t.do(Delta{Kind: DeltaQuestionUpdated, Question: &c}); err != nil {
		return err
	}
	t.out.Questions = append(t.out.Questions, &c)
	return nil
}

func illegal(mv model.MoveType, format string, args ...any) error {
	return &model.IllegalMoveError{Move: mv, Reason: fmt.Sprintf(format, args...)}
}

type plan func(*tx, *model.Move) error

// ApplyMove checks a move against the protocol and, when legal, applies its
// effects and appends it to the move log.
func (m *Machine) ApplyMove(st *State, req Request) (*Outcome, error) {
	mv := &model.Move{
		DeliberationID: st.deliberationID,
		Type:           req.Type,
		ActorID:        req.ActorID,
		TargetType:     req.TargetType,
		TargetID:       req.TargetID,
		ReplyToMoveID:  req.ReplyToMoveID,
		Payload:        req.Payload,
		CreatedAt:      m.now(),
	}
	if err := model.ValidateMove(mv); err != nil {
		return nil, err
	}
	if mv.ReplyToMoveID != "" {
		if _, ok := st.Move(mv.ReplyToMoveID); !ok {
			return nil, illegal(mv.Type, "reply to unknown move %q", mv.ReplyToMoveID)
		}
	}
	id, err := idgen.Move()
	if err != nil {
		return nil, err
	}
	mv.ID = id

	var p plan
	switch mv.Type {
	case model.MoveAssert:
		p, err = m.planAssert(st, mv)
	case model.MoveWhy:
		p, err = m.planWhy(st, mv)
	case model.MoveGrounds:
		p, err = m.planGrounds(st, mv)
	case model.MoveConcede:
		p, err = m.planConcede(st, mv)
	case model.MoveRetract:
		p, err = m.planRetract(st, mv)
	case model.MoveDefer:
		p, err = m.planDefer(st, mv)
	default:
		return nil, illegal(mv.Type, "unknown move type")
	}
	if err != nil {
		return nil, err
	}

	t := &tx{st: st, out: &Outcome{}}
	if err := p(t, mv); err != nil {
		return nil, err
	}
	mv.GraphVersion = st.Version()
	if err := t.do(Delta{Kind: DeltaMoveRecorded, Move: mv}); err != nil {
		return nil, err
	}
	t.out.Move = mv
	return t.out, nil
}

// Instantiate asserts a new argument built from a scheme binding on behalf
// of actor: the argument, its open critical questions, the actor's
// commitment and the ASSERT move commit together.
func (m *Machine) Instantiate(st *State, actor string, b *model.SchemeBinding) (*Outcome, error) {
	return m.ApplyMove(st, Request{
		Type:       model.MoveAssert,
		ActorID:    actor,
		TargetType: model.TargetArgument,
		Payload:    &model.MovePayload{Scheme: b},
	})
}

// AddClaim inserts a claim without committing anyone to it. Adding an
// existing claim returns it with no deltas.
func (m *Machine) AddClaim(st *State, actor, text string) (*Outcome, error) {
	id := idgen.ClaimID(text)
	if id == "" {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "text", Message: "is required"}}}
	}
	t := &tx{st: st, out: &Outcome{}}
	if n, ok := st.graph.Node(id); ok {
		if n.Kind != model.NodeClaim {
			return nil, &model.GraphInvariantError{Reason: fmt.Sprintf("node %q is not a claim", id)}
		}
		t.out.Node = n
		return t.out, nil
	}
	n := &model.Node{ID: id, Kind: model.NodeClaim, Text: strings.TrimSpace(text), CreatedBy: actor, CreatedAt: m.now()}
	if err := t.do(Delta{Kind: DeltaNodeAdded, Node: n}); err != nil {
		return nil, err
	}
	t.out.Node = n
	return t.out, nil
}

// MaterializeCQ turns a critical question into the attack its template
// declares, from counterArgumentID onto the question's argument, and marks
// the question answered. Repeating the same answer changes nothing.
func (m *Machine) MaterializeCQ(st *State, actor, questionID, counterArgumentID string) (*Outcome, error) {
	q, ok := st.Question(questionID)
	if !ok {
		return nil, &model.NotFoundError{Kind: "critical question", ID: questionID}
	}
	now := m.now()
	edge, existing, err := scheme.Materialize(st.graph, q, counterArgumentID, actor, now)
	if err != nil {
		return nil, err
	}
	t := &tx{st: st, out: &Outcome{Edge: edge}}
	if !existing {
		if err := t.do(Delta{Kind: DeltaEdgeAdded, Edge: edge}); err != nil {
			return nil, err
		}
	}
	if q.Status != model.CQAnswered || q.EdgeID != edge.ID {
		if err := t.updateQuestion(q, model.CQAnswered, now, edge); err != nil {
			return nil, err
		}
	} else {
		t.out.Questions = append(t.out.Questions, q)
	}
	return t.out, nil
}

func (m *Machine) planAssert(st *State, mv *model.Move) (plan, error) {
	p := mv.Payload
	switch mv.TargetType {
	case model.TargetClaim:
		id := mv.TargetID
		var node *model.Node
		if !p.IsEmpty() {
			if p.Text == "" {
				return nil, illegal(mv.Type, "asserting a claim requires text")
			}
			id = idgen.ClaimID(p.Text)
			if id == "" {
				return nil, illegal(mv.Type, "claim text is blank")
			}
			if mv.TargetID != "" && mv.TargetID != id {
				return nil, illegal(mv.Type, "target %s does not match claim text (%s)", mv.TargetID, id)
			}
			if !st.graph.HasNode(id) {
				node = &model.Node{ID: id, Kind: model.NodeClaim, Text: strings.TrimSpace(p.Text), CreatedBy: mv.ActorID, CreatedAt: mv.CreatedAt}
			}
		}
		if node == nil {
			if n, ok := st.graph.Node(id); !ok || n.Kind != model.NodeClaim {
				return nil, illegal(mv.Type, "unknown claim %q", id)
			}
		}
		if st.Committed(mv.ActorID, id) {
			return nil, illegal(mv.Type, "%s is already committed to %s", mv.ActorID, id)
		}
		mv.TargetID = id
		return func(t *tx, mv *model.Move) error {
			if node != nil {
				if err := t.do(Delta{Kind: DeltaNodeAdded, Node: node}); err != nil {
					return err
				}
			}
			if n, ok := t.st.graph.Node(id); ok {
				t.out.Node = n
			}
			return t.commit(mv.ActorID, id)
		}, nil

	case model.TargetArgument:
		if p != nil && p.Scheme != nil {
			inst, err := scheme.Instantiate(m.catalog, st.graph, scheme.Request{
				DeliberationID: st.deliberationID,
				ActorID:        mv.ActorID,
				SchemeKey:      p.Scheme.SchemeKey,
				ConclusionID:   p.Scheme.ConclusionID,
				Premises:       p.Scheme.Premises,
			}, mv.CreatedAt)
			if err != nil {
				return nil, err
			}
			mv.TargetID = inst.Argument.ID
			return func(t *tx, mv *model.Move) error {
				if err := t.do(Delta{Kind: DeltaNodeAdded, Node: inst.Argument}); err != nil {
					return err
				}
				for _, q := range inst.Questions {
					if err := t.do(Delta{Kind: DeltaQuestionCreated, Question: q}); err != nil {
						return err
					}
				}
				t.out.Node = inst.Argument
				t.out.Questions = inst.Questions
				return t.commit(mv.ActorID, inst.Argument.ID)
			}, nil
		}

		id := mv.TargetID
		if id == "" && p != nil {
			id = p.ArgumentID
		}
		n, ok := st.graph.Node(id)
		if !ok || !n.IsArgument() {
			return nil, illegal(mv.Type, "unknown argument %q", id)
		}
		if st.Committed(mv.ActorID, id) {
			return nil, illegal(mv.Type, "%s is already committed to %s", mv.ActorID, id)
		}
		mv.TargetID = id
		return func(t *tx, mv *model.Move) error {
			t.out.Node = n
			return t.commit(mv.ActorID, id)
		}, nil
	}
	return nil, illegal(mv.Type, "critical questions cannot be asserted")
}

// content resolves the node a move on target addresses: the node itself for
// claims and arguments, the question's argument for critical questions.
func (st *State) content(mv *model.Move) (string, *model.CriticalQuestion, error) {
	switch mv.TargetType {
	case model.TargetClaim, model.TargetArgument:
		want := model.NodeClaim
		if mv.TargetType == model.TargetArgument {
			want = model.NodeArgument
		}
		n, ok := st.graph.Node(mv.TargetID)
		if !ok || n.Kind != want {
			return "", nil, illegal(mv.Type, "unknown %s %q", mv.TargetType, mv.TargetID)
		}
		return n.ID, nil, nil
	case model.TargetCriticalQuestion:
		q, ok := st.Question(mv.TargetID)
		if !ok {
			return "", nil, illegal(mv.Type, "unknown critical question %q", mv.TargetID)
		}
		return q.ArgumentID, q, nil
	}
	return "", nil, illegal(mv.Type, "invalid target type %q", mv.TargetType)
}

func (m *Machine) planWhy(st *State, mv *model.Move) (plan, error) {
	contentID, q, err := st.content(mv)
	if err != nil {
		return nil, err
	}
	if q != nil && q.Status != model.CQOpen {
		return nil, illegal(mv.Type, "critical question %s is %s", q.ID, q.Status)
	}
	var debtors []string
	for _, actor := range st.CommittedActors(contentID) {
		if actor != mv.ActorID {
			debtors = append(debtors, actor)
		}
	}
	if len(debtors) == 0 {
		return nil, illegal(mv.Type, "%s is not in another actor's commitment store", contentID)
	}
	if st.openChallengeBy(mv.TargetType, mv.TargetID, mv.ActorID) != nil {
		return nil, illegal(mv.Type, "%s already has an open challenge on %s", mv.ActorID, mv.TargetID)
	}
	oid, err := idgen.Obligation()
	if err != nil {
		return nil, err
	}
	return func(t *tx, mv *model.Move) error {
		return t.do(Delta{Kind: DeltaObligationOpened, Obligation: &model.Obligation{
			ID:             oid,
			DeliberationID: mv.DeliberationID,
			Challenger:     mv.ActorID,
			Debtors:        debtors,
			TargetType:     mv.TargetType,
			TargetID:       mv.TargetID,
			OpenedByMoveID: mv.ID,
			OpenedAt:       mv.CreatedAt,
			Status:         model.ObligationOpen,
		}})
	}, nil
}

func (m *Machine) planGrounds(st *State, mv *model.Move) (plan, error) {
	if _, q, err := st.content(mv); err != nil {
		return nil, err
	} else if q != nil {
		return m.planGroundsQuestion(st, mv, q)
	}

	pending := st.pendingOn(mv.TargetType, mv.TargetID, mv.ActorID, false)
	if len(pending) == 0 {
		return nil, illegal(mv.Type, "%s owes no open obligation on %s", mv.ActorID, mv.TargetID)
	}
	p := mv.Payload
	if p.IsEmpty() || p.Scheme != nil {
		return nil, illegal(mv.Type, "grounds require an argument id or claim text")
	}

	var (
		groundID string
		newNode  *model.Node
		needEdge = true
	)
	switch {
	case p.ArgumentID != "":
		n, ok := st.graph.Node(p.ArgumentID)
		if !ok || !n.IsArgument() {
			return nil, illegal(mv.Type, "unknown argument %q", p.ArgumentID)
		}
		groundID = n.ID
		needEdge = n.Conclusion != mv.TargetID
	default:
		groundID = idgen.ClaimID(p.Text)
		if groundID == "" {
			return nil, illegal(mv.Type, "claim text is blank")
		}
		if n, ok := st.graph.Node(groundID); !ok {
			newNode = &model.Node{ID: groundID, Kind: model.NodeClaim, Text: strings.TrimSpace(p.Text), CreatedBy: mv.ActorID, CreatedAt: mv.CreatedAt}
		} else if n.Kind != model.NodeClaim {
			return nil, illegal(mv.Type, "node %q is not a claim", groundID)
		}
	}
	if groundID == mv.TargetID {
		return nil, illegal(mv.Type, "%s cannot ground itself", groundID)
	}

	var edge *model.Edge
	if needEdge {
		key := model.EdgeKey{Source: groundID, Target: mv.TargetID, Relation: model.RelSupports}
		if _, ok := st.graph.FindEdge(key); !ok {
			eid, err := idgen.Edge()
			if err != nil {
				return nil, err
			}
			edge = &model.Edge{ID: eid, Source: groundID, Target: mv.TargetID, Relation: model.RelSupports, CreatedBy: mv.ActorID, CreatedAt: mv.CreatedAt}
			// A brand-new claim has no incoming support, so only existing sources can close a cycle.
			if newNode == nil {
				if err := st.graph.CheckEdge(edge); err != nil {
					return nil, err
				}
			}
		}
	}
	if mv.ReplyToMoveID == "" {
		mv.ReplyToMoveID = pending[0].OpenedByMoveID
	}

	return func(t *tx, mv *model.Move) error {
		if newNode != nil {
			if err := t.do(Delta{Kind: DeltaNodeAdded, Node: newNode}); err != nil {
				return err
			}
		}
		if edge != nil {
			if err := t.do(Delta{Kind: DeltaEdgeAdded, Edge: edge}); err != nil {
				return err
			}
			t.out.Edge = edge
		}
		t.out.Node, _ = t.st.graph.Node(groundID)
		if err := t.commit(mv.ActorID, groundID); err != nil {
			return err
		}
		for _, o := range pending {
			if err := t.close(o, model.ObligationAnswered, mv); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (m *Machine) planGroundsQuestion(st *State, mv *model.Move, q *model.CriticalQuestion) (plan, error) {
	p := mv.Payload
	if p == nil || p.ArgumentID == "" {
		return nil, illegal(mv.Type, "answering a critical question requires a counter-argument")
	}
	pending := st.pendingOn(model.TargetCriticalQuestion, q.ID, "", false)
	if q.Status != model.CQOpen && q.Status != model.CQDeferred && len(pending) == 0 {
		return nil, illegal(mv.Type, "critical question %s is %s", q.ID, q.Status)
	}
	edge, existing, err := scheme.Materialize(st.graph, q, p.ArgumentID, mv.ActorID, mv.CreatedAt)
	if err != nil {
		return nil, err
	}
	if mv.ReplyToMoveID == "" {
		if len(pending) > 0 {
			mv.ReplyToMoveID = pending[0].OpenedByMoveID
		} else {
			mv.ReplyToMoveID = st.origin[q.ArgumentID]
		}
	}

	return func(t *tx, mv *model.Move) error {
		if !existing {
			if err := t.do(Delta{Kind: DeltaEdgeAdded, Edge: edge}); err != nil {
				return err
			}
		}
		t.out.Edge = edge
		if q.Status != model.CQAnswered || q.EdgeID != edge.ID {
			if err := t.updateQuestion(q, model.CQAnswered, mv.CreatedAt, edge); err != nil {
				return err
			}
		}
		if err := t.commit(mv.ActorID, p.ArgumentID); err != nil {
			return err
		}
		for _, o := range pending {
			if err := t.close(o, model.ObligationAnswered, mv); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// answersQuestion reports whether actor may concede or defer q: its author,
// or a debtor of a challenge raised on it.
func (st *State) answersQuestion(q *model.CriticalQuestion, actor string) bool {
	if arg, ok := st.graph.Node(q.ArgumentID); ok && arg.CreatedBy == actor {
		return true
	}
	return len(st.pendingOn(model.TargetCriticalQuestion, q.ID, actor, false)) > 0
}

func (m *Machine) planConcede(st *State, mv *model.Move) (plan, error) {
	contentID, q, err := st.content(mv)
	if err != nil {
		return nil, err
	}

	if q != nil {
		if !st.answersQuestion(q, mv.ActorID) {
			return nil, illegal(mv.Type, "%s does not answer critical question %s", mv.ActorID, q.ID)
		}
		if q.Status != model.CQOpen && q.Status != model.CQDeferred {
			return nil, illegal(mv.Type, "critical question %s is %s", q.ID, q.Status)
		}
		pending := st.pendingOn(model.TargetCriticalQuestion, q.ID, "", false)
		if mv.ReplyToMoveID == "" {
			mv.ReplyToMoveID = st.origin[q.ArgumentID]
			if len(pending) > 0 {
				mv.ReplyToMoveID = pending[0].OpenedByMoveID
			}
		}
		return func(t *tx, mv *model.Move) error {
			if err := t.updateQuestion(q, model.CQConceded, mv.CreatedAt, nil); err != nil {
				return err
			}
			for _, o := range pending {
				if err := t.close(o, model.ObligationConceded, mv); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}

	pending := st.pendingOn(mv.TargetType, mv.TargetID, mv.ActorID, false)
	if len(pending) == 0 {
		return nil, illegal(mv.Type, "%s owes no open obligation on %s", mv.ActorID, mv.TargetID)
	}
	if mv.ReplyToMoveID == "" {
		mv.ReplyToMoveID = pending[0].OpenedByMoveID
	}
	return func(t *tx, mv *model.Move) error {
		if err := t.commit(mv.ActorID, contentID); err != nil {
			return err
		}
		for _, o := range pending {
			if err := t.close(o, model.ObligationConceded, mv); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (m *Machine) planDefer(st *State, mv *model.Move) (plan, error) {
	_, q, err := st.content(mv)
	if err != nil {
		return nil, err
	}

	if q != nil {
		if !st.answersQuestion(q, mv.ActorID) {
			return nil, illegal(mv.Type, "%s does not answer critical question %s", mv.ActorID, q.ID)
		}
		if q.Status != model.CQOpen {
			return nil, illegal(mv.Type, "critical question %s is %s", q.ID, q.Status)
		}
		pending := st.pendingOn(model.TargetCriticalQuestion, q.ID, "", true)
		if mv.ReplyToMoveID == "" {
			mv.ReplyToMoveID = st.origin[q.ArgumentID]
			if len(pending) > 0 {
				mv.ReplyToMoveID = pending[0].OpenedByMoveID
			}
		}
		return func(t *tx, mv *model.Move) error {
			if err := t.updateQuestion(q, model.CQDeferred, mv.CreatedAt, nil); err != nil {
				return err
			}
			for _, o := range pending {
				if err := t.close(o, model.ObligationDeferred, mv); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}

	pending := st.pendingOn(mv.TargetType, mv.TargetID, mv.ActorID, true)
	if len(pending) == 0 {
		return nil, illegal(mv.Type, "%s owes no open obligation on %s", mv.ActorID, mv.TargetID)
	}
	if mv.ReplyToMoveID == "" {
		mv.ReplyToMoveID = pending[0].OpenedByMoveID
	}
	return func(t *tx, mv *model.Move) error {
		for _, o := range pending {
			if err := t.close(o, model.ObligationDeferred, mv); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (m *Machine) planRetract(st *State, mv *model.Move) (plan, error) {
	if mv.TargetType == model.TargetCriticalQuestion {
		return nil, illegal(mv.Type, "critical questions cannot be retracted")
	}
	if !st.Committed(mv.ActorID, mv.TargetID) {
		return nil, illegal(mv.Type, "%s is not in %s's commitment store", mv.TargetID, mv.ActorID)
	}
	return func(t *tx, mv *model.Move) error {
		if err := t.do(Delta{Kind: DeltaWithdrawn, Actor: mv.ActorID, NodeID: mv.TargetID}); err != nil {
			return err
		}
		for _, src := range t.st.orphanedBy(mv.TargetID) {
			edges := t.st.graph.EdgesFrom(src)
			if len(edges) == 0 {
				continue
			}
			ids := make([]string, len(edges))
			for i, e := range edges {
				ids[i] = e.ID
			}
			if err := t.do(Delta{Kind: DeltaEdgesRemoved, Source: src, EdgeIDs: ids}); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// orphanedBy returns the nodes whose outgoing edges lose their justification
// once id is withdrawn: id itself when nobody holds it any more, and every
// argument none of whose premises anybody still holds.
func (st *State) orphanedBy(id string) []string {
	if len(st.CommittedActors(id)) > 0 {
		return nil
	}
	result := []string{id}
	for _, argID := range st.graph.ArgumentsWithPremise(id) {
		arg, _ := st.graph.Node(argID)
		held := false
		for _, p := range arg.PremiseIDs() {
			if len(st.CommittedActors(p)) > 0 {
				held = true
				break
			}
		}
		if !held {
			result = append(result, argID)
		}
	}
	return result
}
