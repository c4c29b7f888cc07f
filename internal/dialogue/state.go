// Package dialogue enforces the move protocol of a deliberation and keeps
// its commitment stores, critical questions, obligations and move log.
package dialogue

import (
	"sort"

	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
)

// State is everything known about one deliberation. A State is mutated only
// through Apply; owners mutate a Clone and publish it when the change commits.
type State struct {
	deliberationID string
	graph          *graph.Graph

	questions      map[string]*model.CriticalQuestion
	questionsByArg map[string][]string // argument id -> question ids in creation order

	commitments map[string]map[string]bool // actor -> node ids
	retractions map[string]int             // node id -> number of retractions

	obligations     map[string]*model.Obligation
	obligationOrder []string

	moves     []*model.Move
	moveIndex map[string]int
	origin    map[string]string // argument id -> move that first asserted it
}

// NewState returns the empty state of a deliberation.
func NewState(deliberationID string) *State {
	return &State{
		deliberationID: deliberationID,
		graph:          graph.New(deliberationID),
		questions:      make(map[string]*model.CriticalQuestion),
		questionsByArg: make(map[string][]string),
		commitments:    make(map[string]map[string]bool),
		retractions:    make(map[string]int),
		obligations:    make(map[string]*model.Obligation),
		moveIndex:      make(map[string]int),
		origin:         make(map[string]string),
	}
}

// Clone returns a state that can be mutated without affecting st. Records
// are replaced rather than modified by Apply, so their pointers are shared.
func (st *State) Clone() *State {
	c := &State{
		deliberationID:  st.deliberationID,
		graph:           st.graph.Clone(),
		questions:       make(map[string]*model.CriticalQuestion, len(st.questions)),
		questionsByArg:  make(map[string][]string, len(st.questionsByArg)),
		commitments:     make(map[string]map[string]bool, len(st.commitments)),
		retractions:     make(map[string]int, len(st.retractions)),
		obligations:     make(map[string]*model.Obligation, len(st.obligations)),
		obligationOrder: append([]string(nil), st.obligationOrder...),
		moves:           append([]*model.Move(nil), st.moves...),
		moveIndex:       make(map[string]int, len(st.moveIndex)),
		origin:          make(map[string]string, len(st.origin)),
	}
	for id, q := range st.questions {
		c.questions[id] = q
	}
	for id, ids := range st.questionsByArg {
		c.questionsByArg[id] = append([]string(nil), ids...)
	}
	for actor, set := range st.commitments {
		cs := make(map[string]bool, len(set))
		for id := range set {
			cs[id] = true
		}
		c.commitments[actor] = cs
	}
	for id, n := range st.retractions {
		c.retractions[id] = n
	}
	for id, o := range st.obligations {
		c.obligations[id] = o
	}
	for id, i := range st.moveIndex {
		c.moveIndex[id] = i
	}
	for id, m := range st.origin {
		c.origin[id] = m
	}
	return c
}

// DeliberationID returns the deliberation the state belongs to.
func (st *State) DeliberationID() string { return st.deliberationID }

// Graph returns the argument graph. Callers must not mutate it.
func (st *State) Graph() *graph.Graph { return st.graph }

// Version returns the graph version.
func (st *State) Version() uint64 { return st.graph.Version() }

// Question returns a critical question by id.
func (st *State) Question(id string) (*model.CriticalQuestion, bool) {
	q, ok := st.questions[id]
	return q, ok
}

// Questions returns the critical questions of an argument in creation order.
func (st *State) Questions(argumentID string) []*model.CriticalQuestion {
	ids := st.questionsByArg[argumentID]
	result := make([]*model.CriticalQuestion, 0, len(ids))
	for _, id := range ids {
		result = append(result, st.questions[id])
	}
	return result
}

// OpenQuestions returns the still-open critical questions of an argument.
func (st *State) OpenQuestions(argumentID string) []*model.CriticalQuestion {
	var result []*model.CriticalQuestion
	for _, q := range st.Questions(argumentID) {
		if q.Status == model.CQOpen {
			result = append(result, q)
		}
	}
	return result
}

// AllQuestions returns every critical question, grouped by argument id.
func (st *State) AllQuestions() []*model.CriticalQuestion {
	args := make([]string, 0, len(st.questionsByArg))
	for id := range st.questionsByArg {
		args = append(args, id)
	}
	sort.Strings(args)
	var result []*model.CriticalQuestion
	for _, id := range args {
		result = append(result, st.Questions(id)...)
	}
	return result
}

// Committed reports whether actor's commitment store holds id.
func (st *State) Committed(actor, id string) bool {
	return st.commitments[actor][id]
}

// CommitmentStore returns the ids in actor's store, sorted.
func (st *State) CommitmentStore(actor string) []string {
	set := st.commitments[actor]
	result := make([]string, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// CommittedActors returns the actors whose store holds id, sorted.
func (st *State) CommittedActors(id string) []string {
	var result []string
	for actor, set := range st.commitments {
		if set[id] {
			result = append(result, actor)
		}
	}
	sort.Strings(result)
	return result
}

// Actors returns every actor that has ever held a commitment, sorted.
func (st *State) Actors() []string {
	result := make([]string, 0, len(st.commitments))
	for actor := range st.commitments {
		result = append(result, actor)
	}
	sort.Strings(result)
	return result
}

// Consensus reports, for every node that was ever committed to, how many
// actors hold it now and how often it was retracted.
func (st *State) Consensus() []*model.Consensus {
	byNode := make(map[string]*model.Consensus)
	entry := func(id string) *model.Consensus {
		c, ok := byNode[id]
		if !ok {
			c = &model.Consensus{NodeID: id, Actors: []string{}}
			byNode[id] = c
		}
		return c
	}
	for _, actor := range st.Actors() {
		for _, id := range st.CommitmentStore(actor) {
			c := entry(id)
			c.Committed++
			c.Actors = append(c.Actors, actor)
		}
	}
	for id, n := range st.retractions {
		entry(id).Retractions = n
	}

	result := make([]*model.Consensus, 0, len(byNode))
	for _, c := range byNode {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NodeID < result[j].NodeID })
	return result
}

// Moves returns the move log in application order.
func (st *State) Moves() []*model.Move {
	return append([]*model.Move(nil), st.moves...)
}

// Move returns a logged move by id.
func (st *State) Move(id string) (*model.Move, bool) {
	i, ok := st.moveIndex[id]
	if !ok {
		return nil, false
	}
	return st.moves[i], true
}
