package scheme

import (
	"fmt"
	"time"

	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/idgen"
	"github.com/alfredjeanlab/agora/internal/model"
)

// Materialize builds the attack edge that answers q with counterArgumentID:
// an edge of the template's attack type and scope from the counter-argument to
// the question's argument. When the same answer was already given, or an
// identical edge already exists, that edge is returned with existing=true and
// the caller must not insert anything.
func Materialize(g *graph.Graph, q *model.CriticalQuestion, counterArgumentID, actorID string, now time.Time) (edge *model.Edge, existing bool, err error) {
	switch q.Status {
	case model.CQConceded:
		return nil, false, fmt.Errorf("critical question %s was conceded: %w", q.ID, model.ErrCQClosed)
	case model.CQAnswered:
		if q.CounterArgumentID != counterArgumentID {
			return nil, false, fmt.Errorf("critical question %s already answered by %s: %w", q.ID, q.CounterArgumentID, model.ErrCQClosed)
		}
	}

	counter, ok := g.Node(counterArgumentID)
	if !ok {
		return nil, false, &model.GraphInvariantError{Reason: fmt.Sprintf("unknown counter-argument %q", counterArgumentID)}
	}
	if !counter.IsArgument() {
		return nil, false, &model.GraphInvariantError{Reason: fmt.Sprintf("counter-argument %q is a %s", counterArgumentID, counter.Kind)}
	}

	key := model.EdgeKey{Source: counterArgumentID, Target: q.ArgumentID, Relation: q.AttackType, Scope: q.Scope}
	if e, ok := g.FindEdge(key); ok {
		return e, true, nil
	}

	id, err := idgen.Edge()
	if err != nil {
		return nil, false, err
	}
	edge = &model.Edge{
		ID:        id,
		Source:    counterArgumentID,
		Target:    q.ArgumentID,
		Relation:  q.AttackType,
		Scope:     q.Scope,
		CreatedBy: actorID,
		CreatedAt: now,
	}
	if err := g.CheckEdge(edge); err != nil {
		return nil, false, err
	}
	return edge, false, nil
}
