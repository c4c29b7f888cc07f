package engine

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/agora/internal/dialogue"
	"github.com/alfredjeanlab/agora/internal/export"
	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/recompute"
	"github.com/alfredjeanlab/agora/internal/semantics"
)

// Stats summarizes a deliberation.
type Stats struct {
	DeliberationID    string            `json:"deliberation_id"`
	GraphVersion      uint64            `json:"graph_version"`
	LabelVersion      uint64            `json:"label_version"`
	Framework         semantics.Stats   `json:"framework"`
	Labels            semantics.Summary `json:"labels"`
	Moves             int               `json:"moves"`
	Actors            int               `json:"actors"`
	OpenObligations   int               `json:"open_obligations"`
	OpenQuestions     int               `json:"open_critical_questions"`
	Closed            bool              `json:"closed"`
	RecomputeFailures int               `json:"recompute_failures"`
}

// GetLabels returns the labeling of a deliberation under the given
// semantics. Grounded labels come from background recomputation and may lag
// the graph; their Version names the graph version they describe. Preferred
// labels are computed for the current version on demand and cached.
func (e *Engine) GetLabels(ctx context.Context, deliberationID string, sem model.Semantics) (*model.Labeling, error) {
	if sem == "" {
		sem = model.SemanticsGrounded
	}
	if !sem.IsValid() {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "semantics", Message: fmt.Sprintf("unknown semantics %q", sem)}}}
	}
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}

	switch sem {
	case model.SemanticsGrounded:
		if lab, ok := e.coord.Latest(deliberationID); ok {
			return lab, nil
		}
		return &model.Labeling{
			DeliberationID: deliberationID,
			Semantics:      model.SemanticsGrounded,
			Labels:         map[string]model.LabelValue{},
		}, nil

	case model.SemanticsPreferred:
		snap := st.Graph().Snapshot()
		key := fmt.Sprintf("%s@%d", deliberationID, snap.Version)
		if v, found := e.preferred.Get(key); found {
			return v.(*model.Labeling), nil
		}
		res, err := semantics.Preferred(ctx, semantics.Build(snap))
		if err != nil {
			return nil, fmt.Errorf("preferred labeling of %s: %w", deliberationID, err)
		}
		lab := res.Labeling(deliberationID)
		lab.ComputedAt = e.now()
		e.preferred.SetDefault(key, lab)
		return lab, nil

	default:
		return nil, fmt.Errorf("%s semantics: %w", sem, model.ErrSemanticsReserved)
	}
}

// WaitForLabels blocks until a grounded labeling of at least version exists.
func (e *Engine) WaitForLabels(ctx context.Context, deliberationID string, version uint64) (*model.Labeling, error) {
	if _, err := e.state(deliberationID); err != nil {
		return nil, err
	}
	return e.coord.WaitFor(ctx, deliberationID, version)
}

// GetOpenObligations returns the obligations still awaiting an answer.
func (e *Engine) GetOpenObligations(ctx context.Context, deliberationID string) ([]*model.Obligation, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	return st.OpenObligations(), nil
}

// GetObligations returns every obligation, open or closed.
func (e *Engine) GetObligations(ctx context.Context, deliberationID string) ([]*model.Obligation, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	return st.Obligations(), nil
}

// GetCommitmentStore returns the claims and arguments an actor is committed to.
func (e *Engine) GetCommitmentStore(ctx context.Context, deliberationID, actorID string) ([]string, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	return st.CommitmentStore(actorID), nil
}

// ListOpenCriticalQuestions returns the open questions of an argument.
func (e *Engine) ListOpenCriticalQuestions(ctx context.Context, deliberationID, argumentID string) ([]*model.CriticalQuestion, error) {
	st, err := e.argumentState(deliberationID, argumentID)
	if err != nil {
		return nil, err
	}
	return st.OpenQuestions(argumentID), nil
}

// ListCriticalQuestions returns the questions of an argument in any status,
// or of every argument when argumentID is empty.
func (e *Engine) ListCriticalQuestions(ctx context.Context, deliberationID, argumentID string) ([]*model.CriticalQuestion, error) {
	if argumentID == "" {
		st, err := e.state(deliberationID)
		if err != nil {
			return nil, err
		}
		return st.AllQuestions(), nil
	}
	st, err := e.argumentState(deliberationID, argumentID)
	if err != nil {
		return nil, err
	}
	return st.Questions(argumentID), nil
}

func (e *Engine) argumentState(deliberationID, argumentID string) (*dialogue.State, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	if n, ok := st.Graph().Node(argumentID); !ok || !n.IsArgument() {
		return nil, &model.NotFoundError{Kind: "argument", ID: argumentID}
	}
	return st, nil
}

// GetMoves returns the move log in order.
func (e *Engine) GetMoves(ctx context.Context, deliberationID string) ([]*model.Move, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	return st.Moves(), nil
}

// IsClosed reports whether no obligation of the deliberation is open.
func (e *Engine) IsClosed(ctx context.Context, deliberationID string) (bool, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return false, err
	}
	return st.Closed(), nil
}

// GetConsensus reports, per node, which actors are committed to it.
func (e *Engine) GetConsensus(ctx context.Context, deliberationID string) ([]*model.Consensus, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	return st.Consensus(), nil
}

// Snapshot returns the current graph of a deliberation.
func (e *Engine) Snapshot(ctx context.Context, deliberationID string) (*graph.Snapshot, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	return st.Graph().Snapshot(), nil
}

// GetStats describes the framework, the latest grounded labels and the
// dialogue of a deliberation.
func (e *Engine) GetStats(ctx context.Context, deliberationID string) (*Stats, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	fw := semantics.Build(st.Graph().Snapshot())
	s := &Stats{
		DeliberationID:    deliberationID,
		GraphVersion:      st.Version(),
		Framework:         fw.Stats(),
		Moves:             len(st.Moves()),
		Actors:            len(st.Actors()),
		OpenObligations:   len(st.OpenObligations()),
		Closed:            st.Closed(),
		RecomputeFailures: e.coord.Failures(deliberationID),
	}
	for _, q := range st.AllQuestions() {
		if q.Status == model.CQOpen {
			s.OpenQuestions++
		}
	}
	if lab, ok := e.coord.Latest(deliberationID); ok {
		s.LabelVersion = lab.Version
		s.Labels = semantics.Summarize(lab.Labels)
	}
	return s, nil
}

// Export captures a deliberation with the grounded labeling of exactly the
// graph version it serializes. If recomputation has not reached that
// version yet, the labels are computed here from the same snapshot.
func (e *Engine) Export(ctx context.Context, deliberationID string) (*export.Artifact, error) {
	st, err := e.state(deliberationID)
	if err != nil {
		return nil, err
	}
	lab, ok := e.coord.At(deliberationID, st.Version())
	if !ok {
		lab, err = recompute.Grounded(ctx, st.Graph().Snapshot())
		if err != nil {
			return nil, fmt.Errorf("label export of %s: %w", deliberationID, err)
		}
	}
	return export.Build(st, lab, e.now()), nil
}

// ListSchemes returns the catalog, sorted by key.
func (e *Engine) ListSchemes(ctx context.Context) []*model.Scheme {
	return e.catalog.List()
}

// GetScheme returns one scheme of the catalog.
func (e *Engine) GetScheme(ctx context.Context, key string) (*model.Scheme, error) {
	return e.catalog.Get(key)
}
