package scheme

import (
	"fmt"
	"time"

	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/idgen"
	"github.com/alfredjeanlab/agora/internal/model"
)

// Request binds claims to the slots of a scheme.
type Request struct {
	DeliberationID string
	ActorID        string
	SchemeKey      string
	ConclusionID   string
	Premises       map[string][]string // slot role -> claim ids
}

// Instantiation is a validated argument node plus one open critical question
// per template of its scheme. Nothing has been written to the graph yet.
type Instantiation struct {
	Argument  *model.Node
	Questions []*model.CriticalQuestion
}

// Instantiate checks req against the catalog and graph and builds the
// argument it describes. No edges are produced: premises relate to the
// conclusion through the argument node itself.
func Instantiate(c *Catalog, g *graph.Graph, req Request, now time.Time) (*Instantiation, error) {
	s, err := c.Get(req.SchemeKey)
	if err != nil {
		return nil, err
	}

	for role := range req.Premises {
		if s.Slot(role) == nil {
			return nil, &model.SlotUnfilledError{Role: role, Reason: fmt.Sprintf("scheme %q has no such slot", s.Key)}
		}
	}

	var premises []model.Premise
	for _, slot := range s.Slots {
		bound := req.Premises[slot.Role]
		if len(bound) < slot.Min {
			return nil, &model.SlotUnfilledError{
				Role:   slot.Role,
				Reason: fmt.Sprintf("needs at least %d premise(s), got %d", slot.Min, len(bound)),
			}
		}
		if slot.Max > 0 && len(bound) > slot.Max {
			return nil, &model.SlotUnfilledError{
				Role:   slot.Role,
				Reason: fmt.Sprintf("accepts at most %d premise(s), got %d", slot.Max, len(bound)),
			}
		}
		seen := make(map[string]bool, len(bound))
		for _, id := range bound {
			if seen[id] {
				return nil, &model.SlotUnfilledError{Role: slot.Role, Reason: fmt.Sprintf("binds %q more than once", id)}
			}
			seen[id] = true
			if err := requireClaim(g, id); err != nil {
				return nil, err
			}
			premises = append(premises, model.Premise{ClaimID: id, Role: slot.Role})
		}
	}
	if err := requireClaim(g, req.ConclusionID); err != nil {
		return nil, err
	}

	argID, err := idgen.Argument()
	if err != nil {
		return nil, err
	}
	arg := &model.Node{
		ID:         argID,
		Kind:       model.NodeArgument,
		Conclusion: req.ConclusionID,
		Premises:   premises,
		SchemeKey:  s.Key,
		CreatedBy:  req.ActorID,
		CreatedAt:  now,
	}
	if err := g.CheckNode(arg); err != nil {
		return nil, err
	}

	questions := make([]*model.CriticalQuestion, 0, len(s.CQTemplates))
	for _, tpl := range s.CQTemplates {
		qid, err := idgen.Question()
		if err != nil {
			return nil, err
		}
		questions = append(questions, &model.CriticalQuestion{
			ID:             qid,
			DeliberationID: req.DeliberationID,
			SchemeKey:      s.Key,
			ArgumentID:     argID,
			CQKey:          tpl.Key,
			Text:           tpl.Text,
			AttackType:     tpl.AttackType,
			Scope:          tpl.Scope,
			Status:         model.CQOpen,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return &Instantiation{Argument: arg, Questions: questions}, nil
}

func requireClaim(g *graph.Graph, id string) error {
	n, ok := g.Node(id)
	if !ok || n.Kind != model.NodeClaim {
		return &model.UnknownPremiseError{ClaimID: id}
	}
	return nil
}
