package export

import (
	"strings"

	"github.com/alfredjeanlab/agora/internal/model"
)

// AIF node and edge types.
const (
	aifInformation = "aif:InformationNode"
	aifRA          = "aif:RA"
	aifCA          = "aif:CA"
	aifLocution    = "aif:L"
	aifEdge        = "aif:Edge"

	rolePremise     = "aif:Premise"
	roleConclusion  = "aif:Conclusion"
	roleConflicting = "aif:ConflictingElement"
	roleConflicted  = "aif:ConflictedElement"
	roleIllocutes   = "aif:Illocutes"
	roleReplies     = "aif:Replies"
)

var aifContext = map[string]string{
	"aif":  "http://www.arg.dundee.ac.uk/aif#",
	"role": "aif:role",
	"from": "aif:from",
	"to":   "aif:to",
}

// AIFNode is one node of an AIF graph. Fields that do not apply to a node
// type are omitted.
type AIFNode struct {
	ID          string `json:"@id"`
	Type        string `json:"@type"`
	Text        string `json:"text,omitempty"`
	SchemeKey   string `json:"schemeKey,omitempty"`
	AttackType  string `json:"attackType,omitempty"`
	TargetScope string `json:"targetScope,omitempty"`
	Illocution  string `json:"illocution,omitempty"`
	Speaker     string `json:"speaker,omitempty"`
	Label       string `json:"label,omitempty"`
}

// AIFEdge connects two AIF nodes in a given role.
type AIFEdge struct {
	ID   string `json:"@id"`
	Type string `json:"@type"`
	Role string `json:"role"`
	From string `json:"from"`
	To   string `json:"to"`
}

// AIFDocument is a JSON-LD AIF graph.
type AIFDocument struct {
	Context map[string]string `json:"@context"`
	Nodes   []AIFNode         `json:"nodes"`
	Edges   []AIFEdge         `json:"edges"`
}

func idI(id string) string  { return ":I|" + id }
func idRA(id string) string { return ":RA|" + id }
func idCA(id string) string { return ":CA|" + id }
func idL(id string) string  { return ":L|" + id }

func aifEdgeOf(from, to, role string) AIFEdge {
	esc := func(s string) string { return strings.Replace(s, ":", "", 1) }
	return AIFEdge{
		ID:   ":e_" + esc(from) + "_" + role + "_" + esc(to),
		Type: aifEdge,
		Role: role,
		From: from,
		To:   to,
	}
}

// AIF maps an artifact onto the Argument Interchange Format. Claims become
// I-nodes and arguments RA-nodes linked to their premises and conclusion.
// A support edge is an RA-node of its own, an attack a CA-node, and every
// move a locution that illocutes its target and replies to its parent.
func AIF(a *Artifact) *AIFDocument {
	doc := &AIFDocument{Context: aifContext, Nodes: []AIFNode{}, Edges: []AIFEdge{}}
	label := func(id string) string {
		if a.Labels == nil {
			return ""
		}
		return string(a.Labels.Label(id))
	}

	ref := make(map[string]string, len(a.Nodes))
	for _, n := range a.Nodes {
		if n.IsArgument() {
			ref[n.ID] = idRA(n.ID)
			doc.Nodes = append(doc.Nodes, AIFNode{ID: idRA(n.ID), Type: aifRA, Text: n.Text, SchemeKey: n.SchemeKey, Label: label(n.ID)})
			for _, p := range n.PremiseIDs() {
				doc.Edges = append(doc.Edges, aifEdgeOf(idI(p), idRA(n.ID), rolePremise))
			}
			doc.Edges = append(doc.Edges, aifEdgeOf(idRA(n.ID), idI(n.Conclusion), roleConclusion))
			continue
		}
		ref[n.ID] = idI(n.ID)
		doc.Nodes = append(doc.Nodes, AIFNode{ID: idI(n.ID), Type: aifInformation, Text: n.Text, Label: label(n.ID)})
	}

	for _, e := range a.Edges {
		if e.Relation == model.RelSupports {
			ra := idRA(e.ID)
			doc.Nodes = append(doc.Nodes, AIFNode{ID: ra, Type: aifRA})
			doc.Edges = append(doc.Edges,
				aifEdgeOf(ref[e.Source], ra, rolePremise),
				aifEdgeOf(ra, ref[e.Target], roleConclusion),
			)
			continue
		}
		ca := idCA(e.ID)
		doc.Nodes = append(doc.Nodes, AIFNode{ID: ca, Type: aifCA, AttackType: string(e.Relation), TargetScope: string(e.Scope)})
		doc.Edges = append(doc.Edges,
			aifEdgeOf(ref[e.Source], ca, roleConflicting),
			aifEdgeOf(ca, ref[e.Target], roleConflicted),
		)
	}

	questionArg := make(map[string]string, len(a.Questions))
	for _, q := range a.Questions {
		questionArg[q.ID] = q.ArgumentID
	}
	for _, m := range a.Moves {
		l := idL(m.ID)
		n := AIFNode{ID: l, Type: aifLocution, Illocution: string(m.Type), Speaker: m.ActorID}
		if m.Payload != nil {
			n.Text = m.Payload.Text
		}
		doc.Nodes = append(doc.Nodes, n)

		target := m.TargetID
		if m.TargetType == model.TargetCriticalQuestion {
			target = questionArg[m.TargetID]
		}
		if r, ok := ref[target]; ok {
			doc.Edges = append(doc.Edges, aifEdgeOf(l, r, roleIllocutes))
		}
		if m.ReplyToMoveID != "" {
			doc.Edges = append(doc.Edges, aifEdgeOf(idL(m.ReplyToMoveID), l, roleReplies))
		}
	}
	return doc
}
