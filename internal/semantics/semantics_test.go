package semantics

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
)

// build assembles a graph from claim ids and "src REL tgt" triples.
type rel struct {
	src, tgt string
	rel      model.Relation
}

func build(t *testing.T, claims []string, rels ...rel) *Framework {
	t.Helper()
	g := graph.New("d1")
	for _, id := range claims {
		if _, err := g.AddNode(&model.Node{ID: id, Kind: model.NodeClaim, Text: id}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for i, r := range rels {
		e := &model.Edge{ID: fmt.Sprintf("e%03d", i), Source: r.src, Target: r.tgt, Relation: r.rel, Scope: r.rel.Scope()}
		if err := g.AddEdge(e); err != nil {
			t.Fatalf("AddEdge(%s %s %s): %v", r.src, r.rel, r.tgt, err)
		}
	}
	return Build(g.Snapshot())
}

func rebuts(src, tgt string) rel   { return rel{src, tgt, model.RelRebuts} }
func supports(src, tgt string) rel { return rel{src, tgt, model.RelSupports} }

func mustGrounded(t *testing.T, fw *Framework) *Result {
	t.Helper()
	r, err := Grounded(context.Background(), fw)
	if err != nil {
		t.Fatalf("Grounded: %v", err)
	}
	return r
}

func preferred(t *testing.T, fw *Framework) *Result {
	t.Helper()
	r, err := Preferred(context.Background(), fw)
	if err != nil {
		t.Fatalf("Preferred: %v", err)
	}
	return r
}

func expectLabels(t *testing.T, r *Result, want map[string]model.LabelValue) {
	t.Helper()
	for id, l := range want {
		if got := r.Labels[id]; got != l {
			t.Errorf("%s label(%s) = %s, want %s", r.Semantics, id, got, l)
		}
	}
}

func TestGrounded_Table(t *testing.T) {
	const (
		IN    = model.LabelIn
		OUT   = model.LabelOut
		UNDEC = model.LabelUndec
	)
	for _, tc := range []struct {
		name   string
		claims []string
		rels   []rel
		want   map[string]model.LabelValue
	}{
		{"unattacked", []string{"a"}, nil, map[string]model.LabelValue{"a": IN}},
		{"single attack", []string{"a", "b"}, []rel{rebuts("a", "b")}, map[string]model.LabelValue{"a": IN, "b": OUT}},
		{"reinstatement", []string{"a", "b", "c"}, []rel{rebuts("a", "b"), rebuts("b", "c")},
			map[string]model.LabelValue{"a": IN, "b": OUT, "c": IN}},
		// Mutual rebuttal leaves both undecided.
		{"even cycle", []string{"a", "b"}, []rel{rebuts("a", "b"), rebuts("b", "a")},
			map[string]model.LabelValue{"a": UNDEC, "b": UNDEC}},
		{"odd cycle", []string{"a", "b", "c"}, []rel{rebuts("a", "b"), rebuts("b", "c"), rebuts("c", "a")},
			map[string]model.LabelValue{"a": UNDEC, "b": UNDEC, "c": UNDEC}},
		{"cycle broken from outside", []string{"a", "b", "x"}, []rel{rebuts("a", "b"), rebuts("b", "a"), rebuts("x", "b")},
			map[string]model.LabelValue{"a": IN, "b": OUT, "x": IN}},
		// A supports B, C rebuts B: C also attacks A.
		{"mediated attack", []string{"a", "b", "c"}, []rel{supports("a", "b"), rebuts("c", "b")},
			map[string]model.LabelValue{"a": OUT, "b": OUT, "c": IN}},
		// A supports B, B rebuts C: A also attacks C.
		{"supported attack", []string{"a", "b", "c", "x"}, []rel{supports("a", "b"), rebuts("b", "c"), rebuts("x", "b")},
			map[string]model.LabelValue{"x": IN, "b": OUT, "a": OUT, "c": IN}},
		{"transitive support", []string{"a", "b", "c", "x"}, []rel{supports("a", "b"), supports("b", "c"), rebuts("x", "c")},
			map[string]model.LabelValue{"x": IN, "a": OUT, "b": OUT, "c": OUT}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fw := build(t, tc.claims, tc.rels...)
			expectLabels(t, mustGrounded(t, fw), tc.want)
		})
	}
}

func TestGrounded_ArgumentSupportsItsConclusion(t *testing.T) {
	g := graph.New("d1")
	for _, id := range []string{"c", "p", "x"} {
		if _, err := g.AddNode(&model.Node{ID: id, Kind: model.NodeClaim, Text: id}); err != nil {
			t.Fatal(err)
		}
	}
	arg := &model.Node{ID: "a1", Kind: model.NodeArgument, Conclusion: "c", Premises: []model.Premise{{ClaimID: "p", Role: "r"}}}
	if _, err := g.AddNode(arg); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(&model.Edge{ID: "e1", Source: "x", Target: "c", Relation: model.RelRebuts, Scope: model.ScopeConclusion}); err != nil {
		t.Fatal(err)
	}

	fw := Build(g.Snapshot())
	if !fw.Attacks("x", "a1") {
		t.Error("rebutting a conclusion should attack the argument concluding it")
	}
	expectLabels(t, mustGrounded(t, fw), map[string]model.LabelValue{"x": model.LabelIn, "c": model.LabelOut, "a1": model.LabelOut, "p": model.LabelIn})
}

func TestPreferred_Table(t *testing.T) {
	const (
		IN    = model.LabelIn
		OUT   = model.LabelOut
		UNDEC = model.LabelUndec
	)
	for _, tc := range []struct {
		name   string
		claims []string
		rels   []rel
		want   map[string]model.LabelValue
	}{
		{"even cycle picks lowest id", []string{"a", "b"}, []rel{rebuts("a", "b"), rebuts("b", "a")},
			map[string]model.LabelValue{"a": IN, "b": OUT}},
		{"defense through cycle", []string{"a", "b", "c"}, []rel{rebuts("a", "b"), rebuts("b", "a"), rebuts("b", "c")},
			map[string]model.LabelValue{"a": IN, "b": OUT, "c": IN}},
		{"odd cycle stays undecided", []string{"a", "b", "c"}, []rel{rebuts("a", "b"), rebuts("b", "c"), rebuts("c", "a")},
			map[string]model.LabelValue{"a": UNDEC, "b": UNDEC, "c": UNDEC}},
		{"extends grounded", []string{"a", "b", "x", "y"}, []rel{rebuts("a", "b"), rebuts("b", "a"), rebuts("x", "y")},
			map[string]model.LabelValue{"x": IN, "y": OUT, "a": IN, "b": OUT}},
		// a defends itself against both rivals and is tried first.
		{"lowest admissible wins", []string{"a", "b", "c"}, []rel{rebuts("b", "a"), rebuts("a", "b"), rebuts("c", "a"), rebuts("a", "c")},
			map[string]model.LabelValue{"a": IN, "b": OUT, "c": OUT}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fw := build(t, tc.claims, tc.rels...)
			expectLabels(t, preferred(t, fw), tc.want)
		})
	}
}

// checkGroundedFixpoint asserts IN/OUT/UNDEC agree with attacker labels.
func checkGroundedFixpoint(t *testing.T, fw *Framework, r *Result) {
	t.Helper()
	for _, id := range fw.IDs {
		allOut, someIn := true, false
		for _, a := range fw.Attackers(id) {
			switch r.Labels[a] {
			case model.LabelIn:
				someIn = true
				allOut = false
			case model.LabelUndec:
				allOut = false
			}
		}
		switch r.Labels[id] {
		case model.LabelIn:
			if !allOut {
				t.Errorf("%s is IN but not every attacker is OUT", id)
			}
		case model.LabelOut:
			if !someIn {
				t.Errorf("%s is OUT but no attacker is IN", id)
			}
		case model.LabelUndec:
			if allOut || someIn {
				t.Errorf("%s is UNDEC but could be decided (allOut=%v someIn=%v)", id, allOut, someIn)
			}
		}
	}
}

// checkAdmissible asserts the IN set is conflict-free and defends itself.
func checkAdmissible(t *testing.T, fw *Framework, r *Result) {
	t.Helper()
	for _, id := range fw.IDs {
		if r.Labels[id] != model.LabelIn {
			continue
		}
		for _, a := range fw.Attackers(id) {
			if r.Labels[a] == model.LabelIn {
				t.Errorf("IN nodes %s and %s conflict", a, id)
			}
			if r.Labels[a] != model.LabelOut {
				t.Errorf("attacker %s of IN node %s is not OUT", a, id)
			}
		}
	}
}

func randomFramework(t *testing.T, seed int64) *Framework {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g := graph.New("d1")
	const n = 10
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("n%02d", i)
		if _, err := g.AddNode(&model.Node{ID: id, Kind: model.NodeClaim, Text: id}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 18; i++ {
		src, tgt := rng.Intn(n), rng.Intn(n)
		r := model.RelRebuts
		if rng.Intn(4) == 0 {
			r = model.RelSupports
		}
		e := &model.Edge{ID: fmt.Sprintf("e%03d", i), Source: fmt.Sprintf("n%02d", src), Target: fmt.Sprintf("n%02d", tgt), Relation: r, Scope: r.Scope()}
		// Self-edges, duplicates and support cycles are rejected; skip them.
		_ = g.AddEdge(e)
	}
	return Build(g.Snapshot())
}

func TestBuild_SupportClosure(t *testing.T) {
	// a supports b supports c; d rebuts c; e supports d.
	fw := build(t, []string{"a", "b", "c", "d", "e"},
		supports("a", "b"), supports("b", "c"), rebuts("d", "c"), supports("e", "d"))

	want := map[[2]string]bool{}
	for _, src := range []string{"d", "e"} {
		for _, tgt := range []string{"a", "b", "c"} {
			want[[2]string{src, tgt}] = true
		}
	}
	for _, src := range fw.IDs {
		for _, tgt := range fw.IDs {
			if got := fw.Attacks(src, tgt); got != want[[2]string{src, tgt}] {
				t.Errorf("Attacks(%s, %s) = %v, want %v", src, tgt, got, !got)
			}
		}
	}
	if got := fw.Attackers("a"); len(got) != 2 || got[0] != "d" || got[1] != "e" {
		t.Errorf("Attackers(a) = %v, want [d e]", got)
	}
	expectLabels(t, mustGrounded(t, fw), map[string]model.LabelValue{
		"e": model.LabelIn, "d": model.LabelIn,
		"a": model.LabelOut, "b": model.LabelOut, "c": model.LabelOut,
	})
}

func TestGrounded_FixpointProperty(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		fw := randomFramework(t, seed)
		r := mustGrounded(t, fw)
		checkGroundedFixpoint(t, fw, r)
		checkAdmissible(t, fw, r)
	}
}

func TestPreferred_AdmissibleAndExtendsGrounded(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		fw := randomFramework(t, seed)
		g := mustGrounded(t, fw)
		p := preferred(t, fw)
		checkAdmissible(t, fw, p)
		for id, l := range g.Labels {
			if l != model.LabelUndec && p.Labels[id] != l {
				t.Errorf("seed %d: grounded %s=%s but preferred says %s", seed, id, l, p.Labels[id])
			}
		}
	}
}

func TestDeterminism(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		a := preferred(t, randomFramework(t, seed))
		b := preferred(t, randomFramework(t, seed))
		for id, l := range a.Labels {
			if b.Labels[id] != l {
				t.Fatalf("seed %d: label(%s) differs between runs: %s vs %s", seed, id, l, b.Labels[id])
			}
		}
	}
}

func TestBuild_IgnoresNodeOrder(t *testing.T) {
	fw := build(t, []string{"a", "b", "c"}, rebuts("a", "b"), rebuts("b", "c"))
	g := graph.New("d1")
	for _, id := range []string{"c", "b", "a"} {
		if _, err := g.AddNode(&model.Node{ID: id, Kind: model.NodeClaim, Text: id}); err != nil {
			t.Fatal(err)
		}
	}
	snap := g.Snapshot()
	snap.Nodes[0], snap.Nodes[2] = snap.Nodes[2], snap.Nodes[0]
	snap.Edges = []*model.Edge{
		{ID: "e2", Source: "b", Target: "c", Relation: model.RelRebuts, Scope: model.ScopeConclusion},
		{ID: "e1", Source: "a", Target: "b", Relation: model.RelRebuts, Scope: model.ScopeConclusion},
	}
	other := Build(snap)
	for i := range fw.IDs {
		if fw.IDs[i] != other.IDs[i] {
			t.Fatalf("IDs differ: %v vs %v", fw.IDs, other.IDs)
		}
	}
	expectLabels(t, mustGrounded(t, other), mustGrounded(t, fw).Labels)
}

func TestCompute_HybridReserved(t *testing.T) {
	fw := build(t, []string{"a"})
	if _, err := Compute(context.Background(), model.SemanticsHybrid, fw); !errors.Is(err, model.ErrSemanticsReserved) {
		t.Errorf("Compute(hybrid) err = %v, want ErrSemanticsReserved", err)
	}
	r, err := Compute(context.Background(), model.SemanticsGrounded, fw)
	if err != nil || r.Labels["a"] != model.LabelIn {
		t.Errorf("Compute(grounded) = %v, %v", r, err)
	}
}

func TestGrounded_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fw := build(t, []string{"a", "b"}, rebuts("a", "b"))
	if _, err := Grounded(ctx, fw); !errors.Is(err, context.Canceled) {
		t.Errorf("Grounded err = %v, want context.Canceled", err)
	}
}

func TestStats(t *testing.T) {
	fw := build(t, []string{"a", "b", "c"}, supports("a", "b"), rebuts("c", "b"))
	st := fw.Stats()
	if st.Nodes != 3 || st.Claims != 3 || st.Edges != 2 || st.Supports != 1 || st.BaseAttacks != 1 {
		t.Errorf("Stats = %+v", st)
	}
	if st.DerivedAttacks != 2 {
		t.Errorf("DerivedAttacks = %d, want 2", st.DerivedAttacks)
	}
	if st.MaxOutDegree != 2 || st.MaxInDegree != 1 {
		t.Errorf("degrees = in %d out %d, want in 1 out 2", st.MaxInDegree, st.MaxOutDegree)
	}
	if st.HasCycles {
		t.Error("HasCycles = true for acyclic attacks")
	}

	cyc := build(t, []string{"a", "b"}, rebuts("a", "b"), rebuts("b", "a"))
	if !cyc.Stats().HasCycles {
		t.Error("HasCycles = false for mutual rebuttal")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(map[string]model.LabelValue{"a": model.LabelIn, "b": model.LabelOut, "c": model.LabelUndec})
	if s.In != 1 || s.Out != 1 || s.Undec != 1 || s.Complete {
		t.Errorf("Summarize = %+v", s)
	}
	if !Summarize(map[string]model.LabelValue{"a": model.LabelIn}).Complete {
		t.Error("all-decided labeling not complete")
	}
}
