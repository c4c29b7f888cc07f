package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/agora/internal/events"
	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/recompute"
	"github.com/alfredjeanlab/agora/internal/store"
	"github.com/alfredjeanlab/agora/internal/store/memstore"
)

const delib = "d1"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturePublisher records published topics.
type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T, s store.Store) (*Engine, *capturePublisher) {
	t.Helper()
	if s == nil {
		s = memstore.New()
	}
	pub := &capturePublisher{}
	e := New(s, Options{Publisher: pub, Logger: quietLogger(), RecomputeRetry: 10 * time.Millisecond})
	t.Cleanup(e.Close)
	return e, pub
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func addClaim(t *testing.T, e *Engine, text string) string {
	t.Helper()
	res, err := e.AddClaim(ctxT(t), delib, "system", text)
	if err != nil {
		t.Fatalf("AddClaim(%q): %v", text, err)
	}
	return res.Claim.ID
}

func instantiate(t *testing.T, e *Engine, actor, schemeKey, conclusion string, premises map[string][]string) *InstantiateResult {
	t.Helper()
	res, err := e.InstantiateArgument(ctxT(t), InstantiateRequest{
		DeliberationID: delib,
		ActorID:        actor,
		SchemeKey:      schemeKey,
		ConclusionID:   conclusion,
		Premises:       premises,
	})
	if err != nil {
		t.Fatalf("InstantiateArgument(%s): %v", schemeKey, err)
	}
	return res
}

func move(t *testing.T, e *Engine, req MoveRequest) *MoveResult {
	t.Helper()
	req.DeliberationID = delib
	res, err := e.ApplyMove(ctxT(t), req)
	if err != nil {
		t.Fatalf("%s by %s: %v", req.Type, req.ActorID, err)
	}
	return res
}

// signArgument instantiates the sign scheme from a fresh premise.
func signArgument(t *testing.T, e *Engine, actor, premise, conclusion string) *InstantiateResult {
	t.Helper()
	return instantiate(t, e, actor, "sign", addClaim(t, e, conclusion), map[string][]string{"sign": {addClaim(t, e, premise)}})
}

func question(t *testing.T, e *Engine, argumentID, key string) *model.CriticalQuestion {
	t.Helper()
	qs, err := e.ListCriticalQuestions(ctxT(t), delib, argumentID)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range qs {
		if q.CQKey == key {
			return q
		}
	}
	t.Fatalf("argument %s has no %q question", argumentID, key)
	return nil
}

func labelsAt(t *testing.T, e *Engine, version uint64) *model.Labeling {
	t.Helper()
	lab, err := e.WaitForLabels(ctxT(t), delib, version)
	if err != nil {
		t.Fatalf("WaitForLabels(%d): %v", version, err)
	}
	return lab
}

func TestScenarioA_ExpertOpinion(t *testing.T) {
	e, pub := newTestEngine(t, nil)
	c1 := addClaim(t, e, "The vaccine is safe")
	c2 := addClaim(t, e, "Dr. Lee is a credentialed virologist")

	res := instantiate(t, e, "alice", "expert_opinion", c1, map[string][]string{"source": {c2}})
	if res.Argument.Conclusion != c1 {
		t.Errorf("conclusion = %s, want %s", res.Argument.Conclusion, c1)
	}
	open, err := e.ListOpenCriticalQuestions(ctxT(t), delib, res.Argument.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 3 {
		t.Fatalf("open questions = %d, want 3", len(open))
	}
	if pub.count(events.TopicArgumentInstantiated) != 1 || pub.count(events.TopicMoveRecorded) != 1 {
		t.Errorf("published topics = %v", pub.topics)
	}
}

func TestScenarioB_ChallengeAndGrounds(t *testing.T) {
	e, pub := newTestEngine(t, nil)
	ctx := ctxT(t)

	c1 := move(t, e, MoveRequest{ActorID: "yuri", Type: model.MoveAssert, TargetType: model.TargetClaim, Payload: &model.MovePayload{Text: "Taxes should rise"}}).Move.TargetID
	move(t, e, MoveRequest{ActorID: "xena", Type: model.MoveWhy, TargetType: model.TargetClaim, TargetID: c1})

	open, _ := e.GetOpenObligations(ctx, delib)
	if len(open) != 1 || open[0].Challenger != "xena" || open[0].TargetID != c1 {
		t.Fatalf("open obligations = %+v", open)
	}
	if closed, _ := e.IsClosed(ctx, delib); closed {
		t.Fatal("IsClosed = true with an open challenge")
	}

	a1 := instantiate(t, e, "yuri", "sign", c1, map[string][]string{"sign": {addClaim(t, e, "Deficits are growing")}})
	res := move(t, e, MoveRequest{ActorID: "yuri", Type: model.MoveGrounds, TargetType: model.TargetClaim, TargetID: c1, Payload: &model.MovePayload{ArgumentID: a1.Argument.ID}})
	if len(res.Closed) != 1 {
		t.Fatalf("closed obligations = %d, want 1", len(res.Closed))
	}

	open, _ = e.GetOpenObligations(ctx, delib)
	for _, o := range open {
		if o.TargetID == c1 {
			t.Errorf("obligation on %s still open: %+v", c1, o)
		}
	}
	if pub.count(events.TopicObligationsClosed) != 1 {
		t.Errorf("obligation.closed published %d times", pub.count(events.TopicObligationsClosed))
	}
}

func TestScenarioC_MutualRebuttal(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	a := signArgument(t, e, "alice", "The streets are wet", "It rained")
	b := signArgument(t, e, "bob", "The sky is clear", "It did not rain")

	if _, err := e.MaterializeCQ(ctxT(t), delib, "bob", question(t, e, a.Argument.ID, "other_indicators").ID, b.Argument.ID); err != nil {
		t.Fatal(err)
	}
	res, err := e.MaterializeCQ(ctxT(t), delib, "alice", question(t, e, b.Argument.ID, "other_indicators").ID, a.Argument.ID)
	if err != nil {
		t.Fatal(err)
	}

	lab := labelsAt(t, e, res.GraphVersion)
	for _, id := range []string{a.Argument.ID, b.Argument.ID} {
		if got := lab.Label(id); got != model.LabelUndec {
			t.Errorf("grounded label(%s) = %s, want UNDEC", id, got)
		}
	}

	pref, err := e.GetLabels(ctxT(t), delib, model.SemanticsPreferred)
	if err != nil {
		t.Fatal(err)
	}
	la, lb := pref.Label(a.Argument.ID), pref.Label(b.Argument.ID)
	if !(la == model.LabelIn && lb == model.LabelOut) && !(la == model.LabelOut && lb == model.LabelIn) {
		t.Errorf("preferred labels = %s/%s, want one IN and one OUT", la, lb)
	}
	again, _ := e.GetLabels(ctxT(t), delib, model.SemanticsPreferred)
	if again != pref {
		t.Error("preferred labeling for an unchanged version was recomputed")
	}
}

func TestScenarioD_SupportedAttack(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	b := signArgument(t, e, "alice", "Sales doubled", "The campaign worked")
	move(t, e, MoveRequest{ActorID: "bob", Type: model.MoveWhy, TargetType: model.TargetArgument, TargetID: b.Argument.ID})
	a := signArgument(t, e, "alice", "Surveys mention the ads", "Customers saw the ads")
	grounds := move(t, e, MoveRequest{ActorID: "alice", Type: model.MoveGrounds, TargetType: model.TargetArgument, TargetID: b.Argument.ID, Payload: &model.MovePayload{ArgumentID: a.Argument.ID}})
	if grounds.Edge == nil || grounds.Edge.Relation != model.RelSupports {
		t.Fatalf("grounds edge = %+v, want SUPPORTS", grounds.Edge)
	}

	c := signArgument(t, e, "carol", "Prices were cut", "The price cut worked")
	res, err := e.MaterializeCQ(ctxT(t), delib, "carol", question(t, e, b.Argument.ID, "other_indicators").ID, c.Argument.ID)
	if err != nil {
		t.Fatal(err)
	}

	lab := labelsAt(t, e, res.GraphVersion)
	for id, want := range map[string]model.LabelValue{
		c.Argument.ID: model.LabelIn,
		b.Argument.ID: model.LabelOut,
		a.Argument.ID: model.LabelOut,
	} {
		if got := lab.Label(id); got != want {
			t.Errorf("label(%s) = %s, want %s", id, got, want)
		}
	}
}

func TestScenarioE_RetractCascade(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	target := signArgument(t, e, "bob", "Dr. Lee said so", "Dr. Lee is right")

	premise := move(t, e, MoveRequest{ActorID: "alice", Type: model.MoveAssert, TargetType: model.TargetClaim, Payload: &model.MovePayload{Text: "Dr. Lee misread the data"}}).Move.TargetID
	a1 := instantiate(t, e, "alice", "sign", addClaim(t, e, "Dr. Lee is wrong"), map[string][]string{"sign": {premise}})
	attack := move(t, e, MoveRequest{
		ActorID:    "alice",
		Type:       model.MoveGrounds,
		TargetType: model.TargetCriticalQuestion,
		TargetID:   question(t, e, target.Argument.ID, "other_indicators").ID,
		Payload:    &model.MovePayload{ArgumentID: a1.Argument.ID},
	})
	if got := labelsAt(t, e, attack.GraphVersion).Label(target.Argument.ID); got != model.LabelOut {
		t.Fatalf("before retraction label = %s, want OUT", got)
	}

	res := move(t, e, MoveRequest{ActorID: "alice", Type: model.MoveRetract, TargetType: model.TargetClaim, TargetID: premise})
	if !res.GraphChanged || res.GraphVersion <= attack.GraphVersion {
		t.Fatalf("retraction did not advance the graph: %+v", res)
	}
	snap, _ := e.Snapshot(ctxT(t), delib)
	for _, edge := range snap.Edges {
		if edge.Source == a1.Argument.ID {
			t.Errorf("edge %s from %s survived the cascade", edge.ID, a1.Argument.ID)
		}
	}
	lab := labelsAt(t, e, res.GraphVersion)
	if lab.Version < res.GraphVersion {
		t.Fatalf("labeling version %d lags %d", lab.Version, res.GraphVersion)
	}
	if got := lab.Label(target.Argument.ID); got != model.LabelIn {
		t.Errorf("after retraction label = %s, want IN", got)
	}
}

func TestIllegalMove_NoChange(t *testing.T) {
	e, pub := newTestEngine(t, nil)
	c := move(t, e, MoveRequest{ActorID: "alice", Type: model.MoveAssert, TargetType: model.TargetClaim, Payload: &model.MovePayload{Text: "p"}}).Move.TargetID
	before, _ := e.Snapshot(ctxT(t), delib)
	moves := pub.count(events.TopicMoveRecorded)

	_, err := e.ApplyMove(ctxT(t), MoveRequest{DeliberationID: delib, ActorID: "alice", Type: model.MoveWhy, TargetType: model.TargetClaim, TargetID: c})
	if !errors.Is(err, model.ErrIllegalMove) {
		t.Fatalf("WHY on own claim: err = %v, want ErrIllegalMove", err)
	}
	after, _ := e.Snapshot(ctxT(t), delib)
	if after.Version != before.Version {
		t.Errorf("version moved from %d to %d", before.Version, after.Version)
	}
	if got, _ := e.GetMoves(ctxT(t), delib); len(got) != 1 {
		t.Errorf("move log has %d moves, want 1", len(got))
	}
	if pub.count(events.TopicMoveRecorded) != moves {
		t.Error("illegal move was published")
	}
}

// failingStore refuses every transaction.
type failingStore struct {
	store.Store
}

func (f failingStore) RunInTransaction(context.Context, func(store.Store) error) error {
	return errors.New("disk full")
}

func TestPersistFailure_NoChange(t *testing.T) {
	fs := failingStore{Store: memstore.New()}
	e, pub := newTestEngine(t, fs)
	_, err := e.AddClaim(ctxT(t), delib, "alice", "p")
	if err == nil {
		t.Fatal("expected persist error")
	}
	if snap, err := e.Snapshot(ctxT(t), delib); err == nil && len(snap.Nodes) != 0 {
		t.Errorf("failed mutation left %d nodes", len(snap.Nodes))
	}
	if ids, _ := e.ListDeliberations(ctxT(t)); len(ids) != 0 {
		t.Errorf("failed mutation registered deliberations %v", ids)
	}
	if len(pub.topics) != 0 {
		t.Errorf("failed mutation published %v", pub.topics)
	}
}

func TestRestore_ReplaysJournal(t *testing.T) {
	s := memstore.New()
	e1, _ := newTestEngine(t, s)
	c := addClaim(t, e1, "The vaccine is safe")
	arg := instantiate(t, e1, "alice", "expert_opinion", c, map[string][]string{
		"source":    {addClaim(t, e1, "Dr. Lee")},
		"assertion": {addClaim(t, e1, "Dr. Lee says so")},
	})
	move(t, e1, MoveRequest{ActorID: "bob", Type: model.MoveWhy, TargetType: model.TargetArgument, TargetID: arg.Argument.ID})
	want, _ := e1.Snapshot(ctxT(t), delib)
	wantOpen, _ := e1.GetOpenObligations(ctxT(t), delib)

	e2, pub := newTestEngine(t, s)
	n, err := e2.Restore(ctxT(t))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("restored %d deliberations, want 1", n)
	}
	got, _ := e2.Snapshot(ctxT(t), delib)
	if got.Version != want.Version || len(got.Nodes) != len(want.Nodes) || len(got.Edges) != len(want.Edges) {
		t.Fatalf("restored snapshot v%d %d/%d, want v%d %d/%d", got.Version, len(got.Nodes), len(got.Edges), want.Version, len(want.Nodes), len(want.Edges))
	}
	gotOpen, _ := e2.GetOpenObligations(ctxT(t), delib)
	if len(gotOpen) != len(wantOpen) {
		t.Errorf("restored %d open obligations, want %d", len(gotOpen), len(wantOpen))
	}
	if pub.count(events.TopicDeliberationRestored) != 1 {
		t.Error("restore not announced")
	}

	// The journal continues where it left off.
	if _, err := e2.AddClaim(ctxT(t), delib, "system", "A new claim"); err != nil {
		t.Fatalf("AddClaim after restore: %v", err)
	}
	labelsAt(t, e2, got.Version+1)
}

func TestGetLabels(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := ctxT(t)

	if _, err := e.GetLabels(ctx, "missing", model.SemanticsGrounded); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown deliberation: err = %v, want ErrNotFound", err)
	}
	addClaim(t, e, "p")
	for _, tc := range []struct {
		sem     model.Semantics
		wantErr error
	}{
		{model.SemanticsGrounded, nil},
		{"", nil},
		{model.SemanticsPreferred, nil},
		{model.SemanticsHybrid, model.ErrSemanticsReserved},
	} {
		_, err := e.GetLabels(ctx, delib, tc.sem)
		if tc.wantErr == nil && err != nil {
			t.Errorf("GetLabels(%q): %v", tc.sem, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("GetLabels(%q): err = %v, want %v", tc.sem, err, tc.wantErr)
		}
	}
	var verr *model.ValidationError
	if _, err := e.GetLabels(ctx, delib, "credulous"); !errors.As(err, &verr) {
		t.Errorf("unknown semantics: err = %v, want ValidationError", err)
	}
}

func TestAddClaim_Idempotent(t *testing.T) {
	e, pub := newTestEngine(t, nil)
	first, err := e.AddClaim(ctxT(t), delib, "alice", "Water is wet")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.AddClaim(ctxT(t), delib, "bob", "  water IS   wet ")
	if err != nil {
		t.Fatal(err)
	}
	if !first.Created || second.Created || first.Claim.ID != second.Claim.ID {
		t.Errorf("first=%+v second=%+v", first, second)
	}
	if second.GraphVersion != first.GraphVersion {
		t.Errorf("no-op bumped the version: %d -> %d", first.GraphVersion, second.GraphVersion)
	}
	if pub.count(events.TopicClaimAdded) != 1 {
		t.Errorf("claim.added published %d times", pub.count(events.TopicClaimAdded))
	}
}

func TestQueries(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := ctxT(t)
	a := signArgument(t, e, "alice", "Smoke rises", "There is fire")
	move(t, e, MoveRequest{ActorID: "bob", Type: model.MoveAssert, TargetType: model.TargetArgument, TargetID: a.Argument.ID})

	if cs, _ := e.GetCommitmentStore(ctx, delib, "bob"); len(cs) != 1 || cs[0] != a.Argument.ID {
		t.Errorf("bob's commitments = %v", cs)
	}
	consensus, _ := e.GetConsensus(ctx, delib)
	var found bool
	for _, c := range consensus {
		if c.NodeID == a.Argument.ID {
			found = true
			if len(c.Actors) != 2 {
				t.Errorf("consensus actors = %v", c.Actors)
			}
		}
	}
	if !found {
		t.Error("argument missing from consensus")
	}

	if _, err := e.ListOpenCriticalQuestions(ctx, delib, "a-nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown argument: err = %v", err)
	}
	all, _ := e.ListCriticalQuestions(ctx, delib, "")
	if len(all) != 3 {
		t.Errorf("all questions = %d, want 3", len(all))
	}

	labelsAt(t, e, a.GraphVersion)
	st, err := e.GetStats(ctx, delib)
	if err != nil {
		t.Fatal(err)
	}
	if st.Framework.Arguments != 1 || st.Framework.Claims != 2 || st.Moves != 2 || st.Actors != 2 || st.OpenQuestions != 3 {
		t.Errorf("stats = %+v", st)
	}
	if st.LabelVersion == 0 || st.Labels.In+st.Labels.Out+st.Labels.Undec != 3 {
		t.Errorf("label summary = %+v at v%d", st.Labels, st.LabelVersion)
	}

	art, err := e.Export(ctx, delib)
	if err != nil {
		t.Fatal(err)
	}
	if art.DeliberationID != delib || len(art.Nodes) != 3 || art.Labels == nil {
		t.Errorf("artifact = %+v", art)
	}

	if ids, _ := e.ListDeliberations(ctx); len(ids) != 1 || ids[0] != delib {
		t.Errorf("deliberations = %v", ids)
	}
	if _, err := e.GetScheme(ctx, "nope"); !errors.Is(err, model.ErrUnknownScheme) {
		t.Errorf("GetScheme(nope): err = %v", err)
	}
	if len(e.ListSchemes(ctx)) < 8 {
		t.Error("builtin catalog not loaded")
	}
}

func TestExport_LabelsMatchGraphVersion(t *testing.T) {
	release := make(chan struct{})
	e := New(memstore.New(), Options{
		Publisher:      &capturePublisher{},
		Logger:         quietLogger(),
		RecomputeRetry: 10 * time.Millisecond,
		Compute: func(ctx context.Context, snap *graph.Snapshot) (*model.Labeling, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return recompute.Grounded(ctx, snap)
		},
	})
	t.Cleanup(e.Close)
	t.Cleanup(func() { close(release) })
	ctx := ctxT(t)

	c1 := addClaim(t, e, "The bridge is safe")
	if _, ok := e.coord.Latest(delib); ok {
		t.Fatal("recomputation finished while blocked")
	}

	art, err := e.Export(ctx, delib)
	if err != nil {
		t.Fatal(err)
	}
	if art.Labels == nil {
		t.Fatal("artifact has no labels")
	}
	if art.Labels.Version != art.GraphVersion {
		t.Errorf("labels describe v%d, artifact is v%d", art.Labels.Version, art.GraphVersion)
	}
	if got := art.Labels.Labels[c1]; got != model.LabelIn {
		t.Errorf("label of %s = %s, want IN", c1, got)
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := memstore.New()
	e, _ := newTestEngine(t, s)
	ctx := ctxT(t)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for d := 0; d < 4; d++ {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(d, i int) {
				defer wg.Done()
				id := fmt.Sprintf("d%d", d)
				if _, err := e.AddClaim(ctx, id, "system", fmt.Sprintf("claim %d", i)); err != nil {
					errs <- err
				}
			}(d, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddClaim: %v", err)
	}

	for d := 0; d < 4; d++ {
		id := fmt.Sprintf("d%d", d)
		snap, err := e.Snapshot(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(snap.Nodes) != 8 || snap.Version != 8 {
			t.Errorf("%s: %d nodes at v%d, want 8 at v8", id, len(snap.Nodes), snap.Version)
		}
		entries, _ := s.LoadEntries(ctx, id)
		if len(entries) != 8 {
			t.Errorf("%s journal has %d entries, want 8", id, len(entries))
		}
		if _, err := e.WaitForLabels(ctx, id, 8); err != nil {
			t.Errorf("%s labels: %v", id, err)
		}
	}
}
