package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/server"
	"github.com/alfredjeanlab/agora/internal/store/memstore"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string // URL-encoded path (for testing PathEscape)
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, "")
	return c, srv
}

func TestHTTPClient_AddClaim(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"claim": {"id": "c-abc", "kind": "claim", "text": "it rained"}, "created": true, "graph_version": 1}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.AddClaim(context.Background(), "d1", "alice", "It rained")
	if err != nil {
		t.Fatalf("AddClaim() error = %v", err)
	}
	if h.method != http.MethodPost {
		t.Errorf("method = %q, want POST", h.method)
	}
	if h.path != "/v1/deliberations/d1/claims" {
		t.Errorf("path = %q", h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", h.contentType)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if body["actor_id"] != "alice" || body["text"] != "It rained" {
		t.Errorf("body = %v", body)
	}
	if res.Claim.ID != "c-abc" || !res.Created || res.GraphVersion != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPClient_ApplyMove(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"move": {"id": "m-1", "type": "WHY", "actor_id": "bob"}, "graph_changed": false, "graph_version": 4}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.ApplyMove(context.Background(), &engine.MoveRequest{
		DeliberationID: "d1",
		ActorID:        "bob",
		Type:           model.MoveWhy,
		TargetType:     model.TargetClaim,
		TargetID:       "c-1",
	})
	if err != nil {
		t.Fatalf("ApplyMove() error = %v", err)
	}
	if h.path != "/v1/deliberations/d1/moves" {
		t.Errorf("path = %q", h.path)
	}
	if !strings.Contains(h.body, `"type":"WHY"`) || !strings.Contains(h.body, `"target_id":"c-1"`) {
		t.Errorf("body = %s", h.body)
	}
	if res.Move.ID != "m-1" || res.GraphChanged || res.GraphVersion != 4 {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPClient_MaterializeCQ_PathEscape(t *testing.T) {
	h := &testHandler{responseBody: `{"edge": {"relation": "UNDERCUTS"}, "graph_version": 7}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.MaterializeCQ(context.Background(), &MaterializeRequest{
		DeliberationID:    "d 1",
		ActorID:           "alice",
		QuestionID:        "q/1",
		CounterArgumentID: "a-2",
	})
	if err != nil {
		t.Fatalf("MaterializeCQ() error = %v", err)
	}
	if h.rawPath != "/v1/deliberations/d%201/cqs/q%2F1/materialize" {
		t.Errorf("raw path = %q", h.rawPath)
	}
	if res.Edge.Relation != model.RelUndercuts {
		t.Errorf("relation = %q", res.Edge.Relation)
	}
}

func TestHTTPClient_GetLabels_Query(t *testing.T) {
	for _, tc := range []struct {
		name      string
		req       *LabelsRequest
		wantQuery string
	}{
		{"Default", &LabelsRequest{DeliberationID: "d1"}, ""},
		{"Semantics", &LabelsRequest{DeliberationID: "d1", Semantics: model.SemanticsPreferred}, "semantics=preferred"},
		{"MinVersion", &LabelsRequest{DeliberationID: "d1", MinVersion: 12}, "min_version=12"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{responseBody: `{"deliberation_id": "d1", "semantics": "grounded", "version": 12, "labels": {"a-1": "IN"}}`}
			c, srv := newTestClient(h)
			defer srv.Close()

			lab, err := c.GetLabels(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("GetLabels() error = %v", err)
			}
			if h.query != tc.wantQuery {
				t.Errorf("query = %q, want %q", h.query, tc.wantQuery)
			}
			if lab.Label("a-1") != model.LabelIn {
				t.Errorf("labels = %v", lab.Labels)
			}
		})
	}
}

func TestHTTPClient_ListCriticalQuestions_Paths(t *testing.T) {
	for _, tc := range []struct {
		name     string
		req      *ListQuestionsRequest
		wantPath string
		wantAll  bool
	}{
		{"Deliberation", &ListQuestionsRequest{DeliberationID: "d1"}, "/v1/deliberations/d1/cqs", false},
		{"Argument", &ListQuestionsRequest{DeliberationID: "d1", ArgumentID: "a-1"}, "/v1/deliberations/d1/arguments/a-1/cqs", false},
		{"All", &ListQuestionsRequest{DeliberationID: "d1", All: true}, "/v1/deliberations/d1/cqs", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{responseBody: `{"critical_questions": [{"id": "q-1", "cq_key": "expertise", "status": "open"}]}`}
			c, srv := newTestClient(h)
			defer srv.Close()

			qs, err := c.ListCriticalQuestions(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("ListCriticalQuestions() error = %v", err)
			}
			if h.path != tc.wantPath {
				t.Errorf("path = %q, want %q", h.path, tc.wantPath)
			}
			if (h.query == "all=true") != tc.wantAll {
				t.Errorf("query = %q", h.query)
			}
			if len(qs) != 1 || qs[0].CQKey != "expertise" {
				t.Errorf("questions = %+v", qs)
			}
		})
	}
}

func TestHTTPClient_Export_Raw(t *testing.T) {
	h := &testHandler{responseBody: "{\"deliberation_id\":\"d1\"}\n"}
	c, srv := newTestClient(h)
	defer srv.Close()

	raw, err := c.Export(context.Background(), "d1", "jsonl")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if h.query != "format=jsonl" {
		t.Errorf("query = %q", h.query)
	}
	if string(raw) != "{\"deliberation_id\":\"d1\"}\n" {
		t.Errorf("raw = %q", raw)
	}
}

func TestHTTPClient_Token(t *testing.T) {
	h := &testHandler{responseBody: `{"status": "ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret")
	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q", status)
	}
	if h.auth != "Bearer secret" {
		t.Errorf("authorization = %q", h.auth)
	}
	if h.path != "/v1/health" {
		t.Errorf("path = %q", h.path)
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	for _, tc := range []struct {
		name       string
		statusCode int
		body       string
		wantMsg    string
		wantFields int
	}{
		{"JSONError", http.StatusConflict, `{"error": "illegal WHY: already challenged"}`, "illegal WHY: already challenged", 0},
		{"FieldErrors", http.StatusBadRequest, `{"error": "validation failed", "fields": [{"field": "text", "message": "is required"}]}`, "validation failed", 1},
		{"PlainText", http.StatusBadGateway, `upstream down`, "upstream down", 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{statusCode: tc.statusCode, responseBody: tc.body}
			c, srv := newTestClient(h)
			defer srv.Close()

			_, err := c.GetStats(context.Background(), "d1")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tc.statusCode {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tc.statusCode)
			}
			if apiErr.Message != tc.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tc.wantMsg)
			}
			if len(apiErr.Fields) != tc.wantFields {
				t.Errorf("Fields = %+v", apiErr.Fields)
			}
		})
	}
}

func TestHTTPClient_InvalidJSONResponse(t *testing.T) {
	h := &testHandler{responseBody: `{not json`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.ListDeliberations(context.Background()); err == nil {
		t.Fatal("expected decode error, got nil")
	}
}

// newLiveServer serves a real in-memory engine over HTTP.
func newLiveServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := server.NewHub()
	e := engine.New(memstore.New(), engine.Options{Publisher: hub, Logger: logger, RecomputeRetry: 10 * time.Millisecond})
	t.Cleanup(e.Close)
	srv := server.New(e, hub, logger)
	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	t.Cleanup(ts.Close)
	return srv, ts
}

// exerciseClient runs one dialogue through c and checks the results.
func exerciseClient(t *testing.T, c AgoraClient) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := c.Health(ctx)
	if err != nil || status != "ok" {
		t.Fatalf("Health() = %q, %v", status, err)
	}

	claim := func(text string) string {
		t.Helper()
		res, err := c.AddClaim(ctx, "d1", "alice", text)
		if err != nil {
			t.Fatalf("AddClaim(%q): %v", text, err)
		}
		return res.Claim.ID
	}
	conclusion, premise := claim("It rained"), claim("The ground is wet")

	arg, err := c.InstantiateArgument(ctx, &engine.InstantiateRequest{
		DeliberationID: "d1",
		ActorID:        "alice",
		SchemeKey:      "sign",
		ConclusionID:   conclusion,
		Premises:       map[string][]string{"sign": {premise}},
	})
	if err != nil {
		t.Fatalf("InstantiateArgument: %v", err)
	}
	if len(arg.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(arg.Questions))
	}

	if _, err := c.ApplyMove(ctx, &engine.MoveRequest{
		DeliberationID: "d1",
		ActorID:        "bob",
		Type:           model.MoveWhy,
		TargetType:     model.TargetArgument,
		TargetID:       arg.Argument.ID,
	}); err != nil {
		t.Fatalf("WHY: %v", err)
	}
	obl, err := c.GetObligations(ctx, "d1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(obl.Obligations) != 1 || obl.Closed {
		t.Fatalf("obligations = %+v", obl)
	}

	lab, err := c.GetLabels(ctx, &LabelsRequest{DeliberationID: "d1", MinVersion: arg.GraphVersion})
	if err != nil {
		t.Fatalf("GetLabels: %v", err)
	}
	if lab.Label(arg.Argument.ID) != model.LabelIn {
		t.Fatalf("labels = %v", lab.Labels)
	}

	commitments, err := c.GetCommitments(ctx, "d1", "alice")
	if err != nil || len(commitments) != 1 || commitments[0] != arg.Argument.ID {
		t.Fatalf("commitments = %v, %v", commitments, err)
	}
	moves, err := c.GetMoves(ctx, "d1")
	if err != nil || len(moves) != 2 {
		t.Fatalf("moves = %d, %v", len(moves), err)
	}
	qs, err := c.ListCriticalQuestions(ctx, &ListQuestionsRequest{DeliberationID: "d1", ArgumentID: arg.Argument.ID})
	if err != nil || len(qs) != 3 {
		t.Fatalf("questions = %d, %v", len(qs), err)
	}
	snap, err := c.GetGraph(ctx, "d1")
	if err != nil || len(snap.Nodes) != 3 {
		t.Fatalf("graph = %+v, %v", snap, err)
	}
	stats, err := c.GetStats(ctx, "d1")
	if err != nil || stats.Framework.Arguments != 1 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
	if _, err := c.GetConsensus(ctx, "d1"); err != nil {
		t.Fatalf("GetConsensus: %v", err)
	}
	ids, err := c.ListDeliberations(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "d1" {
		t.Fatalf("deliberations = %v, %v", ids, err)
	}
	raw, err := c.Export(ctx, "d1", "aif")
	if err != nil || !strings.Contains(string(raw), "nodes") {
		t.Fatalf("export = %s, %v", raw, err)
	}
	schemes, err := c.ListSchemes(ctx)
	if err != nil || len(schemes) < 8 {
		t.Fatalf("schemes = %d, %v", len(schemes), err)
	}
	sc, err := c.GetScheme(ctx, "sign")
	if err != nil || sc.Key != "sign" {
		t.Fatalf("scheme = %+v, %v", sc, err)
	}
	if _, err := c.GetScheme(ctx, "nope"); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestHTTPClient_Live(t *testing.T) {
	_, ts := newLiveServer(t)
	exerciseClient(t, NewHTTPClient(ts.URL, ""))
}
