package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

// doJSON performs a request against handler with an optional JSON body.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the response code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

// decodeBody decodes the response body into v.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
}

type claimResp struct {
	Claim struct {
		ID string `json:"id"`
	} `json:"claim"`
	Created bool `json:"created"`
}

func postClaim(t *testing.T, h http.Handler, text string) string {
	t.Helper()
	rec := doJSON(t, h, "POST", "/v1/deliberations/d1/claims", map[string]any{"actor_id": "alice", "text": text})
	if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
		t.Fatalf("add claim %q: %d %s", text, rec.Code, rec.Body.String())
	}
	var res claimResp
	decodeBody(t, rec, &res)
	return res.Claim.ID
}

type argumentResp struct {
	Argument struct {
		ID string `json:"id"`
	} `json:"argument"`
	Questions []struct {
		ID     string `json:"id"`
		CQKey  string `json:"cq_key"`
		Status string `json:"status"`
	} `json:"critical_questions"`
	GraphVersion uint64 `json:"graph_version"`
}

func postSignArgument(t *testing.T, h http.Handler, actor, premise, conclusion string) argumentResp {
	t.Helper()
	rec := doJSON(t, h, "POST", "/v1/deliberations/d1/arguments", map[string]any{
		"actor_id":      actor,
		"scheme_key":    "sign",
		"conclusion_id": postClaim(t, h, conclusion),
		"premises":      map[string][]string{"sign": {postClaim(t, h, premise)}},
	})
	requireStatus(t, rec, http.StatusCreated)
	var res argumentResp
	decodeBody(t, rec, &res)
	return res
}

func TestHTTP_Health(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := doJSON(t, h, "GET", "/v1/health", nil)
	requireStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHTTP_AddClaim(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doJSON(t, h, "POST", "/v1/deliberations/d1/claims", map[string]any{"actor_id": "alice", "text": "Rain is wet"})
	requireStatus(t, rec, http.StatusCreated)
	rec = doJSON(t, h, "POST", "/v1/deliberations/d1/claims", map[string]any{"actor_id": "bob", "text": "rain is  wet"})
	requireStatus(t, rec, http.StatusOK)

	rec = doJSON(t, h, "POST", "/v1/deliberations/d1/claims", map[string]any{"actor_id": "alice", "text": "   "})
	requireStatus(t, rec, http.StatusBadRequest)
	var body struct {
		Error  string `json:"error"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	decodeBody(t, rec, &body)
	if len(body.Fields) != 1 || body.Fields[0].Field != "text" {
		t.Fatalf("expected a text field error, got %+v", body)
	}

	req := httptest.NewRequest("POST", "/v1/deliberations/d1/claims", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	requireStatus(t, rr, http.StatusBadRequest)
}

func TestHTTP_DialogueFlow(t *testing.T) {
	_, _, h := newTestServer(t)

	target := postSignArgument(t, h, "bob", "The ground is wet", "It rained")
	if len(target.Questions) != 3 {
		t.Fatalf("expected 3 critical questions, got %d", len(target.Questions))
	}
	counter := postSignArgument(t, h, "alice", "The sprinkler ran", "The sprinkler wet the ground")

	rec := doJSON(t, h, "GET", "/v1/deliberations/d1/arguments/"+target.Argument.ID+"/cqs", nil)
	requireStatus(t, rec, http.StatusOK)
	var cqs struct {
		Questions []struct {
			ID    string `json:"id"`
			CQKey string `json:"cq_key"`
		} `json:"critical_questions"`
	}
	decodeBody(t, rec, &cqs)
	var rebut string
	for _, q := range cqs.Questions {
		if q.CQKey == "other_indicators" {
			rebut = q.ID
		}
	}
	if rebut == "" {
		t.Fatalf("no other_indicators question in %+v", cqs)
	}

	// Alice challenges bob's argument, bob owes grounds.
	rec = doJSON(t, h, "POST", "/v1/deliberations/d1/moves", map[string]any{
		"actor_id": "alice", "type": "WHY", "target_type": "argument", "target_id": target.Argument.ID,
	})
	requireStatus(t, rec, http.StatusCreated)
	rec = doJSON(t, h, "GET", "/v1/deliberations/d1/obligations", nil)
	requireStatus(t, rec, http.StatusOK)
	var obl struct {
		Obligations []map[string]any `json:"obligations"`
		Closed      bool             `json:"closed"`
	}
	decodeBody(t, rec, &obl)
	if len(obl.Obligations) != 1 || obl.Closed {
		t.Fatalf("obligations = %+v", obl)
	}

	// A second WHY by the same actor is illegal.
	rec = doJSON(t, h, "POST", "/v1/deliberations/d1/moves", map[string]any{
		"actor_id": "alice", "type": "WHY", "target_type": "argument", "target_id": target.Argument.ID,
	})
	requireStatus(t, rec, http.StatusConflict)

	rec = doJSON(t, h, "POST", "/v1/deliberations/d1/cqs/"+rebut+"/materialize", map[string]any{
		"actor_id": "alice", "counter_argument_id": counter.Argument.ID,
	})
	requireStatus(t, rec, http.StatusOK)
	var mat struct {
		Edge struct {
			Relation string `json:"relation"`
		} `json:"edge"`
		GraphVersion uint64 `json:"graph_version"`
	}
	decodeBody(t, rec, &mat)
	if mat.Edge.Relation != "REBUTS" {
		t.Fatalf("materialized relation = %q, want REBUTS", mat.Edge.Relation)
	}

	rec = doJSON(t, h, "GET", "/v1/deliberations/d1/labels?min_version="+strconv.FormatUint(mat.GraphVersion, 10), nil)
	requireStatus(t, rec, http.StatusOK)
	var lab struct {
		Version uint64            `json:"version"`
		Labels  map[string]string `json:"labels"`
	}
	decodeBody(t, rec, &lab)
	if lab.Labels[target.Argument.ID] != "OUT" || lab.Labels[counter.Argument.ID] != "IN" {
		t.Fatalf("labels = %v", lab.Labels)
	}

	rec = doJSON(t, h, "GET", "/v1/deliberations/d1/labels?semantics=preferred", nil)
	requireStatus(t, rec, http.StatusOK)
	rec = doJSON(t, h, "GET", "/v1/deliberations/d1/labels?semantics=hybrid", nil)
	requireStatus(t, rec, http.StatusNotImplemented)
	rec = doJSON(t, h, "GET", "/v1/deliberations/d1/labels?semantics=stable", nil)
	requireStatus(t, rec, http.StatusBadRequest)

	rec = doJSON(t, h, "GET", "/v1/deliberations/d1/commitments/alice", nil)
	requireStatus(t, rec, http.StatusOK)
	var cs struct {
		Commitments []string `json:"commitments"`
	}
	decodeBody(t, rec, &cs)
	if len(cs.Commitments) != 1 || cs.Commitments[0] != counter.Argument.ID {
		t.Fatalf("alice's commitments = %v", cs.Commitments)
	}

	rec = doJSON(t, h, "GET", "/v1/deliberations/d1/moves", nil)
	requireStatus(t, rec, http.StatusOK)
	var moves struct {
		Moves []map[string]any `json:"moves"`
	}
	decodeBody(t, rec, &moves)
	if len(moves.Moves) != 3 {
		t.Fatalf("expected 3 moves, got %d", len(moves.Moves))
	}

	for _, path := range []string{
		"/v1/deliberations/d1/graph",
		"/v1/deliberations/d1/stats",
		"/v1/deliberations/d1/consensus",
		"/v1/deliberations/d1/cqs?all=true",
		"/v1/deliberations/d1/obligations?all=true",
		"/v1/deliberations/d1/export",
		"/v1/deliberations/d1/export?format=aif",
		"/v1/deliberations/d1/export?format=jsonl",
		"/v1/deliberations",
		"/v1/schemes",
		"/v1/schemes/expert_opinion",
	} {
		rec := doJSON(t, h, "GET", path, nil)
		requireStatus(t, rec, http.StatusOK)
	}
}

func TestHTTP_Errors(t *testing.T) {
	_, _, h := newTestServer(t)
	postClaim(t, h, "p")

	for _, tc := range []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown deliberation", "GET", "/v1/deliberations/nope/graph", nil, http.StatusNotFound},
		{"unknown argument", "GET", "/v1/deliberations/d1/arguments/a-missing/cqs", nil, http.StatusNotFound},
		{"unknown scheme", "GET", "/v1/schemes/nope", nil, http.StatusNotFound},
		{"bad export format", "GET", "/v1/deliberations/d1/export?format=xml", nil, http.StatusBadRequest},
		{"bad min_version", "GET", "/v1/deliberations/d1/labels?min_version=x", nil, http.StatusBadRequest},
		{"instantiate unknown scheme", "POST", "/v1/deliberations/d1/arguments", map[string]any{"actor_id": "a", "scheme_key": "nope"}, http.StatusBadRequest},
		{"materialize without counter", "POST", "/v1/deliberations/d1/cqs/q-1/materialize", map[string]any{"actor_id": "a"}, http.StatusBadRequest},
		{"materialize unknown question", "POST", "/v1/deliberations/d1/cqs/q-1/materialize", map[string]any{"actor_id": "a", "counter_argument_id": "a-1"}, http.StatusNotFound},
		{"illegal move", "POST", "/v1/deliberations/d1/moves", map[string]any{"actor_id": "a", "type": "RETRACT", "target_type": "claim", "target_id": "x"}, http.StatusConflict},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, tc.method, tc.path, tc.body)
			requireStatus(t, rec, tc.want)
		})
	}
}

func TestHTTP_Auth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.NewHTTPHandler("secret")

	requireStatus(t, doJSON(t, h, "GET", "/v1/health", nil), http.StatusOK)
	requireStatus(t, doJSON(t, h, "GET", "/v1/deliberations", nil), http.StatusUnauthorized)

	req := httptest.NewRequest("GET", "/v1/deliberations", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)
}
