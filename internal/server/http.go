package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/export"
	"github.com/alfredjeanlab/agora/internal/model"
)

// maxLabelWait bounds how long GET .../labels?min_version= blocks.
const maxLabelWait = 30 * time.Second

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/deliberations", s.handleListDeliberations)
	mux.HandleFunc("POST /v1/deliberations/{id}/claims", s.handleAddClaim)
	mux.HandleFunc("POST /v1/deliberations/{id}/arguments", s.handleInstantiate)
	mux.HandleFunc("GET /v1/deliberations/{id}/arguments/{arg}/cqs", s.handleListCriticalQuestions)
	mux.HandleFunc("GET /v1/deliberations/{id}/cqs", s.handleListCriticalQuestions)
	mux.HandleFunc("POST /v1/deliberations/{id}/cqs/{cq}/materialize", s.handleMaterialize)
	mux.HandleFunc("POST /v1/deliberations/{id}/moves", s.handleApplyMove)
	mux.HandleFunc("GET /v1/deliberations/{id}/moves", s.handleGetMoves)
	mux.HandleFunc("GET /v1/deliberations/{id}/labels", s.handleGetLabels)
	mux.HandleFunc("GET /v1/deliberations/{id}/obligations", s.handleGetObligations)
	mux.HandleFunc("GET /v1/deliberations/{id}/commitments/{actor}", s.handleGetCommitments)
	mux.HandleFunc("GET /v1/deliberations/{id}/consensus", s.handleGetConsensus)
	mux.HandleFunc("GET /v1/deliberations/{id}/graph", s.handleGetGraph)
	mux.HandleFunc("GET /v1/deliberations/{id}/stats", s.handleGetStats)
	mux.HandleFunc("GET /v1/deliberations/{id}/export", s.handleExport)
	mux.HandleFunc("GET /v1/schemes", s.handleListSchemes)
	mux.HandleFunc("GET /v1/schemes/{key}", s.handleGetScheme)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return s.logRequests(AuthMiddleware(authToken, mux))
}

// claimInput is the body of POST /v1/deliberations/{id}/claims.
type claimInput struct {
	ActorID string `json:"actor_id"`
	Text    string `json:"text"`
}

// materializeInput is the body of POST .../cqs/{cq}/materialize.
type materializeInput struct {
	ActorID           string `json:"actor_id"`
	CounterArgumentID string `json:"counter_argument_id"`
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListDeliberations handles GET /v1/deliberations.
func (s *Server) handleListDeliberations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.ListDeliberations(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliberations": ids})
}

// handleAddClaim handles POST /v1/deliberations/{id}/claims.
func (s *Server) handleAddClaim(w http.ResponseWriter, r *http.Request) {
	var in claimInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.engine.AddClaim(r.Context(), r.PathValue("id"), in.ActorID, in.Text)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	code := http.StatusOK
	if res.Created {
		code = http.StatusCreated
	}
	writeJSON(w, code, res)
}

// handleInstantiate handles POST /v1/deliberations/{id}/arguments.
func (s *Server) handleInstantiate(w http.ResponseWriter, r *http.Request) {
	var in engine.InstantiateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.DeliberationID = r.PathValue("id")
	res, err := s.engine.InstantiateArgument(r.Context(), in)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleApplyMove handles POST /v1/deliberations/{id}/moves.
func (s *Server) handleApplyMove(w http.ResponseWriter, r *http.Request) {
	var in engine.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.DeliberationID = r.PathValue("id")
	res, err := s.engine.ApplyMove(r.Context(), in)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleMaterialize handles POST /v1/deliberations/{id}/cqs/{cq}/materialize.
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	var in materializeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.CounterArgumentID == "" {
		writeError(w, http.StatusBadRequest, "counter_argument_id is required")
		return
	}
	res, err := s.engine.MaterializeCQ(r.Context(), r.PathValue("id"), in.ActorID, r.PathValue("cq"), in.CounterArgumentID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetMoves handles GET /v1/deliberations/{id}/moves.
func (s *Server) handleGetMoves(w http.ResponseWriter, r *http.Request) {
	moves, err := s.engine.GetMoves(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if moves == nil {
		moves = []*model.Move{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"moves": moves})
}

// handleGetLabels handles GET /v1/deliberations/{id}/labels. With
// min_version set, a grounded request waits until that graph version has
// been labeled.
func (s *Server) handleGetLabels(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	sem := model.Semantics(q.Get("semantics"))

	if v := q.Get("min_version"); v != "" && (sem == "" || sem == model.SemanticsGrounded) {
		version, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_version must be a non-negative integer")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), maxLabelWait)
		defer cancel()
		lab, err := s.engine.WaitForLabels(ctx, id, version)
		if err != nil {
			if ctx.Err() != nil {
				writeError(w, http.StatusGatewayTimeout, "labels not ready")
				return
			}
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lab)
		return
	}

	lab, err := s.engine.GetLabels(r.Context(), id, sem)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lab)
}

// handleGetObligations handles GET /v1/deliberations/{id}/obligations.
// Only open obligations are listed unless all=true.
func (s *Server) handleGetObligations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	get := s.engine.GetOpenObligations
	if r.URL.Query().Get("all") == "true" {
		get = s.engine.GetObligations
	}
	obligations, err := get(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	closed, err := s.engine.IsClosed(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if obligations == nil {
		obligations = []*model.Obligation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"obligations": obligations, "closed": closed})
}

// handleGetCommitments handles GET /v1/deliberations/{id}/commitments/{actor}.
func (s *Server) handleGetCommitments(w http.ResponseWriter, r *http.Request) {
	actor := r.PathValue("actor")
	ids, err := s.engine.GetCommitmentStore(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actor_id": actor, "commitments": ids})
}

// handleGetConsensus handles GET /v1/deliberations/{id}/consensus.
func (s *Server) handleGetConsensus(w http.ResponseWriter, r *http.Request) {
	consensus, err := s.engine.GetConsensus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consensus": consensus})
}

// handleListCriticalQuestions handles GET .../arguments/{arg}/cqs and
// GET .../cqs. Only open questions are listed unless all=true.
func (s *Server) handleListCriticalQuestions(w http.ResponseWriter, r *http.Request) {
	id, arg := r.PathValue("id"), r.PathValue("arg")
	all := r.URL.Query().Get("all") == "true"
	qs, err := s.engine.ListCriticalQuestions(r.Context(), id, arg)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	result := make([]*model.CriticalQuestion, 0, len(qs))
	for _, q := range qs {
		if all || q.Status == model.CQOpen {
			result = append(result, q)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"critical_questions": result})
}

// handleGetGraph handles GET /v1/deliberations/{id}/graph.
func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetStats handles GET /v1/deliberations/{id}/stats.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.GetStats(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport handles GET /v1/deliberations/{id}/export. The format query
// parameter selects "json" (default), "aif" or "jsonl".
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	art, err := s.engine.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, art)
	case "aif":
		writeJSON(w, http.StatusOK, export.AIF(art))
	case "jsonl":
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteJSONL(w, []*export.Artifact{art}, art.ExportedAt); err != nil {
			s.logger.Warn("failed to write export", "deliberation_id", art.DeliberationID, "err", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown export format "+strconv.Quote(format))
	}
}

// handleListSchemes handles GET /v1/schemes.
func (s *Server) handleListSchemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schemes": s.engine.ListSchemes(r.Context())})
}

// handleGetScheme handles GET /v1/schemes/{key}.
func (s *Server) handleGetScheme(w http.ResponseWriter, r *http.Request) {
	sc, err := s.engine.GetScheme(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// writeEngineError reports an engine error with the matching status code.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, code, errorBody(err))
}

// errorBody carries field errors along with the message when err has them.
func errorBody(err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Errors
	}
	return body
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
