package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
)

// HTTPClient implements AgoraClient using the agora HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func deliberationPath(id string) string {
	return "/v1/deliberations/" + url.PathEscape(id)
}

// --- Graph construction ---

func (c *HTTPClient) AddClaim(ctx context.Context, deliberationID, actorID, text string) (*engine.ClaimResult, error) {
	body := map[string]string{"actor_id": actorID, "text": text}
	var res engine.ClaimResult
	if err := c.doJSON(ctx, http.MethodPost, deliberationPath(deliberationID)+"/claims", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) InstantiateArgument(ctx context.Context, req *engine.InstantiateRequest) (*engine.InstantiateResult, error) {
	var res engine.InstantiateResult
	if err := c.doJSON(ctx, http.MethodPost, deliberationPath(req.DeliberationID)+"/arguments", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) MaterializeCQ(ctx context.Context, req *MaterializeRequest) (*engine.MaterializeResult, error) {
	body := map[string]string{"actor_id": req.ActorID, "counter_argument_id": req.CounterArgumentID}
	path := deliberationPath(req.DeliberationID) + "/cqs/" + url.PathEscape(req.QuestionID) + "/materialize"
	var res engine.MaterializeResult
	if err := c.doJSON(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Dialogue ---

func (c *HTTPClient) ApplyMove(ctx context.Context, req *engine.MoveRequest) (*engine.MoveResult, error) {
	var res engine.MoveResult
	if err := c.doJSON(ctx, http.MethodPost, deliberationPath(req.DeliberationID)+"/moves", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetMoves(ctx context.Context, deliberationID string) ([]*model.Move, error) {
	var resp struct {
		Moves []*model.Move `json:"moves"`
	}
	if err := c.doJSON(ctx, http.MethodGet, deliberationPath(deliberationID)+"/moves", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Moves, nil
}

func (c *HTTPClient) GetObligations(ctx context.Context, deliberationID string, all bool) (*ObligationsResponse, error) {
	path := deliberationPath(deliberationID) + "/obligations"
	if all {
		path += "?all=true"
	}
	var resp ObligationsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetCommitments(ctx context.Context, deliberationID, actorID string) ([]string, error) {
	var resp struct {
		Commitments []string `json:"commitments"`
	}
	path := deliberationPath(deliberationID) + "/commitments/" + url.PathEscape(actorID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Commitments, nil
}

func (c *HTTPClient) GetConsensus(ctx context.Context, deliberationID string) ([]*model.Consensus, error) {
	var resp struct {
		Consensus []*model.Consensus `json:"consensus"`
	}
	if err := c.doJSON(ctx, http.MethodGet, deliberationPath(deliberationID)+"/consensus", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Consensus, nil
}

func (c *HTTPClient) ListCriticalQuestions(ctx context.Context, req *ListQuestionsRequest) ([]*model.CriticalQuestion, error) {
	path := deliberationPath(req.DeliberationID)
	if req.ArgumentID != "" {
		path += "/arguments/" + url.PathEscape(req.ArgumentID)
	}
	path += "/cqs"
	if req.All {
		path += "?all=true"
	}
	var resp struct {
		Questions []*model.CriticalQuestion `json:"critical_questions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// --- Labels and inspection ---

func (c *HTTPClient) GetLabels(ctx context.Context, req *LabelsRequest) (*model.Labeling, error) {
	q := url.Values{}
	if req.Semantics != "" {
		q.Set("semantics", string(req.Semantics))
	}
	if req.MinVersion > 0 {
		q.Set("min_version", strconv.FormatUint(req.MinVersion, 10))
	}
	path := deliberationPath(req.DeliberationID) + "/labels"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var lab model.Labeling
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &lab); err != nil {
		return nil, err
	}
	return &lab, nil
}

func (c *HTTPClient) GetGraph(ctx context.Context, deliberationID string) (*graph.Snapshot, error) {
	var snap graph.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, deliberationPath(deliberationID)+"/graph", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) GetStats(ctx context.Context, deliberationID string) (*engine.Stats, error) {
	var stats engine.Stats
	if err := c.doJSON(ctx, http.MethodGet, deliberationPath(deliberationID)+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Export returns the raw export document. The jsonl format yields one JSON
// object per line.
func (c *HTTPClient) Export(ctx context.Context, deliberationID, format string) (json.RawMessage, error) {
	path := deliberationPath(deliberationID) + "/export"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	return c.doRaw(ctx, http.MethodGet, path, nil)
}

func (c *HTTPClient) ListDeliberations(ctx context.Context) ([]string, error) {
	var resp struct {
		Deliberations []string `json:"deliberations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/deliberations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deliberations, nil
}

// --- Schemes ---

func (c *HTTPClient) ListSchemes(ctx context.Context) ([]*model.Scheme, error) {
	var resp struct {
		Schemes []*model.Scheme `json:"schemes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/schemes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schemes, nil
}

func (c *HTTPClient) GetScheme(ctx context.Context, key string) (*model.Scheme, error) {
	var sc model.Scheme
	if err := c.doJSON(ctx, http.MethodGet, "/v1/schemes/"+url.PathEscape(key), nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// FieldError is one per-field validation failure reported by the server.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	respBody, err := c.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// doRaw performs an HTTP request and returns the response body.
func (c *HTTPClient) doRaw(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string       `json:"error"`
			Fields []FieldError `json:"fields"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Fields: errResp.Fields}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}
