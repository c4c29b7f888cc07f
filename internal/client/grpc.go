package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "agora.v1.EngineService"

// GRPCClient implements AgoraClient using the gRPC transport. Every call
// exchanges google.protobuf.Struct values holding JSON documents.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// Extra dial options are appended after the insecure transport credentials.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// invoke calls method with req encoded as a Struct and decodes the reply
// into resp.
func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	in := &structpb.Struct{}
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		if err := protojson.Unmarshal(data, in); err != nil {
			return fmt.Errorf("converting request: %w", err)
		}
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	data, err := protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("converting response: %w", err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// --- Graph construction ---

func (c *GRPCClient) AddClaim(ctx context.Context, deliberationID, actorID, text string) (*engine.ClaimResult, error) {
	req := map[string]string{"deliberation_id": deliberationID, "actor_id": actorID, "text": text}
	var res engine.ClaimResult
	if err := c.invoke(ctx, "AddClaim", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *GRPCClient) InstantiateArgument(ctx context.Context, req *engine.InstantiateRequest) (*engine.InstantiateResult, error) {
	var res engine.InstantiateResult
	if err := c.invoke(ctx, "InstantiateArgument", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *GRPCClient) MaterializeCQ(ctx context.Context, req *MaterializeRequest) (*engine.MaterializeResult, error) {
	var res engine.MaterializeResult
	if err := c.invoke(ctx, "MaterializeCQ", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Dialogue ---

func (c *GRPCClient) ApplyMove(ctx context.Context, req *engine.MoveRequest) (*engine.MoveResult, error) {
	var res engine.MoveResult
	if err := c.invoke(ctx, "ApplyMove", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *GRPCClient) GetMoves(ctx context.Context, deliberationID string) ([]*model.Move, error) {
	var resp struct {
		Moves []*model.Move `json:"moves"`
	}
	if err := c.invoke(ctx, "GetMoves", map[string]string{"deliberation_id": deliberationID}, &resp); err != nil {
		return nil, err
	}
	return resp.Moves, nil
}

func (c *GRPCClient) GetObligations(ctx context.Context, deliberationID string, all bool) (*ObligationsResponse, error) {
	req := map[string]any{"deliberation_id": deliberationID, "all": all}
	var resp ObligationsResponse
	if err := c.invoke(ctx, "GetObligations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) GetCommitments(ctx context.Context, deliberationID, actorID string) ([]string, error) {
	req := map[string]string{"deliberation_id": deliberationID, "actor_id": actorID}
	var resp struct {
		Commitments []string `json:"commitments"`
	}
	if err := c.invoke(ctx, "GetCommitments", req, &resp); err != nil {
		return nil, err
	}
	return resp.Commitments, nil
}

func (c *GRPCClient) GetConsensus(ctx context.Context, deliberationID string) ([]*model.Consensus, error) {
	var resp struct {
		Consensus []*model.Consensus `json:"consensus"`
	}
	if err := c.invoke(ctx, "GetConsensus", map[string]string{"deliberation_id": deliberationID}, &resp); err != nil {
		return nil, err
	}
	return resp.Consensus, nil
}

func (c *GRPCClient) ListCriticalQuestions(ctx context.Context, req *ListQuestionsRequest) ([]*model.CriticalQuestion, error) {
	var resp struct {
		Questions []*model.CriticalQuestion `json:"critical_questions"`
	}
	if err := c.invoke(ctx, "ListCriticalQuestions", req, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// --- Labels and inspection ---

func (c *GRPCClient) GetLabels(ctx context.Context, req *LabelsRequest) (*model.Labeling, error) {
	var lab model.Labeling
	if err := c.invoke(ctx, "GetLabels", req, &lab); err != nil {
		return nil, err
	}
	return &lab, nil
}

func (c *GRPCClient) GetGraph(ctx context.Context, deliberationID string) (*graph.Snapshot, error) {
	var snap graph.Snapshot
	if err := c.invoke(ctx, "GetGraph", map[string]string{"deliberation_id": deliberationID}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *GRPCClient) GetStats(ctx context.Context, deliberationID string) (*engine.Stats, error) {
	var stats engine.Stats
	if err := c.invoke(ctx, "GetStats", map[string]string{"deliberation_id": deliberationID}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Export returns the export document. Only the json and aif formats are
// served over gRPC.
func (c *GRPCClient) Export(ctx context.Context, deliberationID, format string) (json.RawMessage, error) {
	req := map[string]string{"deliberation_id": deliberationID, "format": format}
	var raw json.RawMessage
	if err := c.invoke(ctx, "Export", req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *GRPCClient) ListDeliberations(ctx context.Context) ([]string, error) {
	var resp struct {
		Deliberations []string `json:"deliberations"`
	}
	if err := c.invoke(ctx, "ListDeliberations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deliberations, nil
}

// --- Schemes ---

func (c *GRPCClient) ListSchemes(ctx context.Context) ([]*model.Scheme, error) {
	var resp struct {
		Schemes []*model.Scheme `json:"schemes"`
	}
	if err := c.invoke(ctx, "ListSchemes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schemes, nil
}

func (c *GRPCClient) GetScheme(ctx context.Context, key string) (*model.Scheme, error) {
	var sc model.Scheme
	if err := c.invoke(ctx, "GetScheme", map[string]string{"key": key}, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.invoke(ctx, "Health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
