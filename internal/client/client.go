// Package client provides a transport-agnostic interface for the agora
// service, with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/graph"
	"github.com/alfredjeanlab/agora/internal/model"
)

// AgoraClient is the interface that all agora CLI commands use to talk to
// the server. It is implemented by HTTPClient (default) and GRPCClient.
type AgoraClient interface {
	// Graph construction
	AddClaim(ctx context.Context, deliberationID, actorID, text string) (*engine.ClaimResult, error)
	InstantiateArgument(ctx context.Context, req *engine.InstantiateRequest) (*engine.InstantiateResult, error)
	MaterializeCQ(ctx context.Context, req *MaterializeRequest) (*engine.MaterializeResult, error)

	// Dialogue
	ApplyMove(ctx context.Context, req *engine.MoveRequest) (*engine.MoveResult, error)
	GetMoves(ctx context.Context, deliberationID string) ([]*model.Move, error)
	GetObligations(ctx context.Context, deliberationID string, all bool) (*ObligationsResponse, error)
	GetCommitments(ctx context.Context, deliberationID, actorID string) ([]string, error)
	GetConsensus(ctx context.Context, deliberationID string) ([]*model.Consensus, error)
	ListCriticalQuestions(ctx context.Context, req *ListQuestionsRequest) ([]*model.CriticalQuestion, error)

	// Labels and inspection
	GetLabels(ctx context.Context, req *LabelsRequest) (*model.Labeling, error)
	GetGraph(ctx context.Context, deliberationID string) (*graph.Snapshot, error)
	GetStats(ctx context.Context, deliberationID string) (*engine.Stats, error)
	Export(ctx context.Context, deliberationID, format string) (json.RawMessage, error)
	ListDeliberations(ctx context.Context) ([]string, error)

	// Schemes
	ListSchemes(ctx context.Context) ([]*model.Scheme, error)
	GetScheme(ctx context.Context, key string) (*model.Scheme, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// MaterializeRequest holds parameters for answering a critical question
// with a counter-argument.
type MaterializeRequest struct {
	DeliberationID    string `json:"deliberation_id"`
	ActorID           string `json:"actor_id"`
	QuestionID        string `json:"critical_question_id"`
	CounterArgumentID string `json:"counter_argument_id"`
}

// LabelsRequest selects a labeling. MinVersion waits for a grounded
// labeling of at least that graph version.
type LabelsRequest struct {
	DeliberationID string          `json:"deliberation_id"`
	Semantics      model.Semantics `json:"semantics,omitempty"`
	MinVersion     uint64          `json:"min_version,omitempty"`
}

// ListQuestionsRequest lists the critical questions of one argument, or of
// the whole deliberation when ArgumentID is empty.
type ListQuestionsRequest struct {
	DeliberationID string `json:"deliberation_id"`
	ArgumentID     string `json:"argument_id,omitempty"`
	All            bool   `json:"all,omitempty"`
}

// ObligationsResponse is the response from GetObligations.
type ObligationsResponse struct {
	Obligations []*model.Obligation `json:"obligations"`
	Closed      bool                `json:"closed"`
}
