package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/export"
	"github.com/alfredjeanlab/agora/internal/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName  = "agora.v1.EngineService"
	healthMethod = "/" + serviceName + "/Health"
)

// EngineServiceServer is the server API of agora.v1.EngineService. Requests
// and responses are google.protobuf.Struct values holding the same JSON
// documents the HTTP surface exchanges.
type EngineServiceServer interface {
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddClaim(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InstantiateArgument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyMove(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MaterializeCQ(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLabels(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetObligations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCommitments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCriticalQuestions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMoves(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGraph(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConsensus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Export(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDeliberations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSchemes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetScheme(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(EngineServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(EngineServiceServer)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// EngineServiceDesc describes agora.v1.EngineService for grpc.Server.
var EngineServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EngineServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Health", EngineServiceServer.Health),
		unaryMethod("AddClaim", EngineServiceServer.AddClaim),
		unaryMethod("InstantiateArgument", EngineServiceServer.InstantiateArgument),
		unaryMethod("ApplyMove", EngineServiceServer.ApplyMove),
		unaryMethod("MaterializeCQ", EngineServiceServer.MaterializeCQ),
		unaryMethod("GetLabels", EngineServiceServer.GetLabels),
		unaryMethod("GetObligations", EngineServiceServer.GetObligations),
		unaryMethod("GetCommitments", EngineServiceServer.GetCommitments),
		unaryMethod("ListCriticalQuestions", EngineServiceServer.ListCriticalQuestions),
		unaryMethod("GetMoves", EngineServiceServer.GetMoves),
		unaryMethod("GetGraph", EngineServiceServer.GetGraph),
		unaryMethod("GetStats", EngineServiceServer.GetStats),
		unaryMethod("GetConsensus", EngineServiceServer.GetConsensus),
		unaryMethod("Export", EngineServiceServer.Export),
		unaryMethod("ListDeliberations", EngineServiceServer.ListDeliberations),
		unaryMethod("ListSchemes", EngineServiceServer.ListSchemes),
		unaryMethod("GetScheme", EngineServiceServer.GetScheme),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agora/v1/engine.proto",
}

// NewGRPCServer returns a grpc.Server serving s as agora.v1.EngineService,
// with reflection enabled. A non-empty authToken enables bearer auth.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			s.recoveryInterceptor,
			s.loggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&EngineServiceDesc, s)
	reflection.Register(srv)

	return srv
}

// rpcRequest holds every field an EngineService request may carry.
type rpcRequest struct {
	DeliberationID    string          `json:"deliberation_id"`
	ActorID           string          `json:"actor_id"`
	Text              string          `json:"text"`
	ArgumentID        string          `json:"argument_id"`
	QuestionID        string          `json:"critical_question_id"`
	CounterArgumentID string          `json:"counter_argument_id"`
	Semantics         model.Semantics `json:"semantics"`
	MinVersion        uint64          `json:"min_version"`
	All               bool            `json:"all"`
	Format            string          `json:"format"`
	Key               string          `json:"key"`
}

// decodeStruct converts a Struct into v through its JSON form.
func decodeStruct(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return inputError("invalid request: " + err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return inputError("invalid request: " + err.Error())
	}
	return nil
}

// encodeStruct converts v into a Struct through its JSON form.
func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}
	return out, nil
}

// respond encodes v, or maps err to a gRPC status.
func respond(v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, grpcError(err)
	}
	out, err := encodeStruct(v)
	if err != nil {
		return nil, grpcError(err)
	}
	return out, nil
}

func (s *Server) request(in *structpb.Struct) (*rpcRequest, error) {
	var req rpcRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	return &req, nil
}

// Health returns the service health status.
func (s *Server) Health(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return respond(map[string]string{"status": "ok"}, nil)
}

// AddClaim adds a claim to a deliberation.
func (s *Server) AddClaim(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	return respond(s.engine.AddClaim(ctx, req.DeliberationID, req.ActorID, req.Text))
}

// InstantiateArgument creates an argument from a scheme.
func (s *Server) InstantiateArgument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req engine.InstantiateRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	return respond(s.engine.InstantiateArgument(ctx, req))
}

// ApplyMove submits a dialogue move.
func (s *Server) ApplyMove(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req engine.MoveRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	return respond(s.engine.ApplyMove(ctx, req))
}

// MaterializeCQ answers a critical question with a counter-argument.
func (s *Server) MaterializeCQ(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	if req.QuestionID == "" || req.CounterArgumentID == "" {
		return nil, grpcError(inputError("critical_question_id and counter_argument_id are required"))
	}
	return respond(s.engine.MaterializeCQ(ctx, req.DeliberationID, req.ActorID, req.QuestionID, req.CounterArgumentID))
}

// GetLabels returns a labeling. A grounded request with min_version waits
// for that version until the call's deadline.
func (s *Server) GetLabels(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	if req.MinVersion > 0 && (req.Semantics == "" || req.Semantics == model.SemanticsGrounded) {
		return respond(s.engine.WaitForLabels(ctx, req.DeliberationID, req.MinVersion))
	}
	return respond(s.engine.GetLabels(ctx, req.DeliberationID, req.Semantics))
}

// GetObligations lists open obligations, or all of them with all set.
func (s *Server) GetObligations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	get := s.engine.GetOpenObligations
	if req.All {
		get = s.engine.GetObligations
	}
	obligations, err := get(ctx, req.DeliberationID)
	if err != nil {
		return nil, grpcError(err)
	}
	closed, err := s.engine.IsClosed(ctx, req.DeliberationID)
	if obligations == nil {
		obligations = []*model.Obligation{}
	}
	return respond(map[string]any{"obligations": obligations, "closed": closed}, err)
}

// GetCommitments returns an actor's commitment store.
func (s *Server) GetCommitments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	ids, err := s.engine.GetCommitmentStore(ctx, req.DeliberationID, req.ActorID)
	if ids == nil {
		ids = []string{}
	}
	return respond(map[string]any{"actor_id": req.ActorID, "commitments": ids}, err)
}

// ListCriticalQuestions lists the open questions of an argument, or of the
// whole deliberation when argument_id is empty. With all set, answered,
// conceded and deferred questions are included.
func (s *Server) ListCriticalQuestions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	qs, err := s.engine.ListCriticalQuestions(ctx, req.DeliberationID, req.ArgumentID)
	result := make([]*model.CriticalQuestion, 0, len(qs))
	for _, q := range qs {
		if req.All || q.Status == model.CQOpen {
			result = append(result, q)
		}
	}
	return respond(map[string]any{"critical_questions": result}, err)
}

// GetMoves returns the move log.
func (s *Server) GetMoves(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	moves, err := s.engine.GetMoves(ctx, req.DeliberationID)
	if moves == nil {
		moves = []*model.Move{}
	}
	return respond(map[string]any{"moves": moves}, err)
}

// GetGraph returns a snapshot of the argument graph.
func (s *Server) GetGraph(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	return respond(s.engine.Snapshot(ctx, req.DeliberationID))
}

// GetStats summarizes a deliberation.
func (s *Server) GetStats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	return respond(s.engine.GetStats(ctx, req.DeliberationID))
}

// GetConsensus reports commitment consensus per node.
func (s *Server) GetConsensus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	consensus, err := s.engine.GetConsensus(ctx, req.DeliberationID)
	return respond(map[string]any{"consensus": consensus}, err)
}

// Export returns the export artifact, or its AIF rendering with format
// "aif".
func (s *Server) Export(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	art, err := s.engine.Export(ctx, req.DeliberationID)
	if err != nil {
		return nil, grpcError(err)
	}
	switch req.Format {
	case "", "json":
		return respond(art, nil)
	case "aif":
		return respond(export.AIF(art), nil)
	}
	return nil, grpcError(inputError(fmt.Sprintf("unknown export format %q", req.Format)))
}

// ListDeliberations returns the ids of all deliberations.
func (s *Server) ListDeliberations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ids, err := s.engine.ListDeliberations(ctx)
	return respond(map[string]any{"deliberations": ids}, err)
}

// ListSchemes returns the scheme catalog.
func (s *Server) ListSchemes(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return respond(map[string]any{"schemes": s.engine.ListSchemes(ctx)}, nil)
}

// GetScheme returns one scheme.
func (s *Server) GetScheme(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}
	sc, err := s.engine.GetScheme(ctx, req.Key)
	if err != nil {
		return nil, grpcError(&model.NotFoundError{Kind: "scheme", ID: req.Key})
	}
	return respond(sc, nil)
}
