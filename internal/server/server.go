package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server exposes an engine over HTTP and gRPC.
type Server struct {
	engine *engine.Engine
	hub    *Hub
	logger *slog.Logger
}

// New returns a Server for e. Events published to hub are streamed to
// clients of GET /v1/events/stream; hub may be nil when the stream is not
// served.
func New(e *engine.Engine, hub *Hub, logger *slog.Logger) *Server {
	if hub == nil {
		hub = NewHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: e, hub: hub, logger: logger}
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// errorClass groups engine errors by how transports report them.
type errorClass int

const (
	classInternal errorClass = iota
	classInvalid
	classConflict
	classNotFound
	classUnimplemented
)

func classify(err error) errorClass {
	var (
		ie   inputError
		verr *model.ValidationError
	)
	switch {
	case errors.As(err, &ie), errors.As(err, &verr):
		return classInvalid
	case errors.Is(err, model.ErrNotFound):
		return classNotFound
	case errors.Is(err, model.ErrIllegalMove), errors.Is(err, model.ErrCQClosed), errors.Is(err, store.ErrSeqConflict):
		return classConflict
	case errors.Is(err, model.ErrSemanticsReserved):
		return classUnimplemented
	case errors.Is(err, model.ErrGraphInvariant),
		errors.Is(err, model.ErrSupportCycle),
		errors.Is(err, model.ErrUnknownScheme),
		errors.Is(err, model.ErrSlotUnfilled),
		errors.Is(err, model.ErrUnknownPremise):
		return classInvalid
	}
	return classInternal
}

// httpStatus maps an engine error to an HTTP status code.
func httpStatus(err error) int {
	switch classify(err) {
	case classInvalid:
		return http.StatusBadRequest
	case classConflict:
		return http.StatusConflict
	case classNotFound:
		return http.StatusNotFound
	case classUnimplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// grpcError maps an engine error to a gRPC status error.
func grpcError(err error) error {
	switch classify(err) {
	case classInvalid:
		return status.Error(codes.InvalidArgument, err.Error())
	case classConflict:
		return status.Error(codes.FailedPrecondition, err.Error())
	case classNotFound:
		return status.Error(codes.NotFound, err.Error())
	case classUnimplemented:
		return status.Error(codes.Unimplemented, err.Error())
	}
	return status.Errorf(codes.Internal, "internal error: %v", err)
}
