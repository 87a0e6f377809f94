// Package server exposes the resume operations over gRPC.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/abdhe/resume-ai-gateway/pkg/logging"
	"github.com/abdhe/resume-ai-gateway/pkg/metrics"
	"github.com/abdhe/resume-ai-gateway/pkg/orchestrator"
	"github.com/abdhe/resume-ai-gateway/pkg/provider"
	"github.com/abdhe/resume-ai-gateway/pkg/resume"
	"github.com/abdhe/resume-ai-gateway/pkg/structured"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "x-request-id"

// Client-facing messages. Provider diagnostics stay in the logs.
const (
	msgUnavailable    = "AI service temporarily unavailable, please try again later"
	msgUnintelligible = "could not understand AI response"
)

// Handler implements ResumeAIServer.
type Handler struct {
	svc            *resume.Service
	gen            resume.Generator
	requestTimeout time.Duration
}

// Config holds the handler configuration.
type Config struct {
	Generator      resume.Generator
	RequestTimeout time.Duration
}

// NewHandler creates a new handler.
func NewHandler(cfg Config) *Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	return &Handler{
		svc:            resume.NewService(cfg.Generator),
		gen:            cfg.Generator,
		requestTimeout: cfg.RequestTimeout,
	}
}

// NewGRPCServer builds a grpc.Server with the handler registered, the
// request interceptor installed and reflection enabled.
func NewGRPCServer(h *Handler, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(4 * 1024 * 1024),
		grpc.MaxSendMsgSize(16 * 1024 * 1024),
		grpc.ChainUnaryInterceptor(h.UnaryInterceptor()),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterResumeAIServer(s, h)
	reflection.Register(s)
	return s
}

// UnaryInterceptor applies the request timeout, tags the request with an id,
// records metrics and maps errors to gRPC statuses.
func (h *Handler) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		metrics.ActiveRequests.Inc()
		defer metrics.ActiveRequests.Dec()

		ctx, cancel := context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()

		id := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))

		method := info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]
		l := logging.With("request_id", id, "method", method)
		ctx = logging.NewContext(ctx, l)

		resp, cause := handler(ctx, req)
		var err error
		if cause != nil {
			err = toStatus(cause)
		}

		code := status.Code(err)
		metrics.RequestsTotal.WithLabelValues(method, code.String()).Inc()
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			l.Error("request failed", "code", code, "err", cause, "elapsed", elapsed)
		} else {
			l.Info("request complete", "elapsed", elapsed)
		}
		return resp, err
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 && strings.TrimSpace(v[0]) != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

// Generate runs the fallback chain for an arbitrary prompt pair.
//
// Request:  {"system_prompt": string, "user_prompt": string}
// Response: {"completion": string, "provider": string, "model": string}
func (h *Handler) Generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := provider.InvocationRequest{
		SystemPrompt: stringField(in, "system_prompt"),
		UserPrompt:   stringField(in, "user_prompt"),
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		return nil, status.Error(codes.InvalidArgument, "user_prompt is required")
	}

	res, err := h.gen.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"completion": res.CompletionText,
		"provider":   res.ProviderName,
		"model":      res.ModelName,
	})
}

// Score expects {"resume_text", "job_description"}.
func (h *Handler) Score(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return respond(h.svc.Score(ctx, resume.ScoreRequest{
		ResumeText:     stringField(in, "resume_text"),
		JobDescription: stringField(in, "job_description"),
	}))
}

// Optimize expects {"resume_text", "job_description"}.
func (h *Handler) Optimize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return respond(h.svc.Optimize(ctx, resume.OptimizeRequest{
		ResumeText:     stringField(in, "resume_text"),
		JobDescription: stringField(in, "job_description"),
	}))
}

// ParseJobDescription expects {"text"}.
func (h *Handler) ParseJobDescription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return respond(h.svc.ParseJobDescription(ctx, resume.JobDescriptionRequest{Text: stringField(in, "text")}))
}

// ParseResume expects {"text"}.
func (h *Handler) ParseResume(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return respond(h.svc.ParseResume(ctx, resume.ParseResumeRequest{Text: stringField(in, "text")}))
}

// respond wraps a payload as {"result": {...}, "provider", "model"}.
func respond(resp *resume.Response, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"result":   map[string]any(resp.Payload),
		"provider": resp.Provider,
		"model":    resp.Model,
	})
}

func stringField(in *structpb.Struct, name string) string {
	return in.GetFields()[name].GetStringValue()
}

// toStatus maps domain errors to gRPC statuses.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var ve *resume.ValidationError
	switch {
	case errors.Is(err, resume.ErrMissingInput), errors.Is(err, orchestrator.ErrEmptyPrompt):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, orchestrator.ErrAllProvidersFailed):
		return status.Error(codes.Unavailable, msgUnavailable)
	case errors.Is(err, structured.ErrMalformedCompletion), errors.As(err, &ve):
		return status.Error(codes.Internal, msgUnintelligible)
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
