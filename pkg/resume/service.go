// Package resume holds the resume operations built on top of the fallback
// chain: scoring, optimisation and document parsing.
package resume

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/abdhe/resume-ai-gateway/pkg/logging"
	"github.com/abdhe/resume-ai-gateway/pkg/orchestrator"
	"github.com/abdhe/resume-ai-gateway/pkg/provider"
	"github.com/abdhe/resume-ai-gateway/pkg/structured"
)

// ErrMissingInput is returned when a required field is blank.
var ErrMissingInput = errors.New("resume: missing input")

// Generator produces a completion for a prompt pair. The orchestrator and
// the cached decorator both satisfy it.
type Generator interface {
	Invoke(ctx context.Context, req provider.InvocationRequest) (*orchestrator.Result, error)
}

// ValidationError reports a completion that parsed but lacks the fields an
// operation needs.
type ValidationError struct {
	Op    string
	Field string
	Want  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("resume: %s: field %q must be %s", e.Op, e.Field, e.Want)
}

type (
	ScoreRequest struct {
		ResumeText     string
		JobDescription string
	}
	OptimizeRequest struct {
		ResumeText     string
		JobDescription string
	}
	JobDescriptionRequest struct {
		Text string
	}
	ParseResumeRequest struct {
		Text string
	}
)

// Response is a validated payload plus the provider that produced it.
type Response struct {
	Payload  structured.Payload
	Provider string
	Model    string
}

// Service runs the resume operations against a Generator.
type Service struct {
	gen Generator
	log *log.Logger
}

// NewService creates a Service.
func NewService(gen Generator) *Service {
	return &Service{gen: gen, log: logging.With("component", "resume")}
}

// Score rates how well a resume matches a job description.
func (s *Service) Score(ctx context.Context, req ScoreRequest) (*Response, error) {
	if err := required("resume_text", req.ResumeText, "job_description", req.JobDescription); err != nil {
		return nil, err
	}
	return s.run(ctx, "score", scoreSystemPrompt, scoreUserPrompt(req.ResumeText, req.JobDescription), requireNumber("score"))
}

// Optimize suggests edits that bring a resume closer to a job description.
func (s *Service) Optimize(ctx context.Context, req OptimizeRequest) (*Response, error) {
	if err := required("resume_text", req.ResumeText, "job_description", req.JobDescription); err != nil {
		return nil, err
	}
	return s.run(ctx, "optimize", optimizeSystemPrompt, optimizeUserPrompt(req.ResumeText, req.JobDescription), requireArray("suggestions"))
}

// ParseJobDescription extracts keywords and requirements from a job posting.
func (s *Service) ParseJobDescription(ctx context.Context, req JobDescriptionRequest) (*Response, error) {
	if err := required("text", req.Text); err != nil {
		return nil, err
	}
	return s.run(ctx, "parse_job_description", jobDescriptionSystemPrompt, jobDescriptionUserPrompt(req.Text), requireArray("keywords"))
}

// ParseResume extracts contact details and work history from resume text.
func (s *Service) ParseResume(ctx context.Context, req ParseResumeRequest) (*Response, error) {
	if err := required("text", req.Text); err != nil {
		return nil, err
	}
	return s.run(ctx, "parse_resume", parseResumeSystemPrompt, parseResumeUserPrompt(req.Text), requireResumeShape)
}

type validator func(op string, p structured.Payload) error

func (s *Service) run(ctx context.Context, op, system, user string, validate validator) (*Response, error) {
	res, err := s.gen.Invoke(ctx, provider.InvocationRequest{SystemPrompt: system, UserPrompt: user})
	if err != nil {
		return nil, fmt.Errorf("resume: %s: %w", op, err)
	}

	l := logging.FromContextOr(ctx, s.log).With("op", op, "provider", res.ProviderName)

	payload, err := structured.Parse(res.CompletionText)
	if err != nil {
		l.Error("could not parse completion", "err", err)
		return nil, fmt.Errorf("resume: %s: %w", op, err)
	}
	if err := validate(op, payload); err != nil {
		l.Error("completion failed validation", "err", err)
		return nil, err
	}

	l.Debug("operation complete", "fields", len(payload))
	return &Response{Payload: payload, Provider: res.ProviderName, Model: res.ModelName}, nil
}

// required takes name/value pairs.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingInput, pairs[i])
		}
	}
	return nil
}

func requireNumber(field string) validator {
	return func(op string, p structured.Payload) error {
		if _, ok := p[field].(float64); !ok {
			return &ValidationError{Op: op, Field: field, Want: "a number"}
		}
		return nil
	}
}

func requireArray(field string) validator {
	return func(op string, p structured.Payload) error {
		if _, ok := p[field].([]any); !ok {
			return &ValidationError{Op: op, Field: field, Want: "an array"}
		}
		return nil
	}
}

func requireResumeShape(op string, p structured.Payload) error {
	switch p["contact"].(type) {
	case map[string]any, string:
		return nil
	}
	if _, ok := p["experience"].([]any); ok {
		return nil
	}
	return &ValidationError{Op: op, Field: "contact", Want: "an object or string, or experience an array"}
}
