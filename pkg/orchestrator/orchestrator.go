// Package orchestrator walks the provider catalog in priority order and
// returns the first successful completion.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abdhe/resume-ai-gateway/pkg/logging"
	"github.com/abdhe/resume-ai-gateway/pkg/metrics"
	"github.com/abdhe/resume-ai-gateway/pkg/provider"
	"github.com/abdhe/resume-ai-gateway/pkg/resilience"
)

var (
	// ErrAllProvidersFailed is wrapped by AllProvidersFailedError.
	ErrAllProvidersFailed = errors.New("orchestrator: all providers failed")

	// ErrEmptyPrompt is returned before any provider is contacted.
	ErrEmptyPrompt = errors.New("orchestrator: empty user prompt")
)

// Invoker runs one provider's retry budget.
type Invoker interface {
	Invoke(ctx context.Context, d provider.Descriptor, req provider.InvocationRequest) resilience.Outcome
}

// Result is a successful orchestration.
type Result struct {
	CompletionText string
	ProviderName   string
	ModelName      string

	// Failures lists the providers that failed before the winner.
	Failures []ProviderFailure
}

// ProviderFailure records why one provider in the chain did not answer.
type ProviderFailure struct {
	Provider string
	Model    string
	Kind     resilience.OutcomeKind
	Status   int
	Attempts int
	Reason   string
	Err      error
}

func (f ProviderFailure) String() string {
	if f.Status > 0 {
		return fmt.Sprintf("%s/%s %s (status %d, %d attempts): %s", f.Provider, f.Model, f.Kind, f.Status, f.Attempts, f.Reason)
	}
	return fmt.Sprintf("%s/%s %s (%d attempts): %s", f.Provider, f.Model, f.Kind, f.Attempts, f.Reason)
}

// AllProvidersFailedError is returned when every provider in the catalog failed.
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s: [%s]", ErrAllProvidersFailed, strings.Join(parts, "; "))
}

func (e *AllProvidersFailedError) Unwrap() error { return ErrAllProvidersFailed }

// Orchestrator is the fallback chain over a fixed catalog. It holds no
// per-call state and is safe for concurrent use.
type Orchestrator struct {
	catalog *provider.Catalog
	invoker Invoker
	log     *log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used when the context carries none.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an Orchestrator over catalog.
func New(catalog *provider.Catalog, invoker Invoker, opts ...Option) (*Orchestrator, error) {
	if catalog == nil || catalog.Len() == 0 {
		return nil, provider.ErrEmptyCatalog
	}
	if invoker == nil {
		return nil, errors.New("orchestrator: nil invoker")
	}
	o := &Orchestrator{catalog: catalog, invoker: invoker}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// GenerateWithFallback is Invoke for a bare prompt pair.
func (o *Orchestrator) GenerateWithFallback(ctx context.Context, systemPrompt, userPrompt string) (*Result, error) {
	return o.Invoke(ctx, provider.InvocationRequest{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
}

// Invoke tries each provider in ascending priority until one succeeds. The
// first success wins. If the context ends, the chain stops and the context
// error is returned.
func (o *Orchestrator) Invoke(ctx context.Context, req provider.InvocationRequest) (*Result, error) {
	if strings.TrimSpace(req.UserPrompt) == "" {
		return nil, ErrEmptyPrompt
	}

	l := o.logger(ctx)
	start := time.Now()
	var failures []ProviderFailure

	for _, d := range o.catalog.Providers() {
		if err := ctx.Err(); err != nil {
			return nil, o.cancelled(l, err)
		}

		out := o.invoker.Invoke(ctx, d, req)

		switch out.Kind {
		case resilience.OutcomeSuccess:
			completion := o.extract(l, d, out.Body)
			metrics.InvocationsTotal.WithLabelValues("success").Inc()
			metrics.InvocationLatency.WithLabelValues(d.Name).Observe(time.Since(start).Seconds())
			l.Info("invocation succeeded", "provider", d.Name, "model", d.Model,
				"attempts", out.Attempts, "skipped", len(failures), "elapsed", time.Since(start).Round(time.Millisecond))
			return &Result{
				CompletionText: completion,
				ProviderName:   d.Name,
				ModelName:      d.Model,
				Failures:       failures,
			}, nil

		case resilience.OutcomeCancelled:
			return nil, o.cancelled(l, out.Err)
		}

		failures = append(failures, ProviderFailure{
			Provider: d.Name,
			Model:    d.Model,
			Kind:     out.Kind,
			Status:   out.Status,
			Attempts: out.Attempts,
			Reason:   out.Reason,
			Err:      out.Err,
		})
		l.Debug("falling back", "from", d.Name, "outcome", out.Kind, "reason", out.Reason)
	}

	metrics.InvocationsTotal.WithLabelValues("all_failed").Inc()
	metrics.InvocationLatency.WithLabelValues("none").Observe(time.Since(start).Seconds())

	err := &AllProvidersFailedError{Failures: failures}
	l.Error("all providers failed", "providers", len(failures), "err", err)
	return nil, err
}

// extract decodes the winning body and pulls out the completion. A body that
// is not JSON yields "", which the structured parser then reports.
func (o *Orchestrator) extract(l *log.Logger, d provider.Descriptor, body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		l.Warn("provider returned a non-JSON body", "provider", d.Name, "err", err)
		return ""
	}
	completion := d.Adapter.ExtractCompletion(v)
	if completion == "" {
		l.Warn("provider response has no completion text", "provider", d.Name)
	}
	return completion
}

func (o *Orchestrator) cancelled(l *log.Logger, err error) error {
	if err == nil {
		err = context.Canceled
	}
	metrics.InvocationsTotal.WithLabelValues("cancelled").Inc()
	l.Info("invocation cancelled", "err", err)
	return fmt.Errorf("orchestrator: %w", err)
}

func (o *Orchestrator) logger(ctx context.Context) *log.Logger {
	return logging.FromContextOr(ctx, o.log)
}
