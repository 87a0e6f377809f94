// Package resilience runs a single provider's retry budget and classifies
// what went wrong when it fails.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/abdhe/resume-ai-gateway/pkg/logging"
	"github.com/abdhe/resume-ai-gateway/pkg/metrics"
	"github.com/abdhe/resume-ai-gateway/pkg/provider"
)

const maxBodySize = 4 << 20 // 4MB

// RetryConfig holds the per-provider retry policy.
type RetryConfig struct {
	MaxRetries     int           // attempts per provider, including the first
	BaseDelay      time.Duration // backoff after attempt n is BaseDelay * n
	AttemptTimeout time.Duration // bound on a single HTTP call
}

// DefaultRetryConfig returns two attempts, 1s linear backoff and a 30s
// per-attempt timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		BaseDelay:      time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// WithDefaults fills a non-positive MaxRetries or AttemptTimeout from
// DefaultRetryConfig. A zero BaseDelay is kept: it means retry immediately.
func (c RetryConfig) WithDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	return c
}

// Backoff returns the wait after the given 1-based attempt number.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	return c.BaseDelay * time.Duration(attempt)
}

// OutcomeKind classifies how one provider's retry budget ended.
type OutcomeKind int

const (
	// OutcomeSuccess: the provider answered HTTP 200.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFallback: move to the next provider without retrying this one
	// (not configured, rate limited, out of credit, circuit open).
	OutcomeFallback
	// OutcomeExhausted: every attempt failed with a transient error.
	OutcomeExhausted
	// OutcomeCancelled: the caller's context ended.
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFallback:
		return "fallback"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of Invoker.Invoke for one provider.
type Outcome struct {
	Kind     OutcomeKind
	Body     []byte // raw response body on success
	Status   int    // last HTTP status seen, 0 when no response arrived
	Attempts int    // HTTP calls made
	Reason   string
	Err      error // last underlying error, if any
}

// Reasons reported for fallback outcomes.
const (
	ReasonNotConfigured   = "not configured"
	ReasonCircuitOpen     = "circuit open"
	ReasonRateLimited     = "rate limited"
	ReasonPaymentRequired = "payment required"
)

// CredentialSource resolves a descriptor's credential key at call time.
type CredentialSource interface {
	Lookup(key string) (string, bool)
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(key string) (string, bool)

func (f CredentialFunc) Lookup(key string) (string, bool) { return f(key) }

// EnvCredentials reads credentials from the process environment. Blank
// values count as missing.
type EnvCredentials struct{}

func (EnvCredentials) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Invoker executes one provider's full retry budget for a request.
type Invoker struct {
	client   *http.Client
	cfg      RetryConfig
	creds    CredentialSource
	breakers *BreakerSet
	log      *log.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) InvokerOption {
	return func(inv *Invoker) { inv.client = c }
}

// WithCredentials sets the credential source. Defaults to EnvCredentials.
func WithCredentials(src CredentialSource) InvokerOption {
	return func(inv *Invoker) { inv.creds = src }
}

// WithBreakers enables per-provider circuit breakers.
func WithBreakers(set *BreakerSet) InvokerOption {
	return func(inv *Invoker) { inv.breakers = set }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *log.Logger) InvokerOption {
	return func(inv *Invoker) { inv.log = l }
}

// NewInvoker creates an Invoker. cfg is normalised with WithDefaults.
func NewInvoker(cfg RetryConfig, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		client: &http.Client{},
		cfg:    cfg.WithDefaults(),
		creds:  EnvCredentials{},
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Config returns the effective retry configuration.
func (inv *Invoker) Config() RetryConfig { return inv.cfg }

// Invoke runs up to MaxRetries attempts against d. 429 and 402 end the budget
// immediately with OutcomeFallback; other failures are retried with linear
// backoff. The context is checked before every HTTP call and during every
// backoff sleep.
func (inv *Invoker) Invoke(ctx context.Context, d provider.Descriptor, req provider.InvocationRequest) Outcome {
	l := inv.logger(ctx).With("provider", d.Name, "model", d.Model)

	credential, ok := inv.creds.Lookup(d.CredentialKey)
	if !ok {
		l.Warn("provider not configured", "credential_key", d.CredentialKey)
		metrics.ProviderSkipsTotal.WithLabelValues(d.Name, "not_configured").Inc()
		return Outcome{Kind: OutcomeFallback, Reason: ReasonNotConfigured}
	}

	cb := inv.breakers.For(d.Name)
	if cb != nil && !cb.Allow() {
		l.Warn("provider skipped, circuit open")
		metrics.ProviderSkipsTotal.WithLabelValues(d.Name, "circuit_open").Inc()
		return Outcome{Kind: OutcomeFallback, Reason: ReasonCircuitOpen, Err: ErrCircuitOpen}
	}

	var last attemptResult
	for n := 1; n <= inv.cfg.MaxRetries; n++ {
		if err := ctx.Err(); err != nil {
			return inv.cancelled(l, cb, n-1, last, err)
		}

		start := time.Now()
		last = inv.attempt(ctx, d, credential, req)
		metrics.ProviderAttemptLatency.WithLabelValues(d.Name).Observe(time.Since(start).Seconds())

		// A transport error caused by the caller going away is not a provider fault.
		if last.kind == attemptRetryable && ctx.Err() != nil {
			metrics.ProviderAttemptsTotal.WithLabelValues(d.Name, "cancelled").Inc()
			return inv.cancelled(l, cb, n, last, ctx.Err())
		}
		metrics.ProviderAttemptsTotal.WithLabelValues(d.Name, last.kind.String()).Inc()

		switch last.kind {
		case attemptSuccess:
			l.Info("provider attempt", "attempt", n, "outcome", last.kind, "status", last.status)
			inv.record(cb, d.Name, true)
			return Outcome{Kind: OutcomeSuccess, Body: last.body, Status: last.status, Attempts: n}

		case attemptFallback:
			l.Warn("provider attempt", "attempt", n, "outcome", last.kind, "status", last.status, "reason", last.reason)
			inv.record(cb, d.Name, false)
			return Outcome{Kind: OutcomeFallback, Status: last.status, Attempts: n, Reason: last.reason, Err: last.err}
		}

		l.Warn("provider attempt", "attempt", n, "outcome", last.kind, "status", last.status, "reason", last.reason)
		if n == inv.cfg.MaxRetries {
			break
		}

		if err := ctx.Err(); err != nil {
			return inv.cancelled(l, cb, n, last, err)
		}
		delay := inv.cfg.Backoff(n)
		l.Debug("backing off", "attempt", n, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return inv.cancelled(l, cb, n, last, ctx.Err())
		case <-timer.C:
		}
	}

	l.Error("provider exhausted", "attempts", inv.cfg.MaxRetries, "reason", last.reason)
	inv.record(cb, d.Name, false)
	return Outcome{
		Kind:     OutcomeExhausted,
		Status:   last.status,
		Attempts: inv.cfg.MaxRetries,
		Reason:   fmt.Sprintf("retries exhausted after %d attempts: %s", inv.cfg.MaxRetries, last.reason),
		Err:      last.err,
	}
}

func (inv *Invoker) logger(ctx context.Context) *log.Logger {
	return logging.FromContextOr(ctx, inv.log)
}

func (inv *Invoker) cancelled(l *log.Logger, cb *CircuitBreaker, attempts int, last attemptResult, err error) Outcome {
	l.Info("provider invocation cancelled", "attempts", attempts, "err", err)
	if cb != nil {
		cb.Release()
	}
	return Outcome{Kind: OutcomeCancelled, Status: last.status, Attempts: attempts, Reason: "cancelled", Err: err}
}

func (inv *Invoker) record(cb *CircuitBreaker, name string, ok bool) {
	if cb == nil {
		return
	}
	if ok {
		cb.RecordSuccess()
	} else {
		cb.RecordFailure()
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(cb.State()))
}

// ---------------------------------------------------------------------------
// Single attempt
// ---------------------------------------------------------------------------

type attemptKind int

const (
	attemptSuccess attemptKind = iota
	attemptRetryable
	attemptFallback
)

func (k attemptKind) String() string {
	switch k {
	case attemptSuccess:
		return "success"
	case attemptRetryable:
		return "retryable"
	default:
		return "fallback"
	}
}

type attemptResult struct {
	kind   attemptKind
	status int
	body   []byte
	reason string
	err    error
}

func (inv *Invoker) attempt(ctx context.Context, d provider.Descriptor, credential string, req provider.InvocationRequest) attemptResult {
	ctx, cancel := context.WithTimeout(ctx, inv.cfg.AttemptTimeout)
	defer cancel()

	httpReq, err := provider.NewRequest(ctx, d, credential, req)
	if err != nil {
		// Catalog validation should make this unreachable; retrying cannot help.
		return attemptResult{kind: attemptFallback, reason: "build request: " + err.Error(), err: err}
	}

	resp, err := inv.client.Do(httpReq)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redact(uerr.URL, credential)
		}
		return attemptResult{kind: attemptRetryable, reason: "transport: " + redact(err.Error(), credential), err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	status := resp.StatusCode

	switch {
	case status == http.StatusOK:
		if readErr != nil {
			return attemptResult{kind: attemptRetryable, status: status, reason: "read body: " + readErr.Error(), err: readErr}
		}
		return attemptResult{kind: attemptSuccess, status: status, body: body}
	case status == http.StatusTooManyRequests:
		return attemptResult{kind: attemptFallback, status: status, reason: ReasonRateLimited, err: statusError(d.Name, status, body)}
	case status == http.StatusPaymentRequired:
		return attemptResult{kind: attemptFallback, status: status, reason: ReasonPaymentRequired, err: statusError(d.Name, status, body)}
	default:
		err := statusError(d.Name, status, body)
		return attemptResult{kind: attemptRetryable, status: status, reason: fmt.Sprintf("status %d", status), err: err}
	}
}

// StatusError is a non-200 provider response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.Status, e.Body)
}

func statusError(name string, status int, body []byte) error {
	const maxSnippet = 512
	s := string(body)
	if len(s) > maxSnippet {
		cut := maxSnippet
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return &StatusError{Provider: name, Status: status, Body: s}
}

// redact strips the credential from transport errors; url.Error includes the
// full URL, which carries the key, query-escaped, for query-authenticated
// providers.
func redact(msg, credential string) string {
	if credential == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, credential, "REDACTED")
	if escaped := url.QueryEscape(credential); escaped != credential {
		msg = strings.ReplaceAll(msg, escaped, "REDACTED")
	}
	return msg
}
