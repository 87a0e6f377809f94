package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/resume-ai-gateway/pkg/logging"
	"github.com/abdhe/resume-ai-gateway/pkg/provider"
)

// fakeProvider answers with the given statuses in order, repeating the last.
type fakeProvider struct {
	*httptest.Server
	calls    atomic.Int32
	statuses []int
	body     string
	onCall   func(n int)
}

func newFakeProvider(t *testing.T, body string, statuses ...int) *fakeProvider {
	t.Helper()
	return newHookedProvider(t, body, nil, statuses...)
}

// newHookedProvider calls onCall with the 1-based call number before responding.
func newHookedProvider(t *testing.T, body string, onCall func(n int), statuses ...int) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{statuses: statuses, body: body, onCall: onCall}
	fp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(fp.calls.Add(1))
		if fp.onCall != nil {
			fp.onCall(n)
		}
		idx := n - 1
		if idx >= len(fp.statuses) {
			idx = len(fp.statuses) - 1
		}
		w.WriteHeader(fp.statuses[idx])
		_, _ = w.Write([]byte(fp.body))
	}))
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakeProvider) descriptor(name string) provider.Descriptor {
	return provider.Descriptor{
		Name:          name,
		Endpoint:      fp.URL,
		CredentialKey: "TEST_KEY",
		Model:         "test-model",
		Priority:      1,
		Adapter:       provider.ChatCompletionsAdapter{},
	}
}

func allCreds() CredentialSource {
	return CredentialFunc(func(string) (string, bool) { return "secret-key", true })
}

func fastConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, AttemptTimeout: 2 * time.Second}
}

func newTestInvoker(cfg RetryConfig, opts ...InvokerOption) *Invoker {
	opts = append([]InvokerOption{WithCredentials(allCreds()), WithLogger(logging.Discard())}, opts...)
	return NewInvoker(cfg, opts...)
}

var testReq = provider.InvocationRequest{SystemPrompt: "sys", UserPrompt: "user"}

func TestInvoke_Success(t *testing.T) {
	fp := newFakeProvider(t, `{"choices":[{"message":{"content":"{}"}}]}`, http.StatusOK)

	out := newTestInvoker(fastConfig()).Invoke(context.Background(), fp.descriptor("p"), testReq)

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Contains(t, string(out.Body), "choices")
	assert.EqualValues(t, 1, fp.calls.Load())
}

func TestInvoke_ServerErrorExhaustsRetries(t *testing.T) {
	fp := newFakeProvider(t, "boom", http.StatusInternalServerError)

	out := newTestInvoker(fastConfig()).Invoke(context.Background(), fp.descriptor("p"), testReq)

	assert.Equal(t, OutcomeExhausted, out.Kind)
	assert.Equal(t, 2, out.Attempts)
	assert.EqualValues(t, 2, fp.calls.Load())
	var se *StatusError
	require.ErrorAs(t, out.Err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
}

func TestInvoke_MaxRetriesHonoured(t *testing.T) {
	fp := newFakeProvider(t, "boom", http.StatusBadGateway)
	cfg := fastConfig()
	cfg.MaxRetries = 4

	out := newTestInvoker(cfg).Invoke(context.Background(), fp.descriptor("p"), testReq)

	assert.Equal(t, OutcomeExhausted, out.Kind)
	assert.EqualValues(t, 4, fp.calls.Load())
}

func TestInvoke_RateLimitFallsBackWithoutRetry(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusPaymentRequired} {
		fp := newFakeProvider(t, "slow down", status)

		out := newTestInvoker(fastConfig()).Invoke(context.Background(), fp.descriptor("p"), testReq)

		assert.Equal(t, OutcomeFallback, out.Kind, "status %d", status)
		assert.Equal(t, status, out.Status)
		assert.Equal(t, 1, out.Attempts)
		assert.EqualValues(t, 1, fp.calls.Load())
	}
}

func TestInvoke_RetryThenSuccess(t *testing.T) {
	fp := newFakeProvider(t, `{}`, http.StatusServiceUnavailable, http.StatusOK)

	out := newTestInvoker(fastConfig()).Invoke(context.Background(), fp.descriptor("p"), testReq)

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, 2, out.Attempts)
}

func TestInvoke_MissingCredential(t *testing.T) {
	fp := newFakeProvider(t, `{}`, http.StatusOK)
	inv := NewInvoker(fastConfig(),
		WithCredentials(CredentialFunc(func(string) (string, bool) { return "", false })),
		WithLogger(logging.Discard()),
	)

	out := inv.Invoke(context.Background(), fp.descriptor("p"), testReq)

	assert.Equal(t, OutcomeFallback, out.Kind)
	assert.Equal(t, ReasonNotConfigured, out.Reason)
	assert.Zero(t, out.Attempts)
	assert.EqualValues(t, 0, fp.calls.Load())
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("RESUMEAI_TEST_KEY", "abc")
	t.Setenv("RESUMEAI_BLANK_KEY", "   ")

	v, ok := EnvCredentials{}.Lookup("RESUMEAI_TEST_KEY")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = EnvCredentials{}.Lookup("RESUMEAI_BLANK_KEY")
	assert.False(t, ok)

	_, ok = EnvCredentials{}.Lookup("RESUMEAI_UNSET_KEY")
	assert.False(t, ok)
}

func TestInvoke_TransportErrorExhausts(t *testing.T) {
	fp := newFakeProvider(t, `{}`, http.StatusOK)
	d := fp.descriptor("p")
	fp.Close()

	out := newTestInvoker(fastConfig()).Invoke(context.Background(), d, testReq)

	assert.Equal(t, OutcomeExhausted, out.Kind)
	assert.Equal(t, 2, out.Attempts)
	assert.Zero(t, out.Status)
	assert.Error(t, out.Err)
}

func TestInvoke_TransportErrorRedactsQueryKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"plain key", "secret-key"},
		{"key needing query escaping", "AIza/abc+def=="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := newFakeProvider(t, `{}`, http.StatusOK)
			d := fp.descriptor("gemini")
			d.Adapter = provider.GenerativeTextAdapter{}
			fp.Close()

			creds := CredentialFunc(func(string) (string, bool) { return tt.key, true })
			out := newTestInvoker(fastConfig(), WithCredentials(creds)).Invoke(context.Background(), d, testReq)

			require.Equal(t, OutcomeExhausted, out.Kind)
			for _, leaked := range []string{tt.key, url.QueryEscape(tt.key)} {
				assert.NotContains(t, out.Reason, leaked)
				assert.NotContains(t, out.Err.Error(), leaked)
			}
			assert.Contains(t, out.Reason, "REDACTED")
		})
	}
}

func TestStatusError_SnippetKeepsRunesWhole(t *testing.T) {
	// 511 ASCII bytes then a two-byte rune straddling the 512-byte cut.
	body := strings.Repeat("a", 511) + "é" + strings.Repeat("b", 100)

	err := statusError("openai", http.StatusBadGateway, []byte(body))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, utf8.ValidString(se.Body))
	assert.Equal(t, strings.Repeat("a", 511)+"...", se.Body)
}

func TestInvoke_AttemptTimeoutIsRetried(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	fp := newHookedProvider(t, `{}`, func(int) {
		select {
		case <-release:
		case <-time.After(time.Second):
		}
	}, http.StatusOK)

	cfg := fastConfig()
	cfg.AttemptTimeout = 50 * time.Millisecond

	out := newTestInvoker(cfg).Invoke(context.Background(), fp.descriptor("p"), testReq)

	assert.Equal(t, OutcomeExhausted, out.Kind)
	assert.Equal(t, 2, out.Attempts)
}

func TestInvoke_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel once the 500 has been delivered and the invoker is sleeping.
	fp := newHookedProvider(t, "boom", func(int) {
		time.AfterFunc(100*time.Millisecond, cancel)
	}, http.StatusInternalServerError)

	cfg := fastConfig()
	cfg.BaseDelay = 10 * time.Second

	start := time.Now()
	out := newTestInvoker(cfg).Invoke(ctx, fp.descriptor("p"), testReq)

	assert.Equal(t, OutcomeCancelled, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.EqualValues(t, 1, fp.calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInvoke_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fp := newFakeProvider(t, `{}`, http.StatusOK)
	out := newTestInvoker(fastConfig()).Invoke(ctx, fp.descriptor("p"), testReq)

	assert.Equal(t, OutcomeCancelled, out.Kind)
	assert.EqualValues(t, 0, fp.calls.Load())
}

func TestInvoke_CircuitOpensAfterExhaustion(t *testing.T) {
	fp := newFakeProvider(t, "boom", http.StatusInternalServerError)
	breakers := NewBreakerSet(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	inv := newTestInvoker(fastConfig(), WithBreakers(breakers))

	first := inv.Invoke(context.Background(), fp.descriptor("p"), testReq)
	require.Equal(t, OutcomeExhausted, first.Kind)

	second := inv.Invoke(context.Background(), fp.descriptor("p"), testReq)
	assert.Equal(t, OutcomeFallback, second.Kind)
	assert.Equal(t, ReasonCircuitOpen, second.Reason)
	assert.ErrorIs(t, second.Err, ErrCircuitOpen)
	assert.EqualValues(t, 2, fp.calls.Load())
}

func TestRetryConfig_LinearBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.Backoff(1))
	assert.Equal(t, 2*time.Second, cfg.Backoff(2))
}

func TestNewInvoker_Defaults(t *testing.T) {
	inv := NewInvoker(RetryConfig{})
	assert.Equal(t, 2, inv.Config().MaxRetries)
	assert.Equal(t, 30*time.Second, inv.Config().AttemptTimeout)
}

func TestRetryConfig_WithDefaultsKeepsZeroDelay(t *testing.T) {
	rc := RetryConfig{MaxRetries: 0, BaseDelay: 0, AttemptTimeout: 0}.WithDefaults()
	assert.Equal(t, 2, rc.MaxRetries)
	assert.Zero(t, rc.BaseDelay)
	assert.Equal(t, 30*time.Second, rc.AttemptTimeout)

	rc = RetryConfig{MaxRetries: 5, BaseDelay: -time.Second, AttemptTimeout: time.Second}.WithDefaults()
	assert.Equal(t, RetryConfig{MaxRetries: 5, BaseDelay: 0, AttemptTimeout: time.Second}, rc)
}
