package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/charmbracelet/log"

	"github.com/abdhe/resume-ai-gateway/pkg/logging"
	"github.com/abdhe/resume-ai-gateway/pkg/metrics"
	"github.com/abdhe/resume-ai-gateway/pkg/orchestrator"
	"github.com/abdhe/resume-ai-gateway/pkg/provider"
)

// KeyPrefix namespaces completion keys in Redis.
const KeyPrefix = "resumeai:completion:"

// Generator is the call being cached.
type Generator interface {
	Invoke(ctx context.Context, req provider.InvocationRequest) (*orchestrator.Result, error)
}

// Store is the backing key/value store.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
}

// CachedGenerator serves repeated prompt pairs from the store and forwards
// everything else to the wrapped Generator.
//
// Flow:
//  1. Hash the prompt pair into a key.
//  2. On a hit, return the stored completion.
//  3. On a miss, call the generator and store a non-empty result.
//
// Store errors are logged and treated as a miss.
type CachedGenerator struct {
	next  Generator
	store Store
	log   *log.Logger
}

// NewCachedGenerator wraps next with store.
func NewCachedGenerator(next Generator, store Store) *CachedGenerator {
	return &CachedGenerator{next: next, store: store, log: logging.With("component", "cache")}
}

// Key returns the store key for a prompt pair.
func Key(req provider.InvocationRequest) string {
	h := sha256.New()
	h.Write([]byte(req.SystemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(req.UserPrompt))
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Invoke implements Generator.
func (c *CachedGenerator) Invoke(ctx context.Context, req provider.InvocationRequest) (*orchestrator.Result, error) {
	l := logging.FromContextOr(ctx, c.log)
	key := Key(req)

	e, found, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CompletionCacheLookupsTotal.WithLabelValues("error").Inc()
		l.Warn("cache get failed, treating as miss", "err", err)
	case found:
		metrics.CompletionCacheLookupsTotal.WithLabelValues("hit").Inc()
		l.Debug("cache hit", "provider", e.Provider)
		return &orchestrator.Result{CompletionText: e.Completion, ProviderName: e.Provider, ModelName: e.Model}, nil
	default:
		metrics.CompletionCacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	res, err := c.next.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.CompletionText == "" {
		return res, nil
	}

	if err := c.store.Set(ctx, key, Entry{Completion: res.CompletionText, Provider: res.ProviderName, Model: res.ModelName}); err != nil {
		l.Warn("cache set failed", "err", err)
	}
	return res, nil
}
