// Package search recommends catalog models for a free-text need, by
// embedding similarity when the provider is reachable and by keyword otherwise.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"logicforge/internal/domain"
	"logicforge/internal/metrics"
)

const (
	DefaultLimit = 5
	MaxLimit     = 50

	StrategySemantic = "semantic"
	StrategyKeyword  = "keyword"
)

// Fallback reasons reported on degraded results.
const (
	ReasonProviderError     = "provider_error"
	ReasonTimeout           = "timeout"
	ReasonEmptyVector       = "empty_vector"
	ReasonDimensionMismatch = "dimension_mismatch"
	ReasonEmptyIndex        = "empty_index"
	ReasonIndexError        = "index_error"
)

// Embedder turns text into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the catalog the chain reads from.
type Store interface {
	ListEmbeddedModels(ctx context.Context) ([]domain.ProvenModel, error)
	CatalogFingerprint(ctx context.Context) (string, error)
	SearchModelsByKeyword(ctx context.Context, query, theme string, limit int) ([]domain.ProvenModel, error)
}

type Query struct {
	Text  string
	Theme string
	Limit int
}

// Match is one recommended model. Distance is set for semantic matches only.
type Match struct {
	Model    domain.ProvenModel `json:"model"`
	Distance *float64           `json:"distance,omitempty"`
}

// Result is the outcome of a search. Degraded results came from the keyword
// strategy after the semantic one could not run, and Reason says why.
type Result struct {
	Strategy string  `json:"strategy" enum:"semantic,keyword"`
	Degraded bool    `json:"degraded"`
	Reason   string  `json:"reason,omitempty"`
	Matches  []Match `json:"matches"`
}

// Chain runs the semantic strategy and falls back to keyword matching.
type Chain struct {
	Embedder Embedder
	Store    Store
	Index    *Index
	Timeout  time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// NewChain builds a chain whose index accepts vectors of dims dimensions.
func NewChain(embedder Embedder, store Store, dims int, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		Embedder: embedder,
		Store:    store,
		Index:    NewIndex(dims),
		Timeout:  timeout,
		Logger:   logger,
		Metrics:  m,
	}
}

// NormalizeLimit applies the default and the cap.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Search never fails because of the embedding provider. The only error it
// returns comes from the keyword store.
func (c *Chain) Search(ctx context.Context, q Query) (Result, error) {
	q.Text = strings.TrimSpace(q.Text)
	q.Theme = strings.TrimSpace(q.Theme)
	q.Limit = NormalizeLimit(q.Limit)
	if q.Text == "" {
		return c.keyword(ctx, q, "")
	}
	matches, reason := c.semantic(ctx, q)
	if reason != "" {
		return c.keyword(ctx, q, reason)
	}
	c.Metrics.Search(StrategySemantic)
	return Result{Strategy: StrategySemantic, Matches: matches}, nil
}

// semantic returns the ranked matches, or the reason it could not produce them.
func (c *Chain) semantic(ctx context.Context, q Query) ([]Match, string) {
	if c.Embedder == nil {
		return nil, ReasonProviderError
	}
	fingerprint, err := c.Store.CatalogFingerprint(ctx)
	if err != nil {
		c.Logger.Warn("catalog fingerprint unavailable", zap.Error(err))
		return nil, ReasonIndexError
	}
	if err := c.Index.refresh(ctx, fingerprint, c.Store.ListEmbeddedModels); err != nil {
		c.Logger.Warn("search index rebuild failed", zap.Error(err))
		return nil, ReasonIndexError
	}
	if c.Index.candidates(q.Theme) == 0 {
		return nil, ReasonEmptyIndex
	}

	embedCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	vec, err := c.Embedder.EmbedQuery(embedCtx, q.Text)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(embedCtx.Err(), context.DeadlineExceeded):
		c.Logger.Debug("embedding timed out", zap.Error(err))
		return nil, ReasonTimeout
	case err != nil:
		c.Logger.Debug("embedding failed", zap.Error(err))
		return nil, ReasonProviderError
	case len(vec) == 0:
		return nil, ReasonEmptyVector
	case len(vec) != c.Index.dims:
		return nil, ReasonDimensionMismatch
	}

	matches, err := c.Index.query(ctx, vec, q.Theme, q.Limit)
	if err != nil {
		c.Logger.Warn("search index query failed", zap.Error(err))
		return nil, ReasonIndexError
	}
	return matches, ""
}

func (c *Chain) keyword(ctx context.Context, q Query, reason string) (Result, error) {
	if reason != "" {
		c.Logger.Warn("model search degraded to keyword matching",
			zap.String("reason", reason),
			zap.String("theme", q.Theme))
		c.Metrics.SearchFallback(reason)
	}
	models, err := c.Store.SearchModelsByKeyword(ctx, q.Text, q.Theme, q.Limit)
	if err != nil {
		return Result{}, fmt.Errorf("keyword search: %w", err)
	}
	matches := make([]Match, 0, len(models))
	for _, m := range models {
		matches = append(matches, Match{Model: m})
	}
	c.Metrics.Search(StrategyKeyword)
	return Result{
		Strategy: StrategyKeyword,
		Degraded: reason != "",
		Reason:   reason,
		Matches:  matches,
	}, nil
}
