// Package search implements hybrid lookup over the feedback corpus:
// nearest-neighbor search over embeddings with a keyword-scan fallback,
// plus the relevance scoring attached to every hit.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedbackd/internal/inference"
	"feedbackd/internal/metrics"
	"feedbackd/internal/storage"
	"feedbackd/internal/vector"
)

// ErrInvalidQuery rejects empty or whitespace-only queries.
var ErrInvalidQuery = errors.New("query must not be empty")

// ErrUnavailable means both the vector and the keyword attempt failed;
// a single-mode failure is absorbed by falling back, never surfaced.
var ErrUnavailable = errors.New("search unavailable")

const defaultTopK = 10

type Result struct {
	Item      *storage.FeedbackItem `json:"item"`
	Relevance Relevance             `json:"relevance"`
}

type Diagnostics struct {
	Mode    Mode     `json:"mode"`
	Steps   []string `json:"steps"`
	Summary string   `json:"summary"`
}

type Response struct {
	Results     []Result    `json:"results"`
	Mode        Mode        `json:"mode"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

type Engine struct {
	provider inference.Provider
	index    vector.Index
	store    storage.Store
	topK     int
}

func NewEngine(provider inference.Provider, index vector.Index, store storage.Store) *Engine {
	return &Engine{
		provider: provider,
		index:    index,
		store:    store,
		topK:     defaultTopK,
	}
}

// Search runs the vector path first and falls back to a keyword scan on
// any vector-path error or an empty candidate set. Results keep the
// upstream ranking (nearest-neighbor order, or recency for keyword mode)
// and are never re-sorted by the computed relevance score.
func (e *Engine) Search(ctx context.Context, query string) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		metrics.SearchesTotal.WithLabelValues("none", "invalid").Inc()
		return nil, ErrInvalidQuery
	}

	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	steps := []string{"validate query"}

	results, vectorSteps, vectorErr := e.vectorSearch(ctx, query)
	steps = append(steps, vectorSteps...)

	if vectorErr == nil && len(results) > 0 {
		steps = append(steps, "score results")
		metrics.SearchesTotal.WithLabelValues(string(ModeVector), "success").Inc()
		return e.respond(ModeVector, results, steps), nil
	}

	if vectorErr != nil {
		slog.Warn("Vector search failed, falling back to keyword mode",
			slog.String("query", query),
			slog.String("error", vectorErr.Error()))
	}
	metrics.SearchFallbacks.Inc()
	steps = append(steps, "fall back to keyword scan")

	items, keywordErr := e.store.SearchKeyword(ctx, query, e.topK)
	if keywordErr != nil {
		metrics.SearchesTotal.WithLabelValues(string(ModeKeyword), "error").Inc()
		if vectorErr != nil {
			return nil, fmt.Errorf("%w: vector: %v; keyword: %v", ErrUnavailable, vectorErr, keywordErr)
		}
		return nil, fmt.Errorf("%w: keyword: %v", ErrUnavailable, keywordErr)
	}

	results = make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, Result{
			Item:      item,
			Relevance: ScoreResult(ModeKeyword, 0, query, item.RawText),
		})
	}

	steps = append(steps, "score results")
	metrics.SearchesTotal.WithLabelValues(string(ModeKeyword), "success").Inc()
	return e.respond(ModeKeyword, results, steps), nil
}

// vectorSearch embeds the query, asks the index for the top-K neighbors
// and hydrates the matching items. IDs the store no longer knows are
// dropped silently, not errored.
func (e *Engine) vectorSearch(ctx context.Context, query string) ([]Result, []string, error) {
	steps := []string{"embed query"}

	embedding, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, steps, fmt.Errorf("failed to embed query: %w", err)
	}

	steps = append(steps, "query vector index")
	matches, err := e.index.Query(ctx, embedding, e.topK)
	if err != nil {
		return nil, steps, fmt.Errorf("vector index query failed: %w", err)
	}
	if len(matches) == 0 {
		return nil, steps, nil
	}

	steps = append(steps, "hydrate matched items")
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	items, err := e.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, steps, fmt.Errorf("failed to hydrate results: %w", err)
	}

	// preserve nearest-neighbor order
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		item, ok := items[m.ID]
		if !ok {
			continue
		}
		results = append(results, Result{
			Item:      item,
			Relevance: ScoreResult(ModeVector, m.Similarity, query, item.RawText),
		})
	}

	return results, steps, nil
}

func (e *Engine) respond(mode Mode, results []Result, steps []string) *Response {
	noun := "results"
	if len(results) == 1 {
		noun = "result"
	}

	return &Response{
		Results: results,
		Mode:    mode,
		Diagnostics: Diagnostics{
			Mode:    mode,
			Steps:   steps,
			Summary: fmt.Sprintf("%d %s via %s mode", len(results), noun, mode),
		},
	}
}
