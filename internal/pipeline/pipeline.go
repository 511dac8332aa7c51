// Package pipeline runs the five-stage analysis workflow for one
// submitted feedback item: fetch the raw payload, classify it, embed it,
// upsert the vector, and finalize the item record. Stages run on the
// workflow engine so each boundary is checkpointed and re-entrant.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feedbackd/internal/analysis"
	"feedbackd/internal/blob"
	"feedbackd/internal/inference"
	"feedbackd/internal/metrics"
	"feedbackd/internal/storage"
	"feedbackd/internal/vector"
	"feedbackd/internal/workflow"
)

// ErrMissingPayload marks the one unrecoverable pipeline fault: the raw
// blob for an item is gone and cannot self-heal, so retrying is useless.
var ErrMissingPayload = errors.New("raw payload missing")

const (
	StageFetchRaw     = "fetch_raw"
	StageClassify     = "classify"
	StageEmbed        = "embed"
	StageUpsertVector = "upsert_vector"
	StageFinalize     = "finalize"
)

type rawOutput struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type classifyOutput struct {
	storage.Annotations
}

type embedOutput struct {
	// Vector is null when the provider was unavailable; the pipeline
	// continues so classification results still get recorded.
	Vector []float32 `json:"vector"`
}

type upsertOutput struct {
	// VectorID is empty when no vector was stored; the item then only
	// participates in keyword search until the backfill job catches up.
	VectorID string `json:"vectorId"`
}

type Pipeline struct {
	engine   *workflow.Engine
	store    storage.Store
	blobs    blob.Store
	index    vector.Index
	provider inference.Provider
}

func New(engine *workflow.Engine, store storage.Store, blobs blob.Store, index vector.Index, provider inference.Provider) *Pipeline {
	return &Pipeline{
		engine:   engine,
		store:    store,
		blobs:    blobs,
		index:    index,
		provider: provider,
	}
}

// Process executes the full workflow for one item. On an exhausted or
// permanent failure the item is marked FAILED; it is never marked
// COMPLETED unless the finalize write succeeded.
func (p *Pipeline) Process(ctx context.Context, itemID string) error {
	err := p.engine.Execute(ctx, itemID, p.steps(itemID))
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		slog.Error("Pipeline run failed",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()))

		if markErr := p.store.MarkFailed(ctx, itemID); markErr != nil {
			slog.Error("Failed to mark item as failed",
				slog.String("item_id", itemID),
				slog.String("error", markErr.Error()))
		}
		return err
	}

	metrics.PipelineRuns.WithLabelValues("success").Inc()
	slog.Info("Pipeline run completed", slog.String("item_id", itemID))
	return nil
}

func (p *Pipeline) steps(itemID string) []workflow.Step {
	return []workflow.Step{
		{
			Name:        StageFetchRaw,
			MaxAttempts: 3,
			Do:          p.fetchRaw(itemID),
		},
		{
			Name: StageClassify,
			Do:   p.classify(itemID),
		},
		{
			Name: StageEmbed,
			Do:   p.embed(itemID),
		},
		{
			Name: StageUpsertVector,
			Do:   p.upsertVector(itemID),
		},
		{
			Name:        StageFinalize,
			MaxAttempts: 5,
			Do:          p.finalize(itemID),
		},
	}
}

func (p *Pipeline) fetchRaw(itemID string) func(ctx context.Context, run *workflow.Run) (interface{}, error) {
	return func(ctx context.Context, run *workflow.Run) (interface{}, error) {
		payload, err := p.blobs.Get(ctx, itemID)
		if errors.Is(err, blob.ErrNotFound) {
			return nil, workflow.Permanent(fmt.Errorf("%w: %v", ErrMissingPayload, err))
		}
		if err != nil {
			return nil, err
		}

		return rawOutput{Text: payload.Text, Source: payload.Source}, nil
	}
}

func (p *Pipeline) classify(itemID string) func(ctx context.Context, run *workflow.Run) (interface{}, error) {
	return func(ctx context.Context, run *workflow.Run) (interface{}, error) {
		var raw rawOutput
		if err := run.Output(StageFetchRaw, &raw); err != nil {
			return nil, workflow.Permanent(err)
		}

		sentiment, err := p.provider.Sentiment(ctx, raw.Text)
		if err != nil {
			// Provider outage must not block classification results;
			// fall back to the lexicon heuristic.
			slog.Warn("Sentiment inference unavailable, using lexicon fallback",
				slog.String("item_id", itemID),
				slog.String("error", err.Error()))
			sentiment = analysis.FallbackSentiment(raw.Text)
		}

		result := analysis.Classify(raw.Text)
		return classifyOutput{Annotations: storage.Annotations{
			Sentiment: sentiment,
			Category:  result.Category,
			Urgency:   result.Urgency,
			Summary:   result.Summary,
			Tags:      result.Tags,
		}}, nil
	}
}

func (p *Pipeline) embed(itemID string) func(ctx context.Context, run *workflow.Run) (interface{}, error) {
	return func(ctx context.Context, run *workflow.Run) (interface{}, error) {
		var raw rawOutput
		if err := run.Output(StageFetchRaw, &raw); err != nil {
			return nil, workflow.Permanent(err)
		}

		embedding, err := p.provider.Embed(ctx, raw.Text)
		if err != nil {
			// A missing embedding only degrades search for this item;
			// sentiment and category must still reach the store.
			slog.Warn("Embedding unavailable, continuing with null vector",
				slog.String("item_id", itemID),
				slog.String("error", err.Error()))
			return embedOutput{Vector: nil}, nil
		}

		return embedOutput{Vector: embedding}, nil
	}
}

func (p *Pipeline) upsertVector(itemID string) func(ctx context.Context, run *workflow.Run) (interface{}, error) {
	return func(ctx context.Context, run *workflow.Run) (interface{}, error) {
		var embedded embedOutput
		if err := run.Output(StageEmbed, &embedded); err != nil {
			return nil, workflow.Permanent(err)
		}

		if len(embedded.Vector) == 0 {
			return upsertOutput{VectorID: ""}, nil
		}

		var classified classifyOutput
		if err := run.Output(StageClassify, &classified); err != nil {
			return nil, workflow.Permanent(err)
		}

		meta := vector.Metadata{
			ItemID:    itemID,
			Sentiment: classified.Sentiment,
			Category:  classified.Category,
		}
		if err := p.index.Upsert(ctx, itemID, embedded.Vector, meta); err != nil {
			slog.Warn("Vector upsert failed, item will rely on keyword search",
				slog.String("item_id", itemID),
				slog.String("error", err.Error()))
			return upsertOutput{VectorID: ""}, nil
		}

		return upsertOutput{VectorID: itemID}, nil
	}
}

func (p *Pipeline) finalize(itemID string) func(ctx context.Context, run *workflow.Run) (interface{}, error) {
	return func(ctx context.Context, run *workflow.Run) (interface{}, error) {
		var classified classifyOutput
		if err := run.Output(StageClassify, &classified); err != nil {
			return nil, workflow.Permanent(err)
		}
		var upserted upsertOutput
		if err := run.Output(StageUpsertVector, &upserted); err != nil {
			return nil, workflow.Permanent(err)
		}

		if err := p.store.CompleteProcessing(ctx, itemID, classified.Annotations, upserted.VectorID); err != nil {
			return nil, err
		}

		return map[string]bool{"completed": true}, nil
	}
}
