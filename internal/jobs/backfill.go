package jobs

import (
	"context"
	"log/slog"
	"time"

	"feedbackd/internal/inference"
	"feedbackd/internal/metrics"
	"feedbackd/internal/storage"
	"feedbackd/internal/vector"
)

// VectorBackfillProcessor periodically re-embeds completed items whose
// pipeline run finished during a provider or index outage and therefore
// carry no vector. Until it catches up, those items are only reachable
// through keyword search.
type VectorBackfillProcessor struct {
	store     storage.Store
	index     vector.Index
	provider  inference.Provider
	batchSize int
	interval  time.Duration
	done      chan struct{}
}

func NewVectorBackfillProcessor(store storage.Store, index vector.Index, provider inference.Provider) *VectorBackfillProcessor {
	return &VectorBackfillProcessor{
		store:     store,
		index:     index,
		provider:  provider,
		batchSize: 10,               // small batches for cost control
		interval:  60 * time.Second, // spaced out to limit API calls
		done:      make(chan struct{}),
	}
}

// Start begins the background backfill loop
func (p *VectorBackfillProcessor) Start(ctx context.Context) {
	slog.Info("Starting vector backfill processor",
		slog.Int("batch_size", p.batchSize),
		slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Vector backfill processor stopped due to context cancellation")
			return
		case <-p.done:
			slog.Info("Vector backfill processor stopped")
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				slog.Error("Error processing backfill batch", "error", err)
			}
		}
	}
}

// Stop stops the background processing
func (p *VectorBackfillProcessor) Stop() {
	close(p.done)
}

func (p *VectorBackfillProcessor) processBatch(ctx context.Context) error {
	items, err := p.store.ListMissingVectors(ctx, p.batchSize)
	if err != nil {
		return err
	}

	metrics.ItemsMissingVectors.Set(float64(len(items)))
	if len(items) == 0 {
		slog.Debug("No completed items missing vectors")
		return nil
	}

	slog.Info("Processing vector backfill batch", slog.Int("item_count", len(items)))

	successCount := 0
	for _, item := range items {
		if err := p.processItem(ctx, item); err != nil {
			slog.Error("Error backfilling item vector",
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()))
			continue
		}
		successCount++
	}

	slog.Info("Completed vector backfill batch",
		slog.Int("processed", successCount),
		slog.Int("total", len(items)))

	return nil
}

func (p *VectorBackfillProcessor) processItem(ctx context.Context, item *storage.FeedbackItem) error {
	embedding, err := p.provider.Embed(ctx, item.RawText)
	if err != nil {
		return err
	}

	meta := vector.Metadata{
		ItemID:    item.ID,
		Sentiment: item.Sentiment,
		Category:  item.Category,
	}
	if err := p.index.Upsert(ctx, item.ID, embedding, meta); err != nil {
		return err
	}

	// vector_id flips last so a crash between the two writes just means
	// the item is picked up again on the next tick
	if err := p.store.SetVectorID(ctx, item.ID, item.ID); err != nil {
		return err
	}

	slog.Debug("Backfilled vector", slog.String("item_id", item.ID))
	return nil
}

// SetBatchSize updates the batch size for processing
func (p *VectorBackfillProcessor) SetBatchSize(size int) {
	if size > 0 && size <= 1000 {
		p.batchSize = size
		slog.Info("Updated backfill batch size", slog.Int("new_size", size))
	}
}

// SetInterval updates the processing interval
func (p *VectorBackfillProcessor) SetInterval(interval time.Duration) {
	if interval >= 10*time.Second && interval <= 10*time.Minute {
		p.interval = interval
		slog.Info("Updated backfill interval", slog.Duration("new_interval", interval))
	}
}
