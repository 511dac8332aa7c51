// Package feedback owns the intake path: validate a submission, persist
// the raw payload and the PROCESSING record, then kick off one analysis
// pipeline run for the new item.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedbackd/internal/blob"
	"feedbackd/internal/metrics"
	"feedbackd/internal/storage"

	"github.com/google/uuid"
)

// ErrEmptyText rejects submissions without any feedback text.
var ErrEmptyText = errors.New("feedback text must not be empty")

const defaultSource = "web"

// Runner triggers the analysis workflow for a stored item.
type Runner interface {
	Process(ctx context.Context, itemID string) error
}

type Service struct {
	store  storage.Store
	blobs  blob.Store
	runner Runner
}

func NewService(store storage.Store, blobs blob.Store, runner Runner) *Service {
	return &Service{store: store, blobs: blobs, runner: runner}
}

// Submit accepts one piece of feedback and returns the PROCESSING item.
// The pipeline runs detached; submission acceptance is unconditional
// once the payload and the row are durable.
func (s *Service) Submit(ctx context.Context, text, source string) (*storage.FeedbackItem, error) {
	if strings.TrimSpace(text) == "" {
		metrics.FeedbackSubmissions.WithLabelValues(sourceLabel(source), "invalid").Inc()
		return nil, ErrEmptyText
	}

	if source == "" {
		source = defaultSource
	}

	now := time.Now().UTC()
	item := &storage.FeedbackItem{
		ID:        uuid.New().String(),
		RawText:   text,
		Source:    source,
		Status:    storage.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload := &blob.Payload{
		Text:        text,
		Source:      source,
		SubmittedAt: now.Format(time.RFC3339),
	}
	if err := s.blobs.Put(ctx, item.ID, payload); err != nil {
		metrics.FeedbackSubmissions.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("failed to store raw payload: %w", err)
	}

	if err := s.store.Insert(ctx, item); err != nil {
		metrics.FeedbackSubmissions.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("failed to store feedback item: %w", err)
	}

	metrics.FeedbackSubmissions.WithLabelValues(source, "accepted").Inc()

	// One detached run per submission; runs for different items are
	// independent and share no in-process state.
	go func(itemID string) {
		if err := s.runner.Process(context.Background(), itemID); err != nil {
			slog.Error("Analysis pipeline failed",
				slog.String("item_id", itemID),
				slog.String("error", err.Error()))
		}
	}(item.ID)

	return item, nil
}

func (s *Service) Get(ctx context.Context, id string) (*storage.FeedbackItem, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*storage.FeedbackItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

func sourceLabel(source string) string {
	if source == "" {
		return defaultSource
	}
	return source
}
