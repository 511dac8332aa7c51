package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a feedback item does not exist.
var ErrNotFound = errors.New("feedback item not found")

type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// FeedbackItem is the durable record for one submitted piece of feedback.
// Annotation fields stay empty while the item is PROCESSING and are written
// in a single update when analysis completes.
type FeedbackItem struct {
	ID                    string     `json:"id"`
	RawText               string     `json:"rawText"`
	Source                string     `json:"source"`
	Status                Status     `json:"status"`
	Sentiment             string     `json:"sentiment,omitempty"`
	Category              string     `json:"category,omitempty"`
	Urgency               string     `json:"urgency,omitempty"`
	Summary               string     `json:"summary,omitempty"`
	Tags                  []string   `json:"tags,omitempty"`
	VectorID              string     `json:"vectorId,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	ProcessingCompletedAt *time.Time `json:"processingCompletedAt,omitempty"`
}

// Annotations holds the analysis outputs written back by the pipeline.
type Annotations struct {
	Sentiment string   `json:"sentiment"`
	Category  string   `json:"category"`
	Urgency   string   `json:"urgency"`
	Summary   string   `json:"summary"`
	Tags      []string `json:"tags"`
}

type Store interface {
	Insert(ctx context.Context, item *FeedbackItem) error
	Get(ctx context.Context, id string) (*FeedbackItem, error)
	List(ctx context.Context, limit, offset int) ([]*FeedbackItem, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*FeedbackItem, error)
	SearchKeyword(ctx context.Context, query string, limit int) ([]*FeedbackItem, error)
	CompleteProcessing(ctx context.Context, id string, ann Annotations, vectorID string) error
	MarkFailed(ctx context.Context, id string) error
	ListMissingVectors(ctx context.Context, limit int) ([]*FeedbackItem, error)
	SetVectorID(ctx context.Context, id, vectorID string) error
	Close() error
}
