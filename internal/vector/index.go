package vector

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the vector index cannot be reached.
// Callers are expected to degrade to keyword search rather than fail.
var ErrUnavailable = errors.New("vector index unavailable")

// Metadata travels with each stored vector so operators can inspect the
// index without joining back to the feedback table.
type Metadata struct {
	ItemID    string `json:"item_id"`
	Sentiment string `json:"sentiment"`
	Category  string `json:"category"`
}

// Match is one nearest-neighbor hit, ordered best-first by the index.
type Match struct {
	ID         string
	Similarity float64
}

type Index interface {
	Upsert(ctx context.Context, id string, embedding []float32, meta Metadata) error
	Query(ctx context.Context, embedding []float32, topK int) ([]Match, error)
	Close() error
}
