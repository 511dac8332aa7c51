package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no payload exists under the given key.
var ErrNotFound = errors.New("payload not found")

// Payload is the raw submission as it arrived, before any analysis.
// It is written once at intake and never mutated.
type Payload struct {
	Text        string `json:"text"`
	Source      string `json:"source"`
	SubmittedAt string `json:"submittedAt"`
}

type Store interface {
	Put(ctx context.Context, key string, payload *Payload) error
	Get(ctx context.Context, key string) (*Payload, error)
	Close() error
}
