package inference

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the provider errors, times out, or the
// circuit breaker is open. Callers must not retry; they either fall back
// (search, sentiment) or continue degraded (pipeline embed stage).
var ErrUnavailable = errors.New("inference provider unavailable")

// Valid sentiment labels. Anything else coming back from a model is
// normalized to SentimentNeutral.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

type Provider interface {
	// Embed converts text into a fixed-dimensionality vector.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Sentiment classifies text as positive, negative or neutral.
	Sentiment(ctx context.Context, text string) (string, error)
}
