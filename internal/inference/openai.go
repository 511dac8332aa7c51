package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedbackd/internal/metrics"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const sentimentModel = openai.GPT4oMini

// OpenAIProvider wraps the OpenAI API behind the Provider contract.
// Every call makes exactly one attempt; a client-side throttle keeps
// burst submission traffic from tripping API rate limits, and a circuit
// breaker converts a struggling upstream into fast ErrUnavailable
// failures instead of piled-up timeouts.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

func NewOpenAIProvider(apiKey, model string, dimensions int) *OpenAIProvider {
	settings := gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &OpenAIProvider{
		client:     openai.NewClient(apiKey),
		model:      model,
		dimensions: dimensions,
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("input text cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		metrics.EmbeddingGenerations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	start := time.Now()
	result, err := p.breaker.Execute(func() (interface{}, error) {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      openai.EmbeddingModel(p.model),
			Dimensions: p.dimensions,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no embedding data returned")
		}
		return resp.Data[0].Embedding, nil
	})
	metrics.EmbeddingGenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EmbeddingGenerations.WithLabelValues("error").Inc()
		metrics.InferenceCalls.WithLabelValues("embed", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	embedding := result.([]float32)
	if len(embedding) != p.dimensions {
		metrics.EmbeddingGenerations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrUnavailable, p.dimensions, len(embedding))
	}

	metrics.EmbeddingGenerations.WithLabelValues("success").Inc()
	metrics.InferenceCalls.WithLabelValues("embed", "success").Inc()
	return embedding, nil
}

func (p *OpenAIProvider) Sentiment(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		metrics.InferenceCalls.WithLabelValues("sentiment", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     sentimentModel,
			MaxTokens: 5,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "Classify the sentiment of user feedback. Respond with exactly one word: positive, negative or neutral.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: text,
				},
			},
			Temperature: 0,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}
		return resp.Choices[0].Message.Content, nil
	})

	if err != nil {
		metrics.InferenceCalls.WithLabelValues("sentiment", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	metrics.InferenceCalls.WithLabelValues("sentiment", "success").Inc()
	return NormalizeSentiment(result.(string)), nil
}

// NormalizeSentiment maps free-form model output onto the fixed label set.
func NormalizeSentiment(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, ".!\"'")

	switch {
	case strings.HasPrefix(label, SentimentPositive):
		return SentimentPositive
	case strings.HasPrefix(label, SentimentNegative):
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
