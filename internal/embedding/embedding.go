package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/config"
)

// Embedder converts text into a fixed-length vector. The ingestion builder
// and the retriever depend on this contract rather than on the SDK client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// queryEmbedder is the slice of the langchaingo embedder the retry client
// needs; tests substitute a deterministic stub.
type queryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Client wraps the remote embedding model with bounded linear retry: a fixed
// number of sequential attempts separated by a fixed delay, enough to absorb
// rate limiting on a low-volume batch job. No backoff, no circuit breaker.
type Client struct {
	embedder queryEmbedder
	attempts int
	delay    time.Duration
}

// NewClient builds the langchaingo embedder for an OpenAI-compatible endpoint
// and wraps it in the retry client.
func NewClient(cfg *config.EmbedderConfig, apiKey string) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Client{
		embedder: embedder,
		attempts: cfg.RetryAttempts,
		delay:    cfg.RetryDelay(),
	}, nil
}

// Embed returns the embedding vector for text, retrying transient failures up
// to the configured bound. After the last attempt it returns the final error;
// callers decide whether that skips a chunk or fails a request.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		vector, err := c.embedder.EmbedQuery(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", c.attempts).
			Msg("Embedding attempt failed")

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.delay):
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.attempts, lastErr)
}
