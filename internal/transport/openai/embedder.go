package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// Config holds the shared provider settings for all OpenAI-backed clients.
type Config struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	Dimensions      int
	GenerationModel string
	Logger          *zap.Logger
}

// NewClient creates the underlying OpenAI-compatible API client.
func NewClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(client *openai.Client, cfg *Config) *Embedder {
	return &Embedder{
		client:     client,
		model:      openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}
}

// Dimensions returns the configured vector dimension.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed vectorizes a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany vectorizes up to one API batch of texts in a single call.
// Windowing and inter-batch pacing are the caller's concern.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		return nil, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrUpstreamProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(string(e.model)).Observe(duration.Seconds())

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// IsTransient reports whether the provider error is worth retrying:
// explicit 429/500/503 responses and transport-level network failures.
func IsTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode > 0 {
			return retryableStatus(reqErr.HTTPStatusCode)
		}
		return true // transport-level failure without a status
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 503:
		return true
	default:
		return false
	}
}

// parseAPIError wraps a provider failure with domain.ErrUpstreamProvider for
// correct 500 mapping while preserving the original error chain, so retry
// classification (IsTransient) still sees the typed API error.
func parseAPIError(err error) error {
	wrap := domain.ErrUpstreamProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("provider API error (%s): %w: %w", detail, err, wrap)
		}
		return fmt.Errorf("provider API error: %w: %w", err, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("provider API error: %w: %w", err, wrap)
	}

	return fmt.Errorf("provider request failed: %w: %w", err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
