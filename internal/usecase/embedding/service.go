// Package embedding wraps the provider embedder with contextual prompts,
// retry on transient failures, and rate-aware batching.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy bounds retries against the embedding provider.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// BatchItem is one text to embed, keyed by the caller's identifier.
type BatchItem struct {
	ID   string
	Text string
}

// BatchEmbedding is a successfully embedded batch item.
type BatchEmbedding struct {
	ID     string
	Vector []float32
}

// BatchResult separates per-item outcomes so one bad item cannot sink a
// whole backfill run.
type BatchResult struct {
	Succeeded []BatchEmbedding
	Failed    map[string]error
}

// Service computes embeddings with retry and batching on top of a provider
// embedder.
type Service struct {
	embedder    Embedder
	isTransient func(error) bool
	retry       RetryPolicy
	batchSize   int
	batchDelay  time.Duration
	logger      *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an embedding service. isTransient classifies provider errors
// as retryable; nil disables retries.
func New(
	embedder Embedder,
	isTransient func(error) bool,
	retry RetryPolicy,
	batchSize int,
	batchDelay time.Duration,
	logger *zap.Logger,
) *Service {
	if isTransient == nil {
		isTransient = func(error) bool { return false }
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Service{
		embedder:    embedder,
		isTransient: isTransient,
		retry:       retry,
		batchSize:   batchSize,
		batchDelay:  batchDelay,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Dimensions returns the provider's embedding dimensionality.
func (s *Service) Dimensions() int { return s.embedder.Dimensions() }

// EmbedQuery embeds user input in the context of its question. Embedding the
// question and answer together keeps short answers ("yes, more of them")
// separable across questions.
func (s *Service) EmbedQuery(ctx context.Context, questionText, userInput string) ([]float32, error) {
	return s.EmbedText(ctx, ContextualText(questionText, userInput))
}

// ContextualText builds the canonical question-scoped embedding input.
func ContextualText(questionText, userInput string) string {
	if questionText == "" {
		return userInput
	}
	return fmt.Sprintf("Question: %s\nAnswer: %s", questionText, userInput)
}

// EmbedText embeds a single text with retry on transient provider failures.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	op := func() error {
		var err error
		vec, err = s.embedder.Embed(ctx, text)
		if err != nil {
			if s.isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, s.newBackOff(ctx)); err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	s.checkDimensions(len(vec))
	return vec, nil
}

// EmbedBatch embeds items in provider-sized windows with a pause between
// windows. A window that keeps failing falls back to per-item calls so the
// failure is isolated to the items that actually caused it.
func (s *Service) EmbedBatch(ctx context.Context, items []BatchItem) BatchResult {
	result := BatchResult{Failed: make(map[string]error)}

	for start := 0; start < len(items); start += s.batchSize {
		if start > 0 && s.batchDelay > 0 {
			if err := s.sleep(ctx, s.batchDelay); err != nil {
				for _, item := range items[start:] {
					result.Failed[item.ID] = err
				}
				return result
			}
		}

		end := min(start+s.batchSize, len(items))
		window := items[start:end]
		s.embedWindow(ctx, window, &result)
	}

	return result
}

func (s *Service) embedWindow(ctx context.Context, window []BatchItem, result *BatchResult) {
	texts := make([]string, len(window))
	for i, item := range window {
		texts[i] = item.Text
	}

	var vecs [][]float32
	op := func() error {
		var err error
		vecs, err = s.embedder.EmbedMany(ctx, texts)
		if err != nil {
			if s.isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, s.newBackOff(ctx)); err != nil {
		s.logger.Warn("embedding window failed, retrying items individually",
			zap.Int("window_size", len(window)), zap.Error(err))
		s.embedIndividually(ctx, window, result)
		return
	}

	for i, item := range window {
		s.checkDimensions(len(vecs[i]))
		result.Succeeded = append(result.Succeeded, BatchEmbedding{ID: item.ID, Vector: vecs[i]})
	}
}

func (s *Service) embedIndividually(ctx context.Context, window []BatchItem, result *BatchResult) {
	for _, item := range window {
		vec, err := s.EmbedText(ctx, item.Text)
		if err != nil {
			result.Failed[item.ID] = err
			continue
		}
		result.Succeeded = append(result.Succeeded, BatchEmbedding{ID: item.ID, Vector: vec})
	}
}

// checkDimensions logs a dimensionality drift instead of failing: a wrong-size
// vector still carries signal, and the KNN path surfaces its own errors.
func (s *Service) checkDimensions(got int) {
	if want := s.embedder.Dimensions(); want > 0 && got != want {
		s.logger.Warn("embedding dimension mismatch",
			zap.Int("got", got), zap.Int("want", want))
	}
}

func (s *Service) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.BaseDelay
	bo.MaxInterval = s.retry.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempts := s.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
