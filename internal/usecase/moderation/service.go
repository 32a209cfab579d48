// Package moderation gates user input before any retrieval or generation
// work is spent on it.
package moderation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/metrics"
)

// Service screens user input ahead of the similarity pipeline.
// Verdicts are computed per request and never cached: moderation policy can
// change between calls and a stale verdict is worse than a repeated one.
type Service struct {
	classifier Classifier
	failOpen   bool
	logger     *zap.Logger
}

// New creates a moderation gate. failOpen controls behavior when the
// provider itself fails: false (default) rejects the request, true lets it
// through with a warning.
func New(classifier Classifier, failOpen bool, logger *zap.Logger) *Service {
	return &Service{classifier: classifier, failOpen: failOpen, logger: logger}
}

// Check returns nil when text may proceed and domain.ErrModerationRejected
// when it is flagged. A provider failure under fail-closed is treated the
// same as flagged content, so callers see the rejection shape either way.
func (s *Service) Check(ctx context.Context, text string) error {
	verdict, err := s.classifier.Classify(ctx, text)
	if err != nil {
		metrics.ModerationVerdictsTotal.WithLabelValues("error").Inc()
		if s.failOpen {
			s.logger.Warn("moderation provider failed, letting request through",
				zap.Error(err))
			return nil
		}
		s.logger.Warn("moderation provider failed, rejecting request",
			zap.Error(err))
		return fmt.Errorf("%w: moderation unavailable", domain.ErrModerationRejected)
	}

	switch {
	case verdict.Inappropriate:
		metrics.ModerationVerdictsTotal.WithLabelValues("rejected").Inc()
		return domain.ErrModerationRejected
	case verdict.Uncertain:
		// Borderline content is treated the same as flagged content.
		metrics.ModerationVerdictsTotal.WithLabelValues("uncertain").Inc()
		return domain.ErrModerationRejected
	default:
		metrics.ModerationVerdictsTotal.WithLabelValues("accepted").Inc()
		return nil
	}
}
