package moderation

import (
	"context"

	"github.com/civium/simsearch/internal/domain"
)

// Classifier flags content through an external moderation provider.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Verdict, error)
}
