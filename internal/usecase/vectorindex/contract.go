package vectorindex

import (
	"context"

	"github.com/civium/simsearch/internal/domain"
)

// Repository provides indexed and unindexed access to statements.
type Repository interface {
	SearchNearest(ctx context.Context, questionID string, vector []float32, k int) ([]domain.SimilarityMatch, error)
	ListByQuestion(ctx context.Context, questionID string, limit int) ([]domain.Statement, error)
}
