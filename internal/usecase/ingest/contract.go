package ingest

import (
	"context"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/usecase/embedding"
)

// QuestionStore writes question metadata.
type QuestionStore interface {
	Get(ctx context.Context, id string) (domain.Question, error)
	Upsert(ctx context.Context, q domain.Question) error
	Delete(ctx context.Context, id string) error
}

// CacheInvalidator drops a cached question after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id string)
}

// StatementStore writes statements.
type StatementStore interface {
	Create(ctx context.Context, st domain.Statement) error
	CreateBatch(ctx context.Context, sts []domain.Statement) error
	SetHidden(ctx context.Context, id string, hidden bool) error
}

// Embedder embeds statement texts synchronously and in batches.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, items []embedding.BatchItem) embedding.BatchResult
}
