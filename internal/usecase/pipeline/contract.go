package pipeline

import (
	"context"

	"github.com/civium/simsearch/internal/domain"
)

// QuestionReader reads question metadata, typically through a cache.
type QuestionReader interface {
	Get(ctx context.Context, id string) (domain.Question, error)
}

// StatementReader reads statements and ownership counts.
type StatementReader interface {
	Get(ctx context.Context, id string) (domain.Statement, error)
	ListByQuestion(ctx context.Context, questionID string, limit int) ([]domain.Statement, error)
	CountByCreator(ctx context.Context, questionID, creatorID string) (int, error)
}

// Gate screens user input before the pipeline spends anything on it.
type Gate interface {
	Check(ctx context.Context, text string) error
}

// QueryEmbedder embeds user input in the context of its question.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, questionText, userInput string) ([]float32, error)
}

// NearestFinder returns statements close to a query vector.
type NearestFinder interface {
	FindNearest(ctx context.Context, questionID string, vector []float32, threshold float64, limit int) ([]domain.SimilarityMatch, error)
}

// LexicalMatcher is the generative fallback used when vector search finds
// nothing.
type LexicalMatcher interface {
	FindSimilar(ctx context.Context, questionText, userInput string, candidates []domain.Statement, limit int) ([]domain.Statement, error)
}

// Generator produces the display title and description for a submission.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
