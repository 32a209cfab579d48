// Package vectorindex answers nearest-neighbor queries over statement
// embeddings, with a brute-force fallback when no ANN index is available.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/db"
	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/metrics"
)

// maxScanCandidates bounds the brute-force path so a huge question cannot
// turn one request into a full table scan.
const maxScanCandidates = 5000

// Service finds statements semantically close to a query vector.
type Service struct {
	repo      Repository
	overfetch int
	logger    *zap.Logger
}

// New creates a similarity search service. overfetch multiplies the
// requested limit before threshold filtering, so a strict threshold still
// yields a full page.
func New(repo Repository, overfetch int, logger *zap.Logger) *Service {
	if overfetch < 1 {
		overfetch = 1
	}
	return &Service{repo: repo, overfetch: overfetch, logger: logger}
}

// FindNearest returns up to limit visible statements for the question whose
// similarity to vector is at or above threshold, ordered by descending
// similarity. When the ANN index is missing the search degrades to an exact
// scan over the question's statements.
func (s *Service) FindNearest(
	ctx context.Context, questionID string, vector []float32, threshold float64, limit int,
) ([]domain.SimilarityMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	k := limit * s.overfetch
	matches, err := s.repo.SearchNearest(ctx, questionID, vector, k)
	if err != nil {
		if !errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("nearest search %s: %w", questionID, err)
		}

		metrics.SearchFallbacksTotal.WithLabelValues("brute_force").Inc()
		s.logger.Warn("vector index missing, falling back to exact scan",
			zap.String("question_id", questionID))

		matches, err = s.findNearestExact(ctx, questionID, vector, k)
		if err != nil {
			return nil, err
		}
	}

	return filterByThreshold(matches, threshold, limit), nil
}

// findNearestExact computes cosine similarity against every embedded
// statement of the question.
func (s *Service) findNearestExact(
	ctx context.Context, questionID string, vector []float32, k int,
) ([]domain.SimilarityMatch, error) {
	sts, err := s.repo.ListByQuestion(ctx, questionID, maxScanCandidates)
	if err != nil {
		return nil, fmt.Errorf("list statements %s: %w", questionID, err)
	}

	matches := make([]domain.SimilarityMatch, 0, len(sts))
	for i := range sts {
		emb := sts[i].Embedding()
		if len(emb) == 0 {
			continue
		}
		matches = append(matches, domain.SimilarityMatch{
			Statement:  sts[i],
			Similarity: domain.CosineSimilarity(vector, emb),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func filterByThreshold(matches []domain.SimilarityMatch, threshold float64, limit int) []domain.SimilarityMatch {
	out := make([]domain.SimilarityMatch, 0, limit)
	for _, m := range matches {
		if m.Similarity < threshold {
			continue
		}
		out = append(out, m)
		if len(out) >= limit {
			break
		}
	}
	return out
}
