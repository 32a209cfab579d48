// Package warmup pre-fetches question data and backfills missing statement
// embeddings so the first real request after a deploy is not the slow one.
package warmup

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/usecase/embedding"
)

// questionConcurrency bounds parallel question warmups.
const questionConcurrency = 4

// QuestionReader reads question metadata (through the cache, which is the
// point of calling it here).
type QuestionReader interface {
	Get(ctx context.Context, id string) (domain.Question, error)
}

// StatementRepo lists statements and attaches backfilled embeddings.
type StatementRepo interface {
	ListByQuestion(ctx context.Context, questionID string, limit int) ([]domain.Statement, error)
	AttachEmbedding(ctx context.Context, id string, vec []float32) error
}

// BatchEmbedder embeds statement texts in rate-aware batches.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, items []embedding.BatchItem) embedding.BatchResult
}

// Report summarizes one warmup run.
type Report struct {
	Questions      int `json:"questions"`
	QuestionErrors int `json:"questionErrors"`
	Embedded       int `json:"embedded"`
	EmbedFailures  int `json:"embedFailures"`
}

// Service runs cache warmup and embedding backfill.
type Service struct {
	questions  QuestionReader
	statements StatementRepo
	embedder   BatchEmbedder
	listLimit  int
	logger     *zap.Logger
}

// New creates a warmup service. listLimit bounds statements loaded per
// question.
func New(questions QuestionReader, statements StatementRepo, embedder BatchEmbedder, listLimit int, logger *zap.Logger) *Service {
	if listLimit <= 0 {
		listLimit = 500
	}
	return &Service{
		questions:  questions,
		statements: statements,
		embedder:   embedder,
		listLimit:  listLimit,
		logger:     logger,
	}
}

// Run warms the given questions. Individual question failures are counted
// and logged, not fatal: a warmup is best-effort by nature.
func (s *Service) Run(ctx context.Context, questionIDs []string) (Report, error) {
	var mu sync.Mutex
	var report Report

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(questionConcurrency)

	for _, id := range questionIDs {
		g.Go(func() error {
			embedded, failed, err := s.warmQuestion(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			report.Questions++
			report.Embedded += embedded
			report.EmbedFailures += failed
			if err != nil {
				report.QuestionErrors++
				s.logger.Warn("question warmup failed",
					zap.String("question_id", id), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, ctx.Err()
}

// warmQuestion loads one question and its statements, then embeds every
// statement that has no vector yet.
func (s *Service) warmQuestion(ctx context.Context, questionID string) (embedded, failed int, err error) {
	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return 0, 0, fmt.Errorf("get question: %w", err)
	}

	sts, err := s.statements.ListByQuestion(ctx, questionID, s.listLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("list statements: %w", err)
	}

	var items []embedding.BatchItem
	for i := range sts {
		if len(sts[i].Embedding()) > 0 {
			continue
		}
		items = append(items, embedding.BatchItem{
			ID:   sts[i].ID(),
			Text: embedding.ContextualText(q.Text(), sts[i].Text()),
		})
	}
	if len(items) == 0 {
		return 0, 0, nil
	}

	result := s.embedder.EmbedBatch(ctx, items)
	failed = len(result.Failed)

	for _, e := range result.Succeeded {
		if err := s.statements.AttachEmbedding(ctx, e.ID, e.Vector); err != nil {
			s.logger.Warn("embedding attach failed",
				zap.String("statement_id", e.ID), zap.Error(err))
			failed++
			continue
		}
		embedded++
	}

	return embedded, failed, nil
}
