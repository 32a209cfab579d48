// Package ingest writes questions and statements into the store. Submissions
// normally arrive through the deliberation platform; these operations back
// the admin API used for seeding, imports from the legacy system, and
// moderation actions.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/usecase/embedding"
)

// Service handles question and statement writes.
type Service struct {
	questions  QuestionStore
	cache      CacheInvalidator
	statements StatementStore
	embedder   Embedder
	logger     *zap.Logger

	now func() time.Time
}

// New creates an ingest service. cache may be nil when question reads are
// not cached.
func New(questions QuestionStore, cache CacheInvalidator, statements StatementStore, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{
		questions:  questions,
		cache:      cache,
		statements: statements,
		embedder:   embedder,
		logger:     logger,
		now:        time.Now,
	}
}

// UpsertQuestion stores question metadata and invalidates its cache entry.
func (s *Service) UpsertQuestion(ctx context.Context, q domain.Question) error {
	if err := s.questions.Upsert(ctx, q); err != nil {
		return fmt.Errorf("upsert question: %w", err)
	}
	s.invalidate(ctx, q.ID())
	return nil
}

// DeleteQuestion removes question metadata. Statements under the question
// are kept; they simply stop matching once the question is gone.
func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.questions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
}

// AddStatement creates a statement under an existing question and embeds its
// text inline. An embedding failure is not fatal: the statement is stored
// without a vector and picked up by the next warmup run.
func (s *Service) AddStatement(ctx context.Context, questionID, text, creatorID string) (domain.Statement, error) {
	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return domain.Statement{}, fmt.Errorf("load question %s: %w", questionID, err)
	}

	st, err := domain.NewStatement(uuid.NewString(), text, creatorID, questionID, s.now().UnixMilli())
	if err != nil {
		return domain.Statement{}, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	vec, err := s.embedder.EmbedText(ctx, embedding.ContextualText(q.Text(), st.Text()))
	if err != nil {
		s.logger.Warn("statement stored without embedding",
			zap.String("statement_id", st.ID()),
			zap.Error(err))
	} else {
		st = st.WithEmbedding(vec)
	}

	if err := s.statements.Create(ctx, st); err != nil {
		return domain.Statement{}, fmt.Errorf("create statement: %w", err)
	}
	return st, nil
}

// ImportStatements bulk-loads statement texts under an existing question,
// embedding them in batches. Texts whose embedding fails are still stored;
// invalid texts are skipped and counted.
func (s *Service) ImportStatements(ctx context.Context, questionID, creatorID string, texts []string) (ImportReport, error) {
	var report ImportReport

	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return report, fmt.Errorf("load question %s: %w", questionID, err)
	}

	now := s.now().UnixMilli()
	sts := make([]domain.Statement, 0, len(texts))
	items := make([]embedding.BatchItem, 0, len(texts))
	for _, text := range texts {
		st, err := domain.NewStatement(uuid.NewString(), text, creatorID, questionID, now)
		if err != nil {
			report.Skipped++
			continue
		}
		sts = append(sts, st)
		items = append(items, embedding.BatchItem{
			ID:   st.ID(),
			Text: embedding.ContextualText(q.Text(), st.Text()),
		})
	}
	if len(sts) == 0 {
		return report, nil
	}

	result := s.embedder.EmbedBatch(ctx, items)
	vectors := make(map[string][]float32, len(result.Succeeded))
	for _, emb := range result.Succeeded {
		vectors[emb.ID] = emb.Vector
	}
	for i := range sts {
		if vec, ok := vectors[sts[i].ID()]; ok {
			sts[i] = sts[i].WithEmbedding(vec)
			report.Embedded++
		}
	}

	if err := s.statements.CreateBatch(ctx, sts); err != nil {
		return report, fmt.Errorf("create statements: %w", err)
	}
	report.Imported = len(sts)

	if len(result.Failed) > 0 {
		s.logger.Warn("some imported statements stored without embeddings",
			zap.String("question_id", questionID),
			zap.Int("failed", len(result.Failed)))
	}
	return report, nil
}

// HideStatement toggles a statement's visibility. Hidden statements drop out
// of search, listing, and quota counts.
func (s *Service) HideStatement(ctx context.Context, id string, hidden bool) error {
	return s.statements.SetHidden(ctx, id, hidden)
}

// ImportReport summarizes one bulk import.
type ImportReport struct {
	Imported int `json:"imported"`
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
}
