// Package pipeline orchestrates a similarity search request: moderation,
// cache lookups, quota, vector search with lexical fallback,
// canonicalization, and display generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/metrics"
	"github.com/civium/simsearch/internal/repository/respcache"
	"github.com/civium/simsearch/internal/usecase/dedup"
)

// keyInputMaxLen bounds how much user input participates in cache keys.
const keyInputMaxLen = 100

// candidateFetchLimit bounds how many existing statements one request loads.
const candidateFetchLimit = 500

// CacheTTLs are the logical lifetimes of the pipeline's cache tiers.
type CacheTTLs struct {
	Statements   time.Duration
	RawResults   time.Duration
	FullResponse time.Duration
}

// Request is one similarity search invocation. Exactly one of StatementID
// and QuestionID scopes the search; StatementID wins when both are set.
type Request struct {
	StatementID string
	QuestionID  string
	UserInput   string
	CreatorID   string
}

func (r *Request) validate() error {
	if strings.TrimSpace(r.UserInput) == "" {
		return fmt.Errorf("%w: userInput is required", domain.ErrValidation)
	}
	if r.CreatorID == "" {
		return fmt.Errorf("%w: creatorId is required", domain.ErrValidation)
	}
	if r.StatementID == "" && r.QuestionID == "" {
		return fmt.Errorf("%w: statementId or questionId is required", domain.ErrValidation)
	}
	return nil
}

// Service is the request-scoped orchestrator. It holds no per-request state;
// the only cross-request sharing happens through the response cache.
type Service struct {
	questions  QuestionReader
	statements StatementReader
	gate       Gate
	embedder   QueryEmbedder
	nearest    NearestFinder
	lexical    LexicalMatcher
	gen        Generator
	cache      *respcache.Cache
	ttls       CacheTTLs
	limit      int
	logger     *zap.Logger
}

// New wires the orchestrator. limit is the maximum number of similar
// statements returned per request.
func New(
	questions QuestionReader,
	statements StatementReader,
	gate Gate,
	embedder QueryEmbedder,
	nearest NearestFinder,
	lexical LexicalMatcher,
	gen Generator,
	cache *respcache.Cache,
	ttls CacheTTLs,
	limit int,
	logger *zap.Logger,
) *Service {
	if limit <= 0 {
		limit = 5
	}
	return &Service{
		questions:  questions,
		statements: statements,
		gate:       gate,
		embedder:   embedder,
		nearest:    nearest,
		lexical:    lexical,
		gen:        gen,
		cache:      cache,
		ttls:       ttls,
		limit:      limit,
		logger:     logger,
	}
}

// Run executes the pipeline. The bool result reports whether the response
// was served from the full-response cache.
func (s *Service) Run(ctx context.Context, req Request) (domain.PipelineResult, bool, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.PipelineDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	res, cached, err := s.run(ctx, req)
	switch {
	case err == nil && cached:
		outcome = "cache_hit"
	case err == nil:
		outcome = "success"
	case errors.Is(err, domain.ErrModerationRejected),
		errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound):
		outcome = "rejected"
	}
	return res, cached, err
}

func (s *Service) run(ctx context.Context, req Request) (domain.PipelineResult, bool, error) {
	if err := req.validate(); err != nil {
		return domain.PipelineResult{}, false, err
	}

	// Moderation comes before everything else, cache included: a flagged
	// input must never be answered from a previously cached response.
	if err := s.gate.Check(ctx, req.UserInput); err != nil {
		return domain.PipelineResult{}, false, err
	}

	scopeID, questionID, err := s.resolveScope(ctx, &req)
	if err != nil {
		return domain.PipelineResult{}, false, err
	}

	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PipelineResult{}, false, fmt.Errorf("question %s: %w", questionID, domain.ErrNotFound)
		}
		return domain.PipelineResult{}, false, fmt.Errorf("get question %s: %w", questionID, err)
	}

	input := strings.TrimSpace(req.UserInput)
	fullKey := s.cache.Key("resp",
		scopeID, truncateStr(input, keyInputMaxLen), req.CreatorID,
		formatThreshold(q.SimilarityThreshold()),
	)

	if hit, ok := respcache.GetJSON[cachedResponse](ctx, s.cache, "resp", fullKey); ok {
		if s.repairDisplay(ctx, q.Text(), &hit) {
			respcache.SetJSONAsync(s.cache, fullKey, hit, s.ttls.FullResponse)
		}
		return fromCachedResponse(hit), true, nil
	}

	// Candidate list and quota count are independent reads.
	var candidates []domain.Statement
	var created int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, err = s.loadCandidates(gctx, questionID)
		return err
	})
	g.Go(func() error {
		var err error
		created, err = s.statements.CountByCreator(gctx, questionID, req.CreatorID)
		if err != nil {
			return fmt.Errorf("count statements: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.PipelineResult{}, false, err
	}

	if created >= q.MaxPerUser() {
		return domain.PipelineResult{}, false, domain.NewQuotaExceeded(q.MaxPerUser(), created)
	}

	matches, err := s.search(ctx, &q, input, req.StatementID, candidates)
	if err != nil {
		return domain.PipelineResult{}, false, err
	}

	canon := dedup.Canonicalize(matches, input, func(m domain.SimilarityMatch) string {
		return m.Statement.Text()
	})

	display := s.generateDisplay(ctx, q.Text(), input)

	result := domain.PipelineResult{
		Matches:              canon.Matches,
		UserText:             input,
		GeneratedTitle:       display.Title,
		GeneratedDescription: display.Description,
	}
	if canon.ExactMatch != nil {
		result.UserText = canon.ExactMatch.Statement.Text()
	}

	respcache.SetJSONAsync(s.cache, fullKey, toCachedResponse(result), s.ttls.FullResponse)

	return result, false, nil
}

// resolveScope turns the request into (cache scope ID, question ID).
func (s *Service) resolveScope(ctx context.Context, req *Request) (string, string, error) {
	if req.StatementID == "" {
		return req.QuestionID, req.QuestionID, nil
	}

	st, err := s.statements.Get(ctx, req.StatementID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", "", fmt.Errorf("statement %s: %w", req.StatementID, domain.ErrNotFound)
		}
		return "", "", fmt.Errorf("get statement %s: %w", req.StatementID, err)
	}
	return req.StatementID, st.QuestionID(), nil
}

// loadCandidates returns the question's visible statements, cached briefly
// since the list changes as users submit.
func (s *Service) loadCandidates(ctx context.Context, questionID string) ([]domain.Statement, error) {
	key := s.cache.Key("stmts", questionID)

	if hit, ok := respcache.GetJSON[[]cachedMatch](ctx, s.cache, "stmts", key); ok {
		out := make([]domain.Statement, 0, len(hit))
		for _, m := range hit {
			out = append(out, domain.ReconstructStatement(
				m.ID, m.Text, m.CreatorID, m.QuestionID, nil, false, m.CreatedAt))
		}
		return out, nil
	}

	sts, err := s.statements.ListByQuestion(ctx, questionID, candidateFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}

	dto := make([]cachedMatch, 0, len(sts))
	for i := range sts {
		dto = append(dto, cachedMatch{
			ID:         sts[i].ID(),
			Text:       sts[i].Text(),
			CreatorID:  sts[i].CreatorID(),
			QuestionID: sts[i].QuestionID(),
			CreatedAt:  sts[i].CreatedAt(),
		})
	}
	respcache.SetJSONAsync(s.cache, key, dto, s.ttls.Statements)

	return sts, nil
}

// search runs the hybrid retrieval: raw-result cache, then vector KNN, then
// the lexical fallback when vectors find nothing.
func (s *Service) search(
	ctx context.Context, q *domain.Question, input, excludeID string, candidates []domain.Statement,
) ([]domain.SimilarityMatch, error) {
	rawKey := s.cache.Key("raw",
		q.ID(), truncateStr(input, keyInputMaxLen), strconv.Itoa(len(candidates)))

	if hit, ok := respcache.GetJSON[[]rawMatch](ctx, s.cache, "raw", rawKey); ok {
		return s.hydrateRaw(ctx, hit, excludeID, candidates), nil
	}

	vec, err := s.embedder.EmbedQuery(ctx, q.Text(), input)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.nearest.FindNearest(ctx, q.ID(), vec, q.SimilarityThreshold(), s.limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	if len(matches) == 0 {
		sts, err := s.lexical.FindSimilar(ctx, q.Text(), input, candidates, s.limit)
		if err != nil {
			return nil, err
		}
		for i := range sts {
			matches = append(matches, domain.SimilarityMatch{Statement: sts[i]})
		}
	}

	// The cached entry is shared across statement scopes under the same
	// question, so it must hold the unexcluded list; self-exclusion is a
	// read-side concern (see hydrateRaw).
	raw := make([]rawMatch, 0, len(matches))
	for _, m := range matches {
		raw = append(raw, rawMatch{ID: m.Statement.ID(), Similarity: m.Similarity})
	}
	respcache.SetJSONAsync(s.cache, rawKey, raw, s.ttls.RawResults)

	return excludeStatement(matches, excludeID), nil
}

// hydrateRaw rebuilds matches from cached (id, similarity) pairs. Statements
// that have since disappeared or been hidden are skipped.
func (s *Service) hydrateRaw(
	ctx context.Context, raw []rawMatch, excludeID string, candidates []domain.Statement,
) []domain.SimilarityMatch {
	byID := make(map[string]*domain.Statement, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID()] = &candidates[i]
	}

	out := make([]domain.SimilarityMatch, 0, len(raw))
	for _, m := range raw {
		if m.ID == excludeID {
			continue
		}
		st, ok := byID[m.ID]
		if !ok {
			fetched, err := s.statements.Get(ctx, m.ID)
			if err != nil || fetched.Hidden() {
				continue
			}
			st = &fetched
		}
		out = append(out, domain.SimilarityMatch{Statement: *st, Similarity: m.Similarity})
	}
	return out
}

func excludeStatement(matches []domain.SimilarityMatch, id string) []domain.SimilarityMatch {
	if id == "" {
		return matches
	}
	out := matches[:0]
	for _, m := range matches {
		if m.Statement.ID() != id {
			out = append(out, m)
		}
	}
	return out
}
