// Package lexical asks a generative model to pick similar existing
// statements when vector search comes back empty, validating everything the
// model returns against the known candidate set.
package lexical

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/metrics"
)

// Service matches user input against candidate statements via the
// generative model.
type Service struct {
	gen            Generator
	legacyTextMode bool
	maxCandidates  int
	logger         *zap.Logger
}

// New creates a lexical fallback matcher. legacyTextMode makes the model
// return statement texts instead of IDs, reconciled back to candidates with
// fuzzy matching; the ID mode is the canonical one.
func New(gen Generator, legacyTextMode bool, maxCandidates int, logger *zap.Logger) *Service {
	if maxCandidates <= 0 {
		maxCandidates = 100
	}
	return &Service{
		gen:            gen,
		legacyTextMode: legacyTextMode,
		maxCandidates:  maxCandidates,
		logger:         logger,
	}
}

// FindSimilar returns up to limit candidates the model considers similar to
// userInput, in the model's preference order. Model output that does not
// resolve to a known candidate is dropped, never fabricated into a result.
func (s *Service) FindSimilar(
	ctx context.Context, questionText, userInput string, candidates []domain.Statement, limit int,
) ([]domain.Statement, error) {
	if len(candidates) == 0 || limit <= 0 {
		return nil, nil
	}
	if len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}

	metrics.SearchFallbacksTotal.WithLabelValues("lexical").Inc()

	prompt := s.buildPrompt(questionText, userInput, candidates)
	raw, err := s.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("lexical match: %w", err)
	}

	returned, err := parseStringArray(raw)
	if err != nil {
		s.logger.Warn("lexical matcher returned unparseable output",
			zap.String("output", truncate(raw, 200)), zap.Error(err))
		return nil, nil
	}

	var matched []domain.Statement
	if s.legacyTextMode {
		matched = reconcileTexts(returned, candidates)
	} else {
		matched = resolveIDs(returned, candidates)
	}

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Service) buildPrompt(questionText, userInput string, candidates []domain.Statement) string {
	var b strings.Builder
	b.WriteString("You match a new answer against existing answers to the same question.\n")
	fmt.Fprintf(&b, "Question: %s\n", questionText)
	fmt.Fprintf(&b, "New answer: %s\n\n", userInput)
	b.WriteString("Existing answers:\n")

	if s.legacyTextMode {
		for i := range candidates {
			fmt.Fprintf(&b, "- %s\n", candidates[i].Text())
		}
		b.WriteString("\nReturn a JSON array containing the exact text of every existing answer ")
		b.WriteString("that expresses the same idea as the new answer, most similar first. ")
	} else {
		for i := range candidates {
			fmt.Fprintf(&b, "%s: %s\n", candidates[i].ID(), candidates[i].Text())
		}
		b.WriteString("\nReturn a JSON array containing only the IDs of existing answers ")
		b.WriteString("that express the same idea as the new answer, most similar first. ")
	}
	b.WriteString("Return [] if none match. Return only the JSON array, nothing else.")
	return b.String()
}

// resolveIDs keeps model-returned IDs that exist in the candidate set,
// preserving model order and dropping duplicates.
func resolveIDs(ids []string, candidates []domain.Statement) []domain.Statement {
	byID := make(map[string]*domain.Statement, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID()] = &candidates[i]
	}

	seen := make(map[string]bool, len(ids))
	out := make([]domain.Statement, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		st, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, *st)
	}
	return out
}

// parseStringArray extracts a JSON string array from model output, tolerating
// markdown fences and prose around the array.
func parseStringArray(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in output")
	}

	var out []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
