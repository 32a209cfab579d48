package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/metrics"
)

const titleMaxLen = 80

// generated holds the display fields produced for a submission.
type generated struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// generateDisplay asks the model for a title and description, falling back
// to deterministic text when generation fails or comes back degenerate.
func (s *Service) generateDisplay(ctx context.Context, questionText, userInput string) generated {
	prompt := fmt.Sprintf(
		"A participant answered the question %q with:\n%q\n\n"+
			"Write a JSON object with two fields: \"title\", a short display title "+
			"for this answer (at most 8 words, no quotes around it), and "+
			"\"description\", one or two sentences restating the answer neutrally. "+
			"Return only the JSON object.",
		questionText, userInput,
	)

	raw, err := s.gen.GenerateContent(ctx, prompt)
	if err != nil {
		s.logger.Warn("display generation failed, using fallback", zap.Error(err))
		metrics.GenerationFallbacksTotal.Inc()
		return fallbackDisplay(userInput)
	}

	g, ok := parseGenerated(raw)
	if !ok || isDegenerate(g) {
		s.logger.Warn("display generation degenerate, using fallback",
			zap.String("output", truncateStr(raw, 200)))
		metrics.GenerationFallbacksTotal.Inc()
		return fallbackDisplay(userInput)
	}
	return g
}

// repairDisplay regenerates title/description for a cached response whose
// generated fields are degenerate, so a bad generation is never served
// forever. Returns the input unchanged when the fields are healthy.
func (s *Service) repairDisplay(ctx context.Context, questionText string, res *cachedResponse) bool {
	g := generated{Title: res.Title, Description: res.Description}
	if !isDegenerate(g) {
		return false
	}

	fresh := s.generateDisplay(ctx, questionText, res.UserText)
	res.Title = fresh.Title
	res.Description = fresh.Description
	return true
}

func parseGenerated(raw string) (generated, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return generated{}, false
	}

	var g generated
	if err := json.Unmarshal([]byte(raw[start:end+1]), &g); err != nil {
		return generated{}, false
	}
	g.Title = strings.TrimSpace(g.Title)
	g.Description = strings.TrimSpace(g.Description)
	return g, true
}

// isDegenerate flags generations not worth showing: blank fields or a title
// that just repeats the description.
func isDegenerate(g generated) bool {
	if g.Title == "" || g.Description == "" {
		return true
	}
	return strings.EqualFold(g.Title, g.Description)
}

// fallbackDisplay is the deterministic non-AI rendering of a submission.
func fallbackDisplay(userInput string) generated {
	return generated{
		Title:       truncateStr(strings.TrimSpace(userInput), titleMaxLen),
		Description: fmt.Sprintf("A participant suggested: %s", strings.TrimSpace(userInput)),
	}
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
