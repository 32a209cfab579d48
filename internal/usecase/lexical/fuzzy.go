package lexical

import (
	"strings"

	"github.com/civium/simsearch/internal/domain"
)

// tokenOverlapFloor is the minimum shared-token ratio for a fuzzy match.
const tokenOverlapFloor = 0.8

var quoteNormalizer = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
)

// reconcileTexts maps model-returned text fragments back to candidate
// statements: normalized exact match first, then containment in either
// direction, then token-overlap ratio. Fragments that resolve to nothing are
// dropped rather than fabricated into results.
func reconcileTexts(returned []string, candidates []domain.Statement) []domain.Statement {
	seen := make(map[string]bool, len(returned))
	out := make([]domain.Statement, 0, len(returned))

	for _, fragment := range returned {
		st := matchFragment(fragment, candidates)
		if st == nil || seen[st.ID()] {
			continue
		}
		seen[st.ID()] = true
		out = append(out, *st)
	}
	return out
}

func matchFragment(fragment string, candidates []domain.Statement) *domain.Statement {
	want := normalizeFuzzy(fragment)
	if want == "" {
		return nil
	}

	for i := range candidates {
		if normalizeFuzzy(candidates[i].Text()) == want {
			return &candidates[i]
		}
	}

	for i := range candidates {
		have := normalizeFuzzy(candidates[i].Text())
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return &candidates[i]
		}
	}

	for i := range candidates {
		if tokenOverlap(want, normalizeFuzzy(candidates[i].Text())) >= tokenOverlapFloor {
			return &candidates[i]
		}
	}

	return nil
}

// normalizeFuzzy lowercases, straightens curly quotes, and collapses
// whitespace.
func normalizeFuzzy(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(quoteNormalizer.Replace(s))), " ")
}

// tokenOverlap is the fraction of a's significant tokens (longer than two
// characters) also present in b. Returns 0 when a has no significant tokens.
func tokenOverlap(a, b string) float64 {
	aTokens := significantTokens(a)
	if len(aTokens) == 0 {
		return 0
	}

	bSet := make(map[string]bool)
	for _, tok := range significantTokens(b) {
		bSet[tok] = true
	}

	shared := 0
	for _, tok := range aTokens {
		if bSet[tok] {
			shared++
		}
	}
	return float64(shared) / float64(len(aTokens))
}

func significantTokens(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:'\"()")
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}
