package pipeline

import (
	"strconv"

	"github.com/civium/simsearch/internal/domain"
)

// cachedMatch is the cache wire form of one similar statement.
type cachedMatch struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	CreatorID  string  `json:"creator_id"`
	QuestionID string  `json:"question_id"`
	CreatedAt  int64   `json:"created_at"`
	Similarity float64 `json:"similarity"`
}

// cachedResponse is the full-response cache payload.
type cachedResponse struct {
	Matches     []cachedMatch `json:"matches"`
	UserText    string        `json:"user_text"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
}

// rawMatch is the raw-search cache payload entry: just identity and score,
// re-hydrated from storage on read so hidden flips take effect.
type rawMatch struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

func toCachedResponse(res domain.PipelineResult) cachedResponse {
	out := cachedResponse{
		Matches:     make([]cachedMatch, 0, len(res.Matches)),
		UserText:    res.UserText,
		Title:       res.GeneratedTitle,
		Description: res.GeneratedDescription,
	}
	for i := range res.Matches {
		st := &res.Matches[i].Statement
		out.Matches = append(out.Matches, cachedMatch{
			ID:         st.ID(),
			Text:       st.Text(),
			CreatorID:  st.CreatorID(),
			QuestionID: st.QuestionID(),
			CreatedAt:  st.CreatedAt(),
			Similarity: res.Matches[i].Similarity,
		})
	}
	return out
}

func fromCachedResponse(c cachedResponse) domain.PipelineResult {
	res := domain.PipelineResult{
		Matches:              make([]domain.SimilarityMatch, 0, len(c.Matches)),
		UserText:             c.UserText,
		GeneratedTitle:       c.Title,
		GeneratedDescription: c.Description,
	}
	for _, m := range c.Matches {
		res.Matches = append(res.Matches, domain.SimilarityMatch{
			Statement:  domain.ReconstructStatement(m.ID, m.Text, m.CreatorID, m.QuestionID, nil, false, m.CreatedAt),
			Similarity: m.Similarity,
		})
	}
	return res
}

func formatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'f', 4, 64)
}
