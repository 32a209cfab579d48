package domain

import "fmt"

// Default question settings applied when the stored record omits them.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultMaxPerUser          = 5
)

// Question is the topic a statement is submitted under. Questions are
// written only through the admin API; the pipeline treats them as read-only.
type Question struct {
	id                  string
	text                string
	similarityThreshold float64
	maxPerUser          int
}

// NewQuestion validates and creates a Question.
func NewQuestion(id, text string, similarityThreshold float64, maxPerUser int) (Question, error) {
	if id == "" {
		return Question{}, fmt.Errorf("question ID is required")
	}
	if similarityThreshold < 0 || similarityThreshold > 1 {
		return Question{}, fmt.Errorf("similarity threshold must be in [0,1], got %g", similarityThreshold)
	}
	if maxPerUser < 0 {
		return Question{}, fmt.Errorf("max statements per user must be non-negative, got %d", maxPerUser)
	}
	return Question{
		id:                  id,
		text:                text,
		similarityThreshold: similarityThreshold,
		maxPerUser:          maxPerUser,
	}, nil
}

// ReconstructQuestion creates a Question without validation (storage hydration),
// substituting defaults for unset settings.
func ReconstructQuestion(id, text string, similarityThreshold float64, maxPerUser int) Question {
	if similarityThreshold <= 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	return Question{id: id, text: text, similarityThreshold: similarityThreshold, maxPerUser: maxPerUser}
}

// ID returns the question identifier.
func (q *Question) ID() string { return q.id }

// Text returns the question prompt text.
func (q *Question) Text() string { return q.text }

// SimilarityThreshold returns the minimum similarity for a match, in [0,1].
func (q *Question) SimilarityThreshold() float64 { return q.similarityThreshold }

// MaxPerUser returns the per-user cap on non-hidden statements.
func (q *Question) MaxPerUser() int { return q.maxPerUser }
