package domain

import (
	"fmt"
	"strings"
)

// MaxStatementSize is the maximum statement text size in bytes.
const MaxStatementSize = 8192

// Statement is a participant submission under a question (immutable value object).
type Statement struct {
	id         string
	text       string
	creatorID  string
	questionID string
	embedding  []float32
	hidden     bool
	createdAt  int64
}

// NewStatement validates and creates a Statement.
// Text: non-empty after trimming, max 8KB. The embedding is attached later,
// once the provider has produced a vector for the text.
func NewStatement(id, text, creatorID, questionID string, createdAt int64) (Statement, error) {
	if id == "" {
		return Statement{}, fmt.Errorf("statement ID is required")
	}
	if strings.TrimSpace(text) == "" {
		return Statement{}, fmt.Errorf("statement text is required")
	}
	if len(text) > MaxStatementSize {
		return Statement{}, fmt.Errorf("statement text too large (max %d bytes)", MaxStatementSize)
	}
	if creatorID == "" {
		return Statement{}, fmt.Errorf("creator ID is required")
	}
	if questionID == "" {
		return Statement{}, fmt.Errorf("question ID is required")
	}

	return Statement{
		id:         id,
		text:       text,
		creatorID:  creatorID,
		questionID: questionID,
		createdAt:  createdAt,
	}, nil
}

// ReconstructStatement creates a Statement without validation (storage hydration).
func ReconstructStatement(
	id, text, creatorID, questionID string,
	embedding []float32, hidden bool, createdAt int64,
) Statement {
	return Statement{
		id:         id,
		text:       text,
		creatorID:  creatorID,
		questionID: questionID,
		embedding:  embedding,
		hidden:     hidden,
		createdAt:  createdAt,
	}
}

// ID returns the statement identifier.
func (s *Statement) ID() string { return s.id }

// Text returns the raw submission text.
func (s *Statement) Text() string { return s.text }

// CreatorID returns the submitting user's identifier.
func (s *Statement) CreatorID() string { return s.creatorID }

// QuestionID returns the parent question identifier.
func (s *Statement) QuestionID() string { return s.questionID }

// Embedding returns the attached vector, or nil when none has been computed.
func (s *Statement) Embedding() []float32 { return s.embedding }

// Hidden reports whether the statement is excluded from matching and quota.
func (s *Statement) Hidden() bool { return s.hidden }

// CreatedAt returns the creation time in unix milliseconds.
func (s *Statement) CreatedAt() int64 { return s.createdAt }

// WithEmbedding returns a copy with the vector attached.
func (s Statement) WithEmbedding(vec []float32) Statement {
	s.embedding = vec
	return s
}

// SimilarityMatch pairs a statement with its similarity score for one request.
type SimilarityMatch struct {
	Statement  Statement
	Similarity float64
}
