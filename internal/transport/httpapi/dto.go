package httpapi

import "github.com/civium/simsearch/internal/domain"

// similarRequest is the body of both similarity endpoints. StatementID is
// required on the statement-scoped route; the question-scoped route takes
// the question ID from the path.
type similarRequest struct {
	StatementID string `json:"statementId,omitempty"`
	UserInput   string `json:"userInput"`
	CreatorID   string `json:"creatorId"`
}

// statementView is one similar statement in the response.
type statementView struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	CreatorID  string  `json:"creatorId"`
	QuestionID string  `json:"questionId"`
	CreatedAt  int64   `json:"createdAt"`
	Similarity float64 `json:"similarity"`
}

// similarResponse is the success shape of both similarity endpoints.
type similarResponse struct {
	OK                   bool            `json:"ok"`
	SimilarStatements    []statementView `json:"similarStatements"`
	UserText             string          `json:"userText,omitempty"`
	GeneratedTitle       string          `json:"generatedTitle,omitempty"`
	GeneratedDescription string          `json:"generatedDescription,omitempty"`
	Cached               bool            `json:"cached,omitempty"`
	ResponseTime         int64           `json:"responseTime,omitempty"`
}

// errorResponse is the flat failure shape shared by every endpoint.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// warmupRequest is the body of the admin warmup endpoint.
type warmupRequest struct {
	QuestionIDs []string `json:"questionIds"`
}

// upsertQuestionRequest is the body of the admin question upsert endpoint.
// Zero threshold/maxPerUser fall back to platform defaults on read.
type upsertQuestionRequest struct {
	ID                  string  `json:"id"`
	Text                string  `json:"text"`
	SimilarityThreshold float64 `json:"similarityThreshold,omitempty"`
	MaxPerUser          int     `json:"maxPerUser,omitempty"`
}

// addStatementRequest is the body of the admin statement create endpoint.
type addStatementRequest struct {
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
	CreatorID  string `json:"creatorId"`
}

// importStatementsRequest is the body of the admin bulk import endpoint.
type importStatementsRequest struct {
	CreatorID string   `json:"creatorId"`
	Texts     []string `json:"texts"`
}

// hideStatementRequest is the body of the admin visibility endpoint.
type hideStatementRequest struct {
	Hidden bool `json:"hidden"`
}

func toSimilarResponse(res domain.PipelineResult, cached bool, elapsedMs int64) similarResponse {
	out := similarResponse{
		OK:                   true,
		SimilarStatements:    make([]statementView, 0, len(res.Matches)),
		UserText:             res.UserText,
		GeneratedTitle:       res.GeneratedTitle,
		GeneratedDescription: res.GeneratedDescription,
		Cached:               cached,
		ResponseTime:         elapsedMs,
	}
	for i := range res.Matches {
		st := &res.Matches[i].Statement
		out.SimilarStatements = append(out.SimilarStatements, statementView{
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
