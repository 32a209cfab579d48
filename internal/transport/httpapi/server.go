// Package httpapi exposes the similarity pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/domain"
	healthuc "github.com/civium/simsearch/internal/usecase/health"
	ingestuc "github.com/civium/simsearch/internal/usecase/ingest"
	pipelineuc "github.com/civium/simsearch/internal/usecase/pipeline"
	warmupuc "github.com/civium/simsearch/internal/usecase/warmup"
)

// Pipeline runs one similarity search request.
type Pipeline interface {
	Run(ctx context.Context, req pipelineuc.Request) (domain.PipelineResult, bool, error)
}

// Warmer runs admin cache warmup.
type Warmer interface {
	Run(ctx context.Context, questionIDs []string) (warmupuc.Report, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Ingestor backs the admin write endpoints.
type Ingestor interface {
	UpsertQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	AddStatement(ctx context.Context, questionID, text, creatorID string) (domain.Statement, error)
	ImportStatements(ctx context.Context, questionID, creatorID string, texts []string) (ingestuc.ImportReport, error)
	HideStatement(ctx context.Context, id string, hidden bool) error
}

// Server holds the HTTP handlers.
type Server struct {
	pipeline      Pipeline
	warmer        Warmer
	health        HealthChecker
	ingest        Ingestor
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(pipeline Pipeline, warmer Warmer, health HealthChecker, ingest Ingestor, logger *zap.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		warmer:   warmer,
		health:   health,
		ingest:   ingest,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		quotaHandler,
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest),
		sentinelHandler(domain.ErrModerationRejected, http.StatusBadRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/statements/similar", s.SimilarForStatement)
		r.Post("/questions/{questionId}/similar", s.SimilarForQuestion)
		r.Route("/admin", func(r chi.Router) {
			r.Post("/warmup", s.Warmup)
			r.Post("/questions", s.UpsertQuestion)
			r.Delete("/questions/{questionId}", s.DeleteQuestion)
			r.Post("/questions/{questionId}/statements/import", s.ImportStatements)
			r.Post("/statements", s.AddStatement)
			r.Put("/statements/{statementId}/hidden", s.HideStatement)
		})
	})
}

// SimilarForStatement handles POST /api/v1/statements/similar.
func (s *Server) SimilarForStatement(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StatementID == "" {
		writeError(w, http.StatusBadRequest, "statementId is required")
		return
	}

	s.runPipeline(w, r, pipelineuc.Request{
		StatementID: req.StatementID,
		UserInput:   req.UserInput,
		CreatorID:   req.CreatorID,
	})
}

// SimilarForQuestion handles POST /api/v1/questions/{questionId}/similar.
func (s *Server) SimilarForQuestion(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.runPipeline(w, r, pipelineuc.Request{
		QuestionID: chi.URLParam(r, "questionId"),
		UserInput:  req.UserInput,
		CreatorID:  req.CreatorID,
	})
}

func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request, req pipelineuc.Request) {
	start := time.Now()

	res, cached, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSimilarResponse(res, cached, time.Since(start).Milliseconds()))
}

// Warmup handles POST /api/v1/admin/warmup.
func (s *Server) Warmup(w http.ResponseWriter, r *http.Request) {
	var req warmupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.QuestionIDs) == 0 {
		writeError(w, http.StatusBadRequest, "questionIds is required")
		return
	}

	report, err := s.warmer.Run(r.Context(), req.QuestionIDs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": report})
}

// UpsertQuestion handles POST /api/v1/admin/questions.
func (s *Server) UpsertQuestion(w http.ResponseWriter, r *http.Request) {
	var req upsertQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := domain.NewQuestion(req.ID, req.Text, req.SimilarityThreshold, req.MaxPerUser)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ingest.UpsertQuestion(r.Context(), q); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// DeleteQuestion handles DELETE /api/v1/admin/questions/{questionId}.
func (s *Server) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.DeleteQuestion(r.Context(), chi.URLParam(r, "questionId")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// AddStatement handles POST /api/v1/admin/statements.
func (s *Server) AddStatement(w http.ResponseWriter, r *http.Request) {
	var req addStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}

	st, err := s.ingest.AddStatement(r.Context(), req.QuestionID, req.Text, req.CreatorID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok": true,
		"statement": statementView{
			ID:         st.ID(),
			Text:       st.Text(),
			CreatorID:  st.CreatorID(),
			QuestionID: st.QuestionID(),
			CreatedAt:  st.CreatedAt(),
		},
	})
}

// ImportStatements handles POST /api/v1/admin/questions/{questionId}/statements/import.
func (s *Server) ImportStatements(w http.ResponseWriter, r *http.Request) {
	var req importStatementsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts is required")
		return
	}

	report, err := s.ingest.ImportStatements(r.Context(), chi.URLParam(r, "questionId"), req.CreatorID, req.Texts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": report})
}

// HideStatement handles PUT /api/v1/admin/statements/{statementId}/hidden.
func (s *Server) HideStatement(w http.ResponseWriter, r *http.Request) {
	var req hideStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.ingest.HideStatement(r.Context(), chi.URLParam(r, "statementId"), req.Hidden); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
