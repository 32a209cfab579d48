package moderation

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/metrics"
)

func init() {
	metrics.RegisterPipelineMetrics()
}

type mockClassifier struct {
	verdict domain.Verdict
	err     error
}

func (m *mockClassifier) Classify(_ context.Context, _ string) (domain.Verdict, error) {
	return m.verdict, m.err
}

func TestCheck_Clean(t *testing.T) {
	svc := New(&mockClassifier{}, false, zap.NewNop())
	if err := svc.Check(context.Background(), "plant more trees"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheck_Flagged(t *testing.T) {
	svc := New(&mockClassifier{verdict: domain.Verdict{Inappropriate: true}}, false, zap.NewNop())
	err := svc.Check(context.Background(), "bad input")
	if !errors.Is(err, domain.ErrModerationRejected) {
		t.Fatalf("expected ErrModerationRejected, got %v", err)
	}
}

func TestCheck_UncertainRejected(t *testing.T) {
	svc := New(&mockClassifier{verdict: domain.Verdict{Uncertain: true}}, false, zap.NewNop())
	err := svc.Check(context.Background(), "borderline input")
	if !errors.Is(err, domain.ErrModerationRejected) {
		t.Fatalf("expected ErrModerationRejected, got %v", err)
	}
}

func TestCheck_ProviderErrorFailClosed(t *testing.T) {
	provider := &mockClassifier{err: domain.ErrUpstreamProvider}
	svc := New(provider, false, zap.NewNop())

	// A fail-closed outage rejects like flagged content, not as an
	// internal error.
	err := svc.Check(context.Background(), "anything")
	if !errors.Is(err, domain.ErrModerationRejected) {
		t.Fatalf("expected ErrModerationRejected, got %v", err)
	}
	if errors.Is(err, domain.ErrUpstreamProvider) {
		t.Fatalf("provider error must not leak to callers, got %v", err)
	}
}

func TestCheck_ProviderErrorFailOpen(t *testing.T) {
	provider := &mockClassifier{err: domain.ErrUpstreamProvider}
	svc := New(provider, true, zap.NewNop())

	if err := svc.Check(context.Background(), "anything"); err != nil {
		t.Fatalf("fail-open gate must allow on provider error, got %v", err)
	}
}
