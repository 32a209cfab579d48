package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errTransient = errors.New("rate limited")
var errPermanent = errors.New("invalid request")

type mockEmbedder struct {
	embedCalls     int
	embedManyCalls int
	embedFn        func(call int, text string) ([]float32, error)
	embedManyFn    func(call int, texts []string) ([][]float32, error)
	dims           int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.embedCalls++
	if m.embedFn != nil {
		return m.embedFn(m.embedCalls, text)
	}
	return []float32{1, 2, 3}, nil
}

func (m *mockEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	m.embedManyCalls++
	if m.embedManyFn != nil {
		return m.embedManyFn(m.embedManyCalls, texts)
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{1, 2, 3}
	}
	return vecs, nil
}

func (m *mockEmbedder) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 3
}

func newTestService(m *mockEmbedder, batchSize int) *Service {
	svc := New(
		m,
		func(err error) bool { return errors.Is(err, errTransient) },
		RetryPolicy{MaxAttempts: 4, BaseDelay: time.Nanosecond, MaxDelay: time.Nanosecond},
		batchSize,
		time.Nanosecond,
		zap.NewNop(),
	)
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	return svc
}

func TestContextualText(t *testing.T) {
	got := ContextualText("How should we fund parks?", "raise the sales tax")
	want := "Question: How should we fund parks?\nAnswer: raise the sales tax"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := ContextualText("", "raise the sales tax"); got != "raise the sales tax" {
		t.Errorf("empty question must pass input through, got %q", got)
	}
}

func TestEmbedText_RetriesTransient(t *testing.T) {
	m := &mockEmbedder{
		embedFn: func(call int, _ string) ([]float32, error) {
			if call < 3 {
				return nil, errTransient
			}
			return []float32{1, 2, 3}, nil
		},
	}
	svc := newTestService(m, 20)

	vec, err := svc.EmbedText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector length = %d", len(vec))
	}
	if m.embedCalls != 3 {
		t.Errorf("embed calls = %d, want 3", m.embedCalls)
	}
}

func TestEmbedText_PermanentNotRetried(t *testing.T) {
	m := &mockEmbedder{
		embedFn: func(int, string) ([]float32, error) { return nil, errPermanent },
	}
	svc := newTestService(m, 20)

	_, err := svc.EmbedText(context.Background(), "hello")
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if m.embedCalls != 1 {
		t.Errorf("embed calls = %d, want 1", m.embedCalls)
	}
}

func TestEmbedText_TransientExhaustsAttempts(t *testing.T) {
	m := &mockEmbedder{
		embedFn: func(int, string) ([]float32, error) { return nil, errTransient },
	}
	svc := newTestService(m, 20)

	_, err := svc.EmbedText(context.Background(), "hello")
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if m.embedCalls != 4 {
		t.Errorf("embed calls = %d, want 4 (max attempts)", m.embedCalls)
	}
}

func TestEmbedBatch_Windows(t *testing.T) {
	m := &mockEmbedder{}
	svc := newTestService(m, 2)

	items := []BatchItem{
		{ID: "a", Text: "one"}, {ID: "b", Text: "two"},
		{ID: "c", Text: "three"}, {ID: "d", Text: "four"}, {ID: "e", Text: "five"},
	}
	result := svc.EmbedBatch(context.Background(), items)

	if len(result.Succeeded) != 5 {
		t.Fatalf("succeeded = %d, want 5", len(result.Succeeded))
	}
	if len(result.Failed) != 0 {
		t.Errorf("failed = %v", result.Failed)
	}
	if m.embedManyCalls != 3 {
		t.Errorf("window calls = %d, want 3", m.embedManyCalls)
	}
}

func TestEmbedBatch_FailedWindowIsolatesItems(t *testing.T) {
	m := &mockEmbedder{
		embedManyFn: func(int, []string) ([][]float32, error) {
			return nil, errPermanent
		},
		embedFn: func(_ int, text string) ([]float32, error) {
			if text == "poison" {
				return nil, errPermanent
			}
			return []float32{1, 2, 3}, nil
		},
	}
	svc := newTestService(m, 20)

	result := svc.EmbedBatch(context.Background(), []BatchItem{
		{ID: "good-1", Text: "fine"},
		{ID: "bad", Text: "poison"},
		{ID: "good-2", Text: "also fine"},
	})

	if len(result.Succeeded) != 2 {
		t.Fatalf("succeeded = %d, want 2 (%+v)", len(result.Succeeded), result)
	}
	if _, ok := result.Failed["bad"]; !ok {
		t.Errorf("expected item 'bad' in failures, got %v", result.Failed)
	}
	if len(result.Failed) != 1 {
		t.Errorf("failed = %v, want only the poison item", result.Failed)
	}
}

func TestEmbedBatch_CancelledBetweenWindows(t *testing.T) {
	m := &mockEmbedder{}
	svc := newTestService(m, 1)
	svc.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	result := svc.EmbedBatch(context.Background(), []BatchItem{
		{ID: "a", Text: "one"}, {ID: "b", Text: "two"}, {ID: "c", Text: "three"},
	})

	if len(result.Succeeded) != 1 {
		t.Fatalf("succeeded = %d, want 1 (first window only)", len(result.Succeeded))
	}
	for _, id := range []string{"b", "c"} {
		if !errors.Is(result.Failed[id], context.Canceled) {
			t.Errorf("item %s: expected context.Canceled, got %v", id, result.Failed[id])
		}
	}
}
