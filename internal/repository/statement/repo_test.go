package statement

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/civium/simsearch/internal/db"
	"github.com/civium/simsearch/internal/domain"
)

func testStatement(t *testing.T, id string) domain.Statement {
	t.Helper()
	st, err := domain.NewStatement(id, "We should plant more trees", "user-1", "q-1", 1700000000000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return st.WithEmbedding([]float32{0.1, 0.2, 0.3, 0.4})
}

// --- Create / Get ---

func TestCreate_WritesAllFields(t *testing.T) {
	repo, ms := newTestRepo(t)
	st := testStatement(t, "st-1")

	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		if key != "simsearch:stmt:st-1" {
			t.Errorf("unexpected key: %s", key)
		}
		if fields[fieldText] != "We should plant more trees" {
			t.Errorf("unexpected text: %q", fields[fieldText])
		}
		if fields[fieldQuestionID] != "q-1" || fields[fieldCreatorID] != "user-1" {
			t.Errorf("unexpected ownership fields: %v", fields)
		}
		if fields[fieldHidden] != "0" {
			t.Errorf("unexpected hidden flag: %q", fields[fieldHidden])
		}
		if len(fields[fieldEmbedding]) != 16 {
			t.Errorf("embedding field length = %d, want 16", len(fields[fieldEmbedding]))
		}
		return nil
	}

	if err := repo.Create(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	st := testStatement(t, "st-1")
	stored := buildHashFields(&st)

	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "simsearch:stmt:st-1" {
			t.Errorf("unexpected key: %s", key)
		}
		return stored, nil
	}

	got, err := repo.Get(context.Background(), "st-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text() != st.Text() || got.CreatorID() != st.CreatorID() || got.QuestionID() != st.QuestionID() {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Embedding()) != 4 {
		t.Errorf("embedding length = %d, want 4", len(got.Embedding()))
	}
	if got.CreatedAt() != 1700000000000 {
		t.Errorf("created_at = %d", got.CreatedAt())
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}

	_, err := repo.Get(context.Background(), "absent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- AttachEmbedding ---

func TestAttachEmbedding(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }

	var gotFields map[string]string
	ms.hsetFn = func(_ context.Context, _ string, fields map[string]string) error {
		gotFields = fields
		return nil
	}

	err := repo.AttachEmbedding(context.Background(), "st-1", []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotFields) != 1 || len(gotFields[fieldEmbedding]) != 16 {
		t.Errorf("unexpected fields: %v", gotFields)
	}
}

func TestAttachEmbedding_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }

	err := repo.AttachEmbedding(context.Background(), "absent", []float32{1})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- EnsureIndex ---

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, name string) (bool, error) {
		if name != "simsearch:stmt:idx" {
			t.Errorf("unexpected index name: %s", name)
		}
		return false, nil
	}

	var gotDef *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		gotDef = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDef == nil {
		t.Fatal("expected index creation")
	}
	if len(gotDef.Prefixes) != 1 || gotDef.Prefixes[0] != "simsearch:stmt:" {
		t.Errorf("unexpected prefixes: %v", gotDef.Prefixes)
	}
	var vecField *db.IndexField
	for i := range gotDef.Fields {
		if gotDef.Fields[i].Type == db.IndexFieldVector {
			vecField = &gotDef.Fields[i]
		}
	}
	if vecField == nil {
		t.Fatal("index definition missing vector field")
	}
	if vecField.Name != fieldEmbedding || vecField.VectorDim != 4 {
		t.Errorf("unexpected vector field: %+v", vecField)
	}
}

func TestEnsureIndex_SkipsWhenPresent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Fatal("CreateIndex must not be called when the index exists")
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_ToleratesConcurrentCreate(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return db.ErrIndexExists
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- ListByQuestion ---

func TestListByQuestion_UsesIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	st := testStatement(t, "st-1")

	ms.searchListFn = func(_ context.Context, index, query string, _, limit int) (*db.SearchResult, error) {
		if index != "simsearch:stmt:idx" {
			t.Errorf("unexpected index: %s", index)
		}
		if !strings.Contains(query, "@question_id:{q\\-1}") || !strings.Contains(query, "@hidden:{0}") {
			t.Errorf("unexpected query: %s", query)
		}
		if limit != 50 {
			t.Errorf("limit = %d, want 50", limit)
		}
		return &db.SearchResult{
			Total:   1,
			Entries: []db.SearchEntry{{Key: "simsearch:stmt:st-1", Fields: buildHashFields(&st)}},
		}, nil
	}

	sts, err := repo.ListByQuestion(context.Background(), "q-1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sts) != 1 || sts[0].ID() != "st-1" {
		t.Fatalf("unexpected result: %+v", sts)
	}
}

func TestListByQuestion_ScanFallback(t *testing.T) {
	repo, ms := newTestRepo(t)
	visible := testStatement(t, "st-1")
	other, _ := domain.NewStatement("st-2", "Different question", "user-2", "q-other", 1)

	ms.searchListFn = func(_ context.Context, _, _ string, _, _ int) (*db.SearchResult, error) {
		return nil, db.ErrIndexNotFound
	}
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "simsearch:stmt:*" {
			t.Errorf("unexpected pattern: %s", pattern)
		}
		return []string{"simsearch:stmt:st-1", "simsearch:stmt:st-2"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		return []map[string]string{buildHashFields(&visible), buildHashFields(&other)}, nil
	}

	sts, err := repo.ListByQuestion(context.Background(), "q-1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sts) != 1 || sts[0].ID() != "st-1" {
		t.Fatalf("fallback must filter by question: %+v", sts)
	}
}

// --- CountByCreator ---

func TestCountByCreator_Query(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchCountFn = func(_ context.Context, _, query string) (int, error) {
		for _, want := range []string{"@question_id:{q\\-1}", "@creator_id:{user\\-1}", "@hidden:{0}"} {
			if !strings.Contains(query, want) {
				t.Errorf("query %q missing %q", query, want)
			}
		}
		return 3, nil
	}

	n, err := repo.CountByCreator(context.Background(), "q-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestCountByCreator_ScanFallback(t *testing.T) {
	repo, ms := newTestRepo(t)
	mine := testStatement(t, "st-1")
	theirs, _ := domain.NewStatement("st-2", "Someone else's view", "user-2", "q-1", 1)

	ms.searchCountFn = func(_ context.Context, _, _ string) (int, error) {
		return 0, db.ErrIndexNotFound
	}
	ms.scanFn = func(_ context.Context, _ string) ([]string, error) {
		return []string{"simsearch:stmt:st-1", "simsearch:stmt:st-2"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		return []map[string]string{buildHashFields(&mine), buildHashFields(&theirs)}, nil
	}

	n, err := repo.CountByCreator(context.Background(), "q-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

// --- SearchNearest ---

func TestSearchNearest(t *testing.T) {
	repo, ms := newTestRepo(t)
	st := testStatement(t, "st-1")

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "simsearch:stmt:idx" {
			t.Errorf("unexpected index: %s", q.IndexName)
		}
		if q.TagFilters[fieldQuestionID] != "q-1" || q.TagFilters[fieldHidden] != "0" {
			t.Errorf("unexpected filters: %v", q.TagFilters)
		}
		if q.K != 15 {
			t.Errorf("k = %d, want 15", q.K)
		}
		return &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{
				{Key: "simsearch:stmt:st-1", Score: 0.91, Fields: buildHashFields(&st)},
			},
		}, nil
	}

	matches, err := repo.SearchNearest(context.Background(), "q-1", []float32{1, 0, 0, 0}, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if matches[0].Statement.ID() != "st-1" || matches[0].Similarity != 0.91 {
		t.Errorf("unexpected match: %+v", matches[0])
	}
}

func TestSearchNearest_MissingIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, db.ErrIndexNotFound
	}

	_, err := repo.SearchNearest(context.Background(), "q-1", []float32{1}, 5)
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

// --- DTO ---

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3.75}
	out := bytesToVector(vectorToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d", len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %f != %f", i, in[i], out[i])
		}
	}
}
