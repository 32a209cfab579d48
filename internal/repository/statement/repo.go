// Package statement persists statements as hashes with an FT vector index
// over them.
package statement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/civium/simsearch/internal/db"
	"github.com/civium/simsearch/internal/domain"
)

// store is the consumer interface for statements (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// IndexParams carries the vector index shape.
type IndexParams struct {
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Repo implements statement persistence and retrieval.
type Repo struct {
	store  store
	prefix string
	index  IndexParams
}

// New creates a statement repository under the given key prefix.
func New(s store, prefix string, index IndexParams) *Repo {
	return &Repo{store: s, prefix: prefix, index: index}
}

func (r *Repo) keyPrefix() string { return r.prefix + "stmt:" }

func (r *Repo) key(id string) string { return r.keyPrefix() + id }

// IndexName returns the FT index name covering statement hashes.
func (r *Repo) IndexName() string { return r.prefix + "stmt:idx" }

func (r *Repo) extractID(key string) string {
	return strings.TrimPrefix(key, r.keyPrefix())
}

// EnsureIndex creates the statement FT index if it does not exist.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.IndexName(), err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     r.IndexName(),
		Prefixes: []string{r.keyPrefix()},
		Fields: []db.IndexField{
			{Name: fieldQuestionID, Type: db.IndexFieldTag},
			{Name: fieldCreatorID, Type: db.IndexFieldTag},
			{Name: fieldHidden, Type: db.IndexFieldTag},
			{Name: fieldCreatedAt, Type: db.IndexFieldNumeric},
			{
				Name:            fieldEmbedding,
				Type:            db.IndexFieldVector,
				VectorAlgo:      db.VectorHNSW,
				VectorDim:       r.index.Dimensions,
				VectorMetric:    db.DistanceCosine,
				HNSWM:           r.index.HNSWM,
				HNSWEFConstruct: r.index.HNSWEFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", r.IndexName(), err)
	}
	return nil
}

// Create persists a statement.
func (r *Repo) Create(ctx context.Context, st domain.Statement) error {
	if err := r.store.HSet(ctx, r.key(st.ID()), buildHashFields(&st)); err != nil {
		return fmt.Errorf("hset %s: %w", r.key(st.ID()), err)
	}
	return nil
}

// CreateBatch persists statements in a single pipelined round trip.
func (r *Repo) CreateBatch(ctx context.Context, sts []domain.Statement) error {
	if len(sts) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(sts))
	for i := range sts {
		items = append(items, db.HashSetItem{
			Key:    r.key(sts[i].ID()),
			Fields: buildHashFields(&sts[i]),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset batch: %w", err)
	}
	return nil
}

// Get returns a statement by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Statement, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domain.Statement{}, fmt.Errorf("hgetall %s: %w", r.key(id), err)
	}
	if len(m) == 0 {
		return domain.Statement{}, domain.ErrNotFound
	}
	return parseHashFields(id, m), nil
}

// AttachEmbedding stores the vector for an existing statement.
func (r *Repo) AttachEmbedding(ctx context.Context, id string, vec []float32) error {
	key := r.key(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	fields := map[string]string{fieldEmbedding: vectorToBytes(vec)}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset embedding %s: %w", key, err)
	}
	return nil
}

// SetHidden toggles a statement's visibility flag.
func (r *Repo) SetHidden(ctx context.Context, id string, hidden bool) error {
	key := r.key(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	if err := r.store.HSet(ctx, key, map[string]string{fieldHidden: boolTag(hidden)}); err != nil {
		return fmt.Errorf("hset hidden %s: %w", key, err)
	}
	return nil
}

// ListByQuestion returns up to limit visible statements for a question.
// When the FT index is missing it degrades to a key scan, so reads keep
// working on a store that has never been indexed.
func (r *Repo) ListByQuestion(ctx context.Context, questionID string, limit int) ([]domain.Statement, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf("@%s:{%s} @%s:{0}",
		fieldQuestionID, escapeTag(questionID), fieldHidden)

	result, err := r.store.SearchList(ctx, r.IndexName(), query, 0, limit)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return r.listByQuestionScan(ctx, questionID, limit)
		}
		return nil, fmt.Errorf("search statements %s: %w", questionID, err)
	}

	sts := make([]domain.Statement, 0, len(result.Entries))
	for _, entry := range result.Entries {
		sts = append(sts, parseHashFields(r.extractID(entry.Key), entry.Fields))
	}
	return sts, nil
}

// listByQuestionScan is the no-index fallback: SCAN + pipelined HGETALL.
func (r *Repo) listByQuestionScan(ctx context.Context, questionID string, limit int) ([]domain.Statement, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix()+"*")
	if err != nil {
		return nil, fmt.Errorf("scan statements: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hydrate statements: %w", err)
	}

	sts := make([]domain.Statement, 0, limit)
	for i, m := range hashes {
		if len(m) == 0 {
			continue
		}
		st := parseHashFields(r.extractID(keys[i]), m)
		if st.QuestionID() != questionID || st.Hidden() {
			continue
		}
		sts = append(sts, st)
		if len(sts) >= limit {
			break
		}
	}
	return sts, nil
}

// CountByCreator returns how many visible statements a user has on a question.
func (r *Repo) CountByCreator(ctx context.Context, questionID, creatorID string) (int, error) {
	query := fmt.Sprintf("@%s:{%s} @%s:{%s} @%s:{0}",
		fieldQuestionID, escapeTag(questionID),
		fieldCreatorID, escapeTag(creatorID),
		fieldHidden)

	n, err := r.store.SearchCount(ctx, r.IndexName(), query)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return r.countByCreatorScan(ctx, questionID, creatorID)
		}
		return 0, fmt.Errorf("count statements %s: %w", questionID, err)
	}
	return n, nil
}

func (r *Repo) countByCreatorScan(ctx context.Context, questionID, creatorID string) (int, error) {
	sts, err := r.listByQuestionScan(ctx, questionID, 10_000)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range sts {
		if sts[i].CreatorID() == creatorID {
			n++
		}
	}
	return n, nil
}

// SearchNearest runs a KNN search over the statement index filtered to one
// question's visible statements. Returns db.ErrIndexNotFound unwrapped so the
// caller can fall back to a brute-force scan.
func (r *Repo) SearchNearest(ctx context.Context, questionID string, vector []float32, k int) ([]domain.SimilarityMatch, error) {
	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: r.IndexName(),
		TagFilters: map[string]string{
			fieldQuestionID: questionID,
			fieldHidden:     "0",
		},
		Vector: vector,
		K:      k,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, db.ErrIndexNotFound
		}
		return nil, fmt.Errorf("knn search %s: %w", questionID, err)
	}

	matches := make([]domain.SimilarityMatch, 0, len(result.Entries))
	for _, entry := range result.Entries {
		matches = append(matches, domain.SimilarityMatch{
			Statement:  parseHashFields(r.extractID(entry.Key), entry.Fields),
			Similarity: entry.Score,
		})
	}
	return matches, nil
}
