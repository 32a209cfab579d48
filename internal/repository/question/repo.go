// Package question persists question metadata and provides a read-through
// cached view of it.
package question

import (
	"context"
	"fmt"
	"strconv"

	"github.com/civium/simsearch/internal/domain"
)

// store is the consumer interface for question metadata (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

const (
	fieldText      = "text"
	fieldThreshold = "similarity_threshold"
	fieldMaxUser   = "max_per_user"
)

// Repo implements question metadata persistence.
type Repo struct {
	store  store
	prefix string
}

// New creates a question repository under the given key prefix.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) key(id string) string { return r.prefix + "q:" + id }

// Upsert stores question metadata.
func (r *Repo) Upsert(ctx context.Context, q domain.Question) error {
	fields := map[string]string{
		fieldText:      q.Text(),
		fieldThreshold: strconv.FormatFloat(q.SimilarityThreshold(), 'f', -1, 64),
		fieldMaxUser:   strconv.Itoa(q.MaxPerUser()),
	}
	if err := r.store.HSet(ctx, r.key(q.ID()), fields); err != nil {
		return fmt.Errorf("hset %s: %w", r.key(q.ID()), err)
	}
	return nil
}

// Get returns question metadata by ID. Missing threshold or quota fields
// fall back to domain defaults during reconstruction.
func (r *Repo) Get(ctx context.Context, id string) (domain.Question, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domain.Question{}, fmt.Errorf("hgetall %s: %w", r.key(id), err)
	}
	if len(m) == 0 {
		return domain.Question{}, domain.ErrNotFound
	}

	threshold, _ := strconv.ParseFloat(m[fieldThreshold], 64)
	maxPerUser, _ := strconv.Atoi(m[fieldMaxUser])
	return domain.ReconstructQuestion(id, m[fieldText], threshold, maxPerUser), nil
}

// Delete removes question metadata.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("del %s: %w", r.key(id), err)
	}
	return nil
}
