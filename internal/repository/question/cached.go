package question

import (
	"context"
	"time"

	"github.com/civium/simsearch/internal/domain"
	"github.com/civium/simsearch/internal/repository/respcache"
)

const cacheTier = "question"

// Getter reads question metadata.
type Getter interface {
	Get(ctx context.Context, id string) (domain.Question, error)
}

// cachedQuestion is the cache wire form of a Question.
type cachedQuestion struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Threshold  float64 `json:"threshold"`
	MaxPerUser int     `json:"max_per_user"`
}

// CachedRepo is a read-through caching decorator over a question Getter.
// Misses and lookup errors are never cached.
type CachedRepo struct {
	inner Getter
	cache *respcache.Cache
	ttl   time.Duration
}

// NewCached wraps inner with a response cache.
func NewCached(inner Getter, cache *respcache.Cache, ttl time.Duration) *CachedRepo {
	return &CachedRepo{inner: inner, cache: cache, ttl: ttl}
}

// Get returns question metadata, serving repeat lookups from the cache.
func (c *CachedRepo) Get(ctx context.Context, id string) (domain.Question, error) {
	key := c.cache.Key(cacheTier, id)

	if dto, ok := respcache.GetJSON[cachedQuestion](ctx, c.cache, cacheTier, key); ok {
		return domain.ReconstructQuestion(dto.ID, dto.Text, dto.Threshold, dto.MaxPerUser), nil
	}

	q, err := c.inner.Get(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}

	respcache.SetJSONAsync(c.cache, key, cachedQuestion{
		ID:         q.ID(),
		Text:       q.Text(),
		Threshold:  q.SimilarityThreshold(),
		MaxPerUser: q.MaxPerUser(),
	}, c.ttl)

	return q, nil
}

// Invalidate drops the cached entry for a question.
func (c *CachedRepo) Invalidate(ctx context.Context, id string) {
	c.cache.Delete(ctx, c.cache.Key(cacheTier, id))
}
