package health

import "context"

// DBPinger checks document store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks embedding/generation provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexChecker reports whether the statement vector index exists. A missing
// index is not fatal (search degrades to an exact scan) but is worth
// surfacing.
type IndexChecker interface {
	IndexExists(ctx context.Context, name string) (bool, error)
}
