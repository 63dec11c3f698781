package cache

import (
	"context"
	"time"

	"barledger/backend/internal/domain"
)

// TotalsCache holds computed current-totals responses for "now" queries.
// Entries are short-lived and invalidated whenever a worksheet commits, so a
// cached response can never outlive the ledger state it was derived from by
// more than the TTL.
type TotalsCache interface {
	Get(ctx context.Context, key string) (*domain.CurrentTotalsResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.CurrentTotalsResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopTotalsCache struct{}

func (NoopTotalsCache) Get(_ context.Context, _ string) (*domain.CurrentTotalsResponse, bool, error) {
	return nil, false, nil
}

func (NoopTotalsCache) Set(_ context.Context, _ string, _ *domain.CurrentTotalsResponse, _ time.Duration) error {
	return nil
}

func (NoopTotalsCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
