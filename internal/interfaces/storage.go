package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/novus/internal/models"
)

// StateStore persists the single portfolio state blob.
type StateStore interface {
	// Load returns nil, nil when nothing has been saved yet.
	Load(ctx context.Context) (*models.PortfolioState, error)
	Save(ctx context.Context, state *models.PortfolioState) error
	Close() error
}

// SeriesEntry is a cached price series with its bookkeeping timestamps.
type SeriesEntry struct {
	Points    []models.PricePoint
	SavedAt   time.Time
	ExpiresAt time.Time
}

// SeriesStore is the durable layer of the price-series cache.
type SeriesStore interface {
	// GetFresh returns the entry when present and unexpired, else nil, nil.
	GetFresh(ctx context.Context, key string) (*SeriesEntry, error)
	// GetStale returns the entry when saved within maxAge, ignoring expiry.
	GetStale(ctx context.Context, key string, maxAge time.Duration) (*SeriesEntry, error)
	Put(ctx context.Context, key string, points []models.PricePoint, ttl time.Duration) error
	// DeleteOlderThan removes entries saved before now-maxAge.
	DeleteOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
	Close() error
}
