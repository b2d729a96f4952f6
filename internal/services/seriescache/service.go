// Package seriescache memoises price series in front of a quote source.
//
// Lookups go memory, then the durable store, then the network. Concurrent
// misses for one key share a single upstream call. When the upstream fails,
// stale memory or durable data (within common.StaleSeriesWindow) is served
// instead of the error.
package seriescache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
)

// DefaultFetchTimeout bounds each upstream call.
const DefaultFetchTimeout = 12 * time.Second

type memoryEntry struct {
	points    []models.PricePoint
	expiresAt time.Time
}

// Service implements interfaces.SeriesProvider.
type Service struct {
	source  interfaces.QuoteSource
	durable interfaces.SeriesStore
	logger  *common.Logger
	timeout time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
	group   singleflight.Group
}

// Option configures the service
type Option func(*Service)

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a series cache. durable may be nil for memory-only use.
func NewService(source interfaces.QuoteSource, durable interfaces.SeriesStore, logger *common.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Service{
		source:  source,
		durable: durable,
		logger:  logger,
		timeout: DefaultFetchTimeout,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key builds the cache key for a series request.
func Key(symbol, rangeKey, interval string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "|" + rangeKey + "|" + interval
}

// GetSeries returns the series for symbol, from cache when fresh.
func (s *Service) GetSeries(ctx context.Context, symbol, rangeKey, interval string) ([]models.PricePoint, error) {
	key := Key(symbol, rangeKey, interval)

	if points, ok := s.memoryFresh(key); ok {
		return points, nil
	}
	if points, ok := s.durableFresh(ctx, key); ok {
		return points, nil
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		// A caller that lost the race to the previous flight finds its result here.
		if points, ok := s.memoryFresh(key); ok {
			return points, nil
		}
		return s.fetch(ctx, key, symbol, rangeKey, interval)
	})
	if err == nil {
		if shared {
			s.logger.Trace().Str("key", key).Msg("Series fetch coalesced")
		}
		return v.([]models.PricePoint), nil
	}

	if points, ok := s.memoryStale(key); ok {
		s.logger.Warn().Err(err).Str("key", key).Msg("Series fetch failed, serving stale memory entry")
		return points, nil
	}
	if points, ok := s.durableStale(ctx, key); ok {
		s.logger.Warn().Err(err).Str("key", key).Msg("Series fetch failed, serving stale durable entry")
		return points, nil
	}
	return nil, err
}

func (s *Service) fetch(ctx context.Context, key, symbol, rangeKey, interval string) ([]models.PricePoint, error) {
	// Detached from the first caller's cancellation so other waiters are not
	// failed by it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	points, err := s.source.GetSeries(fetchCtx, symbol, rangeKey, interval)
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", key, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("fetch series %s: empty series", key)
	}

	ttl := common.SeriesTTL(rangeKey)
	s.mu.Lock()
	s.entries[key] = memoryEntry{points: points, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()

	if s.durable != nil {
		if err := s.durable.Put(fetchCtx, key, points, ttl); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Series cache write failed")
		}
	}
	return points, nil
}

func (s *Service) memoryFresh(key string) ([]models.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.points, true
}

func (s *Service) memoryStale(key string) ([]models.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || len(e.points) == 0 {
		return nil, false
	}
	return e.points, true
}

func (s *Service) durableFresh(ctx context.Context, key string) ([]models.PricePoint, bool) {
	if s.durable == nil {
		return nil, false
	}
	entry, err := s.durable.GetFresh(ctx, key)
	if err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Series cache read failed")
		return nil, false
	}
	if entry == nil || len(entry.Points) == 0 {
		return nil, false
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{points: entry.Points, expiresAt: entry.ExpiresAt}
	s.mu.Unlock()
	return entry.Points, true
}

func (s *Service) durableStale(ctx context.Context, key string) ([]models.PricePoint, bool) {
	if s.durable == nil {
		return nil, false
	}
	entry, err := s.durable.GetStale(ctx, key, common.StaleSeriesWindow)
	if err != nil || entry == nil || len(entry.Points) == 0 {
		return nil, false
	}
	return entry.Points, true
}

// Purge drops every in-memory entry.
func (s *Service) Purge() {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
}

// Cleanup removes durable entries older than the stale window.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	if s.durable == nil {
		return 0, nil
	}
	return s.durable.DeleteOlderThan(ctx, common.StaleSeriesWindow)
}

var _ interfaces.SeriesProvider = (*Service)(nil)
