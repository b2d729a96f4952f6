// Package seriesdb provides the durable SQLite layer of the price-series
// cache. Each row holds one series as a JSON blob with save and expiry
// timestamps, so callers can choose between fresh-only and stale reads.
package seriesdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS series_cache (
	cache_key  TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	saved_at   INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_series_cache_saved ON series_cache(saved_at);
`

// Store is a SQLite-backed interfaces.SeriesStore.
type Store struct {
	db     *sql.DB
	logger *common.Logger
	now    func() time.Time
}

// Option configures the store
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (creating if needed) the cache database at path. ":memory:"
// opens a private in-memory database.
func Open(ctx context.Context, logger *common.Logger, path string, opts ...Option) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory for %s: %w", path, err)
		}
		// Cache data: WAL for concurrent readers, no fsync.
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(OFF)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open series cache: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping series cache: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create series cache schema: %w", err)
	}

	s := &Store{db: db, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	logger.Debug().Str("path", path).Msg("Series cache opened")
	return s, nil
}

func (s *Store) get(ctx context.Context, query string, args ...interface{}) (*interfaces.SeriesEntry, error) {
	var data string
	var savedAt, expiresAt int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data, &savedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read series cache: %w", err)
	}

	var points []models.PricePoint
	if err := json.Unmarshal([]byte(data), &points); err != nil {
		return nil, fmt.Errorf("failed to decode cached series: %w", err)
	}
	return &interfaces.SeriesEntry{
		Points:    points,
		SavedAt:   time.UnixMilli(savedAt),
		ExpiresAt: time.UnixMilli(expiresAt),
	}, nil
}

// GetFresh returns the entry only if it has not expired. Returns nil, nil
// when missing or expired.
func (s *Store) GetFresh(ctx context.Context, key string) (*interfaces.SeriesEntry, error) {
	return s.get(ctx,
		"SELECT data, saved_at, expires_at FROM series_cache WHERE cache_key = ? AND expires_at > ?",
		key, s.now().UnixMilli())
}

// GetStale returns the entry if it was saved within maxAge, regardless of
// expiry. Returns nil, nil otherwise.
func (s *Store) GetStale(ctx context.Context, key string, maxAge time.Duration) (*interfaces.SeriesEntry, error) {
	return s.get(ctx,
		"SELECT data, saved_at, expires_at FROM series_cache WHERE cache_key = ? AND saved_at >= ?",
		key, s.now().Add(-maxAge).UnixMilli())
}

// Put upserts a series with expiry now+ttl.
func (s *Store) Put(ctx context.Context, key string, points []models.PricePoint, ttl time.Duration) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO series_cache (cache_key, data, saved_at, expires_at) VALUES (?, ?, ?, ?)",
		key, string(data), now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store series %s: %w", key, err)
	}
	return nil
}

// DeleteOlderThan removes rows saved before now-maxAge and returns the
// number removed.
func (s *Store) DeleteOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM series_cache WHERE saved_at < ?", s.now().Add(-maxAge).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge series cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ interfaces.SeriesStore = (*Store)(nil)
