package app

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/ledger"
)

const (
	refreshJobTimeout = 90 * time.Second
	cleanupJobTimeout = 30 * time.Second
)

type refresher interface {
	Count(ctx context.Context) (int, error)
	Refresh(ctx context.Context) (*models.RefreshResult, error)
}

type loginWindow interface {
	Active() bool
}

// RefreshJob revalues every holding while the owner is logged in.
type RefreshJob struct {
	ledger  refresher
	window  loginWindow
	logger  *common.Logger
	timeout time.Duration
}

// NewRefreshJob creates the periodic valuation refresh job.
func NewRefreshJob(l refresher, window loginWindow, logger *common.Logger) *RefreshJob {
	return &RefreshJob{
		ledger:  l,
		window:  window,
		logger:  logger.WithComponent("refresh_job"),
		timeout: refreshJobTimeout,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string { return "refresh_holdings" }

// Run performs one refresh cycle. Being logged out, having no holdings or
// overlapping a manual refresh are not failures.
func (j *RefreshJob) Run() error {
	if j.window != nil && !j.window.Active() {
		j.logger.Trace().Msg("Refresh skipped, no active login")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.ledger.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	start := time.Now()
	res, err := j.ledger.Refresh(ctx)
	if errors.Is(err, ledger.ErrRefreshInProgress) {
		j.logger.Debug().Msg("Refresh skipped, another cycle is running")
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.Info().
		Int("total", res.Total).
		Int("updated", res.Updated).
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled refresh complete")
	return nil
}

type cacheCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
	Purge()
}

// CleanupJob drops durable series cache rows past the stale window, then
// empties the memory layer so it refills from the durable store.
type CleanupJob struct {
	cache  cacheCleaner
	logger *common.Logger
}

// NewCleanupJob creates the series cache cleanup job.
func NewCleanupJob(cache cacheCleaner, logger *common.Logger) *CleanupJob {
	return &CleanupJob{cache: cache, logger: logger.WithComponent("cleanup_job")}
}

// Name returns the job name
func (j *CleanupJob) Name() string { return "series_cache_cleanup" }

// Run deletes expired cache rows.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupJobTimeout)
	defer cancel()

	removed, err := j.cache.Cleanup(ctx)
	if err != nil {
		return err
	}
	j.cache.Purge()
	if removed > 0 {
		j.logger.Info().Int64("removed", removed).Msg("Series cache cleaned")
	}
	return nil
}
