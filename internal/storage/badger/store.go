// Package badger provides the BadgerHold-backed portfolio state store.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
)

// Store wraps a BadgerHold database holding the single portfolio state.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore creates a new BadgerHold store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("BadgerHold store opened")

	return &Store{
		db:     db,
		logger: logger,
	}, nil
}

// Load returns the saved portfolio state, or nil, nil if none exists.
func (s *Store) Load(_ context.Context) (*models.PortfolioState, error) {
	var state models.PortfolioState
	err := s.db.Get(models.StateID, &state)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio state: %w", err)
	}
	if state.Investments == nil {
		state.Investments = []models.Holding{}
	}
	return &state, nil
}

// Save upserts the portfolio state under the fixed state id.
func (s *Store) Save(_ context.Context, state *models.PortfolioState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil portfolio state")
	}
	state.ID = models.StateID
	state.UpdatedAt = time.Now().UTC()

	if err := s.db.Upsert(models.StateID, state); err != nil {
		return fmt.Errorf("failed to save portfolio state: %w", err)
	}
	s.logger.Debug().Int("holdings", len(state.Investments)).Msg("Portfolio state saved")
	return nil
}

// Close closes the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ interfaces.StateStore = (*Store)(nil)
