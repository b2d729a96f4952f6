// Package ledger owns the portfolio state: adding and deleting holdings,
// the profile, and the periodic market refresh. All mutations go through a
// single mutex and are persisted before they become visible.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/merge"
)

var (
	// ErrHoldingNotFound is returned when no raw or merged holding has the id.
	ErrHoldingNotFound = errors.New("holding not found")
	// ErrRefreshInProgress is returned when a refresh cycle is already running.
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

const defaultConcurrency = 8

// Service is the portfolio ledger.
type Service struct {
	store     interfaces.StateStore
	market    interfaces.MarketDataProvider
	search    interfaces.InstrumentSearcher
	sip       interfaces.SipSimulator
	assistant interfaces.PortfolioAssistant
	logger    *common.Logger

	now         func() time.Time
	loc         *time.Location
	concurrency int
	profile     models.UserProfile

	mu         sync.Mutex
	state      *models.PortfolioState
	refreshing atomic.Bool
}

// Option configures the service
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the zone period baselines are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithConcurrency bounds the refresh fan-out.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDefaultProfile sets the profile of a never-saved portfolio.
func WithDefaultProfile(p models.UserProfile) Option {
	return func(s *Service) {
		s.profile = p
	}
}

// NewService creates a ledger. assistant may be nil, in which case holding
// details carry no prediction.
func NewService(
	store interfaces.StateStore,
	market interfaces.MarketDataProvider,
	search interfaces.InstrumentSearcher,
	sip interfaces.SipSimulator,
	assistant interfaces.PortfolioAssistant,
	logger *common.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Service{
		store:       store,
		market:      market,
		search:      search,
		sip:         sip,
		assistant:   assistant,
		logger:      logger,
		now:         time.Now,
		loc:         time.Local,
		concurrency: defaultConcurrency,
		profile:     models.DefaultProfile(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrPersistence, op, err)
}

// loadLocked returns the live state, loading it on first use. s.mu must be held.
func (s *Service) loadLocked(ctx context.Context) (*models.PortfolioState, error) {
	if s.state != nil {
		return s.state, nil
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, persistenceError("load portfolio", err)
	}
	if state == nil {
		state = models.NewPortfolioState(s.profile)
	}
	if state.Investments == nil {
		state.Investments = []models.Holding{}
	}
	s.state = state
	s.logger.Info().Int("holdings", len(state.Investments)).Msg("Portfolio state loaded")
	return state, nil
}

// mutate applies fn to a copy of the state and commits it only once saved.
func (s *Service) mutate(ctx context.Context, fn func(*models.PortfolioState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return persistenceError("save portfolio", err)
	}
	s.state = next
	return nil
}

// State returns a copy of the portfolio state.
func (s *Service) State(ctx context.Context) (*models.PortfolioState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// Holdings returns the raw holdings, or the merged positions when merged.
func (s *Service) Holdings(ctx context.Context, merged bool) ([]models.Holding, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	if merged {
		return merge.Holdings(state.Investments), nil
	}
	return state.Investments, nil
}

// Count returns the number of raw holdings.
func (s *Service) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadLocked(ctx)
	if err != nil {
		return 0, err
	}
	return len(state.Investments), nil
}

// UpdateProfile replaces the display profile. An empty currency keeps the
// default symbol.
func (s *Service) UpdateProfile(ctx context.Context, profile models.UserProfile) (models.UserProfile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Currency = strings.TrimSpace(profile.Currency)
	if profile.Name == "" {
		return models.UserProfile{}, fmt.Errorf("%w: profile name is required", common.ErrValidation)
	}
	if profile.Currency == "" {
		profile.Currency = models.DefaultProfile().Currency
	}
	err := s.mutate(ctx, func(st *models.PortfolioState) error {
		st.Profile = profile
		return nil
	})
	if err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

// DeleteHoldings removes every holding whose id is in ids and returns how
// many were removed. Deleting a merged position passes all its member ids.
func (s *Service) DeleteHoldings(ctx context.Context, ids ...string) (int, error) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	if len(set) == 0 {
		return 0, fmt.Errorf("%w: no holding ids given", common.ErrValidation)
	}

	removed := 0
	err := s.mutate(ctx, func(st *models.PortfolioState) error {
		kept := st.Investments[:0]
		for _, h := range st.Investments {
			if set[h.ID] {
				removed++
				continue
			}
			kept = append(kept, h)
		}
		st.Investments = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("removed", removed).Msg("Holdings deleted")
	return removed, nil
}

// Find returns the raw holding with id, or the merged position that has id
// as a member.
func (s *Service) Find(ctx context.Context, id string) (models.Holding, error) {
	state, err := s.State(ctx)
	if err != nil {
		return models.Holding{}, err
	}
	for _, h := range state.Investments {
		if h.ID == id {
			return h, nil
		}
	}
	for _, p := range merge.Holdings(state.Investments) {
		for _, m := range p.MemberIDs {
			if m == id {
				return p, nil
			}
		}
	}
	return models.Holding{}, ErrHoldingNotFound
}

// HoldingDetail returns a holding with its full market data and an
// outlook, fetched concurrently.
func (s *Service) HoldingDetail(ctx context.Context, id string) (*models.HoldingDetail, error) {
	h, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.HoldingDetail{Holding: h}
	var wg sync.WaitGroup
	if s.assistant != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			detail.Prediction = s.assistant.Predict(ctx, h)
		}()
	}
	detail.Market = s.market.FetchMarketData(ctx, h.Name, h.Type, h.PurchaseDate, models.FetchOptions{FixedSymbol: h.TrackingSymbol})
	wg.Wait()
	return detail, nil
}
var _ interfaces.PortfolioLedger = (*Service)(nil)
