package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/sip"
	"github.com/bobmcallan/novus/internal/services/valuation"
)

// Refresh revalues every holding against current market data. Holdings
// are refreshed concurrently from a snapshot; only successful updates are
// merged back by id into the live state, so holdings added or deleted
// meanwhile are respected. When ctx ends mid-cycle the updates already
// made are still committed and the rest keep their prior values. A cycle
// already running makes this call return ErrRefreshInProgress.
func (s *Service) Refresh(ctx context.Context) (*models.RefreshResult, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	result := &models.RefreshResult{Total: len(state.Investments)}
	if result.Total == 0 {
		return result, nil
	}

	started := time.Now()
	updates := make(map[string]models.Holding, result.Total)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for _, item := range state.Investments {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			if updated, ok := s.refreshOne(ctx, item); ok {
				mu.Lock()
				updates[item.ID] = updated
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		s.logger.Warn().Err(err).
			Int("total", result.Total).
			Int("completed", len(updates)).
			Msg("Refresh cut short, committing completed holdings")
	}

	err = s.mutate(context.WithoutCancel(ctx), func(st *models.PortfolioState) error {
		for i, h := range st.Investments {
			if u, ok := updates[h.ID]; ok {
				st.Investments[i] = u
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("total", result.Total).
		Int("updated", result.Updated).
		Dur("elapsed", time.Since(started)).
		Msg("Portfolio refreshed")
	return result, nil
}

// refreshOne returns the revalued holding, or false to keep the prior one.
func (s *Service) refreshOne(ctx context.Context, item models.Holding) (models.Holding, bool) {
	h := item.Clone()
	stamp := s.now().UTC().Format(time.RFC3339)

	switch {
	case h.Type == models.AssetFixedDeposit:
		start, _ := h.PurchaseTime(time.UTC)
		h.CurrentValue = valuation.FDValue(h.InvestedAmount, valuation.Rate(h.InterestRate), start, s.now())
		h.LastUpdated = stamp
		return h, true

	case h.Type == models.AssetMutualFunds && h.IsSip && h.TrackingSymbol != "" && models.Deref(h.SipAmount) > 0:
		snap, err := s.sip.Simulate(ctx, h.TrackingSymbol, h.PurchaseDate, *h.SipAmount, sip.ClampDay(h.SipDay, DefaultSipDay))
		if err != nil {
			s.logger.Debug().Err(err).Str("id", h.ID).Msg("SIP refresh failed, keeping prior value")
			return item, false
		}
		applySip(&h, snap)
		h.LastUpdated = stamp
		return h, true
	}

	symbol := h.TrackingSymbol
	if symbol == "" && h.Type.Marketable() {
		suggestions, err := s.search.SearchInstruments(ctx, h.Name, h.Type)
		if err != nil {
			s.logger.Debug().Err(err).Str("id", h.ID).Msg("Symbol lookup failed during refresh")
		} else if len(suggestions) > 0 {
			symbol = suggestions[0].Symbol
		}
	}

	name, date := symbol, h.PurchaseDate
	if name == "" {
		name = h.Name
	}
	gold := h.Type == models.AssetGold
	if gold {
		name = models.GoldInstrumentName
		date = s.now().In(s.loc).Format(models.DateLayout)
	}

	md := s.market.FetchMarketData(ctx, name, h.Type, date, models.FetchOptions{FixedSymbol: symbol, Lite: true})
	if md == nil || md.Synthetic {
		s.logger.Debug().Str("id", h.ID).Str("name", name).Msg("No live market data, keeping prior value")
		return item, false
	}

	prevUnit := 0.0
	if h.Quantity > 0 {
		prevUnit = h.CurrentValue / h.Quantity
	}
	if h.Type.Marketable() && Implausible(prevUnit, md.CurrentPrice) {
		s.logger.Warn().
			Str("id", h.ID).
			Str("symbol", symbol).
			Float64("previous", prevUnit).
			Float64("next", md.CurrentPrice).
			Msg("Implausible price jump, keeping prior value")
		return item, false
	}

	if symbol != "" {
		h.TrackingSymbol = symbol
		if h.DisplaySymbol == "" {
			h.DisplaySymbol = symbol
		}
	}
	h.CurrentValue = md.CurrentPrice * h.Quantity
	h.LastUpdated = stamp
	s.baselines(&h, md, !gold)
	return h, true
}
