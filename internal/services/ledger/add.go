package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/resolver"
	"github.com/bobmcallan/novus/internal/services/sip"
	"github.com/bobmcallan/novus/internal/services/valuation"
)

// DefaultSipDay is the installment day used when none is given.
const DefaultSipDay = 5

func validPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func (s *Service) validate(req *models.AddHoldingRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Symbol = strings.TrimSpace(req.Symbol)
	req.PurchaseDate = strings.TrimSpace(req.PurchaseDate)

	switch req.Type {
	case models.AssetStocks, models.AssetMutualFunds, models.AssetGold, models.AssetFixedDeposit:
	default:
		return fmt.Errorf("%w: unknown asset class %q", common.ErrValidation, req.Type)
	}
	if req.Name == "" && req.Symbol == "" {
		return fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if req.PurchaseDate == "" {
		req.PurchaseDate = s.now().In(s.loc).Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, req.PurchaseDate); err != nil {
		return fmt.Errorf("%w: purchase date must be YYYY-MM-DD", common.ErrValidation)
	}
	if math.IsNaN(req.Quantity) || req.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", common.ErrValidation)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	switch {
	case req.Type == models.AssetFixedDeposit && !validPositive(req.Amount):
		return fmt.Errorf("%w: deposit amount must be positive", common.ErrValidation)
	case req.Type == models.AssetGold && !validPositive(req.PricePaid):
		return fmt.Errorf("%w: price paid must be positive", common.ErrValidation)
	}
	return nil
}

// AddHolding prices and records a new holding.
func (s *Service) AddHolding(ctx context.Context, req models.AddHoldingRequest) (*models.Holding, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	h := models.Holding{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Type:         req.Type,
		Quantity:     req.Quantity,
		PurchaseDate: req.PurchaseDate,
		TenureYears:  req.TenureYears,
	}

	var err error
	switch {
	case req.Type == models.AssetFixedDeposit:
		s.priceDeposit(&h, req)
	case req.Type == models.AssetMutualFunds && req.SipMode:
		s.pick(ctx, &h, req)
		err = s.priceSip(ctx, &h, req)
	default:
		if req.Type.Marketable() {
			s.pick(ctx, &h, req)
		}
		err = s.priceMarket(ctx, &h, req)
	}
	if err != nil {
		return nil, err
	}
	h.LastUpdated = s.now().UTC().Format(time.RFC3339)

	err = s.mutate(ctx, func(st *models.PortfolioState) error {
		st.Investments = append(st.Investments, h)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("id", h.ID).
		Str("type", string(h.Type)).
		Str("symbol", h.TrackingSymbol).
		Float64("current", h.CurrentValue).
		Msg("Holding added")
	return &h, nil
}

func (s *Service) priceDeposit(h *models.Holding, req models.AddHoldingRequest) {
	rate := valuation.Rate(req.InterestRate)
	start, _ := h.PurchaseTime(time.UTC)
	h.Quantity = 1
	h.InvestedAmount = req.Amount
	h.PurchasePrice = req.Amount
	h.InterestRate = models.Float(rate)
	h.CurrentValue = valuation.FDValue(req.Amount, rate, start, s.now())
}

// pick sets the tracking symbol from the chosen suggestion, else the first
// search result, else a scheme code typed into a fund name.
func (s *Service) pick(ctx context.Context, h *models.Holding, req models.AddHoldingRequest) {
	if req.Symbol != "" {
		h.TrackingSymbol = req.Symbol
		h.DisplaySymbol = req.Symbol
		if label := strings.TrimSpace(req.Label); label != "" {
			h.Name = label
		} else if h.Name == "" {
			h.Name = req.Symbol
		}
		return
	}

	suggestions, err := s.search.SearchInstruments(ctx, req.Name, req.Type)
	if err != nil {
		s.logger.Warn().Err(err).Str("name", req.Name).Msg("Instrument search failed")
	}
	if len(suggestions) > 0 {
		h.TrackingSymbol = suggestions[0].Symbol
		h.DisplaySymbol = suggestions[0].Symbol
		h.Name = suggestions[0].Label
		return
	}
	if req.Type == models.AssetMutualFunds {
		if code, ok := resolver.SchemeCode(req.Name); ok {
			h.TrackingSymbol = code
			h.DisplaySymbol = code
		}
	}
}

func (s *Service) priceSip(ctx context.Context, h *models.Holding, req models.AddHoldingRequest) error {
	if h.TrackingSymbol == "" {
		return fmt.Errorf("%w: pick a mutual fund or enter a scheme code", resolver.ErrNotResolved)
	}
	if !validPositive(req.SipAmount) {
		return fmt.Errorf("%w: SIP amount must be positive", common.ErrValidation)
	}
	day := sip.ClampDay(req.SipDay, DefaultSipDay)

	snap, err := s.sip.Simulate(ctx, h.TrackingSymbol, h.PurchaseDate, req.SipAmount, day)
	if err != nil {
		return fmt.Errorf("simulate SIP for %s: %w", h.TrackingSymbol, err)
	}
	applySip(h, snap)
	h.IsSip = true
	h.SipAmount = models.Float(req.SipAmount)
	h.SipDay = day
	h.SipFrequency = models.SipFrequencyMonthly
	return nil
}

func applySip(h *models.Holding, snap *models.SipSnapshot) {
	h.InvestedAmount = snap.InvestedAmount
	h.Quantity = snap.Quantity
	h.PurchasePrice = snap.AvgPurchasePrice
	h.CurrentValue = snap.CurrentValue
	h.PriceStartOfDay = snap.StartOfDay
	h.PriceStartOfWeek = snap.StartOfWeek
	h.PriceStartOfMonth = snap.StartOfMonth
}

// priceMarket values a stock, fund or gold holding from market data. Gold
// is always the reference instrument priced as of today, at the price the
// user paid. A stock or fund that cannot be priced from live data is not
// recorded.
func (s *Service) priceMarket(ctx context.Context, h *models.Holding, req models.AddHoldingRequest) error {
	if h.Type == models.AssetMutualFunds && h.TrackingSymbol == "" {
		return fmt.Errorf("%w: pick a mutual fund or enter a scheme code", resolver.ErrNotResolved)
	}
	name, date := h.TrackingSymbol, h.PurchaseDate
	if name == "" {
		name = h.Name
	}
	gold := h.Type == models.AssetGold
	if gold {
		name = models.GoldInstrumentName
		date = s.now().In(s.loc).Format(models.DateLayout)
	}

	md := s.market.FetchMarketData(ctx, name, h.Type, date, models.FetchOptions{FixedSymbol: h.TrackingSymbol})
	if md.Synthetic && h.Type.Marketable() {
		return fmt.Errorf("%w: no market data for %q", resolver.ErrNotResolved, name)
	}
	if gold {
		h.PurchasePrice = req.PricePaid
	} else {
		h.PurchasePrice = md.HistoricalPrice
	}
	h.InvestedAmount = h.PurchasePrice * h.Quantity
	h.CurrentValue = md.CurrentPrice * h.Quantity
	s.baselines(h, md, !gold)
	return nil
}
