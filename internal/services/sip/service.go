// Package sip replays a monthly systematic investment plan against a fund's
// NAV history.
package sip

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/market"
	"github.com/bobmcallan/novus/internal/services/resolver"
)

// Service implements interfaces.SipSimulator.
type Service struct {
	funds  interfaces.FundRegistry
	logger *common.Logger
	now    func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a SIP simulator.
func NewService(funds interfaces.FundRegistry, logger *common.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Service{funds: funds, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate buys monthlyAmount of the scheme on sipDay of every month from
// startDate through today, each at the NAV on or before that day.
func (s *Service) Simulate(ctx context.Context, schemeCode, startDate string, monthlyAmount float64, sipDay int) (*models.SipSnapshot, error) {
	code, ok := resolver.SchemeCode(schemeCode)
	if !ok {
		return nil, fmt.Errorf("%w: SIP tracking expects valid mfapi scheme code", common.ErrValidation)
	}
	if math.IsNaN(monthlyAmount) || math.IsInf(monthlyAmount, 0) || monthlyAmount <= 0 {
		return nil, fmt.Errorf("%w: SIP amount must be positive", common.ErrValidation)
	}

	rows, err := s.funds.GetNavHistory(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load NAV history for %s: %w", code, err)
	}
	series := market.NavSeries(rows)
	if len(series) == 0 {
		return nil, fmt.Errorf("no NAV data for scheme %s: %w", code, market.ErrNoData)
	}

	var units, invested float64
	executed := 0
	for _, ts := range InstallmentDates(startDate, sipDay, s.now()) {
		nav := priceOnOrBefore(series, ts.UnixMilli())
		if math.IsNaN(nav) || math.IsInf(nav, 0) || nav <= 0 {
			continue
		}
		units += monthlyAmount / nav
		invested += monthlyAmount
		executed++
	}

	current := common.Round2(series[len(series)-1].Price)
	avg := current
	if units > 0 {
		avg = common.Round2(invested / units)
	}

	s.logger.Debug().Str("scheme", code).Int("installments", executed).Msg("SIP replayed")

	return &models.SipSnapshot{
		InvestedAmount:   common.Round2(invested),
		Quantity:         common.Round2(units),
		CurrentPrice:     current,
		CurrentValue:     common.Round2(units * current),
		AvgPurchasePrice: avg,
		Installments:     executed,
		StartOfDay:       models.Float(common.Round2(offsetFromEnd(series, 1))),
		StartOfWeek:      models.Float(common.Round2(offsetFromEnd(series, 5))),
		StartOfMonth:     models.Float(common.Round2(offsetFromEnd(series, 21))),
	}, nil
}

// InstallmentDates lists one UTC date per month from startDate's month
// through now's month. The day is sipDay clamped to 1..28 (and to the month
// length); dates before startDate or after today are skipped. A malformed
// startDate yields no dates.
func InstallmentDates(startDate string, sipDay int, now time.Time) []time.Time {
	start, err := time.ParseInLocation(models.DateLayout, startDate, time.UTC)
	if err != nil {
		return nil
	}
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := ClampDay(sipDay, 1)

	var out []time.Time
	y, m := start.Year(), start.Month()
	for y < today.Year() || (y == today.Year() && m <= today.Month()) {
		d := day
		if dim := daysIn(y, m); d > dim {
			d = dim
		}
		ts := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		if !ts.Before(start) && !ts.After(today) {
			out = append(out, ts)
		}
		m++
		if m > time.December {
			m = time.January
			y++
		}
	}
	return out
}

// ClampDay bounds a SIP day to 1..28, substituting def for zero.
func ClampDay(day, def int) int {
	if day == 0 {
		day = def
	}
	if day < 1 {
		return 1
	}
	if day > 28 {
		return 28
	}
	return day
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// priceOnOrBefore binary-searches for the last point at or before ts,
// falling back to the first point.
func priceOnOrBefore(series []models.PricePoint, ts int64) float64 {
	if len(series) == 0 {
		return 0
	}
	lo, hi, idx := 0, len(series)-1, -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if series[mid].Timestamp <= ts {
			idx = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if idx < 0 {
		return series[0].Price
	}
	return series[idx].Price
}

func offsetFromEnd(series []models.PricePoint, back int) float64 {
	idx := len(series) - 1 - back
	if idx < 0 {
		idx = 0
	}
	return series[idx].Price
}

var _ interfaces.SipSimulator = (*Service)(nil)
