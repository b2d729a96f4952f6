package ledger

import (
	"time"

	"github.com/bobmcallan/novus/internal/models"
)

// Ratio bounds outside which a refreshed unit price is treated as a
// misresolved instrument rather than a real move.
const (
	MaxPriceRatio = 2.5
	MinPriceRatio = 0.4
)

// PeriodStarts are the local midnights that open today, this week (Monday)
// and this month.
type PeriodStarts struct {
	Day   time.Time
	Week  time.Time
	Month time.Time
}

// StartsAt computes the period starts for now in loc.
func StartsAt(now time.Time, loc *time.Location) PeriodStarts {
	t := now.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	back := (int(t.Weekday()) + 6) % 7
	return PeriodStarts{
		Day:   day,
		Week:  day.AddDate(0, 0, -back),
		Month: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc),
	}
}

// PeriodBaseline picks the unit price a period return is measured from.
// A holding bought inside the period is measured from its own purchase
// price; otherwise, or when fallback is off, from the market baseline. A
// missing or zero market baseline yields nil.
func PeriodBaseline(purchaseDate string, purchasePrice float64, market *float64, periodStart time.Time, fallback bool) *float64 {
	if market == nil || *market == 0 {
		return nil
	}
	if !fallback {
		return models.Float(*market)
	}
	bought, err := time.ParseInLocation(models.DateLayout, purchaseDate, periodStart.Location())
	if err == nil && !bought.Before(periodStart) {
		return models.Float(purchasePrice)
	}
	return models.Float(*market)
}

// Implausible reports whether moving from prev to next unit price is too
// large a jump to trust. An unknown previous price is never implausible.
func Implausible(prev, next float64) bool {
	if prev <= 0 {
		return false
	}
	ratio := next / prev
	return ratio > MaxPriceRatio || ratio < MinPriceRatio
}

func (s *Service) baselines(h *models.Holding, md *models.MarketData, fallback bool) {
	starts := StartsAt(s.now(), s.loc)
	h.PriceStartOfDay = PeriodBaseline(h.PurchaseDate, h.PurchasePrice, md.StartOfDay, starts.Day, fallback)
	h.PriceStartOfWeek = PeriodBaseline(h.PurchaseDate, h.PurchasePrice, md.StartOfWeek, starts.Week, fallback)
	h.PriceStartOfMonth = PeriodBaseline(h.PurchaseDate, h.PurchasePrice, md.StartOfMonth, starts.Month, fallback)
}
