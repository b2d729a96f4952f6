package market

import (
	"math"
	"time"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
)

// Trading-day offsets from the end of a daily series used as period
// baselines.
const (
	offsetDay   = 1
	offsetWeek  = 5
	offsetMonth = 21
)

// Summarize reduces an ascending price series to MarketData. The
// historical price is the point nearest the purchase date; a date that
// cannot be parsed means now.
func Summarize(series []models.PricePoint, purchaseDate string, now time.Time) (*models.MarketData, error) {
	if len(series) == 0 {
		return nil, ErrNoData
	}
	purchase := parsePurchaseDate(purchaseDate, now)

	return &models.MarketData{
		HistoricalPrice: common.Round2(nearestPrice(series, purchase.UnixMilli())),
		CurrentPrice:    common.Round2(series[len(series)-1].Price),
		StartOfDay:      models.Float(common.Round2(offsetFromEnd(series, offsetDay))),
		StartOfWeek:     models.Float(common.Round2(offsetFromEnd(series, offsetWeek))),
		StartOfMonth:    models.Float(common.Round2(offsetFromEnd(series, offsetMonth))),
		Trend6M:         monthlyTrend(series, 6),
		Trend1Y:         monthlyTrend(series, 12),
		Trend5Y:         monthlyTrend(series, 60),
		Trend10Y:        monthlyTrend(series, 120),
	}, nil
}

func parsePurchaseDate(value string, now time.Time) time.Time {
	if t, err := time.ParseInLocation(models.DateLayout, value, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return now
}

// nearestPrice returns the price whose timestamp is closest to ts. The
// earliest point wins a tie.
func nearestPrice(series []models.PricePoint, ts int64) float64 {
	if len(series) == 0 {
		return 0
	}
	best := series[0]
	bestDiff := absDiff(series[0].Timestamp, ts)
	for _, p := range series[1:] {
		if d := absDiff(p.Timestamp, ts); d < bestDiff {
			best, bestDiff = p, d
		}
	}
	return best.Price
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

func offsetFromEnd(series []models.PricePoint, back int) float64 {
	if len(series) == 0 {
		return 0
	}
	idx := len(series) - 1 - back
	if idx < 0 {
		idx = 0
	}
	return series[idx].Price
}

// monthlyTrend samples the series at the first of each of the trailing
// months, counted back from the month of the last point. Windows longer than
// a year carry a two-digit year in the label.
func monthlyTrend(series []models.PricePoint, months int) []models.TrendPoint {
	if len(series) == 0 {
		return []models.TrendPoint{}
	}
	end := series[len(series)-1].Time()
	layout := "Jan"
	if months > 12 {
		layout = "Jan 06"
	}

	out := make([]models.TrendPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		d := time.Date(end.Year(), end.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		out = append(out, models.TrendPoint{
			Name:  d.Format(layout),
			Price: common.Round2(nearestPrice(series, d.UnixMilli())),
		})
	}
	return out
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
