package market

import (
	"time"
	"unicode/utf16"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
)

// seedHash folds the UTF-16 code units of seed into a 32-bit hash using
// the given multiplier.
func seedHash(seed string, mul uint32) uint32 {
	var h uint32
	for _, c := range utf16.Encode([]rune(seed)) {
		h = h*mul + uint32(c)
	}
	return h
}

// SyntheticMarketData returns deterministic placeholder data for seed. The
// same seed always produces the same values, so a holding whose sources are
// down keeps a stable (if implausible) valuation.
func SyntheticMarketData(seed string) *models.MarketData {
	h := seedHash(seed, 31)
	base := 100 + float64(h%5000)
	drift := float64(h%15) / 100
	current := base * (1 + drift)

	return &models.MarketData{
		HistoricalPrice: common.Round2(base),
		CurrentPrice:    common.Round2(current),
		StartOfDay:      models.Float(common.Round2(current * 0.997)),
		StartOfWeek:     models.Float(common.Round2(current * 0.985)),
		StartOfMonth:    models.Float(common.Round2(current * 0.96)),
		Trend6M:         syntheticTrend(base, 6, 2025, 0.9, 0.03, "Jan"),
		Trend1Y:         syntheticTrend(base, 12, 2025, 0.82, 0.02, "Jan"),
		Trend5Y:         syntheticTrend(base, 60, 2021, 0.6, 0.01, "Jan 06"),
		Trend10Y:        syntheticTrend(base, 120, 2016, 0.45, 0.006, "Jan 06"),
		Synthetic:       true,
	}
}

func syntheticTrend(base float64, n, startYear int, start, step float64, layout string) []models.TrendPoint {
	out := make([]models.TrendPoint, n)
	for i := 0; i < n; i++ {
		d := time.Date(startYear+i/12, time.Month(i%12+1), 1, 0, 0, 0, 0, time.UTC)
		out[i] = models.TrendPoint{
			Name:  d.Format(layout),
			Price: common.Round2(base * (start + float64(i)*step)),
		}
	}
	return out
}
