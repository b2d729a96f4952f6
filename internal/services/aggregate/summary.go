package aggregate

import (
	"gonum.org/v1/gonum/floats"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
)

// Summary computes totals and day/week/month returns over raw holdings.
// Fixed deposits prorate their lifetime gain by calendar days; every other
// holding contributes currentValue - baseline*quantity for each baseline it
// has.
func Summary(holdings []models.Holding) models.PortfolioSummary {
	invested := make([]float64, len(holdings))
	current := make([]float64, len(holdings))
	var day, week, month float64

	for i, h := range holdings {
		invested[i] = h.InvestedAmount
		current[i] = h.CurrentValue

		if h.Type == models.AssetFixedDeposit {
			daily := (h.CurrentValue - h.InvestedAmount) / 365
			day += daily
			week += daily * 7
			month += daily * 30
			continue
		}
		if b := models.Deref(h.PriceStartOfDay); b != 0 {
			day += h.CurrentValue - b*h.Quantity
		}
		if b := models.Deref(h.PriceStartOfWeek); b != 0 {
			week += h.CurrentValue - b*h.Quantity
		}
		if b := models.Deref(h.PriceStartOfMonth); b != 0 {
			month += h.CurrentValue - b*h.Quantity
		}
	}

	totalInvested := floats.Sum(invested)
	totalCurrent := floats.Sum(current)
	gain := totalCurrent - totalInvested
	pct := 0.0
	if totalInvested > 0 {
		pct = gain / totalInvested * 100
	}

	return models.PortfolioSummary{
		TotalInvested:         common.Round2(totalInvested),
		TotalCurrentValue:     common.Round2(totalCurrent),
		OverallGain:           common.Round2(gain),
		OverallGainPercentage: common.Round2(pct),
		TodayReturn:           common.Round2(day),
		WeekReturn:            common.Round2(week),
		MonthReturn:           common.Round2(month),
	}
}
