// Package risk scores portfolio risk from allocation and concentration.
package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/merge"
)

// Profile sources.
const (
	SourceHeuristic = "heuristic"
	SourceAI        = "ai"
)

// NoDataNote is the note of an empty portfolio's profile.
const NoDataNote = "Add holdings to generate a real portfolio risk profile."

// baseRisk is the intrinsic risk of each asset class before concentration.
var baseRisk = map[models.AssetClass]float64{
	models.AssetStocks:       78,
	models.AssetMutualFunds:  62,
	models.AssetGold:         28,
	models.AssetFixedDeposit: 15,
}

// Score computes the heuristic risk profile of raw holdings.
func Score(holdings []models.Holding) models.RiskProfile {
	byType := make(map[models.AssetClass]float64, len(models.AssetClasses))
	values := make([]float64, len(holdings))
	for i, h := range holdings {
		v := math.Max(0, h.CurrentValue)
		values[i] = v
		byType[h.Type] += v
	}
	total := floats.Sum(values)
	if total <= 0 {
		return models.RiskProfile{
			Score:             0,
			Label:             models.RiskNoData,
			Note:              NoDataNote,
			CategoryBreakdown: []models.CategoryRisk{},
			Factors:           []string{},
			Source:            SourceHeuristic,
		}
	}

	share := func(c models.AssetClass) float64 { return byType[c] / total }
	safeShare := share(models.AssetGold) + share(models.AssetFixedDeposit)
	growthShare := share(models.AssetStocks) + share(models.AssetMutualFunds)

	topType := models.AssetClasses[0]
	for _, c := range models.AssetClasses[1:] {
		if share(c) > share(topType) {
			topType = c
		}
	}

	positions := merge.Holdings(holdings)
	topName, topShare := "N/A", 0.0
	for _, p := range positions {
		s := 0.0
		if p.CurrentValue > 0 {
			s = p.CurrentValue / total
		}
		if s > topShare {
			topName, topShare = p.Name, s
		}
	}

	score := 35 +
		growthShare*35 -
		safeShare*18 +
		math.Max(0, topShare-0.25)*55 +
		math.Max(0, share(topType)-0.5)*40
	if len(positions) <= 2 {
		score += 8
	}
	score = common.Clamp(score, 0, 100)

	breakdown := make([]models.CategoryRisk, 0, len(models.AssetClasses))
	for _, c := range models.AssetClasses {
		cs := common.Clamp(baseRisk[c]+share(c)*35, 0, 100)
		breakdown = append(breakdown, models.CategoryRisk{
			Type:  c,
			Label: c.Label(),
			Value: common.Round2(byType[c]),
			Share: common.Round2(share(c) * 100),
			Score: math.Round(cs),
			Level: categoryLevel(cs),
		})
	}

	return models.RiskProfile{
		Score: common.Round2(score),
		Label: Label(score),
		Note: fmt.Sprintf("%s is %s%% of wealth, safe assets are %s%%, largest holding is %s%%.",
			topType.Label(), pct(share(topType)), pct(safeShare), pct(topShare)),
		CategoryBreakdown: breakdown,
		Factors: []string{
			fmt.Sprintf("Growth assets (Stocks + MF): %s%%", pct(growthShare)),
			fmt.Sprintf("Defensive assets (Gold + FD): %s%%", pct(safeShare)),
			fmt.Sprintf("Largest category: %s (%s%%)", topType.Label(), pct(share(topType))),
			fmt.Sprintf("Largest holding: %s (%s%%)", topName, pct(topShare)),
			fmt.Sprintf("Diversification units: %d", len(positions)),
		},
		Source: SourceHeuristic,
	}
}

// Label maps a 0-100 score onto the overall risk bands.
func Label(score float64) string {
	switch {
	case score > 80:
		return models.RiskHigh
	case score > 65:
		return models.RiskModerateHigh
	case score > 45:
		return models.RiskModerate
	case score > 25:
		return models.RiskModerateLow
	}
	return models.RiskLow
}

func categoryLevel(score float64) string {
	switch {
	case score > 80:
		return models.RiskHigh
	case score > 60:
		return models.RiskModerateHigh
	case score > 35:
		return models.RiskModerate
	}
	return models.RiskLow
}

// pct formats a fraction as a whole percentage, rounding halves up.
func pct(fraction float64) string {
	return fmt.Sprintf("%d", int64(math.Floor(fraction*100+0.5)))
}
