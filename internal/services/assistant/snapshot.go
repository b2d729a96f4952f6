package assistant

import (
	"sort"

	"github.com/bobmcallan/novus/internal/models"
)

// Totals are the headline numbers of a snapshot.
type Totals struct {
	Invested float64 `json:"invested"`
	Current  float64 `json:"current"`
	Gain     float64 `json:"gain"`
	GainPct  float64 `json:"gainPct"`
}

// Allocation is one asset class's share of current value.
type Allocation struct {
	Type  models.AssetClass `json:"type"`
	Label string            `json:"label"`
	Value float64           `json:"value"`
	Share float64           `json:"share"` // percent
}

// HoldingLine is one holding as presented to the model.
type HoldingLine struct {
	Name         string            `json:"name"`
	Type         models.AssetClass `json:"type"`
	Invested     float64           `json:"invested"`
	Current      float64           `json:"current"`
	PnL          float64           `json:"pnl"`
	PnLPct       float64           `json:"pnlPct"`
	PurchaseDate string            `json:"purchaseDate"`
	Symbol       string            `json:"symbol"`
}

// Snapshot is the portfolio context handed to the model.
type Snapshot struct {
	Totals     Totals        `json:"totals"`
	Allocation []Allocation  `json:"allocation"`
	Holdings   []HoldingLine `json:"holdings"`
}

// classNoun is the lower-case class name used in prompts.
func classNoun(c models.AssetClass) string {
	switch c {
	case models.AssetStocks:
		return "stocks"
	case models.AssetMutualFunds:
		return "mutual funds"
	case models.AssetGold:
		return "gold"
	case models.AssetFixedDeposit:
		return "FDs"
	}
	return "assets"
}

// BuildSnapshot summarises holdings: totals, the non-empty classes by value
// and every holding by current value, both descending.
func BuildSnapshot(holdings []models.Holding) Snapshot {
	var snap Snapshot
	byType := make(map[models.AssetClass]float64)
	for _, h := range holdings {
		snap.Totals.Invested += h.InvestedAmount
		snap.Totals.Current += h.CurrentValue
		byType[h.Type] += h.CurrentValue
	}
	snap.Totals.Gain = snap.Totals.Current - snap.Totals.Invested
	if snap.Totals.Invested > 0 {
		snap.Totals.GainPct = snap.Totals.Gain / snap.Totals.Invested * 100
	}

	snap.Allocation = []Allocation{}
	for _, c := range models.AssetClasses {
		v := byType[c]
		if v <= 0 {
			continue
		}
		share := 0.0
		if snap.Totals.Current > 0 {
			share = v / snap.Totals.Current * 100
		}
		snap.Allocation = append(snap.Allocation, Allocation{Type: c, Label: classNoun(c), Value: v, Share: share})
	}
	sort.SliceStable(snap.Allocation, func(i, j int) bool { return snap.Allocation[i].Value > snap.Allocation[j].Value })

	snap.Holdings = make([]HoldingLine, 0, len(holdings))
	for _, h := range holdings {
		snap.Holdings = append(snap.Holdings, holdingLine(h))
	}
	sort.SliceStable(snap.Holdings, func(i, j int) bool { return snap.Holdings[i].Current > snap.Holdings[j].Current })
	return snap
}

func holdingLine(h models.Holding) HoldingLine {
	pnl := h.CurrentValue - h.InvestedAmount
	pnlPct := 0.0
	if h.InvestedAmount > 0 {
		pnlPct = pnl / h.InvestedAmount * 100
	}
	return HoldingLine{
		Name:         h.Name,
		Type:         h.Type,
		Invested:     h.InvestedAmount,
		Current:      h.CurrentValue,
		PnL:          pnl,
		PnLPct:       pnlPct,
		PurchaseDate: h.PurchaseDate,
		Symbol:       h.TrackingSymbol,
	}
}

// TopHoldings returns at most n holding lines.
func (s Snapshot) TopHoldings(n int) []HoldingLine {
	if len(s.Holdings) <= n {
		return s.Holdings
	}
	return s.Holdings[:n]
}
