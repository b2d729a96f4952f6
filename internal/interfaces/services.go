package interfaces

import (
	"context"

	"github.com/bobmcallan/novus/internal/models"
)

// SeriesProvider returns cached price series. Implemented by the series
// cache in front of a QuoteSource.
type SeriesProvider interface {
	GetSeries(ctx context.Context, symbol, rangeKey, interval string) ([]models.PricePoint, error)
}

// MarketDataProvider normalises any holding into MarketData. It never
// fails: unrecoverable lookups yield seeded synthetic data.
type MarketDataProvider interface {
	FetchMarketData(ctx context.Context, name string, class models.AssetClass, purchaseDate string, opts models.FetchOptions) *models.MarketData
}

// InstrumentSearcher turns free text into priced instrument suggestions.
type InstrumentSearcher interface {
	SearchInstruments(ctx context.Context, query string, class models.AssetClass) ([]models.InstrumentSuggestion, error)
}

// SipSimulator replays a monthly SIP against NAV history.
type SipSimulator interface {
	Simulate(ctx context.Context, schemeCode, startDate string, monthlyAmount float64, sipDay int) (*models.SipSnapshot, error)
}

// PortfolioAssistant is the AI layer over a portfolio snapshot. Every
// method degrades to a local answer when the model is unavailable.
type PortfolioAssistant interface {
	Insight(ctx context.Context, holdings []models.Holding, class models.AssetClass) string
	Chat(ctx context.Context, holdings []models.Holding, message string, history []models.ChatTurn) string
	Risk(ctx context.Context, holdings []models.Holding) models.RiskProfile
	Predict(ctx context.Context, holding models.Holding) string
}

// PortfolioLedger owns the persisted holdings and their valuation.
type PortfolioLedger interface {
	State(ctx context.Context) (*models.PortfolioState, error)
	Holdings(ctx context.Context, merged bool) ([]models.Holding, error)
	Count(ctx context.Context) (int, error)
	AddHolding(ctx context.Context, req models.AddHoldingRequest) (*models.Holding, error)
	DeleteHoldings(ctx context.Context, ids ...string) (int, error)
	UpdateProfile(ctx context.Context, profile models.UserProfile) (models.UserProfile, error)
	HoldingDetail(ctx context.Context, id string) (*models.HoldingDetail, error)
	Refresh(ctx context.Context) (*models.RefreshResult, error)
}

// TrendBuilder reconstructs monthly value history for a set of holdings.
type TrendBuilder interface {
	Trends(ctx context.Context, holdings []models.Holding, class models.AssetClass) (*models.TrendSet, error)
}
