package models

import "time"

// PricePoint is one sample of a time-ordered price series.
type PricePoint struct {
	Timestamp int64   `json:"ts"` // Unix milliseconds, UTC
	Price     float64 `json:"price"`
}

// Time returns the point's timestamp as a UTC time.
func (p PricePoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// TrendPoint is a labelled chart sample.
type TrendPoint struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// MarketData is the normalised view of one instrument: point prices plus
// monthly trend series over four windows.
type MarketData struct {
	HistoricalPrice float64      `json:"historicalPrice"`
	CurrentPrice    float64      `json:"currentPrice"`
	StartOfDay      *float64     `json:"startOfDay,omitempty"`
	StartOfWeek     *float64     `json:"startOfWeek,omitempty"`
	StartOfMonth    *float64     `json:"startOfMonth,omitempty"`
	Trend6M         []TrendPoint `json:"trend6M"`
	Trend1Y         []TrendPoint `json:"trend1Y"`
	Trend5Y         []TrendPoint `json:"trend5Y"`
	Trend10Y        []TrendPoint `json:"trend10Y"`
	// Synthetic is set when every source failed and the values were
	// generated from a seed.
	Synthetic bool `json:"synthetic,omitempty"`
}

// LongestTrend returns the first non-empty of the 10Y, 5Y and 1Y trends.
func (m *MarketData) LongestTrend() []TrendPoint {
	switch {
	case len(m.Trend10Y) > 0:
		return m.Trend10Y
	case len(m.Trend5Y) > 0:
		return m.Trend5Y
	default:
		return m.Trend1Y
	}
}

// Quote is a latest-price snapshot from the equity source.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
}

// SearchQuote is one instrument returned by the equity source's search.
type SearchQuote struct {
	Symbol    string `json:"symbol"`
	QuoteType string `json:"quoteType"`
	Exchange  string `json:"exchange"`
	ShortName string `json:"shortName"`
}

// Scheme is a mutual-fund scheme listed by the fund registry.
type Scheme struct {
	Code string `json:"schemeCode"`
	Name string `json:"schemeName"`
}

// NavRow is one raw NAV entry from the fund registry.
type NavRow struct {
	Date string  `json:"date"` // dd-mm-yyyy
	NAV  float64 `json:"nav"`
}

// InstrumentSuggestion is a search hit offered when adding a holding.
type InstrumentSuggestion struct {
	Label        string  `json:"label"`
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"currentPrice"`
	Type         string  `json:"type"` // STOCK or MUTUAL_FUND
}

const (
	SuggestionStock      = "STOCK"
	SuggestionMutualFund = "MUTUAL_FUND"
)

// SipSnapshot is the result of replaying a monthly SIP against NAV history.
type SipSnapshot struct {
	InvestedAmount   float64  `json:"investedAmount"`
	Quantity         float64  `json:"quantity"`
	CurrentPrice     float64  `json:"currentPrice"`
	CurrentValue     float64  `json:"currentValue"`
	AvgPurchasePrice float64  `json:"avgPurchasePrice"`
	Installments     int      `json:"installments"`
	StartOfDay       *float64 `json:"startOfDay,omitempty"`
	StartOfWeek      *float64 `json:"startOfWeek,omitempty"`
	StartOfMonth     *float64 `json:"startOfMonth,omitempty"`
}

// FetchOptions tunes a market-data lookup.
type FetchOptions struct {
	// FixedSymbol pins the instrument (ticker or scheme code) and skips
	// resolution.
	FixedSymbol string `json:"fixedSymbol,omitempty"`
	// Lite fetches a short recent series and fills point prices only.
	Lite bool `json:"lite,omitempty"`
}
