// Package common provides shared utilities for Novus
package common

import "time"

// Freshness TTLs for cached price series, by requested range
const (
	FreshnessSeries10Y   = 24 * time.Hour
	FreshnessSeries5Y    = 12 * time.Hour
	FreshnessSeriesYear  = 1 * time.Hour // 1y and 6mo
	FreshnessSeriesShort = 15 * time.Minute

	// StaleSeriesWindow bounds how old a durable entry may be and still be
	// served when the upstream source is failing.
	StaleSeriesWindow = 14 * 24 * time.Hour
)

// SeriesTTL returns the cache lifetime for a series of the given range.
// Coarser ranges change less often and live longer.
func SeriesTTL(rangeKey string) time.Duration {
	switch rangeKey {
	case "10y", "max":
		return FreshnessSeries10Y
	case "5y":
		return FreshnessSeries5Y
	case "1y", "6mo", "2y":
		return FreshnessSeriesYear
	default:
		return FreshnessSeriesShort
	}
}
