// Package valuation computes fixed deposit values from the quarterly
// compounding formula.
package valuation

import (
	"math"
	"time"
)

// DefaultRate is the annual percentage assumed when a deposit has no rate.
const DefaultRate = 7.0

const daysPerYear = 365

// Rate returns *rate, or DefaultRate when unset.
func Rate(rate *float64) float64 {
	if rate == nil {
		return DefaultRate
	}
	return *rate
}

// FDValue returns principal compounded quarterly at annualRatePct from start
// to asOf, counting whole elapsed days.
func FDValue(principal, annualRatePct float64, start, asOf time.Time) float64 {
	days := math.Floor(asOf.Sub(start).Hours() / 24)
	return compound(principal, annualRatePct, days)
}

// FDValueAt is FDValue with fractional elapsed days, used when valuing a
// deposit at points on a historical timeline.
func FDValueAt(principal, annualRatePct float64, start, at time.Time) float64 {
	return compound(principal, annualRatePct, at.Sub(start).Hours()/24)
}

func compound(principal, annualRatePct, days float64) float64 {
	if days < 0 {
		days = 0
	}
	years := days / daysPerYear
	return principal * math.Pow(1+annualRatePct/400, 4*years)
}
