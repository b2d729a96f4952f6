// Package models defines the domain types shared across Novus services.
package models

import (
	"strings"
	"time"
)

// AssetClass identifies the kind of instrument a holding tracks.
type AssetClass string

const (
	AssetStocks       AssetClass = "STOCKS"
	AssetMutualFunds  AssetClass = "MUTUAL_FUNDS"
	AssetGold         AssetClass = "GOLD"
	AssetFixedDeposit AssetClass = "FIXED_DEPOSIT"
)

// AssetClasses lists every class in display order. Ties in allocation
// rankings resolve in this order.
var AssetClasses = []AssetClass{AssetStocks, AssetMutualFunds, AssetGold, AssetFixedDeposit}

// ParseAssetClass normalises user input into an AssetClass.
func ParseAssetClass(s string) (AssetClass, bool) {
	switch AssetClass(strings.ToUpper(strings.TrimSpace(s))) {
	case AssetStocks, "STOCK":
		return AssetStocks, true
	case AssetMutualFunds, "MUTUAL_FUND", "MF":
		return AssetMutualFunds, true
	case AssetGold:
		return AssetGold, true
	case AssetFixedDeposit, "FD":
		return AssetFixedDeposit, true
	}
	return "", false
}

// Label returns the human-readable class name.
func (c AssetClass) Label() string {
	switch c {
	case AssetStocks:
		return "Stocks"
	case AssetMutualFunds:
		return "Mutual Funds"
	case AssetGold:
		return "Gold"
	case AssetFixedDeposit:
		return "Fixed Deposits"
	}
	return string(c)
}

// Marketable reports whether the class is priced from an exchange or fund
// registry (and so subject to symbol resolution and the refresh ratio guard).
func (c AssetClass) Marketable() bool {
	return c == AssetStocks || c == AssetMutualFunds
}

// GoldInstrumentName is the instrument every gold holding is priced as.
const GoldInstrumentName = "24K Gold 1g India"

// SipFrequencyMonthly is the only supported recurring schedule.
const SipFrequencyMonthly = "MONTHLY"

// Holding is a single ledger entry. When MemberIDs is populated the value is
// a merged composite of several entries for the same instrument.
type Holding struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           AssetClass `json:"type"`
	TrackingSymbol string     `json:"trackingSymbol,omitempty"`
	DisplaySymbol  string     `json:"displaySymbol,omitempty"`
	MemberIDs      []string   `json:"memberIds,omitempty"`

	InvestedAmount float64 `json:"investedAmount"`
	CurrentValue   float64 `json:"currentValue"`
	Quantity       float64 `json:"quantity"`
	PurchasePrice  float64 `json:"purchasePrice"`
	PurchaseDate   string  `json:"purchaseDate"` // YYYY-MM-DD
	LastUpdated    string  `json:"lastUpdated"`  // RFC 3339

	PriceStartOfDay   *float64 `json:"priceStartOfDay,omitempty"`
	PriceStartOfWeek  *float64 `json:"priceStartOfWeek,omitempty"`
	PriceStartOfMonth *float64 `json:"priceStartOfMonth,omitempty"`

	InterestRate *float64 `json:"interestRate,omitempty"`
	TenureYears  *float64 `json:"tenureYears,omitempty"`

	IsSip        bool     `json:"isSip,omitempty"`
	SipAmount    *float64 `json:"sipAmount,omitempty"`
	SipDay       int      `json:"sipDay,omitempty"`
	SipFrequency string   `json:"sipFrequency,omitempty"`
}

// DateLayout is the calendar format of Holding.PurchaseDate.
const DateLayout = "2006-01-02"

// PurchaseTime parses PurchaseDate in loc at midnight. ok is false for an
// empty or malformed date.
func (h *Holding) PurchaseTime(loc *time.Location) (time.Time, bool) {
	if h.PurchaseDate == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, h.PurchaseDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (h Holding) Clone() Holding {
	c := h
	if h.MemberIDs != nil {
		c.MemberIDs = append([]string(nil), h.MemberIDs...)
	}
	c.PriceStartOfDay = clonePtr(h.PriceStartOfDay)
	c.PriceStartOfWeek = clonePtr(h.PriceStartOfWeek)
	c.PriceStartOfMonth = clonePtr(h.PriceStartOfMonth)
	c.InterestRate = clonePtr(h.InterestRate)
	c.TenureYears = clonePtr(h.TenureYears)
	c.SipAmount = clonePtr(h.SipAmount)
	return c
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Deref returns *p or 0 when p is nil.
func Deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// UserProfile holds display preferences for the portfolio owner.
type UserProfile struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// DefaultProfile is used when no profile has been saved.
func DefaultProfile() UserProfile {
	return UserProfile{Name: "Investor", Currency: "₹"}
}

// StateID is the fixed key under which the single portfolio is persisted.
const StateID = "1"

// PortfolioState is the complete persisted portfolio.
type PortfolioState struct {
	ID          string      `json:"id"`
	Investments []Holding   `json:"investments"`
	Profile     UserProfile `json:"profile"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// NewPortfolioState returns an empty state with the given profile.
func NewPortfolioState(profile UserProfile) *PortfolioState {
	return &PortfolioState{ID: StateID, Investments: []Holding{}, Profile: profile}
}

// Clone returns a deep copy of the state.
func (s *PortfolioState) Clone() *PortfolioState {
	c := *s
	c.Investments = make([]Holding, len(s.Investments))
	for i, h := range s.Investments {
		c.Investments[i] = h.Clone()
	}
	return &c
}

// AddHoldingRequest is the user's entry for a new holding.
type AddHoldingRequest struct {
	Type         AssetClass `json:"type"`
	Name         string     `json:"name"`
	Quantity     float64    `json:"quantity"`
	PurchaseDate string     `json:"purchaseDate"`

	// Symbol and Label carry a picked search suggestion.
	Symbol string `json:"symbol,omitempty"`
	Label  string `json:"label,omitempty"`

	// PricePaid is the per-gram price for gold.
	PricePaid float64 `json:"pricePaid,omitempty"`

	// Amount and InterestRate describe a fixed deposit.
	Amount       float64  `json:"amount,omitempty"`
	InterestRate *float64 `json:"interestRate,omitempty"`
	TenureYears  *float64 `json:"tenureYears,omitempty"`

	SipMode   bool    `json:"sipMode,omitempty"`
	SipAmount float64 `json:"sipAmount,omitempty"`
	SipDay    int     `json:"sipDay,omitempty"`
}

// RefreshResult reports one refresh cycle.
type RefreshResult struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
}
