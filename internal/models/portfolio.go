package models

// PortfolioSummary holds headline totals and period returns.
type PortfolioSummary struct {
	TotalInvested         float64 `json:"totalInvested"`
	TotalCurrentValue     float64 `json:"totalCurrentValue"`
	OverallGain           float64 `json:"overallGain"`
	OverallGainPercentage float64 `json:"overallGainPercentage"`
	TodayReturn           float64 `json:"todayReturn"`
	WeekReturn            float64 `json:"weekReturn"`
	MonthReturn           float64 `json:"monthReturn"`
}

// TrendWindow names one of the chart windows.
type TrendWindow string

const (
	Window6M  TrendWindow = "6M"
	Window1Y  TrendWindow = "1Y"
	Window5Y  TrendWindow = "5Y"
	Window10Y TrendWindow = "10Y"
)

// TrendSeries is the current/invested/profit triple for one window.
type TrendSeries struct {
	Current  []TrendPoint `json:"current"`
	Invested []TrendPoint `json:"invested"`
	Profit   []TrendPoint `json:"profit"`
}

// TrendSet holds every window for one scope (whole portfolio or one class).
type TrendSet struct {
	Scope   string                      `json:"scope"`
	Windows map[TrendWindow]TrendSeries `json:"windows"`
}

// Risk labels.
const (
	RiskHigh         = "High"
	RiskModerateHigh = "Moderate High"
	RiskModerate     = "Moderate"
	RiskModerateLow  = "Moderate Low"
	RiskLow          = "Low"
	RiskNoData       = "No Data"
)

// CategoryRisk is the per-asset-class risk contribution.
type CategoryRisk struct {
	Type  AssetClass `json:"type"`
	Label string     `json:"label"`
	Value float64    `json:"value"`
	Share float64    `json:"share"` // percent
	Score float64    `json:"score"`
	Level string     `json:"level"`
}

// RiskProfile is the portfolio risk assessment.
type RiskProfile struct {
	Score             float64        `json:"score"`
	Label             string         `json:"label"`
	Note              string         `json:"note"`
	CategoryBreakdown []CategoryRisk `json:"categoryBreakdown"`
	Factors           []string       `json:"factors"`
	Source            string         `json:"source,omitempty"` // heuristic or ai
}

// ChatTurn is one message of an assistant conversation.
type ChatTurn struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HoldingDetail is the per-holding drill-down view.
type HoldingDetail struct {
	Holding    Holding     `json:"holding"`
	Market     *MarketData `json:"market"`
	Prediction string      `json:"prediction"`
}
