// Package assistant is the AI layer over a portfolio: insight summaries,
// chat, a model risk opinion and per-holding predictions. Every operation
// falls back to a local answer when the model is missing or fails.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/risk"
)

// ErrNoModel is reported when no LLM client is configured.
var ErrNoModel = errors.New("AI model not configured")

const (
	insightTopHoldings = 4
	chatTopHoldings    = 12
	riskTopHoldings    = 20
	maxHistoryTurns    = 8
)

// Service implements interfaces.PortfolioAssistant.
type Service struct {
	llm    interfaces.LLMClient
	logger *common.Logger
	retry  RetryConfig
}

// Option configures the service
type Option func(*Service)

// WithRetry overrides the retry policy for model calls.
func WithRetry(cfg RetryConfig) Option {
	return func(s *Service) {
		s.retry = cfg
	}
}

// NewService creates an assistant. llm may be nil, in which case every
// operation answers locally.
func NewService(llm interfaces.LLMClient, logger *common.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Service{llm: llm, logger: logger, retry: DefaultRetryConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// generate calls the model with retries. Blank replies count as failures.
func (s *Service) generate(ctx context.Context, system string, turns []models.ChatTurn) (string, error) {
	if s.llm == nil {
		return "", ErrNoModel
	}
	var reply string
	err := retry(ctx, s.retry, func() error {
		text, err := s.llm.Generate(ctx, system, turns)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return errors.New("model returned empty content")
		}
		reply = text
		return nil
	})
	return reply, err
}

func userTurn(lines ...string) []models.ChatTurn {
	return []models.ChatTurn{{Role: models.RoleUser, Content: strings.Join(lines, "\n")}}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func filterClass(holdings []models.Holding, class models.AssetClass) []models.Holding {
	if class == "" {
		return holdings
	}
	out := make([]models.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.Type == class {
			out = append(out, h)
		}
	}
	return out
}

// Insight summarises the portfolio, or one class of it when class is set.
func (s *Service) Insight(ctx context.Context, holdings []models.Holding, class models.AssetClass) string {
	filtered := filterClass(holdings, class)
	if len(filtered) == 0 {
		return emptyInsightText
	}
	snap := BuildSnapshot(filtered)

	scope := "full portfolio"
	if class != "" {
		scope = classNoun(class)
	}
	alloc := make([]string, len(snap.Allocation))
	for i, a := range snap.Allocation {
		alloc[i] = fmt.Sprintf("%s %s%%", a.Label, common.FormatFixed(a.Share, 0))
	}
	top := snap.TopHoldings(insightTopHoldings)
	names := make([]string, len(top))
	for i, h := range top {
		names[i] = fmt.Sprintf("%s (%s%%)", h.Name, common.FormatFixed(h.PnLPct, 1))
	}

	reply, err := s.generate(ctx, chatSystemPrompt, userTurn(
		fmt.Sprintf("Generate an insight summary for %s.", scope),
		fmt.Sprintf("Totals: current %s, invested %s, gain %s (%s%%).",
			common.FormatRupees(snap.Totals.Current), common.FormatRupees(snap.Totals.Invested),
			common.FormatRupees(snap.Totals.Gain), common.FormatFixed(snap.Totals.GainPct, 1)),
		fmt.Sprintf("Allocation: %s.", strings.Join(alloc, ", ")),
		fmt.Sprintf("Top holdings: %s.", strings.Join(names, ", ")),
		"Give: current health, biggest risk, and next action.",
	))
	if err != nil {
		s.logger.Warn().Err(err).Str("class", string(class)).Msg("Insight generation failed, using local summary")
		return FallbackInsight(snap)
	}
	return reply
}

// FallbackInsight is the local one-line summary of a snapshot.
func FallbackInsight(snap Snapshot) string {
	sign := "+"
	if snap.Totals.Gain < 0 {
		sign = "-"
	}
	return fmt.Sprintf("पोर्टफोलियो वैल्यू %s है, जबकि निवेश %s है (%s%s%%).",
		common.FormatRupees(snap.Totals.Current), common.FormatRupees(snap.Totals.Invested),
		sign, common.FormatFixed(math.Abs(snap.Totals.GainPct), 1))
}

type chatContext struct {
	Totals                Totals        `json:"totals"`
	MonthlyInvestEstimate float64       `json:"monthlyInvestEstimate"`
	Allocation            []Allocation  `json:"allocation"`
	Holdings              []HoldingLine `json:"holdings"`
}

// TrimHistory keeps the last eight non-empty user or assistant turns.
func TrimHistory(history []models.ChatTurn) []models.ChatTurn {
	kept := make([]models.ChatTurn, 0, len(history))
	for _, t := range history {
		content := strings.TrimSpace(t.Content)
		if content == "" || (t.Role != models.RoleUser && t.Role != models.RoleAssistant) {
			continue
		}
		kept = append(kept, models.ChatTurn{Role: t.Role, Content: content})
	}
	if len(kept) > maxHistoryTurns {
		kept = kept[len(kept)-maxHistoryTurns:]
	}
	return kept
}

// Chat answers a free-form question about the portfolio.
func (s *Service) Chat(ctx context.Context, holdings []models.Holding, message string, history []models.ChatTurn) string {
	if len(holdings) == 0 {
		return emptyChatText
	}
	snap := BuildSnapshot(holdings)
	cc := chatContext{
		Totals:                snap.Totals,
		MonthlyInvestEstimate: snap.Totals.Invested / math.Max(1, float64(len(holdings)*3)),
		Allocation:            snap.Allocation,
		Holdings:              snap.TopHoldings(chatTopHoldings),
	}

	turns := TrimHistory(history)
	turns = append(turns, models.ChatTurn{Role: models.RoleUser, Content: strings.Join([]string{
		"User question: " + message,
		"Portfolio context (JSON):",
		mustJSON(cc),
		"Answer with actionable guidance grounded in this data.",
		"If the question asks for affordability/goal/future, show calculations and assumptions.",
	}, "\n")})

	reply, err := s.generate(ctx, chatSystemPrompt, turns)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Chat generation failed")
		return fmt.Sprintf("AI सेवा अभी उपलब्ध नहीं है। कारण: %s। पोर्टफोलियो स्नैपशॉट: current %s, invested %s।",
			err.Error(), common.FormatRupees(snap.Totals.Current), common.FormatRupees(snap.Totals.Invested))
	}
	return reply
}

// Risk returns the heuristic risk profile, refined by the model's opinion
// where it supplies valid fields.
func (s *Service) Risk(ctx context.Context, holdings []models.Holding) models.RiskProfile {
	base := risk.Score(holdings)
	if base.Label == models.RiskNoData || s.llm == nil {
		return base
	}

	snap := BuildSnapshot(holdings)
	payload := struct {
		Totals     Totals        `json:"totals"`
		Allocation []Allocation  `json:"allocation"`
		Holdings   []HoldingLine `json:"holdings"`
	}{snap.Totals, snap.Allocation, snap.TopHoldings(riskTopHoldings)}

	raw, err := s.generate(ctx, riskSystemPrompt, userTurn("Portfolio snapshot JSON:", mustJSON(payload)))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Risk opinion failed, using heuristic profile")
		return base
	}
	override, err := risk.ParseOverride(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Risk opinion unparseable, using heuristic profile")
		return base
	}
	return risk.MergeOverride(base, override)
}

// Predict returns a short 30-day outlook for one holding.
func (s *Service) Predict(ctx context.Context, h models.Holding) string {
	symbol := h.TrackingSymbol
	if symbol == "" {
		symbol = h.DisplaySymbol
	}
	line := holdingLine(h)
	line.Symbol = symbol

	reply, err := s.generate(ctx, predictionSystemPrompt, userTurn(
		"Holding context:",
		mustJSON(line),
		"Respond with one short prediction sentence.",
	))
	if err != nil {
		s.logger.Debug().Err(err).Str("holding", h.Name).Msg("Prediction generation failed, using local outlook")
		return FallbackPrediction(h.Name)
	}
	return reply
}

// FallbackPrediction derives a stable outlook sentence from the holding name.
func FallbackPrediction(name string) string {
	var hash uint32
	for _, c := range utf16.Encode([]rune(name)) {
		hash = hash*33 + uint32(c)
	}
	pct := (float64(hash%900) - 300) / 100

	switch {
	case pct >= 2:
		return fmt.Sprintf("Bias is positive: %s%% potential upside in the next 30 days if trend continues.", common.FormatFixed(pct, 1))
	case pct >= 0:
		return fmt.Sprintf("Outlook is neutral-positive: around %s%% move expected over the next 30 days.", common.FormatFixed(pct, 1))
	}
	return fmt.Sprintf("Expect higher volatility: about %s%% downside risk in the next 30 days.", common.FormatFixed(math.Abs(pct), 1))
}

var _ interfaces.PortfolioAssistant = (*Service)(nil)
