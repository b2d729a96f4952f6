// Package resolver maps free-text instrument names onto tradable identifiers:
// exchange tickers for equities and scheme codes for mutual funds.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
)

// ErrNotResolved is returned when no instrument matches the query.
var ErrNotResolved = errors.New("instrument not resolved")

const (
	quoteTypeEquity = "EQUITY"

	resolveCount     = 8
	topSymbolsCount  = 12
	topSymbolsLimit  = 3
	maxSchemeResults = 6
	minQueryLength   = 2
)

var schemeCodePattern = regexp.MustCompile(`\d{5,8}`)

// aliases short-circuit search for common index and benchmark names.
var aliases = map[string]string{
	"GOLD":      "GC=F",
	"NIFTY":     "^NSEI",
	"NIFTY50":   "^NSEI",
	"NIFTY 50":  "^NSEI",
	"SENSEX":    "^BSESN",
	"BANKNIFTY": "^NSEBANK",
}

// Service resolves and searches instruments.
type Service struct {
	quotes interfaces.QuoteSource
	series interfaces.SeriesProvider
	funds  interfaces.FundRegistry
	logger *common.Logger

	schemesMu sync.Mutex
	schemes   []models.Scheme
}

// NewService creates a resolver.
func NewService(quotes interfaces.QuoteSource, series interfaces.SeriesProvider, funds interfaces.FundRegistry, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{quotes: quotes, series: series, funds: funds, logger: logger}
}

// SchemeCode extracts a 5-8 digit scheme code embedded in s.
func SchemeCode(s string) (string, bool) {
	code := schemeCodePattern.FindString(s)
	return code, code != ""
}

// StockCandidates returns ticker guesses for a raw name: the upper-cased,
// whitespace-stripped name, plus NSE and BSE suffixed variants unless the
// name already carries a suffix or is a pair like GC=F.
func StockCandidates(name string) []string {
	cleaned := strings.Join(strings.Fields(strings.ToUpper(name)), "")
	if cleaned == "" {
		return nil
	}
	if strings.ContainsAny(cleaned, "=.") {
		return []string{cleaned}
	}
	return []string{cleaned, cleaned + ".NS", cleaned + ".BO"}
}

// Alias returns the static symbol for a well-known name.
func Alias(name string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	sym, ok := aliases[key]
	return sym, ok
}

func isIndianListing(symbol string) bool {
	s := strings.ToUpper(symbol)
	return strings.HasSuffix(s, ".NS") || strings.HasSuffix(s, ".BO")
}

func containsType(types []string, t string) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// ResolveSymbol picks the best ticker for query. Preference order: first
// quote of a preferred type, then a preferred-type Indian listing, then an
// Indian equity listing, then the first quote.
func (s *Service) ResolveSymbol(ctx context.Context, query string, preferredTypes ...string) (string, error) {
	cleaned := strings.TrimSpace(query)
	if cleaned == "" {
		return "", ErrNotResolved
	}
	if sym, ok := Alias(cleaned); ok {
		return sym, nil
	}

	quotes, err := s.quotes.Search(ctx, cleaned, resolveCount)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", cleaned, err)
	}

	if len(preferredTypes) > 0 {
		for _, q := range quotes {
			if q.Symbol != "" && containsType(preferredTypes, q.QuoteType) {
				return q.Symbol, nil
			}
		}
	}

	for _, q := range quotes {
		inType := q.QuoteType == quoteTypeEquity
		if len(preferredTypes) > 0 {
			inType = containsType(preferredTypes, q.QuoteType)
		}
		if inType && isIndianListing(q.Symbol) {
			return q.Symbol, nil
		}
	}

	for _, q := range quotes {
		if q.QuoteType == quoteTypeEquity && q.Symbol != "" && isIndianListing(q.Symbol) {
			return q.Symbol, nil
		}
	}

	if len(quotes) > 0 && quotes[0].Symbol != "" {
		return quotes[0].Symbol, nil
	}
	return "", ErrNotResolved
}

// ResolveTopSymbols returns up to limit unique symbols of the preferred
// types, Indian listings first.
func (s *Service) ResolveTopSymbols(ctx context.Context, query string, limit int, preferredTypes ...string) ([]string, error) {
	cleaned := strings.TrimSpace(query)
	if cleaned == "" {
		return nil, nil
	}
	quotes, err := s.quotes.Search(ctx, cleaned, topSymbolsCount)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", cleaned, err)
	}

	var indian, other []models.SearchQuote
	for _, q := range quotes {
		if len(preferredTypes) > 0 && !containsType(preferredTypes, q.QuoteType) {
			continue
		}
		if isIndianListing(q.Symbol) {
			indian = append(indian, q)
		} else {
			other = append(other, q)
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, q := range append(indian, other...) {
		if q.Symbol == "" || seen[q.Symbol] {
			continue
		}
		seen[q.Symbol] = true
		out = append(out, q.Symbol)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// LatestPrice returns the last one-month daily close, rounded.
func (s *Service) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	points, err := s.series.GetSeries(ctx, symbol, "1mo", "1d")
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("no data for symbol %s", symbol)
	}
	return common.Round2(points[len(points)-1].Price), nil
}

// Schemes returns the fund registry's scheme list, cached for the life of
// the process once loaded.
func (s *Service) Schemes(ctx context.Context) ([]models.Scheme, error) {
	s.schemesMu.Lock()
	defer s.schemesMu.Unlock()
	if s.schemes != nil {
		return s.schemes, nil
	}
	schemes, err := s.funds.ListSchemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schemes: %w", err)
	}
	if schemes == nil {
		schemes = []models.Scheme{}
	}
	s.schemes = schemes
	s.logger.Debug().Int("schemes", len(schemes)).Msg("Mutual fund scheme list loaded")
	return schemes, nil
}

// SearchInstruments returns priced suggestions for query within class.
// Queries shorter than two characters and non-searchable classes yield an
// empty result.
func (s *Service) SearchInstruments(ctx context.Context, query string, class models.AssetClass) ([]models.InstrumentSuggestion, error) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < minQueryLength {
		return []models.InstrumentSuggestion{}, nil
	}

	switch class {
	case models.AssetStocks:
		return s.searchStocks(ctx, q)
	case models.AssetMutualFunds:
		return s.searchFunds(ctx, q)
	}
	return []models.InstrumentSuggestion{}, nil
}

var punctuationRun = regexp.MustCompile(`[-_/.,]+`)

func (s *Service) searchStocks(ctx context.Context, q string) ([]models.InstrumentSuggestion, error) {
	cleaned := strings.Join(strings.Fields(punctuationRun.ReplaceAllString(q, " ")), " ")
	first := cleaned
	if first == "" {
		first = q
	}

	symbols, err := s.ResolveTopSymbols(ctx, first, topSymbolsLimit, quoteTypeEquity)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 && cleaned != "" && cleaned != q {
		if symbols, err = s.ResolveTopSymbols(ctx, q, topSymbolsLimit, quoteTypeEquity); err != nil {
			return nil, err
		}
	}

	prices := make([]float64, len(symbols))
	errs := make([]error, len(symbols))
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			prices[i], errs[i] = s.LatestPrice(ctx, sym)
		}(i, sym)
	}
	wg.Wait()

	out := make([]models.InstrumentSuggestion, 0, len(symbols))
	for i, sym := range symbols {
		if errs[i] != nil {
			s.logger.Debug().Err(errs[i]).Str("symbol", sym).Msg("Suggestion price unavailable")
			continue
		}
		out = append(out, models.InstrumentSuggestion{
			Label:        sym,
			Symbol:       sym,
			CurrentPrice: prices[i],
			Type:         models.SuggestionStock,
		})
	}
	return out, nil
}

type scoredScheme struct {
	scheme models.Scheme
	score  int
}

func (s *Service) searchFunds(ctx context.Context, q string) ([]models.InstrumentSuggestion, error) {
	schemes, err := s.Schemes(ctx)
	if err != nil {
		return nil, err
	}

	var ranked []scoredScheme
	for _, sc := range schemes {
		if score := ScoreScheme(q, sc.Name); score > 0 {
			ranked = append(ranked, scoredScheme{scheme: sc, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxSchemeResults {
		ranked = ranked[:maxSchemeResults]
	}

	prices := make([]float64, len(ranked))
	var wg sync.WaitGroup
	for i, r := range ranked {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			rows, err := s.funds.GetNavHistory(ctx, code)
			if err != nil || len(rows) == 0 {
				return
			}
			prices[i] = common.Round2(rows[0].NAV)
		}(i, r.scheme.Code)
	}
	wg.Wait()

	out := make([]models.InstrumentSuggestion, 0, len(ranked))
	for i, r := range ranked {
		if prices[i] <= 0 {
			continue
		}
		out = append(out, models.InstrumentSuggestion{
			Label:        r.scheme.Name,
			Symbol:       r.scheme.Code,
			CurrentPrice: prices[i],
			Type:         models.SuggestionMutualFund,
		})
	}
	return out, nil
}

var _ interfaces.InstrumentSearcher = (*Service)(nil)
