// Package market normalises every asset class into models.MarketData.
//
// Stocks come from the quote source via the resolver and ticker candidates,
// mutual funds from the fund registry's NAV history, and gold is composed
// from a futures series and an FX series. Fixed deposits are never fetched.
// FetchMarketData does not fail: when every source is exhausted it returns
// seeded synthetic data.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/resolver"
)

// ErrNoData is returned when a source yields no usable points.
var ErrNoData = errors.New("no market data")

// OunceToGram is troy ounces to grams.
const OunceToGram = 31.1034768

const (
	rangeFull     = "10y"
	rangeLite     = "6mo"
	intervalDaily = "1d"
)

// goldPairs are (futures, USD/INR) symbol pairs tried in order.
var goldPairs = [][2]string{
	{"GC=F", "USDINR=X"},
	{"XAUUSD=X", "USDINR=X"},
	{"GC=F", "INR=X"},
}

// SymbolResolver resolves a free-text name into a ticker.
type SymbolResolver interface {
	ResolveSymbol(ctx context.Context, query string, preferredTypes ...string) (string, error)
}

// QuoteFetcher returns the latest price and previous close for a ticker.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Service implements interfaces.MarketDataProvider.
type Service struct {
	series   interfaces.SeriesProvider
	funds    interfaces.FundRegistry
	resolver SymbolResolver
	quotes   QuoteFetcher
	logger   *common.Logger
	now      func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithQuotes sets the live quote source used by lite stock requests. The
// cached series then only supplies the week and month baselines.
func WithQuotes(q QuoteFetcher) Option {
	return func(s *Service) {
		s.quotes = q
	}
}

// NewService creates a market data service.
func NewService(series interfaces.SeriesProvider, funds interfaces.FundRegistry, res SymbolResolver, logger *common.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Service{
		series:   series,
		funds:    funds,
		resolver: res,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchMarketData returns market data for a holding. Lite requests fetch a
// short recent series, take stock prices from the live quote when one is
// available, and return point prices with empty trends.
func (s *Service) FetchMarketData(ctx context.Context, name string, class models.AssetClass, purchaseDate string, opts models.FetchOptions) *models.MarketData {
	data, err := s.fetch(ctx, name, class, purchaseDate, opts)
	if err != nil {
		s.logger.Warn().Err(err).Str("name", name).Str("type", string(class)).Msg("Market data fallback")
		return SyntheticMarketData(string(class) + ":" + name)
	}
	if opts.Lite && !data.Synthetic {
		data.Trend6M = []models.TrendPoint{}
		data.Trend1Y = []models.TrendPoint{}
		data.Trend5Y = []models.TrendPoint{}
		data.Trend10Y = []models.TrendPoint{}
	}
	return data
}

func (s *Service) fetch(ctx context.Context, name string, class models.AssetClass, purchaseDate string, opts models.FetchOptions) (*models.MarketData, error) {
	switch class {
	case models.AssetGold:
		return s.fetchGold(ctx, purchaseDate, opts.Lite)
	case models.AssetMutualFunds:
		ref := opts.FixedSymbol
		if ref == "" {
			ref = name
		}
		return s.fetchMutualFund(ctx, ref, purchaseDate)
	case models.AssetFixedDeposit:
		return SyntheticMarketData("fd:" + name), nil
	}

	if opts.FixedSymbol != "" {
		points, err := s.series.GetSeries(ctx, opts.FixedSymbol, seriesRange(opts.Lite), intervalDaily)
		if err != nil {
			return nil, err
		}
		data, err := Summarize(points, purchaseDate, s.now())
		if err != nil {
			return nil, err
		}
		if opts.Lite {
			s.applyQuote(ctx, opts.FixedSymbol, data)
		}
		return data, nil
	}
	return s.fetchStockLike(ctx, name, purchaseDate, opts.Lite)
}

// applyQuote overwrites the current price and start-of-day baseline with
// the live quote. A failed quote leaves the series values in place.
func (s *Service) applyQuote(ctx context.Context, symbol string, data *models.MarketData) {
	if s.quotes == nil {
		return
	}
	q, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil || q.Price <= 0 {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("Live quote unavailable, using series close")
		return
	}
	data.CurrentPrice = common.Round2(q.Price)
	if q.PreviousClose > 0 {
		data.StartOfDay = models.Float(common.Round2(q.PreviousClose))
	}
}

func seriesRange(lite bool) string {
	if lite {
		return rangeLite
	}
	return rangeFull
}

func (s *Service) fetchStockLike(ctx context.Context, name, purchaseDate string, lite bool) (*models.MarketData, error) {
	candidates := resolver.StockCandidates(name)
	if s.resolver != nil {
		if sym, err := s.resolver.ResolveSymbol(ctx, name, "EQUITY"); err == nil && sym != "" && !contains(candidates, sym) {
			candidates = append([]string{sym}, candidates...)
		}
	}

	for _, sym := range candidates {
		points, err := s.series.GetSeries(ctx, sym, seriesRange(lite), intervalDaily)
		if err != nil {
			s.logger.Debug().Err(err).Str("symbol", sym).Msg("Stock candidate failed")
			continue
		}
		data, err := Summarize(points, purchaseDate, s.now())
		if err != nil {
			continue
		}
		if lite {
			s.applyQuote(ctx, sym, data)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unable to fetch stock data for %s: %w", name, ErrNoData)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (s *Service) fetchMutualFund(ctx context.Context, ref, purchaseDate string) (*models.MarketData, error) {
	code, ok := resolver.SchemeCode(ref)
	if !ok {
		return nil, fmt.Errorf("mutual fund tracking expects mfapi scheme code: %q", ref)
	}
	rows, err := s.funds.GetNavHistory(ctx, code)
	if err != nil {
		return nil, err
	}
	series := NavSeries(rows)
	if len(series) == 0 {
		return nil, fmt.Errorf("no NAV data for scheme %s: %w", code, ErrNoData)
	}
	return Summarize(series, purchaseDate, s.now())
}

func (s *Service) fetchGold(ctx context.Context, purchaseDate string, lite bool) (*models.MarketData, error) {
	rng := seriesRange(lite)
	for _, pair := range goldPairs {
		var futures, fx []models.PricePoint
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			futures, err = s.series.GetSeries(gctx, pair[0], rng, intervalDaily)
			return err
		})
		g.Go(func() error {
			var err error
			fx, err = s.series.GetSeries(gctx, pair[1], rng, intervalDaily)
			return err
		})
		if err := g.Wait(); err != nil {
			s.logger.Debug().Err(err).Str("futures", pair[0]).Str("fx", pair[1]).Msg("Gold pair failed")
			continue
		}
		if combined := ComposeGold(futures, fx); len(combined) > 0 {
			return Summarize(combined, purchaseDate, s.now())
		}
	}
	return nil, fmt.Errorf("unable to fetch gold data: %w", ErrNoData)
}

// ComposeGold converts a USD-per-ounce futures series into INR per gram,
// using the FX point nearest each futures timestamp.
func ComposeGold(futures, fx []models.PricePoint) []models.PricePoint {
	if len(futures) == 0 || len(fx) == 0 {
		return nil
	}
	out := make([]models.PricePoint, len(futures))
	for i, p := range futures {
		rate := nearestPrice(fx, p.Timestamp)
		out[i] = models.PricePoint{Timestamp: p.Timestamp, Price: p.Price * rate / OunceToGram}
	}
	return out
}

var _ interfaces.MarketDataProvider = (*Service)(nil)
