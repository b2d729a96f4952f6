// Package aggregate derives portfolio totals, period returns and monthly
// trend series from holdings.
package aggregate

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/merge"
	"github.com/bobmcallan/novus/internal/services/valuation"
)

// ErrSuperseded is returned when a newer computation for the same scope
// started before this one finished.
var ErrSuperseded = errors.New("trend computation superseded")

// TimelineMonths is the length of the longest trend window.
const TimelineMonths = 120

// ScopePortfolio names the whole-portfolio trend scope.
const ScopePortfolio = "portfolio"

const defaultConcurrency = 8

// Generation hands out increasing tokens for one computation scope. Only
// the holder of the latest token may commit its result.
type Generation struct {
	n atomic.Uint64
}

// Begin starts a computation and returns its token.
func (g *Generation) Begin() uint64 {
	return g.n.Add(1)
}

// IsCurrent reports whether token is still the latest.
func (g *Generation) IsCurrent(token uint64) bool {
	return g.n.Load() == token
}

// TimelinePoint is one month of the trend timeline.
type TimelinePoint struct {
	Label string
	Date  time.Time
}

// Timeline returns months points ending at now's month, each on the 28th at
// noon in loc.
func Timeline(now time.Time, months int, loc *time.Location) []TimelinePoint {
	now = now.In(loc)
	layout := "Jan"
	if months > 12 {
		layout = "Jan 06"
	}
	out := make([]TimelinePoint, months)
	for i := 0; i < months; i++ {
		d := time.Date(now.Year(), now.Month()-time.Month(months-1-i), 28, 12, 0, 0, 0, loc)
		out[i] = TimelinePoint{Label: d.Format(layout), Date: d}
	}
	return out
}

// Service computes trend sets.
type Service struct {
	market      interfaces.MarketDataProvider
	logger      *common.Logger
	now         func() time.Time
	loc         *time.Location
	concurrency int

	mu   sync.Mutex
	gens map[string]*Generation
}

// Option configures the service
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the zone the timeline is anchored in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithConcurrency bounds concurrent market lookups.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates an aggregate service.
func NewService(market interfaces.MarketDataProvider, logger *common.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Service{
		market:      market,
		logger:      logger,
		now:         time.Now,
		loc:         time.Local,
		concurrency: defaultConcurrency,
		gens:        make(map[string]*Generation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generation returns the token source for scope.
func (s *Service) Generation(scope string) *Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gens[scope]
	if !ok {
		g = &Generation{}
		s.gens[scope] = g
	}
	return g
}

type monthValue struct {
	invested, current float64
}

// Trends builds the trend set for the whole portfolio (class == "") or one
// asset class. A class scope merges positions first. If another Trends call
// for the same scope starts before this one finishes, ErrSuperseded is
// returned instead of a result.
func (s *Service) Trends(ctx context.Context, holdings []models.Holding, class models.AssetClass) (*models.TrendSet, error) {
	scope := ScopePortfolio
	items := holdings
	if class != "" {
		scope = string(class)
		var filtered []models.Holding
		for _, h := range holdings {
			if h.Type == class {
				filtered = append(filtered, h)
			}
		}
		items = merge.Holdings(filtered)
	}

	gen := s.Generation(scope)
	token := gen.Begin()

	set := &models.TrendSet{Scope: scope, Windows: emptyWindows()}
	if len(items) == 0 {
		return set, nil
	}

	timeline := Timeline(s.now(), TimelineMonths, s.loc)
	parts := make([][]monthValue, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, h := range items {
		g.Go(func() error {
			parts[i] = s.holdingTimeline(gctx, h, timeline)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !gen.IsCurrent(token) {
		s.logger.Debug().Str("scope", scope).Msg("Trend result discarded, newer computation running")
		return nil, ErrSuperseded
	}

	full := sumParts(parts, timeline)
	set.Windows = windows(full)
	return set, nil
}

func (s *Service) holdingTimeline(ctx context.Context, h models.Holding, timeline []TimelinePoint) []monthValue {
	out := make([]monthValue, len(timeline))
	purchase, ok := h.PurchaseTime(time.UTC)
	if !ok {
		return out
	}

	if h.Type == models.AssetFixedDeposit {
		rate := valuation.Rate(h.InterestRate)
		for i, t := range timeline {
			if t.Date.Before(purchase) || h.InvestedAmount <= 0 {
				continue
			}
			out[i] = monthValue{
				invested: h.InvestedAmount,
				current:  valuation.FDValueAt(h.InvestedAmount, rate, purchase, t.Date),
			}
		}
		return out
	}

	name := h.TrackingSymbol
	if name == "" {
		name = h.Name
	}
	if h.Type == models.AssetGold {
		name = models.GoldInstrumentName
	}
	data := s.market.FetchMarketData(ctx, name, h.Type, h.PurchaseDate, models.FetchOptions{FixedSymbol: h.TrackingSymbol})
	series := data.LongestTrend()

	last := 0.0
	if len(series) > 0 {
		last = series[len(series)-1].Price
	}
	scale := 1.0
	if lastValue := last * h.Quantity; lastValue > 0 {
		scale = h.CurrentValue / lastValue
	}

	for i, t := range timeline {
		if t.Date.Before(purchase) {
			continue
		}
		unit := last
		if i < len(series) {
			unit = series[i].Price
		}
		out[i] = monthValue{invested: h.InvestedAmount, current: unit * h.Quantity * scale}
	}
	return out
}

func sumParts(parts [][]monthValue, timeline []TimelinePoint) models.TrendSeries {
	n := len(timeline)
	series := models.TrendSeries{
		Current:  make([]models.TrendPoint, n),
		Invested: make([]models.TrendPoint, n),
		Profit:   make([]models.TrendPoint, n),
	}
	for i, t := range timeline {
		var invested, current float64
		for _, p := range parts {
			invested += p[i].invested
			current += p[i].current
		}
		series.Current[i] = models.TrendPoint{Name: t.Label, Price: common.Round2(current)}
		series.Invested[i] = models.TrendPoint{Name: t.Label, Price: common.Round2(invested)}
		series.Profit[i] = models.TrendPoint{Name: t.Label, Price: common.Round2(current - invested)}
	}
	return series
}

func emptyWindows() map[models.TrendWindow]models.TrendSeries {
	empty := func() models.TrendSeries {
		return models.TrendSeries{Current: []models.TrendPoint{}, Invested: []models.TrendPoint{}, Profit: []models.TrendPoint{}}
	}
	return map[models.TrendWindow]models.TrendSeries{
		models.Window6M:  empty(),
		models.Window1Y:  empty(),
		models.Window5Y:  empty(),
		models.Window10Y: empty(),
	}
}

// windows slices the 120-month series into the four display windows and
// trims leading empty months from each.
func windows(full models.TrendSeries) map[models.TrendWindow]models.TrendSeries {
	slice := func(n int, monthOnly bool) models.TrendSeries {
		return TrimLeadingZeros(models.TrendSeries{
			Current:  tail(full.Current, n, monthOnly),
			Invested: tail(full.Invested, n, monthOnly),
			Profit:   tail(full.Profit, n, monthOnly),
		})
	}
	return map[models.TrendWindow]models.TrendSeries{
		models.Window10Y: slice(120, false),
		models.Window5Y:  slice(60, false),
		models.Window1Y:  slice(12, true),
		models.Window6M:  slice(6, true),
	}
}

func tail(points []models.TrendPoint, n int, monthOnly bool) []models.TrendPoint {
	if len(points) > n {
		points = points[len(points)-n:]
	}
	out := make([]models.TrendPoint, len(points))
	for i, p := range points {
		if monthOnly {
			p.Name, _, _ = strings.Cut(p.Name, " ")
		}
		out[i] = p
	}
	return out
}

const zeroEpsilon = 1e-4

// TrimLeadingZeros drops the leading months in which every series is zero,
// keeping the three series aligned. All-zero input is returned unchanged.
func TrimLeadingZeros(s models.TrendSeries) models.TrendSeries {
	n := len(s.Current)
	first := -1
	for i := 0; i < n && first < 0; i++ {
		if nonZero(s.Current, i) || nonZero(s.Invested, i) || nonZero(s.Profit, i) {
			first = i
		}
	}
	if first <= 0 {
		return s
	}
	return models.TrendSeries{
		Current:  s.Current[first:],
		Invested: cut(s.Invested, first),
		Profit:   cut(s.Profit, first),
	}
}

func nonZero(points []models.TrendPoint, i int) bool {
	return i < len(points) && math.Abs(points[i].Price) > zeroEpsilon
}

func cut(points []models.TrendPoint, i int) []models.TrendPoint {
	if i >= len(points) {
		return []models.TrendPoint{}
	}
	return points[i:]
}
var _ interfaces.TrendBuilder = (*Service)(nil)
