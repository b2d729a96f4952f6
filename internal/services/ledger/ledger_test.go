package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/resolver"
)

// --- mocks ---

type memoryStateStore struct {
	mu      sync.Mutex
	state   *models.PortfolioState
	saves   int
	loadErr error
	saveErr error
}

func (m *memoryStateStore) Load(ctx context.Context) (*models.PortfolioState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return nil, nil
	}
	return m.state.Clone(), nil
}

func (m *memoryStateStore) Save(ctx context.Context, state *models.PortfolioState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = state.Clone()
	return nil
}

func (m *memoryStateStore) Close() error { return nil }

type marketCall struct {
	name string
	date string
	opts models.FetchOptions
}

type mockMarket struct {
	mu      sync.Mutex
	data    map[string]*models.MarketData
	calls   []marketCall
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (m *mockMarket) FetchMarketData(ctx context.Context, name string, class models.AssetClass, purchaseDate string, opts models.FetchOptions) *models.MarketData {
	m.mu.Lock()
	m.calls = append(m.calls, marketCall{name: name, date: purchaseDate, opts: opts})
	md, ok := m.data[name]
	m.mu.Unlock()

	if m.started != nil {
		m.once.Do(func() { close(m.started) })
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return &models.MarketData{HistoricalPrice: 1, CurrentPrice: 1, Synthetic: true}
		}
	}
	if !ok {
		return &models.MarketData{HistoricalPrice: 1, CurrentPrice: 1, Synthetic: true}
	}
	c := *md
	return &c
}

type mockSearch struct {
	results map[string][]models.InstrumentSuggestion
	err     error
}

func (m *mockSearch) SearchInstruments(ctx context.Context, query string, class models.AssetClass) ([]models.InstrumentSuggestion, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.results[query], nil
}

type sipCall struct {
	code   string
	start  string
	amount float64
	day    int
}

type mockSip struct {
	mu    sync.Mutex
	snap  *models.SipSnapshot
	err   error
	calls []sipCall
}

func (m *mockSip) Simulate(ctx context.Context, schemeCode, startDate string, monthlyAmount float64, sipDay int) (*models.SipSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sipCall{schemeCode, startDate, monthlyAmount, sipDay})
	if m.err != nil {
		return nil, m.err
	}
	c := *m.snap
	return &c, nil
}

type mockAssistant struct{}

func (mockAssistant) Insight(ctx context.Context, holdings []models.Holding, class models.AssetClass) string {
	return ""
}

func (mockAssistant) Chat(ctx context.Context, holdings []models.Holding, message string, history []models.ChatTurn) string {
	return ""
}

func (mockAssistant) Risk(ctx context.Context, holdings []models.Holding) models.RiskProfile {
	return models.RiskProfile{}
}

func (mockAssistant) Predict(ctx context.Context, h models.Holding) string {
	return "outlook for " + h.Name
}

// Wednesday.
var now = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memoryStateStore
	market *mockMarket
	search *mockSearch
	sip    *mockSip
	svc    *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:  &memoryStateStore{},
		market: &mockMarket{data: map[string]*models.MarketData{}},
		search: &mockSearch{results: map[string][]models.InstrumentSuggestion{}},
		sip:    &mockSip{},
	}
	f.svc = NewService(f.store, f.market, f.search, f.sip, mockAssistant{}, common.NewSilentLogger(),
		WithClock(func() time.Time { return now }), WithLocation(time.UTC))
	return f
}

func (f *fixture) seed(holdings ...models.Holding) {
	st := models.NewPortfolioState(models.DefaultProfile())
	st.Investments = holdings
	f.store.state = st
}

// --- baselines ---

func TestStartsAt(t *testing.T) {
	s := StartsAt(now, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), s.Day)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), s.Week)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), s.Month)

	sunday := StartsAt(time.Date(2024, 6, 16, 23, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), sunday.Week)
}

func TestPeriodBaseline(t *testing.T) {
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	market := models.Float(110)

	assert.Nil(t, PeriodBaseline("2024-06-11", 100, nil, start, true))
	assert.Nil(t, PeriodBaseline("2024-06-11", 100, models.Float(0), start, true))
	assert.Equal(t, 100.0, *PeriodBaseline("2024-06-10", 100, market, start, true))
	assert.Equal(t, 110.0, *PeriodBaseline("2024-06-09", 100, market, start, true))
	assert.Equal(t, 110.0, *PeriodBaseline("2024-06-11", 100, market, start, false))
}

func TestImplausible(t *testing.T) {
	assert.True(t, Implausible(100, 300))
	assert.True(t, Implausible(100, 39))
	assert.False(t, Implausible(100, 250))
	assert.False(t, Implausible(100, 40))
	assert.False(t, Implausible(0, 1000))
}

// --- add ---

func TestAddHolding_FixedDeposit(t *testing.T) {
	f := newFixture()

	h, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetFixedDeposit, Name: "SBI FD", Amount: 100000, InterestRate: models.Float(7), PurchaseDate: "2023-06-13",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, 1.0, h.Quantity)
	assert.Equal(t, 100000.0, h.InvestedAmount)
	assert.Equal(t, 100000.0, h.PurchasePrice)
	assert.InDelta(t, 107186, h.CurrentValue, 1)
	assert.Equal(t, 7.0, *h.InterestRate)
	assert.Equal(t, "2024-06-12T10:00:00Z", h.LastUpdated)
	assert.Empty(t, f.market.calls)

	require.NotNil(t, f.store.state)
	assert.Len(t, f.store.state.Investments, 1)
}

func TestAddHolding_StockWithPick(t *testing.T) {
	f := newFixture()
	f.market.data["TCS.NS"] = &models.MarketData{
		HistoricalPrice: 100, CurrentPrice: 120,
		StartOfDay: models.Float(119), StartOfWeek: models.Float(115), StartOfMonth: models.Float(110),
	}

	h, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetStocks, Name: "tcs", Symbol: "TCS.NS", Label: "Tata Consultancy", Quantity: 10, PurchaseDate: "2024-01-15",
	})
	require.NoError(t, err)
	assert.Equal(t, "Tata Consultancy", h.Name)
	assert.Equal(t, "TCS.NS", h.TrackingSymbol)
	assert.Equal(t, 100.0, h.PurchasePrice)
	assert.Equal(t, 1000.0, h.InvestedAmount)
	assert.Equal(t, 1200.0, h.CurrentValue)
	assert.Equal(t, 119.0, *h.PriceStartOfDay)
	assert.Equal(t, 115.0, *h.PriceStartOfWeek)
	assert.Equal(t, 110.0, *h.PriceStartOfMonth)

	require.Len(t, f.market.calls, 1)
	assert.Equal(t, marketCall{name: "TCS.NS", date: "2024-01-15", opts: models.FetchOptions{FixedSymbol: "TCS.NS"}}, f.market.calls[0])
}

func TestAddHolding_RecentPurchaseUsesPurchasePrice(t *testing.T) {
	f := newFixture()
	f.search.results["infosys"] = []models.InstrumentSuggestion{{Label: "INFY.NS", Symbol: "INFY.NS", CurrentPrice: 1500}}
	f.market.data["INFY.NS"] = &models.MarketData{
		HistoricalPrice: 100, CurrentPrice: 120,
		StartOfDay: models.Float(119), StartOfWeek: models.Float(115), StartOfMonth: models.Float(110),
	}

	h, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetStocks, Name: "infosys", PurchaseDate: "2024-06-11",
	})
	require.NoError(t, err)
	assert.Equal(t, "INFY.NS", h.Name)
	assert.Equal(t, 1.0, h.Quantity)
	assert.Equal(t, 119.0, *h.PriceStartOfDay)
	assert.Equal(t, 100.0, *h.PriceStartOfWeek)
	assert.Equal(t, 100.0, *h.PriceStartOfMonth)
}

func TestAddHolding_Gold(t *testing.T) {
	f := newFixture()
	f.market.data[models.GoldInstrumentName] = &models.MarketData{
		HistoricalPrice: 6500, CurrentPrice: 7000, StartOfDay: models.Float(6990), StartOfMonth: models.Float(6800),
	}

	h, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetGold, Name: "Coins", Quantity: 2, PricePaid: 6000, PurchaseDate: "2024-06-12",
	})
	require.NoError(t, err)
	assert.Equal(t, 6000.0, h.PurchasePrice)
	assert.Equal(t, 12000.0, h.InvestedAmount)
	assert.Equal(t, 14000.0, h.CurrentValue)
	// No purchase-price fallback for gold.
	assert.Equal(t, 6990.0, *h.PriceStartOfDay)
	assert.Nil(t, h.PriceStartOfWeek)
	assert.Equal(t, 6800.0, *h.PriceStartOfMonth)

	require.Len(t, f.market.calls, 1)
	assert.Equal(t, "2024-06-12", f.market.calls[0].date)
}

func TestAddHolding_MutualFundCodeInName(t *testing.T) {
	f := newFixture()
	f.market.data["119551"] = &models.MarketData{HistoricalPrice: 40, CurrentPrice: 50}

	h, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetMutualFunds, Name: "Axis 119551", Quantity: 100, PurchaseDate: "2023-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "119551", h.TrackingSymbol)
	assert.Equal(t, "Axis 119551", h.Name)
	assert.Equal(t, 4000.0, h.InvestedAmount)
	assert.Equal(t, 5000.0, h.CurrentValue)
}

func TestAddHolding_UnresolvedMutualFund(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetMutualFunds, Name: "nonexistent fund xyz", Quantity: 10,
	})
	assert.ErrorIs(t, err, resolver.ErrNotResolved)
	assert.Empty(t, f.market.calls)
	assert.Nil(t, f.store.state)
}

func TestAddHolding_StockWithoutLiveData(t *testing.T) {
	f := newFixture()

	// No search hit and no market data: the provider falls back to synthetic values.
	_, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetStocks, Name: "no such company", Quantity: 5, PurchaseDate: "2024-01-15",
	})
	assert.ErrorIs(t, err, resolver.ErrNotResolved)
	require.Len(t, f.market.calls, 1)
	assert.Nil(t, f.store.state)

	f.market.data["XYZ.NS"] = &models.MarketData{HistoricalPrice: 10, CurrentPrice: 12, Synthetic: true}
	_, err = f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetStocks, Name: "xyz", Symbol: "XYZ.NS", Quantity: 5, PurchaseDate: "2024-01-15",
	})
	assert.ErrorIs(t, err, resolver.ErrNotResolved)
	assert.Nil(t, f.store.state)
}

func TestAddHolding_Sip(t *testing.T) {
	f := newFixture()
	f.sip.snap = &models.SipSnapshot{
		InvestedAmount: 15000, Quantity: 300, AvgPurchasePrice: 50, CurrentValue: 18000, StartOfMonth: models.Float(58),
	}

	h, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{
		Type: models.AssetMutualFunds, Name: "Axis", Symbol: "119551", PurchaseDate: "2024-01-01", SipMode: true, SipAmount: 5000,
	})
	require.NoError(t, err)
	assert.True(t, h.IsSip)
	assert.Equal(t, 5, h.SipDay)
	assert.Equal(t, models.SipFrequencyMonthly, h.SipFrequency)
	assert.Equal(t, 5000.0, *h.SipAmount)
	assert.Equal(t, 15000.0, h.InvestedAmount)
	assert.Equal(t, 300.0, h.Quantity)
	assert.Equal(t, 50.0, h.PurchasePrice)
	assert.Equal(t, 18000.0, h.CurrentValue)
	assert.Equal(t, 58.0, *h.PriceStartOfMonth)

	require.Len(t, f.sip.calls, 1)
	assert.Equal(t, sipCall{"119551", "2024-01-01", 5000, 5}, f.sip.calls[0])
	assert.Empty(t, f.market.calls)
}

func TestAddHolding_SipRequiresSymbolAndAmount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.AddHolding(ctx, models.AddHoldingRequest{Type: models.AssetMutualFunds, Name: "unknown fund", SipMode: true, SipAmount: 5000})
	assert.ErrorIs(t, err, resolver.ErrNotResolved)

	_, err = f.svc.AddHolding(ctx, models.AddHoldingRequest{Type: models.AssetMutualFunds, Name: "Axis", Symbol: "119551", SipMode: true})
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Nil(t, f.store.state)
}

func TestAddHolding_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []models.AddHoldingRequest{
		{Type: "BONDS", Name: "x"},
		{Type: models.AssetStocks, Name: "  "},
		{Type: models.AssetStocks, Name: "x", PurchaseDate: "12/01/2024"},
		{Type: models.AssetStocks, Name: "x", Quantity: -1},
		{Type: models.AssetFixedDeposit, Name: "FD"},
		{Type: models.AssetGold, Name: "Gold", Quantity: 1},
	}
	for _, req := range cases {
		_, err := f.svc.AddHolding(ctx, req)
		assert.ErrorIs(t, err, common.ErrValidation, "%+v", req)
	}
}

func TestAddHolding_SaveFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture()
	f.store.saveErr = errors.New("disk full")

	_, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{Type: models.AssetFixedDeposit, Name: "FD", Amount: 1000})
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")

	holdings, err := f.svc.Holdings(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestState_LoadFailure(t *testing.T) {
	f := newFixture()
	f.store.loadErr = errors.New("corrupt")

	_, err := f.svc.State(context.Background())
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestState_DefaultProfile(t *testing.T) {
	f := newFixture()
	st, err := f.svc.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultProfile(), st.Profile)
	assert.Empty(t, st.Investments)
}

// --- profile, delete, find ---

func TestUpdateProfile(t *testing.T) {
	f := newFixture()

	p, err := f.svc.UpdateProfile(context.Background(), models.UserProfile{Name: "  Asha "})
	require.NoError(t, err)
	assert.Equal(t, models.UserProfile{Name: "Asha", Currency: "₹"}, p)
	assert.Equal(t, p, f.store.state.Profile)

	_, err = f.svc.UpdateProfile(context.Background(), models.UserProfile{Name: ""})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func stock(id, symbol string, qty, current float64) models.Holding {
	return models.Holding{
		ID: id, Name: symbol, Type: models.AssetStocks, TrackingSymbol: symbol,
		Quantity: qty, InvestedAmount: current, CurrentValue: current, PurchasePrice: current / qty, PurchaseDate: "2023-01-02",
	}
}

func TestDeleteHoldings(t *testing.T) {
	f := newFixture()
	f.seed(stock("a", "AAA", 1, 10), stock("b", "BBB", 1, 10), stock("c", "AAA", 1, 10))
	ctx := context.Background()

	_, err := f.svc.DeleteHoldings(ctx)
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = f.svc.DeleteHoldings(ctx, " ", "")
	assert.ErrorIs(t, err, common.ErrValidation)

	n, err := f.svc.DeleteHoldings(ctx, "a", "c", "missing")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	holdings, err := f.svc.Holdings(ctx, false)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "b", holdings[0].ID)
}

func TestHoldings_Merged(t *testing.T) {
	f := newFixture()
	f.seed(stock("a", "AAA", 1, 10), stock("b", "BBB", 1, 10), stock("c", "AAA", 2, 20))

	merged, err := f.svc.Holdings(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Equal(t, []string{"a", "c"}, merged[0].MemberIDs)
	assert.Equal(t, 3.0, merged[0].Quantity)
}

func TestHoldingDetail(t *testing.T) {
	f := newFixture()
	f.seed(stock("a", "AAA", 1, 10))
	f.market.data["AAA"] = &models.MarketData{CurrentPrice: 12, Trend6M: []models.TrendPoint{{Name: "Jan", Price: 11}}}

	d, err := f.svc.HoldingDetail(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", d.Holding.ID)
	assert.Equal(t, "outlook for AAA", d.Prediction)
	require.NotNil(t, d.Market)
	assert.Len(t, d.Market.Trend6M, 1)
	assert.Equal(t, "AAA", f.market.calls[0].opts.FixedSymbol)

	_, err = f.svc.HoldingDetail(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrHoldingNotFound)
}

// --- refresh ---

func TestRefresh(t *testing.T) {
	f := newFixture()
	fd := models.Holding{
		ID: "fd", Name: "FD", Type: models.AssetFixedDeposit, Quantity: 1,
		InvestedAmount: 100000, CurrentValue: 100000, PurchasePrice: 100000, PurchaseDate: "2023-06-13",
	}
	gold := models.Holding{ID: "g", Name: "Gold", Type: models.AssetGold, Quantity: 1, CurrentValue: 5000, PurchasePrice: 5000, PurchaseDate: "2024-06-12"}
	unresolved := models.Holding{ID: "z", Name: "Zed Corp", Type: models.AssetStocks, Quantity: 2, CurrentValue: 90, PurchasePrice: 45, PurchaseDate: "2023-01-02"}
	f.seed(stock("ok", "AAA", 10, 1000), stock("jump", "BBB", 10, 1000), fd, gold, unresolved)

	f.market.data["AAA"] = &models.MarketData{CurrentPrice: 110, StartOfMonth: models.Float(105)}
	f.market.data["BBB"] = &models.MarketData{CurrentPrice: 300}
	f.market.data[models.GoldInstrumentName] = &models.MarketData{CurrentPrice: 15000, StartOfDay: models.Float(14900)}
	f.market.data["ZED.NS"] = &models.MarketData{CurrentPrice: 50}
	f.search.results["Zed Corp"] = []models.InstrumentSuggestion{{Label: "ZED.NS", Symbol: "ZED.NS"}}

	res, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.RefreshResult{Total: 5, Updated: 4}, res)

	byID := map[string]models.Holding{}
	for _, h := range f.store.state.Investments {
		byID[h.ID] = h
	}
	assert.Equal(t, 1100.0, byID["ok"].CurrentValue)
	assert.Equal(t, 105.0, *byID["ok"].PriceStartOfMonth)
	assert.Equal(t, 1000.0, byID["jump"].CurrentValue)
	assert.Empty(t, byID["jump"].LastUpdated)
	assert.InDelta(t, 107186, byID["fd"].CurrentValue, 1)
	// Gold is not ratio-guarded and never falls back to its purchase price.
	assert.Equal(t, 15000.0, byID["g"].CurrentValue)
	assert.Equal(t, 14900.0, *byID["g"].PriceStartOfDay)
	assert.Equal(t, "ZED.NS", byID["z"].TrackingSymbol)
	assert.Equal(t, "ZED.NS", byID["z"].DisplaySymbol)
	assert.Equal(t, 100.0, byID["z"].CurrentValue)

	for _, c := range f.market.calls {
		assert.True(t, c.opts.Lite, c.name)
	}
}

func TestRefresh_SipRederives(t *testing.T) {
	f := newFixture()
	f.seed(models.Holding{
		ID: "s", Name: "Axis", Type: models.AssetMutualFunds, TrackingSymbol: "119551", PurchaseDate: "2024-01-01",
		IsSip: true, SipAmount: models.Float(5000), Quantity: 100, InvestedAmount: 5000, CurrentValue: 5000,
	})
	f.sip.snap = &models.SipSnapshot{InvestedAmount: 30000, Quantity: 600, AvgPurchasePrice: 50, CurrentValue: 33000}

	res, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 5, f.sip.calls[0].day)

	h := f.store.state.Investments[0]
	assert.Equal(t, 30000.0, h.InvestedAmount)
	assert.Equal(t, 600.0, h.Quantity)
	assert.Equal(t, 33000.0, h.CurrentValue)
}

func TestRefresh_FailuresKeepPriorValue(t *testing.T) {
	f := newFixture()
	f.seed(models.Holding{
		ID: "s", Name: "Axis", Type: models.AssetMutualFunds, TrackingSymbol: "119551",
		IsSip: true, SipAmount: models.Float(5000), Quantity: 100, CurrentValue: 5000,
	})
	f.sip.err = errors.New("registry down")

	res, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 5000.0, f.store.state.Investments[0].CurrentValue)
}

func TestRefresh_SyntheticDataKeepsPriorValue(t *testing.T) {
	f := newFixture()
	gold := models.Holding{ID: "g", Name: "Gold", Type: models.AssetGold, Quantity: 10, CurrentValue: 60000, PurchasePrice: 5500, PurchaseDate: "2024-01-02"}
	f.seed(gold, stock("s", "CCC", 1, 10))
	// Within the ratio guard, so only the synthetic flag can reject it.
	f.market.data["CCC"] = &models.MarketData{CurrentPrice: 12, Synthetic: true}

	res, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)

	byID := map[string]models.Holding{}
	for _, h := range f.store.state.Investments {
		byID[h.ID] = h
	}
	assert.Equal(t, 60000.0, byID["g"].CurrentValue)
	assert.Empty(t, byID["g"].LastUpdated)
	assert.Equal(t, 10.0, byID["s"].CurrentValue)
}

func TestRefresh_DeadlineCommitsCompletedHoldings(t *testing.T) {
	f := newFixture()
	fd := models.Holding{
		ID: "fd", Name: "FD", Type: models.AssetFixedDeposit, Quantity: 1,
		InvestedAmount: 100000, CurrentValue: 100000, PurchasePrice: 100000, PurchaseDate: "2023-06-13",
	}
	f.seed(fd, stock("slow", "AAA", 1, 10))
	f.market.data["AAA"] = &models.MarketData{CurrentPrice: 11}
	f.market.release = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := f.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.RefreshResult{Total: 2, Updated: 1}, res)

	byID := map[string]models.Holding{}
	for _, h := range f.store.state.Investments {
		byID[h.ID] = h
	}
	assert.InDelta(t, 107186, byID["fd"].CurrentValue, 1)
	assert.Equal(t, 10.0, byID["slow"].CurrentValue)
}

func TestRefresh_Empty(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.RefreshResult{}, res)
	assert.Equal(t, 0, f.store.saves)
}

func TestRefresh_NotReentrant(t *testing.T) {
	f := newFixture()
	f.seed(stock("a", "AAA", 1, 10))
	f.market.data["AAA"] = &models.MarketData{CurrentPrice: 11}
	f.market.started = make(chan struct{})
	f.market.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Refresh(context.Background())
		done <- err
	}()

	<-f.market.started
	_, err := f.svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)

	close(f.market.release)
	require.NoError(t, <-done)

	// A finished cycle releases the guard.
	_, err = f.svc.Refresh(context.Background())
	assert.NoError(t, err)
}

func TestRefresh_KeepsHoldingsAddedMeanwhile(t *testing.T) {
	f := newFixture()
	f.seed(stock("a", "AAA", 1, 10))
	f.market.data["AAA"] = &models.MarketData{CurrentPrice: 11}
	f.market.started = make(chan struct{})
	f.market.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Refresh(context.Background())
		done <- err
	}()

	<-f.market.started
	_, err := f.svc.AddHolding(context.Background(), models.AddHoldingRequest{Type: models.AssetFixedDeposit, Name: "FD", Amount: 1000, PurchaseDate: "2024-06-12"})
	require.NoError(t, err)

	close(f.market.release)
	require.NoError(t, <-done)

	holdings, err := f.svc.Holdings(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, 11.0, holdings[0].CurrentValue)
	assert.Equal(t, models.AssetFixedDeposit, holdings[1].Type)
}
