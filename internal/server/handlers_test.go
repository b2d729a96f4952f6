package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/aggregate"
	"github.com/bobmcallan/novus/internal/services/ledger"
	"github.com/bobmcallan/novus/internal/services/resolver"
)

func TestPortfolioState(t *testing.T) {
	state := models.NewPortfolioState(models.UserProfile{Name: "Asha", Currency: "₹"})
	state.Investments = sampleHoldings()
	s := newTestServer(t, &mockLedger{state: state})

	rec := do(t, s, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.PortfolioState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Asha", got.Profile.Name)
	assert.Len(t, got.Investments, 2)
}

func TestPortfolioState_PersistenceFailure(t *testing.T) {
	l := &mockLedger{err: fmt.Errorf("%w: load: disk", common.ErrPersistence)}
	s := newTestServer(t, l)

	rec := do(t, s, http.MethodGet, "/api/portfolio", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "persistence_failed", decodeError(t, rec).Code)
}

func TestUpdateProfile(t *testing.T) {
	l := &mockLedger{}
	s := newTestServer(t, l)

	rec := do(t, s, http.MethodPut, "/api/portfolio/profile", `{"name":"Ravi","currency":"$"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ravi", l.savedProfile.Name)

	rec = do(t, s, http.MethodPut, "/api/portfolio/profile", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/portfolio/profile", `{"name":"x"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "PUT", rec.Header().Get("Allow"))
}

func TestListHoldings(t *testing.T) {
	l := &mockLedger{holdings: sampleHoldings()}
	s := newTestServer(t, l)

	rec := do(t, s, http.MethodGet, "/api/portfolio/holdings?merged=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, l.lastMerged)

	var resp struct {
		Holdings []models.Holding `json:"holdings"`
		Merged   bool             `json:"merged"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Holdings, 2)
	assert.True(t, resp.Merged)

	do(t, s, http.MethodGet, "/api/portfolio/holdings", "")
	assert.False(t, l.lastMerged)
}

func TestListHoldings_EmptyIsArray(t *testing.T) {
	s := newTestServer(t, &mockLedger{})
	rec := do(t, s, http.MethodGet, "/api/portfolio/holdings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"holdings":[]`)
}

func TestAddHolding(t *testing.T) {
	var got models.AddHoldingRequest
	l := &mockLedger{addFn: func(req models.AddHoldingRequest) (*models.Holding, error) {
		got = req
		return &models.Holding{ID: "new", Type: req.Type, Name: req.Name, Quantity: req.Quantity}, nil
	}}
	s := newTestServer(t, l)

	rec := do(t, s, http.MethodPost, "/api/portfolio/holdings",
		`{"type":"STOCKS","name":"Infosys","quantity":5,"purchaseDate":"2024-01-02","symbol":"INFY.NS"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, models.AssetStocks, got.Type)
	assert.Equal(t, "INFY.NS", got.Symbol)
	assert.Equal(t, 5.0, got.Quantity)

	var h models.Holding
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "new", h.ID)
}

func TestAddHolding_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", fmt.Errorf("%w: name is required", common.ErrValidation), http.StatusBadRequest, "validation_failed"},
		{"not resolved", fmt.Errorf("%w: pick a mutual fund", resolver.ErrNotResolved), http.StatusUnprocessableEntity, "not_resolved"},
		{"persistence", fmt.Errorf("%w: save: disk full", common.ErrPersistence), http.StatusServiceUnavailable, "persistence_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &mockLedger{addFn: func(models.AddHoldingRequest) (*models.Holding, error) { return nil, tt.err }}
			s := newTestServer(t, l)

			rec := do(t, s, http.MethodPost, "/api/portfolio/holdings", `{"type":"STOCKS","name":"x"}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestAddHolding_InvalidJSON(t *testing.T) {
	s := newTestServer(t, &mockLedger{})
	rec := do(t, s, http.MethodPost, "/api/portfolio/holdings", `{"type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "Invalid JSON")
}

func TestDeleteHolding(t *testing.T) {
	l := &mockLedger{deleteFn: func(ids []string) (int, error) { return len(ids), nil }}
	s := newTestServer(t, l)

	rec := do(t, s, http.MethodDelete, "/api/portfolio/holdings/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a"}, l.deletedIDs)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/api/portfolio/holdings/a?members=a,b,%20c", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b", "c"}, l.deletedIDs)
}

func TestDeleteHolding_NothingRemoved(t *testing.T) {
	l := &mockLedger{deleteFn: func(ids []string) (int, error) { return 0, nil }}
	s := newTestServer(t, l)

	rec := do(t, s, http.MethodDelete, "/api/portfolio/holdings/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHoldingDetail(t *testing.T) {
	l := &mockLedger{detailFn: func(id string) (*models.HoldingDetail, error) {
		if id != "a" {
			return nil, ledger.ErrHoldingNotFound
		}
		return &models.HoldingDetail{
			Holding:    models.Holding{ID: "a", Name: "TCS"},
			Market:     &models.MarketData{CurrentPrice: 3900},
			Prediction: "steady",
		}, nil
	}}
	s := newTestServer(t, l)

	rec := do(t, s, http.MethodGet, "/api/portfolio/holdings/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d models.HoldingDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "steady", d.Prediction)
	assert.Equal(t, 3900.0, d.Market.CurrentPrice)

	rec = do(t, s, http.MethodGet, "/api/portfolio/holdings/zzz", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/portfolio/holdings/a", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSummary(t *testing.T) {
	s := newTestServer(t, &mockLedger{holdings: sampleHoldings()})

	rec := do(t, s, http.MethodGet, "/api/portfolio/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum models.PortfolioSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1500.0, sum.TotalInvested)
	assert.Equal(t, 1750.0, sum.TotalCurrentValue)
}

func trendFixture() *models.TrendSet {
	points := func(vals ...float64) []models.TrendPoint {
		out := make([]models.TrendPoint, len(vals))
		for i, v := range vals {
			out[i] = models.TrendPoint{Name: fmt.Sprintf("M%d", i+1), Price: v}
		}
		return out
	}
	return &models.TrendSet{
		Scope: aggregate.ScopePortfolio,
		Windows: map[models.TrendWindow]models.TrendSeries{
			models.Window6M:  {},
			models.Window1Y:  {Current: points(100, 120, 130), Invested: points(100, 100, 110), Profit: points(0, 20, 20)},
			models.Window5Y:  {},
			models.Window10Y: {},
		},
	}
}

func TestTrend(t *testing.T) {
	s := newTestServer(t, &mockLedger{holdings: sampleHoldings()})
	s.app.Trends = &mockTrends{set: trendFixture()}

	rec := do(t, s, http.MethodGet, "/api/portfolio/trend?class=STOCKS", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var set models.TrendSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	assert.Len(t, set.Windows[models.Window1Y].Current, 3)

	rec = do(t, s, http.MethodGet, "/api/portfolio/trend?class=crypto", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrend_Superseded(t *testing.T) {
	s := newTestServer(t, &mockLedger{})
	s.app.Trends = &mockTrends{err: aggregate.ErrSuperseded}

	rec := do(t, s, http.MethodGet, "/api/portfolio/trend", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "superseded", decodeError(t, rec).Code)
}

func TestTrendChart(t *testing.T) {
	s := newTestServer(t, &mockLedger{holdings: sampleHoldings()})
	s.app.Trends = &mockTrends{set: trendFixture()}

	rec := do(t, s, http.MethodGet, "/api/portfolio/trend.png?series=current&range=1y", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = do(t, s, http.MethodGet, "/api/portfolio/trend.png?series=profit", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/portfolio/trend.png?range=6M", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/portfolio/trend.png?range=2Y", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/portfolio/trend.png?series=volume", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrendChart_RenderFailure(t *testing.T) {
	s := newTestServer(t, &mockLedger{holdings: sampleHoldings()})
	s.app.Trends = &mockTrends{set: trendFixture()}

	orig := renderTrendChart
	t.Cleanup(func() { renderTrendChart = orig })
	renderTrendChart = func(title string, primary, secondary []models.TrendPoint) ([]byte, error) {
		return nil, fmt.Errorf("chart render failed: %w", errors.New("font missing"))
	}

	rec := do(t, s, http.MethodGet, "/api/portfolio/trend.png?series=current&range=1y", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRisk(t *testing.T) {
	s := newTestServer(t, &mockLedger{holdings: sampleHoldings()})

	rec := do(t, s, http.MethodGet, "/api/portfolio/risk", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rp models.RiskProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rp))
	assert.Equal(t, 42.0, rp.Score)
	assert.Equal(t, models.RiskModerate, rp.Label)
}

func TestRefresh(t *testing.T) {
	l := &mockLedger{refreshFn: func() (*models.RefreshResult, error) {
		return &models.RefreshResult{Total: 3, Updated: 2}, nil
	}}
	s := newTestServer(t, l)

	rec := do(t, s, http.MethodPost, "/api/portfolio/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":3,"updated":2}`, rec.Body.String())

	l.refreshFn = func() (*models.RefreshResult, error) { return nil, ledger.ErrRefreshInProgress }
	rec = do(t, s, http.MethodPost, "/api/portfolio/refresh", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/portfolio/refresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMarketSearch(t *testing.T) {
	search := &mockSearch{results: []models.InstrumentSuggestion{
		{Label: "INFY.NS", Symbol: "INFY.NS", CurrentPrice: 1500, Type: models.SuggestionStock},
	}}
	s := newTestServer(t, &mockLedger{})
	s.app.Search = search

	rec := do(t, s, http.MethodGet, "/api/market/search?q=infy&class=stocks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AssetStocks, search.class)
	assert.Contains(t, rec.Body.String(), "INFY.NS")

	rec = do(t, s, http.MethodGet, "/api/market/search?q=infy", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	search.results = nil
	rec = do(t, s, http.MethodGet, "/api/market/search?q=zz&class=MF", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestMarketData(t *testing.T) {
	market := &mockMarket{}
	s := newTestServer(t, &mockLedger{})
	s.app.Market = market

	rec := do(t, s, http.MethodGet, "/api/market/data?name=TCS&class=STOCKS&symbol=TCS.NS&lite=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TCS", market.lastName)
	assert.Equal(t, models.FetchOptions{FixedSymbol: "TCS.NS", Lite: true}, market.lastOpts)

	rec = do(t, s, http.MethodGet, "/api/market/data?class=STOCKS", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketSip(t *testing.T) {
	s := newTestServer(t, &mockLedger{})

	rec := do(t, s, http.MethodGet, "/api/market/sip?code=119551&start=2024-01-01&amount=5000&day=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.SipSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 15000.0, snap.InvestedAmount)

	rec = do(t, s, http.MethodGet, "/api/market/sip?code=119551&amount=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/market/sip?code=119551&amount=100&day=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.app.SIP = &mockSip{err: fmt.Errorf("%w: SIP amount must be positive", common.ErrValidation)}
	rec = do(t, s, http.MethodGet, "/api/market/sip?code=119551&amount=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssistantInsight(t *testing.T) {
	s := newTestServer(t, &mockLedger{holdings: sampleHoldings()})

	rec := do(t, s, http.MethodGet, "/api/assistant/insight?class=GOLD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"insight":"insight 2 GOLD"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/assistant/insight?class=bonds", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssistantChat(t *testing.T) {
	s := newTestServer(t, &mockLedger{holdings: sampleHoldings()})

	rec := do(t, s, http.MethodPost, "/api/assistant/chat",
		`{"message":"how am I doing","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"reply to how am I doing after 2 turns"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/assistant/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
