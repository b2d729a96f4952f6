package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
	"github.com/bobmcallan/novus/internal/services/aggregate"
)

// renderTrendChart is swapped in tests.
var renderTrendChart = aggregate.RenderTrendChart

// handlePortfolioState handles GET /api/portfolio.
func (s *Server) handlePortfolioState(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	state, err := s.app.Ledger.State(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, state)
}

// handlePortfolioProfile handles PUT /api/portfolio/profile.
func (s *Server) handlePortfolioProfile(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}
	var profile models.UserProfile
	if !DecodeJSON(w, r, &profile) {
		return
	}
	saved, err := s.app.Ledger.UpdateProfile(r.Context(), profile)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, saved)
}

// handleHoldings handles GET and POST /api/portfolio/holdings.
func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		merged := queryBool(r, "merged")
		holdings, err := s.app.Ledger.Holdings(r.Context(), merged)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if holdings == nil {
			holdings = []models.Holding{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"holdings": holdings,
			"merged":   merged,
		})
	case http.MethodPost:
		var req models.AddHoldingRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		h, err := s.app.Ledger.AddHolding(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, h)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleHoldingDetail handles GET /api/portfolio/holdings/{id}.
func (s *Server) handleHoldingDetail(w http.ResponseWriter, r *http.Request, id string) {
	detail, err := s.app.Ledger.HoldingDetail(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}

// handleHoldingDelete handles DELETE /api/portfolio/holdings/{id}. A merged
// position is removed by passing its member ids in ?members=a,b,c.
func (s *Server) handleHoldingDelete(w http.ResponseWriter, r *http.Request, id string) {
	ids := splitList(r.URL.Query().Get("members"))
	if len(ids) == 0 {
		ids = []string{id}
	}
	removed, err := s.app.Ledger.DeleteHoldings(r.Context(), ids...)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if removed == 0 {
		WriteErrorWithCode(w, http.StatusNotFound, "Holding not found", "not_found")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"deleted": removed})
}

// handlePortfolioSummary handles GET /api/portfolio/summary.
func (s *Server) handlePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	holdings, err := s.app.Ledger.Holdings(r.Context(), false)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, aggregate.Summary(holdings))
}

func (s *Server) trendSet(r *http.Request) (*models.TrendSet, error) {
	class, ok := queryClass(r, "class")
	if !ok {
		return nil, fmt.Errorf("%w: unknown asset class %q", common.ErrValidation, r.URL.Query().Get("class"))
	}
	holdings, err := s.app.Ledger.Holdings(r.Context(), false)
	if err != nil {
		return nil, err
	}
	return s.app.Trends.Trends(r.Context(), holdings, class)
}

// handlePortfolioTrend handles GET /api/portfolio/trend?class=.
func (s *Server) handlePortfolioTrend(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	set, err := s.trendSet(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, set)
}

var chartSeries = map[string]string{
	"current":  "Current value",
	"invested": "Invested",
	"profit":   "Profit",
}

// handlePortfolioTrendChart handles GET /api/portfolio/trend.png. The
// current-value chart overlays the invested line.
func (s *Server) handlePortfolioTrendChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	series := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("series")))
	if series == "" {
		series = "current"
	}
	title, ok := chartSeries[series]
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, "series must be current, invested or profit", "validation_failed")
		return
	}

	window := models.TrendWindow(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("range"))))
	if window == "" {
		window = models.Window1Y
	}

	set, err := s.trendSet(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ts, ok := set.Windows[window]
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, fmt.Sprintf("unknown range %q", window), "validation_failed")
		return
	}

	var primary, secondary []models.TrendPoint
	switch series {
	case "current":
		primary, secondary = ts.Current, ts.Invested
	case "invested":
		primary = ts.Invested
	case "profit":
		primary = ts.Profit
	}

	png, err := renderTrendChart(fmt.Sprintf("%s (%s)", title, window), primary, secondary)
	if errors.Is(err, aggregate.ErrInsufficientData) {
		WriteErrorWithCode(w, http.StatusNotFound, "Not enough history to chart", "no_data")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handlePortfolioRisk handles GET /api/portfolio/risk.
func (s *Server) handlePortfolioRisk(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	holdings, err := s.app.Ledger.Holdings(r.Context(), false)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Assistant.Risk(r.Context(), holdings))
}

// handlePortfolioRefresh handles POST /api/portfolio/refresh.
func (s *Server) handlePortfolioRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	res, err := s.app.Ledger.Refresh(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
