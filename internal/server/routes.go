package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/novus/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Auth
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)

	// Portfolio
	mux.HandleFunc("/api/portfolio", s.handlePortfolioState)
	mux.HandleFunc("/api/portfolio/profile", s.handlePortfolioProfile)
	mux.HandleFunc("/api/portfolio/holdings", s.handleHoldings)
	mux.HandleFunc("/api/portfolio/holdings/", s.routeHolding)
	mux.HandleFunc("/api/portfolio/summary", s.handlePortfolioSummary)
	mux.HandleFunc("/api/portfolio/trend", s.handlePortfolioTrend)
	mux.HandleFunc("/api/portfolio/trend.png", s.handlePortfolioTrendChart)
	mux.HandleFunc("/api/portfolio/risk", s.handlePortfolioRisk)
	mux.HandleFunc("/api/portfolio/refresh", s.handlePortfolioRefresh)

	// Market data
	mux.HandleFunc("/api/market/search", s.handleMarketSearch)
	mux.HandleFunc("/api/market/data", s.handleMarketData)
	mux.HandleFunc("/api/market/sip", s.handleMarketSip)

	// Assistant
	mux.HandleFunc("/api/assistant/insight", s.handleAssistantInsight)
	mux.HandleFunc("/api/assistant/chat", s.handleAssistantChat)
}

// routeHolding dispatches /api/portfolio/holdings/{id}.
func (s *Server) routeHolding(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(PathParam(r, "/api/portfolio/holdings/", ""))
	if id == "" {
		s.handleHoldings(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleHoldingDetail(w, r, id)
	case http.MethodDelete:
		s.handleHoldingDelete(w, r, id)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	resp := map[string]interface{}{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	}
	if !s.app.StartupTime.IsZero() {
		resp["uptime"] = time.Since(s.app.StartupTime).Round(time.Second).String()
	}
	WriteJSON(w, http.StatusOK, resp)
}
