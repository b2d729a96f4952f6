package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/novus/internal/models"
)

// handleMarketSearch handles GET /api/market/search?q=&class=.
func (s *Server) handleMarketSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	class, ok := queryClass(r, "class")
	if !ok || class == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "class must be an asset class", "validation_failed")
		return
	}
	results, err := s.app.Search.SearchInstruments(r.Context(), r.URL.Query().Get("q"), class)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if results == nil {
		results = []models.InstrumentSuggestion{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleMarketData handles GET /api/market/data. It never fails upstream:
// unreachable instruments come back as synthetic data.
func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "name is required", "validation_failed")
		return
	}
	class, ok := queryClass(r, "class")
	if !ok || class == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "class must be an asset class", "validation_failed")
		return
	}

	md := s.app.Market.FetchMarketData(r.Context(), name, class, q.Get("date"), models.FetchOptions{
		FixedSymbol: strings.TrimSpace(q.Get("symbol")),
		Lite:        queryBool(r, "lite"),
	})
	WriteJSON(w, http.StatusOK, md)
}

// handleMarketSip handles GET /api/market/sip?code=&start=&amount=&day=.
func (s *Server) handleMarketSip(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()

	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, "amount must be a number", "validation_failed")
		return
	}
	day := 0
	if raw := q.Get("day"); raw != "" {
		if day, err = strconv.Atoi(raw); err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, "day must be an integer", "validation_failed")
			return
		}
	}

	snap, err := s.app.SIP.Simulate(r.Context(), strings.TrimSpace(q.Get("code")), q.Get("start"), amount, day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}
