package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/novus/internal/models"
)

type chatRequest struct {
	Message string            `json:"message"`
	History []models.ChatTurn `json:"history"`
}

// handleAssistantInsight handles GET /api/assistant/insight?class=.
func (s *Server) handleAssistantInsight(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	class, ok := queryClass(r, "class")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, "class must be an asset class", "validation_failed")
		return
	}
	holdings, err := s.app.Ledger.Holdings(r.Context(), false)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"insight": s.app.Assistant.Insight(r.Context(), holdings, class),
	})
}

// handleAssistantChat handles POST /api/assistant/chat.
func (s *Server) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req chatRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "message is required", "validation_failed")
		return
	}
	holdings, err := s.app.Ledger.Holdings(r.Context(), false)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"reply": s.app.Assistant.Chat(r.Context(), holdings, req.Message, req.History),
	})
}
