package http

import (
	"net/http"

	"github.com/mind-engage/masterclass/internal/registration"
)

// POST /register
func RegisterHandler(svc *registration.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f registration.Form
		if err := decodeJSON(w, r, &f); err != nil {
			writeError(w, r, err)
			return
		}
		reg, err := svc.Register(r.Context(), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"success":        true,
			"user_id":        reg.ProfileID,
			"inscription_id": reg.EnrollmentID,
		})
	}
}

// GET /sessions
func ListSessionsHandler(svc *registration.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListSessions(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// POST /sessions/book
func BookSessionHandler(svc *registration.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EnrollmentID string `json:"inscription_id"`
			SessionID    string `json:"session_id"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		se, err := svc.Book(r.Context(), req.EnrollmentID, req.SessionID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "session": se})
	}
}

// POST /admin/sessions
func CreateSessionHandler(svc *registration.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date     string `json:"session_date"`
			Capacity int    `json:"max_participants"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		se, err := svc.CreateSession(r.Context(), req.Date, req.Capacity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, se)
	}
}
