package http

import (
	"net/http"

	"github.com/mind-engage/masterclass/internal/auth"
)

// POST /student/login {email}
func StudentLoginHandler(ml *auth.MagicLink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		link, err := ml.Issue(r.Context(), req.Email)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, link)
	}
}

// POST /student/auth/verify {token}
func StudentVerifyHandler(ml *auth.MagicLink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		sess, err := ml.Verify(r.Context(), req.Token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, sess)
	}
}
