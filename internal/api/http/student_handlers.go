package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/masterclass/internal/auth/middleware"
	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/rbac"
	"github.com/mind-engage/masterclass/internal/storage"
)

// enrollmentFor resolves the enrollment a request acts on. Students are bound
// to their token subject; admins name one with ?inscription_id=.
func enrollmentFor(r *http.Request) (string, error) {
	ctx := r.Context()
	if rbac.RoleFromContext(ctx) == rbac.RoleStudent {
		return authmw.SubjectFromContext(ctx), nil
	}
	if id := r.URL.Query().Get("inscription_id"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: inscription_id required", exam.ErrValidation)
}

// GET /student/dashboard
func DashboardHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := enrollmentFor(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		d, err := svc.Dashboard(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, d)
	}
}

// GET /tests/post/availability
func AvailabilityHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := enrollmentFor(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		av, err := svc.Availability(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, av)
	}
}

// GET /tests/questions?type=PRE|POST
func QuestionsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := enrollmentFor(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, ok := exam.ParseTestType(r.URL.Query().Get("type"))
		if !ok {
			badRequest(w, "type must be PRE or POST")
			return
		}
		set, err := svc.Questions(r.Context(), id, t)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, set)
	}
}

// POST /tests/submit
func SubmitHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub exam.Submission
		if err := decodeJSON(w, r, &sub); err != nil {
			writeError(w, r, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) == rbac.RoleStudent {
			own := authmw.SubjectFromContext(r.Context())
			if sub.EnrollmentID != "" && sub.EnrollmentID != own {
				respondJSON(w, http.StatusForbidden, errorBody{Error: "cannot submit for another enrollment"})
				return
			}
			sub.EnrollmentID = own
		}
		sub.Type = exam.TestType(strings.ToUpper(string(sub.Type)))
		out, err := svc.Submit(r.Context(), sub)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// GET /tests/{testID}: students see only their own attempts.
func ResultHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Result(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		owner := res.EnrollmentID == authmw.SubjectFromContext(r.Context())
		if !owner && !rbac.Allowed(r, rbac.PermTestViewAll) {
			respondJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /material
func MaterialDownloadHandler(m *storage.Materials) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := enrollmentFor(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rc, _, err := m.Open(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="masterclass.pdf"`)
		if _, err := io.Copy(w, rc); err != nil {
			LoggerFrom(r.Context()).WarnContext(r.Context(), "material stream", "err", err)
		}
	}
}
