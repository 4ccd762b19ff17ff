package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/rbac"
)

// EnrollmentLookup is the slice of the store RequireEnrollment needs.
type EnrollmentLookup interface {
	GetEnrollment(ctx context.Context, id string) (exam.Enrollment, error)
}

// RequireEnrollment rejects student tokens whose enrollment no longer exists.
// Other roles pass through untouched.
func RequireEnrollment(store EnrollmentLookup, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if rbac.RoleFromContext(ctx) != rbac.RoleStudent {
				next.ServeHTTP(w, r)
				return
			}
			_, err := store.GetEnrollment(ctx, SubjectFromContext(ctx))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, exam.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "enrollment not found")
			default:
				log.ErrorContext(ctx, "enrollment lookup", "err", err)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		})
	}
}
