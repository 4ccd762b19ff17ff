package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/masterclass/internal/auth"
	authmw "github.com/mind-engage/masterclass/internal/auth/middleware"
	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/rbac"
	"github.com/mind-engage/masterclass/internal/registration"
	"github.com/mind-engage/masterclass/internal/storage"
	syncx "github.com/mind-engage/masterclass/internal/sync"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Log           *slog.Logger
	CORSOrigins   []string
	Location      *time.Location
	Auth          *authmw.AuthService
	AdminUser     string
	AdminPassHash string

	Exams        *exam.Service
	Bank         *exam.Bank
	Registration *registration.Service
	Login        *auth.MagicLink
	Materials    *storage.Materials
	Events       *syncx.EventRepo
	Reminder     exam.Reminder

	// Ready reports whether dependencies (database) are reachable.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "not ready"})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	// Public
	r.Post("/register", RegisterHandler(d.Registration))
	r.Get("/sessions", ListSessionsHandler(d.Registration))
	r.Post("/sessions/book", BookSessionHandler(d.Registration))
	r.Post("/student/login", StudentLoginHandler(d.Login))
	r.Post("/student/auth/verify", StudentVerifyHandler(d.Login))
	r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.AdminUser, d.AdminPassHash))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))
		pr.Use(authmw.RequireEnrollment(d.Exams.Store(), d.Log))

		pr.With(rbac.Require(rbac.PermDashboardView)).
			Get("/student/dashboard", DashboardHandler(d.Exams))
		pr.With(rbac.Require(rbac.PermTestTake)).
			Get("/tests/post/availability", AvailabilityHandler(d.Exams))
		pr.With(rbac.Require(rbac.PermTestTake)).
			Get("/tests/questions", QuestionsHandler(d.Exams))
		pr.With(rbac.Require(rbac.PermTestTake)).
			Post("/tests/submit", SubmitHandler(d.Exams))
		pr.With(rbac.RequireAny(rbac.PermTestViewOwn, rbac.PermTestViewAll)).
			Get("/tests/{testID}", ResultHandler(d.Exams))
		pr.With(rbac.Require(rbac.PermMaterialDownload)).
			Get("/material", MaterialDownloadHandler(d.Materials))

		pr.Route("/admin", func(ar chi.Router) {
			ar.With(rbac.Require(rbac.PermQuestionManage)).Group(func(qr chi.Router) {
				qr.Get("/questions", ListQuestionsHandler(d.Bank))
				qr.Post("/questions", CreateQuestionHandler(d.Bank))
				qr.Post("/questions/import", ImportQuestionsHandler(d.Bank))
				qr.Get("/questions/{id}", GetQuestionHandler(d.Bank))
				qr.Put("/questions/{id}", UpdateQuestionHandler(d.Bank))
				qr.Delete("/questions/{id}", DeleteQuestionHandler(d.Bank))
			})
			ar.With(rbac.Require(rbac.PermMaterialUpload)).
				Put("/material", MaterialUploadHandler(d.Materials))
			ar.With(rbac.Require(rbac.PermSessionManage)).
				Post("/sessions", CreateSessionHandler(d.Registration))
			ar.With(rbac.Require(rbac.PermSessionManage)).
				Post("/reminders/post-test", PostTestReminderHandler(d.Exams, d.Reminder, d.Location))
			ar.With(rbac.Require(rbac.PermAuditView)).
				Get("/events", AuditSearchHandler(d.Events))
		})
	})
	return r
}
