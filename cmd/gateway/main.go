package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/opencampus/opencampus-lms/internal/api/http"
	auth "github.com/opencampus/opencampus-lms/internal/auth/middleware"
	"github.com/opencampus/opencampus-lms/internal/catalog"
	"github.com/opencampus/opencampus-lms/internal/certificate"
	"github.com/opencampus/opencampus-lms/internal/config"
	"github.com/opencampus/opencampus-lms/internal/db"
	"github.com/opencampus/opencampus-lms/internal/enrollment"
	"github.com/opencampus/opencampus-lms/internal/progress"
	"github.com/opencampus/opencampus-lms/internal/quiz"
	rbac "github.com/opencampus/opencampus-lms/internal/rbac"
	syncx "github.com/opencampus/opencampus-lms/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Wiring ---
	attempts := quiz.NewSQLStore(dbh)
	certs := quiz.NewSQLCertificateStore(dbh)
	enroll := enrollment.NewSQLRegistry(dbh)
	lessons := enrollment.NewSQLLessonTracker(dbh)
	cat := catalog.NewSQLCatalog(dbh)
	events := syncx.NewEventRepo(dbh, cfg.SiteID)

	attemptSvc := quiz.NewService(attempts, enroll, lessons, cat, events)
	progressAgg := progress.NewAggregator(lessons, cat, attempts)
	certEval := certificate.NewEvaluator(enroll, lessons, cat, attempts, certs, events)

	// --- Auth (local JWT for offline/dev) ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Public certificate verification: no account required
	r.Get("/certificates/{code}", api.VerifyCertificateHandler(certEval, dbh))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Attempt lifecycle
		pr.With(rbac.Require("attempt:start")).
			Post("/quizzes/{quizID}/attempts", api.StartAttemptHandler(attemptSvc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(attemptSvc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(attemptSvc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(attemptSvc))

		// Progress and certificates
		pr.With(rbac.RequireAny("progress:view-own", "progress:view-all")).
			Get("/courses/{courseID}/progress", api.CourseProgressHandler(progressAgg))
		pr.With(rbac.Require("certificate:generate-own")).
			Post("/courses/{courseID}/certificate", api.GenerateCertificateHandler(certEval))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))

		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))

		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
