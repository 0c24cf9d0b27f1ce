package http

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/opencampus/opencampus-lms/internal/auth/middleware"
	"github.com/opencampus/opencampus-lms/internal/certificate"
)

// GenerateCertificateHandler issues (or re-returns) the caller's certificate
// for a course. Denials come back as 422 with the failed rule.
// POST /courses/{courseID}/certificate
func GenerateCertificateHandler(ev *certificate.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := ev.Generate(r.Context(), chi.URLParam(r, "courseID"), userID)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// VerifyCertificateHandler resolves a certificate code. Public: employers
// check codes without an account, so the response carries the learner's
// display name rather than an internal user id alone.
// GET /certificates/{code}
func VerifyCertificateHandler(ev *certificate.Evaluator, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok, err := ev.Verify(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if !ok {
			http.Error(w, "certificate not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":            true,
			"course_id":        c.CourseID,
			"user_id":          c.UserID,
			"student_name":     displayName(r.Context(), db, c.UserID),
			"certificate_code": c.CertificateCode,
			"generated_at":     c.GeneratedAt,
		})
	}
}

// displayName prefers the roster full name and falls back to the username;
// a lookup failure degrades to an empty name, never a failed verification.
func displayName(ctx context.Context, db *sql.DB, userID string) string {
	var full, username string
	err := db.QueryRowContext(ctx,
		`SELECT full_name, username FROM users WHERE id=$1`, userID).Scan(&full, &username)
	if err != nil {
		return ""
	}
	if full != "" {
		return full
	}
	return username
}
