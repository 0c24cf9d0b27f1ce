package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/opencampus/opencampus-lms/internal/auth/middleware"
	"github.com/opencampus/opencampus-lms/internal/progress"
	"github.com/opencampus/opencampus-lms/internal/rbac"
)

// CourseProgressHandler reports the caller's progress in a course. A
// progress:view-all role may pass ?user_id= to read another learner's.
// GET /courses/{courseID}/progress
func CourseProgressHandler(agg *progress.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if other := r.URL.Query().Get("user_id"); other != "" && other != userID {
			if !rbac.Can(rbac.RoleFromContext(r.Context()), "progress:view-all") {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			userID = other
		}
		p, err := agg.CourseProgress(r.Context(), chi.URLParam(r, "courseID"), userID)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
