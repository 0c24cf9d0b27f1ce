package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authmw "github.com/opencampus/opencampus-lms/internal/auth/middleware"
	"github.com/opencampus/opencampus-lms/internal/quiz"
	"github.com/opencampus/opencampus-lms/internal/rbac"
)

// StartAttemptHandler creates the caller's next attempt on a quiz.
// POST /quizzes/{quizID}/attempts
func StartAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		a, err := svc.Start(r.Context(), chi.URLParam(r, "quizID"), userID)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// SubmitAttemptHandler grades and finalizes an in-progress attempt.
// POST /attempts/{attemptID}/submit  body: {"answers":[...]}
func SubmitAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body struct {
			Answers []quiz.SubmittedAnswer `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		res, err := svc.Submit(r.Context(), chi.URLParam(r, "attemptID"), userID, body.Answers)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GetAttemptHandler returns one attempt; answer rows are included once the
// attempt is submitted. Owners always see their own; attempt:view-all roles
// see anyone's.
// GET /attempts/{attemptID}
func GetAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		viewAll := rbac.Can(rbac.RoleFromContext(r.Context()), "attempt:view-all")
		a, answers, err := svc.Get(r.Context(), chi.URLParam(r, "attemptID"), userID, viewAll)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempt": a, "answers": answers})
	}
}

// ListAttemptsHandler lists attempts with optional quiz_id/user_id/status
// filters. Callers without attempt:view-all are pinned to their own rows no
// matter what user_id says.
// GET /attempts?quiz_id=&user_id=&status=&limit=&offset=
func ListAttemptsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		opts := quiz.AttemptListOpts{
			QuizID: q.Get("quiz_id"),
			UserID: q.Get("user_id"),
			Status: q.Get("status"),
		}
		if v := q.Get("limit"); v != "" {
			opts.Limit, _ = strconv.Atoi(v)
		}
		if v := q.Get("offset"); v != "" {
			opts.Offset, _ = strconv.Atoi(v)
		}
		if !rbac.Can(rbac.RoleFromContext(r.Context()), "attempt:view-all") {
			opts.UserID = userID
		}
		out, err := svc.List(r.Context(), opts)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if out == nil {
			out = []quiz.Attempt{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
