package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opencampus/opencampus-lms/internal/certificate"
	"github.com/opencampus/opencampus-lms/internal/quiz"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainErr maps the attempt/certificate error taxonomy onto HTTP
// statuses. Anything unmapped is a 500 with a generic body; the real error
// goes to the request log, not the client.
func writeDomainErr(w http.ResponseWriter, err error) {
	var inel *certificate.IneligibleError
	if errors.As(err, &inel) {
		body := map[string]any{"error": "ineligible", "rule": string(inel.Rule)}
		if inel.QuizID != "" {
			body["quiz_id"] = inel.QuizID
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
		return
	}
	switch {
	case errors.Is(err, quiz.ErrQuizNotFound),
		errors.Is(err, quiz.ErrAttemptNotFound),
		errors.Is(err, quiz.ErrCourseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, quiz.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, quiz.ErrNotEnrolled):
		http.Error(w, "not enrolled", http.StatusForbidden)
	case errors.Is(err, quiz.ErrLessonsIncomplete):
		http.Error(w, "lessons incomplete", http.StatusUnprocessableEntity)
	case errors.Is(err, quiz.ErrAlreadySubmitted):
		http.Error(w, "attempt already submitted", http.StatusConflict)
	case errors.Is(err, quiz.ErrConflict):
		http.Error(w, "conflict, retry", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
