package quiz

import (
	"errors"
	"strings"
)

var (
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrCourseNotFound  = errors.New("course not found")

	// ErrForbidden: caller does not own the attempt.
	ErrForbidden = errors.New("attempt belongs to another user")

	// ErrNotEnrolled: caller has no active enrollment in the quiz's course.
	ErrNotEnrolled = errors.New("not actively enrolled in course")

	// ErrLessonsIncomplete: start of a final quiz blocked until all lessons done.
	ErrLessonsIncomplete = errors.New("course lessons incomplete")

	// ErrAlreadySubmitted: submit on an attempt that is not in progress.
	ErrAlreadySubmitted = errors.New("attempt already submitted")

	// ErrConflict: a storage write lost a race (attempt numbering). Retryable.
	ErrConflict = errors.New("conflicting concurrent write, retry")
)

// isUniqueViolation reports whether err is a unique-constraint failure from
// either supported driver. Message sniffing keeps this driver-agnostic.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") || // postgres
		strings.Contains(msg, "sqlstate 23505")
}
