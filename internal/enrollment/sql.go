// Package enrollment backs the enrollment-registry and lesson-completion
// collaborator contracts with SQL. The attempt core only ever sees the
// interfaces in the quiz package.
package enrollment

import (
	"context"
	"database/sql"
	"errors"
)

type SQLRegistry struct {
	db *sql.DB
}

func NewSQLRegistry(db *sql.DB) *SQLRegistry { return &SQLRegistry{db: db} }

func (r *SQLRegistry) HasActiveEnrollment(ctx context.Context, userID, courseID string) (bool, error) {
	return r.hasEnrollment(ctx, userID, courseID, "active")
}

func (r *SQLRegistry) HasEnrollment(ctx context.Context, userID, courseID string) (bool, error) {
	return r.hasEnrollment(ctx, userID, courseID, "")
}

func (r *SQLRegistry) hasEnrollment(ctx context.Context, userID, courseID, status string) (bool, error) {
	q := `SELECT 1 FROM enrollments WHERE user_id=$1 AND course_id=$2`
	args := []any{userID, courseID}
	if status != "" {
		q += ` AND status=$3`
		args = append(args, status)
	}
	var one int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type SQLLessonTracker struct {
	db *sql.DB
}

func NewSQLLessonTracker(db *sql.DB) *SQLLessonTracker { return &SQLLessonTracker{db: db} }

func (t *SQLLessonTracker) TotalLessons(ctx context.Context, courseID string) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lessons WHERE course_id=$1`, courseID).Scan(&n)
	return n, err
}

func (t *SQLLessonTracker) CompletedLessons(ctx context.Context, userID, courseID string) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lesson_completions lc
		   JOIN lessons l ON l.id = lc.lesson_id
		  WHERE lc.user_id=$1 AND l.course_id=$2`, userID, courseID).Scan(&n)
	return n, err
}
