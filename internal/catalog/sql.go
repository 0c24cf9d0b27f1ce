// Package catalog serves quiz metadata and question blueprints from SQL.
// Blueprints carry answer-key correctness flags; they are handed only to the
// grading path, never to learner-facing responses.
package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/opencampus/opencampus-lms/internal/grading"
	"github.com/opencampus/opencampus-lms/internal/quiz"
)

type SQLCatalog struct {
	db *sql.DB
}

func NewSQLCatalog(db *sql.DB) *SQLCatalog { return &SQLCatalog{db: db} }

func (c *SQLCatalog) Quiz(ctx context.Context, quizID string) (quiz.Quiz, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, passing_score_percent, time_limit_sec, is_final
		   FROM quizzes WHERE id=$1`, quizID)
	q, err := scanQuiz(row)
	if errors.Is(err, sql.ErrNoRows) {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	return q, err
}

// Blueprint returns the quiz's questions in order_index order, each with its
// options and correctness flags.
func (c *SQLCatalog) Blueprint(ctx context.Context, quizID string) ([]grading.Question, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT q.id, q.qtype, qq.points
		   FROM quiz_questions qq
		   JOIN questions q ON q.id = qq.question_id
		  WHERE qq.quiz_id=$1
		  ORDER BY qq.order_index`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []grading.Question
	for rows.Next() {
		var q grading.Question
		var qtype string
		if err := rows.Scan(&q.ID, &qtype, &q.Points); err != nil {
			return nil, err
		}
		q.Type = grading.QuestionType(qtype)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		opts, err := c.options(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Options = opts
	}
	return out, nil
}

func (c *SQLCatalog) options(ctx context.Context, questionID string) ([]grading.Option, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, is_correct FROM answer_options WHERE question_id=$1 ORDER BY id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var opts []grading.Option
	for rows.Next() {
		var o grading.Option
		if err := rows.Scan(&o.ID, &o.Correct); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

func (c *SQLCatalog) CourseQuizzes(ctx context.Context, courseID string) ([]quiz.Quiz, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, course_id, title, passing_score_percent, time_limit_sec, is_final
		   FROM quizzes WHERE course_id=$1 ORDER BY id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []quiz.Quiz
	for rows.Next() {
		var q quiz.Quiz
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Title, &q.PassingScorePercent, &q.TimeLimitSec, &q.IsFinal); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// FinalQuiz relies on the authoring convention of at most one final quiz per
// course; with several, the lowest id wins deterministically.
func (c *SQLCatalog) FinalQuiz(ctx context.Context, courseID string) (quiz.Quiz, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, passing_score_percent, time_limit_sec, is_final
		   FROM quizzes WHERE course_id=$1 AND is_final ORDER BY id LIMIT 1`, courseID)
	q, err := scanQuiz(row)
	if errors.Is(err, sql.ErrNoRows) {
		return quiz.Quiz{}, false, nil
	}
	if err != nil {
		return quiz.Quiz{}, false, err
	}
	return q, true, nil
}

func (c *SQLCatalog) CourseExists(ctx context.Context, courseID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM courses WHERE id=$1`, courseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanQuiz(row *sql.Row) (quiz.Quiz, error) {
	var q quiz.Quiz
	err := row.Scan(&q.ID, &q.CourseID, &q.Title, &q.PassingScorePercent, &q.TimeLimitSec, &q.IsFinal)
	return q, err
}
