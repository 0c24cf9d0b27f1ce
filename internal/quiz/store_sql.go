package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencampus/opencampus-lms/internal/grading"
)

// SQLStore implements AttemptStore on database/sql. All statements use $n
// placeholders and run unchanged on sqlite (modernc) and postgres (pgx).
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func nowUnix() int64 { return time.Now().Unix() }

// createRetries bounds the numbering-race retry loop; the loser of the final
// round surfaces ErrConflict to the caller.
const createRetries = 3

func (s *SQLStore) CreateAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	for i := 0; i < createRetries; i++ {
		a, err := s.tryCreateAttempt(ctx, quizID, userID)
		if err == nil {
			return a, nil
		}
		if !isUniqueViolation(err) {
			return Attempt{}, err
		}
		// lost the (quiz,user,attempt_number) race; recompute and retry
	}
	return Attempt{}, ErrConflict
}

func (s *SQLStore) tryCreateAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	var next int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_number),0)+1 FROM quiz_attempts WHERE quiz_id=$1 AND user_id=$2`,
		quizID, userID).Scan(&next)
	if err != nil {
		return Attempt{}, err
	}
	a := Attempt{
		ID:            uuid.NewString(),
		QuizID:        quizID,
		UserID:        userID,
		AttemptNumber: next,
		StartedAt:     nowUnix(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, user_id, attempt_number, started_at, score_percent)
		 VALUES ($1,$2,$3,$4,$5,0)`,
		a.ID, a.QuizID, a.UserID, a.AttemptNumber, a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, quiz_id, user_id, attempt_number, started_at, submitted_at, score_percent
		   FROM quiz_attempts WHERE id=$1`, id)
	var a Attempt
	var submitted sql.NullInt64
	if err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.AttemptNumber, &a.StartedAt, &submitted, &a.ScorePercent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	if submitted.Valid {
		v := submitted.Int64
		a.SubmittedAt = &v
	}
	return a, nil
}

// FinalizeAttempt writes the attempt's terminal state and every answer row in
// one transaction. The conditional UPDATE is the double-submit guard: when a
// concurrent submit already won, zero rows match and the caller gets
// ErrAlreadySubmitted with no answer rows written.
func (s *SQLStore) FinalizeAttempt(ctx context.Context, attemptID string, submittedAt int64, sum grading.Summary, answers []Answer) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE quiz_attempts SET submitted_at=$1, score_percent=$2
		  WHERE id=$3 AND submitted_at IS NULL`,
		submittedAt, sum.ScorePercent, attemptID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		if e := tx.QueryRowContext(ctx, `SELECT 1 FROM quiz_attempts WHERE id=$1`, attemptID).Scan(&one); e != nil {
			if errors.Is(e, sql.ErrNoRows) {
				return ErrAttemptNotFound
			}
			return e
		}
		return ErrAlreadySubmitted
	}

	for _, ans := range answers {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attempt_answers
			   (id, attempt_id, question_id, selected_option_id, short_answer_text, is_correct, points_earned)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			ans.ID, attemptID, ans.QuestionID, ans.SelectedOptionID, ans.ShortAnswerText, ans.IsCorrect, ans.PointsEarned)
		if err != nil {
			return err
		}
		for _, optID := range ans.SelectionIDs {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO attempt_answer_selections (id, attempt_answer_id, answer_option_id)
				 VALUES ($1,$2,$3)`,
				uuid.NewString(), ans.ID, optID)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.UserID != "" {
		add("user_id=$%d", opts.UserID)
	}
	switch opts.Status {
	case "in_progress":
		where = append(where, "submitted_at IS NULL")
	case "submitted":
		where = append(where, "submitted_at IS NOT NULL")
	}
	q := `SELECT id, quiz_id, user_id, attempt_number, started_at, submitted_at, score_percent FROM quiz_attempts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC, attempt_number DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += " LIMIT " + strconv.Itoa(limit)
	if opts.Offset > 0 {
		q += " OFFSET " + strconv.Itoa(opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		var a Attempt
		var submitted sql.NullInt64
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.AttemptNumber, &a.StartedAt, &submitted, &a.ScorePercent); err != nil {
			return nil, err
		}
		if submitted.Valid {
			v := submitted.Int64
			a.SubmittedAt = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetAnswers(ctx context.Context, attemptID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.attempt_id, a.question_id, a.selected_option_id, a.short_answer_text, a.is_correct, a.points_earned
		   FROM attempt_answers a
		   JOIN quiz_attempts t ON t.id = a.attempt_id
		   JOIN quiz_questions qq ON qq.quiz_id = t.quiz_id AND qq.question_id = a.question_id
		  WHERE a.attempt_id=$1
		  ORDER BY qq.order_index`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		var ans Answer
		var sel, txt sql.NullString
		if err := rows.Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &sel, &txt, &ans.IsCorrect, &ans.PointsEarned); err != nil {
			return nil, err
		}
		if sel.Valid {
			ans.SelectedOptionID = &sel.String
		}
		if txt.Valid {
			ans.ShortAnswerText = &txt.String
		}
		out = append(out, ans)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		ids, err := s.selectionIDs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].SelectionIDs = ids
	}
	return out, nil
}

func (s *SQLStore) selectionIDs(ctx context.Context, answerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT answer_option_id FROM attempt_answer_selections WHERE attempt_answer_id=$1`, answerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) BestScore(ctx context.Context, quizID, userID string) (float64, bool, error) {
	var best sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(score_percent) FROM quiz_attempts
		  WHERE quiz_id=$1 AND user_id=$2 AND submitted_at IS NOT NULL`,
		quizID, userID).Scan(&best)
	if err != nil {
		return 0, false, err
	}
	if !best.Valid {
		return 0, false, nil
	}
	return best.Float64, true, nil
}
