package quiz

import "github.com/opencampus/opencampus-lms/internal/grading"

// Quiz is the graded-assessment entity attached to a course. A course has at
// most one quiz flagged final (content-authoring convention); passing it gates
// 100% course completion.
type Quiz struct {
	ID                  string  `json:"id"`
	CourseID            string  `json:"course_id"`
	Title               string  `json:"title"`
	PassingScorePercent float64 `json:"passing_score_percent"`
	TimeLimitSec        int     `json:"time_limit_sec"` // stored, not enforced at submit
	IsFinal             bool    `json:"is_final"`
}

// Attempt is one learner's run through a quiz, from start to submission.
// Once SubmittedAt is set the record is immutable.
type Attempt struct {
	ID            string  `json:"id"`
	QuizID        string  `json:"quiz_id"`
	UserID        string  `json:"user_id"`
	AttemptNumber int     `json:"attempt_number"`
	StartedAt     int64   `json:"started_at"`
	SubmittedAt   *int64  `json:"submitted_at,omitempty"`
	ScorePercent  float64 `json:"score_percent"`
}

func (a Attempt) Submitted() bool { return a.SubmittedAt != nil }

// Answer is the persisted grading record for one blueprint question of a
// submitted attempt. Exactly one row per question, written atomically with the
// attempt's finalization.
type Answer struct {
	ID               string   `json:"id"`
	AttemptID        string   `json:"attempt_id"`
	QuestionID       string   `json:"question_id"`
	SelectedOptionID *string  `json:"selected_option_id,omitempty"`
	ShortAnswerText  *string  `json:"short_answer_text,omitempty"`
	SelectionIDs     []string `json:"selection_ids,omitempty"` // multi-select only
	IsCorrect        bool     `json:"is_correct"`
	PointsEarned     float64  `json:"points_earned"`
}

// Certificate is issued at most once per (course, user); issuance is
// idempotent and the row is immutable afterwards.
type Certificate struct {
	ID              string `json:"id"`
	CourseID        string `json:"course_id"`
	UserID          string `json:"user_id"`
	CertificateCode string `json:"certificate_code"`
	GeneratedAt     int64  `json:"generated_at"`
}

// SubmittedAnswer is one entry of a submission payload, keyed by question.
// A question absent from the payload is graded as unanswered.
type SubmittedAnswer struct {
	QuestionID        string   `json:"question_id"`
	SelectedOptionID  string   `json:"selected_option_id,omitempty"`
	SelectedOptionIDs []string `json:"selected_option_ids,omitempty"`
	FreeText          string   `json:"free_text,omitempty"`
}

// SubmitResult is the caller-visible outcome of a finalized submission.
type SubmitResult struct {
	AttemptID    string                   `json:"attempt_id"`
	ScorePercent float64                  `json:"score_percent"`
	TotalPoints  float64                  `json:"total_points"`
	EarnedPoints float64                  `json:"earned_points"`
	PerQuestion  []grading.QuestionResult `json:"per_question"`
	SubmittedAt  int64                    `json:"submitted_at"`
}
