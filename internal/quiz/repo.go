package quiz

import (
	"context"

	"github.com/opencampus/opencampus-lms/internal/grading"
)

type AttemptListOpts struct {
	QuizID string // filter by quiz
	UserID string // filter by learner
	Status string // optional: in_progress|submitted
	Limit  int
	Offset int
}

// AttemptStore owns the attempt state machine's durable side. CreateAttempt
// must serialize numbering per (quiz,user); FinalizeAttempt must write all
// answer rows and the attempt's submitted_at/score as one transaction and
// fail with ErrAlreadySubmitted when the attempt is no longer in progress.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, quizID, userID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	FinalizeAttempt(ctx context.Context, attemptID string, submittedAt int64, sum grading.Summary, answers []Answer) error
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	GetAnswers(ctx context.Context, attemptID string) ([]Answer, error)

	// BestScore returns the max score_percent among submitted attempts for
	// (quiz,user); ok=false when there are none.
	BestScore(ctx context.Context, quizID, userID string) (score float64, ok bool, err error)
}

// CertificateStore persists issued certificates. Create must surface a
// (course,user) duplicate as ErrConflict so callers can re-read the winner.
type CertificateStore interface {
	Create(ctx context.Context, c Certificate) error
	GetByCourseUser(ctx context.Context, courseID, userID string) (Certificate, bool, error)
	GetByCode(ctx context.Context, code string) (Certificate, bool, error)
}

// EnrollmentRegistry is the enrollment collaborator contract.
type EnrollmentRegistry interface {
	HasActiveEnrollment(ctx context.Context, userID, courseID string) (bool, error)
	// HasEnrollment reports any record regardless of status (certificate rule).
	HasEnrollment(ctx context.Context, userID, courseID string) (bool, error)
}

// LessonTracker is the lesson-completion collaborator contract.
type LessonTracker interface {
	TotalLessons(ctx context.Context, courseID string) (int, error)
	CompletedLessons(ctx context.Context, userID, courseID string) (int, error)
}

// QuestionCatalog serves quiz metadata and the ordered, stable question
// blueprint used for grading. Immutable while an attempt is being graded.
type QuestionCatalog interface {
	Quiz(ctx context.Context, quizID string) (Quiz, error)
	Blueprint(ctx context.Context, quizID string) ([]grading.Question, error)
	CourseQuizzes(ctx context.Context, courseID string) ([]Quiz, error)
	// FinalQuiz returns ok=false when the course has no final quiz.
	FinalQuiz(ctx context.Context, courseID string) (Quiz, bool, error)
	CourseExists(ctx context.Context, courseID string) (bool, error)
}

// EventSink receives lifecycle events (AttemptSubmitted, CertificateIssued).
type EventSink interface {
	Append(ctx context.Context, typ, key, dataJSON string) error
}
