// Package certificate decides certificate eligibility and issues at most one
// certificate per (course, user).
package certificate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/opencampus/opencampus-lms/internal/quiz"
)

// Rule names the eligibility rule a denial came from.
type Rule string

const (
	RuleEnrollment Rule = "enrollment"
	RuleLessons    Rule = "lessons"
	RuleQuizzes    Rule = "quizzes"
)

// IneligibleError reports which rule failed; for the quiz rule, QuizID names
// the first quiz that is not yet passed.
type IneligibleError struct {
	Rule   Rule
	QuizID string
}

func (e *IneligibleError) Error() string {
	if e.Rule == RuleQuizzes {
		return fmt.Sprintf("ineligible: quiz %s not passed", e.QuizID)
	}
	return fmt.Sprintf("ineligible: %s requirement unmet", e.Rule)
}

// BestScorer is the slice of the attempt store eligibility needs.
type BestScorer interface {
	BestScore(ctx context.Context, quizID, userID string) (float64, bool, error)
}

type Evaluator struct {
	enroll   quiz.EnrollmentRegistry
	lessons  quiz.LessonTracker
	catalog  quiz.QuestionCatalog
	attempts BestScorer
	certs    quiz.CertificateStore
	events   quiz.EventSink
	now      func() time.Time
}

func NewEvaluator(enroll quiz.EnrollmentRegistry, lessons quiz.LessonTracker, catalog quiz.QuestionCatalog, attempts BestScorer, certs quiz.CertificateStore, events quiz.EventSink) *Evaluator {
	return &Evaluator{
		enroll:   enroll,
		lessons:  lessons,
		catalog:  catalog,
		attempts: attempts,
		certs:    certs,
		events:   events,
		now:      time.Now,
	}
}

// Generate is idempotent: an existing certificate for the pair is returned
// unchanged without re-validation. Otherwise both rules must pass — all
// lessons complete (when the course has lessons) and every course quiz's best
// submitted score at or above its passing threshold.
func (e *Evaluator) Generate(ctx context.Context, courseID, userID string) (quiz.Certificate, error) {
	enrolled, err := e.enroll.HasEnrollment(ctx, userID, courseID)
	if err != nil {
		return quiz.Certificate{}, err
	}
	if !enrolled {
		return quiz.Certificate{}, &IneligibleError{Rule: RuleEnrollment}
	}

	if c, ok, err := e.certs.GetByCourseUser(ctx, courseID, userID); err != nil {
		return quiz.Certificate{}, err
	} else if ok {
		return c, nil
	}

	// Rule 1: lessons
	total, err := e.lessons.TotalLessons(ctx, courseID)
	if err != nil {
		return quiz.Certificate{}, err
	}
	if total > 0 {
		done, err := e.lessons.CompletedLessons(ctx, userID, courseID)
		if err != nil {
			return quiz.Certificate{}, err
		}
		if done != total {
			return quiz.Certificate{}, &IneligibleError{Rule: RuleLessons}
		}
	}

	// Rule 2: every quiz in the course, no opt-out
	quizzes, err := e.catalog.CourseQuizzes(ctx, courseID)
	if err != nil {
		return quiz.Certificate{}, err
	}
	for _, q := range quizzes {
		best, ok, err := e.attempts.BestScore(ctx, q.ID, userID)
		if err != nil {
			return quiz.Certificate{}, err
		}
		if !ok || best < q.PassingScorePercent {
			return quiz.Certificate{}, &IneligibleError{Rule: RuleQuizzes, QuizID: q.ID}
		}
	}

	code, err := NewCode()
	if err != nil {
		return quiz.Certificate{}, err
	}
	cert := quiz.Certificate{
		ID:              uuid.NewString(),
		CourseID:        courseID,
		UserID:          userID,
		CertificateCode: code,
		GeneratedAt:     e.now().Unix(),
	}
	if err := e.certs.Create(ctx, cert); err != nil {
		if errors.Is(err, quiz.ErrConflict) {
			// a concurrent evaluation won; its certificate is the one
			existing, ok, gErr := e.certs.GetByCourseUser(ctx, courseID, userID)
			if gErr != nil {
				return quiz.Certificate{}, gErr
			}
			if ok {
				return existing, nil
			}
		}
		return quiz.Certificate{}, err
	}
	e.emit(ctx, cert)
	return cert, nil
}

// Verify resolves an issued certificate by its opaque code.
func (e *Evaluator) Verify(ctx context.Context, code string) (quiz.Certificate, bool, error) {
	return e.certs.GetByCode(ctx, code)
}

func (e *Evaluator) emit(ctx context.Context, c quiz.Certificate) {
	if e.events == nil {
		return
	}
	buf, _ := json.Marshal(map[string]any{
		"course_id": c.CourseID,
		"user_id":   c.UserID,
		"code":      c.CertificateCode,
	})
	if err := e.events.Append(ctx, "CertificateIssued", c.ID, string(buf)); err != nil {
		log.Printf("event append failed: CertificateIssued %s: %v", c.ID, err)
	}
}
