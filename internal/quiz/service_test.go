package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/opencampus/opencampus-lms/internal/grading"
	"github.com/opencampus/opencampus-lms/internal/quiz"
)

/* ---------------- In-memory fakes for the attempt service's collaborators ---------------- */

type fakeAttempts struct {
	attempts map[string]quiz.Attempt
	answers  map[string][]quiz.Answer
	seq      int
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{attempts: map[string]quiz.Attempt{}, answers: map[string][]quiz.Answer{}}
}

func (s *fakeAttempts) CreateAttempt(_ context.Context, quizID, userID string) (quiz.Attempt, error) {
	n := 0
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.AttemptNumber > n {
			n = a.AttemptNumber
		}
	}
	s.seq++
	a := quiz.Attempt{
		ID:            fmt.Sprintf("att-%d", s.seq),
		QuizID:        quizID,
		UserID:        userID,
		AttemptNumber: n + 1,
		StartedAt:     1000,
	}
	s.attempts[a.ID] = a
	return a, nil
}

func (s *fakeAttempts) GetAttempt(_ context.Context, id string) (quiz.Attempt, error) {
	a, ok := s.attempts[id]
	if !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	return a, nil
}

func (s *fakeAttempts) FinalizeAttempt(_ context.Context, attemptID string, submittedAt int64, sum grading.Summary, answers []quiz.Answer) error {
	a, ok := s.attempts[attemptID]
	if !ok {
		return quiz.ErrAttemptNotFound
	}
	if a.Submitted() {
		return quiz.ErrAlreadySubmitted
	}
	a.SubmittedAt = &submittedAt
	a.ScorePercent = sum.ScorePercent
	s.attempts[attemptID] = a
	s.answers[attemptID] = answers
	return nil
}

func (s *fakeAttempts) ListAttempts(_ context.Context, opts quiz.AttemptListOpts) ([]quiz.Attempt, error) {
	var out []quiz.Attempt
	for _, a := range s.attempts {
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeAttempts) GetAnswers(_ context.Context, attemptID string) ([]quiz.Answer, error) {
	return s.answers[attemptID], nil
}

func (s *fakeAttempts) BestScore(_ context.Context, quizID, userID string) (float64, bool, error) {
	best, ok := 0.0, false
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.Submitted() {
			if !ok || a.ScorePercent > best {
				best, ok = a.ScorePercent, true
			}
		}
	}
	return best, ok, nil
}

type fakeEnroll struct{ active, any map[string]bool } // key user|course

func (e *fakeEnroll) HasActiveEnrollment(_ context.Context, u, c string) (bool, error) {
	return e.active[u+"|"+c], nil
}
func (e *fakeEnroll) HasEnrollment(_ context.Context, u, c string) (bool, error) {
	return e.any[u+"|"+c] || e.active[u+"|"+c], nil
}

type fakeLessons struct{ total, done int }

func (l *fakeLessons) TotalLessons(_ context.Context, _ string) (int, error) { return l.total, nil }
func (l *fakeLessons) CompletedLessons(_ context.Context, _, _ string) (int, error) {
	return l.done, nil
}

type fakeCatalog struct {
	quizzes    map[string]quiz.Quiz
	blueprints map[string][]grading.Question
}

func (c *fakeCatalog) Quiz(_ context.Context, id string) (quiz.Quiz, error) {
	q, ok := c.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	return q, nil
}
func (c *fakeCatalog) Blueprint(_ context.Context, id string) ([]grading.Question, error) {
	return c.blueprints[id], nil
}
func (c *fakeCatalog) CourseQuizzes(_ context.Context, courseID string) ([]quiz.Quiz, error) {
	var out []quiz.Quiz
	for _, q := range c.quizzes {
		if q.CourseID == courseID {
			out = append(out, q)
		}
	}
	return out, nil
}
func (c *fakeCatalog) FinalQuiz(_ context.Context, courseID string) (quiz.Quiz, bool, error) {
	for _, q := range c.quizzes {
		if q.CourseID == courseID && q.IsFinal {
			return q, true, nil
		}
	}
	return quiz.Quiz{}, false, nil
}
func (c *fakeCatalog) CourseExists(_ context.Context, courseID string) (bool, error) {
	for _, q := range c.quizzes {
		if q.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

type fakeEvents struct{ types []string }

func (e *fakeEvents) Append(_ context.Context, typ, _, _ string) error {
	e.types = append(e.types, typ)
	return nil
}

/* ------------------------------------------ Tests ------------------------------------------ */

func seedService(t *testing.T) (*quiz.Service, *fakeAttempts, *fakeEnroll, *fakeLessons, *fakeEvents) {
	t.Helper()
	attempts := newFakeAttempts()
	enroll := &fakeEnroll{active: map[string]bool{"u1|course-1": true}, any: map[string]bool{}}
	lessons := &fakeLessons{total: 2, done: 2}
	cat := &fakeCatalog{
		quizzes: map[string]quiz.Quiz{
			"quiz-1": {ID: "quiz-1", CourseID: "course-1", PassingScorePercent: 60},
			"final-1": {
				ID: "final-1", CourseID: "course-1", PassingScorePercent: 60, IsFinal: true,
			},
		},
		blueprints: map[string][]grading.Question{
			"quiz-1": {
				{ID: "q1", Type: grading.TypeMCQ, Points: 10, Options: []grading.Option{
					{ID: "a", Correct: true}, {ID: "b"},
				}},
				{ID: "q2", Type: grading.TypeMultiSelect, Points: 10, Options: []grading.Option{
					{ID: "x", Correct: true}, {ID: "y", Correct: true}, {ID: "z"},
				}},
			},
		},
	}
	events := &fakeEvents{}
	return quiz.NewService(attempts, enroll, lessons, cat, events), attempts, enroll, lessons, events
}

func TestStart_RequiresActiveEnrollment(t *testing.T) {
	svc, _, _, _, _ := seedService(t)
	_, err := svc.Start(context.Background(), "quiz-1", "stranger")
	if !errors.Is(err, quiz.ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}
}

func TestStart_UnknownQuiz(t *testing.T) {
	svc, _, _, _, _ := seedService(t)
	_, err := svc.Start(context.Background(), "nope", "u1")
	if !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestStart_FinalQuizLessonGate(t *testing.T) {
	svc, _, _, lessons, _ := seedService(t)
	lessons.done = 1

	if _, err := svc.Start(context.Background(), "final-1", "u1"); !errors.Is(err, quiz.ErrLessonsIncomplete) {
		t.Fatalf("expected ErrLessonsIncomplete, got %v", err)
	}
	// non-final quizzes are not gated on lessons
	if _, err := svc.Start(context.Background(), "quiz-1", "u1"); err != nil {
		t.Fatalf("non-final start: %v", err)
	}

	// a course with zero lessons trivially passes the gate
	lessons.total, lessons.done = 0, 0
	if _, err := svc.Start(context.Background(), "final-1", "u1"); err != nil {
		t.Fatalf("zero-lesson course start: %v", err)
	}
}

func TestStart_NumbersAttemptsSequentially(t *testing.T) {
	svc, _, _, _, _ := seedService(t)
	for want := 1; want <= 3; want++ {
		a, err := svc.Start(context.Background(), "quiz-1", "u1")
		if err != nil {
			t.Fatalf("start %d: %v", want, err)
		}
		if a.AttemptNumber != want {
			t.Fatalf("attempt number = %d, want %d", a.AttemptNumber, want)
		}
	}
}

func TestSubmit_GradesAndFinalizes(t *testing.T) {
	svc, attempts, _, _, events := seedService(t)
	a, _ := svc.Start(context.Background(), "quiz-1", "u1")

	res, err := svc.Submit(context.Background(), a.ID, "u1", []quiz.SubmittedAnswer{
		{QuestionID: "q1", SelectedOptionID: "a"},
		{QuestionID: "q2", SelectedOptionIDs: []string{"x"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.ScorePercent != 50 {
		t.Fatalf("score = %v, want 50", res.ScorePercent)
	}
	if got := attempts.attempts[a.ID]; !got.Submitted() || got.ScorePercent != 50 {
		t.Fatalf("attempt not finalized: %+v", got)
	}
	if n := len(attempts.answers[a.ID]); n != 2 {
		t.Fatalf("expected one answer row per blueprint question, got %d", n)
	}
	if len(events.types) != 1 || events.types[0] != "AttemptSubmitted" {
		t.Fatalf("expected AttemptSubmitted event, got %v", events.types)
	}
}

func TestSubmit_OwnershipAndTerminalState(t *testing.T) {
	svc, _, _, _, _ := seedService(t)
	a, _ := svc.Start(context.Background(), "quiz-1", "u1")

	if _, err := svc.Submit(context.Background(), a.ID, "u2", nil); !errors.Is(err, quiz.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), a.ID, "u1", nil); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(context.Background(), a.ID, "u1", nil); !errors.Is(err, quiz.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmit_MalformedEntriesGradeAsUnanswered(t *testing.T) {
	svc, attempts, _, _, _ := seedService(t)
	a, _ := svc.Start(context.Background(), "quiz-1", "u1")

	res, err := svc.Submit(context.Background(), a.ID, "u1", []quiz.SubmittedAnswer{
		{QuestionID: "ghost", SelectedOptionID: "a"},  // unknown question: dropped
		{QuestionID: "q1", SelectedOptionID: "wat"},   // unknown option: incorrect
		{QuestionID: "q1", SelectedOptionID: "a"},     // duplicate: last wins
		{QuestionID: "q2", SelectedOptionIDs: []string{"x", "ghost", "x", "y"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// q1 correct (last entry wins), q2 correct ({x,y} after dropping unknowns/dupes)
	if res.ScorePercent != 100 {
		t.Fatalf("score = %v, want 100", res.ScorePercent)
	}
	var q2Row quiz.Answer
	for _, row := range attempts.answers[a.ID] {
		if row.QuestionID == "q2" {
			q2Row = row
		}
	}
	if len(q2Row.SelectionIDs) != 2 {
		t.Fatalf("persisted selections = %v, want known ids deduplicated", q2Row.SelectionIDs)
	}
}

func TestGet_OwnerScopingAndAnswerVisibility(t *testing.T) {
	svc, _, _, _, _ := seedService(t)
	a, _ := svc.Start(context.Background(), "quiz-1", "u1")

	if _, _, err := svc.Get(context.Background(), a.ID, "u2", false); !errors.Is(err, quiz.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	if _, _, err := svc.Get(context.Background(), a.ID, "u2", true); err != nil {
		t.Fatalf("view-all get: %v", err)
	}

	// in-progress attempts expose no answer rows
	if _, answers, _ := svc.Get(context.Background(), a.ID, "u1", false); answers != nil {
		t.Fatalf("expected no answers before submit, got %v", answers)
	}
	if _, err := svc.Submit(context.Background(), a.ID, "u1", []quiz.SubmittedAnswer{{QuestionID: "q1", SelectedOptionID: "a"}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, answers, _ := svc.Get(context.Background(), a.ID, "u1", false); len(answers) != 2 {
		t.Fatalf("expected answer rows after submit, got %v", answers)
	}
}
