package certificate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opencampus/opencampus-lms/internal/certificate"
	"github.com/opencampus/opencampus-lms/internal/grading"
	"github.com/opencampus/opencampus-lms/internal/quiz"
)

type fakeEnroll struct{ enrolled bool }

func (e *fakeEnroll) HasActiveEnrollment(_ context.Context, _, _ string) (bool, error) {
	return e.enrolled, nil
}
func (e *fakeEnroll) HasEnrollment(_ context.Context, _, _ string) (bool, error) {
	return e.enrolled, nil
}

type fakeLessons struct{ total, done int }

func (l *fakeLessons) TotalLessons(_ context.Context, _ string) (int, error) { return l.total, nil }
func (l *fakeLessons) CompletedLessons(_ context.Context, _, _ string) (int, error) {
	return l.done, nil
}

type fakeCatalog struct{ quizzes []quiz.Quiz }

func (c *fakeCatalog) Quiz(_ context.Context, _ string) (quiz.Quiz, error) {
	return quiz.Quiz{}, quiz.ErrQuizNotFound
}
func (c *fakeCatalog) Blueprint(_ context.Context, _ string) ([]grading.Question, error) {
	return nil, nil
}
func (c *fakeCatalog) CourseQuizzes(_ context.Context, _ string) ([]quiz.Quiz, error) {
	return c.quizzes, nil
}
func (c *fakeCatalog) FinalQuiz(_ context.Context, _ string) (quiz.Quiz, bool, error) {
	return quiz.Quiz{}, false, nil
}
func (c *fakeCatalog) CourseExists(_ context.Context, _ string) (bool, error) { return true, nil }

type fakeBest struct{ scores map[string]float64 } // quizID -> best submitted score

func (b *fakeBest) BestScore(_ context.Context, quizID, _ string) (float64, bool, error) {
	s, ok := b.scores[quizID]
	return s, ok, nil
}

type fakeCerts struct {
	byPair    map[string]quiz.Certificate // course|user
	createErr error
	missFirst bool // first pair lookup misses, as seen by a race loser
}

func newFakeCerts() *fakeCerts { return &fakeCerts{byPair: map[string]quiz.Certificate{}} }

func (s *fakeCerts) Create(_ context.Context, c quiz.Certificate) error {
	if s.createErr != nil {
		return s.createErr
	}
	k := c.CourseID + "|" + c.UserID
	if _, dup := s.byPair[k]; dup {
		return quiz.ErrConflict
	}
	s.byPair[k] = c
	return nil
}
func (s *fakeCerts) GetByCourseUser(_ context.Context, courseID, userID string) (quiz.Certificate, bool, error) {
	if s.missFirst {
		s.missFirst = false
		return quiz.Certificate{}, false, nil
	}
	c, ok := s.byPair[courseID+"|"+userID]
	return c, ok, nil
}
func (s *fakeCerts) GetByCode(_ context.Context, code string) (quiz.Certificate, bool, error) {
	for _, c := range s.byPair {
		if c.CertificateCode == code {
			return c, true, nil
		}
	}
	return quiz.Certificate{}, false, nil
}

type fakeEvents struct{ types []string }

func (e *fakeEvents) Append(_ context.Context, typ, _, _ string) error {
	e.types = append(e.types, typ)
	return nil
}

func seedEvaluator(t *testing.T) (*certificate.Evaluator, *fakeEnroll, *fakeLessons, *fakeBest, *fakeCerts, *fakeEvents) {
	t.Helper()
	enroll := &fakeEnroll{enrolled: true}
	lessons := &fakeLessons{total: 2, done: 2}
	cat := &fakeCatalog{quizzes: []quiz.Quiz{
		{ID: "quiz-1", CourseID: "c1", PassingScorePercent: 60},
		{ID: "final-1", CourseID: "c1", PassingScorePercent: 70, IsFinal: true},
	}}
	best := &fakeBest{scores: map[string]float64{"quiz-1": 80, "final-1": 75}}
	certs := newFakeCerts()
	events := &fakeEvents{}
	ev := certificate.NewEvaluator(enroll, lessons, cat, best, certs, events)
	return ev, enroll, lessons, best, certs, events
}

func ruleOf(t *testing.T, err error) *certificate.IneligibleError {
	t.Helper()
	var inel *certificate.IneligibleError
	if !errors.As(err, &inel) {
		t.Fatalf("expected IneligibleError, got %v", err)
	}
	return inel
}

func TestGenerate_Issues(t *testing.T) {
	ev, _, _, _, _, events := seedEvaluator(t)
	c, err := ev.Generate(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(c.CertificateCode) != 16 {
		t.Fatalf("code length = %d, want 16", len(c.CertificateCode))
	}
	for _, r := range c.CertificateCode {
		if !strings.ContainsRune("ABCDEFGHJKMNPQRSTUVWXYZ23456789", r) {
			t.Fatalf("code %q contains %q outside the alphabet", c.CertificateCode, r)
		}
	}
	if len(events.types) != 1 || events.types[0] != "CertificateIssued" {
		t.Fatalf("expected CertificateIssued event, got %v", events.types)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	ev, _, lessons, _, _, events := seedEvaluator(t)
	ctx := context.Background()

	first, err := ev.Generate(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	// even if requirements later regress, the issued certificate stands
	lessons.done = 0
	second, err := ev.Generate(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if second.ID != first.ID || second.CertificateCode != first.CertificateCode {
		t.Fatalf("second issuance differs: %+v vs %+v", second, first)
	}
	if len(events.types) != 1 {
		t.Fatalf("expected a single issuance event, got %v", events.types)
	}
}

func TestGenerate_Denials(t *testing.T) {
	ctx := context.Background()

	t.Run("not enrolled", func(t *testing.T) {
		ev, enroll, _, _, _, _ := seedEvaluator(t)
		enroll.enrolled = false
		_, err := ev.Generate(ctx, "c1", "u1")
		if inel := ruleOf(t, err); inel.Rule != certificate.RuleEnrollment {
			t.Fatalf("rule = %q", inel.Rule)
		}
	})

	t.Run("lessons incomplete", func(t *testing.T) {
		ev, _, lessons, _, _, _ := seedEvaluator(t)
		lessons.done = 1
		_, err := ev.Generate(ctx, "c1", "u1")
		if inel := ruleOf(t, err); inel.Rule != certificate.RuleLessons {
			t.Fatalf("rule = %q", inel.Rule)
		}
	})

	t.Run("quiz below passing", func(t *testing.T) {
		ev, _, _, best, _, _ := seedEvaluator(t)
		best.scores["final-1"] = 69
		_, err := ev.Generate(ctx, "c1", "u1")
		inel := ruleOf(t, err)
		if inel.Rule != certificate.RuleQuizzes || inel.QuizID != "final-1" {
			t.Fatalf("got %+v", inel)
		}
	})

	t.Run("quiz never attempted", func(t *testing.T) {
		ev, _, _, best, _, _ := seedEvaluator(t)
		delete(best.scores, "quiz-1")
		_, err := ev.Generate(ctx, "c1", "u1")
		inel := ruleOf(t, err)
		if inel.Rule != certificate.RuleQuizzes || inel.QuizID != "quiz-1" {
			t.Fatalf("got %+v", inel)
		}
	})
}

func TestGenerate_ConcurrentLoserReadsWinner(t *testing.T) {
	ev, _, _, _, certs, _ := seedEvaluator(t)
	ctx := context.Background()

	// simulate losing the unique-index race: Create conflicts while the pair
	// lookup already sees the winner's row
	winner := quiz.Certificate{
		ID: "cert-w", CourseID: "c1", UserID: "u1",
		CertificateCode: "WINNERCODE222333", GeneratedAt: 100,
	}
	certs.createErr = quiz.ErrConflict
	certs.byPair["c1|u1"] = winner
	certs.missFirst = true

	got, err := ev.Generate(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("got %+v, want winner's certificate", got)
	}
}

func TestVerify(t *testing.T) {
	ev, _, _, _, _, _ := seedEvaluator(t)
	ctx := context.Background()

	c, err := ev.Generate(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	got, ok, err := ev.Verify(ctx, c.CertificateCode)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	if got.ID != c.ID {
		t.Fatalf("verify resolved %+v", got)
	}
	if _, ok, _ := ev.Verify(ctx, "NOSUCHCODE999888"); ok {
		t.Fatal("unknown code verified")
	}
}
