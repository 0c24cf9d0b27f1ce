package quiz

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/opencampus/opencampus-lms/internal/grading"
)

// Service drives the attempt state machine: NotStarted → InProgress →
// Submitted. All preconditions are checked before any mutation; a failing
// precondition leaves no partial state.
type Service struct {
	attempts AttemptStore
	enroll   EnrollmentRegistry
	lessons  LessonTracker
	catalog  QuestionCatalog
	events   EventSink
	now      func() time.Time
}

func NewService(attempts AttemptStore, enroll EnrollmentRegistry, lessons LessonTracker, catalog QuestionCatalog, events EventSink) *Service {
	return &Service{
		attempts: attempts,
		enroll:   enroll,
		lessons:  lessons,
		catalog:  catalog,
		events:   events,
		now:      time.Now,
	}
}

// Start gates on active enrollment and, for final quizzes, full lesson
// completion, then creates the next-numbered in-progress attempt.
func (s *Service) Start(ctx context.Context, quizID, callerUserID string) (Attempt, error) {
	q, err := s.catalog.Quiz(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	active, err := s.enroll.HasActiveEnrollment(ctx, callerUserID, q.CourseID)
	if err != nil {
		return Attempt{}, err
	}
	if !active {
		return Attempt{}, ErrNotEnrolled
	}
	if q.IsFinal {
		total, err := s.lessons.TotalLessons(ctx, q.CourseID)
		if err != nil {
			return Attempt{}, err
		}
		done, err := s.lessons.CompletedLessons(ctx, callerUserID, q.CourseID)
		if err != nil {
			return Attempt{}, err
		}
		// a course with zero lessons trivially satisfies the gate
		if done < total {
			return Attempt{}, ErrLessonsIncomplete
		}
	}
	return s.attempts.CreateAttempt(ctx, quizID, callerUserID)
}

// Submit grades the submission against the catalog snapshot and finalizes the
// attempt. The store guarantees answers and finalization land atomically; a
// concurrent submit loses with ErrAlreadySubmitted and writes nothing.
func (s *Service) Submit(ctx context.Context, attemptID, callerUserID string, submitted []SubmittedAnswer) (SubmitResult, error) {
	a, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	if a.UserID != callerUserID {
		return SubmitResult{}, ErrForbidden
	}
	if a.Submitted() {
		return SubmitResult{}, ErrAlreadySubmitted
	}
	q, err := s.catalog.Quiz(ctx, a.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}
	active, err := s.enroll.HasActiveEnrollment(ctx, callerUserID, q.CourseID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !active {
		return SubmitResult{}, ErrNotEnrolled
	}
	blueprint, err := s.catalog.Blueprint(ctx, a.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}

	answers := submissionMap(blueprint, submitted)
	sum := grading.Grade(blueprint, answers)
	rows := answerRows(attemptID, blueprint, answers, sum)

	submittedAt := s.now().Unix()
	if err := s.attempts.FinalizeAttempt(ctx, attemptID, submittedAt, sum, rows); err != nil {
		return SubmitResult{}, err
	}
	s.emit(ctx, "AttemptSubmitted", attemptID, map[string]any{
		"quiz_id":       a.QuizID,
		"user_id":       a.UserID,
		"score_percent": sum.ScorePercent,
	})

	return SubmitResult{
		AttemptID:    attemptID,
		ScorePercent: sum.ScorePercent,
		TotalPoints:  sum.TotalPoints,
		EarnedPoints: sum.EarnedPoints,
		PerQuestion:  sum.PerQuestion,
		SubmittedAt:  submittedAt,
	}, nil
}

// Get returns an attempt with its answer rows. Non-owners need viewAll.
func (s *Service) Get(ctx context.Context, attemptID, callerUserID string, viewAll bool) (Attempt, []Answer, error) {
	a, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	if a.UserID != callerUserID && !viewAll {
		return Attempt{}, nil, ErrForbidden
	}
	if !a.Submitted() {
		return a, nil, nil
	}
	answers, err := s.attempts.GetAnswers(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	return a, answers, nil
}

func (s *Service) List(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	return s.attempts.ListAttempts(ctx, opts)
}

// submissionMap keys the payload by question, keeping only questions present
// in the blueprint. Unknown question ids and duplicate entries (last wins)
// are dropped silently: malformed input grades as unanswered, it is not an
// error.
func submissionMap(blueprint []grading.Question, submitted []SubmittedAnswer) map[string]grading.Answer {
	known := make(map[string]struct{}, len(blueprint))
	for _, q := range blueprint {
		known[q.ID] = struct{}{}
	}
	out := make(map[string]grading.Answer, len(submitted))
	for _, sa := range submitted {
		if _, ok := known[sa.QuestionID]; !ok {
			continue
		}
		out[sa.QuestionID] = grading.Answer{
			OptionID:  sa.SelectedOptionID,
			OptionIDs: sa.SelectedOptionIDs,
			Text:      sa.FreeText,
		}
	}
	return out
}

// answerRows builds exactly one persistable row per blueprint question.
// Selected ids that are not options of the question are not persisted (they
// cannot satisfy referential integrity) but still participated in grading.
func answerRows(attemptID string, blueprint []grading.Question, answers map[string]grading.Answer, sum grading.Summary) []Answer {
	resByQ := make(map[string]grading.QuestionResult, len(sum.PerQuestion))
	for _, r := range sum.PerQuestion {
		resByQ[r.QuestionID] = r
	}
	rows := make([]Answer, 0, len(blueprint))
	for _, q := range blueprint {
		res := resByQ[q.ID]
		row := Answer{
			ID:           uuid.NewString(),
			AttemptID:    attemptID,
			QuestionID:   q.ID,
			IsCorrect:    res.IsCorrect,
			PointsEarned: res.PointsEarned,
		}
		if a, ok := answers[q.ID]; ok {
			switch q.Type {
			case grading.TypeMCQ, grading.TypeTrueFalse:
				if a.OptionID != "" && hasOption(q, a.OptionID) {
					v := a.OptionID
					row.SelectedOptionID = &v
				}
			case grading.TypeMultiSelect:
				row.SelectionIDs = dedupKnown(q, a.OptionIDs)
			case grading.TypeFreeText:
				if a.Text != "" {
					v := a.Text
					row.ShortAnswerText = &v
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func hasOption(q grading.Question, optID string) bool {
	for _, o := range q.Options {
		if o.ID == optID {
			return true
		}
	}
	return false
}

// dedupKnown collapses duplicates and drops ids outside the question's option
// set, preserving first-seen order.
func dedupKnown(q grading.Question, ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, dup := seen[id]; dup || !hasOption(q, id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) emit(ctx context.Context, typ, key string, data map[string]any) {
	if s.events == nil {
		return
	}
	buf, err := json.Marshal(data)
	if err != nil {
		buf = []byte("{}")
	}
	if err := s.events.Append(ctx, typ, key, string(buf)); err != nil {
		log.Printf("event append failed: %s %s: %v", typ, key, err)
	}
}
