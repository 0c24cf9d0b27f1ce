// Package progress folds lesson completion and the final quiz's best result
// into a single course-progress percentage.
package progress

import (
	"context"

	"github.com/opencampus/opencampus-lms/internal/quiz"
)

// BestScorer is the slice of the attempt store progress needs.
type BestScorer interface {
	BestScore(ctx context.Context, quizID, userID string) (float64, bool, error)
}

type CourseProgress struct {
	TotalLessons     int     `json:"total_lessons"`
	CompletedLessons int     `json:"completed_lessons"`
	LessonsPercent   float64 `json:"lessons_progress_percent"`
	OverallPercent   float64 `json:"overall_percent"`
}

type Aggregator struct {
	lessons  quiz.LessonTracker
	catalog  quiz.QuestionCatalog
	attempts BestScorer
}

func NewAggregator(lessons quiz.LessonTracker, catalog quiz.QuestionCatalog, attempts BestScorer) *Aggregator {
	return &Aggregator{lessons: lessons, catalog: catalog, attempts: attempts}
}

// CourseProgress computes the learner's standing in a course. When every
// lesson is done and a final quiz exists, the overall value is pinned to 100
// on a passing best score and 99 otherwise: the missing point is the
// deliberate "only the final is left" signal, not rounding.
func (g *Aggregator) CourseProgress(ctx context.Context, courseID, userID string) (CourseProgress, error) {
	ok, err := g.catalog.CourseExists(ctx, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	if !ok {
		return CourseProgress{}, quiz.ErrCourseNotFound
	}

	total, err := g.lessons.TotalLessons(ctx, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	done, err := g.lessons.CompletedLessons(ctx, userID, courseID)
	if err != nil {
		return CourseProgress{}, err
	}

	p := CourseProgress{TotalLessons: total, CompletedLessons: done}
	if total > 0 {
		p.LessonsPercent = 100 * float64(done) / float64(total)
	}

	final, hasFinal, err := g.catalog.FinalQuiz(ctx, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	lessonsDone := done >= total
	if lessonsDone && hasFinal {
		if passed, err := g.finalPassed(ctx, final, userID); err != nil {
			return CourseProgress{}, err
		} else if passed {
			p.OverallPercent = 100
		} else {
			p.OverallPercent = 99
		}
		return p, nil
	}
	p.OverallPercent = p.LessonsPercent
	return p, nil
}

func (g *Aggregator) finalPassed(ctx context.Context, final quiz.Quiz, userID string) (bool, error) {
	best, ok, err := g.attempts.BestScore(ctx, final.ID, userID)
	if err != nil {
		return false, err
	}
	return ok && best >= final.PassingScorePercent, nil
}
