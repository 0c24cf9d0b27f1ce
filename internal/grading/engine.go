package grading

// QuestionType enumerates the supported blueprint question types.
type QuestionType string

const (
	TypeMCQ         QuestionType = "mcq"
	TypeTrueFalse   QuestionType = "true_false"
	TypeMultiSelect QuestionType = "multi_select"
	TypeFreeText    QuestionType = "free_text"
)

// Option is an answer option with its correctness flag, as served by the
// question catalog snapshot.
type Option struct {
	ID      string
	Correct bool
}

// Question is one entry of a quiz's ordered blueprint.
type Question struct {
	ID      string
	Type    QuestionType
	Points  float64
	Options []Option
}

// Answer is a learner's response to a single question. Each question type
// reads only its own field; anything else is treated as unanswered.
type Answer struct {
	OptionID  string   // mcq / true_false
	OptionIDs []string // multi_select
	Text      string   // free_text
}

// QuestionResult is the per-question grading outcome, in blueprint order.
type QuestionResult struct {
	QuestionID   string  `json:"question_id"`
	IsCorrect    bool    `json:"is_correct"`
	PointsEarned float64 `json:"points_earned"`
}

// Summary is the outcome of grading one submission.
type Summary struct {
	PerQuestion  []QuestionResult
	TotalPoints  float64
	EarnedPoints float64
	ScorePercent float64
}

// Strategy decides correctness for a single question type.
type Strategy interface {
	Correct(q Question, a Answer) bool
}

var strategies = map[QuestionType]Strategy{
	TypeMCQ:         singleChoiceStrategy{},
	TypeTrueFalse:   singleChoiceStrategy{},
	TypeMultiSelect: multiSelectStrategy{},
	TypeFreeText:    freeTextStrategy{},
}

// Grade evaluates a submission against the ordered blueprint. It is pure and
// total: every question resolves to a correctness/points value, unanswered or
// malformed responses grade incorrect, and the three totals are exact.
// ScorePercent is 0 when TotalPoints is 0.
func Grade(blueprint []Question, answers map[string]Answer) Summary {
	sum := Summary{PerQuestion: make([]QuestionResult, 0, len(blueprint))}
	for _, q := range blueprint {
		sum.TotalPoints += q.Points
		res := QuestionResult{QuestionID: q.ID}
		if a, answered := answers[q.ID]; answered {
			if s, ok := strategies[q.Type]; ok && s.Correct(q, a) {
				res.IsCorrect = true
				res.PointsEarned = q.Points
			}
		}
		sum.EarnedPoints += res.PointsEarned
		sum.PerQuestion = append(sum.PerQuestion, res)
	}
	if sum.TotalPoints > 0 {
		sum.ScorePercent = 100 * sum.EarnedPoints / sum.TotalPoints
	}
	return sum
}

// --- Strategies ---

type singleChoiceStrategy struct{}

// Correct iff exactly one option was submitted and it carries the correct flag.
func (singleChoiceStrategy) Correct(q Question, a Answer) bool {
	if a.OptionID == "" {
		return false
	}
	for _, o := range q.Options {
		if o.ID == a.OptionID {
			return o.Correct
		}
	}
	return false
}

type multiSelectStrategy struct{}

// Correct iff the submitted id set (deduplicated, order-insensitive) equals
// the set of options flagged correct and is non-empty. An empty submission is
// never correct, even against an empty correct-set.
func (multiSelectStrategy) Correct(q Question, a Answer) bool {
	picked := toSet(a.OptionIDs)
	if len(picked) == 0 {
		return false
	}
	correct := map[string]struct{}{}
	for _, o := range q.Options {
		if o.Correct {
			correct[o.ID] = struct{}{}
		}
	}
	return setEqual(picked, correct)
}

type freeTextStrategy struct{}

// Free text is never auto-graded correct; no text comparison is performed.
func (freeTextStrategy) Correct(Question, Answer) bool { return false }

// helpers

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
