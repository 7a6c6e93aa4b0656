package domain

import (
	"math"
	"time"
)

// QuestionType gates input affordances (radio vs checkbox) on the client.
// Grading itself is type-agnostic: a question is correct iff the selected
// answer set equals the correct answer set exactly.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

// Difficulty tags a quiz for discovery/filtering; it has no effect on scoring.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Answer is a selectable option. Correct and Explanation are part of the
// answer key and must not reach clients before they submit.
type Answer struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

// Question is a gradable unit with a positive point value.
type Question struct {
	ID      int64        `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Points  int          `json:"points"` // defaults to 1 if zero
	Answers []Answer     `json:"answers"`
}

// CorrectSet returns the ids of the answers flagged correct.
func (q Question) CorrectSet() map[int64]struct{} {
	set := make(map[int64]struct{})
	for _, a := range q.Answers {
		if a.Correct {
			set[a.ID] = struct{}{}
		}
	}
	return set
}

// PointValue returns the question's points, defaulting zero to 1.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Quiz is an ordered collection of questions plus authoring metadata.
// It is owned by the content store and immutable during a submission.
type Quiz struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Difficulty       Difficulty `json:"difficulty,omitempty"`
	Category         string     `json:"category,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	TimeLimitMinutes int        `json:"timeLimitMinutes,omitempty"`
	Questions        []Question `json:"questions"`
}

// TotalPoints sums the point values of all questions.
func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.PointValue()
	}
	return total
}

// Redacted returns a copy of the quiz safe to show before submission:
// correctness flags and explanations are stripped.
func (q Quiz) Redacted() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		qc := question
		qc.Answers = make([]Answer, len(question.Answers))
		for j, a := range question.Answers {
			qc.Answers[j] = Answer{ID: a.ID, Text: a.Text}
		}
		out.Questions[i] = qc
	}
	return out
}

// SubmittedAnswerSet maps question id to the answer ids the user selected.
// Slices carry set semantics: duplicates collapse and order is irrelevant.
type SubmittedAnswerSet map[int64][]int64

// SelectionCount counts distinct selections across all questions.
func (s SubmittedAnswerSet) SelectionCount() int {
	n := 0
	for _, ids := range s {
		seen := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		n += len(seen)
	}
	return n
}

// AnswerReview is the post-submission view of one answer option.
type AnswerReview struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	Correct     bool   `json:"is_correct"`
	Selected    bool   `json:"was_selected"`
	Explanation string `json:"explanation,omitempty"`
}

// QuestionResult is the graded outcome for one question.
type QuestionResult struct {
	QuestionID    int64          `json:"question_id"`
	QuestionText  string         `json:"question_text"`
	Type          QuestionType   `json:"question_type"`
	Points        int            `json:"points"`
	Correct       bool           `json:"is_correct"`
	PointsAwarded int            `json:"points_awarded"`
	Answers       []AnswerReview `json:"answers"`
}

// ScoreResult is the aggregate outcome of grading one submission.
type ScoreResult struct {
	Score        float64          `json:"score"` // 0-100, one decimal
	EarnedPoints int              `json:"earned_points"`
	TotalPoints  int              `json:"total_points"`
	Results      []QuestionResult `json:"results"`
}

// Attempt is an immutable record of one scored submission. Ownership is
// fixed at creation; only the owner may read it back.
type Attempt struct {
	ID             int64            `json:"id"`
	UserID         string           `json:"user_id"`
	QuizID         int64            `json:"quiz_id"`
	Score          float64          `json:"score"`
	EarnedPoints   int              `json:"earned_points"`
	TotalPoints    int              `json:"total_points"`
	Results        []QuestionResult `json:"results,omitempty"`
	StartedAt      time.Time        `json:"started_at,omitempty"`
	CompletedAt    time.Time        `json:"completed_at"`
	ElapsedSeconds *int64           `json:"elapsed_seconds,omitempty"`
}

// UserStatistics is derived fresh from a user's attempts on every request.
type UserStatistics struct {
	UserID        string  `json:"user_id"`
	TotalAttempts int     `json:"total_attempts"`
	AverageScore  float64 `json:"average_score"`
	HighestScore  float64 `json:"highest_score"`
}

// RoundScore rounds a percentage to one decimal place.
func RoundScore(v float64) float64 {
	return math.Round(v*10) / 10
}
