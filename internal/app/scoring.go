package app

import (
	"quiz-score-service/internal/domain"
)

// Score grades a submission against the quiz answer key. It is a pure
// function: no I/O, no clock, and the breakdown follows the quiz's question
// and answer order, so identical inputs produce identical results.
//
// A question is correct iff the set of selected answer ids equals the set of
// ids flagged correct, exactly. Missing a correct option or picking an extra
// incorrect one fails the whole question; there is no partial credit.
// Unanswered questions score zero but still appear in the breakdown.
// Submitted question ids that do not belong to the quiz are ignored.
func Score(quiz domain.Quiz, answers domain.SubmittedAnswerSet) domain.ScoreResult {
	result := domain.ScoreResult{
		Results: make([]domain.QuestionResult, 0, len(quiz.Questions)),
	}

	for _, question := range quiz.Questions {
		selected := normalizeSelection(answers[question.ID])
		correct := question.CorrectSet()
		points := question.PointValue()
		result.TotalPoints += points

		// Unanswered is always incorrect, even if the key itself is empty.
		isCorrect := len(selected) > 0 && setsEqual(selected, correct)
		awarded := 0
		if isCorrect {
			awarded = points
			result.EarnedPoints += awarded
		}

		reviews := make([]domain.AnswerReview, 0, len(question.Answers))
		for _, a := range question.Answers {
			_, wasSelected := selected[a.ID]
			reviews = append(reviews, domain.AnswerReview{
				ID:          a.ID,
				Text:        a.Text,
				Correct:     a.Correct,
				Selected:    wasSelected,
				Explanation: a.Explanation,
			})
		}

		result.Results = append(result.Results, domain.QuestionResult{
			QuestionID:    question.ID,
			QuestionText:  question.Text,
			Type:          question.Type,
			Points:        points,
			Correct:       isCorrect,
			PointsAwarded: awarded,
			Answers:       reviews,
		})
	}

	if result.TotalPoints > 0 {
		result.Score = domain.RoundScore(100 * float64(result.EarnedPoints) / float64(result.TotalPoints))
	}
	return result
}

// normalizeSelection collapses a submitted slice into a set: duplicates drop,
// order stops mattering. An absent or empty slice means unanswered.
func normalizeSelection(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func setsEqual(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
