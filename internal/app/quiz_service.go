package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"quiz-score-service/internal/domain"
)

// QuizRepository loads quiz content, answer key included (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// AttemptRepository persists scored attempts and reads them back per owner.
// Record must be atomic: the attempt and its full breakdown land together or
// not at all.
type AttemptRepository interface {
	Record(ctx context.Context, attempt domain.Attempt) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error)
}

// QuizService coordinates loading, scoring, recording, and aggregation.
// It is the only component that touches transactional boundaries.
type QuizService struct {
	quizzes  QuizRepository
	attempts AttemptRepository
	feed     *StatsFeed
	now      func() time.Time
}

func NewQuizService(quizzes QuizRepository, attempts AttemptRepository) *QuizService {
	return &QuizService{
		quizzes:  quizzes,
		attempts: attempts,
		feed:     NewStatsFeed(),
		now:      time.Now,
	}
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(quizzes QuizRepository, attempts AttemptRepository, now func() time.Time) *QuizService {
	s := NewQuizService(quizzes, attempts)
	s.now = now
	return s
}

// GetQuiz returns the pre-submission view of a quiz: answer key redacted.
func (s *QuizService) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz.Redacted(), nil
}

// ListQuizzes returns all quizzes, answer keys redacted.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Quiz, len(quizzes))
	for i, q := range quizzes {
		out[i] = q.Redacted()
	}
	return out, nil
}

// Submit grades a submission and records the attempt. Single pass, no
// internal retries: grading is pure and cheap, and only the persistence step
// can fail transiently, and that failure is surfaced, not retried.
func (s *QuizService) Submit(ctx context.Context, userID string, quizID int64, answers domain.SubmittedAnswerSet, startedAt time.Time) (domain.Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	// A submission with zero selections across the whole quiz is not a real
	// attempt and is rejected rather than recorded as a zero score.
	if answers.SelectionCount() == 0 {
		return domain.Attempt{}, domain.ErrInvalidSubmission
	}

	scored := Score(quiz, answers)

	completedAt := s.now()
	attempt := domain.Attempt{
		UserID:       userID,
		QuizID:       quizID,
		Score:        scored.Score,
		EarnedPoints: scored.EarnedPoints,
		TotalPoints:  scored.TotalPoints,
		Results:      scored.Results,
		CompletedAt:  completedAt,
	}
	if !startedAt.IsZero() {
		attempt.StartedAt = startedAt
		elapsed := int64(completedAt.Sub(startedAt) / time.Second)
		if elapsed < 0 {
			// Clock skew between client and server; clamp instead of rejecting.
			elapsed = 0
		}
		attempt.ElapsedSeconds = &elapsed
	}

	id, err := s.attempts.Record(ctx, attempt)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("record attempt: %w", err)
	}
	attempt.ID = id
	log.Printf("attempt %d recorded: user=%s quiz=%d score=%.1f (%d/%d points)",
		id, userID, quizID, attempt.Score, attempt.EarnedPoints, attempt.TotalPoints)

	s.publishStats(ctx, userID)
	return attempt, nil
}

// Stats folds a user's attempts into summary statistics, recomputed per call.
// Zero attempts is a valid state, not an error.
func (s *QuizService) Stats(ctx context.Context, userID string) (domain.UserStatistics, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return domain.UserStatistics{}, fmt.Errorf("list attempts: %w", err)
	}
	return foldStats(userID, attempts), nil
}

// RecentAttempts returns the user's newest attempts, at most limit.
func (s *QuizService) RecentAttempts(ctx context.Context, userID string, limit int) ([]domain.Attempt, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	if limit > 0 && len(attempts) > limit {
		attempts = attempts[:limit]
	}
	return attempts, nil
}

// SubscribeStats returns a channel receiving statistics snapshots for a user:
// one immediately, then one after each recorded attempt. The caller must
// invoke the cancel function to avoid leaks.
func (s *QuizService) SubscribeStats(ctx context.Context, userID string) (<-chan domain.UserStatistics, func(), error) {
	initial, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.subscribe(userID, initial)
	return ch, cancel, nil
}

func (s *QuizService) publishStats(ctx context.Context, userID string) {
	if !s.feed.hasSubscribers(userID) {
		return
	}
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		log.Printf("stats refresh for feed failed: %v", err)
		return
	}
	s.feed.publish(userID, stats)
}

func foldStats(userID string, attempts []domain.Attempt) domain.UserStatistics {
	stats := domain.UserStatistics{UserID: userID, TotalAttempts: len(attempts)}
	if len(attempts) == 0 {
		return stats
	}
	sum := 0.0
	for _, a := range attempts {
		sum += a.Score
		if a.Score > stats.HighestScore {
			stats.HighestScore = a.Score
		}
	}
	stats.AverageScore = domain.RoundScore(sum / float64(len(attempts)))
	return stats
}
