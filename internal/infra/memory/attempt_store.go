package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-score-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
// The map write is the whole "transaction": an attempt lands complete with
// its breakdown or not at all.
type AttemptStore struct {
	mu       sync.RWMutex
	nextID   int64
	attempts map[int64]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		nextID:   1,
		attempts: make(map[int64]domain.Attempt),
	}
}

func (s *AttemptStore) Record(_ context.Context, attempt domain.Attempt) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.ID = s.nextID
	s.nextID++
	s.attempts[attempt.ID] = attempt
	return attempt.ID, nil
}

// ListByUser returns the owner's attempts, newest first.
func (s *AttemptStore) ListByUser(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
