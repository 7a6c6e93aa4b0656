package app

import (
	"sync"

	"quiz-score-service/internal/domain"
)

// StatsFeed fans statistics snapshots out to per-user subscribers. It backs
// the live stats websocket; submissions publish a refreshed snapshot after
// each recorded attempt.
type StatsFeed struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.UserStatistics]struct{}
}

func NewStatsFeed() *StatsFeed {
	return &StatsFeed{
		subscribers: make(map[string]map[chan domain.UserStatistics]struct{}),
	}
}

// subscribe registers a channel and delivers the initial snapshot inside the
// critical section, so a racing publish can never land before it.
func (f *StatsFeed) subscribe(userID string, initial domain.UserStatistics) (<-chan domain.UserStatistics, func()) {
	ch := make(chan domain.UserStatistics, 8)

	f.mu.Lock()
	if f.subscribers[userID] == nil {
		f.subscribers[userID] = make(map[chan domain.UserStatistics]struct{})
	}
	f.subscribers[userID][ch] = struct{}{}
	ch <- initial
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subscribers[userID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(f.subscribers, userID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *StatsFeed) hasSubscribers(userID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[userID]) > 0
}

// publish holds the exclusive lock: drain-then-send is only safe when no
// other sender can refill the channel between the two steps.
func (f *StatsFeed) publish(userID string, stats domain.UserStatistics) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[userID] {
		select {
		case ch <- stats:
		default:
			// Slow consumer: drop the stale snapshot so the fresh one lands.
			select {
			case <-ch:
			default:
			}
			ch <- stats
		}
	}
}
