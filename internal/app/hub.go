package app

import (
	"context"
	"sync"

	"timed-quiz-service/internal/domain"
)

// Hub fans leaderboard snapshots out to live subscribers of a quiz.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int64]map[chan domain.Leaderboard]struct{}
	refreshing  map[int64]*sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int64]map[chan domain.Leaderboard]struct{}),
		refreshing:  make(map[int64]*sync.Mutex),
	}
}

// Subscribe registers a channel for quizID primed with initial.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(quizID int64, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[quizID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, quizID)
		}
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber of its quiz.
func (h *Hub) Publish(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[lb.QuizID] {
		select {
		case ch <- lb:
		default:
			// slow subscriber: replace its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Subscribers reports how many live subscriptions exist for quizID.
func (h *Hub) Subscribers(quizID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[quizID])
}

// Refresh loads and publishes a snapshot for quizID. Refreshes of one quiz
// run one at a time, so the last one published reads the newest results.
func (h *Hub) Refresh(ctx context.Context, quizID int64, load func(context.Context) (domain.Leaderboard, error)) error {
	h.mu.Lock()
	mu, ok := h.refreshing[quizID]
	if !ok {
		mu = &sync.Mutex{}
		h.refreshing[quizID] = mu
	}
	h.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	lb, err := load(ctx)
	if err != nil {
		return err
	}
	h.Publish(lb)
	return nil
}
