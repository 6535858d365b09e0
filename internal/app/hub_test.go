package app

import (
	"context"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

func TestHubDropsStaleUpdatesForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1, domain.Leaderboard{QuizID: 1})
	defer cancel()

	for i := 0; i < 20; i++ {
		hub.Publish(domain.Leaderboard{QuizID: 1, Entries: make([]domain.LeaderboardEntry, i)})
	}

	var last domain.Leaderboard
	for len(ch) > 0 {
		last = <-ch
	}
	if len(last.Entries) != 19 {
		t.Fatalf("expected latest snapshot to survive, got %d entries", len(last.Entries))
	}
}

func TestHubScopesByQuiz(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1, domain.Leaderboard{QuizID: 1})
	<-ch

	hub.Publish(domain.Leaderboard{QuizID: 2})
	if len(ch) != 0 {
		t.Fatalf("expected no update from another quiz")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after cancel")
	}
	if hub.Subscribers(1) != 0 {
		t.Fatalf("expected subscription to be removed")
	}
}

func TestHubRefreshPublishesInOrder(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1, domain.Leaderboard{QuizID: 1})
	defer cancel()
	<-ch

	ctx := context.Background()
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- hub.Refresh(ctx, 1, func(context.Context) (domain.Leaderboard, error) {
			close(firstStarted)
			<-releaseFirst
			return domain.Leaderboard{QuizID: 1, Entries: make([]domain.LeaderboardEntry, 1)}, nil
		})
	}()
	<-firstStarted

	secondLoaded := make(chan struct{})
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- hub.Refresh(ctx, 1, func(context.Context) (domain.Leaderboard, error) {
			close(secondLoaded)
			return domain.Leaderboard{QuizID: 1, Entries: make([]domain.LeaderboardEntry, 2)}, nil
		})
	}()

	select {
	case <-secondLoaded:
		t.Fatalf("second refresh loaded while the first was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(releaseFirst)
	for _, done := range []chan error{firstDone, secondDone} {
		if err := <-done; err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}

	var got []int
	for len(ch) > 0 {
		got = append(got, len((<-ch).Entries))
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected snapshots in load order [1 2], got %v", got)
	}
}
