package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"timed-quiz-service/internal/domain"
)

// Leaderboard returns the ranked results of a quiz.
func (s *QuizService) Leaderboard(ctx context.Context, quizID int64) (domain.Leaderboard, error) {
	if _, err := s.store.Quiz(ctx, quizID); err != nil {
		return domain.Leaderboard{}, err
	}
	return s.cache.Get(ctx, quizID, func(ctx context.Context) (domain.Leaderboard, error) {
		return s.loadLeaderboard(ctx, quizID)
	})
}

// Subscribe returns a channel of leaderboard snapshots for quizID, starting
// with the current one. The caller must invoke cancel to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, quizID int64) (<-chan domain.Leaderboard, func(), error) {
	lb, err := s.Leaderboard(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(quizID, lb)
	return ch, cancel, nil
}

func (s *QuizService) loadLeaderboard(ctx context.Context, quizID int64) (domain.Leaderboard, error) {
	entries, err := s.store.LeaderboardEntries(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("load leaderboard: %w", err)
	}
	RankEntries(entries)
	return domain.Leaderboard{QuizID: quizID, Entries: entries, UpdatedAt: s.clock()}, nil
}

// RankEntries orders by score descending, then earliest submission, then username.
func RankEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].SubmittedAt.Equal(entries[j].SubmittedAt) {
			return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
		}
		return entries[i].Username < entries[j].Username
	})
}

// resultsChanged drops the cached leaderboard and pushes a fresh one to
// live subscribers. Failures are logged: the result is already stored.
func (s *QuizService) resultsChanged(ctx context.Context, quizID int64) {
	logger := s.log.WithFields(logrus.Fields{"quiz_id": quizID})
	if err := s.cache.Invalidate(ctx, quizID); err != nil {
		logger.WithError(err).Warn("leaderboard cache invalidation failed")
	}
	if s.hub.Subscribers(quizID) == 0 {
		return
	}
	if err := s.hub.Refresh(ctx, quizID, func(ctx context.Context) (domain.Leaderboard, error) {
		return s.Leaderboard(ctx, quizID)
	}); err != nil {
		logger.WithError(err).Warn("leaderboard refresh failed")
	}
}
