package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// QuizService contains the quiz use cases: catalog, question bank, attempts,
// grading and the leaderboard.
type QuizService struct {
	store  Store
	locker Locker
	cache  LeaderboardCache
	hub    *Hub
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewQuizService(store Store, locker Locker, cache LeaderboardCache, hub *Hub, logger logrus.FieldLogger) *QuizService {
	return NewQuizServiceWithClock(store, locker, cache, hub, logger, time.Now)
}

// NewQuizServiceWithClock allows deterministic timestamps in tests.
func NewQuizServiceWithClock(store Store, locker Locker, cache LeaderboardCache, hub *Hub, logger logrus.FieldLogger, now func() time.Time) *QuizService {
	if hub == nil {
		hub = NewHub()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &QuizService{
		store:  store,
		locker: locker,
		cache:  cache,
		hub:    hub,
		now:    now,
		log:    logger,
	}
}

// clock is truncated to the precision SQL timestamps keep.
func (s *QuizService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// attemptLockKey scopes mutual exclusion to one user at one quiz.
func attemptLockKey(quizID, userID int64) string {
	return fmt.Sprintf("attempt:%d:%d", quizID, userID)
}

func (s *QuizService) withAttemptLock(ctx context.Context, quizID, userID int64, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, attemptLockKey(quizID, userID))
	if err != nil {
		return fmt.Errorf("acquire attempt lock: %w", err)
	}
	defer unlock()
	return fn()
}
