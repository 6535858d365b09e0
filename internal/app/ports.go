package app

import (
	"context"
	"time"

	"timed-quiz-service/internal/domain"
)

// UserRepository persists accounts. CreateUser returns domain.ErrDuplicateUsername
// when the username is taken.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	UserByID(ctx context.Context, id int64) (domain.User, error)
	UserByUsername(ctx context.Context, username string) (domain.User, error)
}

// QuizRepository stores quiz headers.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	Quiz(ctx context.Context, id int64) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	ListQuizzesByOwner(ctx context.Context, ownerID int64) ([]domain.Quiz, error)
}

// QuestionRepository stores the question bank. Writes set the parent quiz's
// last_modified to modifiedAt in the same transaction.
type QuestionRepository interface {
	AddQuestion(ctx context.Context, question domain.Question, modifiedAt time.Time) (domain.Question, error)
	UpdateQuestion(ctx context.Context, question domain.Question, modifiedAt time.Time) error
	Question(ctx context.Context, id int64) (domain.Question, error)
	Questions(ctx context.Context, quizID int64) ([]domain.Question, error)
}

// AttemptRepository tracks attempts and the results they produce.
type AttemptRepository interface {
	// OpenAttempt returns the open attempt for the pair, if any.
	OpenAttempt(ctx context.Context, quizID, userID int64) (domain.Attempt, bool, error)
	// CreateAttempt returns domain.ErrOpenAttemptExists if an open attempt is already stored.
	CreateAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	Attempt(ctx context.Context, id int64) (domain.Attempt, error)
	// CloseAttempt moves an open attempt to a terminal status without a result.
	CloseAttempt(ctx context.Context, id int64, status domain.AttemptStatus, at time.Time) error
	// CompleteWithResult closes the attempt and inserts the result atomically.
	// It returns domain.ErrAlreadyAttempted on a duplicate result and
	// domain.ErrInvalidAttempt if the attempt is no longer open.
	CompleteWithResult(ctx context.Context, attemptID int64, status domain.AttemptStatus, result domain.Result) (domain.Result, error)
}

// ResultRepository reads the result ledger.
type ResultRepository interface {
	ResultFor(ctx context.Context, quizID, userID int64) (domain.Result, bool, error)
	LeaderboardEntries(ctx context.Context, quizID int64) ([]domain.LeaderboardEntry, error)
}

// Store groups every repository a backend provides.
type Store interface {
	UserRepository
	QuizRepository
	QuestionRepository
	AttemptRepository
	ResultRepository
}

// Locker provides mutual exclusion across requests for a key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LeaderboardLoader builds a leaderboard from the result ledger.
type LeaderboardLoader func(ctx context.Context) (domain.Leaderboard, error)

// LeaderboardCache memoizes leaderboards until a quiz's results change.
type LeaderboardCache interface {
	Get(ctx context.Context, quizID int64, load LeaderboardLoader) (domain.Leaderboard, error)
	Invalidate(ctx context.Context, quizID int64) error
}
