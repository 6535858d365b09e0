package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store, used for tests and the
// "memory" database driver. It enforces the same uniqueness rules as the SQL
// schema: usernames, one open attempt and one result per user and quiz.
type Store struct {
	mu sync.RWMutex

	nextID    int64
	users     map[int64]domain.User
	quizzes   map[int64]domain.Quiz
	questions map[int64]domain.Question
	attempts  map[int64]domain.Attempt
	results   map[int64]domain.Result
}

func NewStore() *Store {
	return &Store{
		users:     make(map[int64]domain.User),
		quizzes:   make(map[int64]domain.Quiz),
		questions: make(map[int64]domain.Question),
		attempts:  make(map[int64]domain.Attempt),
		results:   make(map[int64]domain.Result),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return domain.User{}, domain.ErrDuplicateUsername
		}
	}
	user.ID = s.id()
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) UserByID(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *Store) UserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz.ID = s.id()
	s.quizzes[quiz.ID] = quiz
	return quiz, nil
}

func (s *Store) Quiz(_ context.Context, id int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.quizzes[id]; ok {
		return q, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	return s.filterQuizzes(func(domain.Quiz) bool { return true }), nil
}

func (s *Store) ListQuizzesByOwner(_ context.Context, ownerID int64) ([]domain.Quiz, error) {
	return s.filterQuizzes(func(q domain.Quiz) bool { return q.OwnerID == ownerID }), nil
}

func (s *Store) filterQuizzes(keep func(domain.Quiz) bool) []domain.Quiz {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		if keep(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) AddQuestion(_ context.Context, question domain.Question, modifiedAt time.Time) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[question.QuizID]
	if !ok {
		return domain.Question{}, domain.ErrQuizNotFound
	}
	question.ID = s.id()
	s.questions[question.ID] = question
	quiz.LastModified = modifiedAt
	s.quizzes[quiz.ID] = quiz
	return question, nil
}

func (s *Store) UpdateQuestion(_ context.Context, question domain.Question, modifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.questions[question.ID]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	quiz, ok := s.quizzes[existing.QuizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	question.QuizID = existing.QuizID
	s.questions[question.ID] = question
	quiz.LastModified = modifiedAt
	s.quizzes[quiz.ID] = quiz
	return nil
}

func (s *Store) Question(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.questions[id]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (s *Store) Questions(_ context.Context, quizID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0)
	for _, q := range s.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) OpenAttempt(_ context.Context, quizID, userID int64) (domain.Attempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.openAttemptLocked(quizID, userID)
	return a, ok, nil
}

func (s *Store) openAttemptLocked(quizID, userID int64) (domain.Attempt, bool) {
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID && !a.Completed {
			return a, true
		}
	}
	return domain.Attempt{}, false
}

func (s *Store) CreateAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.openAttemptLocked(attempt.QuizID, attempt.UserID); ok {
		return domain.Attempt{}, domain.ErrOpenAttemptExists
	}
	attempt.ID = s.id()
	attempt.Completed = false
	attempt.CompletedAt = nil
	attempt.Status = domain.AttemptOpen
	s.attempts[attempt.ID] = attempt
	return attempt, nil
}

func (s *Store) Attempt(_ context.Context, id int64) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.attempts[id]; ok {
		return a, nil
	}
	return domain.Attempt{}, domain.ErrAttemptNotFound
}

func (s *Store) CloseAttempt(_ context.Context, id int64, status domain.AttemptStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeAttemptLocked(id, status, at)
}

func (s *Store) closeAttemptLocked(id int64, status domain.AttemptStatus, at time.Time) error {
	a, ok := s.attempts[id]
	if !ok || a.Completed {
		return domain.ErrInvalidAttempt
	}
	a.Completed = true
	a.CompletedAt = &at
	a.Status = status
	s.attempts[id] = a
	return nil
}

func (s *Store) CompleteWithResult(_ context.Context, attemptID int64, status domain.AttemptStatus, result domain.Result) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resultForLocked(result.QuizID, result.UserID); ok {
		return domain.Result{}, domain.ErrAlreadyAttempted
	}
	if err := s.closeAttemptLocked(attemptID, status, result.CreatedAt); err != nil {
		return domain.Result{}, err
	}
	result.ID = s.id()
	s.results[result.ID] = result
	return result, nil
}

func (s *Store) ResultFor(_ context.Context, quizID, userID int64) (domain.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resultForLocked(quizID, userID)
	return r, ok, nil
}

func (s *Store) resultForLocked(quizID, userID int64) (domain.Result, bool) {
	for _, r := range s.results {
		if r.QuizID == quizID && r.UserID == userID {
			return r, true
		}
	}
	return domain.Result{}, false
}

func (s *Store) LeaderboardEntries(_ context.Context, quizID int64) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.LeaderboardEntry, 0)
	for _, r := range s.results {
		if r.QuizID != quizID {
			continue
		}
		u, ok := s.users[r.UserID]
		if !ok {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      u.ID,
			Username:    u.Username,
			Score:       r.Score,
			SubmittedAt: r.CreatedAt,
		})
	}
	return entries, nil
}

// AttemptsFor lists every attempt of a user at a quiz, oldest first.
func (s *Store) AttemptsFor(quizID, userID int64) []domain.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
