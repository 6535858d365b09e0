package sqlstore_test

import (
	"context"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/sqlstore"
)

func newSQLiteStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := sqlstore.Open(sqlstore.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := sqlstore.Migrate(context.Background(), db, quietLogger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlstore.NewStore(db)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	if err := sqlstore.Migrate(context.Background(), store.DB(), quietLogger()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestUsersAreUnique(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	alice, err := store.CreateUser(ctx, domain.User{Username: "alice", PasswordHash: "x", Role: domain.RoleStudent, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateUser(ctx, domain.User{Username: "alice", PasswordHash: "y", Role: domain.RoleTeacher, CreatedAt: time.Now().UTC()}); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	got, err := store.UserByUsername(ctx, "alice")
	if err != nil || got.ID != alice.ID || got.Role != domain.RoleStudent {
		t.Fatalf("lookup by username: %+v %v", got, err)
	}
	if _, err := store.UserByID(ctx, 404); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestQuestionWritesBumpLastModified(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	quiz, err := store.CreateQuiz(ctx, domain.Quiz{Title: "SQL", OwnerID: 1, DurationMinutes: 10, CreatedAt: created, LastModified: created})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	q, err := store.AddQuestion(ctx, domain.Question{QuizID: quiz.ID, Text: "?", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "A"}, created.Add(time.Minute))
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	got, _ := store.Quiz(ctx, quiz.ID)
	if !got.LastModified.Equal(created.Add(time.Minute)) {
		t.Fatalf("expected last_modified bumped on add, got %v", got.LastModified)
	}

	q.Text = "edited"
	if err := store.UpdateQuestion(ctx, q, created.Add(2*time.Minute)); err != nil {
		t.Fatalf("update question: %v", err)
	}
	got, _ = store.Quiz(ctx, quiz.ID)
	if !got.LastModified.Equal(created.Add(2 * time.Minute)) {
		t.Fatalf("expected last_modified bumped on edit, got %v", got.LastModified)
	}
	stored, _ := store.Question(ctx, q.ID)
	if stored.Text != "edited" || stored.QuizID != quiz.ID {
		t.Fatalf("unexpected stored question %+v", stored)
	}

	if _, err := store.AddQuestion(ctx, domain.Question{QuizID: 999, Text: "?", CorrectAnswer: "A"}, created); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if err := store.UpdateQuestion(ctx, domain.Question{ID: 999}, created); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestOpenAttemptIndexRejectsSecondOpen(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := store.CreateAttempt(ctx, domain.Attempt{QuizID: 1, UserID: 1, StartedAt: now})
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	if _, err := store.CreateAttempt(ctx, domain.Attempt{QuizID: 1, UserID: 1, StartedAt: now}); !errors.Is(err, domain.ErrOpenAttemptExists) {
		t.Fatalf("expected open attempt conflict, got %v", err)
	}

	if err := store.CloseAttempt(ctx, first.ID, domain.AttemptInvalidated, now.Add(time.Minute)); err != nil {
		t.Fatalf("close attempt: %v", err)
	}
	closed, _ := store.Attempt(ctx, first.ID)
	if !closed.Completed || closed.Status != domain.AttemptInvalidated || closed.CompletedAt == nil {
		t.Fatalf("expected invalidated attempt, got %+v", closed)
	}
	if err := store.CloseAttempt(ctx, first.ID, domain.AttemptSubmitted, now); !errors.Is(err, domain.ErrInvalidAttempt) {
		t.Fatalf("terminal attempts must not re-close, got %v", err)
	}

	if _, err := store.CreateAttempt(ctx, domain.Attempt{QuizID: 1, UserID: 1, StartedAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("new attempt after close: %v", err)
	}
	if _, found, _ := store.OpenAttempt(ctx, 1, 1); !found {
		t.Fatalf("expected an open attempt")
	}
}

func TestResultUniqueConstraintRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	user, _ := store.CreateUser(ctx, domain.User{Username: "bob", PasswordHash: "x", Role: domain.RoleStudent, CreatedAt: now})
	first, _ := store.CreateAttempt(ctx, domain.Attempt{QuizID: 3, UserID: user.ID, StartedAt: now})
	if _, err := store.CompleteWithResult(ctx, first.ID, domain.AttemptSubmitted, domain.Result{QuizID: 3, UserID: user.ID, Score: 2, CreatedAt: now}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	second, _ := store.CreateAttempt(ctx, domain.Attempt{QuizID: 3, UserID: user.ID, StartedAt: now})
	_, err := store.CompleteWithResult(ctx, second.ID, domain.AttemptSubmitted, domain.Result{QuizID: 3, UserID: user.ID, Score: 5, CreatedAt: now})
	if !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}
	still, _ := store.Attempt(ctx, second.ID)
	if still.Completed {
		t.Fatalf("failed completion must roll back the attempt update")
	}

	entries, err := store.LeaderboardEntries(ctx, 3)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "bob" || entries[0].Score != 2 {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}
}

// TestAttemptLifecycleOverSQLite replays the quiz scenarios against the SQL store.
func TestAttemptLifecycleOverSQLite(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	service := app.NewQuizServiceWithClock(store, memory.NewLocker(), memory.NewLeaderboardCache(time.Minute), app.NewHub(), quietLogger(), clock)

	teacher, _ := store.CreateUser(ctx, domain.User{Username: "teacher", PasswordHash: "x", Role: domain.RoleTeacher, CreatedAt: now})
	student, _ := store.CreateUser(ctx, domain.User{Username: "student", PasswordHash: "x", Role: domain.RoleStudent, CreatedAt: now})
	late, _ := store.CreateUser(ctx, domain.User{Username: "late", PasswordHash: "x", Role: domain.RoleStudent, CreatedAt: now})

	quiz, err := service.CreateQuiz(ctx, teacher, "Scenarios", 10)
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	q1, _ := service.AddQuestion(ctx, teacher, quiz.ID, domain.QuestionDraft{Text: "Q1", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "A"})
	q2, _ := service.AddQuestion(ctx, teacher, quiz.ID, domain.QuestionDraft{Text: "Q2", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "B"})
	now = now.Add(time.Second)

	view, err := service.OpenAttempt(ctx, student, quiz.ID)
	if err != nil {
		t.Fatalf("open attempt: %v", err)
	}
	lateView, err := service.OpenAttempt(ctx, late, quiz.ID)
	if err != nil {
		t.Fatalf("open late attempt: %v", err)
	}

	// edit invalidates the open attempts on their next view
	now = now.Add(time.Minute)
	if _, err := service.EditQuestion(ctx, teacher, q2.ID, domain.QuestionDraft{Text: "Q2", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "B"}); err != nil {
		t.Fatalf("edit question: %v", err)
	}
	now = now.Add(time.Minute)
	fresh, err := service.OpenAttempt(ctx, student, quiz.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if fresh.Attempt.ID == view.Attempt.ID {
		t.Fatalf("expected new attempt after edit")
	}
	lateFresh, _ := service.OpenAttempt(ctx, late, quiz.ID)
	if lateFresh.Attempt.ID == lateView.Attempt.ID {
		t.Fatalf("expected new late attempt after edit")
	}

	now = now.Add(5 * time.Minute)
	sub, err := service.Submit(ctx, student, quiz.ID, fresh.Attempt.ID, map[string]string{
		strconv.FormatInt(q1.ID, 10): "A",
		strconv.FormatInt(q2.ID, 10): "C",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Result.Score != 1 {
		t.Fatalf("expected score 1, got %d", sub.Result.Score)
	}

	now = now.Add(6 * time.Minute)
	lateSub, err := service.Submit(ctx, late, quiz.ID, lateFresh.Attempt.ID, map[string]string{strconv.FormatInt(q1.ID, 10): "A"})
	if err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if !lateSub.TimedOut() || lateSub.Result.Score != 0 {
		t.Fatalf("expected timed out zero score, got %+v", lateSub)
	}

	if _, err := service.OpenAttempt(ctx, student, quiz.ID); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}

	lb, err := service.Leaderboard(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].Username != "student" || lb.Entries[1].Username != "late" {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}
}
