package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"timed-quiz-service/internal/domain"
)

// Store implements app.Store on top of bun for sqlite and postgres.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks and shutdown.
func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m := userModel{
		Username:  user.Username,
		Password:  user.PasswordHash,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrDuplicateUsername
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (domain.User, error) {
	var m userModel
	err := s.db.NewSelect().Model(&m).Where("u.id = ?", id).Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return m.toDomain(), nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	var m userModel
	err := s.db.NewSelect().Model(&m).Where("u.username = ?", username).Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return m.toDomain(), nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	m := quizModel{
		Title:        quiz.Title,
		OwnerID:      quiz.OwnerID,
		Duration:     quiz.DurationMinutes,
		CreatedAt:    quiz.CreatedAt,
		LastModified: quiz.LastModified,
	}
	if _, err := s.db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) Quiz(ctx context.Context, id int64) (domain.Quiz, error) {
	var m quizModel
	if err := s.db.NewSelect().Model(&m).Where("qz.id = ?", id).Scan(ctx); err != nil {
		return domain.Quiz{}, notFound(err, domain.ErrQuizNotFound)
	}
	return m.toDomain(), nil
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.listQuizzes(ctx, s.db.NewSelect())
}

func (s *Store) ListQuizzesByOwner(ctx context.Context, ownerID int64) ([]domain.Quiz, error) {
	return s.listQuizzes(ctx, s.db.NewSelect().Where("qz.owner_id = ?", ownerID))
}

func (s *Store) listQuizzes(ctx context.Context, q *bun.SelectQuery) ([]domain.Quiz, error) {
	var models []quizModel
	if err := q.Model(&models).Order("qz.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.Quiz, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) AddQuestion(ctx context.Context, question domain.Question, modifiedAt time.Time) (domain.Question, error) {
	m := questionFromDomain(question)
	m.ID = 0
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := touchQuiz(ctx, tx, question.QuizID, modifiedAt); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&m).Returning("id").Exec(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.Question{}, err
		}
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) UpdateQuestion(ctx context.Context, question domain.Question, modifiedAt time.Time) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing questionModel
		if err := tx.NewSelect().Model(&existing).Where("qn.id = ?", question.ID).Scan(ctx); err != nil {
			return notFound(err, domain.ErrQuestionNotFound)
		}
		m := questionFromDomain(question)
		m.QuizID = existing.QuizID
		if _, err := tx.NewUpdate().
			Model(&m).
			Column("question_text", "option_a", "option_b", "option_c", "option_d", "correct_answer").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		return touchQuiz(ctx, tx, existing.QuizID, modifiedAt)
	})
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) || errors.Is(err, domain.ErrQuizNotFound) {
			return err
		}
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

func touchQuiz(ctx context.Context, tx bun.Tx, quizID int64, modifiedAt time.Time) error {
	res, err := tx.NewUpdate().
		Model((*quizModel)(nil)).
		Set("last_modified = ?", modifiedAt).
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) Question(ctx context.Context, id int64) (domain.Question, error) {
	var m questionModel
	if err := s.db.NewSelect().Model(&m).Where("qn.id = ?", id).Scan(ctx); err != nil {
		return domain.Question{}, notFound(err, domain.ErrQuestionNotFound)
	}
	return m.toDomain(), nil
}

func (s *Store) Questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var models []questionModel
	if err := s.db.NewSelect().Model(&models).Where("qn.quiz_id = ?", quizID).Order("qn.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]domain.Question, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) OpenAttempt(ctx context.Context, quizID, userID int64) (domain.Attempt, bool, error) {
	var m attemptModel
	err := s.db.NewSelect().
		Model(&m).
		Where("a.quiz_id = ?", quizID).
		Where("a.user_id = ?", userID).
		Where("a.status = ?", string(domain.AttemptOpen)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("select open attempt: %w", err)
	}
	return m.toDomain(), true, nil
}

func (s *Store) CreateAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	m := attemptModel{
		QuizID:    attempt.QuizID,
		UserID:    attempt.UserID,
		StartTime: attempt.StartedAt,
		Status:    string(domain.AttemptOpen),
	}
	if _, err := s.db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Attempt{}, domain.ErrOpenAttemptExists
		}
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) Attempt(ctx context.Context, id int64) (domain.Attempt, error) {
	var m attemptModel
	if err := s.db.NewSelect().Model(&m).Where("a.id = ?", id).Scan(ctx); err != nil {
		return domain.Attempt{}, notFound(err, domain.ErrAttemptNotFound)
	}
	return m.toDomain(), nil
}

func (s *Store) CloseAttempt(ctx context.Context, id int64, status domain.AttemptStatus, at time.Time) error {
	return closeAttempt(ctx, s.db, id, status, at)
}

func closeAttempt(ctx context.Context, db bun.IDB, id int64, status domain.AttemptStatus, at time.Time) error {
	res, err := db.NewUpdate().
		Model((*attemptModel)(nil)).
		Set("completed = ?", true).
		Set("completed_time = ?", at).
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Where("status = ?", string(domain.AttemptOpen)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("close attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close attempt: %w", err)
	}
	if n == 0 {
		return domain.ErrInvalidAttempt
	}
	return nil
}

func (s *Store) CompleteWithResult(ctx context.Context, attemptID int64, status domain.AttemptStatus, result domain.Result) (domain.Result, error) {
	m := resultModel{
		QuizID:    result.QuizID,
		UserID:    result.UserID,
		Score:     result.Score,
		CreatedAt: result.CreatedAt,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyAttempted
			}
			return fmt.Errorf("insert result: %w", err)
		}
		return closeAttempt(ctx, tx, attemptID, status, result.CreatedAt)
	})
	if err != nil {
		return domain.Result{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) ResultFor(ctx context.Context, quizID, userID int64) (domain.Result, bool, error) {
	var m resultModel
	err := s.db.NewSelect().
		Model(&m).
		Where("r.quiz_id = ?", quizID).
		Where("r.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, false, nil
	}
	if err != nil {
		return domain.Result{}, false, fmt.Errorf("select result: %w", err)
	}
	return m.toDomain(), true, nil
}

func (s *Store) LeaderboardEntries(ctx context.Context, quizID int64) ([]domain.LeaderboardEntry, error) {
	var rows []leaderboardRow
	err := s.db.NewSelect().
		Model((*resultModel)(nil)).
		ColumnExpr("r.user_id, u.username, r.score, r.created_at AS submitted_at").
		Join("JOIN users AS u ON u.id = r.user_id").
		Where("r.quiz_id = ?", quizID).
		OrderExpr("r.score DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	out := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.LeaderboardEntry{
			UserID:      row.UserID,
			Username:    row.Username,
			Score:       row.Score,
			SubmittedAt: row.SubmittedAt.UTC(),
		})
	}
	return out, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
