package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"timed-quiz-service/internal/domain"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Username  string    `bun:"username,notnull"`
	Password  string    `bun:"password,notnull"`
	Role      string    `bun:"role,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (m userModel) toDomain() domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.Password,
		Role:         domain.Role(m.Role),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Title        string    `bun:"title,notnull"`
	OwnerID      int64     `bun:"owner_id,notnull"`
	Duration     int       `bun:"duration,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	LastModified time.Time `bun:"last_modified,notnull"`
}

func (m quizModel) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:              m.ID,
		Title:           m.Title,
		OwnerID:         m.OwnerID,
		DurationMinutes: m.Duration,
		CreatedAt:       m.CreatedAt.UTC(),
		LastModified:    m.LastModified.UTC(),
	}
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID            int64  `bun:"id,pk,autoincrement"`
	QuizID        int64  `bun:"quiz_id,notnull"`
	QuestionText  string `bun:"question_text,notnull"`
	OptionA       string `bun:"option_a,notnull"`
	OptionB       string `bun:"option_b,notnull"`
	OptionC       string `bun:"option_c,notnull"`
	OptionD       string `bun:"option_d,notnull"`
	CorrectAnswer string `bun:"correct_answer,notnull"`
}

func questionFromDomain(q domain.Question) questionModel {
	return questionModel{
		ID:            q.ID,
		QuizID:        q.QuizID,
		QuestionText:  q.Text,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		CorrectAnswer: q.CorrectAnswer,
	}
}

func (m questionModel) toDomain() domain.Question {
	return domain.Question{
		ID:            m.ID,
		QuizID:        m.QuizID,
		Text:          m.QuestionText,
		OptionA:       m.OptionA,
		OptionB:       m.OptionB,
		OptionC:       m.OptionC,
		OptionD:       m.OptionD,
		CorrectAnswer: m.CorrectAnswer,
	}
}

type attemptModel struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID          int64      `bun:"id,pk,autoincrement"`
	QuizID      int64      `bun:"quiz_id,notnull"`
	UserID      int64      `bun:"user_id,notnull"`
	StartTime   time.Time  `bun:"start_time,notnull"`
	Completed   bool       `bun:"completed,notnull"`
	CompletedAt *time.Time `bun:"completed_time,nullzero"`
	Status      string     `bun:"status,notnull"`
}

func (m attemptModel) toDomain() domain.Attempt {
	a := domain.Attempt{
		ID:        m.ID,
		QuizID:    m.QuizID,
		UserID:    m.UserID,
		StartedAt: m.StartTime.UTC(),
		Completed: m.Completed,
		Status:    domain.AttemptStatus(m.Status),
	}
	if m.CompletedAt != nil {
		at := m.CompletedAt.UTC()
		a.CompletedAt = &at
	}
	return a
}

type resultModel struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID        int64     `bun:"id,pk,autoincrement"`
	QuizID    int64     `bun:"quiz_id,notnull"`
	UserID    int64     `bun:"user_id,notnull"`
	Score     int       `bun:"score,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (m resultModel) toDomain() domain.Result {
	return domain.Result{
		ID:        m.ID,
		QuizID:    m.QuizID,
		UserID:    m.UserID,
		Score:     m.Score,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type leaderboardRow struct {
	UserID      int64     `bun:"user_id"`
	Username    string    `bun:"username"`
	Score       int       `bun:"score"`
	SubmittedAt time.Time `bun:"submitted_at"`
}
