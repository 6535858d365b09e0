package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// schema as of this migration; later changes get their own migration
type user struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Username  string    `bun:"username,notnull,unique"`
	Password  string    `bun:"password,notnull"`
	Role      string    `bun:"role,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type quiz struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Title        string    `bun:"title,notnull"`
	OwnerID      int64     `bun:"owner_id,notnull"`
	Duration     int       `bun:"duration,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	LastModified time.Time `bun:"last_modified,notnull"`
}

type question struct {
	bun.BaseModel `bun:"table:questions"`

	ID            int64  `bun:"id,pk,autoincrement"`
	QuizID        int64  `bun:"quiz_id,notnull"`
	QuestionText  string `bun:"question_text,notnull"`
	OptionA       string `bun:"option_a,notnull"`
	OptionB       string `bun:"option_b,notnull"`
	OptionC       string `bun:"option_c,notnull"`
	OptionD       string `bun:"option_d,notnull"`
	CorrectAnswer string `bun:"correct_answer,notnull"`
}

type attempt struct {
	bun.BaseModel `bun:"table:attempts"`

	ID          int64      `bun:"id,pk,autoincrement"`
	QuizID      int64      `bun:"quiz_id,notnull"`
	UserID      int64      `bun:"user_id,notnull"`
	StartTime   time.Time  `bun:"start_time,notnull"`
	Completed   bool       `bun:"completed,notnull"`
	CompletedAt *time.Time `bun:"completed_time,nullzero"`
	Status      string     `bun:"status,notnull"`
}

type result struct {
	bun.BaseModel `bun:"table:results"`

	ID        int64     `bun:"id,pk,autoincrement"`
	QuizID    int64     `bun:"quiz_id,notnull"`
	UserID    int64     `bun:"user_id,notnull"`
	Score     int       `bun:"score,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func tables() []interface{} {
	return []interface{}{
		(*user)(nil),
		(*quiz)(nil),
		(*question)(nil),
		(*attempt)(nil),
		(*result)(nil),
	}
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, model := range tables() {
				if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
					return fmt.Errorf("create table: %w", err)
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			models := tables()
			for i := len(models) - 1; i >= 0; i-- {
				if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
					return fmt.Errorf("drop table: %w", err)
				}
			}
			return nil
		},
	)
}
