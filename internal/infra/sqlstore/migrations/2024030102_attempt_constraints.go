package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			// one result per (quiz, user)
			if _, err := db.NewCreateIndex().
				Model((*result)(nil)).
				Index("results_quiz_user_uniq").
				Unique().
				IfNotExists().
				Column("quiz_id", "user_id").
				Exec(ctx); err != nil {
				return fmt.Errorf("create results index: %w", err)
			}
			// at most one open attempt per (quiz, user)
			if _, err := db.NewCreateIndex().
				Model((*attempt)(nil)).
				Index("attempts_open_uniq").
				Unique().
				IfNotExists().
				Column("quiz_id", "user_id").
				Where("status = 'open'").
				Exec(ctx); err != nil {
				return fmt.Errorf("create attempts index: %w", err)
			}
			if _, err := db.NewCreateIndex().
				Model((*question)(nil)).
				Index("questions_quiz_idx").
				IfNotExists().
				Column("quiz_id").
				Exec(ctx); err != nil {
				return fmt.Errorf("create questions index: %w", err)
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, name := range []string{"questions_quiz_idx", "attempts_open_uniq", "results_quiz_user_uniq"} {
				if _, err := db.NewDropIndex().Index(name).IfExists().Exec(ctx); err != nil {
					return fmt.Errorf("drop index %s: %w", name, err)
				}
			}
			return nil
		},
	)
}
