package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
)

// Locker implements app.Locker with Postgres session advisory locks. Each held
// lock pins one pooled connection until it is released.
type Locker struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

func NewLocker(pool *pgxpool.Pool, logger logrus.FieldLogger) *Locker {
	return &Locker{pool: pool, log: logger}
}

// Lock blocks until the advisory lock for key is granted or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
			// a session lock outlives a failed unlock, so drop the connection
			l.log.WithError(err).WithField("key", key).Warn("advisory unlock failed")
			_ = conn.Conn().Close(unlockCtx)
		}
		conn.Release()
	}, nil
}

// Connect opens a pgx pool for the advisory locker.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
