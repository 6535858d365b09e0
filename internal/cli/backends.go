package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/postgres"
	redisinfra "timed-quiz-service/internal/infra/redis"
	"timed-quiz-service/internal/infra/sqlstore"
)

// backends holds the storage, locking and caching chosen by config.
type backends struct {
	store   app.Store
	locker  app.Locker
	cache   app.LeaderboardCache
	closers []func() error
}

func (b *backends) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openBackends wires the store for the configured driver, runs migrations
// for SQL drivers, and picks the locker and cache. Redis, when configured,
// provides both locking and caching; otherwise postgres advisory locks are
// used with the postgres driver and in-process ones elsewhere.
func openBackends(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*backends, error) {
	b := &backends{}
	fail := func(err error) (*backends, error) {
		_ = b.Close()
		return nil, err
	}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		b.store = memory.NewStore()
	default:
		db, err := sqlstore.Open(cfg.Database.Driver, databaseDSN(cfg))
		if err != nil {
			return fail(fmt.Errorf("open database: %w", err))
		}
		b.closers = append(b.closers, db.Close)
		if err := sqlstore.Migrate(ctx, db, logger); err != nil {
			return fail(err)
		}
		b.store = sqlstore.NewStore(db)
	}

	cacheTTL := config.TTLDuration(cfg.Leaderboard.CacheTTL, 30*time.Second)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("ping redis: %w", err))
		}
		b.locker = redisinfra.NewLocker(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Second), logger)
		b.cache = redisinfra.NewLeaderboardCache(client, cacheTTL)
		logger.WithField("addr", cfg.Redis.Addr).Info("using redis for locks and leaderboard cache")
		return b, nil
	}

	b.cache = memory.NewLeaderboardCache(cacheTTL)
	if cfg.Database.Driver == config.DriverPostgres {
		pool, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fail(err)
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		b.locker = postgres.NewLocker(pool, logger)
		return b, nil
	}
	b.locker = memory.NewLocker()
	return b, nil
}
