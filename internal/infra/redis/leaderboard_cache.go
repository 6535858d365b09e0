package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// LeaderboardCache stores leaderboard snapshots in Redis so every instance
// sees the same ranking.
// Version counter: INCR quiz:{quizID}:lbver on every new result
// Snapshot:        SET  quiz:{quizID}:leaderboard:{version} <json> PX ttl
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Get(ctx context.Context, quizID int64, load app.LeaderboardLoader) (domain.Leaderboard, error) {
	version, err := c.version(ctx, quizID)
	if err != nil {
		// cache outage: serve straight from the ledger
		return load(ctx)
	}
	key := c.snapshotKey(quizID, version)
	if lb, ok := c.lookup(ctx, key); ok {
		return lb, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if lb, ok := c.lookup(ctx, key); ok {
			return lb, nil
		}
		lb, err := load(ctx)
		if err != nil {
			return domain.Leaderboard{}, err
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			if raw, err := json.Marshal(lb); err == nil {
				_ = c.client.Set(ctx, key, raw, ttl).Err()
			}
		}
		return lb, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// Invalidate moves readers to a new version; old snapshots age out on their TTL.
func (c *LeaderboardCache) Invalidate(ctx context.Context, quizID int64) error {
	if err := c.client.Incr(ctx, c.versionKey(quizID)).Err(); err != nil {
		return fmt.Errorf("bump leaderboard version: %w", err)
	}
	return nil
}

func (c *LeaderboardCache) version(ctx context.Context, quizID int64) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(quizID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *LeaderboardCache) lookup(ctx context.Context, key string) (domain.Leaderboard, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Leaderboard{}, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false
	}
	return lb, true
}

func (c *LeaderboardCache) versionKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":lbver"
}

func (c *LeaderboardCache) snapshotKey(quizID, version int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":leaderboard:" + strconv.FormatInt(version, 10)
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
