package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// LeaderboardCache keeps leaderboards in process with a TTL. Invalidate bumps
// a per-quiz version so a load racing with a new result cannot repopulate the
// cache with the old ranking.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu       sync.Mutex
	versions map[int64]uint64
	cache    map[int64]cachedLeaderboard
}

type cachedLeaderboard struct {
	lb        domain.Leaderboard
	version   uint64
	expiresAt time.Time
}

func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return NewLeaderboardCacheWithClock(ttl, time.Now)
}

// NewLeaderboardCacheWithClock is used by tests to control expiry.
func NewLeaderboardCacheWithClock(ttl time.Duration, clock func() time.Time) *LeaderboardCache {
	return &LeaderboardCache{
		ttl:      ttl,
		clock:    clock,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		versions: make(map[int64]uint64),
		cache:    make(map[int64]cachedLeaderboard),
	}
}

func (c *LeaderboardCache) Get(ctx context.Context, quizID int64, load app.LeaderboardLoader) (domain.Leaderboard, error) {
	if lb, ok := c.lookup(quizID); ok {
		return lb, nil
	}

	c.mu.Lock()
	version := c.versions[quizID]
	c.mu.Unlock()

	key := sfKey(quizID, version)
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if lb, ok := c.lookup(quizID); ok {
			return lb, nil
		}
		lb, err := load(ctx)
		if err != nil {
			return domain.Leaderboard{}, err
		}

		c.mu.Lock()
		if c.versions[quizID] == version && c.ttl > 0 {
			c.cache[quizID] = cachedLeaderboard{
				lb:        lb,
				version:   version,
				expiresAt: c.clock().Add(c.ttlWithJitterLocked()),
			}
		}
		c.mu.Unlock()
		return lb, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

func (c *LeaderboardCache) Invalidate(_ context.Context, quizID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[quizID]++
	delete(c.cache, quizID)
	return nil
}

func (c *LeaderboardCache) lookup(quizID int64) (domain.Leaderboard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[quizID]
	if !ok || entry.version != c.versions[quizID] || !entry.expiresAt.After(c.clock()) {
		return domain.Leaderboard{}, false
	}
	return entry.lb, true
}

func (c *LeaderboardCache) ttlWithJitterLocked() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func sfKey(quizID int64, version uint64) string {
	return "lb:" + strconv.FormatInt(quizID, 10) + ":" + strconv.FormatUint(version, 10)
}
