package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/learnpath/learnpath-lms/internal/domain/leaderboard"
	"github.com/learnpath/learnpath-lms/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Each board is one sorted set: member = user id, score = points.
// ══════════════════════════════════════════════════════════════════════════════

// incrIfCached bumps the board version, then increments a member only when
// the board already exists and refreshes its TTL. Returns nil when the board
// is not cached.
var incrIfCached = redis.NewScript(`
redis.call('INCR', KEYS[2])
redis.call('EXPIRE', KEYS[2], ARGV[4])
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
local score = redis.call('ZINCRBY', KEYS[1], ARGV[1], ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return score
`)

// fillIfUnchanged loads a board only when it is absent and its version is
// still ARGV[1]. ARGV[3:] are score, member pairs. Returns 1 when loaded.
var fillIfUnchanged = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
if tonumber(redis.call('GET', KEYS[2]) or '0') ~= tonumber(ARGV[1]) then
	return 0
end
for i = 3, #ARGV, 2 do
	redis.call('ZADD', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// LeaderboardCache implements leaderboard.Cache with Redis sorted sets.
// Calls go through a circuit breaker; while it is open they fail with
// circuitbreaker.ErrOpen and callers fall back to the store.
type LeaderboardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{
		cache:   cache,
		breaker: circuitbreaker.New("redis.leaderboard", circuitbreaker.DefaultConfig()),
	}
}

// BreakerState reports the state of the cache circuit breaker.
func (l *LeaderboardCache) BreakerState() circuitbreaker.State {
	return l.breaker.State()
}

func (l *LeaderboardCache) key(scope leaderboard.Scope) string {
	return l.cache.Key("leaderboard", scope.Key())
}

// versionKey outlives the board so a fill never sees a reset counter.
func (l *LeaderboardCache) versionKey(scope leaderboard.Scope) string {
	return l.cache.Key("leaderboard_version", scope.Key())
}

// IncrBy adds delta to the user's score when the board is cached.
func (l *LeaderboardCache) IncrBy(ctx context.Context, scope leaderboard.Scope, userID string, delta leaderboard.Points) (leaderboard.Points, bool, error) {
	ttl := int(TTLLeaderboard.Seconds())
	keys := []string{l.key(scope), l.versionKey(scope)}
	res, err := circuitbreaker.Do(ctx, l.breaker, func(ctx context.Context) (string, error) {
		res, err := incrIfCached.Run(ctx, l.cache.client, keys, int(delta), userID, ttl, 2*ttl).Text()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return res, err
	})
	if err != nil {
		return 0, false, fmt.Errorf("leaderboard cache: incr: %w", err)
	}
	if res == "" {
		return 0, false, nil
	}
	score, err := strconv.ParseFloat(res, 64)
	if err != nil {
		return 0, false, fmt.Errorf("leaderboard cache: bad score %q: %w", res, err)
	}
	return leaderboard.Points(score), true, nil
}

// Top returns the highest scores of a board ranked with shared ranks.
func (l *LeaderboardCache) Top(ctx context.Context, scope leaderboard.Scope, limit int) ([]*leaderboard.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	zs, err := circuitbreaker.Do(ctx, l.breaker, func(ctx context.Context) ([]redis.Z, error) {
		return l.cache.client.ZRevRangeWithScores(ctx, l.key(scope), 0, int64(limit-1)).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard cache: top: %w", err)
	}
	return rankMembers(zs, limit), nil
}

// Replace overwrites a board atomically.
func (l *LeaderboardCache) Replace(ctx context.Context, scope leaderboard.Scope, entries []*leaderboard.Entry) error {
	key := l.key(scope)
	members := toMembers(entries)

	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := l.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(members) > 0 {
				pipe.ZAdd(ctx, key, members...)
				pipe.Expire(ctx, key, TTLLeaderboard)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("leaderboard cache: replace: %w", err)
	}
	return nil
}

// Version returns the board's write counter, 0 when none was recorded.
func (l *LeaderboardCache) Version(ctx context.Context, scope leaderboard.Scope) (int64, error) {
	v, err := circuitbreaker.Do(ctx, l.breaker, func(ctx context.Context) (int64, error) {
		v, err := l.cache.client.Get(ctx, l.versionKey(scope)).Int64()
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return v, err
	})
	if err != nil {
		return 0, fmt.Errorf("leaderboard cache: version: %w", err)
	}
	return v, nil
}

// Fill loads a board read from the store unless the board was cached or
// written to since version was read.
func (l *LeaderboardCache) Fill(ctx context.Context, scope leaderboard.Scope, entries []*leaderboard.Entry, version int64) (bool, error) {
	keys := []string{l.key(scope), l.versionKey(scope)}
	args := fillArgs(entries, version, int(TTLLeaderboard.Seconds()))
	loaded, err := circuitbreaker.Do(ctx, l.breaker, func(ctx context.Context) (int64, error) {
		return fillIfUnchanged.Run(ctx, l.cache.client, keys, args...).Int64()
	})
	if err != nil {
		return false, fmt.Errorf("leaderboard cache: fill: %w", err)
	}
	return loaded == 1, nil
}

func fillArgs(entries []*leaderboard.Entry, version int64, ttl int) []any {
	members := toMembers(entries)
	args := make([]any, 0, 2+2*len(members))
	args = append(args, version, ttl)
	for _, m := range members {
		args = append(args, m.Score, m.Member)
	}
	return args
}

// Invalidate drops a board.
func (l *LeaderboardCache) Invalidate(ctx context.Context, scope leaderboard.Scope) error {
	return l.cache.Delete(ctx, l.key(scope))
}

// InvalidateAll drops every cached board.
func (l *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	return l.cache.DeletePattern(ctx, l.cache.Key("leaderboard", "*"))
}

func toMembers(entries []*leaderboard.Entry) []redis.Z {
	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		members = append(members, redis.Z{Score: float64(e.Points), Member: e.UserID})
	}
	return members
}

// rankMembers converts sorted-set members into ranked entries. Members with
// equal scores are ordered by user id, as the store orders them.
func rankMembers(zs []redis.Z, limit int) []*leaderboard.Entry {
	r := leaderboard.NewRanking()
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		_ = r.Add(&leaderboard.Entry{UserID: member, Points: leaderboard.Points(z.Score)})
	}
	r.Sort()
	return r.Top(limit)
}
