package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:"

// consumeScript checks and consumes a challenge in one step.
// KEYS[1] challenge hash; ARGV[1] code digest; ARGV[2] now (unix ms); ARGV[3] max attempts.
var consumeScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'code_hash', 'expires_at', 'consumed', 'attempts')
if not h[1] then
  return 'missing'
end
if h[3] == '1' then
  return 'consumed'
end
if tonumber(ARGV[2]) >= tonumber(h[2]) then
  return 'expired'
end
if (tonumber(h[4]) or 0) >= tonumber(ARGV[3]) then
  return 'exhausted'
end
if h[1] ~= ARGV[1] then
  redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  return 'mismatch'
end
redis.call('HSET', KEYS[1], 'consumed', '1')
return 'ok'
`)

// RedisStore keeps one hash per booking. Keys outlive the code by a
// retention window so late attempts report "expired" instead of "unknown".
type RedisStore struct {
	rdb         redis.Cmdable
	maxAttempts int
	retention   time.Duration
}

func NewRedisStore(rdb redis.Cmdable, maxAttempts int, retention time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, maxAttempts: maxAttempts, retention: retention}
}

func challengeKey(bookingID string) string {
	return keyPrefix + bookingID
}

func (s *RedisStore) Create(ctx context.Context, c Challenge) error {
	key := challengeKey(c.BookingID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"code_hash", c.CodeHash,
			"email", c.Email,
			"expires_at", c.ExpiresAt.UnixMilli(),
			"attempts", 0,
			"consumed", 0,
		)
		pipe.ExpireAt(ctx, key, c.ExpiresAt.Add(s.retention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, bookingID, codeHash string, now time.Time) error {
	res, err := consumeScript.Run(ctx, s.rdb, []string{challengeKey(bookingID)}, codeHash, now.UnixMilli(), s.maxAttempts).Text()
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}

	switch res {
	case "ok":
		return nil
	case "missing", "expired":
		return ErrExpired
	case "consumed":
		return ErrConsumed
	case "exhausted":
		return ErrExhausted
	case "mismatch":
		return ErrInvalid
	default:
		return fmt.Errorf("consume challenge: unexpected script result %q", res)
	}
}

func (s *RedisStore) Invalidate(ctx context.Context, bookingID string) error {
	if err := s.rdb.Del(ctx, challengeKey(bookingID)).Err(); err != nil {
		return fmt.Errorf("invalidate challenge: %w", err)
	}
	return nil
}
