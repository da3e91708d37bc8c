package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), ts}
`

const keyPrefix = "railbook:ratelimit:%s"

// TokenBucket is a token bucket stored in redis so every replica shares one budget.
type TokenBucket struct {
	client    redis.Scripter
	script    *redis.Script
	perMinute int
}

func NewTokenBucket(client redis.Scripter, perMinute int) *TokenBucket {
	if client == nil {
		return nil
	}
	if perMinute <= 0 {
		perMinute = 60
	}
	return &TokenBucket{
		client:    client,
		script:    redis.NewScript(tokenBucketScript),
		perMinute: perMinute,
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string) (Result, error) {
	if t == nil || t.client == nil {
		return Result{}, errors.New("rate limiter not configured")
	}
	if key == "" {
		return Result{}, errors.New("rate limiter key is empty")
	}

	perSecond := float64(t.perMinute) / 60
	ttl := bucketTTL(perSecond, t.perMinute)
	res, err := t.script.Run(
		ctx,
		t.client,
		[]string{fmt.Sprintf(keyPrefix, key)},
		perSecond,
		t.perMinute,
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 3 {
		return Result{}, errors.New("invalid rate limit script response")
	}

	allowed := toInt(res[0]) == 1
	tokens := toFloat(res[1])

	out := Result{
		Allowed:   allowed,
		Limit:     t.perMinute,
		Remaining: max(int(tokens), 0),
	}
	if missing := float64(t.perMinute) - tokens; missing > 0 {
		out.Reset = time.Duration(missing / perSecond * float64(time.Second))
	}
	if !allowed {
		out.RetryAfter = time.Duration((1 - tokens) / perSecond * float64(time.Second))
	}
	return out, nil
}

// bucketTTL keeps a key around for twice the time a full refill takes.
func bucketTTL(perSecond float64, burst int) time.Duration {
	if perSecond <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil(float64(burst)/perSecond) * 2
	return time.Duration(seconds) * time.Second
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case string:
		parsed, _ := strconv.ParseFloat(n, 64)
		return parsed
	case float64:
		return n
	default:
		return 0
	}
}
