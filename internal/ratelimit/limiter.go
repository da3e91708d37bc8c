package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/railbook/internal/clock"
	"golang.org/x/time/rate"
)

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Duration
	RetryAfter time.Duration
}

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

const idleTTL = 10 * time.Minute

// Local keeps one token bucket per key in memory.
type Local struct {
	mu        sync.Mutex
	perMinute int
	limit     rate.Limit
	clock     clock.Clock
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocal(perMinute int, c clock.Clock) *Local {
	if perMinute <= 0 {
		perMinute = 60
	}
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Local{
		perMinute: perMinute,
		limit:     rate.Limit(float64(perMinute) / 60),
		clock:     c,
		buckets:   make(map[string]*bucket),
		lastSweep: c.Now(),
	}
}

func (l *Local) Allow(_ context.Context, key string) (Result, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b := l.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.perMinute)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	return l.result(allowed, tokens), nil
}

func (l *Local) result(allowed bool, tokens float64) Result {
	perSecond := float64(l.limit)
	res := Result{
		Allowed:   allowed,
		Limit:     l.perMinute,
		Remaining: max(int(tokens), 0),
	}
	if missing := float64(l.perMinute) - tokens; missing > 0 {
		res.Reset = time.Duration(missing / perSecond * float64(time.Second))
	}
	if !allowed {
		res.RetryAfter = time.Duration((1 - tokens) / perSecond * float64(time.Second))
	}
	return res
}
