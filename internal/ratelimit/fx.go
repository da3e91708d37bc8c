package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/smallbiznis/railbook/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg   config.Config
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

func New(p Params) Limiter {
	if p.Redis != nil {
		return NewTokenBucket(p.Redis, p.Cfg.RateLimitPerMinute)
	}
	return NewLocal(p.Cfg.RateLimitPerMinute, p.Clock)
}
