package events

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewHub),
	fx.Provide(NewDispatcher),
)

type DispatcherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Hub       *Hub
	Redis     *redis.Client `optional:"true"`
	Log       *zap.Logger
}

func NewDispatcher(p DispatcherParams) Dispatcher {
	if p.Redis == nil {
		return p.Hub
	}

	bridge := NewRedisBridge(p.Hub, p.Redis, p.Log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				bridge.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
	return bridge
}
