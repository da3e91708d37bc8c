package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/railbook/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrLockTimeout = errors.New("lock_timeout")

const keyPrefix = "railbook:lock:%s"

var Module = fx.Module("lock",
	fx.Provide(New),
)

// KeyLocker grants exclusive access per correlation key.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Keyed always takes the in-process lock and, when redis is configured,
// the shared lock as well. Waiting is bounded by the policy lock_wait.
type Keyed struct {
	local  *Local
	remote *Redis
	policy *config.PolicyHolder
	log    *zap.Logger
}

type Params struct {
	fx.In

	Redis  *redis.Client `optional:"true"`
	Policy *config.PolicyHolder
	Log    *zap.Logger
}

func New(p Params) KeyLocker {
	k := &Keyed{
		local:  NewLocal(),
		policy: p.Policy,
		log:    p.Log.Named("lock"),
	}
	if p.Redis != nil {
		k.remote = NewRedis(p.Redis)
	}
	return k
}

func NewKeyed(local *Local, remote *Redis, policy *config.PolicyHolder, log *zap.Logger) *Keyed {
	if log == nil {
		log = zap.NewNop()
	}
	return &Keyed{local: local, remote: remote, policy: policy, log: log}
}

func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	policy := k.policy.Get()
	waitCtx := ctx
	if policy.LockWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, policy.LockWait)
		defer cancel()
	}

	unlockLocal, err := k.local.Lock(waitCtx, key)
	if err != nil {
		return nil, k.waitError(ctx, key, err)
	}
	if k.remote == nil {
		return unlockLocal, nil
	}

	redisKey := fmt.Sprintf(keyPrefix, key)
	token, err := k.remote.Acquire(waitCtx, redisKey, policy.LockTTL)
	if err != nil {
		unlockLocal()
		return nil, k.waitError(ctx, key, err)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := k.remote.Release(releaseCtx, redisKey, token); err != nil {
			k.log.Warn("redis lock release failed", zap.String("key", key), zap.Error(err))
		}
		unlockLocal()
	}, nil
}

func (k *Keyed) waitError(parent context.Context, key string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
	return err
}
