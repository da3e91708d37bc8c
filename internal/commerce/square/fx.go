package square

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/smallbiznis/railbook/internal/config"
	obsmetrics "github.com/smallbiznis/railbook/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("commerce.square",
	fx.Provide(NewFromConfig),
	fx.Provide(func(c *Client) commerce.Gateway { return c }),
	fx.Provide(NewLocationHolder),
)

var ErrConfiguration = errors.New("gateway_configuration_failed")

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewFromConfig(p Params) *Client {
	return NewClient(Config{
		Environment:  p.Cfg.Square.Environment,
		AccessToken:  p.Cfg.Square.AccessToken,
		APIVersion:   p.Cfg.Square.APIVersion,
		LocationID:   p.Cfg.Square.LocationID,
		BaseURL:      p.Cfg.Square.BaseURLOverride,
		Timeout:      p.Cfg.Square.Timeout,
		ReadAttempts: p.Cfg.Square.ReadAttempts,
	}, WithLogger(p.Log), WithMetrics(p.Metrics))
}

// LocationHolder carries the configured location, fetched once at startup.
type LocationHolder struct {
	current atomic.Pointer[commerce.Location]
}

func (h *LocationHolder) Get() *commerce.Location {
	if h == nil {
		return nil
	}
	return h.current.Load()
}

func (h *LocationHolder) Set(location *commerce.Location) {
	h.current.Store(location)
}

// NewLocationHolder fails application start when the configured location
// cannot be retrieved, so bad credentials surface before traffic arrives.
func NewLocationHolder(lc fx.Lifecycle, client *Client, log *zap.Logger) *LocationHolder {
	holder := &LocationHolder{}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			location, err := client.RetrieveLocation(ctx, client.LocationID())
			if err != nil {
				if gwErr, ok := commerce.AsGatewayError(err); ok && gwErr.Kind() == commerce.KindUnauthorized {
					return fmt.Errorf("%w: verify SQUARE_ACCESS_TOKEN and SQUARE_ENVIRONMENT in .env: %v", ErrConfiguration, err)
				}
				return fmt.Errorf("retrieve location %s: %w", client.LocationID(), err)
			}
			holder.Set(location)
			log.Info("location loaded", zap.String("location_id", location.ID), zap.String("name", location.Name))
			return nil
		},
	})
	return holder
}
