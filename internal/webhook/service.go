package webhook

import (
	"context"
	"errors"
	"time"

	bookingdomain "github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/events"
	"github.com/smallbiznis/railbook/internal/lock"
	obscontext "github.com/smallbiznis/railbook/internal/observability/context"
	"github.com/smallbiznis/railbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/railbook/internal/observability/metrics"
	"github.com/smallbiznis/railbook/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("webhook",
	fx.Provide(NewService),
	fx.Provide(func(s *Service) Ingester { return s }),
)

// Delivery is one inbound webhook request as received.
type Delivery struct {
	Host      string
	Signature string
	RawBody   []byte
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Policy     *config.PolicyHolder
	Repo       bookingdomain.Repository
	Gateway    commerce.Gateway
	Dispatcher events.Dispatcher
	Locker     lock.KeyLocker
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	signatureKey string
	mountPath    string
	policy       *config.PolicyHolder
	reconciler   *Reconciler
	dispatcher   events.Dispatcher
	locker       lock.KeyLocker
	clock        clock.Clock
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		log:          p.Log.Named("webhook.service"),
		signatureKey: p.Cfg.Square.SignatureKey,
		mountPath:    p.Cfg.WebhookPath,
		policy:       p.Policy,
		reconciler:   NewReconciler(p.DB, p.Repo, p.Gateway, p.Log),
		dispatcher:   p.Dispatcher,
		locker:       p.Locker,
		clock:        c,
		obsMetrics:   p.ObsMetrics,
	}
}

// Ingest runs verify, reconcile, dispatch for one delivery. Once the signature
// is accepted the event is dispatched exactly once, even when reconciliation fails.
func (s *Service) Ingest(ctx context.Context, d Delivery) (result Result, err error) {
	ctx, deliveryID := obscontext.EnsureDeliveryID(ctx)

	if !Verify(s.signatureKey, NotificationURL(d.Host, s.mountPath), d.Signature, d.RawBody) {
		s.obsMetrics.RecordSignatureRejected(ctx)
		logger.WithContext(ctx, s.log).Warn("webhook signature mismatch", zap.String("host", d.Host))
		return Result{}, ErrSignatureMismatch
	}

	env, err := Parse(d.RawBody)
	if err != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, "unknown", "invalid")
		return Result{}, err
	}

	ctx = obscontext.WithCorrelationKey(ctx, env.CorrelationKey())
	ctx, end := tracing.Start(ctx, "webhook.ingest",
		attribute.String("event_type", env.EventType()),
		attribute.String("delivery_id", deliveryID),
	)
	defer func() { end(err) }()

	switch e := env.(type) {
	case PaymentUpdated:
		result, err = s.reconcileLocked(ctx, e)
	default:
		result = Result{Outcome: OutcomeInert, CorrelationKey: env.CorrelationKey()}
	}

	result.EventType = env.EventType()
	s.dispatch(ctx, env, deliveryID)

	outcome := string(result.Outcome)
	if err != nil {
		outcome = failureLabel(err)
		logger.WithContext(ctx, s.log).Error("webhook reconciliation failed",
			zap.String("event_type", env.EventType()),
			zap.Error(err),
		)
	}
	s.obsMetrics.RecordWebhookEvent(ctx, env.EventType(), outcome)
	return result, err
}

// Reconcile re-runs reconciliation for a payment link outside a webhook delivery.
// Nothing is dispatched.
func (s *Service) Reconcile(ctx context.Context, paymentLinkID, paymentID string) (Result, error) {
	if paymentLinkID == "" {
		return Result{}, ErrInvalidCorrelation
	}
	ctx = obscontext.WithCorrelationKey(ctx, paymentLinkID)
	return s.reconcileLocked(ctx, PaymentUpdated{PaymentLinkID: paymentLinkID, PaymentID: paymentID})
}

func (s *Service) reconcileLocked(ctx context.Context, event PaymentUpdated) (Result, error) {
	strategy := s.policy.Get().Strategy

	unlock, err := s.locker.Lock(ctx, event.CorrelationKey())
	if err != nil {
		s.obsMetrics.RecordReconciliation(ctx, strategy, "lock_failed")
		return Result{}, err
	}
	defer unlock()

	result, err := s.reconciler.Reconcile(ctx, event, strategy)
	if err != nil {
		s.obsMetrics.RecordReconciliation(ctx, strategy, failureLabel(err))
		return Result{}, err
	}
	s.obsMetrics.RecordReconciliation(ctx, strategy, string(result.Outcome))
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, env Envelope, deliveryID string) {
	delivered := s.dispatcher.Publish(ctx, events.Event{
		Type:       env.EventType(),
		DeliveryID: deliveryID,
		ReceivedAt: s.clock.Now().UTC().Truncate(time.Millisecond),
		Payload:    env.Raw(),
	})
	s.obsMetrics.RecordDispatch(ctx, env.EventType(), delivered)
}

func failureLabel(err error) string {
	if rErr, ok := AsReconcileError(err); ok {
		return string(rErr.Kind)
	}
	switch {
	case errors.Is(err, lock.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// Ingester is the webhook surface the HTTP layer depends on.
type Ingester interface {
	Ingest(ctx context.Context, d Delivery) (Result, error)
	Reconcile(ctx context.Context, paymentLinkID, paymentID string) (Result, error)
}

var _ Ingester = (*Service)(nil)
