package webhook

import (
	"context"

	bookingdomain "github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeInert         Outcome = "inert"
	OutcomeOrderSynced   Outcome = "order_synced"
	OutcomePaymentSynced Outcome = "payment_synced"
)

// Result describes the single store mutation a reconciliation made.
type Result struct {
	// EventType is set by Ingest for every parsed delivery, failed or not.
	EventType      string  `json:"eventType,omitempty"`
	Outcome        Outcome `json:"outcome"`
	Strategy       string  `json:"strategy,omitempty"`
	CorrelationKey string  `json:"correlationKey,omitempty"`
	BookingID      string  `json:"bookingId,omitempty"`
	OrderStatus    string  `json:"orderStatus,omitempty"`
	PaymentStatus  string  `json:"paymentStatus,omitempty"`
	// WriteBackSkipped is true when the order was already COMPLETED remotely.
	WriteBackSkipped bool `json:"writeBackSkipped,omitempty"`
}

// Reconciler applies a payment.updated event to the booking record store.
// Callers serialize on the correlation key.
type Reconciler struct {
	db      *gorm.DB
	repo    bookingdomain.Repository
	gateway commerce.Gateway
	log     *zap.Logger
}

func NewReconciler(db *gorm.DB, repo bookingdomain.Repository, gateway commerce.Gateway, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{db: db, repo: repo, gateway: gateway, log: log.Named("webhook.reconciler")}
}

func (r *Reconciler) Reconcile(ctx context.Context, event PaymentUpdated, strategy string) (Result, error) {
	key := event.PaymentLinkID
	if key == "" {
		return Result{}, ErrInvalidCorrelation
	}
	switch strategy {
	case config.StrategyOrderStateSync, config.StrategyPaymentStatusSync:
	default:
		return Result{}, ErrUnsupportedStrategy
	}
	if strategy == config.StrategyPaymentStatusSync && event.PaymentID == "" {
		return Result{}, ErrPaymentIDRequired
	}
	log := logger.WithContext(ctx, r.log).With(zap.String("strategy", strategy))

	record, err := r.repo.FindOne(ctx, r.db, bookingdomain.Filter{PaymentLinkID: key})
	if err != nil {
		return Result{}, &ReconcileError{Kind: FailureStore, CorrelationKey: key, Stage: "find_record", Err: err}
	}
	if record == nil {
		return Result{}, &ReconcileError{Kind: FailureNotFound, CorrelationKey: key, Stage: "find_record", Err: ErrNotFound}
	}

	result := Result{Strategy: strategy, CorrelationKey: key, BookingID: record.BookingID}

	// A record without an order can still be synced from its payment.
	var order *commerce.Order
	switch {
	case record.OrderID != "":
		order, err = r.completeOrder(ctx, log, key, record.OrderID, &result)
		if err != nil {
			return Result{}, err
		}
	case strategy == config.StrategyOrderStateSync:
		return Result{}, &ReconcileError{Kind: FailureNotFound, CorrelationKey: key, Stage: "find_record", Err: ErrNotFound}
	default:
		result.WriteBackSkipped = true
	}

	var fields bookingdomain.Fields
	switch strategy {
	case config.StrategyOrderStateSync:
		state := order.State
		fields.OrderStatus = &state
		result.Outcome = OutcomeOrderSynced
		result.OrderStatus = state
	case config.StrategyPaymentStatusSync:
		payment, err := r.gateway.GetPayment(ctx, event.PaymentID)
		if err != nil {
			return Result{}, &ReconcileError{Kind: FailureGateway, CorrelationKey: key, Stage: "get_payment", Err: err}
		}
		status := payment.Status
		fields.PaymentStatus = &status
		result.Outcome = OutcomePaymentSynced
		result.PaymentStatus = status
	}

	if err := r.repo.UpdateFields(ctx, r.db, record.ID, fields); err != nil {
		return Result{}, &ReconcileError{Kind: FailureStore, CorrelationKey: key, Stage: "persist", Err: err}
	}

	log.Info("booking record reconciled",
		zap.String("booking_id", record.BookingID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("order_status", result.OrderStatus),
		zap.String("payment_status", result.PaymentStatus),
	)
	return result, nil
}

func (r *Reconciler) completeOrder(ctx context.Context, log *zap.Logger, key, orderID string, result *Result) (*commerce.Order, error) {
	order, err := r.gateway.RetrieveOrder(ctx, orderID)
	if err != nil {
		return nil, &ReconcileError{Kind: FailureGateway, CorrelationKey: key, Stage: "retrieve_order", Err: err}
	}
	if !order.Complete() {
		result.WriteBackSkipped = true
		log.Info("order already completed, skipping write-back", zap.String("order_id", order.ID))
		return order, nil
	}
	order, err = r.gateway.UpdateOrder(ctx, *order)
	if err != nil {
		return nil, &ReconcileError{Kind: FailureGateway, CorrelationKey: key, Stage: "update_order", Err: err}
	}
	return order, nil
}
