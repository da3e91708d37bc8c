package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	bookingdomain "github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/smallbiznis/railbook/internal/booking/repository"
	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/smallbiznis/railbook/internal/commerce/fake"
	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/events"
	"github.com/smallbiznis/railbook/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return 1
}

func (d *recordingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event(nil), d.events...)
}

type fixture struct {
	db         *gorm.DB
	repo       bookingdomain.Repository
	gateway    *fake.Gateway
	dispatcher *recordingDispatcher
	svc        *Service
	record     bookingdomain.Record
}

func newFixture(t *testing.T, strategy string) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&bookingdomain.Record{}))

	gw := fake.New()
	gw.Orders["ORD1"] = &commerce.Order{
		ID:         "ORD1",
		LocationID: gw.Location.ID,
		Version:    3,
		State:      commerce.OrderStateOpen,
		Fulfillments: []commerce.Fulfillment{
			{UID: "F1", State: "PROPOSED"},
			{UID: "F2", State: "RESERVED"},
		},
	}
	gw.Payments["PAY1"] = &commerce.Payment{ID: "PAY1", Status: "COMPLETED", OrderID: "ORD1"}

	node, _ := snowflake.NewNode(1)
	repo := repository.Provide()
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	record := bookingdomain.Record{
		ID:            node.Generate(),
		Email:         "ada@example.com",
		CustomerID:    "C1",
		BookingID:     "BK1",
		OrderID:       "ORD1",
		PaymentLinkID: "PL123",
		PaymentStatus: bookingdomain.PaymentStatusPending,
		Status:        bookingdomain.StatusAccepted,
		RawBooking:    `{"id":"BK1"}`,
		ServiceNames:  []string{"Cut"},
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, repo.Create(context.Background(), db, &record))

	policy := config.DefaultReconciliationPolicy()
	policy.Strategy = strategy
	holder := config.NewPolicyHolder(policy)
	dispatcher := &recordingDispatcher{}

	svc := NewService(Params{
		DB:  db,
		Log: zap.NewNop(),
		Cfg: config.Config{
			Square:      config.SquareConfig{SignatureKey: testKey},
			WebhookPath: "/events",
		},
		Policy:     holder,
		Repo:       repo,
		Gateway:    gw,
		Dispatcher: dispatcher,
		Locker:     lock.NewKeyed(lock.NewLocal(), nil, holder, nil),
		Clock:      clock.NewFakeClock(created),
	})
	return &fixture{db: db, repo: repo, gateway: gw, dispatcher: dispatcher, svc: svc, record: record}
}

func (f *fixture) deliver(body string) (Result, error) {
	return f.svc.Ingest(context.Background(), Delivery{
		Host:      "h",
		Signature: Sign(testKey, testURL, []byte(body)),
		RawBody:   []byte(body),
	})
}

func (f *fixture) reload(t *testing.T) bookingdomain.Record {
	t.Helper()
	got, err := f.repo.FindOne(context.Background(), f.db, bookingdomain.Filter{ID: f.record.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
	return *got
}

func (f *fixture) assertUntouched(t *testing.T) {
	t.Helper()
	got := f.reload(t)
	assert.Equal(t, f.record.OrderStatus, got.OrderStatus)
	assert.Equal(t, f.record.PaymentStatus, got.PaymentStatus)
	assert.Equal(t, f.record.Status, got.Status)
	assert.True(t, f.record.UpdatedAt.Equal(got.UpdatedAt))
}

func TestIngestEndToEndKnownSignature(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)

	result, err := f.svc.Ingest(context.Background(), Delivery{Host: "h", Signature: testSig, RawBody: []byte(testBody)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOrderSynced, result.Outcome)
	assert.Equal(t, commerce.OrderStateCompleted, f.reload(t).OrderStatus)

	published := f.dispatcher.published()
	require.Len(t, published, 1)
	assert.Equal(t, EventPaymentUpdated, published[0].Type)
	assert.Equal(t, testBody, string(published[0].Payload))
	assert.NotEmpty(t, published[0].DeliveryID)
}

func TestIngestSignatureMismatch(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)

	_, err := f.svc.Ingest(context.Background(), Delivery{Host: "h", Signature: testSig, RawBody: []byte(testBody + " ")})
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Empty(t, f.dispatcher.published())
	assert.Equal(t, 0, f.gateway.CallCount("orders.retrieve"))
	f.assertUntouched(t)
}

func TestIngestOtherEventsOnlyDispatch(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)
	body := `{"type":"booking.updated","id":"PL123","data":{"version":9007199254740993}}`

	result, err := f.deliver(body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInert, result.Outcome)
	assert.Equal(t, "booking.updated", result.EventType)

	published := f.dispatcher.published()
	require.Len(t, published, 1)
	assert.Equal(t, "booking.updated", published[0].Type)
	assert.Equal(t, body, string(published[0].Payload))
	assert.Equal(t, 0, f.gateway.CallCount("orders.retrieve"))
	f.assertUntouched(t)
}

func TestIngestUnknownPaymentLinkIsNotFound(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)

	result, err := f.deliver(`{"type":"payment.updated","id":"PL-unknown"}`)
	assert.Equal(t, EventPaymentUpdated, result.EventType)
	rErr, ok := AsReconcileError(err)
	require.True(t, ok)
	assert.Equal(t, FailureNotFound, rErr.Kind)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, f.dispatcher.published(), 1)
	assert.Equal(t, 0, f.gateway.CallCount("orders.update"))
	f.assertUntouched(t)
}

func TestIngestOrderStateSyncWritesBackOnce(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)

	result, err := f.deliver(testBody)
	require.NoError(t, err)
	assert.False(t, result.WriteBackSkipped)

	order := f.gateway.Orders["ORD1"]
	assert.Equal(t, commerce.OrderStateCompleted, order.State)
	assert.Equal(t, int64(4), order.Version)
	for _, fulfillment := range order.Fulfillments {
		assert.Equal(t, commerce.FulfillmentStateCompleted, fulfillment.State)
	}
	assert.Equal(t, order.State, f.reload(t).OrderStatus)
	assert.Equal(t, 1, f.gateway.CallCount("orders.update"))
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)

	_, err := f.deliver(testBody)
	require.NoError(t, err)
	first := f.reload(t).OrderStatus

	result, err := f.deliver(testBody)
	require.NoError(t, err)
	assert.True(t, result.WriteBackSkipped)
	assert.Equal(t, first, f.reload(t).OrderStatus)
	assert.Equal(t, 1, f.gateway.CallCount("orders.update"))
	assert.Len(t, f.dispatcher.published(), 2)
}

func TestIngestPaymentStatusSync(t *testing.T) {
	f := newFixture(t, config.StrategyPaymentStatusSync)
	body := `{"type":"payment.updated","id":"PL123","data":{"id":"PAY1","object":{"payment":{"id":"PAY1"}}}}`

	result, err := f.deliver(body)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaymentSynced, result.Outcome)

	got := f.reload(t)
	assert.Equal(t, "COMPLETED", got.PaymentStatus)
	assert.Empty(t, got.OrderStatus)
	assert.Equal(t, 1, f.gateway.CallCount("payments.get"))
}

func TestIngestPaymentStatusSyncWithoutOrder(t *testing.T) {
	f := newFixture(t, config.StrategyPaymentStatusSync)
	require.NoError(t, f.db.Model(&bookingdomain.Record{}).Where("id = ?", f.record.ID).Update("order_id", "").Error)
	body := `{"type":"payment.updated","id":"PL123","data":{"id":"PAY1","object":{"payment":{"id":"PAY1"}}}}`

	result, err := f.deliver(body)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaymentSynced, result.Outcome)
	assert.True(t, result.WriteBackSkipped)
	assert.Equal(t, "COMPLETED", f.reload(t).PaymentStatus)
	assert.Equal(t, 0, f.gateway.CallCount("orders.retrieve"))
	assert.Equal(t, 0, f.gateway.CallCount("orders.update"))
}

func TestIngestOrderStateSyncWithoutOrderIsNotFound(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)
	require.NoError(t, f.db.Model(&bookingdomain.Record{}).Where("id = ?", f.record.ID).Update("order_id", "").Error)

	_, err := f.deliver(testBody)
	rErr, ok := AsReconcileError(err)
	require.True(t, ok)
	assert.Equal(t, FailureNotFound, rErr.Kind)
	assert.Equal(t, 0, f.gateway.CallCount("orders.retrieve"))
}

func TestIngestGatewayFailureStillDispatches(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)
	f.gateway.SetFailure("orders.retrieve", &commerce.GatewayError{Operation: "orders.retrieve", StatusCode: 503})

	_, err := f.deliver(testBody)
	rErr, ok := AsReconcileError(err)
	require.True(t, ok)
	assert.Equal(t, FailureGateway, rErr.Kind)
	_, isGateway := commerce.AsGatewayError(err)
	assert.True(t, isGateway)

	assert.Len(t, f.dispatcher.published(), 1)
	f.assertUntouched(t)
}

func TestIngestConcurrentDeliveriesSerializePerKey(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.deliver(testBody)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.gateway.CallCount("orders.update"))
	assert.Equal(t, commerce.OrderStateCompleted, f.reload(t).OrderStatus)
	assert.Len(t, f.dispatcher.published(), 8)
}

func TestReconcileRerunDoesNotDispatch(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)

	result, err := f.svc.Reconcile(context.Background(), "PL123", "")
	require.NoError(t, err)
	assert.Equal(t, commerce.OrderStateCompleted, result.OrderStatus)
	assert.Empty(t, f.dispatcher.published())

	_, err = f.svc.Reconcile(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidCorrelation)
}

func TestReconcilePaymentSyncNeedsPaymentID(t *testing.T) {
	f := newFixture(t, config.StrategyPaymentStatusSync)

	_, err := f.svc.Reconcile(context.Background(), "PL123", "")
	assert.ErrorIs(t, err, ErrPaymentIDRequired)
	assert.Equal(t, 0, f.gateway.CallCount("orders.retrieve"))
}

func TestDispatchedPayloadIsValidJSON(t *testing.T) {
	f := newFixture(t, config.StrategyOrderStateSync)
	_, err := f.deliver(testBody)
	require.NoError(t, err)
	assert.True(t, json.Valid(f.dispatcher.published()[0].Payload))
}
