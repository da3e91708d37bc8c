package square

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, attempts int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		AccessToken:  "sq-token",
		APIVersion:   "2024-01-18",
		LocationID:   "LOC1",
		BaseURL:      srv.URL,
		Timeout:      200 * time.Millisecond,
		ReadAttempts: attempts,
	}, WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
}

func TestRetrieveOrderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sq-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-01-18", r.Header.Get("Square-Version"))
		assert.Equal(t, "/v2/orders/ORD1", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"order":{"id":"ORD1","location_id":"LOC1","version":3,"state":"OPEN","fulfillments":[{"uid":"f1","type":"PICKUP","state":"PROPOSED"}]}}`)
	}, 3)

	order, err := client.RetrieveOrder(t.Context(), "ORD1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(3), order.Version)
	require.Len(t, order.Fulfillments, 1)
	assert.Equal(t, "PROPOSED", order.Fulfillments[0].State)
}

func TestRetrieveOrderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND","detail":"Order not found"}]}`)
	}, 3)

	_, err := client.RetrieveOrder(t.Context(), "missing")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, commerce.IsNotFound(err))
	assert.ErrorIs(t, err, commerce.ErrGateway)
}

func TestUpdateOrderIsSentOnceAsSparseUpdate(t *testing.T) {
	var calls atomic.Int32
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusBadGateway)
	}, 5)

	_, err := client.UpdateOrder(t.Context(), commerce.Order{
		ID:           "ORD1",
		LocationID:   "LOC1",
		Version:      3,
		State:        commerce.OrderStateCompleted,
		Fulfillments: []commerce.Fulfillment{{UID: "f1", Type: "PICKUP", State: commerce.FulfillmentStateCompleted}},
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	assert.NotEmpty(t, body["idempotency_key"])
	order := body["order"].(map[string]any)
	assert.Equal(t, float64(3), order["version"])
	assert.Equal(t, "COMPLETED", order["state"])
	fulfillments := order["fulfillments"].([]any)
	assert.Equal(t, map[string]any{"uid": "f1", "state": "COMPLETED"}, fulfillments[0])
}

func TestRetrieveBookingKeepsRawBytes(t *testing.T) {
	const booking = `{"id":"BK1","version":2,"status":"ACCEPTED","appointment_segments":[{"service_variation_id":"SV1","team_member_id":"TM1","service_variation_version":1599775456731123}]}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"booking":`+booking+`}`)
	}, 1)

	got, err := client.RetrieveBooking(t.Context(), "BK1")
	require.NoError(t, err)
	assert.Equal(t, booking, string(got.Raw))
	assert.Equal(t, int64(1599775456731123), got.AppointmentSegments[0].ServiceVariationVersion)
}

func TestGatewayErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   commerce.FailureKind
	}{
		{"version", http.StatusBadRequest, `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"VERSION_MISMATCH"}]}`, commerce.KindVersionConflict},
		{"slot", http.StatusBadRequest, `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"BAD_REQUEST","detail":"That time slot is no longer available."}]}`, commerce.KindSlotUnavailable},
		{"cancel window", http.StatusBadRequest, `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"BAD_REQUEST","detail":"Booking cannot be cancelled, the cancellation window has passed"}]}`, commerce.KindCancellationWindow},
		{"unauthorized", http.StatusUnauthorized, `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`, commerce.KindUnauthorized},
		{"unparseable", http.StatusTeapot, `oops`, commerce.KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, 1)
			_, err := client.CancelBooking(t.Context(), "BK1", 1)
			gwErr, ok := commerce.AsGatewayError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, gwErr.Kind())
			assert.Equal(t, tt.status, gwErr.StatusCode)
		})
	}
}

func TestRequestTimeoutIsGatewayError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, 1)

	_, err := client.GetPayment(t.Context(), "PAY1")
	gwErr, ok := commerce.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, commerce.KindUnavailable, gwErr.Kind())
}

func TestCreatePaymentLinkBody(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"payment_link":{"id":"PL1","version":1,"order_id":"ORD1","url":"https://square.link/u/x"}}`)
	}, 1)

	link, err := client.CreatePaymentLink(t.Context(), commerce.QuickPay{
		Name:        "Cut, Color",
		Price:       commerce.Money{Amount: 4500, Currency: "USD"},
		Description: "Hair cut",
		RedirectURL: "https://example.com/done",
	})
	require.NoError(t, err)
	assert.Equal(t, "PL1", link.ID)
	assert.Equal(t, "ORD1", link.OrderID)

	quickPay := body["quick_pay"].(map[string]any)
	assert.Equal(t, "LOC1", quickPay["location_id"])
	assert.Equal(t, "Cut, Color", quickPay["name"])
	assert.Equal(t, map[string]any{"amount": float64(4500), "currency": "USD"}, quickPay["price_money"])
	assert.Equal(t, map[string]any{"redirect_url": "https://example.com/done"}, body["checkout_options"])
}
