package server

import (
	"fmt"
	"net/http"
	"testing"

	bookingdomain "github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/smallbiznis/railbook/internal/identity"
	"github.com/smallbiznis/railbook/internal/lock"
	"github.com/smallbiznis/railbook/internal/webhook"
	"github.com/stretchr/testify/assert"
)

func gatewayFailure(code, detail string, status int) *commerce.GatewayError {
	return &commerce.GatewayError{
		Operation:  "bookings.update",
		StatusCode: status,
		Errors:     []commerce.ErrorDetail{{Category: "INVALID_REQUEST_ERROR", Code: code, Detail: detail}},
	}
}

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", fmt.Errorf("create: %w", bookingdomain.ErrInvalidStartAt), http.StatusBadRequest, "validation_error"},
		{"token", identity.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
		{"mismatch", bookingdomain.ErrAuthorizationMismatch, http.StatusNotFound, "not_found"},
		{"gone", bookingdomain.ErrGone, http.StatusGone, "gone"},
		{"missing record", bookingdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"lock", lock.ErrLockTimeout, http.StatusServiceUnavailable, "service_unavailable"},
		{"rate", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"version", gatewayFailure("VERSION_MISMATCH", "", http.StatusConflict), http.StatusConflict, "version_conflict"},
		{"window", gatewayFailure("BAD_REQUEST", "The cancellation window has passed", http.StatusBadRequest), http.StatusConflict, "cancellation_window"},
		{"other gateway", gatewayFailure("INTERNAL_SERVER_ERROR", "boom", http.StatusInternalServerError), http.StatusInternalServerError, "internal_error"},
		{"reconcile not found", &webhook.ReconcileError{Kind: webhook.FailureNotFound, Err: webhook.ErrNotFound}, http.StatusNotFound, "reconciliation_not_found"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err, false)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}

func TestMapErrorCuratedMessages(t *testing.T) {
	_, payload := mapError(gatewayFailure("VERSION_MISMATCH", "", http.StatusConflict), false)
	assert.Equal(t, messageVersionConflict, payload.Message)

	_, payload = mapError(gatewayFailure("BAD_REQUEST", "Too late to cancel this booking", http.StatusBadRequest), false)
	assert.Equal(t, messageCancellationWindow, payload.Message)
}

func TestMapErrorExposesGatewayDetailInDevelopment(t *testing.T) {
	err := gatewayFailure("BAD_REQUEST", "segment 0 is no longer available", http.StatusBadRequest)

	_, hidden := mapError(err, false)
	assert.Empty(t, hidden.Detail)

	_, shown := mapError(err, true)
	assert.Equal(t, "segment 0 is no longer available", shown.Detail)
	assert.Equal(t, messageSlotUnavailable, shown.Message)
}

func TestMapErrorValidationField(t *testing.T) {
	_, payload := mapError(bookingdomain.ErrInvalidEmail, false)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "email", payload.Errors[0].Field)
		assert.Equal(t, "invalid_email", payload.Errors[0].Code)
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(&webhook.ReconcileError{Kind: webhook.FailureGateway, Stage: "orders.update", Err: gatewayFailure("X", "", 500)})
	assert.Equal(t, "gateway_error", kind)
	assert.Equal(t, "gateway:orders.update", code)

	kind, code = classifyErrorForLog(gatewayFailure("VERSION_MISMATCH", "", http.StatusConflict))
	assert.Equal(t, "version_conflict", kind)
	assert.Equal(t, string(commerce.KindVersionConflict), code)

	kind, code = classifyErrorForLog(bookingdomain.ErrInvalidServices)
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_services", code)
}
