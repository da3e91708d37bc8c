package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/smallbiznis/railbook/internal/events"
	"github.com/smallbiznis/railbook/internal/identity"
	"github.com/smallbiznis/railbook/internal/lock"
	"github.com/smallbiznis/railbook/internal/webhook"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Detail  string            `json:"detail,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

const (
	messageSlotUnavailable    = "The selected time slot is no longer available. Please choose another time."
	messageVersionConflict    = "This booking was changed elsewhere. Refresh and try again."
	messageCancellationWindow = "This booking can no longer be cancelled online."
	messageGone               = "Invalid or canceled."
	messageUserMismatch       = "user doesn't match"
)

// ErrorHandlingMiddleware renders the last handler error. With exposeDetail
// the raw gateway message is included for development.
func ErrorHandlingMiddleware(exposeDetail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err, exposeDetail)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error, exposeDetail bool) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if rErr, ok := webhook.AsReconcileError(err); ok {
		return mapReconcileError(rErr, exposeDetail)
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrMissingToken),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrMissingEmail):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, bookingdomain.ErrAuthorizationMismatch):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: messageUserMismatch,
		}
	case errors.Is(err, bookingdomain.ErrGone):
		return http.StatusGone, errorPayload{
			Type:    "gone",
			Message: messageGone,
		}
	case errors.Is(err, bookingdomain.ErrDuplicateRecord):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "booking already recorded",
		}
	case errors.Is(err, webhook.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "reconciliation_not_found",
			Message: "no booking record for this payment link",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, lock.ErrLockTimeout),
		errors.Is(err, events.ErrHubUnavailable),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	}

	if gwErr, ok := commerce.AsGatewayError(err); ok {
		return mapGatewayError(gwErr, exposeDetail)
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// mapGatewayError turns the booking failures customers can act on into
// curated messages. Everything else is a generic 500.
func mapGatewayError(gwErr *commerce.GatewayError, exposeDetail bool) (int, errorPayload) {
	var payload errorPayload
	status := http.StatusConflict
	switch gwErr.Kind() {
	case commerce.KindSlotUnavailable:
		payload = errorPayload{Type: "slot_unavailable", Message: messageSlotUnavailable}
	case commerce.KindVersionConflict:
		payload = errorPayload{Type: "version_conflict", Message: messageVersionConflict}
	case commerce.KindCancellationWindow:
		payload = errorPayload{Type: "cancellation_window", Message: messageCancellationWindow}
	case commerce.KindNotFound:
		status = http.StatusNotFound
		payload = errorPayload{Type: "not_found", Message: "not found"}
	default:
		status = http.StatusInternalServerError
		payload = errorPayload{Type: "internal_error", Message: "internal server error"}
	}
	if exposeDetail {
		payload.Detail = gwErr.Detail()
	}
	return status, payload
}

func mapReconcileError(rErr *webhook.ReconcileError, exposeDetail bool) (int, errorPayload) {
	var payload errorPayload
	var status int
	switch rErr.Kind {
	case webhook.FailureNotFound:
		status = http.StatusNotFound
		payload = errorPayload{Type: "reconciliation_not_found", Message: "no booking record for this payment link"}
	case webhook.FailureGateway:
		status = http.StatusBadGateway
		payload = errorPayload{Type: "gateway_error", Message: "commerce platform request failed"}
	default:
		status = http.StatusInternalServerError
		payload = errorPayload{Type: "internal_error", Message: "internal server error"}
	}
	if exposeDetail {
		if gwErr, ok := commerce.AsGatewayError(rErr); ok {
			payload.Detail = gwErr.Detail()
		} else if rErr.Err != nil {
			payload.Detail = rErr.Err.Error()
		}
	}
	return status, payload
}

// classifyErrorForLog feeds error_type and error_code into the request log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err, false)
	if rErr, ok := webhook.AsReconcileError(err); ok {
		return payload.Type, string(rErr.Kind) + ":" + rErr.Stage
	}
	if gwErr, ok := commerce.AsGatewayError(err); ok {
		return payload.Type, string(gwErr.Kind())
	}
	if payload.Type == "validation_error" && isValidationError(err) {
		return payload.Type, validationErrorCode(err)
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, webhook.ErrInvalidPayload),
		errors.Is(err, webhook.ErrInvalidCorrelation),
		errors.Is(err, webhook.ErrPaymentIDRequired),
		bookingdomain.IsValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, bookingdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, webhook.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, webhook.ErrInvalidCorrelation):
		return "invalid_payment_link_id"
	case errors.Is(err, webhook.ErrPaymentIDRequired):
		return "invalid_payment_id"
	}
	for _, target := range []error{
		bookingdomain.ErrInvalidEmail,
		bookingdomain.ErrInvalidBookingID,
		bookingdomain.ErrInvalidStartAt,
		bookingdomain.ErrInvalidSegments,
		bookingdomain.ErrInvalidServices,
		bookingdomain.ErrInvalidTransition,
		bookingdomain.ErrEmptyUpdate,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_update":
		return "nothing to update"
	default:
		return "invalid value"
	}
}
