package commerce

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type FailureKind string

const (
	KindSlotUnavailable    FailureKind = "slot_unavailable"
	KindVersionConflict    FailureKind = "version_conflict"
	KindCancellationWindow FailureKind = "cancellation_window"
	KindNotFound           FailureKind = "not_found"
	KindUnauthorized       FailureKind = "unauthorized"
	KindRateLimited        FailureKind = "rate_limited"
	KindUnavailable        FailureKind = "unavailable"
	KindOther              FailureKind = "other"
)

var ErrGateway = errors.New("gateway_error")

type ErrorDetail struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
	Field    string `json:"field,omitempty"`
}

// GatewayError is any failure talking to the commerce platform: an error
// response (StatusCode set) or a transport failure (Err set).
type GatewayError struct {
	Operation  string
	StatusCode int
	Errors     []ErrorDetail
	Err        error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("gateway ")
	b.WriteString(e.Operation)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	for _, d := range e.Errors {
		fmt.Fprintf(&b, ": %s/%s", d.Category, d.Code)
		if d.Detail != "" {
			b.WriteString(" ")
			b.WriteString(d.Detail)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGateway, e.Err}
	}
	return []error{ErrGateway}
}

// Detail joins the raw gateway messages for development responses.
func (e *GatewayError) Detail() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		text := strings.TrimSpace(d.Detail)
		if text == "" {
			text = d.Code
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 && e.Err != nil {
		return e.Err.Error()
	}
	return strings.Join(parts, "; ")
}

// Kind classifies the failure. The booking-specific kinds are matched on the
// error codes and detail text the platform returns for those cases.
func (e *GatewayError) Kind() FailureKind {
	if e == nil {
		return KindOther
	}
	for _, d := range e.Errors {
		code := strings.ToUpper(d.Code)
		detail := strings.ToLower(d.Detail)
		switch {
		case code == "VERSION_MISMATCH" || code == "CONFLICT" ||
			strings.Contains(detail, "version") && (strings.Contains(detail, "mismatch") || strings.Contains(detail, "stale")):
			return KindVersionConflict
		case strings.Contains(detail, "no longer available") || strings.Contains(detail, "not available") ||
			strings.Contains(detail, "unavailable"):
			return KindSlotUnavailable
		case strings.Contains(detail, "cancel") && (strings.Contains(detail, "window") ||
			strings.Contains(detail, "policy") || strings.Contains(detail, "too late") || strings.Contains(detail, "passed")):
			return KindCancellationWindow
		}
	}
	switch {
	case e.StatusCode == http.StatusConflict:
		return KindVersionConflict
	case e.StatusCode == http.StatusNotFound:
		return KindNotFound
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return KindUnauthorized
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case e.StatusCode >= http.StatusInternalServerError || e.StatusCode == 0 && e.Err != nil:
		return KindUnavailable
	default:
		return KindOther
	}
}

// Retryable reports whether an idempotent read may be attempted again.
func (e *GatewayError) Retryable() bool {
	switch e.Kind() {
	case KindRateLimited, KindUnavailable:
		return true
	default:
		return false
	}
}

func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr != nil {
		return gwErr, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	gwErr, ok := AsGatewayError(err)
	return ok && gwErr.Kind() == KindNotFound
}
