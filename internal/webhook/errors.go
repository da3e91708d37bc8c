package webhook

import (
	"errors"
	"fmt"
)

var (
	ErrSignatureMismatch   = errors.New("signature_mismatch")
	ErrNotFound            = errors.New("reconciliation_not_found")
	ErrPaymentIDRequired   = errors.New("payment_id_required")
	ErrInvalidCorrelation  = errors.New("invalid_correlation_key")
	ErrUnsupportedStrategy = errors.New("unsupported_strategy")
)

type FailureKind string

const (
	FailureNotFound FailureKind = "not_found"
	FailureGateway  FailureKind = "gateway"
	FailureStore    FailureKind = "store"
)

// ReconcileError is the typed failure of one reconciliation attempt.
type ReconcileError struct {
	Kind           FailureKind
	CorrelationKey string
	Stage          string
	Err            error
}

func (e *ReconcileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("reconcile %s: %s at %s", e.CorrelationKey, e.Kind, e.Stage)
	}
	return fmt.Sprintf("reconcile %s: %s at %s: %v", e.CorrelationKey, e.Kind, e.Stage, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

func AsReconcileError(err error) (*ReconcileError, bool) {
	var rErr *ReconcileError
	if errors.As(err, &rErr) && rErr != nil {
		return rErr, true
	}
	return nil, false
}
