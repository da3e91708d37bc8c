package domain

import "errors"

var (
	ErrNotFound              = errors.New("booking_not_found")
	ErrGone                  = errors.New("booking_gone")
	ErrAuthorizationMismatch = errors.New("authorization_mismatch")
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrInvalidBookingID      = errors.New("invalid_booking_id")
	ErrInvalidStartAt        = errors.New("invalid_start_at")
	ErrInvalidSegments       = errors.New("invalid_appointment_segments")
	ErrInvalidServices       = errors.New("invalid_services")
	ErrInvalidTransition     = errors.New("invalid_status_transition")
	ErrEmptyUpdate           = errors.New("empty_update")
	ErrDuplicateRecord       = errors.New("booking_record_exists")
)

// IsValidationError reports whether err is a caller input problem.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidEmail,
		ErrInvalidBookingID,
		ErrInvalidStartAt,
		ErrInvalidSegments,
		ErrInvalidServices,
		ErrInvalidTransition,
		ErrEmptyUpdate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
