package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusAccepted            = "ACCEPTED"
	StatusCancelledByCustomer = "CANCELLED_BY_CUSTOMER"

	PaymentStatusPending = "PENDING"
)

// Record is the local projection of a remote booking and its payment.
type Record struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	Email         string                      `gorm:"type:text;not null;index" json:"email"`
	CustomerID    string                      `gorm:"type:text;not null" json:"customerId"`
	BookingID     string                      `gorm:"type:text;not null;index" json:"bookingId"`
	OrderID       string                      `gorm:"type:text" json:"orderId,omitempty"`
	OrderStatus   string                      `gorm:"type:text" json:"orderStatus,omitempty"`
	PaymentLinkID string                      `gorm:"type:text;index" json:"paymentLinkId,omitempty"`
	PaymentStatus string                      `gorm:"type:text" json:"paymentStatus,omitempty"`
	Status        string                      `gorm:"type:text;not null" json:"status"`
	RawBooking    string                      `gorm:"type:text" json:"rawBooking,omitempty"`
	ServiceNames  datatypes.JSONSlice[string] `gorm:"type:json" json:"serviceNames,omitempty"`
	CreatedAt     time.Time                   `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time                   `gorm:"not null" json:"updatedAt"`
}

func (Record) TableName() string { return "booking_records" }

// HasSnapshot reports whether the booking snapshot and service names were stored.
func (r Record) HasSnapshot() bool {
	return r.RawBooking != "" && r.ServiceNames != nil
}

// CanTransition reports whether status may move from one value to the next.
// The only forward move is ACCEPTED to CANCELLED_BY_CUSTOMER.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	return from == StatusAccepted && to == StatusCancelledByCustomer
}
