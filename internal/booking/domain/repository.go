package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Filter selects records by equality on every non-empty field.
type Filter struct {
	ID            snowflake.ID
	BookingID     string
	PaymentLinkID string
	Email         string
	Status        string
}

func (f Filter) IsEmpty() bool {
	return f.ID == 0 && f.BookingID == "" && f.PaymentLinkID == "" && f.Email == "" && f.Status == ""
}

// Snapshot pairs the serialized booking with its service names so the two
// are always written together.
type Snapshot struct {
	RawBooking   string
	ServiceNames []string
}

// Fields is a partial update. Nil members are left untouched.
type Fields struct {
	OrderStatus   *string
	PaymentStatus *string
	Status        *string
	Snapshot      *Snapshot
}

func (f Fields) IsEmpty() bool {
	return f.OrderStatus == nil && f.PaymentStatus == nil && f.Status == nil && f.Snapshot == nil
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, record *Record) error
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, db *gorm.DB, filter Filter) (*Record, error)
	// Find returns matches in insertion order.
	Find(ctx context.Context, db *gorm.DB, filter Filter) ([]Record, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields Fields) error
}
