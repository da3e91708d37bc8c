package commerce

import (
	"context"
	"encoding/json"
)

const (
	OrderStateOpen      = "OPEN"
	OrderStateCompleted = "COMPLETED"

	FulfillmentStateCompleted = "COMPLETED"

	BookingStatusAccepted            = "ACCEPTED"
	BookingStatusCancelledByCustomer = "CANCELLED_BY_CUSTOMER"
)

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Location struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Timezone string          `json:"timezone,omitempty"`
	Status   string          `json:"status,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

type Customer struct {
	ID           string `json:"id,omitempty"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	ReferenceID  string `json:"reference_id,omitempty"`
}

type AppointmentSegment struct {
	DurationMinutes         int    `json:"duration_minutes,omitempty"`
	ServiceVariationID      string `json:"service_variation_id"`
	TeamMemberID            string `json:"team_member_id"`
	ServiceVariationVersion int64  `json:"service_variation_version,omitempty"`
}

// Booking mirrors the gateway booking object. Raw keeps the response bytes
// untouched so large integers survive a round trip through the store.
type Booking struct {
	ID                  string               `json:"id,omitempty"`
	Version             int64                `json:"version,omitempty"`
	Status              string               `json:"status,omitempty"`
	CustomerID          string               `json:"customer_id,omitempty"`
	LocationID          string               `json:"location_id,omitempty"`
	StartAt             string               `json:"start_at,omitempty"`
	CustomerNote        string               `json:"customer_note,omitempty"`
	AppointmentSegments []AppointmentSegment `json:"appointment_segments,omitempty"`
	Raw                 json.RawMessage      `json:"-"`
}

type Fulfillment struct {
	UID   string `json:"uid"`
	Type  string `json:"type,omitempty"`
	State string `json:"state"`
}

type Order struct {
	ID           string          `json:"id"`
	LocationID   string          `json:"location_id"`
	Version      int64           `json:"version"`
	State        string          `json:"state"`
	Fulfillments []Fulfillment   `json:"fulfillments,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// Complete marks the order and every fulfillment COMPLETED. It reports whether anything changed.
func (o *Order) Complete() bool {
	changed := o.State != OrderStateCompleted
	o.State = OrderStateCompleted
	for i := range o.Fulfillments {
		if o.Fulfillments[i].State != FulfillmentStateCompleted {
			o.Fulfillments[i].State = FulfillmentStateCompleted
			changed = true
		}
	}
	return changed
}

type Payment struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	OrderID string `json:"order_id,omitempty"`
}

type PaymentLink struct {
	ID      string          `json:"id"`
	Version int64           `json:"version"`
	OrderID string          `json:"order_id"`
	URL     string          `json:"url"`
	Raw     json.RawMessage `json:"-"`
}

type QuickPay struct {
	Name        string
	Price       Money
	LocationID  string
	Description string
	RedirectURL string
}

type CatalogObjects struct {
	Objects        []json.RawMessage `json:"objects"`
	RelatedObjects []json.RawMessage `json:"related_objects"`
}

type Locations interface {
	RetrieveLocation(ctx context.Context, locationID string) (*Location, error)
}

type Customers interface {
	SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error)
	CreateCustomer(ctx context.Context, customer Customer) (*Customer, error)
}

type Bookings interface {
	CreateBooking(ctx context.Context, draft Booking) (*Booking, error)
	RetrieveBooking(ctx context.Context, bookingID string) (*Booking, error)
	UpdateBooking(ctx context.Context, bookingID string, patch Booking) (*Booking, error)
	CancelBooking(ctx context.Context, bookingID string, bookingVersion int64) (*Booking, error)
}

type Catalog interface {
	BatchRetrieveCatalogObjects(ctx context.Context, objectIDs []string, includeRelated bool) (*CatalogObjects, error)
	RetrieveTeamMember(ctx context.Context, teamMemberID string) (json.RawMessage, error)
}

type Checkout interface {
	CreatePaymentLink(ctx context.Context, req QuickPay) (*PaymentLink, error)
	RetrievePaymentLink(ctx context.Context, paymentLinkID string) (*PaymentLink, error)
}

type Orders interface {
	RetrieveOrder(ctx context.Context, orderID string) (*Order, error)
	// UpdateOrder writes state and fulfillment states back as a sparse update pinned to order.Version.
	UpdateOrder(ctx context.Context, order Order) (*Order, error)
}

type Payments interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// Gateway is the full remote commerce surface the service depends on.
type Gateway interface {
	Locations
	Customers
	Bookings
	Catalog
	Checkout
	Orders
	Payments
}
