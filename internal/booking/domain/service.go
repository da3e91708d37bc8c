package domain

import (
	"context"
	"encoding/json"
)

type SearchCustomerRequest struct {
	GivenName    string `json:"givenName"`
	FamilyName   string `json:"familyName"`
	EmailAddress string `json:"emailAddress"`
}

type SearchCustomerResponse struct {
	CustomerID string `json:"customerId"`
}

type AppointmentSegment struct {
	DurationMinutes         int    `json:"durationMinutes,omitempty"`
	ServiceVariationID      string `json:"serviceVariationId"`
	TeamMemberID            string `json:"teamMemberId"`
	ServiceVariationVersion int64  `json:"serviceVariationVersion,omitempty"`
}

// ServiceLine is one priced service chosen for the booking.
type ServiceLine struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type BookingInput struct {
	StartAt             string               `json:"startAt"`
	CustomerNote        string               `json:"customerNote,omitempty"`
	EmailAddress        string               `json:"emailAddress"`
	GivenName           string               `json:"givenName"`
	FamilyName          string               `json:"familyName"`
	AppointmentSegments []AppointmentSegment `json:"appointmentSegments"`
	Services            []ServiceLine        `json:"services"`
}

type CreateBookingRequest struct {
	CallerEmail string       `json:"-"`
	Booking     BookingInput `json:"booking"`
}

type CreateBookingResponse struct {
	Booking json.RawMessage `json:"booking"`
}

type BookingPatch struct {
	// Version is the booking version the edit was made against. Zero skips the check.
	Version             int64                `json:"version,omitempty"`
	StartAt             string               `json:"startAt,omitempty"`
	CustomerNote        string               `json:"customerNote,omitempty"`
	AppointmentSegments []AppointmentSegment `json:"appointmentSegments,omitempty"`
}

type UpdateBookingRequest struct {
	CallerEmail  string       `json:"-"`
	BookingID    string       `json:"-"`
	Booking      BookingPatch `json:"booking"`
	ServiceNames []string     `json:"serviceNames"`
}

type CancelBookingRequest struct {
	CallerEmail string
	BookingID   string
}

type CancelBookingResponse struct {
	BookingID string `json:"bookingId"`
	Cancelled bool   `json:"cancelled"`
}

type GetBookingRequest struct {
	CallerEmail string
	BookingID   string
}

type BookingDetail struct {
	Booking        json.RawMessage   `json:"booking"`
	Objects        []json.RawMessage `json:"objects"`
	RelatedObjects []json.RawMessage `json:"relatedObjects"`
	TeamMember     json.RawMessage   `json:"teamMember"`
	PaymentLink    json.RawMessage   `json:"paymentLink"`
	Order          json.RawMessage   `json:"order"`
}

type ListBookingsRequest struct {
	CallerEmail string
	Email       string
}

type Service interface {
	SearchCustomer(context.Context, SearchCustomerRequest) (SearchCustomerResponse, error)
	List(context.Context, ListBookingsRequest) ([]json.RawMessage, error)
	Get(context.Context, GetBookingRequest) (BookingDetail, error)
	Create(context.Context, CreateBookingRequest) (CreateBookingResponse, error)
	Update(context.Context, UpdateBookingRequest) (json.RawMessage, error)
	Cancel(context.Context, CancelBookingRequest) (CancelBookingResponse, error)
}
