// Package fake provides an in-memory commerce.Gateway for tests.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/smallbiznis/railbook/internal/commerce"
)

type Gateway struct {
	mu sync.Mutex

	Location     commerce.Location
	Customers    []commerce.Customer
	Bookings     map[string]*commerce.Booking
	Orders       map[string]*commerce.Order
	Payments     map[string]*commerce.Payment
	PaymentLinks map[string]*commerce.PaymentLink
	TeamMembers  map[string]json.RawMessage
	Catalog      map[string]json.RawMessage

	// Fail maps an operation name to the error it should return.
	Fail map[string]error

	Calls  map[string]int
	nextID int
}

var _ commerce.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		Location:     commerce.Location{ID: "LOC1", Name: "Main Street"},
		Bookings:     map[string]*commerce.Booking{},
		Orders:       map[string]*commerce.Order{},
		Payments:     map[string]*commerce.Payment{},
		PaymentLinks: map[string]*commerce.PaymentLink{},
		TeamMembers:  map[string]json.RawMessage{},
		Catalog:      map[string]json.RawMessage{},
		Fail:         map[string]error{},
		Calls:        map[string]int{},
	}
}

func (g *Gateway) CallCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[op]
}

func (g *Gateway) SetFailure(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Fail[op] = err
}

func (g *Gateway) record(op string) error {
	g.Calls[op]++
	return g.Fail[op]
}

func (g *Gateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s%d", prefix, g.nextID)
}

func notFound(op string) error {
	return &commerce.GatewayError{
		Operation:  op,
		StatusCode: http.StatusNotFound,
		Errors:     []commerce.ErrorDetail{{Category: "INVALID_REQUEST_ERROR", Code: "NOT_FOUND"}},
	}
}

func withRaw(b commerce.Booking) *commerce.Booking {
	b.Raw = nil
	raw, _ := json.Marshal(b)
	b.Raw = raw
	return &b
}

func (g *Gateway) RetrieveLocation(_ context.Context, locationID string) (*commerce.Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("locations.retrieve"); err != nil {
		return nil, err
	}
	if locationID != g.Location.ID {
		return nil, notFound("locations.retrieve")
	}
	location := g.Location
	return &location, nil
}

func (g *Gateway) SearchCustomersByEmail(_ context.Context, email string) ([]commerce.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("customers.search"); err != nil {
		return nil, err
	}
	var out []commerce.Customer
	for _, c := range g.Customers {
		if c.EmailAddress == email {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *Gateway) CreateCustomer(_ context.Context, customer commerce.Customer) (*commerce.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("customers.create"); err != nil {
		return nil, err
	}
	customer.ID = g.id("CUST")
	g.Customers = append(g.Customers, customer)
	return &customer, nil
}

func (g *Gateway) CreateBooking(_ context.Context, draft commerce.Booking) (*commerce.Booking, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("bookings.create"); err != nil {
		return nil, err
	}
	draft.ID = g.id("BK")
	draft.Version = 1
	draft.Status = commerce.BookingStatusAccepted
	created := withRaw(draft)
	g.Bookings[created.ID] = created
	return created, nil
}

func (g *Gateway) RetrieveBooking(_ context.Context, bookingID string) (*commerce.Booking, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("bookings.retrieve"); err != nil {
		return nil, err
	}
	booking, ok := g.Bookings[bookingID]
	if !ok {
		return nil, notFound("bookings.retrieve")
	}
	copied := *booking
	return &copied, nil
}

func (g *Gateway) UpdateBooking(_ context.Context, bookingID string, patch commerce.Booking) (*commerce.Booking, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("bookings.update"); err != nil {
		return nil, err
	}
	current, ok := g.Bookings[bookingID]
	if !ok {
		return nil, notFound("bookings.update")
	}
	if patch.Version != 0 && patch.Version != current.Version {
		return nil, &commerce.GatewayError{
			Operation:  "bookings.update",
			StatusCode: http.StatusBadRequest,
			Errors:     []commerce.ErrorDetail{{Category: "INVALID_REQUEST_ERROR", Code: "VERSION_MISMATCH"}},
		}
	}
	next := *current
	if patch.StartAt != "" {
		next.StartAt = patch.StartAt
	}
	if patch.CustomerNote != "" {
		next.CustomerNote = patch.CustomerNote
	}
	if len(patch.AppointmentSegments) > 0 {
		next.AppointmentSegments = patch.AppointmentSegments
	}
	next.Version++
	updated := withRaw(next)
	g.Bookings[bookingID] = updated
	return updated, nil
}

func (g *Gateway) CancelBooking(_ context.Context, bookingID string, bookingVersion int64) (*commerce.Booking, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("bookings.cancel"); err != nil {
		return nil, err
	}
	current, ok := g.Bookings[bookingID]
	if !ok {
		return nil, notFound("bookings.cancel")
	}
	if current.Version != bookingVersion {
		return nil, &commerce.GatewayError{
			Operation:  "bookings.cancel",
			StatusCode: http.StatusBadRequest,
			Errors:     []commerce.ErrorDetail{{Category: "INVALID_REQUEST_ERROR", Code: "VERSION_MISMATCH"}},
		}
	}
	next := *current
	next.Status = commerce.BookingStatusCancelledByCustomer
	next.Version++
	cancelled := withRaw(next)
	g.Bookings[bookingID] = cancelled
	return cancelled, nil
}

func (g *Gateway) BatchRetrieveCatalogObjects(_ context.Context, objectIDs []string, includeRelated bool) (*commerce.CatalogObjects, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("catalog.batch_retrieve"); err != nil {
		return nil, err
	}
	out := &commerce.CatalogObjects{}
	for _, id := range objectIDs {
		if obj, ok := g.Catalog[id]; ok {
			out.Objects = append(out.Objects, obj)
		}
	}
	if includeRelated {
		out.RelatedObjects = []json.RawMessage{}
	}
	return out, nil
}

func (g *Gateway) RetrieveTeamMember(_ context.Context, teamMemberID string) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("team_members.retrieve"); err != nil {
		return nil, err
	}
	member, ok := g.TeamMembers[teamMemberID]
	if !ok {
		return nil, notFound("team_members.retrieve")
	}
	return member, nil
}

func (g *Gateway) CreatePaymentLink(_ context.Context, req commerce.QuickPay) (*commerce.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("payment_links.create"); err != nil {
		return nil, err
	}
	orderID := g.id("ORD")
	g.Orders[orderID] = &commerce.Order{
		ID:           orderID,
		LocationID:   req.LocationID,
		Version:      1,
		State:        commerce.OrderStateOpen,
		Fulfillments: []commerce.Fulfillment{{UID: orderID + "-f1", Type: "DIGITAL", State: "PROPOSED"}},
	}
	link := &commerce.PaymentLink{ID: g.id("PL"), Version: 1, OrderID: orderID, URL: "https://square.link/u/test"}
	g.PaymentLinks[link.ID] = link
	return link, nil
}

func (g *Gateway) RetrievePaymentLink(_ context.Context, paymentLinkID string) (*commerce.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("payment_links.retrieve"); err != nil {
		return nil, err
	}
	link, ok := g.PaymentLinks[paymentLinkID]
	if !ok {
		return nil, notFound("payment_links.retrieve")
	}
	copied := *link
	return &copied, nil
}

func (g *Gateway) RetrieveOrder(_ context.Context, orderID string) (*commerce.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("orders.retrieve"); err != nil {
		return nil, err
	}
	order, ok := g.Orders[orderID]
	if !ok {
		return nil, notFound("orders.retrieve")
	}
	copied := *order
	copied.Fulfillments = append([]commerce.Fulfillment(nil), order.Fulfillments...)
	return &copied, nil
}

func (g *Gateway) UpdateOrder(_ context.Context, order commerce.Order) (*commerce.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("orders.update"); err != nil {
		return nil, err
	}
	current, ok := g.Orders[order.ID]
	if !ok {
		return nil, notFound("orders.update")
	}
	if current.Version != order.Version {
		return nil, &commerce.GatewayError{
			Operation:  "orders.update",
			StatusCode: http.StatusBadRequest,
			Errors:     []commerce.ErrorDetail{{Category: "INVALID_REQUEST_ERROR", Code: "VERSION_MISMATCH"}},
		}
	}
	next := order
	next.Version = current.Version + 1
	next.Fulfillments = append([]commerce.Fulfillment(nil), order.Fulfillments...)
	g.Orders[order.ID] = &next
	out := next
	return &out, nil
}

func (g *Gateway) GetPayment(_ context.Context, paymentID string) (*commerce.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("payments.get"); err != nil {
		return nil, err
	}
	payment, ok := g.Payments[paymentID]
	if !ok {
		return nil, notFound("payments.get")
	}
	copied := *payment
	return &copied, nil
}
