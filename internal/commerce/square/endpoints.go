package square

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/smallbiznis/railbook/internal/commerce"
)

const customerReferenceID = "BOOKINGS-SAMPLE-APP"

func (c *Client) RetrieveLocation(ctx context.Context, locationID string) (*commerce.Location, error) {
	const op = "locations.retrieve"
	var resp struct {
		Location json.RawMessage `json:"location"`
	}
	if err := c.read(ctx, op, http.MethodGet, "/v2/locations/"+url.PathEscape(locationID), nil, &resp); err != nil {
		return nil, err
	}
	var location commerce.Location
	raw, err := decodeObject(op, resp.Location, &location)
	if err != nil {
		return nil, err
	}
	location.Raw = raw
	return &location, nil
}

func (c *Client) SearchCustomersByEmail(ctx context.Context, email string) ([]commerce.Customer, error) {
	body := map[string]any{
		"query": map[string]any{
			"filter": map[string]any{
				"email_address": map[string]string{"exact": email},
			},
		},
	}
	var resp struct {
		Customers []commerce.Customer `json:"customers"`
	}
	if err := c.read(ctx, "customers.search", http.MethodPost, "/v2/customers/search", body, &resp); err != nil {
		return nil, err
	}
	return resp.Customers, nil
}

func (c *Client) CreateCustomer(ctx context.Context, customer commerce.Customer) (*commerce.Customer, error) {
	const op = "customers.create"
	referenceID := customer.ReferenceID
	if referenceID == "" {
		referenceID = customerReferenceID
	}
	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"given_name":      customer.GivenName,
		"family_name":     customer.FamilyName,
		"email_address":   customer.EmailAddress,
		"reference_id":    referenceID,
	}
	var resp struct {
		Customer json.RawMessage `json:"customer"`
	}
	if err := c.write(ctx, op, http.MethodPost, "/v2/customers", body, &resp); err != nil {
		return nil, err
	}
	var created commerce.Customer
	if _, err := decodeObject(op, resp.Customer, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

type bookingResponse struct {
	Booking json.RawMessage `json:"booking"`
}

func (r bookingResponse) decode(op string) (*commerce.Booking, error) {
	var booking commerce.Booking
	raw, err := decodeObject(op, r.Booking, &booking)
	if err != nil {
		return nil, err
	}
	booking.Raw = raw
	return &booking, nil
}

func (c *Client) CreateBooking(ctx context.Context, draft commerce.Booking) (*commerce.Booking, error) {
	const op = "bookings.create"
	if draft.LocationID == "" {
		draft.LocationID = c.locationID
	}
	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"booking":         draft,
	}
	var resp bookingResponse
	if err := c.write(ctx, op, http.MethodPost, "/v2/bookings", body, &resp); err != nil {
		return nil, err
	}
	return resp.decode(op)
}

func (c *Client) RetrieveBooking(ctx context.Context, bookingID string) (*commerce.Booking, error) {
	const op = "bookings.retrieve"
	var resp bookingResponse
	if err := c.read(ctx, op, http.MethodGet, "/v2/bookings/"+url.PathEscape(bookingID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.decode(op)
}

func (c *Client) UpdateBooking(ctx context.Context, bookingID string, patch commerce.Booking) (*commerce.Booking, error) {
	const op = "bookings.update"
	patch.ID = ""
	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"booking":         patch,
	}
	var resp bookingResponse
	if err := c.write(ctx, op, http.MethodPut, "/v2/bookings/"+url.PathEscape(bookingID), body, &resp); err != nil {
		return nil, err
	}
	return resp.decode(op)
}

func (c *Client) CancelBooking(ctx context.Context, bookingID string, bookingVersion int64) (*commerce.Booking, error) {
	const op = "bookings.cancel"
	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"booking_version": bookingVersion,
	}
	var resp bookingResponse
	if err := c.write(ctx, op, http.MethodPost, "/v2/bookings/"+url.PathEscape(bookingID)+"/cancel", body, &resp); err != nil {
		return nil, err
	}
	return resp.decode(op)
}

func (c *Client) BatchRetrieveCatalogObjects(ctx context.Context, objectIDs []string, includeRelated bool) (*commerce.CatalogObjects, error) {
	body := map[string]any{
		"object_ids":              objectIDs,
		"include_related_objects": includeRelated,
	}
	var resp commerce.CatalogObjects
	if err := c.read(ctx, "catalog.batch_retrieve", http.MethodPost, "/v2/catalog/batch-retrieve", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RetrieveTeamMember(ctx context.Context, teamMemberID string) (json.RawMessage, error) {
	const op = "team_members.retrieve"
	var resp struct {
		TeamMember json.RawMessage `json:"team_member"`
	}
	if err := c.read(ctx, op, http.MethodGet, "/v2/team-members/"+url.PathEscape(teamMemberID), nil, &resp); err != nil {
		return nil, err
	}
	var member struct {
		ID string `json:"id"`
	}
	return decodeObject(op, resp.TeamMember, &member)
}

type paymentLinkResponse struct {
	PaymentLink json.RawMessage `json:"payment_link"`
}

func (r paymentLinkResponse) decode(op string) (*commerce.PaymentLink, error) {
	var link commerce.PaymentLink
	raw, err := decodeObject(op, r.PaymentLink, &link)
	if err != nil {
		return nil, err
	}
	link.Raw = raw
	return &link, nil
}

func (c *Client) CreatePaymentLink(ctx context.Context, req commerce.QuickPay) (*commerce.PaymentLink, error) {
	const op = "payment_links.create"
	locationID := req.LocationID
	if locationID == "" {
		locationID = c.locationID
	}
	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"description":     req.Description,
		"quick_pay": map[string]any{
			"name":        req.Name,
			"price_money": req.Price,
			"location_id": locationID,
		},
	}
	if req.RedirectURL != "" {
		body["checkout_options"] = map[string]string{"redirect_url": req.RedirectURL}
	}
	var resp paymentLinkResponse
	if err := c.write(ctx, op, http.MethodPost, "/v2/online-checkout/payment-links", body, &resp); err != nil {
		return nil, err
	}
	return resp.decode(op)
}

func (c *Client) RetrievePaymentLink(ctx context.Context, paymentLinkID string) (*commerce.PaymentLink, error) {
	const op = "payment_links.retrieve"
	var resp paymentLinkResponse
	if err := c.read(ctx, op, http.MethodGet, "/v2/online-checkout/payment-links/"+url.PathEscape(paymentLinkID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.decode(op)
}

type orderResponse struct {
	Order json.RawMessage `json:"order"`
}

func (r orderResponse) decode(op string) (*commerce.Order, error) {
	var order commerce.Order
	raw, err := decodeObject(op, r.Order, &order)
	if err != nil {
		return nil, err
	}
	order.Raw = raw
	return &order, nil
}

func (c *Client) RetrieveOrder(ctx context.Context, orderID string) (*commerce.Order, error) {
	const op = "orders.retrieve"
	var resp orderResponse
	if err := c.read(ctx, op, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.decode(op)
}

func (c *Client) UpdateOrder(ctx context.Context, order commerce.Order) (*commerce.Order, error) {
	const op = "orders.update"
	fulfillments := make([]map[string]string, 0, len(order.Fulfillments))
	for _, f := range order.Fulfillments {
		fulfillments = append(fulfillments, map[string]string{"uid": f.UID, "state": f.State})
	}
	sparse := map[string]any{
		"location_id": order.LocationID,
		"version":     order.Version,
		"state":       order.State,
	}
	if len(fulfillments) > 0 {
		sparse["fulfillments"] = fulfillments
	}
	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"order":           sparse,
	}
	var resp orderResponse
	if err := c.write(ctx, op, http.MethodPut, "/v2/orders/"+url.PathEscape(order.ID), body, &resp); err != nil {
		return nil, err
	}
	return resp.decode(op)
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*commerce.Payment, error) {
	const op = "payments.get"
	var resp struct {
		Payment json.RawMessage `json:"payment"`
	}
	if err := c.read(ctx, op, http.MethodGet, "/v2/payments/"+url.PathEscape(paymentID), nil, &resp); err != nil {
		return nil, err
	}
	var payment commerce.Payment
	if _, err := decodeObject(op, resp.Payment, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}
