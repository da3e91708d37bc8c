package webhook

import (
	"encoding/json"
	"errors"
	"strings"
)

const EventPaymentUpdated = "payment.updated"

var ErrInvalidPayload = errors.New("invalid_webhook_payload")

// Envelope is a verified inbound event. It is either PaymentUpdated or Unknown.
type Envelope interface {
	EventType() string
	CorrelationKey() string
	Raw() json.RawMessage
	envelope()
}

// PaymentUpdated correlates to a booking record through its payment link id.
type PaymentUpdated struct {
	PaymentLinkID string
	PaymentID     string
	raw           json.RawMessage
}

func (e PaymentUpdated) EventType() string      { return EventPaymentUpdated }
func (e PaymentUpdated) CorrelationKey() string { return e.PaymentLinkID }
func (e PaymentUpdated) Raw() json.RawMessage   { return e.raw }
func (PaymentUpdated) envelope()                {}

// Unknown carries any other event type untouched.
type Unknown struct {
	Type string
	ID   string
	raw  json.RawMessage
}

func (e Unknown) EventType() string      { return e.Type }
func (e Unknown) CorrelationKey() string { return e.ID }
func (e Unknown) Raw() json.RawMessage   { return e.raw }
func (Unknown) envelope()                {}

type wireEnvelope struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Data *struct {
		ID     string `json:"id"`
		Object *struct {
			Payment *struct {
				ID string `json:"id"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// Parse decodes only the routing fields. The raw body is kept as-is.
func Parse(rawBody []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(rawBody, &wire); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	eventType := strings.TrimSpace(wire.Type)
	if eventType == "" {
		return nil, ErrInvalidPayload
	}
	raw := json.RawMessage(append([]byte(nil), rawBody...))

	if eventType != EventPaymentUpdated {
		return Unknown{Type: eventType, ID: strings.TrimSpace(wire.ID), raw: raw}, nil
	}

	key := strings.TrimSpace(wire.ID)
	var dataID, paymentID string
	if wire.Data != nil {
		dataID = strings.TrimSpace(wire.Data.ID)
		if wire.Data.Object != nil && wire.Data.Object.Payment != nil {
			paymentID = strings.TrimSpace(wire.Data.Object.Payment.ID)
		}
	}
	if key == "" {
		key = dataID
	}
	if key == "" {
		return nil, ErrInvalidPayload
	}
	if paymentID == "" {
		paymentID = dataID
	}
	if paymentID == "" {
		paymentID = key
	}
	return PaymentUpdated{PaymentLinkID: key, PaymentID: paymentID, raw: raw}, nil
}
