package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentUpdatedTopLevelID(t *testing.T) {
	env, err := Parse([]byte(testBody))
	require.NoError(t, err)

	e, ok := env.(PaymentUpdated)
	require.True(t, ok)
	assert.Equal(t, "PL123", e.CorrelationKey())
	assert.Equal(t, "PL123", e.PaymentID)
	assert.Equal(t, testBody, string(e.Raw()))
}

func TestParsePaymentUpdatedNestedIDs(t *testing.T) {
	body := `{"type":"payment.updated","data":{"id":"PL9","object":{"payment":{"id":"PAY9","amount":90071992547409930}}}}`
	env, err := Parse([]byte(body))
	require.NoError(t, err)

	e := env.(PaymentUpdated)
	assert.Equal(t, "PL9", e.PaymentLinkID)
	assert.Equal(t, "PAY9", e.PaymentID)
	assert.Equal(t, body, string(e.Raw()))
}

func TestParseUnknownKeepsPayload(t *testing.T) {
	body := `{"type":"booking.created","id":"E1","data":{"n":12345678901234567890}}`
	env, err := Parse([]byte(body))
	require.NoError(t, err)

	u, ok := env.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "booking.created", u.EventType())
	assert.Equal(t, body, string(u.Raw()))
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, body := range []string{``, `not json`, `{}`, `{"type":"payment.updated"}`} {
		_, err := Parse([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidPayload, body)
	}
}
