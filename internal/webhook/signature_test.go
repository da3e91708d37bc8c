package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testKey  = "k1"
	testURL  = "https://h/events"
	testBody = `{"type":"payment.updated","id":"PL123"}`
	testSig  = "zfwKY68iNkhNI7A2oGcKbtVA92k="
)

func TestSignKnownVector(t *testing.T) {
	assert.Equal(t, testSig, Sign(testKey, testURL, []byte(testBody)))
	assert.True(t, Verify(testKey, testURL, testSig, []byte(testBody)))
}

func TestVerifyRejectsAnySingleByteChange(t *testing.T) {
	body := []byte(testBody)
	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.False(t, Verify(testKey, testURL, testSig, mutated), "byte %d", i)
	}
}

func TestVerifyRejectsWrongInputs(t *testing.T) {
	assert.False(t, Verify("k2", testURL, testSig, []byte(testBody)))
	assert.False(t, Verify(testKey, "https://other/events", testSig, []byte(testBody)))
	assert.False(t, Verify(testKey, testURL, "", []byte(testBody)))
	assert.False(t, Verify("", testURL, testSig, []byte(testBody)))
	assert.False(t, Verify(testKey, testURL, "not-base64", []byte(testBody)))
}

func TestNotificationURL(t *testing.T) {
	assert.Equal(t, testURL, NotificationURL("h", "/events"))
	assert.Equal(t, "https://shop.example.com/api/events", NotificationURL(" shop.example.com ", "/api/events"))
}
