package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
)

// NotificationURL is the URL the platform signed: https + Host + mount path.
func NotificationURL(host, mountPath string) string {
	return "https://" + strings.TrimSpace(host) + mountPath
}

// Sign returns base64(HMAC-SHA1(secretKey, notificationURL + rawBody)).
func Sign(secretKey, notificationURL string, rawBody []byte) string {
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(notificationURL))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the body. It never errors.
func Verify(secretKey, notificationURL, signature string, rawBody []byte) bool {
	if secretKey == "" || signature == "" {
		return false
	}
	expected := Sign(secretKey, notificationURL, rawBody)
	return hmac.Equal([]byte(expected), []byte(signature))
}
