package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifyWebhookSignature checks the signature the gateway attaches to webhook
// calls: base64(HMAC-SHA256(timestamp + rawBody)) keyed with the store's
// client secret.
func VerifyWebhookSignature(clientSecret string, timestamp string, rawBody []byte, signature string) bool {
	if clientSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(timestamp))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
