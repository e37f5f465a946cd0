package config

import (
	"os"
	"strings"
)

// VerifyWebhookSignatures requires inbound payment webhooks to carry a valid
// HMAC signature. Off by default so local gateways and the sandbox keep
// working without signing.
//
// Set via env:
// - WEBHOOK_SIGNATURE_REQUIRED=true
func VerifyWebhookSignatures() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("WEBHOOK_SIGNATURE_REQUIRED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
