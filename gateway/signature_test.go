package gateway_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/sruthreads/storefront_backend/gateway"
)

func signBody(secret string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK"}`)
	sig := signBody("secret-1", "1700000000", body)

	if !gateway.VerifyWebhookSignature("secret-1", "1700000000", body, sig) {
		t.Fatal("valid signature rejected")
	}
	if gateway.VerifyWebhookSignature("secret-2", "1700000000", body, sig) {
		t.Fatal("signature accepted with wrong secret")
	}
	if gateway.VerifyWebhookSignature("secret-1", "1700000001", body, sig) {
		t.Fatal("signature accepted with wrong timestamp")
	}
	if gateway.VerifyWebhookSignature("secret-1", "1700000000", []byte(`{}`), sig) {
		t.Fatal("signature accepted with altered body")
	}
	if gateway.VerifyWebhookSignature("", "1700000000", body, sig) {
		t.Fatal("empty secret must never verify")
	}
}
