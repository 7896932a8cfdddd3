package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature checks the client-supplied proof of possession for a
// subscription payment: HMAC-SHA256 over "{subscriptionId}|{paymentId}" with
// the key secret, hex encoded. Comparison is constant time.
func VerifyPaymentSignature(subscriptionID, paymentID, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	return verify([]byte(subscriptionID+"|"+paymentID), signature, secret)
}

// VerifyWebhookSignature checks the gateway's webhook signature: HMAC-SHA256
// over the raw request body with the webhook secret.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	return verify(body, signature, secret)
}

// SignPayload produces the hex HMAC-SHA256 of payload; exported for tests and
// internal tooling that need to construct valid signatures.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(payload []byte, signature, secret string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
