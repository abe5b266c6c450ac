package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ordercore/fulfillment/internal/apperr"
)

// Sign computes the hex HMAC-SHA256 of a payload. The gateway sends the
// same value in its signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature in constant time. The body must be
// the raw request bytes, untouched by any JSON round trip.
func Verify(secret string, body []byte, signature string) error {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return apperr.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return apperr.ErrInvalidSignature
	}
	return nil
}
