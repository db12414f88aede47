package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// signatureHeader carries the base64 HMAC-SHA256 of the body.
const signatureHeader = "x-line-signature"

// Sign returns the signature the provider sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// validSignature reports whether header is the signature of body under secret.
func validSignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}

	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)

	return hmac.Equal(mac.Sum(nil), got)
}
