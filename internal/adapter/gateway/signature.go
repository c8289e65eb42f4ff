package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureVerifier checks HMAC-SHA512 webhook signatures. The gateway
// signs the raw request body with the integration secret key and sends
// the lowercase hex digest in the X-Signature header.
type SignatureVerifier struct {
	secretKey string
}

// NewSignatureVerifier creates a verifier bound to the integration secret.
func NewSignatureVerifier(secretKey string) *SignatureVerifier {
	return &SignatureVerifier{secretKey: secretKey}
}

// Sign computes HMAC-SHA512 of the raw payload.
// Returns lowercase hex-encoded signature.
func (v *SignatureVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha512.New, []byte(v.secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA512(secretKey, payload).
// Uses constant-time comparison to prevent timing attacks. The payload
// must be the raw request body, byte for byte, before any JSON decoding.
func (v *SignatureVerifier) Verify(payload []byte, signature string) bool {
	expected := v.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
