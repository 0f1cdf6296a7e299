package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrMissingSignature = errors.New("missing " + SignatureHeader)
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// VerifySignature checks header ("sha256=<hex>") against the HMAC-SHA256 of body
// keyed with the Meta app secret.
func VerifySignature(secret, header string, body []byte) error {
	sig := strings.TrimSpace(header)
	if sig == "" {
		return ErrMissingSignature
	}
	providedHex, ok := strings.CutPrefix(sig, "sha256=")
	if !ok {
		return ErrInvalidSignature
	}
	provided, err := hex.DecodeString(providedHex)
	if err != nil {
		return ErrInvalidSignature
	}

	if !hmac.Equal(provided, Sign(secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
