package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// Verifier authenticates webhook deliveries with a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("webhook secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Sign returns the hex signature the gateway is expected to send for body.
func (v *Verifier) Sign(body []byte) string {
	return hex.EncodeToString(v.mac(body))
}

// Verify rejects a missing, malformed or mismatched signature. Length is
// checked before the constant-time comparison.
func (v *Verifier) Verify(signature string, body []byte) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature missing")
	}
	received, err := hex.DecodeString(signature)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature malformed")
	}
	expected := v.mac(body)
	if len(received) != len(expected) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature invalid")
	}
	if !hmac.Equal(received, expected) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature invalid")
	}
	return nil
}

func (v *Verifier) mac(body []byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write(body)
	return h.Sum(nil)
}
