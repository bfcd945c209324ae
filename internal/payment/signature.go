package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Failure classifies why a signature was not verified.
type Failure string

const (
	FailureNone          Failure = ""
	FailureMissingFields Failure = "missing_fields"
	FailureMismatch      Failure = "signature_mismatch"
)

// Verification is the outcome of a signature check. Both failure kinds are
// equally fatal to order creation; the kind exists for logging.
type Verification struct {
	Verified bool
	Failure  Failure
}

// SignatureVerifier checks that a payment result was signed by the provider.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a verifier keyed by the server-held provider secret.
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("payment: signature secret is required")
	}
	return &SignatureVerifier{secret: []byte(secret)}, nil
}

// Verify recomputes HMAC-SHA256 over "orderID|paymentID" and compares it to
// signature in constant time.
func (v *SignatureVerifier) Verify(providerOrderID, providerPaymentID, signature string) Verification {
	if providerOrderID == "" || providerPaymentID == "" || signature == "" {
		return Verification{Failure: FailureMissingFields}
	}

	expected := v.Sign(providerOrderID, providerPaymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Verification{Failure: FailureMismatch}
	}

	return Verification{Verified: true}
}

// Sign returns the lowercase hex signature the provider issues for the pair.
func (v *SignatureVerifier) Sign(providerOrderID, providerPaymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write([]byte(providerOrderID + "|" + providerPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
