package paymongowebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
)

// VerifySignature checks the Paymongo-Signature header against the raw
// request body. The header carries "t=<unix>,v1=<hex hmac>" where the hmac
// is SHA-256 over the raw body keyed with the webhook secret; the timestamp
// is delivery metadata, not MAC input. Comparison is constant time.
func VerifySignature(secret, header string, body []byte) error {
	if strings.TrimSpace(secret) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook secret is not configured")
	}

	timestamp, provided := parseSignatureHeader(header)
	if timestamp == "" || provided == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature header is missing or malformed")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	decoded, err := hex.DecodeString(provided)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature is not valid hex")
	}
	if !hmac.Equal(expected, decoded) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}
	return nil
}

// ComputeSignature builds a valid header value for the given body. Used by
// tests and local tooling.
func ComputeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (timestamp, signature string) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signature = kv[1]
		}
	}
	return timestamp, signature
}
