package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxRequestAge is how old a signed request may be before it is rejected.
// Discord requires requests to be verified within 5 minutes.
const maxRequestAge = 5 * time.Minute

// VerifyRequest verifies that a request is actually from Discord
func VerifyRequest(body []byte, signature, timestamp string, publicKey string) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	if time.Since(time.Unix(ts, 0)) > maxRequestAge {
		return fmt.Errorf("request timestamp too old")
	}

	pubKeyBytes, err := hex.DecodeString(publicKey)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key")
	}

	sigBytes, err := hex.DecodeString(signature)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature encoding")
	}

	// Discord signs timestamp + raw body.
	message := append([]byte(timestamp), body...)
	if !ed25519.Verify(pubKeyBytes, message, sigBytes) {
		return fmt.Errorf("invalid signature")
	}

	return nil
}

// ExtractSignatureHeaders extracts signature and timestamp from request headers
func ExtractSignatureHeaders(headers map[string]string) (signature, timestamp string, err error) {
	signature = headerValue(headers, "x-signature-ed25519")
	if signature == "" {
		return "", "", fmt.Errorf("missing x-signature-ed25519 header")
	}

	timestamp = headerValue(headers, "x-signature-timestamp")
	if timestamp == "" {
		return "", "", fmt.Errorf("missing x-signature-timestamp header")
	}

	return signature, timestamp, nil
}

// headerValue looks a header up case-insensitively; Lambda function URLs do
// not normalize header casing.
func headerValue(headers map[string]string, key string) string {
	if value, exists := headers[key]; exists {
		return value
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
