package discord

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedRequest(t *testing.T, body []byte, ts time.Time) (signature, timestamp, publicKey string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	timestamp = fmt.Sprintf("%d", ts.Unix())
	message := append([]byte(timestamp), body...)
	sig := ed25519.Sign(priv, message)
	return hex.EncodeToString(sig), timestamp, hex.EncodeToString(pub)
}

func TestVerifyRequest(t *testing.T) {
	body := []byte(`{"type":1}`)
	signature, timestamp, publicKey := signedRequest(t, body, time.Now())

	assert.NoError(t, VerifyRequest(body, signature, timestamp, publicKey))
}

func TestVerifyRequestRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"type":1}`)
	signature, timestamp, publicKey := signedRequest(t, body, time.Now())

	err := VerifyRequest([]byte(`{"type":2}`), signature, timestamp, publicKey)
	assert.ErrorContains(t, err, "invalid signature")
}

func TestVerifyRequestRejectsWrongKey(t *testing.T) {
	body := []byte(`{"type":1}`)
	signature, timestamp, _ := signedRequest(t, body, time.Now())
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	err = VerifyRequest(body, signature, timestamp, hex.EncodeToString(otherPub))
	assert.ErrorContains(t, err, "invalid signature")
}

func TestVerifyRequestRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{"type":1}`)
	signature, timestamp, publicKey := signedRequest(t, body, time.Now().Add(-10*time.Minute))

	err := VerifyRequest(body, signature, timestamp, publicKey)
	assert.ErrorContains(t, err, "too old")
}

func TestVerifyRequestRejectsMalformedInputs(t *testing.T) {
	body := []byte(`{"type":1}`)
	signature, timestamp, publicKey := signedRequest(t, body, time.Now())

	tests := []struct {
		name      string
		signature string
		timestamp string
		publicKey string
		errSubstr string
	}{
		{name: "garbage timestamp", signature: signature, timestamp: "not-a-number", publicKey: publicKey, errSubstr: "invalid timestamp"},
		{name: "non-hex public key", signature: signature, timestamp: timestamp, publicKey: "zz", errSubstr: "invalid public key"},
		{name: "short public key", signature: signature, timestamp: timestamp, publicKey: "abcd", errSubstr: "invalid public key"},
		{name: "non-hex signature", signature: "zz", timestamp: timestamp, publicKey: publicKey, errSubstr: "invalid signature encoding"},
		{name: "short signature", signature: "abcd", timestamp: timestamp, publicKey: publicKey, errSubstr: "invalid signature encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyRequest(body, tt.signature, tt.timestamp, tt.publicKey)
			assert.ErrorContains(t, err, tt.errSubstr)
		})
	}
}

func TestExtractSignatureHeaders(t *testing.T) {
	signature, timestamp, err := ExtractSignatureHeaders(map[string]string{
		"X-Signature-Ed25519":   "sig",
		"x-signature-timestamp": "123",
	})
	assert.NoError(t, err)
	assert.Equal(t, "sig", signature)
	assert.Equal(t, "123", timestamp)

	_, _, err = ExtractSignatureHeaders(map[string]string{"x-signature-timestamp": "123"})
	assert.ErrorContains(t, err, "x-signature-ed25519")

	_, _, err = ExtractSignatureHeaders(map[string]string{"x-signature-ed25519": "sig"})
	assert.ErrorContains(t, err, "x-signature-timestamp")
}
