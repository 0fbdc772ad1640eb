package elevenlabs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"conversation_initiation_client_data_request"}`)
	secret := "whsec_test"
	now := time.Now()

	header := SignWebhookPayload(payload, secret, now)
	require.NoError(t, VerifyWebhookSignature(payload, header, secret, now))

	// Same header, different body
	assert.Error(t, VerifyWebhookSignature([]byte(`{"tampered":true}`), header, secret, now))

	// Wrong secret
	assert.Error(t, VerifyWebhookSignature(payload, header, "other-secret", now))
}

func TestVerifyWebhookSignatureTimestampTolerance(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	signedAt := time.Now()
	header := SignWebhookPayload(payload, secret, signedAt)

	// Inside tolerance
	assert.NoError(t, VerifyWebhookSignature(payload, header, secret, signedAt.Add(29*time.Minute)))

	// Expired
	assert.Error(t, VerifyWebhookSignature(payload, header, secret, signedAt.Add(31*time.Minute)))

	// Signed in the future beyond tolerance
	assert.Error(t, VerifyWebhookSignature(payload, header, secret, signedAt.Add(-31*time.Minute)))
}

func TestVerifyWebhookSignatureMalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	for _, header := range []string{"", "t=123", "v0=abc", "garbage", "t=notanumber,v0=abc"} {
		assert.Error(t, VerifyWebhookSignature(payload, header, "whsec_test", time.Now()), "header %q", header)
	}
}
