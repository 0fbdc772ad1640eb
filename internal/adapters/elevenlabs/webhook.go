package elevenlabs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Conversation-initiation webhook payloads. The response is returned as a
// bare JSON object, not wrapped in any envelope.

// ConversationInitiationRequest is the webhook body the agent platform posts
// at conversation start.
type ConversationInitiationRequest struct {
	Type             string            `json:"type"`
	ConversationID   string            `json:"conversation_id"`
	AgentID          string            `json:"agent_id"`
	DynamicVariables map[string]string `json:"dynamic_variables"`
}

// ConversationInitiationResponseType is the type tag the agent platform
// expects on initiation webhook responses.
const ConversationInitiationResponseType = "conversation_initiation_client_data"

// ConversationInitiationResponse carries per-tenant overrides back to the agent.
type ConversationInitiationResponse struct {
	Type                       string                     `json:"type"`
	DynamicVariables           map[string]string          `json:"dynamic_variables"`
	ConversationConfigOverride ConversationConfigOverride `json:"conversation_config_override"`
}

// signatureTolerance bounds how old a signed webhook timestamp may be.
const signatureTolerance = 30 * time.Minute

// VerifyWebhookSignature checks an ElevenLabs-style webhook signature header
// of the form "t=<unix>,v0=<hex hmac-sha256 of t.body>".
func VerifyWebhookSignature(payload []byte, header, secret string, now time.Time) error {
	var timestamp, signature string
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			timestamp = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v0="):
			signature = strings.TrimPrefix(part, "v0=")
		}
	}
	if timestamp == "" || signature == "" {
		return fmt.Errorf("malformed signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp: %w", err)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// SignWebhookPayload produces a signature header for the given payload,
// used by tests and by outbound webhook callers.
func SignWebhookPayload(payload []byte, secret string, now time.Time) string {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v0=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
