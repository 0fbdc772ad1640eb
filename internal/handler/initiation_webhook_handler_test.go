package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cpetrula/tonris-sub001/internal/adapters/elevenlabs"
	"github.com/cpetrula/tonris-sub001/internal/config"
	"github.com/cpetrula/tonris-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTenantLookup struct {
	tenant *domain.VoiceTenant
	err    error
}

func (f *fakeTenantLookup) GetByTenantID(ctx context.Context, tenantID string) (*domain.VoiceTenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.tenant != nil && f.tenant.TenantID == tenantID {
		return f.tenant, nil
	}
	return nil, fmt.Errorf("voice tenant not found with tenant ID: %s", tenantID)
}

func initiationBody(tenantID string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"type":            "conversation_initiation_client_data_request",
		"conversation_id": "conv-1",
		"agent_id":        "agent-42",
		"dynamic_variables": map[string]string{
			"tenant_id": tenantID,
			"call_sid":  "CA123",
		},
	})
	return body
}

func postInitiation(t *testing.T, h *InitiationWebhookHandler, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/voice/conversation-initiation", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.HandleConversationInitiation(rec, req)
	return rec
}

func decodeInitiationResponse(t *testing.T, rec *httptest.ResponseRecorder) elevenlabs.ConversationInitiationResponse {
	t.Helper()

	var resp elevenlabs.ConversationInitiationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestConversationInitiationWithTenant(t *testing.T) {
	cfg := &config.BridgeConfig{}
	lookup := &fakeTenantLookup{tenant: &domain.VoiceTenant{
		TenantID:      "acme",
		TenantName:    "Acme Plumbing",
		Greeting:      "Thanks for calling Acme Plumbing!",
		Tone:          "friendly",
		BusinessHours: "Mon-Fri 9-5",
	}}
	h := NewInitiationWebhookHandler(cfg, lookup)

	rec := postInitiation(t, h, initiationBody("acme"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInitiationResponse(t, rec)

	assert.Equal(t, elevenlabs.ConversationInitiationResponseType, resp.Type)
	assert.Equal(t, "acme", resp.DynamicVariables["tenant_id"])
	assert.Equal(t, "CA123", resp.DynamicVariables["call_sid"])
	assert.Equal(t, "Acme Plumbing", resp.DynamicVariables["business_name"])
	assert.Equal(t, "Mon-Fri 9-5", resp.DynamicVariables["business_hours"])

	assert.Equal(t, elevenlabs.TelephonyAudioFormat, resp.ConversationConfigOverride.Agent.UserInputAudioFormat)
	assert.Equal(t, elevenlabs.TelephonyAudioFormat, resp.ConversationConfigOverride.TTS.AgentOutputAudioFormat)
	assert.Equal(t, "Thanks for calling Acme Plumbing!", resp.ConversationConfigOverride.Agent.FirstMessage)
	require.NotNil(t, resp.ConversationConfigOverride.Agent.Prompt)
	assert.Contains(t, resp.ConversationConfigOverride.Agent.Prompt.Prompt, "Acme Plumbing")
}

func TestConversationInitiationLookupFailure(t *testing.T) {
	cfg := &config.BridgeConfig{}
	h := NewInitiationWebhookHandler(cfg, &fakeTenantLookup{err: assert.AnError})

	rec := postInitiation(t, h, initiationBody("acme"), nil)

	// A broken tenant store must still yield a usable configuration so the
	// live call is not dropped.
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInitiationResponse(t, rec)
	assert.Equal(t, "acme", resp.DynamicVariables["tenant_id"])
	assert.Equal(t, defaultBusinessName, resp.DynamicVariables["business_name"])
	assert.Equal(t, elevenlabs.TelephonyAudioFormat, resp.ConversationConfigOverride.Agent.UserInputAudioFormat)
	assert.Equal(t, elevenlabs.TelephonyAudioFormat, resp.ConversationConfigOverride.TTS.AgentOutputAudioFormat)
	assert.Empty(t, resp.ConversationConfigOverride.Agent.FirstMessage)
}

func TestConversationInitiationUnknownTenant(t *testing.T) {
	cfg := &config.BridgeConfig{}
	h := NewInitiationWebhookHandler(cfg, &fakeTenantLookup{})

	rec := postInitiation(t, h, initiationBody("nobody"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInitiationResponse(t, rec)
	assert.Equal(t, defaultBusinessName, resp.DynamicVariables["business_name"])
}

func TestConversationInitiationSignature(t *testing.T) {
	cfg := &config.BridgeConfig{InitiationWebhookSecret: "whsec_test"}
	h := NewInitiationWebhookHandler(cfg, &fakeTenantLookup{})
	body := initiationBody("acme")

	// Missing signature
	rec := postInitiation(t, h, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong secret
	bad := elevenlabs.SignWebhookPayload(body, "wrong-secret", time.Now())
	rec = postInitiation(t, h, body, map[string]string{"Elevenlabs-Signature": bad})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid signature
	good := elevenlabs.SignWebhookPayload(body, "whsec_test", time.Now())
	rec = postInitiation(t, h, body, map[string]string{"Elevenlabs-Signature": good})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConversationInitiationMalformedBody(t *testing.T) {
	cfg := &config.BridgeConfig{}
	h := NewInitiationWebhookHandler(cfg, &fakeTenantLookup{})

	rec := postInitiation(t, h, []byte("{not json"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
