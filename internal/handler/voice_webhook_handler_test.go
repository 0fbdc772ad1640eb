package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cpetrula/tonris-sub001/internal/config"
	"github.com/cpetrula/tonris-sub001/internal/domain"
	"github.com/cpetrula/tonris-sub001/internal/services/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTenantStore struct {
	tenants []*domain.VoiceTenant
	err     error
}

func (f *fakeTenantStore) GetActive(ctx context.Context) ([]*domain.VoiceTenant, error) {
	return f.tenants, f.err
}

func postInboundCall(t *testing.T, h *VoiceWebhookHandler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/voice/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleInboundCall(rec, req)
	return rec
}

func inboundForm(to string) url.Values {
	return url.Values{
		"CallSid":    {"CA123"},
		"From":       {"+15559990000"},
		"To":         {to},
		"CallStatus": {"ringing"},
	}
}

func TestInboundCallUnboundNumber(t *testing.T) {
	cfg := &config.BridgeConfig{PublicHost: "bridge.example.com", DefaultAgentID: "agent-default"}
	resolver := tenant.NewPhoneResolver(&fakeTenantStore{})
	h := NewVoiceWebhookHandler(cfg, resolver, func() bool { return true })

	rec := postInboundCall(t, h, inboundForm("+15550009999"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")
	assert.Contains(t, rec.Body.String(), "not in service")
	assert.Contains(t, rec.Body.String(), "<Hangup")
	assert.NotContains(t, rec.Body.String(), "<Connect")
}

func TestInboundCallBridged(t *testing.T) {
	cfg := &config.BridgeConfig{PublicHost: "bridge.example.com", DefaultAgentID: "agent-default"}
	store := &fakeTenantStore{tenants: []*domain.VoiceTenant{{
		TenantID:      "acme",
		TenantName:    "Acme Plumbing",
		PhoneNumber:   "+15550001111",
		AgentID:       "agent-42",
		BusinessHours: "Mon-Fri 9-5",
	}}}
	h := NewVoiceWebhookHandler(cfg, tenant.NewPhoneResolver(store), func() bool { return true })

	rec := postInboundCall(t, h, inboundForm("+15550001111"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<Connect")
	assert.Contains(t, body, "wss://bridge.example.com/voice/media")
	assert.Contains(t, body, "agent_id=agent-42")
	assert.Contains(t, body, "tenant_id=acme")
	assert.Contains(t, body, "call_id=CA123")
	assert.Contains(t, body, "Acme Plumbing")
	assert.Contains(t, body, "caller_number")
	assert.Contains(t, body, "Mon-Fri 9-5")
}

func TestInboundCallFallsBackToDefaultAgent(t *testing.T) {
	cfg := &config.BridgeConfig{PublicHost: "bridge.example.com", DefaultAgentID: "agent-default"}
	store := &fakeTenantStore{tenants: []*domain.VoiceTenant{{
		TenantID:    "acme",
		TenantName:  "Acme",
		PhoneNumber: "+15550001111",
	}}}
	h := NewVoiceWebhookHandler(cfg, tenant.NewPhoneResolver(store), func() bool { return true })

	rec := postInboundCall(t, h, inboundForm("+15550001111"))
	assert.Contains(t, rec.Body.String(), "agent_id=agent-default")
}

func TestInboundCallNoAgentConfigured(t *testing.T) {
	cfg := &config.BridgeConfig{PublicHost: "bridge.example.com"}
	store := &fakeTenantStore{tenants: []*domain.VoiceTenant{{
		TenantID:    "acme",
		TenantName:  "Acme",
		PhoneNumber: "+15550001111",
	}}}
	h := NewVoiceWebhookHandler(cfg, tenant.NewPhoneResolver(store), func() bool { return true })

	rec := postInboundCall(t, h, inboundForm("+15550001111"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
	assert.Contains(t, rec.Body.String(), "<Hangup")
}

func TestInboundCallAgentUnavailable(t *testing.T) {
	cfg := &config.BridgeConfig{PublicHost: "bridge.example.com", DefaultAgentID: "agent-default"}
	store := &fakeTenantStore{tenants: []*domain.VoiceTenant{{
		TenantID:    "acme",
		TenantName:  "Acme",
		PhoneNumber: "+15550001111",
	}}}
	h := NewVoiceWebhookHandler(cfg, tenant.NewPhoneResolver(store), func() bool { return false })

	rec := postInboundCall(t, h, inboundForm("+15550001111"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "temporarily unavailable")
}

func TestInboundCallStoreFailureStillAnswers(t *testing.T) {
	cfg := &config.BridgeConfig{PublicHost: "bridge.example.com", DefaultAgentID: "agent-default"}
	resolver := tenant.NewPhoneResolver(&fakeTenantStore{err: assert.AnError})
	h := NewVoiceWebhookHandler(cfg, resolver, func() bool { return true })

	rec := postInboundCall(t, h, inboundForm("+15550001111"))

	// A database outage must still produce speakable call-control markup.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")
	assert.Contains(t, rec.Body.String(), "<Hangup")
}
