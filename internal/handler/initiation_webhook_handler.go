package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cpetrula/tonris-sub001/internal/adapters/elevenlabs"
	"github.com/cpetrula/tonris-sub001/internal/config"
	"github.com/cpetrula/tonris-sub001/internal/domain"
	"github.com/cpetrula/tonris-sub001/internal/prompts"
	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const defaultBusinessName = "our business"

// TenantLookup fetches a tenant profile by its external tenant id.
type TenantLookup interface {
	GetByTenantID(ctx context.Context, tenantID string) (*domain.VoiceTenant, error)
}

// InitiationWebhookHandler answers the voice agent's per-conversation
// configuration webhook. The agent platform calls it once per conversation
// before any audio flows; the response pins the telephony codec and personalizes
// the agent from the tenant profile.
type InitiationWebhookHandler struct {
	config  *config.BridgeConfig
	tenants TenantLookup
}

// NewInitiationWebhookHandler creates a new conversation initiation handler.
func NewInitiationWebhookHandler(cfg *config.BridgeConfig, tenants TenantLookup) *InitiationWebhookHandler {
	return &InitiationWebhookHandler{config: cfg, tenants: tenants}
}

// SetupInitiationRoutes registers the conversation initiation webhook route.
func (h *InitiationWebhookHandler) SetupInitiationRoutes(router *mux.Router) {
	router.HandleFunc("/voice/conversation-initiation", h.HandleConversationInitiation).Methods("POST")
}

// HandleConversationInitiation builds the per-conversation agent configuration.
//
// A failed response here drops the live call, so tenant lookup failures
// degrade to a generic configuration instead of an HTTP error. Only a bad
// signature or an unreadable request body is rejected.
func (h *InitiationWebhookHandler) HandleConversationInitiation(w http.ResponseWriter, r *http.Request) {
	var tenantID string
	defer func() {
		if rec := recover(); rec != nil {
			logger.Base().Error("panic handling conversation initiation webhook", zap.Any("panic", rec))
			h.writeResponse(w, h.fallbackResponse(tenantID))
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Base().Warn("failed to read conversation initiation body", zap.Error(err))
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if h.config.InitiationWebhookSecret != "" {
		sig := r.Header.Get("Elevenlabs-Signature")
		if err := elevenlabs.VerifyWebhookSignature(body, sig, h.config.InitiationWebhookSecret, time.Now()); err != nil {
			logger.Base().Warn("rejected conversation initiation webhook", zap.Error(err))
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var req elevenlabs.ConversationInitiationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Base().Warn("malformed conversation initiation payload", zap.Error(err))
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	if req.DynamicVariables != nil {
		tenantID = req.DynamicVariables["tenant_id"]
	}

	logger.Base().Info("conversation initiation webhook",
		zap.String("conversation_id", req.ConversationID),
		zap.String("agent_id", req.AgentID),
		zap.String("tenant_id", tenantID))

	var t *domain.VoiceTenant
	if tenantID != "" && h.tenants != nil {
		t, err = h.tenants.GetByTenantID(r.Context(), tenantID)
		if err != nil {
			logger.Base().Warn("tenant lookup failed for conversation initiation",
				zap.String("tenant_id", tenantID), zap.Error(err))
			t = nil
		}
	}

	h.writeResponse(w, h.buildResponse(tenantID, t, req.DynamicVariables))
}

// buildResponse assembles the agent configuration for one conversation.
// The audio format overrides are unconditional: telephony audio is 8 kHz
// mu-law in both directions regardless of tenant settings.
func (h *InitiationWebhookHandler) buildResponse(tenantID string, t *domain.VoiceTenant, incoming map[string]string) *elevenlabs.ConversationInitiationResponse {
	vars := map[string]string{}
	for k, v := range incoming {
		vars[k] = v
	}
	if tenantID != "" {
		vars["tenant_id"] = tenantID
	}

	resp := &elevenlabs.ConversationInitiationResponse{
		Type:             elevenlabs.ConversationInitiationResponseType,
		DynamicVariables: vars,
		ConversationConfigOverride: elevenlabs.ConversationConfigOverride{
			Agent: elevenlabs.AgentOverride{
				Language:             elevenlabs.DefaultLanguage,
				UserInputAudioFormat: elevenlabs.TelephonyAudioFormat,
			},
			TTS: elevenlabs.TTSOverride{
				AgentOutputAudioFormat: elevenlabs.TelephonyAudioFormat,
			},
		},
	}

	if t == nil {
		vars["business_name"] = defaultBusinessName
		return resp
	}

	vars["business_name"] = t.TenantName
	if t.BusinessHours != "" {
		vars["business_hours"] = t.BusinessHours
	}
	if t.Greeting != "" {
		resp.ConversationConfigOverride.Agent.FirstMessage = t.Greeting
	}
	if persona := prompts.BuildPersonaInstruction(t.TenantName, t.Tone, t.BusinessHours); persona != "" {
		resp.ConversationConfigOverride.Agent.Prompt = &elevenlabs.PromptOverride{Prompt: persona}
	}
	return resp
}

// fallbackResponse is the minimal valid configuration used when request
// handling panics. It still pins the telephony codec.
func (h *InitiationWebhookHandler) fallbackResponse(tenantID string) *elevenlabs.ConversationInitiationResponse {
	return h.buildResponse(tenantID, nil, nil)
}

func (h *InitiationWebhookHandler) writeResponse(w http.ResponseWriter, resp *elevenlabs.ConversationInitiationResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Base().Error("failed to encode conversation initiation response", zap.Error(err))
	}
}
