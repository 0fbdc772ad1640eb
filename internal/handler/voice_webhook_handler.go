package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/cpetrula/tonris-sub001/internal/config"
	"github.com/cpetrula/tonris-sub001/internal/domain"
	"github.com/cpetrula/tonris-sub001/internal/services/tenant"
	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

// Spoken fallbacks for the caller. The webhook contract requires a
// well-formed call-control response in all cases, and audio is the only
// channel the caller can receive diagnostics on.
const (
	msgNumberNotInService = "We're sorry, this number is not in service. Please check the number and try again. Goodbye."
	msgAgentNotConfigured = "We're sorry, the assistant for this number is not configured yet. Please try again later. Goodbye."
	msgAgentUnavailable   = "We're sorry, our assistant is temporarily unavailable. Please call back later. Goodbye."
	msgGenericError       = "We're sorry, something went wrong handling your call. Please try again later. Goodbye."
)

// VoiceWebhookHandler answers the carrier's inbound call webhook with a
// call-control instruction: either a spoken message plus hangup, or a
// connect to the media stream bridge.
type VoiceWebhookHandler struct {
	config   *config.BridgeConfig
	resolver *tenant.PhoneResolver

	// agentAvailable reports whether the voice agent is configured; this is
	// a configuration check, never a network probe.
	agentAvailable func() bool
}

// NewVoiceWebhookHandler creates a new inbound call webhook handler.
func NewVoiceWebhookHandler(cfg *config.BridgeConfig, resolver *tenant.PhoneResolver, agentAvailable func() bool) *VoiceWebhookHandler {
	return &VoiceWebhookHandler{
		config:         cfg,
		resolver:       resolver,
		agentAvailable: agentAvailable,
	}
}

// SetupVoiceRoutes registers the inbound call webhook route.
func (h *VoiceWebhookHandler) SetupVoiceRoutes(router *mux.Router) {
	router.HandleFunc("/voice/inbound", h.HandleInboundCall).Methods("POST")
}

// HandleInboundCall decides whether the call gets bridged.
func (h *VoiceWebhookHandler) HandleInboundCall(w http.ResponseWriter, r *http.Request) {
	// The carrier cannot surface an HTTP error to the caller, so every exit
	// path, panics included, must produce speakable TwiML.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Base().Error("panic handling inbound call webhook", zap.Any("panic", rec))
			h.speakAndHangup(w, msgGenericError)
		}
	}()

	if err := r.ParseForm(); err != nil {
		logger.Base().Warn("malformed inbound call webhook form", zap.Error(err))
		h.speakAndHangup(w, msgGenericError)
		return
	}

	callSid := r.FormValue("CallSid")
	from := r.FormValue("From")
	to := r.FormValue("To")
	callStatus := r.FormValue("CallStatus")

	logger.Base().Info("inbound call webhook",
		zap.String("call_sid", callSid),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("call_status", callStatus))

	t, found := h.resolver.Resolve(r.Context(), to)
	if !found {
		logger.Base().Info("inbound call to unbound number",
			zap.String("call_sid", callSid),
			zap.String("to", to))
		h.speakAndHangup(w, msgNumberNotInService)
		return
	}

	agentID := t.AgentID
	if agentID == "" {
		agentID = h.config.DefaultAgentID
	}
	if agentID == "" {
		logger.Base().Warn("no voice agent configured for tenant",
			zap.String("tenant_id", t.TenantID))
		h.speakAndHangup(w, msgAgentNotConfigured)
		return
	}

	if h.agentAvailable != nil && !h.agentAvailable() {
		logger.Base().Warn("voice agent unavailable, rejecting call",
			zap.String("tenant_id", t.TenantID))
		h.speakAndHangup(w, msgAgentUnavailable)
		return
	}

	streamURL := h.buildStreamURL(agentID, t.TenantID, callSid)
	h.connectToBridge(w, streamURL, t, from, callStatus)
}

// buildStreamURL assembles the carrier-facing media stream URL with the
// routing identity embedded as query parameters.
func (h *VoiceWebhookHandler) buildStreamURL(agentID, tenantID, callSid string) string {
	q := url.Values{}
	q.Set("agent_id", agentID)
	q.Set("tenant_id", tenantID)
	q.Set("call_id", callSid)
	return fmt.Sprintf("wss://%s/voice/media?%s", h.config.PublicHost, q.Encode())
}

// connectToBridge answers with a Connect/Stream instruction carrying the
// parameters the carrier forwards back to the bridge at stream start.
func (h *VoiceWebhookHandler) connectToBridge(w http.ResponseWriter, streamURL string, t *domain.VoiceTenant, from, callStatus string) {
	params := []twiml.Element{
		&twiml.VoiceParameter{Name: "tenant_name", Value: t.TenantName},
		&twiml.VoiceParameter{Name: "caller_number", Value: from},
		&twiml.VoiceParameter{Name: "call_status", Value: callStatus},
	}
	if t.BusinessHours != "" {
		params = append(params, &twiml.VoiceParameter{Name: "business_hours", Value: t.BusinessHours})
	}

	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{
			&twiml.VoiceStream{
				Url:           streamURL,
				InnerElements: params,
			},
		},
	}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		logger.Base().Error("failed to render connect twiml", zap.Error(err))
		h.speakAndHangup(w, msgGenericError)
		return
	}
	writeTwiML(w, doc)
}

// speakAndHangup answers with a spoken message followed by a hangup.
func (h *VoiceWebhookHandler) speakAndHangup(w http.ResponseWriter, message string) {
	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: message},
		&twiml.VoiceHangup{},
	})
	if err != nil {
		// Last resort: the response must still be valid call-control markup.
		doc = "<?xml version=\"1.0\" encoding=\"UTF-8\"?><Response><Say>" + msgGenericError + "</Say><Hangup/></Response>"
	}
	writeTwiML(w, doc)
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
