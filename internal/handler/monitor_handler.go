package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cpetrula/tonris-sub001/internal/core/session"
	"github.com/cpetrula/tonris-sub001/internal/repository"
	"github.com/cpetrula/tonris-sub001/internal/services/call"
	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MonitorHandler exposes health and live-session introspection endpoints.
type MonitorHandler struct {
	service        *call.BridgeService
	sessionMonitor *session.Manager
	repoManager    repository.RepositoryManager
	instanceID     string
}

// NewMonitorHandler creates a new monitor handler. sessionMonitor may be nil.
func NewMonitorHandler(service *call.BridgeService, sessionMonitor *session.Manager, repoManager repository.RepositoryManager, instanceID string) *MonitorHandler {
	return &MonitorHandler{
		service:        service,
		sessionMonitor: sessionMonitor,
		repoManager:    repoManager,
		instanceID:     instanceID,
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Sessions   int    `json:"sessions"`
	Database   string `json:"database,omitempty"`
}

type sessionInfo struct {
	StreamSid string `json:"stream_sid"`
	CallSid   string `json:"call_sid"`
	TenantID  string `json:"tenant_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	PodID     string `json:"pod_id,omitempty"`
	State     string `json:"state"`
	StartTime string `json:"start_time"`
	Duration  string `json:"duration"`
}

type sessionsResponse struct {
	Count    int           `json:"count"`
	Sessions []sessionInfo `json:"sessions"`
}

// rejectWhileDraining answers 503 once shutdown has begun. The session
// endpoints stop taking new requests together with the media endpoint;
// /health stays up for liveness probes and reports the draining status.
func (h *MonitorHandler) rejectWhileDraining(w http.ResponseWriter) bool {
	if h.service.Draining() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return true
	}
	return false
}

// HandleHealth reports service liveness and a database reachability check.
func (h *MonitorHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.service.Draining() {
		status = "draining"
	}
	resp := healthResponse{
		Status:     status,
		InstanceID: h.instanceID,
		Sessions:   h.service.Registry().Count(),
	}
	if h.repoManager != nil {
		if err := h.repoManager.Ping(r.Context()); err != nil {
			resp.Database = "unreachable"
		} else {
			resp.Database = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleSessions lists the live bridged calls on this instance.
func (h *MonitorHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if h.rejectWhileDraining(w) {
		return
	}

	now := time.Now()
	snapshot := h.service.Registry().Snapshot()

	resp := sessionsResponse{
		Count:    len(snapshot),
		Sessions: make([]sessionInfo, 0, len(snapshot)),
	}
	for _, s := range snapshot {
		resp.Sessions = append(resp.Sessions, sessionInfo{
			StreamSid: s.StreamSid,
			CallSid:   s.CallSid,
			TenantID:  s.TenantID,
			AgentID:   s.AgentID,
			State:     s.State().String(),
			StartTime: s.StartTime.UTC().Format(time.RFC3339),
			Duration:  now.Sub(s.StartTime).Round(time.Second).String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleGetSession returns one session. Local sessions are served from the
// registry; otherwise the Redis mirror is consulted, so any pod can answer
// for a session owned by another pod.
func (h *MonitorHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if h.rejectWhileDraining(w) {
		return
	}

	streamSid := mux.Vars(r)["stream_sid"]
	now := time.Now()

	if s := h.service.Registry().Get(streamSid); s != nil {
		h.writeSessionInfo(w, sessionInfo{
			StreamSid: s.StreamSid,
			CallSid:   s.CallSid,
			TenantID:  s.TenantID,
			AgentID:   s.AgentID,
			PodID:     h.instanceID,
			State:     s.State().String(),
			StartTime: s.StartTime.UTC().Format(time.RFC3339),
			Duration:  now.Sub(s.StartTime).Round(time.Second).String(),
		})
		return
	}

	if h.sessionMonitor != nil {
		info, err := h.sessionMonitor.GetSession(r.Context(), streamSid)
		if err != nil {
			logger.Base().Warn("failed to read session mirror",
				zap.String("stream_sid", streamSid), zap.Error(err))
			http.Error(w, "failed to read session record", http.StatusInternalServerError)
			return
		}
		if info != nil {
			h.writeSessionInfo(w, sessionInfo{
				StreamSid: info.StreamSid,
				CallSid:   info.CallSid,
				TenantID:  info.TenantID,
				AgentID:   info.AgentID,
				PodID:     info.PodID,
				State:     "remote",
				StartTime: info.StartTime.UTC().Format(time.RFC3339),
				Duration:  now.Sub(info.StartTime).Round(time.Second).String(),
			})
			return
		}
	}

	http.Error(w, "session not found", http.StatusNotFound)
}

func (h *MonitorHandler) writeSessionInfo(w http.ResponseWriter, info sessionInfo) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// HandleTerminateSession force-closes a session. When the session is not on
// this instance a cleanup request is broadcast for whichever pod owns it.
func (h *MonitorHandler) HandleTerminateSession(w http.ResponseWriter, r *http.Request) {
	if h.rejectWhileDraining(w) {
		return
	}

	streamSid := mux.Vars(r)["stream_sid"]

	if h.service.TerminateSession(streamSid) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if h.sessionMonitor != nil {
		if err := h.sessionMonitor.NotifyCleanup(r.Context(), streamSid); err != nil {
			http.Error(w, "failed to broadcast cleanup", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	http.Error(w, "session not found", http.StatusNotFound)
}

// SetupMonitorRoutes registers health and session introspection routes.
func (h *MonitorHandler) SetupMonitorRoutes(router *mux.Router, apiRouter *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
	apiRouter.HandleFunc("/voice/sessions", h.HandleSessions).Methods("GET")
	apiRouter.HandleFunc("/voice/sessions/{stream_sid}", h.HandleGetSession).Methods("GET")
	apiRouter.HandleFunc("/voice/sessions/{stream_sid}", h.HandleTerminateSession).Methods("DELETE")
}
