package call

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cpetrula/tonris-sub001/internal/adapters/elevenlabs"
	"github.com/cpetrula/tonris-sub001/internal/config"
	"github.com/cpetrula/tonris-sub001/internal/core/session"
	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BridgeService owns the media stream endpoint. It bridges each carrier
// media socket to an agent conversation socket, tracking sessions in its
// registry.
type BridgeService struct {
	config      *config.BridgeConfig
	agentClient *elevenlabs.Client
	registry    *SessionRegistry

	// sessionMonitor mirrors sessions into Redis; nil when Redis is not
	// configured.
	sessionMonitor *session.Manager

	upgrader websocket.Upgrader
	draining atomic.Bool
}

// NewBridgeService creates the bridge service. sessionMonitor may be nil.
func NewBridgeService(cfg *config.BridgeConfig, agentClient *elevenlabs.Client, sessionMonitor *session.Manager) *BridgeService {
	s := &BridgeService{
		config:         cfg,
		agentClient:    agentClient,
		registry:       NewSessionRegistry(),
		sessionMonitor: sessionMonitor,
		upgrader: websocket.Upgrader{
			// The carrier connects from rotating media IPs; origin checks do
			// not apply to server-to-server WebSockets.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	if sessionMonitor != nil {
		logger.Base().Info("subscribing to session cleanup broadcasts")
		err := sessionMonitor.SubscribeToCleanup(context.Background(), func(streamSid string) {
			if sess := s.registry.Get(streamSid); sess != nil {
				logger.Base().Info("received cleanup broadcast for local session",
					zap.String("stream_sid", streamSid))
				s.closeSession(sess)
			}
		})
		if err != nil {
			logger.Base().Warn("failed to subscribe to cleanup broadcasts", zap.Error(err))
		}
	}

	return s
}

// Registry returns the session registry.
func (s *BridgeService) Registry() *SessionRegistry {
	return s.registry
}

// AgentClient returns the configured agent conversation client.
func (s *BridgeService) AgentClient() *elevenlabs.Client {
	return s.agentClient
}

// TerminateSession force-closes a local session by stream sid. Returns false
// when no such session exists on this instance.
func (s *BridgeService) TerminateSession(streamSid string) bool {
	sess := s.registry.Get(streamSid)
	if sess == nil {
		return false
	}
	logger.Base().Warn("terminating session on request",
		zap.String("stream_sid", streamSid))
	s.closeSession(sess)
	return true
}

// StopAccepting makes the media endpoint reject new connections. Used by the
// shutdown coordinator; already-open sessions keep running.
func (s *BridgeService) StopAccepting() {
	s.draining.Store(true)
}

// Draining reports whether the service has stopped accepting new work.
func (s *BridgeService) Draining() bool {
	return s.draining.Load()
}

// SetupRoutes registers the media stream WebSocket endpoint.
func (s *BridgeService) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/voice/media", s.HandleMediaStream)
}

// HandleMediaStream accepts the carrier's duplex media socket and runs the
// carrier-side read loop for the lifetime of the call.
func (s *BridgeService) HandleMediaStream(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	agentID := query.Get("agent_id")
	tenantID := query.Get("tenant_id")
	callID := query.Get("call_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Base().Error("media stream upgrade failed", zap.Error(err))
		return
	}

	logger.Base().Info("media stream connected",
		zap.String("agent_id", agentID),
		zap.String("tenant_id", tenantID),
		zap.String("call_id", callID))

	s.readCarrierLoop(conn, agentID, tenantID, callID)
}

// readCarrierLoop consumes carrier frames until "stop" or a socket error.
// The session is created on the "start" frame; media frames arriving before
// that, or before the agent socket is open, are dropped by design.
func (s *BridgeService) readCarrierLoop(conn *websocket.Conn, agentID, tenantID, callID string) {
	var sess *CallSession

	defer func() {
		if sess != nil {
			s.closeSession(sess)
		} else {
			_ = conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Base().Warn("carrier socket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var msg mediaStreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed frames are protocol noise, not a reason to drop the call.
			logger.Base().Warn("malformed carrier frame", zap.Error(err))
			continue
		}

		switch msg.Event {
		case "connected":
			logger.Base().Debug("carrier media stream handshake complete")

		case "start":
			if msg.Start == nil {
				logger.Base().Warn("start frame without start payload")
				continue
			}
			if sess != nil {
				logger.Base().Warn("duplicate start frame ignored",
					zap.String("stream_sid", msg.Start.StreamSid))
				continue
			}

			callSid := msg.Start.CallSid
			if callSid == "" {
				callSid = callID
			}
			candidate := &CallSession{
				StreamSid:        msg.Start.StreamSid,
				CallSid:          callSid,
				TenantID:         tenantID,
				AgentID:          agentID,
				CustomParameters: msg.Start.CustomParameters,
				StartTime:        time.Now(),
				ingress:          conn,
			}
			if !s.registry.InsertIfAbsent(candidate) {
				logger.Base().Warn("session already registered for stream",
					zap.String("stream_sid", candidate.StreamSid))
				continue
			}
			sess = candidate

			logger.Base().Info("call session registered",
				zap.String("stream_sid", sess.StreamSid),
				zap.String("call_sid", sess.CallSid),
				zap.String("tenant_id", sess.TenantID),
				zap.String("agent_id", sess.AgentID))

			if s.sessionMonitor != nil {
				go func(info session.SessionInfo) {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := s.sessionMonitor.Register(ctx, info); err != nil {
						logger.Base().Warn("failed to register session in redis", zap.Error(err))
					}
				}(session.SessionInfo{
					StreamSid: sess.StreamSid,
					CallSid:   sess.CallSid,
					TenantID:  sess.TenantID,
					AgentID:   sess.AgentID,
					StartTime: sess.StartTime,
				})
			}

			go s.runAgentLeg(sess)

		case "media":
			if msg.Media == nil || msg.Media.Payload == "" {
				continue
			}
			if sess == nil {
				logger.Base().Debug("media frame before start, dropping")
				continue
			}
			sent, err := sess.WriteEgressJSON(elevenlabs.UserAudioChunk{UserAudioChunk: msg.Media.Payload})
			if err != nil {
				logger.Base().Warn("failed to forward audio to agent",
					zap.String("stream_sid", sess.StreamSid),
					zap.Error(err))
				return
			}
			if !sent {
				logger.Base().Debug("agent socket not open yet, dropping media frame",
					zap.String("stream_sid", sess.StreamSid))
			}

		case "stop":
			logger.Base().Info("carrier stop frame received",
				zap.String("stream_sid", msg.StreamSid))
			return

		case "mark":
			// Playback checkpoint, not used by the bridge.

		default:
			logger.Base().Debug("unknown carrier frame type ignored",
				zap.String("event", msg.Event))
		}
	}
}

// runAgentLeg dials the agent conversation socket, sends the initiation
// frame and pumps agent events back to the carrier until either side ends
// the call.
func (s *BridgeService) runAgentLeg(sess *CallSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	agentConn, err := s.agentClient.DialConversation(ctx, sess.AgentID)
	cancel()
	if err != nil {
		logger.Base().Error("failed to open agent conversation",
			zap.String("stream_sid", sess.StreamSid),
			zap.String("agent_id", sess.AgentID),
			zap.Error(err))
		s.closeSession(sess)
		return
	}

	if !sess.SetEgress(agentConn) {
		// The call ended while the dial was in flight; the session is already
		// torn down and deregistered, so the fresh socket must not be used.
		logger.Base().Info("call ended during agent dial, discarding agent socket",
			zap.String("stream_sid", sess.StreamSid))
		_ = agentConn.Close()
		return
	}

	init := elevenlabs.NewConversationInitiation(s.dynamicVariables(sess))
	if ok, err := sess.WriteEgressJSON(init); !ok || err != nil {
		logger.Base().Error("failed to send conversation initiation",
			zap.String("stream_sid", sess.StreamSid),
			zap.Error(err))
		s.closeSession(sess)
		return
	}

	if !sess.markStreaming() {
		// Teardown raced the handshake between SetEgress and here; Close has
		// already shut both sockets and the registry entry is gone.
		return
	}
	logger.Base().Info("agent leg established, streaming",
		zap.String("stream_sid", sess.StreamSid),
		zap.String("agent_id", sess.AgentID))

	s.readAgentLoop(sess, agentConn)
}

// dynamicVariables assembles the per-call variables forwarded to the agent
// at handshake, merging the parameters the carrier echoed back at stream
// start with the session's routing identity.
func (s *BridgeService) dynamicVariables(sess *CallSession) map[string]string {
	vars := make(map[string]string, len(sess.CustomParameters)+3)
	for k, v := range sess.CustomParameters {
		vars[k] = v
	}
	if sess.TenantID != "" {
		vars["tenant_id"] = sess.TenantID
	}
	if sess.CallSid != "" {
		vars["call_sid"] = sess.CallSid
	}
	return vars
}

// readAgentLoop consumes agent events until the agent socket closes.
func (s *BridgeService) readAgentLoop(sess *CallSession, agentConn *websocket.Conn) {
	defer s.closeSession(sess)

	for {
		_, data, err := agentConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Base().Warn("agent socket closed unexpectedly",
					zap.String("stream_sid", sess.StreamSid),
					zap.Error(err))
			}
			return
		}

		var event elevenlabs.AgentEvent
		if err := json.Unmarshal(data, &event); err != nil {
			logger.Base().Warn("malformed agent frame", zap.Error(err))
			continue
		}

		switch event.Type {
		case "audio":
			if event.AudioEvent == nil || event.AudioEvent.AudioBase64 == "" {
				continue
			}
			// Guard against audio racing ahead of the carrier "start" frame.
			if sess.StreamSid == "" {
				continue
			}
			if err := sess.WriteIngressJSON(newOutboundMedia(sess.StreamSid, event.AudioEvent.AudioBase64)); err != nil {
				logger.Base().Warn("failed to forward agent audio to carrier",
					zap.String("stream_sid", sess.StreamSid),
					zap.Error(err))
				return
			}

		case "ping":
			if event.PingEvent == nil {
				continue
			}
			// The agent closes the conversation when a ping goes unanswered,
			// so the pong is sent inline before reading the next frame.
			if _, err := sess.WriteEgressJSON(elevenlabs.NewPong(event.PingEvent.EventID)); err != nil {
				logger.Base().Warn("failed to send pong",
					zap.String("stream_sid", sess.StreamSid),
					zap.Error(err))
				return
			}

		case "interruption":
			if err := sess.WriteIngressJSON(newClear(sess.StreamSid)); err != nil {
				logger.Base().Warn("failed to send clear frame to carrier",
					zap.String("stream_sid", sess.StreamSid),
					zap.Error(err))
				return
			}

		case "conversation_initiation_metadata":
			logger.Base().Debug("conversation initiation acknowledged",
				zap.String("stream_sid", sess.StreamSid))

		case "agent_response":
			if event.AgentResponseEvent != nil {
				logger.Base().Debug("agent response",
					zap.String("stream_sid", sess.StreamSid),
					zap.String("text", event.AgentResponseEvent.AgentResponse))
			}

		case "user_transcript":
			if event.UserTranscript != nil {
				logger.Base().Debug("user transcript",
					zap.String("stream_sid", sess.StreamSid),
					zap.String("text", event.UserTranscript.UserTranscript))
			}

		case "error":
			logger.Base().Warn("agent reported error",
				zap.String("stream_sid", sess.StreamSid),
				zap.ByteString("frame", data))

		default:
			logger.Base().Debug("unknown agent frame type ignored",
				zap.String("type", event.Type))
		}
	}
}

// closeSession tears down both legs and deregisters the session. Idempotent;
// both read loops and the cleanup broadcast handler funnel through here.
func (s *BridgeService) closeSession(sess *CallSession) {
	sess.Close()

	if removed := s.registry.Remove(sess.StreamSid); removed {
		logger.Base().Info("call session removed",
			zap.String("stream_sid", sess.StreamSid),
			zap.String("call_sid", sess.CallSid),
			zap.Duration("duration", time.Since(sess.StartTime)))

		if s.sessionMonitor != nil {
			go func(streamSid string) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.sessionMonitor.Unregister(ctx, streamSid); err != nil {
					logger.Base().Warn("failed to unregister session from redis", zap.Error(err))
				}
			}(sess.StreamSid)
		}
	}
}
