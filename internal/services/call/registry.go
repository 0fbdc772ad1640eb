package call

import (
	"sync"

	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"go.uber.org/zap"
)

// SessionRegistry holds the active bridge sessions keyed by stream sid. It
// holds non-owning references: sockets are closed only through the session
// itself, and TerminateAll.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*CallSession
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*CallSession),
	}
}

// InsertIfAbsent registers the session under its stream sid. Returns false
// without replacing anything when the sid is already present, so repeated
// "start" frames cannot produce duplicate sessions.
func (r *SessionRegistry) InsertIfAbsent(s *CallSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.StreamSid]; exists {
		return false
	}
	r.sessions[s.StreamSid] = s
	return true
}

// Get returns the session for the given stream sid, or nil.
func (r *SessionRegistry) Get(streamSid string) *CallSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[streamSid]
}

// Remove deregisters the session with the given stream sid. Returns true
// when a session was actually present.
func (r *SessionRegistry) Remove(streamSid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[streamSid]; !exists {
		return false
	}
	delete(r.sessions, streamSid)
	return true
}

// Count returns the number of active sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a copy of the active session list.
func (r *SessionRegistry) Snapshot() []*CallSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*CallSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// TerminateAll force-closes every session's sockets and clears the map.
// Returns the number of sessions terminated.
func (r *SessionRegistry) TerminateAll() int {
	r.mu.Lock()
	sessions := make([]*CallSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*CallSession)
	r.mu.Unlock()

	for _, s := range sessions {
		logger.Base().Warn("force-terminating session",
			zap.String("stream_sid", s.StreamSid),
			zap.String("call_sid", s.CallSid))
		s.Close()
	}
	return len(sessions)
}
