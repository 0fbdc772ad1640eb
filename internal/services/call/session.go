package call

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// SessionState tracks where a bridged call is in its lifecycle.
type SessionState int32

const (
	StateAwaitStart SessionState = iota
	StateStreaming
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitStart:
		return "await_start"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// CallSession is the in-memory record of one active bridged call. The
// session exclusively owns both sockets; nothing outside the session's own
// lifecycle events touches them.
type CallSession struct {
	StreamSid        string
	CallSid          string
	TenantID         string
	AgentID          string
	CustomParameters map[string]string
	StartTime        time.Time

	// ingress is the carrier leg. Written only by the agent read goroutine.
	ingress *websocket.Conn

	// egress is the agent leg, nil until the handshake completes. Written by
	// both the carrier read goroutine (audio) and the agent read goroutine
	// (pong), hence the mutex. closed is set under the same mutex so a late
	// agent handshake cannot attach a socket to a torn-down session.
	egressMu sync.Mutex
	egress   *websocket.Conn
	closed   bool

	state     atomic.Int32
	closeOnce sync.Once
}

// State returns the current lifecycle state.
func (s *CallSession) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *CallSession) setState(st SessionState) {
	s.state.Store(int32(st))
}

// SetEgress attaches the agent socket once its handshake completes. Returns
// false when the session was closed while the dial was in flight; the
// connection is not attached and the caller still owns it.
func (s *CallSession) SetEgress(conn *websocket.Conn) bool {
	s.egressMu.Lock()
	defer s.egressMu.Unlock()
	if s.closed {
		return false
	}
	s.egress = conn
	return true
}

// markStreaming moves the session from await_start to streaming. Returns
// false when teardown already advanced the state past await_start.
func (s *CallSession) markStreaming() bool {
	return s.state.CompareAndSwap(int32(StateAwaitStart), int32(StateStreaming))
}

// EgressOpen reports whether the agent socket is attached.
func (s *CallSession) EgressOpen() bool {
	s.egressMu.Lock()
	defer s.egressMu.Unlock()
	return s.egress != nil
}

// WriteEgressJSON writes a frame to the agent socket. Returns false when the
// socket is not open yet, so callers can drop frames racing the handshake.
func (s *CallSession) WriteEgressJSON(v interface{}) (bool, error) {
	s.egressMu.Lock()
	defer s.egressMu.Unlock()
	if s.egress == nil {
		return false, nil
	}
	return true, s.egress.WriteJSON(v)
}

// WriteIngressJSON writes a frame to the carrier socket.
func (s *CallSession) WriteIngressJSON(v interface{}) error {
	return s.ingress.WriteJSON(v)
}

// Close tears down both sockets exactly once and marks the session closed.
// Safe to call from any goroutine and with either socket already gone.
func (s *CallSession) Close() {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		s.egressMu.Lock()
		s.closed = true
		if s.egress != nil {
			_ = s.egress.Close()
		}
		s.egressMu.Unlock()
		if s.ingress != nil {
			_ = s.ingress.Close()
		}
		s.setState(StateClosed)
	})
}
