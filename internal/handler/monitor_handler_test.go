package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cpetrula/tonris-sub001/internal/adapters/elevenlabs"
	"github.com/cpetrula/tonris-sub001/internal/config"
	"github.com/cpetrula/tonris-sub001/internal/core/session"
	"github.com/cpetrula/tonris-sub001/internal/services/call"
	"github.com/cpetrula/tonris-sub001/pkg/redis"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newStubRedis() *stubRedis {
	return &stubRedis{values: make(map[string]string)}
}

func (s *stubRedis) GenerateKey(keyType redis.KeyType, identifier string) string {
	return fmt.Sprintf("%s:%s", string(keyType), identifier)
}

func (s *stubRedis) GetValue(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.values[key]
	if !ok {
		return "", redis.ErrKeyNotExist
	}
	return val, nil
}

func (s *stubRedis) SetValue(_ context.Context, key string, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *stubRedis) DelValue(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *stubRedis) Publish(_ context.Context, _ string, _ interface{}) error { return nil }

func (s *stubRedis) Subscribe(_ context.Context, _ string, _ func(string)) error { return nil }

func newMonitorForTest(t *testing.T, monitor *session.Manager) (*call.BridgeService, *mux.Router) {
	t.Helper()

	svc := call.NewBridgeService(&config.BridgeConfig{}, elevenlabs.NewClient("test-key", ""), monitor)
	h := NewMonitorHandler(svc, monitor, nil, "pod-1")

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	h.SetupMonitorRoutes(router, api)
	return svc, router
}

func serve(router *mux.Router, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthReportsDrainingStatus(t *testing.T) {
	svc, router := newMonitorForTest(t, nil)

	rec := serve(router, "GET", "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	svc.StopAccepting()

	rec = serve(router, "GET", "/health")
	require.Equal(t, http.StatusOK, rec.Code, "liveness probes must keep working during drain")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "draining", body["status"])
}

func TestSessionEndpointsRejectWhileDraining(t *testing.T) {
	svc, router := newMonitorForTest(t, nil)
	svc.StopAccepting()

	for _, tc := range []struct {
		method string
		target string
	}{
		{"GET", "/api/voice/sessions"},
		{"GET", "/api/voice/sessions/MZ1"},
		{"DELETE", "/api/voice/sessions/MZ1"},
	} {
		rec := serve(router, tc.method, tc.target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", tc.method, tc.target)
	}
}

func TestGetSessionFromLocalRegistry(t *testing.T) {
	svc, router := newMonitorForTest(t, nil)
	svc.Registry().InsertIfAbsent(&call.CallSession{
		StreamSid: "MZlocal",
		CallSid:   "CAlocal",
		TenantID:  "tenant-1",
		AgentID:   "agent-1",
		StartTime: time.Now(),
	})

	rec := serve(router, "GET", "/api/voice/sessions/MZlocal")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CAlocal", body["call_sid"])
	assert.Equal(t, "pod-1", body["pod_id"])
	assert.Equal(t, "await_start", body["state"])
}

func TestGetSessionFallsBackToRedisMirror(t *testing.T) {
	monitor := session.NewManager(newStubRedis(), "pod-2")
	require.NoError(t, monitor.Register(context.Background(), session.SessionInfo{
		StreamSid: "MZremote",
		CallSid:   "CAremote",
		TenantID:  "tenant-2",
	}))

	_, router := newMonitorForTest(t, monitor)

	rec := serve(router, "GET", "/api/voice/sessions/MZremote")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CAremote", body["call_sid"])
	assert.Equal(t, "pod-2", body["pod_id"])
	assert.Equal(t, "remote", body["state"])
}

func TestGetSessionNotFound(t *testing.T) {
	monitor := session.NewManager(newStubRedis(), "pod-2")
	_, router := newMonitorForTest(t, monitor)

	rec := serve(router, "GET", "/api/voice/sessions/MZnope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
