package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"github.com/cpetrula/tonris-sub001/pkg/redis"
	"go.uber.org/zap"
)

const (
	CleanupChannel = "voicebridge:session:cleanup"
	SessionTTL     = 1 * time.Hour
)

// SessionInfo mirrors an active bridge session into Redis for fleet-wide
// monitoring.
type SessionInfo struct {
	StreamSid string    `json:"streamSid"`
	CallSid   string    `json:"callSid"`
	PodID     string    `json:"podId"`
	TenantID  string    `json:"tenantId"`
	AgentID   string    `json:"agentId"`
	StartTime time.Time `json:"startTime"`
}

// CleanupMessage is the payload for cleanup broadcast
type CleanupMessage struct {
	StreamSid string `json:"streamSid"`
}

type Manager struct {
	redisSvc redis.RedisServiceInterface
	podID    string
}

func NewManager(redisSvc redis.RedisServiceInterface, podID string) *Manager {
	return &Manager{
		redisSvc: redisSvc,
		podID:    podID,
	}
}

// Register session for monitoring
func (m *Manager) Register(ctx context.Context, info SessionInfo) error {
	info.PodID = m.podID
	if info.StartTime.IsZero() {
		info.StartTime = time.Now()
	}

	data, _ := json.Marshal(info)
	key := m.redisSvc.GenerateKey(redis.SESSION_INFO, info.StreamSid)

	err := m.redisSvc.SetValue(ctx, key, string(data), SessionTTL)
	if err == nil {
		logger.Base().Info("session registered in redis",
			zap.String("stream_sid", info.StreamSid),
			zap.String("pod_id", m.podID))
	}
	return err
}

// Unregister session from monitoring
func (m *Manager) Unregister(ctx context.Context, streamSid string) error {
	key := m.redisSvc.GenerateKey(redis.SESSION_INFO, streamSid)
	return m.redisSvc.DelValue(ctx, key)
}

// GetSession fetches a mirrored session record by stream sid, regardless of
// which pod registered it. Returns nil with no error when no record exists.
func (m *Manager) GetSession(ctx context.Context, streamSid string) (*SessionInfo, error) {
	key := m.redisSvc.GenerateKey(redis.SESSION_INFO, streamSid)
	val, err := m.redisSvc.GetValue(ctx, key)
	if err != nil {
		if err == redis.ErrKeyNotExist {
			return nil, nil
		}
		return nil, err
	}

	var info SessionInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return nil, fmt.Errorf("corrupt session record for %s: %w", streamSid, err)
	}
	return &info, nil
}

// NotifyCleanup broadcasts a cleanup request to all pods
func (m *Manager) NotifyCleanup(ctx context.Context, streamSid string) error {
	logger.Base().Info("broadcasting session cleanup request", zap.String("stream_sid", streamSid))
	return m.redisSvc.Publish(ctx, CleanupChannel, CleanupMessage{StreamSid: streamSid})
}

// SubscribeToCleanup listens for cleanup broadcasts
func (m *Manager) SubscribeToCleanup(ctx context.Context, handler func(streamSid string)) error {
	return m.redisSvc.Subscribe(ctx, CleanupChannel, func(payload string) {
		var msg CleanupMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			logger.Base().Error("failed to unmarshal cleanup message", zap.Error(err))
			return
		}
		handler(msg.StreamSid)
	})
}
