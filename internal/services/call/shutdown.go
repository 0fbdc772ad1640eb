package call

import (
	"context"
	"sync"
	"time"

	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultShutdownTimeout      = 5 * time.Minute
	DefaultShutdownPollInterval = 5 * time.Second
)

// ShutdownCoordinator drains the bridge on process termination: stop new
// ingress, wait for active sessions with a bounded ceiling, then force-
// terminate whatever is left.
type ShutdownCoordinator struct {
	service *BridgeService
	timeout time.Duration
	poll    time.Duration
	once    sync.Once
}

// NewShutdownCoordinator creates the coordinator. Zero durations fall back
// to the defaults (5 minute ceiling, 5 second poll interval).
func NewShutdownCoordinator(service *BridgeService, timeout, poll time.Duration) *ShutdownCoordinator {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	if poll <= 0 {
		poll = DefaultShutdownPollInterval
	}
	return &ShutdownCoordinator{
		service: service,
		timeout: timeout,
		poll:    poll,
	}
}

// Shutdown drains active sessions. Idempotent: a second call while already
// shutting down returns immediately without doing anything.
func (c *ShutdownCoordinator) Shutdown(ctx context.Context) {
	c.once.Do(func() {
		c.drain(ctx)
	})
}

func (c *ShutdownCoordinator) drain(ctx context.Context) {
	c.service.StopAccepting()

	count := c.service.Registry().Count()
	if count == 0 {
		logger.Base().Info("no active sessions, proceeding with shutdown")
		return
	}

	logger.Base().Info("draining active sessions",
		zap.Int("count", count),
		zap.Duration("ceiling", c.timeout))

	deadline := time.Now().Add(c.timeout)
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.forceTerminate()
			return
		case <-ticker.C:
			count = c.service.Registry().Count()
			if count == 0 {
				logger.Base().Info("all sessions drained")
				return
			}
			remaining := time.Until(deadline)
			if remaining <= 0 {
				c.forceTerminate()
				return
			}
			logger.Base().Info("waiting for sessions to drain",
				zap.Int("remaining_sessions", count),
				zap.Duration("time_left", remaining))
		}
	}
}

func (c *ShutdownCoordinator) forceTerminate() {
	terminated := c.service.Registry().TerminateAll()
	if terminated > 0 {
		logger.Base().Warn("shutdown ceiling reached, sessions force-terminated",
			zap.Int("terminated", terminated))
	}
}
