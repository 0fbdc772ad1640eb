package handler

import (
	"net/http"
	"os"

	"github.com/cpetrula/tonris-sub001/internal/adapters/elevenlabs"
	"github.com/cpetrula/tonris-sub001/internal/config"
	"github.com/cpetrula/tonris-sub001/internal/core/session"
	"github.com/cpetrula/tonris-sub001/internal/repository"
	"github.com/cpetrula/tonris-sub001/internal/services/call"
	"github.com/cpetrula/tonris-sub001/internal/services/tenant"
	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"github.com/cpetrula/tonris-sub001/pkg/redis"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config         *config.BridgeConfig
	service        *call.BridgeService
	resolver       *tenant.PhoneResolver
	repoManager    repository.RepositoryManager
	redisSvc       *redis.RedisService
	sessionMonitor *session.Manager
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.BridgeConfig) (*HandlerManager, error) {
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Redis is optional: without it the bridge runs single-instance with no
	// cross-pod session visibility.
	redisSvc := newRedisFromEnv()

	var sessionMonitor *session.Manager
	if redisSvc != nil {
		podID := cfg.InstanceID
		if podID == "" {
			podID = "default-pod"
		}
		sessionMonitor = session.NewManager(redisSvc, podID)
		logger.Base().Info("session monitor initialized", zap.String("pod_id", podID))
	}

	agentClient := elevenlabs.NewClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsBaseURL)
	service := call.NewBridgeService(cfg, agentClient, sessionMonitor)
	resolver := tenant.NewPhoneResolver(repoManager.VoiceTenant())

	return &HandlerManager{
		config:         cfg,
		service:        service,
		resolver:       resolver,
		repoManager:    repoManager,
		redisSvc:       redisSvc,
		sessionMonitor: sessionMonitor,
	}, nil
}

func newRedisFromEnv() *redis.RedisService {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return nil
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	svc, err := redis.NewRedisService(&redis.RedisConfig{
		Host:     host,
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	if err != nil {
		logger.Base().Warn("failed to initialize redis, running without session monitor", zap.Error(err))
		return nil
	}
	return svc
}

// GetService returns the bridge service for shutdown coordination.
func (hm *HandlerManager) GetService() *call.BridgeService {
	return hm.service
}

// Close releases database and redis connections.
func (hm *HandlerManager) Close() {
	if hm.repoManager != nil {
		if err := hm.repoManager.Close(); err != nil {
			logger.Base().Warn("error closing database", zap.Error(err))
		}
	}
	if hm.redisSvc != nil {
		if err := hm.redisSvc.Close(); err != nil {
			logger.Base().Warn("error closing redis", zap.Error(err))
		}
	}
}

// SetupAllRoutes sets up all application routes
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(GlobalLoggingMiddleware)
	if hm.config.EnableCORS {
		router.Use(CORSMiddleware)
	}

	// Carrier webhooks and the media stream socket
	voiceHandler := NewVoiceWebhookHandler(hm.config, hm.resolver, hm.service.AgentClient().Available)
	voiceHandler.SetupVoiceRoutes(router)
	hm.service.SetupRoutes(router)

	// Agent platform webhook
	initiationHandler := NewInitiationWebhookHandler(hm.config, hm.repoManager.VoiceTenant())
	initiationHandler.SetupInitiationRoutes(router)

	hm.SetupAPIRoutes(router)

	logger.Base().Info("all application routes registered")
}

// SetupAPIRoutes sets up management API routes and middleware
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(LoggingMiddleware)
	apiRouter.Use(APIKeyMiddleware(hm.config.APIKeySecret))

	tenantHandler := NewTenantHandler(hm.repoManager.VoiceTenant())
	tenantHandler.SetupTenantRoutes(apiRouter)

	monitorHandler := NewMonitorHandler(hm.service, hm.sessionMonitor, hm.repoManager, hm.config.InstanceID)
	monitorHandler.SetupMonitorRoutes(router, apiRouter)

	router.PathPrefix("/api/").HandlerFunc(handleCORS).Methods("OPTIONS")
}

// handleCORS handles preflight OPTIONS requests
func handleCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
	w.WriteHeader(http.StatusOK)
}
