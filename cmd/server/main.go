package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cpetrula/tonris-sub001/internal/config"
	"github.com/cpetrula/tonris-sub001/internal/handler"
	"github.com/cpetrula/tonris-sub001/internal/services/call"
	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// hardExitGrace bounds how long shutdown may run past the drain ceiling
// before the process is killed outright.
const hardExitGrace = 30 * time.Second

// Server represents the voice call bridge server
type Server struct {
	config         *config.BridgeConfig
	router         *mux.Router
	handlerManager *handler.HandlerManager
	httpServer     *http.Server
}

// NewServer creates a new voice call bridge server
func NewServer(cfg *config.BridgeConfig) *Server {
	// Initialize zap logger and redirect stdlib log to it
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("Failed to initialize zap logger, falling back to std log")
	}

	router := mux.NewRouter()

	// Initialize handler manager - it will create all services internally
	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		logger.Base().Error("Failed to initialize handler manager", zap.Error(err))
		return nil
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}
}

// Start starts the bridge server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	// No WriteTimeout: media stream sockets are long-lived and a server-wide
	// write deadline would sever live calls.
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 0,
		IdleTimeout: 60 * time.Second,
	}

	logger.Base().Info("Starting server", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains active calls, then stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) {
	coordinator := call.NewShutdownCoordinator(
		s.handlerManager.GetService(),
		s.config.ShutdownTimeout,
		s.config.ShutdownPollInterval,
	)
	coordinator.Shutdown(ctx)

	if s.httpServer != nil {
		httpCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(httpCtx); err != nil {
			logger.Base().Warn("http server shutdown error", zap.Error(err))
		}
	}

	s.handlerManager.Close()
	logger.Sync()
}

// LoadConfigFromEnv loads the bridge configuration from environment
func LoadConfigFromEnv() *config.BridgeConfig {
	return &config.BridgeConfig{
		Port:       getEnvOrDefault("BRIDGE_PORT", "8080"),
		PublicHost: getEnvOrDefault("PUBLIC_HOST", "localhost:8080"),

		ElevenLabsAPIKey:  getEnvOrDefault("ELEVENLABS_API_KEY", ""),
		ElevenLabsBaseURL: getEnvOrDefault("ELEVENLABS_BASE_URL", "wss://api.elevenlabs.io"),
		DefaultAgentID:    getEnvOrDefault("ELEVENLABS_AGENT_ID", ""),

		InitiationWebhookSecret: getEnvOrDefault("INITIATION_WEBHOOK_SECRET", ""),
		APIKeySecret:            getEnvOrDefault("SECRET_KEY", ""),

		InstanceID: getDynamicInstanceID(),
		EnableCORS: getEnvAsBoolOrDefault("BRIDGE_ENABLE_CORS", true),

		ShutdownTimeout:      time.Duration(getEnvAsIntOrDefault("SHUTDOWN_TIMEOUT_SECONDS", 300)) * time.Second,
		ShutdownPollInterval: time.Duration(getEnvAsIntOrDefault("SHUTDOWN_POLL_SECONDS", 5)) * time.Second,
	}
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDynamicInstanceID generates a unique identifier for this service instance.
// It first tries the system hostname (pod name in K8s), then falls back to a
// timestamp-based ID.
func getDynamicInstanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("voice-bridge-%d", time.Now().UnixNano())
}

func main() {
	// Load .env file for local development if it exists.
	// This will not override environment variables set by Helm/Docker.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	cfg := LoadConfigFromEnv()

	server := NewServer(cfg)
	if server == nil {
		log.Fatal("Failed to create server")
	}
	logger.Base().Info("Server initialized",
		zap.String("port", cfg.Port),
		zap.String("instance_id", cfg.InstanceID))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Base().Info("shutdown signal received", zap.String("signal", sig.String()))

		// Backstop against a wedged drain: past this point the process exits
		// no matter what is still open.
		exitTimer := time.AfterFunc(cfg.ShutdownTimeout+hardExitGrace, func() {
			logger.Base().Error("shutdown exceeded hard deadline, exiting")
			os.Exit(1)
		})
		defer exitTimer.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		server.Shutdown(ctx)
		logger.Base().Info("shutdown complete")
	}
}
