package config

import "time"

// BridgeConfig holds the call bridge service configuration.
type BridgeConfig struct {
	Port string

	// PublicHost is the externally reachable host[:port] used when building
	// the carrier-facing media stream URL (no scheme).
	PublicHost string

	// ElevenLabs configuration
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string

	// DefaultAgentID is the process-wide agent used when a tenant has no override.
	DefaultAgentID string

	// InitiationWebhookSecret enables HMAC verification of the
	// conversation-initiation webhook when non-empty.
	InitiationWebhookSecret string

	// APIKeySecret signs the JWT expected on management endpoints. Empty
	// disables the check.
	APIKeySecret string

	// Instance identifier for multi-pod monitoring and routing
	InstanceID string

	EnableCORS bool

	// Graceful shutdown: poll the active session count on ShutdownPollInterval
	// until zero or ShutdownTimeout, then force-terminate stragglers.
	ShutdownTimeout      time.Duration
	ShutdownPollInterval time.Duration
}
