package elevenlabs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "wss://api.elevenlabs.io"

// Client dials conversation WebSockets against the ElevenLabs
// Conversational AI endpoint.
type Client struct {
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer
}

// NewClient creates a new conversation client. baseURL may be empty for the
// production endpoint; tests point it at a local server.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Available reports whether the client has credentials configured. This is a
// configuration check only, not a network probe.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// DialConversation opens the duplex conversation socket for the given agent.
func (c *Client) DialConversation(ctx context.Context, agentID string) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL + "/v1/convai/conversation")
	if err != nil {
		return nil, fmt.Errorf("invalid conversation endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("xi-api-key", c.apiKey)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial agent conversation (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial agent conversation: %w", err)
	}
	return conn, nil
}
