package elevenlabs

import "encoding/json"

// Audio format pinned on both legs of the bridge. Twilio Media Streams only
// speaks mu-law at 8 kHz; the agent defaults to pcm_16000 and disconnects on
// a format mismatch, so every initiation payload must carry these overrides.
const (
	TelephonyAudioFormat = "ulaw_8000"
	DefaultLanguage      = "en"
)

// ConversationInitiationClientData is the one-time frame sent to the agent
// right after the conversation socket opens.
type ConversationInitiationClientData struct {
	Type                       string                     `json:"type"`
	ConversationConfigOverride ConversationConfigOverride `json:"conversation_config_override"`
	DynamicVariables           map[string]string          `json:"dynamic_variables,omitempty"`
}

// ConversationConfigOverride carries per-conversation agent settings.
type ConversationConfigOverride struct {
	Agent AgentOverride `json:"agent"`
	TTS   TTSOverride   `json:"tts"`
}

// AgentOverride configures the agent leg of a conversation.
type AgentOverride struct {
	Language             string          `json:"language,omitempty"`
	FirstMessage         string          `json:"first_message,omitempty"`
	Prompt               *PromptOverride `json:"prompt,omitempty"`
	UserInputAudioFormat string          `json:"user_input_audio_format,omitempty"`
}

// PromptOverride replaces the agent's system prompt.
type PromptOverride struct {
	Prompt string `json:"prompt"`
}

// TTSOverride configures the agent's speech output.
type TTSOverride struct {
	AgentOutputAudioFormat string `json:"agent_output_audio_format,omitempty"`
	VoiceID                string `json:"voice_id,omitempty"`
}

// NewConversationInitiation builds the initiation frame with the telephony
// audio format pinned in both directions.
func NewConversationInitiation(dynamicVariables map[string]string) ConversationInitiationClientData {
	return ConversationInitiationClientData{
		Type: "conversation_initiation_client_data",
		ConversationConfigOverride: ConversationConfigOverride{
			Agent: AgentOverride{
				Language:             DefaultLanguage,
				UserInputAudioFormat: TelephonyAudioFormat,
			},
			TTS: TTSOverride{
				AgentOutputAudioFormat: TelephonyAudioFormat,
			},
		},
		DynamicVariables: dynamicVariables,
	}
}

// AgentEvent is the envelope for all agent-to-bridge frames. Only the
// pointer matching Type is populated.
type AgentEvent struct {
	Type               string              `json:"type"`
	AudioEvent         *AudioEvent         `json:"audio_event,omitempty"`
	PingEvent          *PingEvent          `json:"ping_event,omitempty"`
	InterruptionEvent  *InterruptionEvent  `json:"interruption_event,omitempty"`
	AgentResponseEvent *AgentResponseEvent `json:"agent_response_event,omitempty"`
	UserTranscript     *UserTranscript     `json:"user_transcription_event,omitempty"`
}

// AudioEvent carries a base64 audio chunk from the agent.
type AudioEvent struct {
	AudioBase64 string          `json:"audio_base_64"`
	EventID     json.RawMessage `json:"event_id,omitempty"`
}

// PingEvent is the agent keepalive. The event id must be echoed back in a
// pong or the agent closes the connection.
type PingEvent struct {
	EventID json.RawMessage `json:"event_id"`
	PingMs  *int            `json:"ping_ms,omitempty"`
}

// InterruptionEvent signals the agent was interrupted mid-speech and its
// buffered audio should be discarded downstream.
type InterruptionEvent struct {
	EventID json.RawMessage `json:"event_id,omitempty"`
}

// AgentResponseEvent carries the agent's text response (informational).
type AgentResponseEvent struct {
	AgentResponse string `json:"agent_response"`
}

// UserTranscript carries the caller transcript (informational).
type UserTranscript struct {
	UserTranscript string `json:"user_transcript"`
}

// UserAudioChunk is the bridge-to-agent audio envelope.
type UserAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// Pong answers a PingEvent, echoing its event id verbatim.
type Pong struct {
	Type    string          `json:"type"`
	EventID json.RawMessage `json:"event_id"`
}

// NewPong builds the reply for a ping event.
func NewPong(eventID json.RawMessage) Pong {
	return Pong{Type: "pong", EventID: eventID}
}
