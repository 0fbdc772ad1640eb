package call

// Twilio Media Streams envelopes, both directions of the carrier leg.
// https://www.twilio.com/docs/voice/media-streams/websocket-messages

type mediaStreamMessage struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid,omitempty"`
	Start     *startFrame `json:"start,omitempty"`
	Media     *mediaFrame `json:"media,omitempty"`
	Mark      *markFrame  `json:"mark,omitempty"`
	Stop      *stopFrame  `json:"stop,omitempty"`
}

type startFrame struct {
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      mediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters"`
}

type mediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type mediaFrame struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"` // base64 encoded audio
}

type markFrame struct {
	Name string `json:"name"`
}

type stopFrame struct {
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`
}

// outboundMediaMessage is the bridge-to-carrier audio envelope, tagged with
// the stream sid of the session it belongs to.
type outboundMediaMessage struct {
	Event     string               `json:"event"`
	StreamSid string               `json:"streamSid"`
	Media     outboundMediaPayload `json:"media"`
}

type outboundMediaPayload struct {
	Payload string `json:"payload"`
}

// clearMessage tells the carrier to discard buffered outbound audio, used
// when the agent is interrupted mid-speech.
type clearMessage struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

func newOutboundMedia(streamSid, payload string) outboundMediaMessage {
	return outboundMediaMessage{
		Event:     "media",
		StreamSid: streamSid,
		Media:     outboundMediaPayload{Payload: payload},
	}
}

func newClear(streamSid string) clearMessage {
	return clearMessage{Event: "clear", StreamSid: streamSid}
}
