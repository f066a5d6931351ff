package messages

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Kind identifies the purpose of a client-facing message.
type Kind string

const (
	KindUser      Kind = "user"      // user-side transcript or user settings
	KindAssistant Kind = "assistant" // assistant transcript
	KindAudio     Kind = "audio"     // base64 audio payload, passed through opaquely
	KindConsole   Kind = "console"   // diagnostic / informational
	KindInterrupt Kind = "interrupt" // barge-in: stop local playback
	KindMessages  Kind = "messages"  // initial conversation context
	KindFunction  Kind = "function"  // function call or function output
)

var validKinds = map[Kind]bool{
	KindUser:      true,
	KindAssistant: true,
	KindAudio:     true,
	KindConsole:   true,
	KindInterrupt: true,
	KindMessages:  true,
	KindFunction:  true,
}

// Message is the envelope spoken to and from the frontend client.
// The payload is an opaque string: JSON for structured kinds, raw
// base64/text for audio and transcripts.
type Message struct {
	Kind    Kind   `json:"type"`
	Payload string `json:"payload"`
}

// Parse decodes a client frame and validates the kind.
// Unknown kinds are rejected here, not deeper in the pipeline.
func Parse(data []byte) (Message, error) {
	var m Message
	if err := sonic.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("invalid message frame: %w", err)
	}
	if !validKinds[m.Kind] {
		return Message{}, fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return m, nil
}

// Encode serializes a message for the wire.
func (m Message) Encode() ([]byte, error) {
	return sonic.Marshal(m)
}

// NewUser creates a user-transcript message
func NewUser(payload string) Message {
	return Message{Kind: KindUser, Payload: payload}
}

// NewAssistant creates an assistant-transcript message
func NewAssistant(payload string) Message {
	return Message{Kind: KindAssistant, Payload: payload}
}

// NewAudio creates an audio message
func NewAudio(payload string) Message {
	return Message{Kind: KindAudio, Payload: payload}
}

// NewConsole creates a diagnostic message
func NewConsole(payload string) Message {
	return Message{Kind: KindConsole, Payload: payload}
}

// NewInterrupt creates an empty barge-in signal
func NewInterrupt() Message {
	return Message{Kind: KindInterrupt}
}

// NewFunction creates a function-call message
func NewFunction(payload string) Message {
	return Message{Kind: KindFunction, Payload: payload}
}
