package realtime

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// EventType names one kind of realtime event, client- or server-originated.
type EventType string

// Server event types, grouped by family.
const (
	EventError EventType = "error"

	EventSessionCreated EventType = "session.created"
	EventSessionUpdated EventType = "session.updated"

	EventConversationCreated             EventType = "conversation.created"
	EventConversationItemCreated         EventType = "conversation.item.created"
	EventInputTranscriptionCompleted     EventType = "conversation.item.input_audio_transcription.completed"
	EventInputTranscriptionFailed        EventType = "conversation.item.input_audio_transcription.failed"
	EventConversationItemTruncated       EventType = "conversation.item.truncated"
	EventConversationItemDeleted         EventType = "conversation.item.deleted"

	EventInputAudioBufferCommitted EventType = "input_audio_buffer.committed"
	EventInputAudioBufferCleared   EventType = "input_audio_buffer.cleared"
	EventSpeechStarted             EventType = "input_audio_buffer.speech_started"
	EventSpeechStopped             EventType = "input_audio_buffer.speech_stopped"

	EventResponseCreated              EventType = "response.created"
	EventResponseDone                 EventType = "response.done"
	EventResponseOutputItemAdded      EventType = "response.output_item.added"
	EventResponseOutputItemDone       EventType = "response.output_item.done"
	EventResponseContentPartAdded     EventType = "response.content_part.added"
	EventResponseContentPartDone      EventType = "response.content_part.done"
	EventResponseTextDelta            EventType = "response.text.delta"
	EventResponseTextDone             EventType = "response.text.done"
	EventResponseAudioTranscriptDelta EventType = "response.audio_transcript.delta"
	EventResponseAudioTranscriptDone  EventType = "response.audio_transcript.done"
	EventResponseAudioDelta           EventType = "response.audio.delta"
	EventResponseAudioDone            EventType = "response.audio.done"
	EventFunctionCallArgumentsDelta   EventType = "response.function_call_arguments.delta"
	EventFunctionCallArgumentsDone    EventType = "response.function_call_arguments.done"

	EventRateLimitsUpdated EventType = "rate_limits.updated"
)

// Event is one server-originated realtime event. Only the fields the relay
// actually reads are decoded; everything else stays in the raw frame.
type Event struct {
	Type       EventType    `json:"type"`
	EventID    string       `json:"event_id,omitempty"`
	ItemID     string       `json:"item_id,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Delta      string       `json:"delta,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
	Response   *Response    `json:"response,omitempty"`

	raw []byte
}

// Raw returns the original wire frame the event was parsed from.
func (e *Event) Raw() []byte { return e.raw }

// ErrorDetail carries the detail block of an error event.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// Response is the completed-response descriptor attached to response.done.
type Response struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status,omitempty"`
	Output []OutputItem `json:"output,omitempty"`
}

// OutputItem is one output of a response: a message, a function call, or a
// function call output.
type OutputItem struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type,omitempty"`
	Status    string        `json:"status,omitempty"`
	Role      string        `json:"role,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Output    string        `json:"output,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
}

// ContentPart is one content part of a message output item.
type ContentPart struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ParseEvent decodes one server frame. Event types this package has no
// constant for still parse successfully; the relay treats them as no-ops.
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := sonic.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("invalid realtime event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("realtime event missing type")
	}
	ev.raw = data
	return &ev, nil
}
