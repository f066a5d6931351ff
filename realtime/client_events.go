package realtime

// Client event types sent upstream.
const (
	ClientEventSessionUpdate          EventType = "session.update"
	ClientEventInputAudioBufferAppend EventType = "input_audio_buffer.append"
	ClientEventConversationItemCreate EventType = "conversation.item.create"
	ClientEventResponseCreate         EventType = "response.create"
)

// ClientEvent is any event the relay may send to the remote model.
type ClientEvent interface {
	ClientEventType() EventType
}

// SessionUpdateEvent carries the one-time session configuration.
type SessionUpdateEvent struct {
	Type    EventType     `json:"type"`
	Session SessionUpdate `json:"session"`
}

func (e SessionUpdateEvent) ClientEventType() EventType { return e.Type }

// SessionUpdate is the session configuration block.
type SessionUpdate struct {
	InputAudioFormat        string                   `json:"input_audio_format,omitempty"`
	TurnDetection           *TurnDetection           `json:"turn_detection,omitempty"`
	InputAudioTranscription *InputAudioTranscription `json:"input_audio_transcription,omitempty"`
	Voice                   string                   `json:"voice,omitempty"`
	Instructions            string                   `json:"instructions,omitempty"`
	Modalities              []string                 `json:"modalities,omitempty"`
}

// TurnDetection holds the server-side voice-activity-detection parameters.
type TurnDetection struct {
	Type              string  `json:"type,omitempty"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

// InputAudioTranscription selects the transcription model for user audio.
type InputAudioTranscription struct {
	Model string `json:"model,omitempty"`
}

// NewSessionUpdate wraps a configuration block in a session.update event.
func NewSessionUpdate(s SessionUpdate) SessionUpdateEvent {
	return SessionUpdateEvent{Type: ClientEventSessionUpdate, Session: s}
}

// InputAudioBufferAppendEvent appends one audio chunk to the input buffer.
// The audio payload is base64 and passed through opaquely.
type InputAudioBufferAppendEvent struct {
	Type  EventType `json:"type"`
	Audio string    `json:"audio"`
}

func (e InputAudioBufferAppendEvent) ClientEventType() EventType { return e.Type }

// NewInputAudioBufferAppend creates an input_audio_buffer.append event.
func NewInputAudioBufferAppend(audio string) InputAudioBufferAppendEvent {
	return InputAudioBufferAppendEvent{Type: ClientEventInputAudioBufferAppend, Audio: audio}
}

// ConversationItemCreateEvent adds one item to the remote conversation.
type ConversationItemCreateEvent struct {
	Type EventType        `json:"type"`
	Item ConversationItem `json:"item"`
}

func (e ConversationItemCreateEvent) ClientEventType() EventType { return e.Type }

// ConversationItem is the inner item object of a create event.
type ConversationItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ItemContent `json:"content,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

// ItemContent is one content part of a conversation item.
type ItemContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewUserTextItem creates a user message item with a single text part.
func NewUserTextItem(text string) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{
		Type: ClientEventConversationItemCreate,
		Item: ConversationItem{
			Type: "message",
			Role: "user",
			Content: []ItemContent{
				{Type: "input_text", Text: text},
			},
		},
	}
}

// NewFunctionCallOutputItem creates a function_call_output item answering an
// earlier function call.
func NewFunctionCallOutputItem(callID, output string) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{
		Type: ClientEventConversationItemCreate,
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
}

// ResponseCreateEvent asks the model to produce a new response.
type ResponseCreateEvent struct {
	Type EventType `json:"type"`
}

func (e ResponseCreateEvent) ClientEventType() EventType { return e.Type }

// NewResponseCreate creates a response.create event.
func NewResponseCreate() ResponseCreateEvent {
	return ResponseCreateEvent{Type: ClientEventResponseCreate}
}
