package session

import (
	"log"

	"github.com/bytedance/sonic"

	"github.com/room4-2/voicerelay/messages"
	"github.com/room4-2/voicerelay/realtime"
)

type eventHandler func(*Session, *realtime.Event)

// remoteHandlers maps every known server event kind to its handler. Most
// kinds are reserved no-ops today; adding behavior for one is a single
// registration change here.
var remoteHandlers = map[realtime.EventType]eventHandler{
	realtime.EventError:          (*Session).handleRemoteError,
	realtime.EventSessionCreated: (*Session).handleSessionCreated,
	realtime.EventSessionUpdated: (*Session).noop,

	realtime.EventConversationCreated:         (*Session).noop,
	realtime.EventConversationItemCreated:     (*Session).noop,
	realtime.EventInputTranscriptionCompleted: (*Session).handleInputTranscriptionCompleted,
	realtime.EventInputTranscriptionFailed:    (*Session).noop,
	realtime.EventConversationItemTruncated:   (*Session).noop,
	realtime.EventConversationItemDeleted:     (*Session).noop,

	realtime.EventInputAudioBufferCommitted: (*Session).noop,
	realtime.EventInputAudioBufferCleared:   (*Session).noop,
	realtime.EventSpeechStarted:             (*Session).handleSpeechStarted,
	realtime.EventSpeechStopped:             (*Session).noop,

	realtime.EventResponseCreated:              (*Session).noop,
	realtime.EventResponseDone:                 (*Session).handleResponseDone,
	realtime.EventResponseOutputItemAdded:      (*Session).noop,
	realtime.EventResponseOutputItemDone:       (*Session).noop,
	realtime.EventResponseContentPartAdded:     (*Session).noop,
	realtime.EventResponseContentPartDone:      (*Session).noop,
	realtime.EventResponseTextDelta:            (*Session).noop,
	realtime.EventResponseTextDone:             (*Session).noop,
	realtime.EventResponseAudioTranscriptDelta: (*Session).noop,
	realtime.EventResponseAudioTranscriptDone:  (*Session).handleAudioTranscriptDone,
	realtime.EventResponseAudioDelta:           (*Session).handleAudioDelta,
	realtime.EventResponseAudioDone:            (*Session).noop,
	realtime.EventFunctionCallArgumentsDelta:   (*Session).noop,
	realtime.EventFunctionCallArgumentsDone:    (*Session).noop,

	realtime.EventRateLimitsUpdated: (*Session).noop,
}

// dispatch routes one remote event to its handler. A panic inside a handler
// degrades to a logged no-op so one bad field never ends the loop; only
// receive-level errors do that.
func (s *Session) dispatch(ev *realtime.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] handler for %s panicked: %v", s.ID, ev.Type, r)
		}
	}()

	if ev.Type != realtime.EventResponseDone {
		s.responseActive = true
	}

	handler, ok := remoteHandlers[ev.Type]
	if !ok {
		log.Printf("[%s] unhandled event type %s", s.ID, ev.Type)
		return
	}
	handler(s, ev)
}

// ResponseActive reports whether a model response cycle is in progress.
func (s *Session) ResponseActive() bool { return s.responseActive }

func (s *Session) noop(*realtime.Event) {}

// handleRemoteError is a reserved hook; protocol errors are not surfaced to
// the client yet, but they must never end the loop.
func (s *Session) handleRemoteError(ev *realtime.Event) {
	if ev.Error != nil {
		log.Printf("[%s] remote protocol error: %s %s", s.ID, ev.Error.Code, ev.Error.Message)
	}
}

func (s *Session) handleSessionCreated(ev *realtime.Event) {
	s.queueMessage(messages.NewConsole(string(ev.Raw())))
}

func (s *Session) handleInputTranscriptionCompleted(ev *realtime.Event) {
	if ev.Transcript != "" {
		s.queueMessage(messages.NewUser(ev.Transcript))
	}
}

// handleSpeechStarted signals barge-in: the client should stop local playback.
func (s *Session) handleSpeechStarted(*realtime.Event) {
	s.queueMessage(messages.NewInterrupt())
}

func (s *Session) handleAudioTranscriptDone(ev *realtime.Event) {
	if ev.Transcript != "" {
		s.queueMessage(messages.NewAssistant(ev.Transcript))
	}
}

func (s *Session) handleAudioDelta(ev *realtime.Event) {
	s.queueMessage(messages.NewAudio(ev.Delta))
}

type messageOutputPayload struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type functionCallPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	CallID    string         `json:"call_id"`
	ID        string         `json:"id"`
}

// handleResponseDone is the terminal step of one response cycle: report the
// first output item to the client, flush any deferred actions, then clear
// the response-in-flight flag.
func (s *Session) handleResponseDone(ev *realtime.Event) {
	if ev.Response != nil && len(ev.Response.Output) > 0 {
		s.reportOutput(ev.Response.Output[0])
	}

	if actions := s.pending.Drain(); len(actions) > 0 {
		s.sendRemote(append(actions, realtime.NewResponseCreate())...)
	}

	s.responseActive = false
}

func (s *Session) reportOutput(out realtime.OutputItem) {
	switch out.Type {
	case "message":
		var content any
		if len(out.Content) > 0 {
			content = out.Content[0].Transcript
		}
		payload, err := sonic.MarshalString(messageOutputPayload{
			ID:      out.ID,
			Role:    out.Role,
			Content: content,
		})
		if err != nil {
			log.Printf("[%s] encode message output: %v", s.ID, err)
			return
		}
		s.queueMessage(messages.NewConsole(payload))

	case "function_call":
		args := map[string]any{}
		if out.Arguments != "" {
			if err := sonic.UnmarshalString(out.Arguments, &args); err != nil {
				log.Printf("[%s] function call %s has unparseable arguments: %v", s.ID, out.Name, err)
				args = map[string]any{}
			}
		}
		payload, err := sonic.MarshalString(functionCallPayload{
			Name:      out.Name,
			Arguments: args,
			CallID:    out.CallID,
			ID:        out.ID,
		})
		if err != nil {
			log.Printf("[%s] encode function call output: %v", s.ID, err)
			return
		}
		s.queueMessage(messages.NewFunction(payload))

	case "function_call_output":
		payload, err := sonic.MarshalString(out)
		if err != nil {
			log.Printf("[%s] encode function call result: %v", s.ID, err)
			return
		}
		s.queueMessage(messages.NewConsole(payload))
	}
}
