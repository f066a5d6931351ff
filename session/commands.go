package session

import (
	"github.com/bytedance/sonic"

	"github.com/room4-2/voicerelay/messages"
	"github.com/room4-2/voicerelay/realtime"
)

type functionResult struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// handleCommand translates one inbound client message into remote traffic.
// Malformed payloads come back to the client as console diagnostics; they
// never end the loop.
func (s *Session) handleCommand(m messages.Message) {
	switch m.Kind {
	case messages.KindAudio:
		s.sendRemote(realtime.NewInputAudioBufferAppend(m.Payload))

	case messages.KindUser:
		s.sendRemote(realtime.NewUserTextItem(m.Payload))

	case messages.KindInterrupt:
		s.sendRemote(realtime.NewResponseCreate())

	case messages.KindFunction:
		var result functionResult
		if err := sonic.UnmarshalString(m.Payload, &result); err != nil {
			s.queueMessage(messages.NewConsole("invalid function payload: " + err.Error()))
			return
		}
		// The output item and the response request must land contiguously.
		s.sendRemote(
			realtime.NewFunctionCallOutputItem(result.CallID, result.Output),
			realtime.NewResponseCreate(),
		)

	default:
		s.queueMessage(messages.NewConsole("unhandled message kind: " + string(m.Kind)))
	}
}

// Enqueue defers a conversation-item create until the current response
// finishes; the remote-read loop flushes the queue on response.done and
// follows it with one response.create. This is the entry point for callers
// that want to hold items back while ResponseActive is set.
func (s *Session) Enqueue(ev realtime.ClientEvent) {
	s.pending.Enqueue(ev)
}
