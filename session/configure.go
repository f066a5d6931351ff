package session

import (
	"github.com/room4-2/voicerelay/realtime"
)

// Turn-detection defaults applied when the client omits a setting.
const (
	DefaultThreshold         = 0.8
	DefaultSilenceDurationMs = 500
	DefaultPrefixPaddingMs   = 300
)

// ConfigOptions are the optional turn-detection overrides a client may send
// during the handshake. Nil fields fall back to the defaults above.
type ConfigOptions struct {
	Threshold         *float64
	SilenceDurationMs *int
	PrefixPaddingMs   *int
}

// Configure builds the one-time session setup event and sends it upstream
// before any other traffic. Confirmation arrives later as a session.updated
// event. When the remote channel is absent the call is a no-op: the session
// was never established.
func (s *Session) Configure(instructions string, opts ConfigOptions) error {
	remote := s.remoteChannel()
	if remote == nil {
		return nil
	}

	threshold := DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	silence := DefaultSilenceDurationMs
	if opts.SilenceDurationMs != nil {
		silence = *opts.SilenceDurationMs
	}
	prefix := DefaultPrefixPaddingMs
	if opts.PrefixPaddingMs != nil {
		prefix = *opts.PrefixPaddingMs
	}

	update := realtime.NewSessionUpdate(realtime.SessionUpdate{
		InputAudioFormat: "pcm16",
		TurnDetection: &realtime.TurnDetection{
			Type:              "server_vad",
			Threshold:         threshold,
			SilenceDurationMs: silence,
			PrefixPaddingMs:   prefix,
		},
		InputAudioTranscription: &realtime.InputAudioTranscription{
			Model: s.transcriptionModel,
		},
		Voice:        s.voice,
		Instructions: instructions,
		Modalities:   []string{"text", "audio"},
	})

	if err := remote.Send(update); err != nil {
		return err
	}
	s.setState(StateConfigured)
	return nil
}
