package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/voicerelay/messages"
	"github.com/room4-2/voicerelay/realtime"
)

func TestAudioCommandForwardsOpaquely(t *testing.T) {
	sess, _, remote := newTestSession()

	sess.handleCommand(messages.NewAudio("b64chunk=="))

	sent := remote.sentEvents()
	require.Len(t, sent, 1)
	app, ok := sent[0].(realtime.InputAudioBufferAppendEvent)
	require.True(t, ok)
	assert.Equal(t, realtime.ClientEventInputAudioBufferAppend, app.Type)
	assert.Equal(t, "b64chunk==", app.Audio)
	assert.Empty(t, drainMessages(sess))
}

func TestUserCommandCreatesTextItem(t *testing.T) {
	sess, _, remote := newTestSession()

	sess.handleCommand(messages.NewUser("what tents do you have?"))

	sent := remote.sentEvents()
	require.Len(t, sent, 1)
	create, ok := sent[0].(realtime.ConversationItemCreateEvent)
	require.True(t, ok)
	assert.Equal(t, "message", create.Item.Type)
	assert.Equal(t, "user", create.Item.Role)
	require.Len(t, create.Item.Content, 1)
	assert.Equal(t, "input_text", create.Item.Content[0].Type)
	assert.Equal(t, "what tents do you have?", create.Item.Content[0].Text)
}

func TestInterruptCommandRequestsResponse(t *testing.T) {
	sess, _, remote := newTestSession()

	sess.handleCommand(messages.NewInterrupt())

	sent := remote.sentEvents()
	require.Len(t, sent, 1)
	assert.Equal(t, realtime.ClientEventResponseCreate, sent[0].ClientEventType())
}

func TestFunctionCommandCreatesOutputItemAndResponse(t *testing.T) {
	sess, _, remote := newTestSession()

	sess.handleCommand(messages.NewFunction(`{"call_id":"c1","output":"42"}`))

	sent := remote.sentEvents()
	require.Len(t, sent, 2)

	create, ok := sent[0].(realtime.ConversationItemCreateEvent)
	require.True(t, ok)
	assert.Equal(t, "function_call_output", create.Item.Type)
	assert.Equal(t, "c1", create.Item.CallID)
	assert.Equal(t, "42", create.Item.Output)

	assert.Equal(t, realtime.ClientEventResponseCreate, sent[1].ClientEventType())

	// both events land in a single contiguous batch
	require.Len(t, remote.batches, 1)
	assert.Len(t, remote.batches[0], 2)
}

func TestFunctionCommandMalformedPayload(t *testing.T) {
	sess, _, remote := newTestSession()

	sess.handleCommand(messages.NewFunction(`not-json`))

	assert.Empty(t, remote.sentEvents(), "no remote action for malformed payload")
	msgs := drainMessages(sess)
	require.Len(t, msgs, 1)
	assert.Equal(t, messages.KindConsole, msgs[0].Kind)
}

func TestUnmappedKindsGetOneConsoleDiagnostic(t *testing.T) {
	for _, kind := range []messages.Kind{messages.KindAssistant, messages.KindConsole, messages.KindMessages} {
		t.Run(string(kind), func(t *testing.T) {
			sess, _, remote := newTestSession()

			sess.handleCommand(messages.Message{Kind: kind, Payload: "x"})

			assert.Empty(t, remote.sentEvents())
			msgs := drainMessages(sess)
			require.Len(t, msgs, 1)
			assert.Equal(t, messages.KindConsole, msgs[0].Kind)
		})
	}
}

func TestCommandWithRemoteGone(t *testing.T) {
	sess, _, _ := newTestSession()
	sess.dropRemote()

	sess.handleCommand(messages.NewAudio("chunk"))

	msgs := drainMessages(sess)
	require.Len(t, msgs, 1)
	assert.Equal(t, messages.KindConsole, msgs[0].Kind)
}
