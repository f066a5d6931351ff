package session

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/voicerelay/messages"
	"github.com/room4-2/voicerelay/realtime"
)

func TestLifecycleStates(t *testing.T) {
	sess, _, _ := newTestSession()
	assert.Equal(t, StateIdle, sess.State())

	require.NoError(t, sess.Configure("be helpful", ConfigOptions{}))
	assert.Equal(t, StateConfigured, sess.State())

	sess.Start()
	assert.Equal(t, StateActive, sess.State())

	require.NoError(t, sess.Close())
	assert.Equal(t, StateClosed, sess.State())
}

func TestConfigureAppliesDefaults(t *testing.T) {
	sess, _, remote := newTestSession()

	require.NoError(t, sess.Configure("instructions here", ConfigOptions{}))

	sent := remote.sentEvents()
	require.Len(t, sent, 1)
	update, ok := sent[0].(realtime.SessionUpdateEvent)
	require.True(t, ok)

	assert.Equal(t, "pcm16", update.Session.InputAudioFormat)
	assert.Equal(t, "instructions here", update.Session.Instructions)
	assert.Equal(t, "sage", update.Session.Voice)
	assert.Equal(t, "whisper-1", update.Session.InputAudioTranscription.Model)
	assert.Equal(t, []string{"text", "audio"}, update.Session.Modalities)

	td := update.Session.TurnDetection
	require.NotNil(t, td)
	assert.Equal(t, "server_vad", td.Type)
	assert.Equal(t, 0.8, td.Threshold)
	assert.Equal(t, 500, td.SilenceDurationMs)
	assert.Equal(t, 300, td.PrefixPaddingMs)
}

func TestConfigureAppliesOverrides(t *testing.T) {
	sess, _, remote := newTestSession()

	threshold := 0.5
	silence := 700
	prefix := 100
	require.NoError(t, sess.Configure("x", ConfigOptions{
		Threshold:         &threshold,
		SilenceDurationMs: &silence,
		PrefixPaddingMs:   &prefix,
	}))

	update := remote.sentEvents()[0].(realtime.SessionUpdateEvent)
	assert.Equal(t, 0.5, update.Session.TurnDetection.Threshold)
	assert.Equal(t, 700, update.Session.TurnDetection.SilenceDurationMs)
	assert.Equal(t, 100, update.Session.TurnDetection.PrefixPaddingMs)
}

func TestConfigureWithoutRemoteIsNoOp(t *testing.T) {
	sess, _, _ := newTestSession()
	sess.dropRemote()

	require.NoError(t, sess.Configure("x", ConfigOptions{}))
	assert.Equal(t, StateIdle, sess.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	sess, client, remote := newTestSession()

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	assert.True(t, client.isClosed())
	assert.True(t, remote.isClosed())
	assert.True(t, sess.IsClosed())
}

func TestCloseWithRemoteAlreadyGone(t *testing.T) {
	sess, client, _ := newTestSession()
	sess.dropRemote()

	require.NotPanics(t, func() {
		require.NoError(t, sess.Close())
	})
	assert.True(t, client.isClosed(), "client must still be closed")
}

func TestCloseSwallowsHandleErrors(t *testing.T) {
	sess, client, remote := newTestSession()
	client.closeErr = errors.New("already gone")
	remote.closeErr = errors.New("already gone")

	assert.NoError(t, sess.Close())
}

func TestAttachSwapsClientConn(t *testing.T) {
	sess, oldConn, _ := newTestSession()
	newConn := newFakeClientConn()

	sess.Attach(newConn)

	assert.True(t, oldConn.isClosed(), "replaced conn must be closed")
	assert.Same(t, newConn, sess.clientConn().(*fakeClientConn))
	assert.False(t, sess.IsClosed())
}

func TestServeClientReturnsReplacedAfterAttach(t *testing.T) {
	sess, _, _ := newTestSession()

	done := make(chan error, 1)
	go func() { done <- sess.ServeClient() }()

	// Give the loop a moment to start reading, then swap the conn.
	time.Sleep(10 * time.Millisecond)
	sess.Attach(newFakeClientConn())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrReplaced)
	case <-time.After(time.Second):
		t.Fatal("ServeClient did not return after attach")
	}
}

func TestServeClientReturnsReadError(t *testing.T) {
	sess, client, _ := newTestSession()

	done := make(chan error, 1)
	go func() { done <- sess.ServeClient() }()

	client.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	case <-time.After(time.Second):
		t.Fatal("ServeClient did not return after disconnect")
	}
	assert.False(t, sess.IsClosed(), "client loop ending must not tear the session down by itself")
}

func TestServeClientMalformedFrameGetsDiagnostic(t *testing.T) {
	sess, client, remote := newTestSession()

	done := make(chan error, 1)
	go func() { done <- sess.ServeClient() }()

	client.inbound <- []byte(`{"type":"mystery","payload":"x"}`)
	client.inbound <- []byte(`not json at all`)
	client.inbound <- []byte(`{"type":"audio","payload":"chunk=="}`)
	time.Sleep(50 * time.Millisecond)
	client.Close()
	<-done

	msgs := drainMessages(sess)
	require.Len(t, msgs, 2, "one diagnostic per bad frame")
	for _, m := range msgs {
		assert.Equal(t, messages.KindConsole, m.Kind)
	}

	// the valid frame still went through
	require.Len(t, remote.sentEvents(), 1)
}

func TestWritePumpDeliversInOrder(t *testing.T) {
	sess, client, _ := newTestSession()
	sess.Start()
	defer sess.Close()

	sess.queueMessage(messages.NewUser("one"))
	sess.queueMessage(messages.NewAssistant("two"))
	sess.queueMessage(messages.NewAudio("three"))

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return len(client.written) == 3
	}, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	defer client.mu.Unlock()
	first, err := messages.Parse(client.written[0])
	require.NoError(t, err)
	assert.Equal(t, messages.KindUser, first.Kind)
	last, err := messages.Parse(client.written[2])
	require.NoError(t, err)
	assert.Equal(t, messages.KindAudio, last.Kind)
}

func TestRemoteLoopEndsOnReceiveError(t *testing.T) {
	sess, _, remote := newTestSession()
	sess.Start()
	defer sess.Close()

	// Feed one event, then end the stream.
	remote.inbound <- mustEvent(`{"type":"response.audio.delta","delta":"x"}`)
	remote.Close()

	require.Eventually(t, func() bool {
		return sess.remoteChannel() == nil
	}, time.Second, 5*time.Millisecond, "remote reference must be dropped")

	// Later commands degrade to a diagnostic instead of panicking.
	sess.handleCommand(messages.NewAudio("chunk"))
}

func TestQueueMessageAfterCloseIsDropped(t *testing.T) {
	sess, _, _ := newTestSession()
	require.NoError(t, sess.Close())

	assert.NotPanics(t, func() {
		sess.queueMessage(messages.NewConsole("late"))
	})
	assert.Empty(t, drainMessages(sess))
}
