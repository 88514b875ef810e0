package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientMessageChatRoundTrip(t *testing.T) {
	raw := `{"type":"chat","chat":{"content":"hello","project_id":"p1"}}`

	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.Equal(t, TypeChat, msg.Type)
	require.NotNil(t, msg.Chat)
	require.Equal(t, "hello", msg.Chat.Content)
	require.Equal(t, "p1", msg.Chat.ProjectID)
	require.Nil(t, msg.ProjectCommand)

	out, err := json.Marshal(msg)
	require.NoError(t, err)

	var roundTripped ClientMessage
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	require.Equal(t, msg.Chat.Content, roundTripped.Chat.Content)
}

func TestClientMessageCommandVariant(t *testing.T) {
	raw := `{"type":"git_command","git_command":{"method":"status","params":{"branch":"main"}}}`

	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.Equal(t, TypeGitCommand, msg.Type)
	require.NotNil(t, msg.GitCommand)
	require.Equal(t, "status", msg.GitCommand.Method)
	require.JSONEq(t, `{"branch":"main"}`, string(msg.GitCommand.Params))
}

func TestServerEventErrorMarshal(t *testing.T) {
	ev := ServerEvent{Type: TypeError, Error: &ErrorEvent{Message: "boom", Code: "internal"}}

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"error","error":{"message":"boom","code":"internal"}}`, string(out))
}

func TestServerEventChatCompleteMarshal(t *testing.T) {
	ev := ServerEvent{
		Type: TypeChatComplete,
		ChatComplete: &ChatCompleteEvent{
			UserMessageID:      "u1",
			AssistantMessageID: "a1",
			Content:            "done",
		},
	}

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"chat_complete","chat_complete":{"user_message_id":"u1","assistant_message_id":"a1","content":"done"}}`, string(out))
}

func TestStreamEndIsStatusEvent(t *testing.T) {
	ev := StreamEnd()
	require.Equal(t, TypeStatus, ev.Type)
	require.Equal(t, "stream_end", ev.Status.Message)
}

func TestChanSinkSendAndDrain(t *testing.T) {
	sink := NewChanSink(2)

	require.NoError(t, sink.Send(ServerEvent{Type: TypeStream, Stream: &StreamEvent{Delta: "a"}}))
	require.NoError(t, sink.Send(ServerEvent{Type: TypeStream, Stream: &StreamEvent{Delta: "b"}}))

	require.Error(t, sink.Send(ServerEvent{Type: TypeStream, Stream: &StreamEvent{Delta: "c"}}))

	first := <-sink.Events()
	require.Equal(t, "a", first.Stream.Delta)
	second := <-sink.Events()
	require.Equal(t, "b", second.Stream.Delta)

	sink.Close()
}
