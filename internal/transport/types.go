// Package transport defines the client message channel's wire types: a
// framed, bidirectional JSON protocol where every frame is tagged by a
// "type" discriminant. This package owns only the shape of the frames; no
// concrete socket or websocket framing is mandated here, matching the
// teacher's own split between internal/mcp's tagged types and its
// transport_http.go/transport_stdio.go/transport_sse.go implementations.
package transport

import "encoding/json"

// Inbound frame type discriminants.
const (
	TypeChat                     = "chat"
	TypeProjectCommand           = "project_command"
	TypeMemoryCommand            = "memory_command"
	TypeGitCommand               = "git_command"
	TypeFileSystemCommand        = "filesystem_command"
	TypeFileTransfer             = "file_transfer"
	TypeCodeIntelligenceCommand  = "code_intelligence_command"
	TypeDocumentCommand          = "document_command"
	TypeTerminalCommand          = "terminal_command"
)

// Outbound frame type discriminants.
const (
	TypeStatus       = "status"
	TypeStream       = "stream"
	TypeChatComplete = "chat_complete"
	TypeData         = "data"
	TypeError        = "error"
)

// ClientMessage is one inbound frame from a client. Type selects which of
// the payload fields is populated; unused fields are omitted from the wire
// encoding via their omitempty tags.
type ClientMessage struct {
	Type string `json:"type"`

	Chat                    *ChatMessage          `json:"chat,omitempty"`
	ProjectCommand          *CommandMessage       `json:"project_command,omitempty"`
	MemoryCommand           *CommandMessage       `json:"memory_command,omitempty"`
	GitCommand              *CommandMessage       `json:"git_command,omitempty"`
	FileSystemCommand       *CommandMessage       `json:"filesystem_command,omitempty"`
	FileTransfer            *FileTransferMessage  `json:"file_transfer,omitempty"`
	CodeIntelligenceCommand *CommandMessage       `json:"code_intelligence_command,omitempty"`
	DocumentCommand         *CommandMessage       `json:"document_command,omitempty"`
	TerminalCommand         *CommandMessage       `json:"terminal_command,omitempty"`
}

// ChatMessage is the Chat inbound variant: free-form user content plus
// optional project scoping and caller-supplied metadata.
type ChatMessage struct {
	Content   string          `json:"content"`
	ProjectID string          `json:"project_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// CommandMessage is the shared shape for the method/params command
// variants (ProjectCommand, MemoryCommand, GitCommand, FileSystemCommand,
// CodeIntelligenceCommand, DocumentCommand, TerminalCommand) - each one
// names an RPC-style method with opaque JSON parameters.
type CommandMessage struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// FileTransferMessage is the FileTransfer inbound variant; operation
// selects upload_start/upload_chunk/upload_complete semantics, data carries
// the operation-specific payload.
type FileTransferMessage struct {
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is one outbound frame. Exactly one of the typed fields is
// populated per Type, mirroring ClientMessage's shape on the way out.
type ServerEvent struct {
	Type string `json:"type"`

	Status       *StatusEvent       `json:"status,omitempty"`
	Stream       *StreamEvent       `json:"stream,omitempty"`
	ChatComplete *ChatCompleteEvent `json:"chat_complete,omitempty"`
	Data         *DataEvent         `json:"data,omitempty"`
	Error        *ErrorEvent        `json:"error,omitempty"`
}

// StatusEvent reports a progress marker; a message of "stream_end" is the
// sentinel a client uses to know a Stream sequence has finished.
type StatusEvent struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// StreamEvent carries one incremental token/content delta.
type StreamEvent struct {
	Delta string `json:"delta"`
}

// ChatCompleteEvent is the terminal event for a completed turn.
type ChatCompleteEvent struct {
	UserMessageID      string   `json:"user_message_id"`
	AssistantMessageID string   `json:"assistant_message_id"`
	Content            string   `json:"content"`
	Artifacts          []string `json:"artifacts,omitempty"`
	Thinking           string   `json:"thinking,omitempty"`
}

// DataEvent carries an arbitrary JSON payload in response to a command
// frame, correlated back to the request via RequestID when the caller
// supplied one.
type DataEvent struct {
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id,omitempty"`
}

// ErrorEvent reports a turn- or command-level failure. Code is one of
// internal/errs's Kind values, stringified for the wire.
type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// StreamEnd is the conventional Status event marking the end of a Stream
// sequence.
func StreamEnd() ServerEvent {
	return ServerEvent{Type: TypeStatus, Status: &StatusEvent{Message: "stream_end"}}
}

// EventSink is what the orchestrator writes outbound events to. A
// transport implementation (websocket, SSE, in-process channel) satisfies
// this without the orchestrator needing to know which.
type EventSink interface {
	Send(ServerEvent) error
}

// ChanSink is the simplest EventSink: a buffered channel a transport drains
// on its own goroutine. Send never blocks past the channel's buffer -
// a slow consumer drops events rather than stalling the turn, the same
// non-blocking-publish idiom internal/operation's Engine uses.
type ChanSink struct {
	ch chan ServerEvent
}

func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan ServerEvent, buffer)}
}

func (s *ChanSink) Send(ev ServerEvent) error {
	select {
	case s.ch <- ev:
		return nil
	default:
		return errDropped
	}
}

func (s *ChanSink) Events() <-chan ServerEvent { return s.ch }

func (s *ChanSink) Close() { close(s.ch) }

var errDropped = sinkError("event dropped: sink buffer full")

type sinkError string

func (e sinkError) Error() string { return string(e) }
