package llmadapter

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/ConaryLabs/mira/internal/logging"
)

// sseEvent is one parsed Server-Sent Event frame: an event type and its
// accumulated data lines, joined the way the wire format requires.
type sseEvent struct {
	Type string
	Data string
}

// readSSE scans body for SSE frames and delivers each complete frame to
// emit. The scan/accumulate/dispatch-on-blank-line shape is grounded on
// internal/mcp/transport_sse.go's readLoop - the same pattern, generalized
// so a chat provider can plug in its own per-event decoding instead of MCP's
// JSON-RPC envelope.
func readSSE(ctx context.Context, body io.ReadCloser, emit func(sseEvent)) error {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var eventType string
	var data bytes.Buffer

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			if data.Len() > 0 {
				out := data.String()
				out = strings.TrimSuffix(out, "\n")
				typ := eventType
				if typ == "" {
					typ = "message"
				}
				emit(sseEvent{Type: typ, Data: out})
			}
			eventType = ""
			data.Reset()
			continue
		}

		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
			data.WriteByte('\n')
		case strings.HasPrefix(line, ":"):
			// comment/keepalive, ignore
		}
	}

	if err := scanner.Err(); err != nil {
		logging.Get(logging.CategoryLLM).Warn("SSE scan error: %v", err)
		return err
	}
	return nil
}
