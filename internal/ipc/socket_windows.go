//go:build windows

package ipc

import (
	"errors"
	"net"
)

// ErrUnsupported is returned by Listen on platforms without a named-pipe
// listener wired in yet. Windows clients fall back to the direct-DB tier
// (see internal/ipc/client) rather than failing outright.
var ErrUnsupported = errors.New("ipc: named pipe listener not implemented on this platform")

func Listen(path string) (net.Listener, error) {
	return nil, ErrUnsupported
}
