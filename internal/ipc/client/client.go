// Package client implements the hook/IPC client's three-tier fallback:
// dial the Unix socket first, fall back to querying the database directly
// if no daemon is listening, and fall back again to a no-op Unavailable
// backend if even the database can't be opened. A server response carrying
// an "overloaded" or "timeout" error permanently demotes the client to the
// direct-DB tier for the rest of its lifetime, on the theory that a daemon
// already under load is more likely to keep failing than to recover within
// one hook invocation's lifetime.
//
// Grounded on original_source's crates/mira-server/src/ipc/client/mod.rs,
// whose Backend enum (Ipc | Direct | Unavailable) this mirrors.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ConaryLabs/mira/internal/ipc"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

type tier int

const (
	tierIPC tier = iota
	tierDirect
	tierUnavailable
)

// Client is the hook process's handle onto the server. Safe for concurrent
// use; demotion between tiers is mutex-guarded.
type Client struct {
	mu            sync.Mutex
	tier          tier
	sockPath      string
	connectMillis int
	conn          net.Conn
	store         *store.Store
	nextID        int
}

// Dial attempts the Unix socket first, falling back to opening dbPath
// directly if the socket can't be reached, and to Unavailable if that also
// fails. dbPath may be empty to skip straight to the IPC-or-unavailable
// choice (e.g. in tests that only care about socket behavior).
func Dial(sockPath string, connectMillis int, dbPath string) *Client {
	c := &Client{sockPath: sockPath, connectMillis: connectMillis}

	if conn, err := net.DialTimeout("unix", sockPath, time.Duration(connectMillis)*time.Millisecond); err == nil {
		c.tier = tierIPC
		c.conn = conn
		return c
	}

	if dbPath != "" {
		if st, err := store.Open(dbPath); err == nil {
			c.tier = tierDirect
			c.store = st
			logging.IPCDebug("socket %s unreachable, falling back to direct db", sockPath)
			return c
		}
	}

	c.tier = tierUnavailable
	logging.IPCDebug("socket %s unreachable and no db fallback available", sockPath)
	return c
}

// FromStore builds a Client pinned to the direct-DB tier, for callers
// (tests, or an in-process caller that already holds the store) that never
// want to dial a socket.
func FromStore(st *store.Store) *Client {
	return &Client{tier: tierDirect, store: st}
}

// Close releases the socket connection, if one is open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Call issues op with params and decodes the result into out (which may be
// nil if the caller doesn't need the result).
func (c *Client) Call(ctx context.Context, op string, params, out interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	c.mu.Lock()
	currentTier := c.tier
	c.mu.Unlock()

	switch currentTier {
	case tierIPC:
		result, err := c.callIPC(op, raw)
		if err != nil {
			if isOverloadedOrTimeout(err) {
				c.demoteToDirect()
				return c.Call(ctx, op, params, out)
			}
			return err
		}
		return decodeResult(result, out)

	case tierDirect:
		result, err := ipc.Dispatch(ctx, c.store, op, raw)
		if err != nil {
			return err
		}
		return decodeAny(result, out)

	default:
		return fmt.Errorf("ipc client unavailable: no socket and no database fallback")
	}
}

func (c *Client) callIPC(op string, params json.RawMessage) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.nextID++
	id := fmt.Sprintf("%d", c.nextID)
	c.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("ipc: no active connection")
	}

	req := ipc.Request{ID: id, Op: op, Params: params}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(append(raw, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp ipc.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return resp.Result, nil
}

func (c *Client) demoteToDirect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tier != tierIPC {
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	logging.IPC("demoting ipc client from socket %s to direct db after server overload/timeout", c.sockPath)
	c.tier = tierDirect
}

func isOverloadedOrTimeout(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

func decodeResult(raw json.RawMessage, out interface{}) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func decodeAny(v interface{}, out interface{}) error {
	if out == nil || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal direct result: %w", err)
	}
	return json.Unmarshal(raw, out)
}
