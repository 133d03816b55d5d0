// Package rpc defines the request/response protocol between CLI clients
// and the workspace daemon, and the client side of it. Transport is
// newline-delimited JSON over a unix socket: one request line in, one
// response line out, connection closed.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Methods understood by the daemon.
const (
	MethodHealth   = "health"
	MethodSync     = "sync"
	MethodShutdown = "shutdown"
	MethodVersion  = "version"
)

// Error codes carried in Response.Code.
const (
	CodeVersionMismatch = "version_mismatch"
	CodeUnknownMethod   = "unknown_method"
	CodeInternal        = "internal"
)

var (
	// ErrDaemonUnreachable means no daemon answered on the socket.
	ErrDaemonUnreachable = errors.New("daemon unreachable")
	// ErrVersionMismatch means a daemon answered but runs a different
	// binary version than the client.
	ErrVersionMismatch = errors.New("daemon version mismatch")
)

// DefaultTimeout bounds a whole request/response exchange. The daemon
// answers most methods from memory, so anything slower means it is
// wedged.
const DefaultTimeout = 3 * time.Second

// SyncTimeout bounds a forced sync request, which runs git against a
// remote before answering.
const SyncTimeout = 2 * time.Minute

// Request is one client call.
type Request struct {
	Method string `json:"method"`
	// Version is the client's binary version; the daemon rejects
	// mismatches instead of serving them.
	Version string          `json:"version"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response is the daemon's answer.
type Response struct {
	Status string          `json:"status"` // "ok" or "error"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// OK builds a success response carrying data.
func OK(data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return Fail(CodeInternal, fmt.Sprintf("marshal response: %v", err))
	}
	return Response{Status: "ok", Data: raw}
}

// Fail builds an error response.
func Fail(code, message string) Response {
	return Response{Status: "error", Error: message, Code: code}
}

// HealthInfo is the payload of a health response.
type HealthInfo struct {
	PID           int       `json:"pid"`
	InstanceID    string    `json:"instance_id"`
	Version       string    `json:"version"`
	Workspace     string    `json:"workspace"`
	StartedAt     time.Time `json:"started_at"`
	PendingSync   bool      `json:"pending_sync"`
	LastSyncAt    time.Time `json:"last_sync_at,omitempty"`
	LastSyncError string    `json:"last_sync_error,omitempty"`
}

// VersionInfo is the payload of a version response.
type VersionInfo struct {
	Version string `json:"version"`
}

// Client issues requests against one daemon socket. A Client dials a
// fresh connection per call; connections are never reused.
type Client struct {
	socketPath string
	version    string
	timeout    time.Duration
}

func NewClient(socketPath, version string) *Client {
	return &Client{socketPath: socketPath, version: version, timeout: DefaultTimeout}
}

// Call sends one request and decodes the response data into reply
// (which may be nil). Transport failures map to ErrDaemonUnreachable,
// rejected versions to ErrVersionMismatch.
func (c *Client) Call(ctx context.Context, method string, args, reply any) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.socketPath, ErrDaemonUnreachable)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	req := Request{Method: method, Version: c.version}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("marshal args: %w", err)
		}
		req.Args = raw
	}
	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return fmt.Errorf("send request: %w", ErrDaemonUnreachable)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read response: %w", ErrDaemonUnreachable)
	}
	if resp.Status != "ok" {
		if resp.Code == CodeVersionMismatch {
			return fmt.Errorf("%s: %w", resp.Error, ErrVersionMismatch)
		}
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	if reply != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, reply); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// Health fetches the daemon's health snapshot.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var info HealthInfo
	if err := c.Call(ctx, MethodHealth, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Sync asks the daemon for an immediate reconciliation cycle and blocks
// until it finishes.
func (c *Client) Sync(ctx context.Context) error {
	sc := *c
	sc.timeout = SyncTimeout
	return sc.Call(ctx, MethodSync, nil, nil)
}

// Shutdown asks the daemon to exit cooperatively.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.Call(ctx, MethodShutdown, nil, nil)
}

// Version fetches the daemon's binary version. Unlike other methods the
// daemon answers this one even for mismatched clients, so callers can
// report what is actually running.
func (c *Client) Version(ctx context.Context) (string, error) {
	var info VersionInfo
	if err := c.Call(ctx, MethodVersion, nil, &info); err != nil {
		return "", err
	}
	return info.Version, nil
}
