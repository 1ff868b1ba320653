package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Transport is the streaming-RPC client the session manager wraps (spec.md
// §4.8). It is the external collaborator: the real Linear MCP endpoint
// speaks a JSON-RPC-shaped protocol over a persistent connection.
type Transport interface {
	// Dial opens the underlying connection and performs the
	// session-initialize handshake.
	Dial(ctx context.Context, url string, headers map[string]string) error
	// Close tears down the connection. Implementations must tolerate being
	// called without a successful Dial.
	Close() error
	// Invoke issues one request/response round-trip and returns the raw
	// decoded result payload.
	Invoke(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// rpcRequest is the minimal JSON-RPC-shaped envelope this system speaks to
// the remote endpoint.
type rpcRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// WebsocketTransport is the concrete Transport backing CallTool over a
// persistent websocket connection, grounded in the streaming hub client
// pattern: one connection, each request tagged with a fresh id. Invoke
// takes the next message read after its write as the response; the
// response id is not compared with the request id.
type WebsocketTransport struct {
	conn           *websocket.Conn
	sseReadTimeout time.Duration
}

// NewWebsocketTransport returns an unconnected WebsocketTransport with no
// per-read idle bound beyond whatever deadline the caller's context carries.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{}
}

// NewWebsocketTransportWithSSEReadTimeout is NewWebsocketTransport with an
// explicit idle-read bound (spec.md §4.8's sse_read_timeout_seconds): the
// longest gap Invoke will wait for a response once the request has been
// written, independent of the overall per-call timeout the session manager
// applies around the whole round-trip.
func NewWebsocketTransportWithSSEReadTimeout(sseReadTimeout time.Duration) *WebsocketTransport {
	return &WebsocketTransport{sseReadTimeout: sseReadTimeout}
}

func (t *WebsocketTransport) Dial(ctx context.Context, url string, headers map[string]string) error {
	httpHeader := make(map[string][]string, len(headers))
	for k, v := range headers {
		httpHeader[k] = []string{v}
	}
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: httpHeader,
	})
	if err != nil {
		return fmt.Errorf("dial remote endpoint: %w", err)
	}
	conn.SetReadLimit(16 << 20)
	t.conn = conn

	if err := t.Invoke0(ctx, "initialize"); err != nil {
		conn.Close(websocket.StatusInternalError, "initialize failed")
		t.conn = nil
		return err
	}
	return nil
}

// Invoke0 is a convenience wrapper for handshake calls that take no
// parameters and whose result is discarded.
func (t *WebsocketTransport) Invoke0(ctx context.Context, method string) error {
	_, err := t.Invoke(ctx, method, nil)
	return err
}

func (t *WebsocketTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	t.conn = nil
	return err
}

func (t *WebsocketTransport) Invoke(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("transport not connected")
	}

	req := rpcRequest{ID: uuid.NewString(), Method: method, Params: params}
	if err := wsjson.Write(ctx, t.conn, req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	readCtx := ctx
	if t.sseReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, t.sseReadTimeout)
		defer cancel()
	}

	var resp rpcResponse
	if err := wsjson.Read(readCtx, t.conn, &resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("remote error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}
