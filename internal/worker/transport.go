package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"slicer/internal/exports"
)

// RenderRequest is one asset render round trip against the worker.
type RenderRequest struct {
	DocumentID string        `json:"documentId"`
	LayerID    string        `json:"layerId,omitempty"`
	Asset      exports.Asset `json:"asset"`
	FileName   string        `json:"fileName"`
	Directory  string        `json:"directory"`
}

type renderReply struct {
	Paths []string `json:"paths"`
	Error string   `json:"error,omitempty"`
}

// Conn is the transport handle the handshake produces.
type Conn interface {
	// Render asks the worker to render and write one asset, returning the
	// ordered list of written file paths.
	Render(ctx context.Context, req RenderRequest) ([]string, error)
	Close() error
}

// Dialer opens a transport to the worker listening on the given port.
type Dialer func(ctx context.Context, host string, port int, timeout time.Duration) (Conn, error)

// DialWebsocket is the production dialer.
func DialWebsocket(ctx context.Context, host string, port int, timeout time.Duration) (Conn, error) {
	endpoint := url.URL{Scheme: "ws", Host: host + ":" + strconv.Itoa(port), Path: "/render"}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint.String(), err)
	}
	return &wsConn{ws: ws}, nil
}

// wsConn serializes request/response pairs over a single websocket. The
// worker answers requests in order, so one in-flight frame at a time is
// sufficient and keeps replies matched to requests.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) Render(ctx context.Context, req RenderRequest) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.SetReadDeadline(deadline)
	}

	if err := c.ws.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send render request: %w", err)
	}
	var reply renderReply
	if err := c.ws.ReadJSON(&reply); err != nil {
		return nil, fmt.Errorf("read render reply: %w", err)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	if len(reply.Paths) == 0 {
		return nil, errors.New("worker reported no written paths")
	}
	return reply.Paths, nil
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Close()
}
