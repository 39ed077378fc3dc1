package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient returns a Client configured from cfg.
func NewClient(cfg Config) *Client {
	return &Client{socketPath: cfg.SocketPath, timeout: cfg.Timeout}
}

// Connect dials the daemon's socket.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning reports whether a daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (c *Client) roundTrip(ctx context.Context, req Request) (*Response, error) {
	conn, err := c.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("receive response: %w", err)
	}
	return &resp, nil
}

// Ping checks daemon liveness.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, Request{JSONRPC: "2.0", Method: MethodPing, ID: c.nextID()})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("ping failed: %s", resp.Error.Message)
	}
	return nil
}

// Search sends a search request to the daemon.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	resp, err := c.roundTrip(ctx, Request{JSONRPC: "2.0", Method: MethodSearch, Params: params, ID: c.nextID()})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("search failed: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	return decodeResult[[]SearchResult](resp.Result)
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	resp, err := c.roundTrip(ctx, Request{JSONRPC: "2.0", Method: MethodStatus, ID: c.nextID()})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("status failed: %s", resp.Error.Message)
	}
	status, err := decodeResult[StatusResult](resp.Result)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Rebuild requests a full reindex.
func (c *Client) Rebuild(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, Request{JSONRPC: "2.0", Method: MethodRebuild, ID: c.nextID()})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("rebuild failed: %s", resp.Error.Message)
	}
	return nil
}

func decodeResult[T any](result any) (T, error) {
	var out T
	data, err := json.Marshal(result)
	if err != nil {
		return out, fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}
