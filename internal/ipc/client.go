package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrDaemonUnavailable means the control socket could not be reached.
var ErrDaemonUnavailable = errors.New("daemon is not running")

// CommandError is an error response from the daemon.
type CommandError struct {
	Command CommandType
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("daemon error: %s", e.Message)
}

// Client sends control commands to the daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the control socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: DefaultTimeout}
}

// Do sends req and returns the response data.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := conn.Write(append(reqData, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	respData, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status != StatusOK {
		return nil, &CommandError{Command: req.Command, Message: resp.Error}
	}
	return resp.Data, nil
}

// Call builds a request from cmd and payload, sends it and decodes the
// response data into out when out is non-nil.
func (c *Client) Call(ctx context.Context, cmd CommandType, payload any, out any) error {
	req, err := NewRequest(cmd, payload)
	if err != nil {
		return err
	}
	data, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// SwitchTo makes workspace index current on monitor.
func (c *Client) SwitchTo(ctx context.Context, monitor string, index int) (SwitchData, error) {
	var out SwitchData
	err := c.Call(ctx, CommandSwitch, IndexPayload{Monitor: monitor, Index: index}, &out)
	return out, err
}

// SwitchNext moves to the next workspace on monitor.
func (c *Client) SwitchNext(ctx context.Context, monitor string) (SwitchData, error) {
	var out SwitchData
	err := c.Call(ctx, CommandSwitchNext, TargetPayload{Monitor: monitor}, &out)
	return out, err
}

// SwitchPrev moves to the previous workspace on monitor.
func (c *Client) SwitchPrev(ctx context.Context, monitor string) (SwitchData, error) {
	var out SwitchData
	err := c.Call(ctx, CommandSwitchPrev, TargetPayload{Monitor: monitor}, &out)
	return out, err
}

// ListWorkspaces returns every monitor's workspaces.
func (c *Client) ListWorkspaces(ctx context.Context) (WorkspaceListData, error) {
	var out WorkspaceListData
	err := c.Call(ctx, CommandListWorkspace, nil, &out)
	return out, err
}

// Status returns daemon status.
func (c *Client) Status(ctx context.Context) (StatusData, error) {
	var out StatusData
	err := c.Call(ctx, CommandStatus, nil, &out)
	return out, err
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.Call(ctx, CommandReload, nil, nil)
}
