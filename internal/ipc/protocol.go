// Package ipc is the daemon's control channel: newline-delimited JSON
// requests over a per-user unix socket.
package ipc

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandType names a control command.
type CommandType string

const (
	CommandSwitchNext    CommandType = "workspace.switch-next"
	CommandSwitchPrev    CommandType = "workspace.switch-prev"
	CommandSwitch        CommandType = "workspace.switch"
	CommandMove          CommandType = "workspace.move"
	CommandSend          CommandType = "workspace.send"
	CommandCreate        CommandType = "workspace.create"
	CommandDestroy       CommandType = "workspace.destroy"
	CommandRename        CommandType = "workspace.rename"
	CommandListWorkspace CommandType = "workspace.list"
	CommandGrow          CommandType = "wm.grow"
	CommandShrink        CommandType = "wm.shrink"
	CommandResetSizes    CommandType = "wm.reset-sizes"
	CommandForceRetile   CommandType = "wm.force-retile"
	CommandCycleStack    CommandType = "wm.cycle-stack"
	CommandStatus        CommandType = "status"
	CommandReload        CommandType = "reload"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request is one control command.
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers a Request.
type Response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// TargetPayload selects a monitor; empty means the monitor holding the
// focused window.
type TargetPayload struct {
	Monitor string `json:"monitor,omitempty"`
}

// IndexPayload selects a workspace by zero-based index.
type IndexPayload struct {
	Monitor string `json:"monitor,omitempty"`
	Index   int    `json:"index"`
}

// RenamePayload renames the current workspace.
type RenamePayload struct {
	Monitor string `json:"monitor,omitempty"`
	Name    string `json:"name"`
}

// ResizePayload is "width" or "height".
type ResizePayload struct {
	Dimension string `json:"dimension"`
}

// CyclePayload rotates the focused window's stack.
type CyclePayload struct {
	Delta int `json:"delta"`
}

// SwitchData reports a workspace switch.
type SwitchData struct {
	Monitor   string `json:"monitor"`
	Workspace string `json:"workspace"`
	Name      string `json:"name"`
	Changed   bool   `json:"changed"`
	Shown     int    `json:"shown"`
	Hidden    int    `json:"hidden"`
}

// WorkspaceInfo is one row of workspace.list.
type WorkspaceInfo struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Windows int    `json:"windows"`
	Current bool   `json:"current"`
	Layout  string `json:"layout,omitempty"`
}

// MonitorInfo groups a monitor's workspaces.
type MonitorInfo struct {
	ID         string          `json:"id"`
	X          int             `json:"x"`
	Y          int             `json:"y"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Pinned     int             `json:"pinned"`
	Workspaces []WorkspaceInfo `json:"workspaces"`
}

// WorkspaceListData is returned by workspace.list.
type WorkspaceListData struct {
	Monitors []MonitorInfo `json:"monitors"`
}

// StatusData is returned by status.
type StatusData struct {
	StartedAt        time.Time `json:"started_at"`
	UptimeSeconds    int64     `json:"uptime_seconds"`
	ConfigPath       string    `json:"config_path,omitempty"`
	Monitors         int       `json:"monitors"`
	Workspaces       int       `json:"workspaces"`
	Windows          int       `json:"windows"`
	Tiled            int       `json:"tiled"`
	Floating         int       `json:"floating"`
	ServiceReachable bool      `json:"service_reachable"`
	LastReload       time.Time `json:"last_reload,omitempty"`
}

// NewOKResponse creates a successful response with optional data.
func NewOKResponse(data any) (*Response, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		raw = b
	}
	return &Response{Status: StatusOK, Data: raw}, nil
}

// NewErrorResponse creates an error response with a message.
func NewErrorResponse(errMsg string) *Response {
	return &Response{Status: StatusError, Error: errMsg}
}

// NewRequest encodes payload into a request. A nil payload is omitted.
func NewRequest(cmd CommandType, payload any) (Request, error) {
	req := Request{Command: cmd}
	if payload == nil {
		return req, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("marshal %s payload: %w", cmd, err)
	}
	req.Payload = raw
	return req, nil
}

// DecodePayload unmarshals a request payload. An empty payload leaves out
// untouched.
func DecodePayload(req Request, out any) error {
	if len(req.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Payload, out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", req.Command, err)
	}
	return nil
}

// ParseRequest parses a request line.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
