package mcp

import (
	"time"

	"github.com/1broseidon/panewm/internal/ipc"
)

// MonitorInput selects a monitor.
type MonitorInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Monitor id such as DP-1 (default: the monitor holding the focused window)"`
}

// SwitchWorkspaceInput is the input for the switch_workspace tool.
type SwitchWorkspaceInput struct {
	Monitor   string `json:"monitor,omitempty" jsonschema:"Monitor id (default: the monitor holding the focused window)"`
	Index     *int   `json:"index,omitempty" jsonschema:"Zero-based workspace index to switch to"`
	Direction string `json:"direction,omitempty" jsonschema:"next or prev; used when index is omitted"`
}

// MoveWindowInput is the input for the move_window and send_window tools.
type MoveWindowInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Monitor id (default: the monitor holding the focused window)"`
	Index   int    `json:"index" jsonschema:"required,Zero-based index of the destination workspace"`
}

// RenameWorkspaceInput is the input for the rename_workspace tool.
type RenameWorkspaceInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Monitor id (default: the monitor holding the focused window)"`
	Name    string `json:"name" jsonschema:"required,New display name of the current workspace"`
}

// ResizeWindowInput is the input for the resize_window tool.
type ResizeWindowInput struct {
	Dimension string `json:"dimension" jsonschema:"required,width or height"`
	Shrink    bool   `json:"shrink,omitempty" jsonschema:"Shrink instead of grow (default: false)"`
}

// CycleStackInput is the input for the cycle_stack tool.
type CycleStackInput struct {
	Delta int `json:"delta,omitempty" jsonschema:"Positions to rotate the focused window's stack by (default: 1)"`
}

// NoInput is used by tools that take no arguments.
type NoInput struct{}

// DoneOutput acknowledges a command without data.
type DoneOutput struct {
	OK bool `json:"ok"`
}

// SwitchOutput is returned by switching and moving tools.
type SwitchOutput = ipc.SwitchData

// WorkspaceOutput is returned by create_workspace and rename_workspace.
type WorkspaceOutput = ipc.WorkspaceInfo

// ListWorkspacesOutput is returned by list_workspaces.
type ListWorkspacesOutput = ipc.WorkspaceListData

// StatusOutput is returned by status. Timestamps are RFC 3339.
type StatusOutput struct {
	StartedAt        string `json:"started_at"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ConfigPath       string `json:"config_path,omitempty"`
	Monitors         int    `json:"monitors"`
	Workspaces       int    `json:"workspaces"`
	Windows          int    `json:"windows"`
	Tiled            int    `json:"tiled"`
	Floating         int    `json:"floating"`
	ServiceReachable bool   `json:"service_reachable"`
	LastReload       string `json:"last_reload,omitempty"`
}

func statusOutput(d ipc.StatusData) StatusOutput {
	out := StatusOutput{
		StartedAt:        d.StartedAt.Format(time.RFC3339),
		UptimeSeconds:    d.UptimeSeconds,
		ConfigPath:       d.ConfigPath,
		Monitors:         d.Monitors,
		Workspaces:       d.Workspaces,
		Windows:          d.Windows,
		Tiled:            d.Tiled,
		Floating:         d.Floating,
		ServiceReachable: d.ServiceReachable,
	}
	if !d.LastReload.IsZero() {
		out.LastReload = d.LastReload.Format(time.RFC3339)
	}
	return out
}
