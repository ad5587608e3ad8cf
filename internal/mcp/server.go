// Package mcp exposes workspace and tiling commands as MCP tools. Every tool
// is forwarded to the running daemon over its control socket.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/panewm/internal/ipc"
)

const (
	ServerName    = "panewm"
	ServerVersion = "0.1.0"
)

// Caller sends one control command to the daemon. *ipc.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, cmd ipc.CommandType, payload any, out any) error
}

var _ Caller = (*ipc.Client)(nil)

// Server is the MCP server for panewm.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Caller
	logger    *slog.Logger
}

// NewServer creates a server forwarding to daemon.
func NewServer(daemon Caller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		daemon: daemon,
		logger: logger.With("component", "mcp"),
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_workspaces",
		Description: "List every monitor with its workspaces, window counts, current workspace and tiling layout.",
	}, s.handleListWorkspaces)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "switch_workspace",
		Description: "Switch a monitor to another workspace, either by zero-based index or by direction (next/prev, wrapping). Windows of the old workspace are hidden and those of the new one shown.",
	}, s.handleSwitchWorkspace)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_window",
		Description: "Move the focused window to another workspace and follow it there.",
	}, s.handleMoveWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "send_window",
		Description: "Send the focused window to another workspace without switching.",
	}, s.handleSendWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "create_workspace",
		Description: "Append a new empty workspace to a monitor.",
	}, s.handleCreateWorkspace)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "destroy_workspace",
		Description: "Destroy a monitor's current workspace. Its windows move to the first remaining workspace. A monitor's last workspace cannot be destroyed.",
	}, s.handleDestroyWorkspace)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "rename_workspace",
		Description: "Rename a monitor's current workspace.",
	}, s.handleRenameWorkspace)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "resize_window",
		Description: "Grow or shrink the focused tiled window along width or height by one resize step.",
	}, s.handleResizeWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reset_sizes",
		Description: "Restore the layout's default proportions on a monitor's current workspace.",
	}, s.handleResetSizes)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "force_retile",
		Description: "Re-apply the tiling layout on every visible workspace.",
	}, s.handleForceRetile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "cycle_stack",
		Description: "Rotate the stack holding the focused window so another member becomes visible.",
	}, s.handleCycleStack)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "status",
		Description: "Report daemon uptime, window and workspace counts, and whether the privileged service is reachable.",
	}, s.handleStatus)
}
