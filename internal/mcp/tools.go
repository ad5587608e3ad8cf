package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/panewm/internal/ipc"
)

func (s *Server) call(ctx context.Context, cmd ipc.CommandType, payload any, out any) error {
	if err := s.daemon.Call(ctx, cmd, payload, out); err != nil {
		s.logger.Debug("tool failed", "command", cmd, "err", err)
		return err
	}
	return nil
}

func (s *Server) handleListWorkspaces(ctx context.Context, _ *mcpsdk.CallToolRequest, _ NoInput) (*mcpsdk.CallToolResult, ListWorkspacesOutput, error) {
	var out ListWorkspacesOutput
	err := s.call(ctx, ipc.CommandListWorkspace, nil, &out)
	return nil, out, err
}

func (s *Server) handleSwitchWorkspace(ctx context.Context, _ *mcpsdk.CallToolRequest, args SwitchWorkspaceInput) (*mcpsdk.CallToolResult, SwitchOutput, error) {
	var out SwitchOutput
	if args.Index != nil {
		err := s.call(ctx, ipc.CommandSwitch, ipc.IndexPayload{Monitor: args.Monitor, Index: *args.Index}, &out)
		return nil, out, err
	}

	var cmd ipc.CommandType
	switch args.Direction {
	case "next":
		cmd = ipc.CommandSwitchNext
	case "prev", "previous":
		cmd = ipc.CommandSwitchPrev
	default:
		return nil, out, fmt.Errorf("switch_workspace needs an index or a direction of next or prev (got %q)", args.Direction)
	}
	err := s.call(ctx, cmd, ipc.TargetPayload{Monitor: args.Monitor}, &out)
	return nil, out, err
}

func (s *Server) handleMoveWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, args MoveWindowInput) (*mcpsdk.CallToolResult, SwitchOutput, error) {
	var out SwitchOutput
	err := s.call(ctx, ipc.CommandMove, ipc.IndexPayload{Monitor: args.Monitor, Index: args.Index}, &out)
	return nil, out, err
}

func (s *Server) handleSendWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, args MoveWindowInput) (*mcpsdk.CallToolResult, SwitchOutput, error) {
	var out SwitchOutput
	err := s.call(ctx, ipc.CommandSend, ipc.IndexPayload{Monitor: args.Monitor, Index: args.Index}, &out)
	return nil, out, err
}

func (s *Server) handleCreateWorkspace(ctx context.Context, _ *mcpsdk.CallToolRequest, args MonitorInput) (*mcpsdk.CallToolResult, WorkspaceOutput, error) {
	var out WorkspaceOutput
	err := s.call(ctx, ipc.CommandCreate, ipc.TargetPayload{Monitor: args.Monitor}, &out)
	return nil, out, err
}

func (s *Server) handleDestroyWorkspace(ctx context.Context, _ *mcpsdk.CallToolRequest, args MonitorInput) (*mcpsdk.CallToolResult, SwitchOutput, error) {
	var out SwitchOutput
	err := s.call(ctx, ipc.CommandDestroy, ipc.TargetPayload{Monitor: args.Monitor}, &out)
	return nil, out, err
}

func (s *Server) handleRenameWorkspace(ctx context.Context, _ *mcpsdk.CallToolRequest, args RenameWorkspaceInput) (*mcpsdk.CallToolResult, WorkspaceOutput, error) {
	var out WorkspaceOutput
	if args.Name == "" {
		return nil, out, fmt.Errorf("rename_workspace needs a name")
	}
	err := s.call(ctx, ipc.CommandRename, ipc.RenamePayload{Monitor: args.Monitor, Name: args.Name}, &out)
	return nil, out, err
}

func (s *Server) handleResizeWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, args ResizeWindowInput) (*mcpsdk.CallToolResult, DoneOutput, error) {
	if args.Dimension != "width" && args.Dimension != "height" {
		return nil, DoneOutput{}, fmt.Errorf("resize_window dimension must be width or height (got %q)", args.Dimension)
	}
	cmd := ipc.CommandGrow
	if args.Shrink {
		cmd = ipc.CommandShrink
	}
	if err := s.call(ctx, cmd, ipc.ResizePayload{Dimension: args.Dimension}, nil); err != nil {
		return nil, DoneOutput{}, err
	}
	return nil, DoneOutput{OK: true}, nil
}

func (s *Server) handleResetSizes(ctx context.Context, _ *mcpsdk.CallToolRequest, args MonitorInput) (*mcpsdk.CallToolResult, DoneOutput, error) {
	if err := s.call(ctx, ipc.CommandResetSizes, ipc.TargetPayload{Monitor: args.Monitor}, nil); err != nil {
		return nil, DoneOutput{}, err
	}
	return nil, DoneOutput{OK: true}, nil
}

func (s *Server) handleForceRetile(ctx context.Context, _ *mcpsdk.CallToolRequest, _ NoInput) (*mcpsdk.CallToolResult, DoneOutput, error) {
	if err := s.call(ctx, ipc.CommandForceRetile, nil, nil); err != nil {
		return nil, DoneOutput{}, err
	}
	return nil, DoneOutput{OK: true}, nil
}

func (s *Server) handleCycleStack(ctx context.Context, _ *mcpsdk.CallToolRequest, args CycleStackInput) (*mcpsdk.CallToolResult, DoneOutput, error) {
	delta := args.Delta
	if delta == 0 {
		delta = 1
	}
	if err := s.call(ctx, ipc.CommandCycleStack, ipc.CyclePayload{Delta: delta}, nil); err != nil {
		return nil, DoneOutput{}, err
	}
	return nil, DoneOutput{OK: true}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcpsdk.CallToolRequest, _ NoInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	var data ipc.StatusData
	if err := s.call(ctx, ipc.CommandStatus, nil, &data); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, statusOutput(data), nil
}
