package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/1broseidon/panewm/internal/ipc"
	"github.com/google/go-cmp/cmp"
)

type recordedCall struct {
	Command ipc.CommandType
	Payload string
}

type fakeCaller struct {
	calls []recordedCall
	reply any
	err   error
}

func (f *fakeCaller) Call(ctx context.Context, cmd ipc.CommandType, payload any, out any) error {
	raw := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	f.calls = append(f.calls, recordedCall{Command: cmd, Payload: raw})
	if f.err != nil {
		return f.err
	}
	if out != nil && f.reply != nil {
		b, err := json.Marshal(f.reply)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}
	return nil
}

func intPtr(v int) *int { return &v }

func TestNewServer_RegistersTools(t *testing.T) {
	if s := NewServer(&fakeCaller{}, nil); s.mcpServer == nil {
		t.Fatalf("mcp server not created")
	}
}

func TestSwitchWorkspace_ByIndexAndDirection(t *testing.T) {
	caller := &fakeCaller{reply: ipc.SwitchData{Monitor: "DP-1", Workspace: "ws", Changed: true}}
	s := NewServer(caller, nil)
	ctx := context.Background()

	_, out, err := s.handleSwitchWorkspace(ctx, nil, SwitchWorkspaceInput{Index: intPtr(2), Monitor: "DP-1"})
	if err != nil {
		t.Fatalf("switch by index: %v", err)
	}
	if !out.Changed || out.Monitor != "DP-1" {
		t.Fatalf("out = %+v", out)
	}
	if _, _, err := s.handleSwitchWorkspace(ctx, nil, SwitchWorkspaceInput{Direction: "next"}); err != nil {
		t.Fatalf("switch next: %v", err)
	}
	if _, _, err := s.handleSwitchWorkspace(ctx, nil, SwitchWorkspaceInput{Direction: "prev"}); err != nil {
		t.Fatalf("switch prev: %v", err)
	}
	if _, _, err := s.handleSwitchWorkspace(ctx, nil, SwitchWorkspaceInput{}); err == nil {
		t.Fatalf("expected error without index or direction")
	}

	want := []recordedCall{
		{Command: ipc.CommandSwitch, Payload: `{"monitor":"DP-1","index":2}`},
		{Command: ipc.CommandSwitchNext, Payload: `{}`},
		{Command: ipc.CommandSwitchPrev, Payload: `{}`},
	}
	if diff := cmp.Diff(want, caller.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestWindowTools_ForwardCommands(t *testing.T) {
	caller := &fakeCaller{}
	s := NewServer(caller, nil)
	ctx := context.Background()

	if _, _, err := s.handleMoveWindow(ctx, nil, MoveWindowInput{Index: 1}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, _, err := s.handleSendWindow(ctx, nil, MoveWindowInput{Index: 0, Monitor: "HDMI-1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, out, err := s.handleResizeWindow(ctx, nil, ResizeWindowInput{Dimension: "width", Shrink: true}); err != nil || !out.OK {
		t.Fatalf("resize: out=%+v err=%v", out, err)
	}
	if _, _, err := s.handleCycleStack(ctx, nil, CycleStackInput{}); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if _, _, err := s.handleForceRetile(ctx, nil, NoInput{}); err != nil {
		t.Fatalf("retile: %v", err)
	}

	want := []recordedCall{
		{Command: ipc.CommandMove, Payload: `{"index":1}`},
		{Command: ipc.CommandSend, Payload: `{"monitor":"HDMI-1","index":0}`},
		{Command: ipc.CommandShrink, Payload: `{"dimension":"width"}`},
		{Command: ipc.CommandCycleStack, Payload: `{"delta":1}`},
		{Command: ipc.CommandForceRetile},
	}
	if diff := cmp.Diff(want, caller.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestValidation_RejectsBeforeCalling(t *testing.T) {
	caller := &fakeCaller{}
	s := NewServer(caller, nil)
	ctx := context.Background()

	if _, _, err := s.handleResizeWindow(ctx, nil, ResizeWindowInput{Dimension: "depth"}); err == nil {
		t.Fatalf("expected error for bad dimension")
	}
	if _, _, err := s.handleRenameWorkspace(ctx, nil, RenameWorkspaceInput{}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if len(caller.calls) != 0 {
		t.Fatalf("invalid input reached the daemon: %+v", caller.calls)
	}
}

func TestDaemonErrorsPropagate(t *testing.T) {
	caller := &fakeCaller{err: ipc.ErrDaemonUnavailable}
	s := NewServer(caller, nil)
	if _, _, err := s.handleListWorkspaces(context.Background(), nil, NoInput{}); !errors.Is(err, ipc.ErrDaemonUnavailable) {
		t.Fatalf("err = %v, want ErrDaemonUnavailable", err)
	}
}

func TestStatus_FormatsTimestamps(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	caller := &fakeCaller{reply: ipc.StatusData{StartedAt: started, UptimeSeconds: 90, Windows: 3, ServiceReachable: true}}
	s := NewServer(caller, nil)

	_, out, err := s.handleStatus(context.Background(), nil, NoInput{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	want := StatusOutput{StartedAt: "2026-03-01T12:00:00Z", UptimeSeconds: 90, Windows: 3, ServiceReachable: true}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
}
