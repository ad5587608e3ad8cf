package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/panewm/internal/ipc"
	"github.com/1broseidon/panewm/internal/runtimepath"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"usage", usageErr("bad %s", "flag"), 2},
		{"wrapped usage", fmt.Errorf("workspace: %w", ipc.ErrUsage), 2},
		{"daemon down", ipc.ErrDaemonUnavailable, 1},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRootCmd_UsageErrors(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	tests := [][]string{
		{"status", "extra"},
		{"status", "--no-such-flag"},
		{"workspace", "switch", "abc"},
		{"workspace", "bogus"},
		{"wm", "grow", "depth"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, "_"), func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			err := root.Execute()
			if got := exitCode(err); got != 2 {
				t.Fatalf("exit code = %d (err %v), want 2", got, err)
			}
		})
	}
}

func TestForward_DaemonUnavailable(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	err := forward(context.Background(), []string{"status"})
	if !errors.Is(err, ipc.ErrDaemonUnavailable) {
		t.Fatalf("err = %v, want ErrDaemonUnavailable", err)
	}
	if exitCode(err) != 1 {
		t.Fatalf("exit code = %d, want 1", exitCode(err))
	}
}

func TestWorkspaceCmd_ForwardsMonitorFlag(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	path, err := runtimepath.SocketPath()
	if err != nil {
		t.Fatalf("SocketPath: %v", err)
	}

	got := make(chan ipc.Request, 1)
	handler := ipc.HandlerFunc(func(ctx context.Context, req ipc.Request) (any, error) {
		got <- req
		return ipc.SwitchData{Monitor: "HDMI-1", Workspace: "b", Changed: true}, nil
	})
	server := ipc.NewServer(path, handler, nil)
	if err := server.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	root := newRootCmd()
	root.SetArgs([]string{"workspace", "switch", "1", "--monitor", "HDMI-1"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var req ipc.Request
	select {
	case req = <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("daemon never received the request")
	}
	if req.Command != ipc.CommandSwitch {
		t.Fatalf("command = %q, want %q", req.Command, ipc.CommandSwitch)
	}
	var payload ipc.IndexPayload
	if err := ipc.DecodePayload(req, &payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if diff := cmp.Diff(ipc.IndexPayload{Monitor: "HDMI-1", Index: 1}, payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestPrinter_Switch(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, now: time.Now}

	if err := p.reply(ipc.CommandSwitch, []byte(`{"monitor":"DP-1","workspace":"id-2","name":"web","changed":true,"shown":2,"hidden":3}`)); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := p.reply(ipc.CommandSwitchNext, []byte(`{"monitor":"DP-1","workspace":"id-2","changed":false}`)); err != nil {
		t.Fatalf("reply: %v", err)
	}
	want := "DP-1: web (2 shown, 3 hidden)\nDP-1: already on id-2\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestPrinter_JSONPassesDataThrough(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, json: true, now: time.Now}

	if err := p.reply(ipc.CommandForceRetile, nil); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := p.reply(ipc.CommandCreate, []byte(`{"index":2,"id":"x"}`)); err != nil {
		t.Fatalf("reply: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"ok": true`) || !strings.Contains(out, `"index": 2`) {
		t.Fatalf("unexpected JSON output:\n%s", out)
	}
}

func TestPrinter_WorkspaceTable(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, now: time.Now}
	p.workspaces(ipc.WorkspaceListData{Monitors: []ipc.MonitorInfo{{
		ID:     "DP-1",
		Pinned: 1,
		Workspaces: []ipc.WorkspaceInfo{
			{Index: 0, ID: "a", Name: "code", Windows: 3, Current: true, Layout: "tall"},
			{Index: 1, ID: "b", Windows: 0},
		},
	}}})

	out := buf.String()
	for _, want := range []string{"MONITOR", "code", "tall", "pinned", " b "} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_Status(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	p := &printer{w: &buf, now: func() time.Time { return now }}
	p.status(ipc.StatusData{
		StartedAt:     now.Add(-2 * time.Hour),
		UptimeSeconds: 7200,
		Windows:       1234,
		Tiled:         3,
	})

	out := buf.String()
	for _, want := range []string{"2 hours ago", "2h0m0s", "1,234", "never", "unreachable"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_ConfigCheck(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, now: time.Now}
	err := p.configCheck(configCheckResult{
		OK:    true,
		Path:  "/tmp/config.yaml",
		Files: []string{"/tmp/config.yaml"},
		Keys:  map[string]string{"tiling.gap_size": "/tmp/config.yaml:3", "log_level": "default"},
	})
	if err != nil {
		t.Fatalf("configCheck: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "/tmp/config.yaml: ok (1 file(s) loaded)\n") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	if strings.Index(out, "log_level") > strings.Index(out, "tiling.gap_size") {
		t.Fatalf("keys not sorted:\n%s", out)
	}
}
