package ipc

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func startServer(t *testing.T, h Handler) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panewm.sock")
	srv := NewServer(path, h, nil)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return path
}

func TestClientServer_RoundTrip(t *testing.T) {
	var got []Request
	var mu sync.Mutex
	path := startServer(t, HandlerFunc(func(ctx context.Context, req Request) (any, error) {
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		switch req.Command {
		case CommandSwitch:
			var p IndexPayload
			if err := DecodePayload(req, &p); err != nil {
				return nil, err
			}
			return SwitchData{Monitor: p.Monitor, Workspace: "ws", Changed: true}, nil
		case CommandStatus:
			return StatusData{Monitors: 2, Windows: 5}, nil
		}
		return nil, errors.New("nope")
	}))

	c := NewClient(path)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sw, err := c.SwitchTo(ctx, "DP-1", 2)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if diff := cmp.Diff(SwitchData{Monitor: "DP-1", Workspace: "ws", Changed: true}, sw); diff != "" {
		t.Fatalf("switch data (-want +got):\n%s", diff)
	}

	st, err := c.Status(ctx)
	if err != nil || st.Monitors != 2 || st.Windows != 5 {
		t.Fatalf("Status = %+v, %v", st, err)
	}

	err = c.Reload(ctx)
	var cerr *CommandError
	if !errors.As(err, &cerr) || cerr.Message != "nope" || cerr.Command != CommandReload {
		t.Fatalf("Reload err = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0].Command != CommandSwitch {
		t.Fatalf("requests = %+v", got)
	}
}

func TestServer_RecoversFromPanic(t *testing.T) {
	path := startServer(t, HandlerFunc(func(ctx context.Context, req Request) (any, error) {
		panic("boom")
	}))
	c := NewClient(path)
	err := c.Call(context.Background(), CommandStatus, nil, nil)
	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v", err)
	}
	// The server keeps serving after a panic.
	if err := c.Call(context.Background(), CommandStatus, nil, nil); !errors.As(err, &cerr) {
		t.Fatalf("second call err = %v", err)
	}
}

func TestClient_DaemonUnavailable(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	if _, err := c.Status(context.Background()); !errors.Is(err, ErrDaemonUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestCommandFromArgs(t *testing.T) {
	tests := []struct {
		args    []string
		want    CommandType
		payload string
	}{
		{[]string{"workspace", "next"}, CommandSwitchNext, `{}`},
		{[]string{"workspace", "prev", "DP-2"}, CommandSwitchPrev, `{"monitor":"DP-2"}`},
		{[]string{"workspace", "switch", "2"}, CommandSwitch, `{"index":2}`},
		{[]string{"workspace", "move", "1", "HDMI-1"}, CommandMove, `{"monitor":"HDMI-1","index":1}`},
		{[]string{"workspace", "send", "0"}, CommandSend, `{"index":0}`},
		{[]string{"workspace", "list"}, CommandListWorkspace, ``},
		{[]string{"workspace", "rename", "web"}, CommandRename, `{"name":"web"}`},
		{[]string{"wm", "grow", "width"}, CommandGrow, `{"dimension":"width"}`},
		{[]string{"wm", "shrink", "height"}, CommandShrink, `{"dimension":"height"}`},
		{[]string{"wm", "cycle-stack", "-1"}, CommandCycleStack, `{"delta":-1}`},
		{[]string{"wm", "force-retile"}, CommandForceRetile, ``},
		{[]string{"status"}, CommandStatus, ``},
	}
	for _, tt := range tests {
		req, err := CommandFromArgs(tt.args)
		if err != nil {
			t.Fatalf("CommandFromArgs(%v): %v", tt.args, err)
		}
		if req.Command != tt.want || string(req.Payload) != tt.payload {
			t.Fatalf("CommandFromArgs(%v) = %s %s, want %s %s", tt.args, req.Command, req.Payload, tt.want, tt.payload)
		}
	}

	for _, bad := range [][]string{
		nil,
		{"workspace"},
		{"workspace", "switch"},
		{"workspace", "switch", "-1"},
		{"wm", "grow", "depth"},
		{"dance"},
	} {
		if _, err := CommandFromArgs(bad); !errors.Is(err, ErrUsage) {
			t.Fatalf("CommandFromArgs(%v) err = %v, want ErrUsage", bad, err)
		}
	}
}
