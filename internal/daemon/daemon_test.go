package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/panewm/internal/config"
	"github.com/1broseidon/panewm/internal/ipc"
	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/platform/platformtest"
	"github.com/1broseidon/panewm/internal/positioner"
	"github.com/1broseidon/panewm/internal/svc"
	"github.com/1broseidon/panewm/internal/tiling"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type fakeService struct {
	mu       sync.Mutex
	shown    []platform.WindowID
	hidden   []platform.WindowID
	batches  [][]positioner.Target
	hotkeys  [][]svc.HotkeyBinding
	animated []bool
	err      error
	// block makes DeferredPositions wait for its context and report each
	// blocked call on entered.
	block   bool
	entered chan struct{}
}

func (f *fakeService) ShowWindow(ctx context.Context, w platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, w)
	return f.err
}

func (f *fakeService) HideWindow(ctx context.Context, w platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = append(f.hidden, w)
	return f.err
}

func (f *fakeService) SetFocus(ctx context.Context, w platform.WindowID) error { return f.err }

func (f *fakeService) EnableHotkeys(ctx context.Context, bindings []svc.HotkeyBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hotkeys = append(f.hotkeys, bindings)
	return f.err
}

func (f *fakeService) DeferredPositions(ctx context.Context, positions []positioner.Target, animated bool, duration time.Duration, easing string) (svc.PlacementData, error) {
	f.mu.Lock()
	f.batches = append(f.batches, positions)
	f.animated = append(f.animated, animated)
	block, entered, err := f.block, f.entered, f.err
	f.mu.Unlock()
	if block {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return svc.PlacementData{}, ctx.Err()
	}
	return svc.PlacementData{}, err
}

func (f *fakeService) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeService) visibility() (shown, hidden []platform.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.WindowID(nil), f.shown...), append([]platform.WindowID(nil), f.hidden...)
}

func (f *fakeService) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown, f.hidden, f.batches = nil, nil, nil
}

func (f *fakeService) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeService) lastBatch() []positioner.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

var screen = platform.Display{
	ID:     0,
	Name:   "DP-1",
	Bounds: platform.Rect{Width: 1000, Height: 800},
	Usable: platform.Rect{Width: 1000, Height: 800},
}

func win(id platform.WindowID, desktop int) platform.Window {
	return platform.Window{ID: id, Desktop: desktop, Bounds: platform.Rect{X: 10, Y: 10, Width: 300, Height: 200}}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Tiling.GapSize = 0
	cfg.Animation.Enabled = false
	cfg.Workspaces.SettleDelay = time.Millisecond
	return cfg
}

func newDaemon(t *testing.T, cfg *config.Config, windows ...platform.Window) (*Daemon, *platformtest.Backend, *fakeService) {
	t.Helper()
	backend := platformtest.New(screen)
	backend.SetDesktops(2, 0)
	for _, w := range windows {
		backend.AddWindow(w)
	}
	service := &fakeService{}
	d, err := New(Options{Backend: backend, Events: backend, Service: service, Config: cfg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return d, backend, service
}

func startTiling(t *testing.T, d *Daemon) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.runTiling(ctx)
		}()
		go func() {
			defer wg.Done()
			d.runBatches(ctx)
		}()
		wg.Wait()
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func command(t *testing.T, d *Daemon, cmd ipc.CommandType, payload any) any {
	t.Helper()
	req, err := ipc.NewRequest(cmd, payload)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	data, err := d.HandleCommand(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: %v", cmd, err)
	}
	return data
}

func sortIDs() cmp.Option {
	return cmpopts.SortSlices(func(a, b platform.WindowID) bool { return a < b })
}

func TestNew_RequiresBackendAndService(t *testing.T) {
	if _, err := New(Options{Service: &fakeService{}}); err == nil {
		t.Fatalf("expected error without backend")
	}
	if _, err := New(Options{Backend: platformtest.New(screen)}); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestInit_HidesWindowsOffTheCurrentWorkspace(t *testing.T) {
	_, _, service := newDaemon(t, testConfig(), win(1, 0), win(2, 1), win(3, 1))

	shown, hidden := service.visibility()
	if len(shown) != 0 {
		t.Fatalf("shown = %v, want none", shown)
	}
	if diff := cmp.Diff([]platform.WindowID{2, 3}, hidden, sortIDs()); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}
}

func TestInit_SkipsUnmanageableWindows(t *testing.T) {
	backend := platformtest.New(screen)
	backend.AddWindow(win(1, 0))
	backend.AddWindow(win(2, 0))
	backend.SetUnmanageable(2)
	d, err := New(Options{Backend: backend, Service: &fakeService{}, Config: testConfig()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, _, ok := d.Manager().Locate(2); ok {
		t.Fatalf("unmanageable window was tracked")
	}
	if _, _, ok := d.Manager().Locate(1); !ok {
		t.Fatalf("window 1 not tracked")
	}
}

func TestInit_TilesCurrentWorkspace(t *testing.T) {
	d, _, service := newDaemon(t, testConfig(), win(1, 0), win(2, 0))
	startTiling(t, d)

	waitFor(t, "initial batch", func() bool { return service.batchCount() > 0 })
	got := map[platform.WindowID]platform.Rect{}
	for _, target := range service.lastBatch() {
		got[target.Window] = target.Rect
		if !target.Flags.Has(platform.NoActivate) {
			t.Fatalf("target %d flags = %v, want NoActivate", target.Window, target.Flags)
		}
	}
	want := map[platform.WindowID]platform.Rect{
		1: {X: 0, Y: 0, Width: 600, Height: 800},
		2: {X: 600, Y: 0, Width: 400, Height: 800},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rects mismatch (-want +got):\n%s", diff)
	}
}

func TestSwitchCommand_AppliesVisibility(t *testing.T) {
	d, _, service := newDaemon(t, testConfig(), win(1, 0), win(2, 1))
	service.reset()

	data := command(t, d, ipc.CommandSwitch, ipc.IndexPayload{Index: 1}).(ipc.SwitchData)
	if !data.Changed || data.Shown != 1 || data.Hidden != 1 || data.Name != "2" {
		t.Fatalf("switch data = %+v", data)
	}
	shown, hidden := service.visibility()
	if diff := cmp.Diff([]platform.WindowID{2}, shown); diff != "" {
		t.Fatalf("shown mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]platform.WindowID{1}, hidden); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}

	service.reset()
	data = command(t, d, ipc.CommandSwitch, ipc.IndexPayload{Index: 1}).(ipc.SwitchData)
	if data.Changed {
		t.Fatalf("second switch reported a change")
	}
	if shown, hidden := service.visibility(); len(shown)+len(hidden) != 0 {
		t.Fatalf("no-op switch touched windows: shown=%v hidden=%v", shown, hidden)
	}
}

func TestSwitchNext_Wraps(t *testing.T) {
	d, _, _ := newDaemon(t, testConfig())
	command(t, d, ipc.CommandSwitchNext, nil)
	data := command(t, d, ipc.CommandSwitchNext, nil).(ipc.SwitchData)
	ws, err := d.Manager().Current("DP-1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if ws.Name != "1" || data.Workspace != ws.ID {
		t.Fatalf("after two nexts current = %q (%s), data = %+v", ws.Name, ws.ID, data)
	}
}

func TestSwitch_UnknownMonitor(t *testing.T) {
	d, _, _ := newDaemon(t, testConfig())
	req, _ := ipc.NewRequest(ipc.CommandSwitch, ipc.IndexPayload{Monitor: "HDMI-9", Index: 0})
	if _, err := d.HandleCommand(context.Background(), req); err == nil {
		t.Fatalf("expected error for unknown monitor")
	}
}

func TestSendCommand_HidesFocusedWindow(t *testing.T) {
	d, backend, service := newDaemon(t, testConfig(), win(1, 0), win(2, 0))
	backend.SetActive(1)
	service.reset()

	data := command(t, d, ipc.CommandSend, ipc.IndexPayload{Index: 1}).(ipc.SwitchData)
	if data.Hidden != 1 || !data.Changed {
		t.Fatalf("send data = %+v", data)
	}
	_, hidden := service.visibility()
	if diff := cmp.Diff([]platform.WindowID{1}, hidden); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}
	_, ws, ok := d.Manager().Locate(1)
	mon, _ := d.Manager().Monitor("DP-1")
	if !ok || ws != mon.Workspaces[1].ID {
		t.Fatalf("window 1 in %q, want %q", ws, mon.Workspaces[1].ID)
	}
}

func TestMoveCommand_FollowsWindow(t *testing.T) {
	d, backend, service := newDaemon(t, testConfig(), win(1, 0), win(2, 0))
	backend.SetActive(1)
	service.reset()

	data := command(t, d, ipc.CommandMove, ipc.IndexPayload{Index: 1}).(ipc.SwitchData)
	if !data.Changed {
		t.Fatalf("move did not switch: %+v", data)
	}
	shown, hidden := service.visibility()
	if diff := cmp.Diff([]platform.WindowID{1}, shown); diff != "" {
		t.Fatalf("shown mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]platform.WindowID{1, 2}, hidden, sortIDs()); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}
}

func TestFocusedCommands_RequireFocus(t *testing.T) {
	d, _, _ := newDaemon(t, testConfig(), win(1, 0))
	for _, cmd := range []ipc.CommandType{ipc.CommandSend, ipc.CommandGrow, ipc.CommandCycleStack} {
		req, _ := ipc.NewRequest(cmd, ipc.ResizePayload{Dimension: "width"})
		if cmd == ipc.CommandSend {
			req, _ = ipc.NewRequest(cmd, ipc.IndexPayload{Index: 1})
		}
		if _, err := d.HandleCommand(context.Background(), req); !errors.Is(err, ErrNoFocusedWindow) {
			t.Fatalf("%s err = %v, want ErrNoFocusedWindow", cmd, err)
		}
	}
}

func TestGrowCommand_AppliesBatch(t *testing.T) {
	d, backend, service := newDaemon(t, testConfig(), win(1, 0), win(2, 0))
	startTiling(t, d)
	waitFor(t, "initial batch", func() bool { return service.batchCount() > 0 })
	backend.SetActive(1)
	before := service.batchCount()

	command(t, d, ipc.CommandGrow, ipc.ResizePayload{Dimension: "width"})
	if service.batchCount() != before+1 {
		t.Fatalf("batches = %d, want %d", service.batchCount(), before+1)
	}
	for _, target := range service.lastBatch() {
		if target.Window == 1 && target.Rect.Width <= 600 {
			t.Fatalf("window 1 width = %d, want > 600", target.Rect.Width)
		}
	}

	req, _ := ipc.NewRequest(ipc.CommandGrow, ipc.ResizePayload{Dimension: "depth"})
	if _, err := d.HandleCommand(context.Background(), req); err == nil {
		t.Fatalf("expected error for bad dimension")
	}
}

func TestTiling_KeepsEveryEventWhileBehind(t *testing.T) {
	d, _, service := newDaemon(t, testConfig(), win(1, 0), win(2, 0))

	// The engine is not consuming yet, so all of these queue up.
	for i := 0; i < 1100; i++ {
		if _, err := d.Manager().WindowFocused(1); err != nil {
			t.Fatalf("WindowFocused: %v", err)
		}
	}
	if _, err := d.Manager().WindowMinimized(2); err != nil {
		t.Fatalf("WindowMinimized: %v", err)
	}

	startTiling(t, d)
	waitFor(t, "minimized window untiled", func() bool {
		return !d.Engine().Managed(2) && d.Engine().Managed(1)
	})
	waitFor(t, "single window fills the screen", func() bool {
		last := service.lastBatch()
		return len(last) == 1 && last[0].Window == 1 && last[0].Rect.Width == 1000
	})
}

func TestBatchQueue_NewestBatchWins(t *testing.T) {
	q := newBatchQueue()
	q.put(tiling.Batch{Monitor: "DP-1", Seq: 2})
	q.put(tiling.Batch{Monitor: "DP-1", Seq: 1})
	q.put(tiling.Batch{Monitor: "HDMI-1", Seq: 3})

	got := q.take()
	if len(got) != 2 || got[0].Monitor != "DP-1" || got[0].Seq != 2 || got[1].Seq != 3 {
		t.Fatalf("take = %+v", got)
	}

	// A batch computed before one that was already applied is stale.
	q.put(tiling.Batch{Monitor: "DP-1", Seq: 1})
	if got := q.take(); len(got) != 0 {
		t.Fatalf("stale batch applied: %+v", got)
	}
}

func TestSlowBatchDoesNotStallVisibility(t *testing.T) {
	d, backend, service := newDaemon(t, testConfig(), win(1, 0), win(2, 0), win(3, 1))
	d.batchTimeout = 300 * time.Millisecond
	startTiling(t, d)
	waitFor(t, "initial batch", func() bool { return service.batchCount() > 0 })

	service.mu.Lock()
	service.block = true
	service.entered = make(chan struct{}, 1)
	entered := service.entered
	service.mu.Unlock()

	backend.SetActive(1)
	grown := make(chan time.Duration, 1)
	go func() {
		start := time.Now()
		req, _ := ipc.NewRequest(ipc.CommandGrow, ipc.ResizePayload{Dimension: "width"})
		_, _ = d.HandleCommand(context.Background(), req)
		grown <- time.Since(start)
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("grow batch never reached the service")
	}

	start := time.Now()
	command(t, d, ipc.CommandSwitch, ipc.IndexPayload{Index: 1})
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("switch waited %v behind a tiling batch", elapsed)
	}

	select {
	case elapsed := <-grown:
		if elapsed > 2*time.Second {
			t.Fatalf("grow took %v", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked batch was never abandoned")
	}
}

func TestCreateRenameDestroy(t *testing.T) {
	d, _, _ := newDaemon(t, testConfig(), win(1, 0))

	created := command(t, d, ipc.CommandCreate, nil).(ipc.WorkspaceInfo)
	if created.Index != 2 || created.Name != "3" {
		t.Fatalf("created = %+v", created)
	}

	command(t, d, ipc.CommandSwitch, ipc.IndexPayload{Index: 2})
	renamed := command(t, d, ipc.CommandRename, ipc.RenamePayload{Name: "scratch"}).(ipc.WorkspaceInfo)
	if renamed.ID != created.ID || renamed.Name != "scratch" {
		t.Fatalf("renamed = %+v", renamed)
	}

	data := command(t, d, ipc.CommandDestroy, nil).(ipc.SwitchData)
	if !data.Changed {
		t.Fatalf("destroying the current workspace must switch: %+v", data)
	}
	list := command(t, d, ipc.CommandListWorkspace, nil).(ipc.WorkspaceListData)
	if len(list.Monitors) != 1 || len(list.Monitors[0].Workspaces) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if !list.Monitors[0].Workspaces[0].Current {
		t.Fatalf("first workspace should be current: %+v", list.Monitors[0].Workspaces)
	}
}

func TestListWorkspaces_ReportsLayouts(t *testing.T) {
	d, _, _ := newDaemon(t, testConfig(), win(1, 0))
	startTiling(t, d)

	waitFor(t, "workspace layouts", func() bool {
		list := command(t, d, ipc.CommandListWorkspace, nil).(ipc.WorkspaceListData)
		for _, ws := range list.Monitors[0].Workspaces {
			if ws.Layout != config.DefaultLayout {
				return false
			}
		}
		return true
	})
}

func TestWindowEvents_FeedWorkspaces(t *testing.T) {
	d, backend, _ := newDaemon(t, testConfig(), win(1, 0))

	backend.AddWindow(win(5, 0))
	d.handleWindowEvent(platform.WindowEvent{Kind: platform.EventCreated, Window: 5})
	if _, _, ok := d.Manager().Locate(5); !ok {
		t.Fatalf("created window not tracked")
	}

	d.handleWindowEvent(platform.WindowEvent{Kind: platform.EventMinimized, Window: 5})
	if _, _, ok := d.Manager().Locate(5); ok {
		t.Fatalf("minimized window still tracked")
	}
	d.handleWindowEvent(platform.WindowEvent{Kind: platform.EventRestored, Window: 5})
	if _, _, ok := d.Manager().Locate(5); !ok {
		t.Fatalf("restored window not tracked")
	}

	backend.AddWindow(win(6, 0))
	d.handleWindowEvent(platform.WindowEvent{Kind: platform.EventReparented, Window: 5, Creator: 6})
	if _, _, ok := d.Manager().Locate(6); !ok {
		t.Fatalf("creator did not take over the host's slot")
	}

	d.handleWindowEvent(platform.WindowEvent{Kind: platform.EventDestroyed, Window: 1})
	if _, _, ok := d.Manager().Locate(1); ok {
		t.Fatalf("destroyed window still tracked")
	}

	d.handleWindowEvent(platform.WindowEvent{Kind: platform.EventCreated, Window: 99})
	if _, _, ok := d.Manager().Locate(99); ok {
		t.Fatalf("vanished window was tracked")
	}
}

func TestReconciler_PrunesStaleWindows(t *testing.T) {
	d, backend, _ := newDaemon(t, testConfig(), win(1, 0), win(2, 0))
	backend.Remove(2)

	r := NewReconciler(ReconcilerConfig{Interval: time.Hour}, d, d.listWindowIDs)
	r.ReconcileNow(context.Background())

	if _, _, ok := d.Manager().Locate(2); ok {
		t.Fatalf("stale window survived reconcile")
	}
	if _, _, ok := d.Manager().Locate(1); !ok {
		t.Fatalf("live window was dropped")
	}
}

type panicPruner struct{}

func (panicPruner) Prune(context.Context, map[platform.WindowID]bool) { panic("boom") }

func TestReconciler_RecoversPanics(t *testing.T) {
	r := NewReconciler(ReconcilerConfig{}, panicPruner{}, func() ([]platform.WindowID, error) {
		return []platform.WindowID{1}, nil
	})
	r.ReconcileNow(context.Background())
	if r.interval != DefaultReconcileInterval {
		t.Fatalf("interval = %v, want %v", r.interval, DefaultReconcileInterval)
	}
}

func TestReloadCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tiling:\n  gap_size: 4\nanimation:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	backend := platformtest.New(screen)
	service := &fakeService{}
	d, err := New(Options{Backend: backend, Service: service, Config: testConfig(), ConfigPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	status := command(t, d, ipc.CommandReload, nil).(ipc.StatusData)
	if d.Config().Tiling.GapSize != 4 {
		t.Fatalf("gap size = %d, want 4", d.Config().Tiling.GapSize)
	}
	if status.LastReload.IsZero() {
		t.Fatalf("last reload not recorded")
	}
	service.mu.Lock()
	enabled := len(service.hotkeys)
	service.mu.Unlock()
	if enabled != 1 {
		t.Fatalf("hotkeys enabled %d times, want 1", enabled)
	}

	if err := os.WriteFile(path, []byte("tiling:\n  gap_size: -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	req, _ := ipc.NewRequest(ipc.CommandReload, nil)
	if _, err := d.HandleCommand(context.Background(), req); err == nil {
		t.Fatalf("expected reload error for invalid config")
	}
	if d.Config().Tiling.GapSize != 4 {
		t.Fatalf("invalid reload replaced the running config")
	}
}

func TestStatus_TracksServiceReachability(t *testing.T) {
	d, backend, service := newDaemon(t, testConfig(), win(1, 0), win(2, 1))
	status := command(t, d, ipc.CommandStatus, nil).(ipc.StatusData)
	if !status.ServiceReachable || status.Windows != 2 || status.Workspaces != 2 || status.Monitors != 1 {
		t.Fatalf("status = %+v", status)
	}

	backend.SetActive(0)
	service.setErr(errors.New("connection refused"))
	command(t, d, ipc.CommandSwitch, ipc.IndexPayload{Index: 1})
	if command(t, d, ipc.CommandStatus, nil).(ipc.StatusData).ServiceReachable {
		t.Fatalf("service should be unreachable after a connection failure")
	}

	service.setErr(&svc.RemoteError{Action: svc.ActionShowWindow, Message: "stale"})
	command(t, d, ipc.CommandSwitch, ipc.IndexPayload{Index: 0})
	if !command(t, d, ipc.CommandStatus, nil).(ipc.StatusData).ServiceReachable {
		t.Fatalf("a remote error means the service answered")
	}
}

func TestHandleCommand_Unknown(t *testing.T) {
	d, _, _ := newDaemon(t, testConfig())
	if _, err := d.HandleCommand(context.Background(), ipc.Request{Command: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestRun_ServesControlSocket(t *testing.T) {
	dir := t.TempDir()
	backend := platformtest.New(screen)
	backend.AddWindow(win(1, 0))
	cfg := testConfig()
	cfg.Daemon.WatchConfig = false
	d, err := New(Options{
		Backend:       backend,
		Events:        backend,
		Service:       &fakeService{},
		Config:        cfg,
		ControlSocket: filepath.Join(dir, "control.sock"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	client := ipc.NewClient(filepath.Join(dir, "control.sock"))
	var status ipc.StatusData
	waitFor(t, "control socket", func() bool {
		raw, err := client.Do(context.Background(), ipc.Request{Command: ipc.CommandStatus})
		if err != nil {
			return false
		}
		return json.Unmarshal(raw, &status) == nil
	})
	if status.Windows != 1 {
		t.Fatalf("status windows = %d, want 1", status.Windows)
	}

	backend.Open(win(7, 0))
	waitFor(t, "created window", func() bool {
		_, _, ok := d.Manager().Locate(7)
		return ok
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return")
	}
}
