// Package daemon runs the unprivileged orchestrator. It turns raw window
// events into workspace and tiling decisions and applies them through the
// privileged service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/panewm/internal/config"
	"github.com/1broseidon/panewm/internal/events"
	"github.com/1broseidon/panewm/internal/ipc"
	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/positioner"
	"github.com/1broseidon/panewm/internal/svc"
	"github.com/1broseidon/panewm/internal/tiling"
	"github.com/1broseidon/panewm/internal/vdesk"
)

// Service is the subset of the privileged service the daemon drives.
// *svc.Client satisfies it.
type Service interface {
	ShowWindow(ctx context.Context, window platform.WindowID) error
	HideWindow(ctx context.Context, window platform.WindowID) error
	SetFocus(ctx context.Context, window platform.WindowID) error
	EnableHotkeys(ctx context.Context, bindings []svc.HotkeyBinding) error
	DeferredPositions(ctx context.Context, positions []positioner.Target, animated bool, duration time.Duration, easing string) (svc.PlacementData, error)
}

var _ Service = (*svc.Client)(nil)

// DefaultBatchTimeout bounds how long one tiling batch may wait on the
// service. A dropped batch is recomputed by the next tiling change.
const DefaultBatchTimeout = 3 * time.Second

// Options configure a Daemon.
type Options struct {
	// Backend answers read-only window queries. The daemon never moves
	// windows through it.
	Backend platform.Backend
	// Events is optional; without it only the reconciler notices changes.
	Events  platform.EventSource
	Service Service
	Config  *config.Config
	// ConfigPath is reloaded by Reload. Empty disables reloading.
	ConfigPath string
	// ConfigFiles are watched when Config.Daemon.WatchConfig is set.
	ConfigFiles    []string
	ControlSocket  string
	LauncherSocket string
	Logger         *slog.Logger
}

// Daemon owns the workspace manager and the tiling engine.
type Daemon struct {
	backend platform.Backend
	source  platform.EventSource
	service Service
	logger  *slog.Logger

	bus     *events.Bus
	tileSub *events.Subscription
	manager *vdesk.Manager
	engine  *tiling.Engine

	controlSocket  string
	launcherSocket string

	cfgMu       sync.RWMutex
	cfg         *config.Config
	configPath  string
	configFiles []string
	lastReload  time.Time

	startedAt time.Time

	batches      *batchQueue
	batchTimeout time.Duration
	// batchMu serializes taking and applying batches so an older batch is
	// never sent after a newer one for the same monitor.
	batchMu sync.Mutex
	// visMu keeps show/hide calls in decision order.
	visMu sync.Mutex
	// serviceDown is set while the last service call failed to connect.
	serviceDown atomic.Bool
}

// New builds a daemon. Call Init before Run.
func New(opts Options) (*Daemon, error) {
	if opts.Backend == nil {
		return nil, errors.New("daemon: backend is required")
	}
	if opts.Service == nil {
		return nil, errors.New("daemon: service is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bus := events.NewBus(logger)
	d := &Daemon{
		backend:        opts.Backend,
		source:         opts.Events,
		service:        opts.Service,
		logger:         logger,
		bus:            bus,
		controlSocket:  opts.ControlSocket,
		launcherSocket: opts.LauncherSocket,
		cfg:            cfg,
		configPath:     opts.ConfigPath,
		configFiles:    opts.ConfigFiles,
		startedAt:      time.Now(),
		batches:        newBatchQueue(),
		batchTimeout:   DefaultBatchTimeout,
	}
	d.manager = vdesk.NewManager(bus, vdesk.Options{
		Names:       cfg.Workspaces.Names,
		SettleDelay: cfg.Workspaces.SettleDelay,
		Logger:      logger,
	})
	d.engine = tiling.NewEngine(cfg.TilingSettings(), logger)
	// Subscribed before Init so the engine sees the initial workspaces. The
	// engine must see every membership change, so nothing is ever dropped.
	d.tileSub = bus.SubscribeLossless("tiling")
	return d, nil
}

// Manager exposes the workspace manager.
func (d *Daemon) Manager() *vdesk.Manager { return d.manager }

// Engine exposes the tiling engine.
func (d *Daemon) Engine() *tiling.Engine { return d.engine }

// Config returns the effective configuration.
func (d *Daemon) Config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// Init reads displays, OS desktops and existing windows, then hides every
// window that is not on its monitor's current workspace.
func (d *Daemon) Init(ctx context.Context) error {
	displays, err := d.backend.Displays()
	if err != nil {
		return fmt.Errorf("list displays: %w", err)
	}
	if len(displays) == 0 {
		return errors.New("no displays")
	}
	for _, disp := range displays {
		area := disp.Usable
		if area.Width <= 0 || area.Height <= 0 {
			area = disp.Bounds
		}
		if err := d.engine.SetMonitor(disp.Key(), area); err != nil {
			return err
		}
	}

	count, err := d.backend.DesktopCount()
	if err != nil {
		d.logger.Warn("desktop count unavailable", "err", err)
		count = 1
	}
	current, err := d.backend.CurrentDesktop()
	if err != nil {
		d.logger.Warn("current desktop unavailable", "err", err)
	}

	all, err := d.backend.ListWindows()
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	windows := make([]platform.Window, 0, len(all))
	for _, w := range all {
		if d.backend.IsManageable(w.ID) {
			windows = append(windows, w)
		}
	}
	if err := d.manager.Init(displays, count, current, windows); err != nil {
		return err
	}

	monitors, err := d.manager.Snapshot()
	if err != nil {
		return err
	}
	var hide []platform.WindowID
	for _, m := range monitors {
		for i, ws := range m.Workspaces {
			if i != m.Current {
				hide = append(hide, ws.Windows...)
			}
		}
	}
	d.applyVisibility(ctx, nil, hide)

	d.logger.Info("daemon initialized",
		"monitors", len(monitors),
		"windows", len(windows),
		"desktops", count)
	return nil
}

// Run serves until ctx is cancelled. It starts the tiling loop, the window
// event loop, the control server, the reconciler and the config watcher.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

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

	if d.source != nil {
		ch, err := d.source.Subscribe(ctx)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribe to window events: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runWindowEvents(ctx, ch)
		}()
	}

	cfg := d.Config()
	d.enableHotkeys(ctx, cfg.Hotkeys)

	reconciler := NewReconciler(ReconcilerConfig{
		Interval: cfg.Daemon.ReconcileInterval,
		Logger:   d.logger,
	}, d, d.listWindowIDs)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	if cfg.Daemon.WatchConfig && d.configPath != "" {
		files := d.configFiles
		if len(files) == 0 {
			files = []string{d.configPath}
		}
		changes, err := config.Watch(ctx, files, config.DefaultDebounce, d.logger)
		if err != nil {
			d.logger.Warn("config watch unavailable", "err", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range changes {
					if err := d.Reload(ctx); err != nil {
						d.logger.Error("config reload failed", "err", err)
					}
				}
			}()
		}
	}

	errc := make(chan error, 1)
	if d.controlSocket != "" {
		server := ipc.NewServer(d.controlSocket, d, d.logger)
		if err := server.Listen(); err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errc <- server.Serve(ctx)
		}()
	}

	if d.launcherSocket != "" {
		svc.NotifyLauncher(ctx, d.launcherSocket, svc.LauncherCloseSplash, d.logger)
	}

	d.logger.Info("daemon running", "control_socket", d.controlSocket)
	<-ctx.Done()
	d.tileSub.Unsubscribe()
	wg.Wait()
	d.bus.Close()

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

func (d *Daemon) runTiling(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.tileSub.C:
			if !ok {
				return
			}
			b, ok, err := d.engine.HandleEvent(ev)
			if err != nil {
				// The event is lost for the engine; force-retile or the next
				// reconfigure resynchronizes positions.
				d.logger.Error("tiling event failed", "kind", ev.Kind, "window", ev.Window, "err", err)
				continue
			}
			if ok {
				d.batches.put(b)
			}
		}
	}
}

// runBatches applies queued tiling batches off the event loop, so a slow
// service never holds up the engine.
func (d *Daemon) runBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.batches.wake:
			d.flushBatches(ctx)
		}
	}
}

func (d *Daemon) flushBatches(ctx context.Context) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	for _, b := range d.batches.take() {
		d.sendBatch(ctx, b)
	}
}

func (d *Daemon) runWindowEvents(ctx context.Context, ch <-chan platform.WindowEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			d.handleWindowEvent(ev)
		}
	}
}

// handleWindowEvent feeds one raw window event to the workspace manager.
func (d *Daemon) handleWindowEvent(ev platform.WindowEvent) {
	var err error
	switch ev.Kind {
	case platform.EventCreated, platform.EventRestored:
		if !d.backend.IsManageable(ev.Window) {
			return
		}
		var info platform.Window
		info, err = d.backend.WindowInfo(ev.Window)
		if err != nil {
			d.logger.Debug("window vanished before it was tracked", "window", ev.Window, "err", err)
			return
		}
		info.Minimized = false
		_, err = d.manager.WindowOpened(info)
	case platform.EventDestroyed:
		_, err = d.manager.WindowClosed(ev.Window)
	case platform.EventMinimized:
		_, err = d.manager.WindowMinimized(ev.Window)
	case platform.EventFocused:
		_, err = d.manager.WindowFocused(ev.Window)
	case platform.EventReparented:
		_, err = d.manager.WindowReparented(ev.Window, ev.Creator)
	default:
		return
	}
	if err != nil {
		d.logger.Warn("window event dropped", "kind", ev.Kind, "window", ev.Window, "err", err)
	}
}

// applyBatch queues one tiling batch and applies everything pending before
// returning.
func (d *Daemon) applyBatch(ctx context.Context, b tiling.Batch) {
	d.batches.put(b)
	d.flushBatches(ctx)
}

func (d *Daemon) sendBatch(ctx context.Context, b tiling.Batch) {
	if len(b.Targets) == 0 {
		return
	}
	anim := d.Config().Animation

	ctx, cancel := context.WithTimeout(ctx, d.batchTimeout)
	defer cancel()
	res, err := d.service.DeferredPositions(ctx, b.Targets, anim.Enabled, anim.Duration, anim.Easing)
	d.noteService(err)
	if err != nil {
		d.logger.Warn("tiling batch failed",
			"monitor", b.Monitor,
			"workspace", b.Workspace,
			"windows", len(b.Targets),
			"err", err)
		return
	}
	if len(res.Skipped) > 0 {
		d.logger.Debug("tiling batch skipped stale windows", "skipped", res.Skipped)
	}
}

func (d *Daemon) applyBatches(ctx context.Context, batches []tiling.Batch) {
	for _, b := range batches {
		d.batches.put(b)
	}
	d.flushBatches(ctx)
}

// applyVisibility shows and hides windows through the service. It matches
// vdesk.Applier. Hides go first so the outgoing workspace never overlaps the
// incoming one.
func (d *Daemon) applyVisibility(ctx context.Context, show, hide []platform.WindowID) {
	d.visMu.Lock()
	defer d.visMu.Unlock()
	for _, w := range hide {
		err := d.service.HideWindow(ctx, w)
		d.noteService(err)
		if err != nil {
			d.logger.Debug("hide failed", "window", w, "err", err)
		}
	}
	for _, w := range show {
		err := d.service.ShowWindow(ctx, w)
		d.noteService(err)
		if err != nil {
			d.logger.Debug("show failed", "window", w, "err", err)
		}
	}
}

// noteService records whether the service answered. A remote error still
// means it is reachable.
func (d *Daemon) noteService(err error) {
	var remote *svc.RemoteError
	d.serviceDown.Store(err != nil && !errors.As(err, &remote))
}

func (d *Daemon) enableHotkeys(ctx context.Context, bindings []svc.HotkeyBinding) {
	err := d.service.EnableHotkeys(ctx, bindings)
	d.noteService(err)
	if err != nil {
		d.logger.Warn("enable hotkeys failed", "err", err)
	}
}

func (d *Daemon) listWindowIDs() ([]platform.WindowID, error) {
	windows, err := d.backend.ListWindows()
	if err != nil {
		return nil, err
	}
	ids := make([]platform.WindowID, 0, len(windows))
	for _, w := range windows {
		ids = append(ids, w.ID)
	}
	return ids, nil
}

// Prune drops every tracked window that is not alive.
func (d *Daemon) Prune(ctx context.Context, alive map[platform.WindowID]bool) {
	dropped, err := d.manager.Forget(alive)
	if err != nil {
		d.logger.Warn("workspace prune failed", "err", err)
	}
	for _, w := range dropped {
		d.logger.Info("reconciler: dropped stale window", "window", w)
	}
	batches, err := d.engine.Forget(alive)
	if err != nil {
		d.logger.Warn("tiling prune failed", "err", err)
		return
	}
	d.applyBatches(ctx, batches)
}

// Reload re-reads the configuration file and reconfigures the engine.
// An invalid file leaves the running configuration untouched.
func (d *Daemon) Reload(ctx context.Context) error {
	if d.configPath == "" {
		return errors.New("no config path")
	}
	res, err := config.LoadFromPath(d.configPath)
	if err != nil {
		return err
	}

	d.cfgMu.Lock()
	prev := d.cfg
	d.cfg = res.Config
	d.configFiles = res.Files
	d.lastReload = time.Now()
	d.cfgMu.Unlock()

	if diff := config.Diff(prev, res.Config); diff != "" {
		d.logger.Debug("config changed", "diff", diff)
	}
	d.logger.Info("config reloaded", "path", d.configPath, "files", len(res.Files))

	batches, err := d.engine.Reconfigure(res.Config.TilingSettings())
	d.enableHotkeys(ctx, res.Config.Hotkeys)
	if err != nil {
		return fmt.Errorf("reconfigure tiling: %w", err)
	}
	d.applyBatches(ctx, batches)
	return nil
}
