//go:build linux

package platform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/1broseidon/panewm/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an X11 connection behind the platform Backend interface.
//
// Hide iconifies through the window manager; windows hidden this way are
// remembered so the event source does not report them as user-minimized.
type LinuxBackend struct {
	conn *x11.Connection

	mu     sync.Mutex
	hidden map[WindowID]struct{}
}

var (
	_ Backend     = (*LinuxBackend)(nil)
	_ EventSource = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn, hidden: make(map[WindowID]struct{})}
}

// NewLinuxBackendFromDisplay opens a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop runs the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// StopEventLoop makes a running EventLoop return.
func (b *LinuxBackend) StopEventLoop() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Displays returns all active displays ordered by id.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.Monitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, Display{
			ID:     m.ID,
			Name:   m.Name,
			Bounds: rectFromBox(m.Bounds),
			Usable: rectFromBox(m.Usable),
		})
	}
	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})
	return displays, nil
}

// ActiveWindow returns the currently active/focused window ID.
func (b *LinuxBackend) ActiveWindow() (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	wid, err := conn.ActiveWindow()
	if err != nil {
		return 0, err
	}
	return WindowID(wid), nil
}

// ListWindows returns every window-manager client in mapping order.
// Clients that vanish while being queried are skipped.
func (b *LinuxBackend) ListWindows() ([]Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	clients, err := conn.ClientList()
	if err != nil {
		return nil, err
	}

	known := make(map[xproto.Window]bool, len(clients))
	for _, c := range clients {
		known[c] = true
	}

	windows := make([]Window, 0, len(clients))
	for _, c := range clients {
		w, err := b.windowInfo(conn, c, known)
		if err != nil {
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// WindowInfo returns metadata for one window, or ErrStaleWindow.
func (b *LinuxBackend) WindowInfo(windowID WindowID) (Window, error) {
	conn, err := b.connection()
	if err != nil {
		return Window{}, err
	}
	clients, err := conn.ClientList()
	if err != nil {
		return Window{}, err
	}
	known := make(map[xproto.Window]bool, len(clients))
	for _, c := range clients {
		known[c] = true
	}
	return b.windowInfo(conn, xproto.Window(windowID), known)
}

func (b *LinuxBackend) windowInfo(conn *x11.Connection, win xproto.Window, clients map[xproto.Window]bool) (Window, error) {
	x, y, w, h, err := conn.Geometry(win)
	if err != nil {
		return Window{}, fmt.Errorf("window 0x%x: %w", uint32(win), ErrStaleWindow)
	}

	desktop, sticky, derr := conn.WindowDesktop(win)
	if derr != nil {
		desktop = 0
	}

	var leader WindowID
	if l := conn.Leader(win); l != 0 && clients[l] {
		leader = WindowID(l)
	}

	return Window{
		ID:        WindowID(win),
		PID:       conn.PID(win),
		AppID:     conn.AppID(win),
		Title:     conn.Title(win),
		Bounds:    Rect{X: x, Y: y, Width: w, Height: h},
		Desktop:   desktop,
		Sticky:    sticky,
		Minimized: conn.IsHidden(win) && !b.isSelfHidden(WindowID(win)),
		Leader:    leader,
	}, nil
}

// IsManageable reports whether the window is a tileable application window.
func (b *LinuxBackend) IsManageable(windowID WindowID) bool {
	conn, err := b.connection()
	if err != nil {
		return false
	}
	win := xproto.Window(windowID)
	return conn.Exists(win) && conn.IsManageable(win)
}

// MoveResize moves and resizes a window to the specified bounds.
func (b *LinuxBackend) MoveResize(windowID WindowID, bounds Rect) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	win := xproto.Window(windowID)
	if !conn.Exists(win) {
		return ErrStaleWindow
	}
	conn.MoveResizeWindow(win, bounds.X, bounds.Y, bounds.Width, bounds.Height)
	return nil
}

// Show restores a window previously hidden with Hide.
func (b *LinuxBackend) Show(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	win := xproto.Window(windowID)
	if !conn.Exists(win) {
		b.forgetHidden(windowID)
		return ErrStaleWindow
	}
	conn.Map(win)
	b.forgetHidden(windowID)
	return nil
}

// Hide iconifies the window without reporting it as user-minimized.
func (b *LinuxBackend) Hide(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	win := xproto.Window(windowID)
	if !conn.Exists(win) {
		return ErrStaleWindow
	}
	b.mu.Lock()
	b.hidden[windowID] = struct{}{}
	b.mu.Unlock()
	return conn.Iconify(win)
}

// Focus activates and raises the window.
func (b *LinuxBackend) Focus(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.FocusWindow(xproto.Window(windowID))
}

// CurrentDesktop returns the current OS virtual desktop.
func (b *LinuxBackend) CurrentDesktop() (int, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	return conn.CurrentDesktop()
}

// DesktopCount returns the number of OS virtual desktops.
func (b *LinuxBackend) DesktopCount() (int, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	return conn.DesktopCount()
}

// BeginDeferred grabs the server so that the whole batch lands at once.
func (b *LinuxBackend) BeginDeferred(n int) (DeferredPositions, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	if err := conn.GrabServer(); err != nil {
		return nil, err
	}
	return &x11Deferred{backend: b, conn: conn, pending: make([]WindowID, 0, n)}, nil
}

type x11Deferred struct {
	backend *LinuxBackend
	conn    *x11.Connection
	pending []WindowID
	ended   bool
}

func (d *x11Deferred) Defer(windowID WindowID, bounds Rect, flags PlacementFlags) error {
	if d.ended {
		return fmt.Errorf("deferred batch already ended")
	}
	win := xproto.Window(windowID)
	if !d.conn.Exists(win) {
		return ErrStaleWindow
	}

	if flags.Has(HideWindow) {
		d.backend.mu.Lock()
		d.backend.hidden[windowID] = struct{}{}
		d.backend.mu.Unlock()
		if err := d.conn.Iconify(win); err != nil {
			return err
		}
		d.pending = append(d.pending, windowID)
		return nil
	}
	if flags.Has(ShowWindow) {
		d.conn.Map(win)
		d.backend.forgetHidden(windowID)
	}

	if !flags.Has(NoMove) || !flags.Has(NoSize) {
		x, y, w, h := bounds.X, bounds.Y, bounds.Width, bounds.Height
		if flags.Has(NoMove) || flags.Has(NoSize) {
			cx, cy, cw, ch, err := d.conn.Geometry(win)
			if err != nil {
				return ErrStaleWindow
			}
			if flags.Has(NoMove) {
				x, y = cx, cy
			}
			if flags.Has(NoSize) {
				w, h = cw, ch
			}
		}
		d.conn.MoveResizeWindow(win, x, y, w, h)
	}
	if !flags.Has(NoZOrder) {
		d.conn.Raise(win)
	}
	if !flags.Has(NoActivate) && flags.Has(ShowWindow) {
		_ = d.conn.FocusWindow(win)
	}
	d.pending = append(d.pending, windowID)
	return nil
}

func (d *x11Deferred) End() error {
	if d.ended {
		return nil
	}
	d.ended = true
	return d.conn.UngrabServer()
}

func (b *LinuxBackend) isSelfHidden(id WindowID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.hidden[id]
	return ok
}

func (b *LinuxBackend) forgetHidden(id WindowID) {
	b.mu.Lock()
	delete(b.hidden, id)
	b.mu.Unlock()
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func rectFromBox(box x11.Box) Rect {
	return Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}
}
