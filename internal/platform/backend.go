package platform

import (
	"context"
	"errors"
	"fmt"
)

// WindowID is a platform-neutral window identifier. It is a reference, not
// ownership: the window may disappear at any time.
type WindowID uint32

// ErrStaleWindow is returned when a handle no longer refers to a valid
// top-level window. Callers treat it as a normal, non-fatal condition.
var ErrStaleWindow = errors.New("window no longer valid")

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether the point lies inside the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Center returns the rect's midpoint.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns Width*Height, or 0 for degenerate rects.
func (r Rect) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Inset shrinks the rect by the given amounts on each side.
func (r Rect) Inset(top, right, bottom, left int) Rect {
	return Rect{
		X:      r.X + left,
		Y:      r.Y + top,
		Width:  r.Width - left - right,
		Height: r.Height - top - bottom,
	}
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Usable Rect
}

// Key returns the stable string id used to address the display as a monitor.
func (d Display) Key() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("Monitor%d", d.ID)
}

// Window contains metadata and geometry for a top-level window.
type Window struct {
	ID        WindowID
	PID       int
	AppID     string
	Title     string
	Bounds    Rect
	Desktop   int
	Sticky    bool
	Minimized bool
	// Leader is the creator window when this window is a frame host or
	// transient of another top-level window; 0 otherwise.
	Leader WindowID
}

// PlacementFlags tune how a single deferred position is applied.
type PlacementFlags uint32

const (
	NoMove PlacementFlags = 1 << iota
	NoSize
	NoZOrder
	NoActivate
	ShowWindow
	HideWindow
)

// Has reports whether all bits of f2 are set.
func (f PlacementFlags) Has(f2 PlacementFlags) bool {
	return f&f2 == f2
}

// DeferredPositions is an open atomic multi-window repositioning batch.
// Defer returns ErrStaleWindow for handles that vanished; the batch stays
// usable. End commits the batch and must always be called.
type DeferredPositions interface {
	Defer(windowID WindowID, bounds Rect, flags PlacementFlags) error
	End() error
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	Displays() ([]Display, error)
	ActiveWindow() (WindowID, error)
	ListWindows() ([]Window, error)
	WindowInfo(windowID WindowID) (Window, error)
	IsManageable(windowID WindowID) bool
	MoveResize(windowID WindowID, bounds Rect) error
	Show(windowID WindowID) error
	Hide(windowID WindowID) error
	Focus(windowID WindowID) error
	CurrentDesktop() (int, error)
	DesktopCount() (int, error)
	BeginDeferred(n int) (DeferredPositions, error)
}

// EventKind classifies raw OS window events.
type EventKind string

const (
	EventCreated    EventKind = "created"
	EventDestroyed  EventKind = "destroyed"
	EventFocused    EventKind = "focused"
	EventMinimized  EventKind = "minimized"
	EventRestored   EventKind = "restored"
	EventReparented EventKind = "reparented"
)

// WindowEvent is one raw window event as reported by an EventSource.
type WindowEvent struct {
	Kind   EventKind
	Window WindowID
	// Creator is set for EventReparented.
	Creator WindowID
}

// EventSource streams window events until ctx is cancelled.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan WindowEvent, error)
}

// DisplayForWindow returns the display containing the window's center, or
// the first display when the center is off-screen.
func DisplayForWindow(displays []Display, bounds Rect) (Display, bool) {
	if len(displays) == 0 {
		return Display{}, false
	}
	cx, cy := bounds.Center()
	for _, d := range displays {
		if d.Bounds.Contains(cx, cy) {
			return d, true
		}
	}
	return displays[0], true
}
