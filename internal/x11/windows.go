package x11

import (
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

const iconicState = 3

var unmanagedTypes = map[string]bool{
	"_NET_WM_WINDOW_TYPE_DESKTOP":      true,
	"_NET_WM_WINDOW_TYPE_DOCK":         true,
	"_NET_WM_WINDOW_TYPE_SPLASH":       true,
	"_NET_WM_WINDOW_TYPE_NOTIFICATION": true,
	"_NET_WM_WINDOW_TYPE_TOOLBAR":      true,
	"_NET_WM_WINDOW_TYPE_MENU":         true,
	"_NET_WM_WINDOW_TYPE_DIALOG":       true,
	"_NET_WM_WINDOW_TYPE_UTILITY":      true,
}

// Geometry returns a window's root-relative position and size. An error means
// the window is gone.
func (c *Connection) Geometry(windowID xproto.Window) (x, y, width, height int, err error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), nil
}

// Exists reports whether the handle still names a live window.
func (c *Connection) Exists(windowID xproto.Window) bool {
	_, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	return err == nil
}

// MoveResizeWindow moves and resizes a window, clearing any maximized state first.
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) {
	c.unmaximizeWindow(windowID)

	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height); err != nil {
		xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
	}
}

// Raise puts the window on top of its siblings.
func (c *Connection) Raise(windowID xproto.Window) {
	xwindow.New(c.XUtil, windowID).Stack(xproto.StackModeAbove)
}

// Iconify asks the window manager to minimize the window via WM_CHANGE_STATE.
func (c *Connection) Iconify(windowID xproto.Window) error {
	return c.sendRootMessage(windowID, "WM_CHANGE_STATE", iconicState)
}

// Map maps the window. For an iconified client this is the ICCCM request to
// return it to the normal state.
func (c *Connection) Map(windowID xproto.Window) {
	xwindow.New(c.XUtil, windowID).Map()
}

func (c *Connection) unmaximizeWindow(windowID xproto.Window) {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_MAXIMIZED_HORZ" || state == "_NET_WM_STATE_MAXIMIZED_VERT" {
			ewmh.WmStateReq(c.XUtil, windowID, ewmh.StateRemove, state)
		}
	}
}

// States returns _NET_WM_STATE as a set.
func (c *Connection) States(windowID xproto.Window) map[string]bool {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return nil
	}
	set := make(map[string]bool, len(states))
	for _, s := range states {
		set[s] = true
	}
	return set
}

// IsHidden reports whether the window is minimized.
func (c *Connection) IsHidden(windowID xproto.Window) bool {
	return c.States(windowID)["_NET_WM_STATE_HIDDEN"]
}

// IsManageable reports whether the window is an ordinary, resizable,
// top-level application window that a tiler may position.
func (c *Connection) IsManageable(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err == nil {
		for _, t := range types {
			if unmanagedTypes[t] {
				return false
			}
		}
	}
	states := c.States(windowID)
	if states["_NET_WM_STATE_SKIP_TASKBAR"] || states["_NET_WM_STATE_FULLSCREEN"] || states["_NET_WM_STATE_MODAL"] {
		return false
	}
	if hints, err := icccm.WmNormalHintsGet(c.XUtil, windowID); err == nil {
		if hints.Flags&icccm.SizeHintPMinSize != 0 && hints.Flags&icccm.SizeHintPMaxSize != 0 &&
			hints.MinWidth == hints.MaxWidth && hints.MinHeight == hints.MaxHeight && hints.MaxWidth > 0 {
			return false
		}
	}
	if transient, err := icccm.WmTransientForGet(c.XUtil, windowID); err == nil && transient != 0 && transient != c.Root {
		return false
	}
	return true
}

// Leader returns the window this one belongs to: WM_TRANSIENT_FOR when set,
// otherwise WM_CLIENT_LEADER when it names a different window.
func (c *Connection) Leader(windowID xproto.Window) xproto.Window {
	if transient, err := icccm.WmTransientForGet(c.XUtil, windowID); err == nil && transient != 0 && transient != c.Root {
		return transient
	}
	leader, err := xprop.PropValWindow(xprop.GetProperty(c.XUtil, windowID, "WM_CLIENT_LEADER"))
	if err != nil {
		return 0
	}
	if leader == windowID {
		return 0
	}
	return leader
}

// PID returns _NET_WM_PID or 0.
func (c *Connection) PID(windowID xproto.Window) int {
	pid, err := ewmh.WmPidGet(c.XUtil, windowID)
	if err != nil {
		return 0
	}
	return int(pid)
}

// AppID returns the WM_CLASS class part.
func (c *Connection) AppID(windowID xproto.Window) string {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

// Title returns _NET_WM_NAME, falling back to WM_NAME.
func (c *Connection) Title(windowID xproto.Window) string {
	if title, err := ewmh.WmNameGet(c.XUtil, windowID); err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if title, err := icccm.WmNameGet(c.XUtil, windowID); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}
