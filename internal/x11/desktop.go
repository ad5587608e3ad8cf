package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// StickyDesktop is the _NET_WM_DESKTOP value for windows on all desktops.
const StickyDesktop = 0xFFFFFFFF

// sourcePager marks client messages as coming from a pager/direct action.
const sourcePager = 2

// CurrentDesktop returns the current virtual desktop number (0-indexed).
func (c *Connection) CurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// DesktopCount returns the number of virtual desktops.
func (c *Connection) DesktopCount() (int, error) {
	count, err := ewmh.NumberOfDesktopsGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get desktop count: %w", err)
	}
	return int(count), nil
}

// WindowDesktop returns the desktop a window is on and whether it is sticky.
func (c *Connection) WindowDesktop(windowID xproto.Window) (desktop int, sticky bool, err error) {
	d, err := ewmh.WmDesktopGet(c.XUtil, windowID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get window desktop: %w", err)
	}
	if d == StickyDesktop {
		return 0, true, nil
	}
	return int(d), false, nil
}

// FocusWindow activates and raises a window using _NET_ACTIVE_WINDOW.
func (c *Connection) FocusWindow(windowID xproto.Window) error {
	return c.sendRootMessage(windowID, "_NET_ACTIVE_WINDOW", sourcePager)
}

// ClientList returns the window manager's managed client list in mapping order.
func (c *Connection) ClientList() ([]xproto.Window, error) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}
	return clients, nil
}

// ActiveWindow returns _NET_ACTIVE_WINDOW.
func (c *Connection) ActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}
