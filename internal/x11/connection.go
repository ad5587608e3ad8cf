package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
}

// NewConnection connects to the X server named by $DISPLAY.
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	// Required before any keybind.* call (hotkeys, key registration).
	keybind.Initialize(xu)

	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// EventLoop runs the xevent main loop (blocking).
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops a running EventLoop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

// GrabServer suspends processing of every other client's requests until
// UngrabServer. Used to make multi-window repositioning appear atomic.
func (c *Connection) GrabServer() error {
	if err := xproto.GrabServerChecked(c.XUtil.Conn()).Check(); err != nil {
		return fmt.Errorf("grab server: %w", err)
	}
	return nil
}

// UngrabServer releases a grab taken by GrabServer and flushes the queue.
func (c *Connection) UngrabServer() error {
	if err := xproto.UngrabServerChecked(c.XUtil.Conn()).Check(); err != nil {
		return fmt.Errorf("ungrab server: %w", err)
	}
	c.XUtil.Sync()
	return nil
}

// internAtom resolves an atom by name.
func (c *Connection) internAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern %s: %w", name, err)
	}
	return reply.Atom, nil
}

// sendRootMessage delivers a 32-bit client message about windowID to the root
// window, the way EWMH pagers talk to the window manager. The messages are
// built by hand because the xgbutil ewmh request helpers panic on this
// library version (uint vs int type assertion).
func (c *Connection) sendRootMessage(windowID xproto.Window, atomName string, data ...uint32) error {
	atom, err := c.internAtom(atomName)
	if err != nil {
		return err
	}
	payload := make([]uint32, 5)
	copy(payload, data)

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}
	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}
