package hotkeys

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// X11Grabber implements Grabber with passive key grabs on the root window and
// an active keyboard grab redirected to an InputOnly window for capture.
type X11Grabber struct {
	xu   *xgbutil.XUtil
	root xproto.Window

	mu         sync.Mutex
	grabWindow xproto.Window
	capturing  bool
}

var ignoreModsOnce sync.Once

// NewX11Grabber creates a grabber on an initialized connection.
func NewX11Grabber(xu *xgbutil.XUtil, root xproto.Window) *X11Grabber {
	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})
	return &X11Grabber{xu: xu, root: root}
}

func (g *X11Grabber) Bind(keys string, fn func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		fn()
	}).Connect(g.xu, g.root, keys, true)
}

func (g *X11Grabber) UnbindAll() {
	keybind.Detach(g.xu, g.root)
}

func (g *X11Grabber) StartCapture(onSequence func(string)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.capturing {
		return nil
	}
	if err := g.ensureGrabWindow(); err != nil {
		return err
	}

	grab := func() (*xproto.GrabKeyboardReply, error) {
		return xproto.GrabKeyboard(g.xu.Conn(), false, g.root, xproto.TimeCurrentTime,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
	}
	reply, err := grab()
	if err != nil {
		return err
	}
	// Started from a hotkey, the keyboard may already be grabbed by us.
	if reply.Status == xproto.GrabStatusAlreadyGrabbed {
		xproto.UngrabKeyboard(g.xu.Conn(), xproto.TimeCurrentTime)
		if reply, err = grab(); err != nil {
			return err
		}
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("keyboard grab failed with status %d", reply.Status)
	}

	xevent.RedirectKeyEvents(g.xu, g.grabWindow)
	xevent.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		name := keybind.LookupString(xu, 0, ev.Detail)
		if name == "" || IsModifierKey(name) {
			return
		}
		onSequence(FormatSequence(keybind.ModifierString(ev.State), name))
	}).Connect(g.xu, g.grabWindow)
	g.capturing = true
	return nil
}

func (g *X11Grabber) StopCapture() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.capturing {
		return
	}
	xproto.UngrabKeyboard(g.xu.Conn(), xproto.TimeCurrentTime)
	xevent.RedirectKeyEvents(g.xu, 0)
	xevent.Detach(g.xu, g.grabWindow)
	g.capturing = false
}

func (g *X11Grabber) ensureGrabWindow() error {
	if g.grabWindow != 0 {
		return nil
	}
	conn := g.xu.Conn()
	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return err
	}
	// InputOnly target for key callbacks while the keyboard is grabbed.
	err = xproto.CreateWindowChecked(
		conn,
		0, // depth (must be 0 for InputOnly)
		wid,
		g.root,
		0, 0,
		1, 1,
		0,
		xproto.WindowClassInputOnly,
		xproto.Visualid(0),
		xproto.CwEventMask,
		[]uint32{uint32(xproto.EventMaskKeyPress)},
	).Check()
	if err != nil {
		return err
	}
	xproto.MapWindow(conn, wid)
	g.grabWindow = wid
	return nil
}

// configureIgnoreMods makes grabs fire regardless of CapsLock, NumLock and
// ScrollLock state.
func configureIgnoreMods(xu *xgbutil.XUtil) {
	caps := uint16(xproto.ModMaskLock)
	base := []uint16{caps}
	for _, sym := range []string{"Num_Lock", "Scroll_Lock"} {
		mask := modMaskForKeysym(xu, sym)
		if mask == 0 {
			continue
		}
		dup := false
		for _, b := range base {
			if b == mask {
				dup = true
			}
		}
		if !dup {
			base = append(base, mask)
		}
	}

	ignore := []uint16{0}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		ignore = append(ignore, mask)
	}
	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
