//go:build linux

package platform

import (
	"context"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// Subscribe watches root and client property changes and emits the window
// events they imply. The caller must run EventLoop for events to flow.
func (b *LinuxBackend) Subscribe(ctx context.Context) (<-chan WindowEvent, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	xu := conn.XUtil

	if err := xwindow.New(xu, conn.Root).Listen(xproto.EventMaskPropertyChange); err != nil {
		return nil, err
	}

	out := make(chan WindowEvent, 64)
	w := &clientWatcher{backend: b, out: out, ctx: ctx, watched: make(map[WindowID]bool)}
	w.prev = w.snapshot()
	w.watchClients(w.prev.Clients)

	xevent.PropertyNotifyFun(func(_ *xgbutil.XUtil, _ xevent.PropertyNotifyEvent) {
		w.refresh()
	}).Connect(xu, conn.Root)

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		w.closed = true
		close(out)
		w.mu.Unlock()
	}()

	return out, nil
}

type clientWatcher struct {
	backend *LinuxBackend
	ctx     context.Context
	out     chan WindowEvent

	mu      sync.Mutex
	closed  bool
	prev    ClientSnapshot
	watched map[WindowID]bool
}

func (w *clientWatcher) refresh() {
	next := w.snapshot()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	events := DiffClients(w.prev, next)
	w.prev = next
	w.watchClientsLocked(next.Clients)

	for _, ev := range events {
		if ev.Kind == EventDestroyed {
			delete(w.watched, ev.Window)
			w.backend.forgetHidden(ev.Window)
		}
		select {
		case w.out <- ev:
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *clientWatcher) snapshot() ClientSnapshot {
	conn := w.backend.conn
	snap := ClientSnapshot{
		Minimized: make(map[WindowID]bool),
		Leaders:   make(map[WindowID]WindowID),
	}
	clients, err := conn.ClientList()
	if err != nil {
		return snap
	}
	known := make(map[xproto.Window]bool, len(clients))
	for _, c := range clients {
		known[c] = true
	}
	for _, c := range clients {
		id := WindowID(c)
		snap.Clients = append(snap.Clients, id)
		if conn.IsHidden(c) && !w.backend.isSelfHidden(id) {
			snap.Minimized[id] = true
		}
		if l := conn.Leader(c); l != 0 && known[l] {
			snap.Leaders[id] = WindowID(l)
		}
	}
	if active, err := conn.ActiveWindow(); err == nil {
		snap.Active = WindowID(active)
	}
	return snap
}

func (w *clientWatcher) watchClients(ids []WindowID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchClientsLocked(ids)
}

// watchClientsLocked subscribes to _NET_WM_STATE changes on new clients so
// minimize/restore is seen without a root property change.
func (w *clientWatcher) watchClientsLocked(ids []WindowID) {
	xu := w.backend.conn.XUtil
	for _, id := range ids {
		if w.watched[id] {
			continue
		}
		win := xproto.Window(id)
		if err := xwindow.New(xu, win).Listen(xproto.EventMaskPropertyChange); err != nil {
			continue
		}
		w.watched[id] = true
		xevent.PropertyNotifyFun(func(_ *xgbutil.XUtil, _ xevent.PropertyNotifyEvent) {
			w.refresh()
		}).Connect(xu, win)
	}
}
