// Package platformtest provides an in-memory platform.Backend for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/1broseidon/panewm/internal/platform"
)

// Placement is one applied entry of a committed deferred batch.
type Placement struct {
	Window platform.WindowID
	Bounds platform.Rect
	Flags  platform.PlacementFlags
}

// Backend is a scriptable in-memory window system.
type Backend struct {
	mu       sync.Mutex
	displays []platform.Display
	windows  map[platform.WindowID]*platform.Window
	order    []platform.WindowID
	hidden   map[platform.WindowID]bool
	active   platform.WindowID
	desktop  int
	desktops int

	batches     [][]Placement
	moves       []Placement
	showCalls   []platform.WindowID
	hideCalls   []platform.WindowID
	focusCalls  []platform.WindowID
	openBatches int

	// StaleAfterDefer makes the named window disappear right after it is
	// deferred the given number of times, simulating a close mid-batch.
	StaleAfterDefer map[platform.WindowID]int
	deferCounts     map[platform.WindowID]int

	unmanageable map[platform.WindowID]bool

	events chan platform.WindowEvent
}

var (
	_ platform.Backend     = (*Backend)(nil)
	_ platform.EventSource = (*Backend)(nil)
)

// New returns a fake with the given displays and a single OS desktop.
func New(displays ...platform.Display) *Backend {
	return &Backend{
		displays:        displays,
		windows:         make(map[platform.WindowID]*platform.Window),
		hidden:          make(map[platform.WindowID]bool),
		desktops:        1,
		StaleAfterDefer: make(map[platform.WindowID]int),
		deferCounts:     make(map[platform.WindowID]int),
		unmanageable:    make(map[platform.WindowID]bool),
		events:          make(chan platform.WindowEvent, 256),
	}
}

// SetDesktops sets the OS desktop count and current desktop.
func (b *Backend) SetDesktops(count, current int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.desktops = count
	b.desktop = current
}

// AddWindow registers a window. It does not emit an event.
func (b *Backend) AddWindow(w platform.Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.windows[w.ID]; !ok {
		b.order = append(b.order, w.ID)
	}
	cp := w
	b.windows[w.ID] = &cp
}

// Open registers a window and emits EventCreated.
func (b *Backend) Open(w platform.Window) {
	b.AddWindow(w)
	b.Emit(platform.WindowEvent{Kind: platform.EventCreated, Window: w.ID})
}

// Close removes a window and emits EventDestroyed.
func (b *Backend) Close(id platform.WindowID) {
	b.Remove(id)
	b.Emit(platform.WindowEvent{Kind: platform.EventDestroyed, Window: id})
}

// Remove makes a handle stale without emitting an event.
func (b *Backend) Remove(id platform.WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

func (b *Backend) removeLocked(id platform.WindowID) {
	delete(b.windows, id)
	delete(b.hidden, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// SetUnmanageable marks a window as not tileable.
func (b *Backend) SetUnmanageable(id platform.WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unmanageable[id] = true
}

// SetActive changes the focused window without emitting an event.
func (b *Backend) SetActive(id platform.WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = id
}

// Emit queues a raw window event for subscribers.
func (b *Backend) Emit(ev platform.WindowEvent) {
	b.events <- ev
}

// Subscribe returns the shared event channel; it is never closed.
func (b *Backend) Subscribe(ctx context.Context) (<-chan platform.WindowEvent, error) {
	return b.events, nil
}

func (b *Backend) Displays() ([]platform.Display, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.Display(nil), b.displays...), nil
}

func (b *Backend) ActiveWindow() (platform.WindowID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, nil
}

func (b *Backend) ListWindows() ([]platform.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]platform.Window, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.windows[id])
	}
	return out, nil
}

func (b *Backend) WindowInfo(id platform.WindowID) (platform.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[id]
	if !ok {
		return platform.Window{}, fmt.Errorf("window %d: %w", id, platform.ErrStaleWindow)
	}
	return *w, nil
}

func (b *Backend) IsManageable(id platform.WindowID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.windows[id]
	return ok && !b.unmanageable[id]
}

func (b *Backend) MoveResize(id platform.WindowID, bounds platform.Rect) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[id]
	if !ok {
		return platform.ErrStaleWindow
	}
	w.Bounds = bounds
	b.moves = append(b.moves, Placement{Window: id, Bounds: bounds})
	return nil
}

func (b *Backend) Show(id platform.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.windows[id]; !ok {
		return platform.ErrStaleWindow
	}
	delete(b.hidden, id)
	b.showCalls = append(b.showCalls, id)
	return nil
}

func (b *Backend) Hide(id platform.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.windows[id]; !ok {
		return platform.ErrStaleWindow
	}
	b.hidden[id] = true
	b.hideCalls = append(b.hideCalls, id)
	return nil
}

func (b *Backend) Focus(id platform.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.windows[id]; !ok {
		return platform.ErrStaleWindow
	}
	b.active = id
	b.focusCalls = append(b.focusCalls, id)
	return nil
}

func (b *Backend) CurrentDesktop() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.desktop, nil
}

func (b *Backend) DesktopCount() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.desktops, nil
}

func (b *Backend) BeginDeferred(n int) (platform.DeferredPositions, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openBatches++
	return &deferred{b: b, items: make([]Placement, 0, n)}, nil
}

type deferred struct {
	b     *Backend
	items []Placement
	ended bool
}

func (d *deferred) Defer(id platform.WindowID, bounds platform.Rect, flags platform.PlacementFlags) error {
	d.b.mu.Lock()
	defer d.b.mu.Unlock()
	if d.ended {
		return fmt.Errorf("batch ended")
	}
	if _, ok := d.b.windows[id]; !ok {
		return platform.ErrStaleWindow
	}
	d.items = append(d.items, Placement{Window: id, Bounds: bounds, Flags: flags})
	d.b.deferCounts[id]++
	if limit, ok := d.b.StaleAfterDefer[id]; ok && d.b.deferCounts[id] >= limit {
		d.b.removeLocked(id)
	}
	return nil
}

func (d *deferred) End() error {
	d.b.mu.Lock()
	defer d.b.mu.Unlock()
	if d.ended {
		return nil
	}
	d.ended = true
	d.b.openBatches--
	applied := make([]Placement, 0, len(d.items))
	for _, p := range d.items {
		w, ok := d.b.windows[p.Window]
		if !ok {
			continue
		}
		if p.Flags.Has(platform.HideWindow) {
			d.b.hidden[p.Window] = true
		} else {
			if p.Flags.Has(platform.ShowWindow) {
				delete(d.b.hidden, p.Window)
			}
			if !p.Flags.Has(platform.NoMove) && !p.Flags.Has(platform.NoSize) {
				w.Bounds = p.Bounds
			}
		}
		applied = append(applied, p)
	}
	d.b.batches = append(d.b.batches, applied)
	return nil
}

// Batches returns every committed deferred batch in order.
func (b *Backend) Batches() [][]Placement {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]Placement, len(b.batches))
	for i, batch := range b.batches {
		out[i] = append([]Placement(nil), batch...)
	}
	return out
}

// OpenBatches returns the number of batches begun but not ended.
func (b *Backend) OpenBatches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openBatches
}

// Bounds returns a window's current bounds.
func (b *Backend) Bounds(id platform.WindowID) (platform.Rect, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[id]
	if !ok {
		return platform.Rect{}, false
	}
	return w.Bounds, true
}

// Hidden reports whether a window is currently hidden.
func (b *Backend) Hidden(id platform.WindowID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hidden[id]
}

// ShowCalls returns windows passed to Show, in order.
func (b *Backend) ShowCalls() []platform.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.WindowID(nil), b.showCalls...)
}

// HideCalls returns windows passed to Hide, in order.
func (b *Backend) HideCalls() []platform.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.WindowID(nil), b.hideCalls...)
}

// FocusCalls returns windows passed to Focus, in order.
func (b *Backend) FocusCalls() []platform.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.WindowID(nil), b.focusCalls...)
}

// Moves returns direct MoveResize calls, in order.
func (b *Backend) Moves() []Placement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Placement(nil), b.moves...)
}
