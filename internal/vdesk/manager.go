package vdesk

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/1broseidon/panewm/internal/events"
	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/syncx"
	"github.com/google/uuid"
)

// DefaultSettleDelay separates the send and switch halves of MoveTo.
const DefaultSettleDelay = 200 * time.Millisecond

// Applier realizes a visibility change, typically through the service.
type Applier func(ctx context.Context, show, hide []platform.WindowID)

// Options configure a Manager.
type Options struct {
	Names       []string
	SettleDelay time.Duration
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// Manager owns every monitor's workspace table.
type Manager struct {
	bus    *events.Bus
	logger *slog.Logger
	names  []string
	settle time.Duration

	mu  *syncx.Mutex
	seq *syncx.Mutex

	monitors []Monitor
	index    map[platform.WindowID]Location
	pinned   map[platform.WindowID]string
}

// NewManager creates an empty manager. Call Init before use.
func NewManager(bus *events.Bus, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "vdesk")
	settle := opts.SettleDelay
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Manager{
		bus:    bus,
		logger: logger,
		names:  opts.Names,
		settle: settle,
		mu:     syncx.NewMutex("vdesk.table", opts.LockTimeout, logger),
		seq:    syncx.NewMutex("vdesk.sequence", opts.LockTimeout, logger),
		index:  make(map[platform.WindowID]Location),
		pinned: make(map[platform.WindowID]string),
	}
}

// Init builds one monitor per display with one workspace per OS desktop and
// assigns the existing windows. Previous state is discarded.
func (m *Manager) Init(displays []platform.Display, desktopCount, currentDesktop int, windows []platform.Window) error {
	if err := m.mu.Lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if desktopCount < 1 {
		desktopCount = 1
	}
	if currentDesktop < 0 || currentDesktop >= desktopCount {
		currentDesktop = 0
	}

	m.monitors = m.monitors[:0]
	m.index = make(map[platform.WindowID]Location)
	m.pinned = make(map[platform.WindowID]string)

	for _, d := range displays {
		mon := Monitor{ID: d.Key(), Bounds: d.Usable, Current: currentDesktop}
		if mon.Bounds.Area() == 0 {
			mon.Bounds = d.Bounds
		}
		for i := 0; i < desktopCount; i++ {
			mon.Workspaces = append(mon.Workspaces, m.newWorkspace(i))
		}
		m.monitors = append(m.monitors, mon)
		for _, ws := range mon.Workspaces {
			m.publish(events.Event{Kind: events.WorkspaceCreated, Monitor: mon.ID, Workspace: ws.ID})
		}
	}

	for _, w := range windows {
		if w.Minimized {
			continue
		}
		mi := m.monitorForBounds(w.Bounds)
		if mi < 0 {
			continue
		}
		mon := &m.monitors[mi]
		if w.Sticky {
			mon.Pinned = append(mon.Pinned, w.ID)
			m.pinned[w.ID] = mon.ID
			continue
		}
		wi := mon.Current
		if w.Desktop >= 0 && w.Desktop < len(mon.Workspaces) {
			wi = w.Desktop
		}
		ws := &mon.Workspaces[wi]
		ws.Windows = append(ws.Windows, w.ID)
		m.index[w.ID] = Location{Monitor: mon.ID, Workspace: ws.ID}
		m.publish(events.Event{Kind: events.WindowAssigned, Monitor: mon.ID, Workspace: ws.ID, Window: w.ID})
	}

	for _, mon := range m.monitors {
		m.publish(events.Event{Kind: events.CurrentWorkspaceChanged, Monitor: mon.ID, Workspace: mon.CurrentWorkspace().ID})
	}
	m.logger.Info("workspaces initialized", "monitors", len(m.monitors), "desktops", desktopCount, "windows", len(m.index))
	return nil
}

func (m *Manager) newWorkspace(i int) Workspace {
	name := strconv.Itoa(i + 1)
	if i < len(m.names) && m.names[i] != "" {
		name = m.names[i]
	}
	return Workspace{ID: uuid.New().String(), Name: name}
}

func (m *Manager) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func (m *Manager) monitorIndex(id string) int {
	for i := range m.monitors {
		if m.monitors[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) monitorForBounds(r platform.Rect) int {
	if len(m.monitors) == 0 {
		return -1
	}
	cx, cy := r.Center()
	for i := range m.monitors {
		if m.monitors[i].Bounds.Contains(cx, cy) {
			return i
		}
	}
	return 0
}

func (m *Manager) find(loc Location) (*Monitor, int) {
	mi := m.monitorIndex(loc.Monitor)
	if mi < 0 {
		return nil, -1
	}
	mon := &m.monitors[mi]
	return mon, mon.workspaceIndex(loc.Workspace)
}

// SwitchTo makes workspace index current on the monitor.
func (m *Manager) SwitchTo(monitor string, index int) (SwitchResult, error) {
	if err := m.seq.Lock(); err != nil {
		return SwitchResult{}, err
	}
	defer m.seq.Unlock()
	return m.switchTo(monitor, func(*Monitor) int { return index })
}

// SwitchToID makes the workspace with the given id current.
func (m *Manager) SwitchToID(monitor, id string) (SwitchResult, error) {
	if err := m.seq.Lock(); err != nil {
		return SwitchResult{}, err
	}
	defer m.seq.Unlock()
	return m.switchTo(monitor, func(mon *Monitor) int { return mon.workspaceIndex(id) })
}

// SwitchNext moves to the following workspace, wrapping around.
func (m *Manager) SwitchNext(monitor string) (SwitchResult, error) {
	return m.SwitchRelative(monitor, 1)
}

// SwitchPrev moves to the preceding workspace, wrapping around.
func (m *Manager) SwitchPrev(monitor string) (SwitchResult, error) {
	return m.SwitchRelative(monitor, -1)
}

// SwitchRelative moves delta workspaces from the current one, wrapping around.
func (m *Manager) SwitchRelative(monitor string, delta int) (SwitchResult, error) {
	if err := m.seq.Lock(); err != nil {
		return SwitchResult{}, err
	}
	defer m.seq.Unlock()
	return m.switchTo(monitor, func(mon *Monitor) int {
		n := len(mon.Workspaces)
		return ((mon.Current+delta)%n + n) % n
	})
}

func (m *Manager) switchTo(monitor string, pick func(*Monitor) int) (SwitchResult, error) {
	if err := m.mu.Lock(); err != nil {
		return SwitchResult{}, err
	}
	defer m.mu.Unlock()

	mi := m.monitorIndex(monitor)
	if mi < 0 {
		return SwitchResult{}, fmt.Errorf("monitor %q: %w", monitor, ErrNotFound)
	}
	mon := &m.monitors[mi]
	target := pick(mon)
	if target < 0 || target >= len(mon.Workspaces) {
		return SwitchResult{}, fmt.Errorf("workspace %d on %q: %w", target, monitor, ErrNotFound)
	}
	return m.activateLocked(mon, target), nil
}

func (m *Manager) activateLocked(mon *Monitor, target int) SwitchResult {
	prev := mon.CurrentWorkspace()
	res := SwitchResult{Monitor: mon.ID, Workspace: mon.Workspaces[target].ID, Previous: prev.ID}
	if target == mon.Current {
		return res
	}

	res.Hide = append([]platform.WindowID(nil), prev.Windows...)
	mon.Current = target
	res.Show = append([]platform.WindowID(nil), mon.Workspaces[target].Windows...)
	res.Changed = true

	m.logger.Debug("workspace switched", "monitor", mon.ID, "from", prev.Name, "to", mon.Workspaces[target].Name)
	m.publish(events.Event{Kind: events.CurrentWorkspaceChanged, Monitor: mon.ID, Workspace: res.Workspace, Previous: res.Previous})
	return res
}

// SendTo assigns window to workspace index on monitor. Pinned windows lose
// their pinned state.
func (m *Manager) SendTo(monitor string, index int, window platform.WindowID) (SendResult, error) {
	if err := m.mu.Lock(); err != nil {
		return SendResult{}, err
	}
	defer m.mu.Unlock()
	return m.sendLocked(monitor, index, window)
}

func (m *Manager) sendLocked(monitor string, index int, window platform.WindowID) (SendResult, error) {
	mi := m.monitorIndex(monitor)
	if mi < 0 {
		return SendResult{}, fmt.Errorf("monitor %q: %w", monitor, ErrNotFound)
	}
	dst := &m.monitors[mi]
	if index < 0 || index >= len(dst.Workspaces) {
		return SendResult{}, fmt.Errorf("workspace %d on %q: %w", index, monitor, ErrNotFound)
	}
	to := Location{Monitor: dst.ID, Workspace: dst.Workspaces[index].ID}
	res := SendResult{Window: window, To: to}

	wasVisible := false
	if from, ok := m.index[window]; ok {
		if from == to {
			res.From = from
			return res, nil
		}
		src, wi := m.find(from)
		if src == nil || wi < 0 {
			return SendResult{}, fmt.Errorf("window %d: %w", window, ErrNotFound)
		}
		src.Workspaces[wi].Windows, _ = removeWindow(src.Workspaces[wi].Windows, window)
		wasVisible = wi == src.Current
		res.From = from
		m.publish(events.Event{Kind: events.WindowUnassigned, Monitor: from.Monitor, Workspace: from.Workspace, Window: window})
	} else if monID, ok := m.pinned[window]; ok {
		if src := m.monitorIndex(monID); src >= 0 {
			m.monitors[src].Pinned, _ = removeWindow(m.monitors[src].Pinned, window)
		}
		delete(m.pinned, window)
		wasVisible = true
	} else {
		return SendResult{}, fmt.Errorf("window %d: %w", window, ErrNotFound)
	}

	ws := &dst.Workspaces[index]
	ws.Windows = append(ws.Windows, window)
	m.index[window] = to
	m.publish(events.Event{Kind: events.WindowAssigned, Monitor: to.Monitor, Workspace: to.Workspace, Window: window})

	nowVisible := index == dst.Current
	res.Hide = wasVisible && !nowVisible
	res.Show = !wasVisible && nowVisible
	return res, nil
}

// MoveTo sends the window, applies the resulting hide, waits for the OS to
// settle, then switches to the target workspace. The whole sequence holds
// the sequence lock.
func (m *Manager) MoveTo(ctx context.Context, monitor string, index int, window platform.WindowID, apply Applier) (SwitchResult, error) {
	if err := m.seq.Lock(); err != nil {
		return SwitchResult{}, err
	}
	defer m.seq.Unlock()

	sent, err := m.SendTo(monitor, index, window)
	if err != nil {
		return SwitchResult{}, err
	}
	if sent.Hide && apply != nil {
		apply(ctx, nil, []platform.WindowID{window})
	}

	timer := time.NewTimer(m.settle)
	select {
	case <-ctx.Done():
		timer.Stop()
		return SwitchResult{}, ctx.Err()
	case <-timer.C:
	}

	res, err := m.switchTo(monitor, func(*Monitor) int { return index })
	if err != nil {
		return SwitchResult{}, err
	}
	if apply != nil && (len(res.Show) > 0 || len(res.Hide) > 0) {
		apply(ctx, res.Show, res.Hide)
	}
	return res, nil
}

// CreateDesktop appends a workspace to the monitor.
func (m *Manager) CreateDesktop(monitor string) (Workspace, error) {
	if err := m.mu.Lock(); err != nil {
		return Workspace{}, err
	}
	defer m.mu.Unlock()

	mi := m.monitorIndex(monitor)
	if mi < 0 {
		return Workspace{}, fmt.Errorf("monitor %q: %w", monitor, ErrNotFound)
	}
	mon := &m.monitors[mi]
	ws := m.newWorkspace(len(mon.Workspaces))
	mon.Workspaces = append(mon.Workspaces, ws)
	m.publish(events.Event{Kind: events.WorkspaceCreated, Monitor: mon.ID, Workspace: ws.ID})
	return ws, nil
}

// DestroyDesktop removes a workspace. Its windows move to the first remaining
// workspace; destroying the current workspace makes that one current.
func (m *Manager) DestroyDesktop(id string) (SwitchResult, error) {
	if err := m.seq.Lock(); err != nil {
		return SwitchResult{}, err
	}
	defer m.seq.Unlock()
	if err := m.mu.Lock(); err != nil {
		return SwitchResult{}, err
	}
	defer m.mu.Unlock()

	mi, wi := -1, -1
	for i := range m.monitors {
		if j := m.monitors[i].workspaceIndex(id); j >= 0 {
			mi, wi = i, j
			break
		}
	}
	if mi < 0 {
		return SwitchResult{}, fmt.Errorf("workspace %q: %w", id, ErrNotFound)
	}
	mon := &m.monitors[mi]
	if len(mon.Workspaces) == 1 {
		return SwitchResult{}, ErrLastWorkspace
	}

	doomed := mon.Workspaces[wi]
	wasCurrent := wi == mon.Current
	currentID := mon.CurrentWorkspace().ID

	mon.Workspaces = append(mon.Workspaces[:wi], mon.Workspaces[wi+1:]...)
	replacement := &mon.Workspaces[0]
	for _, w := range doomed.Windows {
		m.publish(events.Event{Kind: events.WindowUnassigned, Monitor: mon.ID, Workspace: doomed.ID, Window: w})
		replacement.Windows = append(replacement.Windows, w)
		m.index[w] = Location{Monitor: mon.ID, Workspace: replacement.ID}
		m.publish(events.Event{Kind: events.WindowAssigned, Monitor: mon.ID, Workspace: replacement.ID, Window: w})
	}
	m.publish(events.Event{Kind: events.WorkspaceDestroyed, Monitor: mon.ID, Workspace: doomed.ID})

	res := SwitchResult{Monitor: mon.ID, Previous: doomed.ID}
	if wasCurrent {
		mon.Current = 0
		res.Workspace = replacement.ID
		res.Show = append([]platform.WindowID(nil), replacement.Windows...)
		res.Changed = true
		m.publish(events.Event{Kind: events.CurrentWorkspaceChanged, Monitor: mon.ID, Workspace: replacement.ID, Previous: doomed.ID})
		return res, nil
	}

	mon.Current = mon.workspaceIndex(currentID)
	res.Workspace = currentID
	res.Previous = currentID
	if mon.Current == 0 {
		// The orphaned windows landed on the visible workspace.
		res.Show = append([]platform.WindowID(nil), doomed.Windows...)
	}
	return res, nil
}

// Rename sets a workspace's display name.
func (m *Manager) Rename(id, name string) error {
	if err := m.mu.Lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for i := range m.monitors {
		if j := m.monitors[i].workspaceIndex(id); j >= 0 {
			m.monitors[i].Workspaces[j].Name = name
			return nil
		}
	}
	return fmt.Errorf("workspace %q: %w", id, ErrNotFound)
}
