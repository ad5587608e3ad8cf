package vdesk

import (
	"fmt"

	"github.com/1broseidon/panewm/internal/platform"
)

// Snapshot returns a deep copy of every monitor.
func (m *Manager) Snapshot() ([]Monitor, error) {
	if err := m.mu.Lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	out := make([]Monitor, len(m.monitors))
	for i, mon := range m.monitors {
		out[i] = mon.clone()
	}
	return out, nil
}

// Monitor returns a copy of one monitor.
func (m *Manager) Monitor(id string) (Monitor, error) {
	if err := m.mu.Lock(); err != nil {
		return Monitor{}, err
	}
	defer m.mu.Unlock()
	mi := m.monitorIndex(id)
	if mi < 0 {
		return Monitor{}, fmt.Errorf("monitor %q: %w", id, ErrNotFound)
	}
	return m.monitors[mi].clone(), nil
}

// Locate returns the monitor and workspace holding window.
func (m *Manager) Locate(window platform.WindowID) (monitor, workspace string, ok bool) {
	if err := m.mu.Lock(); err != nil {
		return "", "", false
	}
	defer m.mu.Unlock()
	loc, ok := m.index[window]
	return loc.Monitor, loc.Workspace, ok
}

// IsPinned reports whether the window is visible on every workspace.
func (m *Manager) IsPinned(window platform.WindowID) bool {
	if err := m.mu.Lock(); err != nil {
		return false
	}
	defer m.mu.Unlock()
	_, ok := m.pinned[window]
	return ok
}

// MonitorAt returns the id of the monitor containing the rect's center, or
// the first monitor.
func (m *Manager) MonitorAt(r platform.Rect) (string, bool) {
	if err := m.mu.Lock(); err != nil {
		return "", false
	}
	defer m.mu.Unlock()
	mi := m.monitorForBounds(r)
	if mi < 0 {
		return "", false
	}
	return m.monitors[mi].ID, true
}

// Current returns the current workspace of a monitor.
func (m *Manager) Current(monitor string) (Workspace, error) {
	if err := m.mu.Lock(); err != nil {
		return Workspace{}, err
	}
	defer m.mu.Unlock()
	mi := m.monitorIndex(monitor)
	if mi < 0 {
		return Workspace{}, fmt.Errorf("monitor %q: %w", monitor, ErrNotFound)
	}
	ws := *m.monitors[mi].CurrentWorkspace()
	ws.Windows = append([]platform.WindowID(nil), ws.Windows...)
	return ws, nil
}
