package vdesk

import (
	"github.com/1broseidon/panewm/internal/events"
	"github.com/1broseidon/panewm/internal/platform"
)

// WindowOpened adds a window to the current workspace of the monitor
// containing its center, or pins it when sticky. Minimized and already known
// windows are ignored. Callers filter out unmanageable windows.
func (m *Manager) WindowOpened(w platform.Window) (bool, error) {
	if err := m.mu.Lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()

	if w.Minimized || m.trackedLocked(w.ID) {
		return false, nil
	}
	mi := m.monitorForBounds(w.Bounds)
	if mi < 0 {
		return false, nil
	}
	mon := &m.monitors[mi]
	if w.Sticky {
		mon.Pinned = append(mon.Pinned, w.ID)
		m.pinned[w.ID] = mon.ID
		return true, nil
	}
	ws := mon.CurrentWorkspace()
	ws.Windows = append(ws.Windows, w.ID)
	m.index[w.ID] = Location{Monitor: mon.ID, Workspace: ws.ID}
	m.publish(events.Event{Kind: events.WindowAssigned, Monitor: mon.ID, Workspace: ws.ID, Window: w.ID})
	return true, nil
}

// WindowClosed forgets a window. Unknown windows are ignored.
func (m *Manager) WindowClosed(id platform.WindowID) (bool, error) {
	if err := m.mu.Lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()
	return m.forgetLocked(id), nil
}

// WindowMinimized removes a window from its workspace; it is re-added when
// restored.
func (m *Manager) WindowMinimized(id platform.WindowID) (bool, error) {
	return m.WindowClosed(id)
}

func (m *Manager) forgetLocked(id platform.WindowID) bool {
	if monID, ok := m.pinned[id]; ok {
		if mi := m.monitorIndex(monID); mi >= 0 {
			m.monitors[mi].Pinned, _ = removeWindow(m.monitors[mi].Pinned, id)
		}
		delete(m.pinned, id)
		return true
	}
	loc, ok := m.index[id]
	if !ok {
		return false
	}
	delete(m.index, id)
	if mon, wi := m.find(loc); mon != nil && wi >= 0 {
		mon.Workspaces[wi].Windows, _ = removeWindow(mon.Workspaces[wi].Windows, id)
	}
	m.publish(events.Event{Kind: events.WindowUnassigned, Monitor: loc.Monitor, Workspace: loc.Workspace, Window: id})
	return true
}

// WindowFocused moves the window to the end of its workspace ordering.
func (m *Manager) WindowFocused(id platform.WindowID) (bool, error) {
	if err := m.mu.Lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()

	loc, ok := m.index[id]
	if !ok {
		return false, nil
	}
	mon, wi := m.find(loc)
	if mon == nil || wi < 0 {
		return false, nil
	}
	ws := &mon.Workspaces[wi]
	ws.Windows, _ = removeWindow(ws.Windows, id)
	ws.Windows = append(ws.Windows, id)
	m.publish(events.Event{Kind: events.WindowFocused, Monitor: loc.Monitor, Workspace: loc.Workspace, Window: id})
	return true, nil
}

// WindowReparented hands the host's membership slot to its creator. When the
// creator was tracked elsewhere that entry is dropped first.
func (m *Manager) WindowReparented(host, creator platform.WindowID) (bool, error) {
	if err := m.mu.Lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()

	if host == creator {
		return false, nil
	}
	loc, ok := m.index[host]
	if !ok {
		return false, nil
	}
	if cloc, ok := m.index[creator]; ok {
		if mon, wi := m.find(cloc); mon != nil && wi >= 0 {
			mon.Workspaces[wi].Windows, _ = removeWindow(mon.Workspaces[wi].Windows, creator)
		}
		delete(m.index, creator)
		m.publish(events.Event{Kind: events.WindowUnassigned, Monitor: cloc.Monitor, Workspace: cloc.Workspace, Window: creator})
	}

	mon, wi := m.find(loc)
	if mon == nil || wi < 0 {
		return false, nil
	}
	ws := &mon.Workspaces[wi]
	for i, w := range ws.Windows {
		if w == host {
			ws.Windows[i] = creator
			break
		}
	}
	delete(m.index, host)
	m.index[creator] = loc
	m.publish(events.Event{Kind: events.WindowReparented, Monitor: loc.Monitor, Workspace: loc.Workspace, Window: host, Creator: creator})
	return true, nil
}

// Forget drops any handles not in alive. It returns the removed handles.
func (m *Manager) Forget(alive map[platform.WindowID]bool) ([]platform.WindowID, error) {
	if err := m.mu.Lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	var stale []platform.WindowID
	for id := range m.index {
		if !alive[id] {
			stale = append(stale, id)
		}
	}
	for id := range m.pinned {
		if !alive[id] {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		m.forgetLocked(id)
	}
	return stale, nil
}

func (m *Manager) trackedLocked(id platform.WindowID) bool {
	if _, ok := m.index[id]; ok {
		return true
	}
	_, ok := m.pinned[id]
	return ok
}
