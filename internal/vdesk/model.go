// Package vdesk maps OS virtual desktops onto per-monitor workspaces and
// tracks which workspace every managed window belongs to.
package vdesk

import (
	"errors"

	"github.com/1broseidon/panewm/internal/platform"
)

var (
	// ErrNotFound is returned for an unknown monitor, workspace or window.
	ErrNotFound = errors.New("not found")
	// ErrLastWorkspace is returned when destroying a monitor's only workspace.
	ErrLastWorkspace = errors.New("cannot destroy the last workspace of a monitor")
)

// Workspace is one virtual-desktop slot on a monitor. Windows are ordered
// least-recently-focused first.
type Workspace struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Icon    string              `json:"icon,omitempty"`
	Windows []platform.WindowID `json:"windows"`
}

// Monitor owns its workspaces by value. Current always indexes Workspaces.
type Monitor struct {
	ID         string              `json:"id"`
	Bounds     platform.Rect       `json:"bounds"`
	Workspaces []Workspace         `json:"workspaces"`
	Current    int                 `json:"current"`
	Pinned     []platform.WindowID `json:"pinned,omitempty"`
}

// CurrentWorkspace returns the active workspace.
func (m *Monitor) CurrentWorkspace() *Workspace {
	return &m.Workspaces[m.Current]
}

func (m *Monitor) workspaceIndex(id string) int {
	for i := range m.Workspaces {
		if m.Workspaces[i].ID == id {
			return i
		}
	}
	return -1
}

func (m Monitor) clone() Monitor {
	out := m
	out.Pinned = append([]platform.WindowID(nil), m.Pinned...)
	out.Workspaces = make([]Workspace, len(m.Workspaces))
	for i, ws := range m.Workspaces {
		ws.Windows = append([]platform.WindowID(nil), ws.Windows...)
		out.Workspaces[i] = ws
	}
	return out
}

// SwitchResult is the visibility change implied by a workspace switch.
// Pinned windows never appear in Hide.
type SwitchResult struct {
	Monitor   string
	Workspace string
	Previous  string
	Show      []platform.WindowID
	Hide      []platform.WindowID
	// Changed is false when the target was already current.
	Changed bool
}

// SendResult describes a membership move.
type SendResult struct {
	Window platform.WindowID
	From   Location
	To     Location
	// Hide is set when the window left a visible workspace for a hidden one;
	// Show for the reverse.
	Hide bool
	Show bool
}

type Location struct {
	Monitor   string
	Workspace string
}

func removeWindow(list []platform.WindowID, id platform.WindowID) ([]platform.WindowID, bool) {
	for i, w := range list {
		if w == id {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}
