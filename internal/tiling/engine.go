// Package tiling keeps one layout tree per (monitor, workspace) and turns
// membership changes into batches of window rectangles.
package tiling

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/1broseidon/panewm/internal/events"
	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/positioner"
	"github.com/1broseidon/panewm/internal/syncx"
)

// ErrNotManaged is returned for windows the engine does not tile.
var ErrNotManaged = errors.New("window is not tiled")

const (
	DefaultResizeStep    = 0.05
	DefaultMinProportion = 0.1
)

// Padding is reserved space at each monitor edge.
type Padding struct {
	Top    int `yaml:"top" json:"top"`
	Right  int `yaml:"right" json:"right"`
	Bottom int `yaml:"bottom" json:"bottom"`
	Left   int `yaml:"left" json:"left"`
}

// Settings configure an Engine.
type Settings struct {
	Layouts map[string]*LayoutDefinition
	// DefaultLayout applies to monitors absent from MonitorLayouts. Empty
	// means float-only.
	DefaultLayout  string
	MonitorLayouts map[string]string
	GapSize        int
	Padding        Padding
	ResizeStep     float64
	MinProportion  float64
	// LockTimeout bounds every wait for the engine lock.
	LockTimeout time.Duration
}

// LayoutFor resolves the layout id for a monitor.
func (s Settings) LayoutFor(monitor string) string {
	if id, ok := s.MonitorLayouts[monitor]; ok {
		return id
	}
	return s.DefaultLayout
}

// Batch is the full set of placements for one visible workspace. Seq grows
// with every batch the engine computes, so a later batch for the same
// monitor supersedes an earlier one.
type Batch struct {
	Monitor   string              `json:"monitor"`
	Workspace string              `json:"workspace"`
	Seq       uint64              `json:"seq"`
	Targets   []positioner.Target `json:"targets"`
}

// TreeInfo describes one workspace's tiling state.
type TreeInfo struct {
	Monitor   string              `json:"monitor"`
	Workspace string              `json:"workspace"`
	Layout    string              `json:"layout,omitempty"`
	Current   bool                `json:"current"`
	Root      *Node               `json:"root,omitempty"`
	Floating  []platform.WindowID `json:"floating,omitempty"`
}

type key struct {
	monitor   string
	workspace string
}

// Engine owns every workspace's tree. All methods are safe for concurrent
// use; none of them block on the OS. Mutating methods fail with
// syncx.ErrLockTimeout when the engine lock cannot be taken in time.
type Engine struct {
	logger *slog.Logger

	mu       *syncx.Mutex
	settings Settings
	monitors map[string]platform.Rect
	current  map[string]string
	trees    map[key]*Tree
	owner    map[platform.WindowID]key
	warned   map[string]bool
	seq      uint64
}

// NewEngine creates an engine with the given settings.
func NewEngine(settings Settings, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tiling")
	return &Engine{
		logger:   logger,
		mu:       syncx.NewMutex("tiling.engine", settings.LockTimeout, logger),
		settings: withDefaults(settings),
		monitors: make(map[string]platform.Rect),
		current:  make(map[string]string),
		trees:    make(map[key]*Tree),
		owner:    make(map[platform.WindowID]key),
		warned:   make(map[string]bool),
	}
}

func withDefaults(s Settings) Settings {
	if s.ResizeStep <= 0 {
		s.ResizeStep = DefaultResizeStep
	}
	if s.MinProportion <= 0 {
		s.MinProportion = DefaultMinProportion
	}
	if s.GapSize < 0 {
		s.GapSize = 0
	}
	return s
}

// SetMonitor records a monitor's usable bounds.
func (e *Engine) SetMonitor(id string, bounds platform.Rect) error {
	if err := e.mu.Lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.monitors[id] = bounds
	return nil
}

// HandleEvent applies a workspace event. When the change is visible it
// returns the batch for the affected workspace.
func (e *Engine) HandleEvent(ev events.Event) (Batch, bool, error) {
	if err := e.mu.Lock(); err != nil {
		return Batch{}, false, err
	}
	defer e.mu.Unlock()
	b, ok := e.applyLocked(ev)
	return b, ok, nil
}

func (e *Engine) applyLocked(ev events.Event) (Batch, bool) {
	k := key{ev.Monitor, ev.Workspace}
	switch ev.Kind {
	case events.WorkspaceCreated:
		e.treeLocked(k)
		return Batch{}, false

	case events.WorkspaceDestroyed:
		delete(e.trees, k)
		for w, owner := range e.owner {
			if owner == k {
				delete(e.owner, w)
			}
		}
		return Batch{}, false

	case events.CurrentWorkspaceChanged:
		e.current[ev.Monitor] = ev.Workspace
		return e.batchLocked(k)

	case events.WindowAssigned:
		if prev, ok := e.owner[ev.Window]; ok && prev != k {
			if t, ok := e.trees[prev]; ok {
				t.RemoveWindow(ev.Window)
			}
		}
		e.owner[ev.Window] = k
		if !e.treeLocked(k).Add(ev.Window) {
			e.logger.Debug("window floating", "window", ev.Window, "monitor", ev.Monitor)
			return Batch{}, false
		}
		return e.batchLocked(k)

	case events.WindowUnassigned:
		if e.owner[ev.Window] == k {
			delete(e.owner, ev.Window)
		}
		if t, ok := e.trees[k]; ok && t.RemoveWindow(ev.Window) {
			return e.batchLocked(k)
		}
		return Batch{}, false

	case events.WindowFocused:
		if t, ok := e.trees[k]; ok && t.Focus(ev.Window) {
			return e.batchLocked(k)
		}
		return Batch{}, false

	case events.WindowReparented:
		if owner, ok := e.owner[ev.Window]; ok {
			delete(e.owner, ev.Window)
			e.owner[ev.Creator] = owner
		}
		if t, ok := e.trees[k]; ok && t.ReplaceWindow(ev.Window, ev.Creator) {
			return e.batchLocked(k)
		}
		return Batch{}, false
	}
	return Batch{}, false
}

func (e *Engine) treeLocked(k key) *Tree {
	if t, ok := e.trees[k]; ok {
		return t
	}
	t := NewTree(e.resolveLocked(k.monitor))
	e.trees[k] = t
	return t
}

func (e *Engine) resolveLocked(monitor string) *LayoutDefinition {
	id := e.settings.LayoutFor(monitor)
	if id == "" {
		return nil
	}
	def, ok := e.settings.Layouts[id]
	if !ok {
		if !e.warned[id] {
			e.warned[id] = true
			e.logger.Warn("unknown layout, workspace runs float-only", "layout", id, "monitor", monitor)
		}
		return nil
	}
	return def
}

func (e *Engine) batchLocked(k key) (Batch, bool) {
	if e.current[k.monitor] != k.workspace {
		return Batch{}, false
	}
	t, ok := e.trees[k]
	if !ok || t.Root == nil {
		return Batch{}, false
	}
	bounds, ok := e.monitors[k.monitor]
	if !ok {
		return Batch{}, false
	}

	s := e.settings
	half := s.GapSize / 2
	area := bounds.
		Inset(s.Padding.Top, s.Padding.Right, s.Padding.Bottom, s.Padding.Left).
		Inset(half, half, half, half)
	rects := ComputeRects(t.Root, area)

	e.seq++
	b := Batch{Monitor: k.monitor, Workspace: k.workspace, Seq: e.seq}
	for _, w := range t.Windows() {
		r, ok := rects[w]
		if !ok {
			continue
		}
		r = r.Inset(half, half, half, half)
		r.Width = max(r.Width, 1)
		r.Height = max(r.Height, 1)
		b.Targets = append(b.Targets, positioner.Target{Window: w, Rect: r, Flags: platform.NoActivate})
	}
	return b, true
}

func (e *Engine) treeOf(w platform.WindowID) (key, *Tree, error) {
	k, ok := e.owner[w]
	if !ok {
		return key{}, nil, fmt.Errorf("window %d: %w", w, ErrNotManaged)
	}
	t := e.trees[k]
	if t == nil || !t.Contains(w) {
		return key{}, nil, fmt.Errorf("window %d: %w", w, ErrNotManaged)
	}
	return k, t, nil
}

// Grow widens or heightens the window's branch by one resize step.
func (e *Engine) Grow(w platform.WindowID, dim Dimension) (Batch, error) {
	return e.resize(w, dim, 1)
}

// Shrink narrows or flattens the window's branch by one resize step.
func (e *Engine) Shrink(w platform.WindowID, dim Dimension) (Batch, error) {
	return e.resize(w, dim, -1)
}

func (e *Engine) resize(w platform.WindowID, dim Dimension, sign float64) (Batch, error) {
	if err := e.mu.Lock(); err != nil {
		return Batch{}, err
	}
	defer e.mu.Unlock()
	k, t, err := e.treeOf(w)
	if err != nil {
		return Batch{}, err
	}
	if !t.Resize(w, dim, sign*e.settings.ResizeStep, e.settings.MinProportion) {
		e.logger.Debug("resize at limit", "window", w, "dimension", dim)
	}
	b, _ := e.batchLocked(k)
	return b, nil
}

// ResetWorkspaceSize restores the layout's template proportions.
func (e *Engine) ResetWorkspaceSize(monitor, workspace string) (Batch, error) {
	if err := e.mu.Lock(); err != nil {
		return Batch{}, err
	}
	defer e.mu.Unlock()
	t, ok := e.trees[key{monitor, workspace}]
	if !ok {
		return Batch{}, fmt.Errorf("workspace %q on %q: %w", workspace, monitor, ErrNotManaged)
	}
	t.ResetSizes()
	b, _ := e.batchLocked(key{monitor, workspace})
	return b, nil
}

// ForceRetiling recomputes the current workspace of every monitor without
// changing any tree. Calling it twice yields identical batches.
func (e *Engine) ForceRetiling() ([]Batch, error) {
	if err := e.mu.Lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.retileLocked(), nil
}

func (e *Engine) retileLocked() []Batch {
	monitors := make([]string, 0, len(e.current))
	for m := range e.current {
		monitors = append(monitors, m)
	}
	sort.Strings(monitors)

	var out []Batch
	for _, m := range monitors {
		if b, ok := e.batchLocked(key{m, e.current[m]}); ok {
			out = append(out, b)
		}
	}
	return out
}

// CycleStack rotates the stack holding w and returns the new batch.
func (e *Engine) CycleStack(w platform.WindowID, delta int) (Batch, error) {
	if err := e.mu.Lock(); err != nil {
		return Batch{}, err
	}
	defer e.mu.Unlock()
	k, t, err := e.treeOf(w)
	if err != nil {
		return Batch{}, err
	}
	if _, ok := t.CycleStack(w, delta); !ok {
		return Batch{}, fmt.Errorf("window %d is not stacked: %w", w, ErrNotManaged)
	}
	b, _ := e.batchLocked(k)
	return b, nil
}

// Managed reports whether the window is currently tiled. It reports false
// when the engine lock times out.
func (e *Engine) Managed(w platform.WindowID) bool {
	if err := e.mu.Lock(); err != nil {
		return false
	}
	defer e.mu.Unlock()
	_, _, err := e.treeOf(w)
	return err == nil
}

// Trees snapshots every workspace, sorted by monitor then workspace.
func (e *Engine) Trees() ([]TreeInfo, error) {
	if err := e.mu.Lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	out := make([]TreeInfo, 0, len(e.trees))
	for k, t := range e.trees {
		info := TreeInfo{
			Monitor:   k.monitor,
			Workspace: k.workspace,
			Current:   e.current[k.monitor] == k.workspace,
			Root:      t.Root.Clone(),
		}
		if t.Layout != nil {
			info.Layout = t.Layout.ID
		}
		for w, owner := range e.owner {
			if owner == k && !t.Contains(w) {
				info.Floating = append(info.Floating, w)
			}
		}
		sort.Slice(info.Floating, func(i, j int) bool { return info.Floating[i] < info.Floating[j] })
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Monitor != out[j].Monitor {
			return out[i].Monitor < out[j].Monitor
		}
		return out[i].Workspace < out[j].Workspace
	})
	return out, nil
}

// Forget drops windows that no longer exist and returns the batches of the
// visible workspaces that changed.
func (e *Engine) Forget(alive map[platform.WindowID]bool) ([]Batch, error) {
	if err := e.mu.Lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	changed := make(map[key]bool)
	for w, k := range e.owner {
		if alive[w] {
			continue
		}
		delete(e.owner, w)
		if t, ok := e.trees[k]; ok && t.RemoveWindow(w) {
			changed[k] = true
		}
	}
	var out []Batch
	for k := range changed {
		if b, ok := e.batchLocked(k); ok {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Monitor < out[j].Monitor })
	return out, nil
}

// Reconfigure swaps settings. Workspaces whose resolved layout changed are
// rebuilt from their windows in tree order; all visible workspaces are then
// retiled.
func (e *Engine) Reconfigure(settings Settings) ([]Batch, error) {
	if err := e.mu.Lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	e.settings = withDefaults(settings)
	e.warned = make(map[string]bool)
	for k, t := range e.trees {
		def := e.resolveLocked(k.monitor)
		if layoutID(def) == layoutID(t.Layout) {
			continue
		}
		var floating []platform.WindowID
		for w, owner := range e.owner {
			if owner == k && !t.Contains(w) {
				floating = append(floating, w)
			}
		}
		sort.Slice(floating, func(i, j int) bool { return floating[i] < floating[j] })
		windows := append(t.Windows(), floating...)
		next := NewTree(def)
		for _, w := range windows {
			next.Add(w)
		}
		e.trees[k] = next
		e.logger.Info("workspace layout changed", "monitor", k.monitor, "workspace", k.workspace, "windows", len(windows))
	}
	return e.retileLocked(), nil
}

func layoutID(def *LayoutDefinition) string {
	if def == nil {
		return ""
	}
	return def.ID
}
