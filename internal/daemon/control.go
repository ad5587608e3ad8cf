package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/1broseidon/panewm/internal/ipc"
	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/tiling"
	"github.com/1broseidon/panewm/internal/vdesk"
)

// ErrNoFocusedWindow is returned by commands that act on the focused window
// when there is none.
var ErrNoFocusedWindow = errors.New("no focused window")

var _ ipc.Handler = (*Daemon)(nil)

// HandleCommand implements ipc.Handler.
func (d *Daemon) HandleCommand(ctx context.Context, req ipc.Request) (any, error) {
	switch req.Command {
	case ipc.CommandSwitchNext, ipc.CommandSwitchPrev:
		var p ipc.TargetPayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		monitor, err := d.resolveMonitor(p.Monitor)
		if err != nil {
			return nil, err
		}
		var res vdesk.SwitchResult
		if req.Command == ipc.CommandSwitchNext {
			res, err = d.manager.SwitchNext(monitor)
		} else {
			res, err = d.manager.SwitchPrev(monitor)
		}
		if err != nil {
			return nil, err
		}
		return d.finishSwitch(ctx, res), nil

	case ipc.CommandSwitch:
		var p ipc.IndexPayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		monitor, err := d.resolveMonitor(p.Monitor)
		if err != nil {
			return nil, err
		}
		res, err := d.manager.SwitchTo(monitor, p.Index)
		if err != nil {
			return nil, err
		}
		return d.finishSwitch(ctx, res), nil

	case ipc.CommandMove:
		var p ipc.IndexPayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		window, monitor, err := d.focusedTarget(p.Monitor)
		if err != nil {
			return nil, err
		}
		res, err := d.manager.MoveTo(ctx, monitor, p.Index, window, d.applyVisibility)
		if err != nil {
			return nil, err
		}
		return d.switchData(res), nil

	case ipc.CommandSend:
		var p ipc.IndexPayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		window, monitor, err := d.focusedTarget(p.Monitor)
		if err != nil {
			return nil, err
		}
		res, err := d.manager.SendTo(monitor, p.Index, window)
		if err != nil {
			return nil, err
		}
		switch {
		case res.Hide:
			d.applyVisibility(ctx, nil, []platform.WindowID{window})
		case res.Show:
			d.applyVisibility(ctx, []platform.WindowID{window}, nil)
		}
		data := ipc.SwitchData{Monitor: res.To.Monitor, Workspace: res.To.Workspace, Changed: res.From != res.To}
		if res.Hide {
			data.Hidden = 1
		}
		if res.Show {
			data.Shown = 1
		}
		return data, nil

	case ipc.CommandCreate:
		var p ipc.TargetPayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		monitor, err := d.resolveMonitor(p.Monitor)
		if err != nil {
			return nil, err
		}
		ws, err := d.manager.CreateDesktop(monitor)
		if err != nil {
			return nil, err
		}
		mon, err := d.manager.Monitor(monitor)
		if err != nil {
			return nil, err
		}
		return ipc.WorkspaceInfo{Index: len(mon.Workspaces) - 1, ID: ws.ID, Name: ws.Name}, nil

	case ipc.CommandDestroy:
		var p ipc.TargetPayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		monitor, err := d.resolveMonitor(p.Monitor)
		if err != nil {
			return nil, err
		}
		ws, err := d.manager.Current(monitor)
		if err != nil {
			return nil, err
		}
		res, err := d.manager.DestroyDesktop(ws.ID)
		if err != nil {
			return nil, err
		}
		return d.finishSwitch(ctx, res), nil

	case ipc.CommandRename:
		var p ipc.RenamePayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, errors.New("name is required")
		}
		monitor, err := d.resolveMonitor(p.Monitor)
		if err != nil {
			return nil, err
		}
		ws, err := d.manager.Current(monitor)
		if err != nil {
			return nil, err
		}
		if err := d.manager.Rename(ws.ID, p.Name); err != nil {
			return nil, err
		}
		return ipc.WorkspaceInfo{ID: ws.ID, Name: p.Name, Windows: len(ws.Windows), Current: true}, nil

	case ipc.CommandListWorkspace:
		return d.listWorkspaces()

	case ipc.CommandGrow, ipc.CommandShrink:
		var p ipc.ResizePayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		dim, err := tiling.ParseDimension(p.Dimension)
		if err != nil {
			return nil, err
		}
		window, err := d.focusedWindow()
		if err != nil {
			return nil, err
		}
		var b tiling.Batch
		if req.Command == ipc.CommandGrow {
			b, err = d.engine.Grow(window, dim)
		} else {
			b, err = d.engine.Shrink(window, dim)
		}
		if err != nil {
			return nil, err
		}
		d.applyBatch(ctx, b)
		return nil, nil

	case ipc.CommandResetSizes:
		var p ipc.TargetPayload
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		monitor, err := d.resolveMonitor(p.Monitor)
		if err != nil {
			return nil, err
		}
		ws, err := d.manager.Current(monitor)
		if err != nil {
			return nil, err
		}
		b, err := d.engine.ResetWorkspaceSize(monitor, ws.ID)
		if err != nil {
			return nil, err
		}
		d.applyBatch(ctx, b)
		return nil, nil

	case ipc.CommandForceRetile:
		batches, err := d.engine.ForceRetiling()
		if err != nil {
			return nil, err
		}
		d.applyBatches(ctx, batches)
		return nil, nil

	case ipc.CommandCycleStack:
		p := ipc.CyclePayload{Delta: 1}
		if err := ipc.DecodePayload(req, &p); err != nil {
			return nil, err
		}
		window, err := d.focusedWindow()
		if err != nil {
			return nil, err
		}
		b, err := d.engine.CycleStack(window, p.Delta)
		if err != nil {
			return nil, err
		}
		d.applyBatch(ctx, b)
		return nil, nil

	case ipc.CommandStatus:
		return d.status()

	case ipc.CommandReload:
		if err := d.Reload(ctx); err != nil {
			return nil, err
		}
		return d.status()
	}
	return nil, fmt.Errorf("unknown command: %s", req.Command)
}

// finishSwitch applies a switch's visibility change and reports it.
func (d *Daemon) finishSwitch(ctx context.Context, res vdesk.SwitchResult) ipc.SwitchData {
	if len(res.Show) > 0 || len(res.Hide) > 0 {
		d.applyVisibility(ctx, res.Show, res.Hide)
	}
	return d.switchData(res)
}

func (d *Daemon) switchData(res vdesk.SwitchResult) ipc.SwitchData {
	data := ipc.SwitchData{
		Monitor:   res.Monitor,
		Workspace: res.Workspace,
		Changed:   res.Changed,
		Shown:     len(res.Show),
		Hidden:    len(res.Hide),
	}
	if mon, err := d.manager.Monitor(res.Monitor); err == nil {
		for _, ws := range mon.Workspaces {
			if ws.ID == res.Workspace {
				data.Name = ws.Name
			}
		}
	}
	return data
}

// resolveMonitor returns the requested monitor, or the monitor holding the
// focused window, or the first monitor.
func (d *Daemon) resolveMonitor(requested string) (string, error) {
	if requested != "" {
		if _, err := d.manager.Monitor(requested); err != nil {
			return "", err
		}
		return requested, nil
	}
	if w, err := d.backend.ActiveWindow(); err == nil && w != 0 {
		if monitor, _, ok := d.manager.Locate(w); ok {
			return monitor, nil
		}
		if info, err := d.backend.WindowInfo(w); err == nil {
			if monitor, ok := d.manager.MonitorAt(info.Bounds); ok {
				return monitor, nil
			}
		}
	}
	monitors, err := d.manager.Snapshot()
	if err != nil {
		return "", err
	}
	if len(monitors) == 0 {
		return "", fmt.Errorf("no monitors: %w", vdesk.ErrNotFound)
	}
	return monitors[0].ID, nil
}

func (d *Daemon) focusedWindow() (platform.WindowID, error) {
	w, err := d.backend.ActiveWindow()
	if err != nil {
		return 0, fmt.Errorf("active window: %w", err)
	}
	if w == 0 {
		return 0, ErrNoFocusedWindow
	}
	return w, nil
}

// focusedTarget returns the focused window and the monitor a workspace
// command should address.
func (d *Daemon) focusedTarget(requested string) (platform.WindowID, string, error) {
	w, err := d.focusedWindow()
	if err != nil {
		return 0, "", err
	}
	monitor, err := d.resolveMonitor(requested)
	if err != nil {
		return 0, "", err
	}
	return w, monitor, nil
}

func (d *Daemon) listWorkspaces() (ipc.WorkspaceListData, error) {
	monitors, err := d.manager.Snapshot()
	if err != nil {
		return ipc.WorkspaceListData{}, err
	}
	trees, err := d.engine.Trees()
	if err != nil {
		return ipc.WorkspaceListData{}, err
	}
	layouts := make(map[string]string)
	for _, t := range trees {
		layouts[t.Monitor+"/"+t.Workspace] = t.Layout
	}

	var out ipc.WorkspaceListData
	for _, m := range monitors {
		info := ipc.MonitorInfo{
			ID:     m.ID,
			X:      m.Bounds.X,
			Y:      m.Bounds.Y,
			Width:  m.Bounds.Width,
			Height: m.Bounds.Height,
			Pinned: len(m.Pinned),
		}
		for i, ws := range m.Workspaces {
			info.Workspaces = append(info.Workspaces, ipc.WorkspaceInfo{
				Index:   i,
				ID:      ws.ID,
				Name:    ws.Name,
				Windows: len(ws.Windows),
				Current: i == m.Current,
				Layout:  layouts[m.ID+"/"+ws.ID],
			})
		}
		out.Monitors = append(out.Monitors, info)
	}
	return out, nil
}

func (d *Daemon) status() (ipc.StatusData, error) {
	monitors, err := d.manager.Snapshot()
	if err != nil {
		return ipc.StatusData{}, err
	}
	data := ipc.StatusData{
		StartedAt:        d.startedAt,
		UptimeSeconds:    int64(time.Since(d.startedAt) / time.Second),
		ConfigPath:       d.configPath,
		Monitors:         len(monitors),
		ServiceReachable: !d.serviceDown.Load(),
	}
	for _, m := range monitors {
		data.Workspaces += len(m.Workspaces)
		data.Windows += len(m.Pinned)
		for _, ws := range m.Workspaces {
			data.Windows += len(ws.Windows)
		}
	}
	trees, err := d.engine.Trees()
	if err != nil {
		return ipc.StatusData{}, err
	}
	for _, t := range trees {
		if t.Root != nil {
			data.Tiled += len(t.Root.Windows())
		}
		data.Floating += len(t.Floating)
	}

	d.cfgMu.RLock()
	data.LastReload = d.lastReload
	d.cfgMu.RUnlock()
	return data, nil
}
