package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/1broseidon/panewm/internal/ipc"
)

// printer renders daemon replies as tables for a terminal and as JSON
// otherwise.
type printer struct {
	w    io.Writer
	json bool
	now  func() time.Time
}

func newPrinter(w io.Writer) *printer {
	asJSON := viper.GetBool("json")
	if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		asJSON = true
	}
	return &printer{w: w, json: asJSON, now: time.Now}
}

func (p *printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) reply(cmd ipc.CommandType, data json.RawMessage) error {
	if p.json {
		if len(data) == 0 {
			return p.writeJSON(map[string]bool{"ok": true})
		}
		return p.writeJSON(data)
	}
	switch cmd {
	case ipc.CommandListWorkspace:
		list, err := decodeReply[ipc.WorkspaceListData](data)
		if err != nil {
			return err
		}
		p.workspaces(list)
	case ipc.CommandStatus, ipc.CommandReload:
		status, err := decodeReply[ipc.StatusData](data)
		if err != nil {
			return err
		}
		p.status(status)
	case ipc.CommandSwitch, ipc.CommandSwitchNext, ipc.CommandSwitchPrev,
		ipc.CommandMove, ipc.CommandSend, ipc.CommandDestroy:
		sw, err := decodeReply[ipc.SwitchData](data)
		if err != nil {
			return err
		}
		p.switched(sw)
	case ipc.CommandCreate, ipc.CommandRename:
		ws, err := decodeReply[ipc.WorkspaceInfo](data)
		if err != nil {
			return err
		}
		fmt.Fprintf(p.w, "workspace %d: %s\n", ws.Index, workspaceLabel(ws.Name, ws.ID))
	default:
		fmt.Fprintln(p.w, "ok")
	}
	return nil
}

func (p *printer) switched(sw ipc.SwitchData) {
	label := workspaceLabel(sw.Name, sw.Workspace)
	if !sw.Changed {
		fmt.Fprintf(p.w, "%s: already on %s\n", sw.Monitor, label)
		return
	}
	fmt.Fprintf(p.w, "%s: %s (%d shown, %d hidden)\n", sw.Monitor, label, sw.Shown, sw.Hidden)
}

func (p *printer) workspaces(list ipc.WorkspaceListData) {
	tw := table.NewWriter()
	tw.SetOutputMirror(p.w)
	tw.AppendHeader(table.Row{"Monitor", "#", "Name", "Windows", "Layout", "Current"})
	for _, mon := range list.Monitors {
		for _, ws := range mon.Workspaces {
			current := ""
			if ws.Current {
				current = "*"
			}
			tw.AppendRow(table.Row{mon.ID, ws.Index, workspaceLabel(ws.Name, ws.ID), ws.Windows, ws.Layout, current})
		}
		if mon.Pinned > 0 {
			tw.AppendRow(table.Row{mon.ID, "-", "pinned", mon.Pinned, "", ""})
		}
	}
	tw.Render()
}

func (p *printer) status(s ipc.StatusData) {
	tw := table.NewWriter()
	tw.SetOutputMirror(p.w)
	uptime := time.Duration(s.UptimeSeconds) * time.Second
	started := "-"
	if !s.StartedAt.IsZero() {
		started = humanize.RelTime(s.StartedAt, p.now(), "ago", "from now")
	}
	reloaded := "never"
	if !s.LastReload.IsZero() {
		reloaded = humanize.RelTime(s.LastReload, p.now(), "ago", "from now")
	}
	service := "reachable"
	if !s.ServiceReachable {
		service = "unreachable"
	}
	tw.AppendRows([]table.Row{
		{"Started", started},
		{"Uptime", uptime.String()},
		{"Config", s.ConfigPath},
		{"Last reload", reloaded},
		{"Monitors", s.Monitors},
		{"Workspaces", s.Workspaces},
		{"Windows", humanize.Comma(int64(s.Windows))},
		{"Tiled", s.Tiled},
		{"Floating", s.Floating},
		{"Service", service},
	})
	tw.Render()
}

func (p *printer) configCheck(res configCheckResult) error {
	if p.json {
		return p.writeJSON(res)
	}
	if !res.OK {
		fmt.Fprintf(p.w, "%s: invalid\n", res.Path)
		return nil
	}
	fmt.Fprintf(p.w, "%s: ok (%d file(s) loaded)\n", res.Path, len(res.Files))
	if len(res.Keys) == 0 {
		return nil
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(p.w)
	tw.AppendHeader(table.Row{"Key", "Source"})
	for _, key := range sortedKeys(res.Keys) {
		tw.AppendRow(table.Row{key, res.Keys[key]})
	}
	tw.Render()
	return nil
}

func workspaceLabel(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
