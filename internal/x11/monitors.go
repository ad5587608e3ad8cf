package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Box is an axis-aligned rectangle in root coordinates.
type Box struct {
	X, Y, Width, Height int
}

func (b Box) intersect(o Box) Box {
	x1, y1 := max(b.X, o.X), max(b.Y, o.Y)
	x2, y2 := min(b.X+b.Width, o.X+o.Width), min(b.Y+b.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Box{}
	}
	return Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func (b Box) empty() bool { return b.Width <= 0 || b.Height <= 0 }

// Monitor is one active RandR output with its usable area (bounds minus
// dock struts that overlap it).
type Monitor struct {
	ID     int
	Name   string
	Bounds Box
	Usable Box
}

// Strut is a reserved edge region declared by a dock.
type Strut struct {
	Left, Right, Top, Bottom int

	LeftStartY, LeftEndY     int
	RightStartY, RightEndY   int
	TopStartX, TopEndX       int
	BottomStartX, BottomEndX int
}

// Monitors retrieves all active monitors using XRandR.
func (c *Connection) Monitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("Monitor%d", i)
		if out, err := randr.GetOutputInfo(c.XUtil.Conn(), info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}

		bounds := Box{X: int(info.X), Y: int(info.Y), Width: int(info.Width), Height: int(info.Height)}
		monitors = append(monitors, Monitor{ID: i, Name: name, Bounds: bounds, Usable: bounds})
	}

	rootW, rootH, struts := c.dockStruts()
	for i := range monitors {
		monitors[i].Usable = UsableArea(monitors[i].Bounds, rootW, rootH, struts)
	}
	return monitors, nil
}

func (c *Connection) dockStruts() (rootW, rootH int, struts []Strut) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return 0, 0, nil
	}
	rootW, rootH = int(geom.Width), int(geom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return rootW, rootH, nil
	}
	for _, win := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
		if err != nil || !containsString(types, "_NET_WM_WINDOW_TYPE_DOCK") {
			continue
		}
		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, win); err == nil {
			struts = append(struts, Strut{
				Left: int(sp.Left), Right: int(sp.Right), Top: int(sp.Top), Bottom: int(sp.Bottom),
				LeftStartY: int(sp.LeftStartY), LeftEndY: int(sp.LeftEndY),
				RightStartY: int(sp.RightStartY), RightEndY: int(sp.RightEndY),
				TopStartX: int(sp.TopStartX), TopEndX: int(sp.TopEndX),
				BottomStartX: int(sp.BottomStartX), BottomEndX: int(sp.BottomEndX),
			})
			continue
		}
		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, win); err == nil {
			struts = append(struts, Strut{
				Left: int(s.Left), Right: int(s.Right), Top: int(s.Top), Bottom: int(s.Bottom),
				LeftEndY: rootH - 1, RightEndY: rootH - 1,
				TopEndX: rootW - 1, BottomEndX: rootW - 1,
			})
		}
	}
	return rootW, rootH, struts
}

// UsableArea subtracts every strut overlapping the monitor from its bounds.
func UsableArea(mon Box, rootW, rootH int, struts []Strut) Box {
	var left, right, top, bottom int
	for _, sp := range struts {
		if sp.Top > 0 {
			if is := mon.intersect(Box{X: sp.TopStartX, Y: 0, Width: sp.TopEndX - sp.TopStartX + 1, Height: sp.Top}); !is.empty() {
				top = max(top, is.Height)
			}
		}
		if sp.Bottom > 0 {
			if is := mon.intersect(Box{X: sp.BottomStartX, Y: rootH - sp.Bottom, Width: sp.BottomEndX - sp.BottomStartX + 1, Height: sp.Bottom}); !is.empty() {
				bottom = max(bottom, is.Height)
			}
		}
		if sp.Left > 0 {
			if is := mon.intersect(Box{X: 0, Y: sp.LeftStartY, Width: sp.Left, Height: sp.LeftEndY - sp.LeftStartY + 1}); !is.empty() {
				left = max(left, is.Width)
			}
		}
		if sp.Right > 0 {
			if is := mon.intersect(Box{X: rootW - sp.Right, Y: sp.RightStartY, Width: sp.Right, Height: sp.RightEndY - sp.RightStartY + 1}); !is.empty() {
				right = max(right, is.Width)
			}
		}
	}

	usable := Box{
		X:      mon.X + left,
		Y:      mon.Y + top,
		Width:  max(1, mon.Width-left-right),
		Height: max(1, mon.Height-top-bottom),
	}
	return usable
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
