package tiling

import (
	"fmt"

	"github.com/1broseidon/panewm/internal/platform"
)

// Dimension selects the axis a resize acts on.
type Dimension string

const (
	Width  Dimension = "width"
	Height Dimension = "height"
)

// ParseDimension accepts "width" or "height".
func ParseDimension(s string) (Dimension, error) {
	switch Dimension(s) {
	case Width, Height:
		return Dimension(s), nil
	}
	return "", fmt.Errorf("invalid dimension %q (use width or height)", s)
}

func (d Dimension) orientation() Orientation {
	if d == Height {
		return Vertical
	}
	return Horizontal
}

const epsilon = 1e-9

// Resize grows (positive step) or shrinks (negative step) the branch holding
// w inside the nearest split ancestor along dim. When that ancestor cannot
// move any further the next matching ancestor is tried. It reports whether
// any proportion changed.
func (t *Tree) Resize(w platform.WindowID, dim Dimension, step, minProportion float64) bool {
	n := t.Root.find(w)
	if n == nil || w == 0 {
		return false
	}
	want := dim.orientation()
	for child, p := n, n.parent; p != nil; child, p = p, p.parent {
		if p.Kind != KindSplit || p.Orientation != want || len(p.Children) < 2 {
			continue
		}
		if adjust(p.Proportions, p.indexOf(child), step, minProportion) {
			return true
		}
	}
	return false
}

// adjust moves delta into (or out of) props[i], trading with every sibling
// and keeping each entry at or above floor.
func adjust(props []float64, i int, delta, floor float64) bool {
	if delta > 0 {
		spare := 0.0
		for j, p := range props {
			if j != i && p > floor {
				spare += p - floor
			}
		}
		d := min(delta, spare)
		if d <= epsilon {
			return false
		}
		for j, p := range props {
			if j != i && p > floor {
				props[j] -= d * (p - floor) / spare
			}
		}
		props[i] += d
		return true
	}

	d := min(-delta, props[i]-floor)
	if d <= epsilon {
		return false
	}
	others := 1 - props[i]
	props[i] -= d
	for j, p := range props {
		if j == i {
			continue
		}
		if others <= epsilon {
			props[j] += d / float64(len(props)-1)
		} else {
			props[j] += d * p / others
		}
	}
	return true
}

// ResetSizes restores template weights on every split.
func (t *Tree) ResetSizes() {
	resetSizes(t.Root)
}

func resetSizes(n *Node) {
	if n == nil || n.Kind != KindSplit {
		return
	}
	for i, c := range n.Children {
		n.Proportions[i] = c.Template.weight()
		resetSizes(c)
	}
	normalize(n.Proportions)
}
