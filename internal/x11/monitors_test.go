package x11

import "testing"

func TestUsableArea_TopPanelOnlyAffectsCoveredMonitor(t *testing.T) {
	left := Box{X: 0, Y: 0, Width: 1920, Height: 1080}
	right := Box{X: 1920, Y: 0, Width: 1920, Height: 1080}
	panel := []Strut{{Top: 32, TopStartX: 0, TopEndX: 1919}}

	if got := UsableArea(left, 3840, 1080, panel); got != (Box{X: 0, Y: 32, Width: 1920, Height: 1048}) {
		t.Fatalf("left usable = %+v", got)
	}
	if got := UsableArea(right, 3840, 1080, panel); got != right {
		t.Fatalf("right usable = %+v, want unchanged %+v", got, right)
	}
}

func TestUsableArea_BottomAndSideStruts(t *testing.T) {
	mon := Box{X: 0, Y: 0, Width: 1920, Height: 1080}
	struts := []Strut{
		{Bottom: 40, BottomStartX: 0, BottomEndX: 1919},
		{Left: 60, LeftStartY: 0, LeftEndY: 1079},
		{Right: 10, RightStartY: 0, RightEndY: 1079},
	}

	got := UsableArea(mon, 1920, 1080, struts)
	want := Box{X: 60, Y: 0, Width: 1850, Height: 1040}
	if got != want {
		t.Fatalf("UsableArea = %+v, want %+v", got, want)
	}
}

func TestUsableArea_NeverCollapses(t *testing.T) {
	mon := Box{X: 0, Y: 0, Width: 100, Height: 100}
	got := UsableArea(mon, 100, 100, []Strut{{Top: 200, TopEndX: 99}})
	if got.Height < 1 || got.Width < 1 {
		t.Fatalf("UsableArea collapsed: %+v", got)
	}
}
