package platform

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiffClients_CreatedDestroyedFocused(t *testing.T) {
	prev := ClientSnapshot{Clients: []WindowID{1, 2}, Active: 1}
	next := ClientSnapshot{Clients: []WindowID{2, 3}, Active: 3}

	got := DiffClients(prev, next)
	want := []WindowEvent{
		{Kind: EventDestroyed, Window: 1},
		{Kind: EventCreated, Window: 3},
		{Kind: EventFocused, Window: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("DiffClients mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffClients_MinimizeRestoreAndReparent(t *testing.T) {
	prev := ClientSnapshot{
		Clients:   []WindowID{1, 2, 3},
		Minimized: map[WindowID]bool{2: true},
	}
	next := ClientSnapshot{
		Clients:   []WindowID{1, 2, 3},
		Minimized: map[WindowID]bool{1: true},
		Leaders:   map[WindowID]WindowID{3: 1},
	}

	got := DiffClients(prev, next)
	want := []WindowEvent{
		{Kind: EventReparented, Window: 3, Creator: 1},
		{Kind: EventMinimized, Window: 1},
		{Kind: EventRestored, Window: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("DiffClients mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffClients_NoChange(t *testing.T) {
	snap := ClientSnapshot{Clients: []WindowID{4, 5}, Active: 4}
	if got := DiffClients(snap, snap); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
}

func TestDisplayForWindow(t *testing.T) {
	displays := []Display{
		{ID: 0, Name: "DP-1", Bounds: Rect{X: 0, Y: 0, Width: 1920, Height: 1080}},
		{ID: 1, Name: "DP-2", Bounds: Rect{X: 1920, Y: 0, Width: 1920, Height: 1080}},
	}

	d, ok := DisplayForWindow(displays, Rect{X: 2000, Y: 100, Width: 400, Height: 300})
	if !ok || d.Key() != "DP-2" {
		t.Fatalf("DisplayForWindow = %v,%v, want DP-2", d.Key(), ok)
	}

	d, ok = DisplayForWindow(displays, Rect{X: -5000, Y: -5000, Width: 10, Height: 10})
	if !ok || d.Key() != "DP-1" {
		t.Fatalf("off-screen window should fall back to first display, got %v", d.Key())
	}

	if _, ok := DisplayForWindow(nil, Rect{}); ok {
		t.Fatal("expected no display for empty list")
	}
}

func TestDisplayKeyFallback(t *testing.T) {
	if got := (Display{ID: 3}).Key(); got != "Monitor3" {
		t.Fatalf("Key() = %q, want Monitor3", got)
	}
}
