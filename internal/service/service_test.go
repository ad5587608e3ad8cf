package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/platform/platformtest"
	"github.com/1broseidon/panewm/internal/positioner"
	"github.com/1broseidon/panewm/internal/svc"
)

func mustAction(t *testing.T, typ svc.ActionType, payload any) svc.Action {
	t.Helper()
	a, err := svc.NewAction(typ, payload)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func newBackend() *platformtest.Backend {
	b := platformtest.New(platform.Display{ID: 0, Name: "DP-1", Bounds: platform.Rect{Width: 1920, Height: 1080}})
	b.AddWindow(platform.Window{ID: 1, Bounds: platform.Rect{Width: 100, Height: 100}})
	b.AddWindow(platform.Window{ID: 2, Bounds: platform.Rect{Width: 100, Height: 100}})
	return b
}

func TestHandle_ShowHideFocus(t *testing.T) {
	b := newBackend()
	s := New(b, nil, nil, nil, nil)
	ctx := context.Background()

	if _, err := s.Handle(ctx, mustAction(t, svc.ActionHideWindow, svc.WindowPayload{Window: 1})); err != nil {
		t.Fatal(err)
	}
	if !b.Hidden(1) {
		t.Fatal("window 1 not hidden")
	}
	if _, err := s.Handle(ctx, mustAction(t, svc.ActionShowWindow, svc.WindowPayload{Window: 1})); err != nil {
		t.Fatal(err)
	}
	if b.Hidden(1) {
		t.Fatal("window 1 still hidden")
	}
	if _, err := s.Handle(ctx, mustAction(t, svc.ActionSetFocus, svc.WindowPayload{Window: 2})); err != nil {
		t.Fatal(err)
	}
	if active, _ := b.ActiveWindow(); active != 2 {
		t.Fatalf("active = %d", active)
	}
}

func TestHandle_StaleWindowErrors(t *testing.T) {
	b := newBackend()
	s := New(b, nil, nil, nil, nil)
	_, err := s.Handle(context.Background(), mustAction(t, svc.ActionShowWindow, svc.WindowPayload{Window: 99}))
	if !errors.Is(err, platform.ErrStaleWindow) {
		t.Fatalf("err = %v", err)
	}
}

func TestHandle_DeferredPositionsSkipsStale(t *testing.T) {
	b := newBackend()
	s := New(b, nil, nil, nil, nil)

	data, err := s.Handle(context.Background(), mustAction(t, svc.ActionDeferredPositions, svc.DeferredPositionsPayload{
		Positions: []positioner.Target{
			{Window: 1, Rect: platform.Rect{Width: 960, Height: 1080}},
			{Window: 7, Rect: platform.Rect{X: 960, Width: 960, Height: 1080}},
		},
	}))
	if err != nil {
		t.Fatal(err)
	}
	pd := data.(svc.PlacementData)
	if len(pd.Applied) != 1 || len(pd.Skipped) != 1 || pd.Skipped[0] != 7 {
		t.Fatalf("placement = %+v", pd)
	}
	if got, _ := b.Bounds(1); got.Width != 960 {
		t.Fatalf("bounds = %+v", got)
	}
}

func TestHandle_AnimatedBatchReachesTarget(t *testing.T) {
	b := newBackend()
	anim := positioner.NewAnimator(b, time.Millisecond, nil)
	s := New(b, anim, nil, nil, nil)

	target := platform.Rect{X: 100, Y: 100, Width: 500, Height: 400}
	_, err := s.Handle(context.Background(), mustAction(t, svc.ActionDeferredPositions, svc.DeferredPositionsPayload{
		Positions:  []positioner.Target{{Window: 2, Rect: target}},
		Animated:   true,
		DurationMS: 20,
		Easing:     "ease-in-out-quad",
	}))
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got, _ := b.Bounds(2); got == target {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("animation never reached target")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandle_StopInvokesCallback(t *testing.T) {
	stopped := false
	s := New(newBackend(), nil, nil, func() { stopped = true }, nil)
	if _, err := s.Handle(context.Background(), svc.Action{Type: svc.ActionStop}); err != nil {
		t.Fatal(err)
	}
	if !stopped {
		t.Fatal("stop callback not called")
	}
}

func TestHandle_BadPayload(t *testing.T) {
	s := New(newBackend(), nil, nil, nil, nil)
	_, err := s.Handle(context.Background(), svc.Action{Type: svc.ActionSetPosition, Payload: json.RawMessage(`"nope"`)})
	if err == nil {
		t.Fatal("expected payload error")
	}
}
