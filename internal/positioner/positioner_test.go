package positioner

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/platform/platformtest"
)

func newFake() *platformtest.Backend {
	b := platformtest.New(platform.Display{ID: 0, Name: "DP-1", Bounds: platform.Rect{Width: 1920, Height: 1080}})
	for id := platform.WindowID(1); id <= 3; id++ {
		b.AddWindow(platform.Window{ID: id, Bounds: platform.Rect{X: 0, Y: 0, Width: 100, Height: 100}})
	}
	return b
}

func TestPlace_AppliesWholeBatchAtomically(t *testing.T) {
	b := newFake()
	p := New(b, nil, nil)
	p.Add(1, platform.Rect{X: 0, Y: 0, Width: 960, Height: 1080})
	p.Add(2, platform.Rect{X: 960, Y: 0, Width: 960, Height: 1080})

	res, err := p.Place()
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if len(res.Applied) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if n := len(b.Batches()); n != 1 {
		t.Fatalf("expected exactly one batch, got %d", n)
	}
	if got, _ := b.Bounds(2); got.X != 960 {
		t.Fatalf("window 2 bounds = %+v", got)
	}
	if p.Pending() != 0 {
		t.Fatalf("pending should be drained")
	}
}

func TestPlace_SkipsStaleWindows(t *testing.T) {
	b := newFake()
	b.Remove(2)

	p := New(b, nil, nil)
	p.Add(1, platform.Rect{Width: 10, Height: 10})
	p.Add(2, platform.Rect{Width: 20, Height: 20})
	p.Add(3, platform.Rect{Width: 30, Height: 30})

	res, err := p.Place()
	if err != nil {
		t.Fatalf("stale window must not fail the batch: %v", err)
	}
	if len(res.Applied) != 2 || len(res.Skipped) != 1 || res.Skipped[0] != 2 {
		t.Fatalf("result = %+v", res)
	}
	if b.OpenBatches() != 0 {
		t.Fatalf("batch left open")
	}
}

func TestAdd_ReplacesEarlierTargetForSameWindow(t *testing.T) {
	b := newFake()
	p := New(b, nil, nil)
	p.Add(1, platform.Rect{Width: 10, Height: 10})
	p.Add(1, platform.Rect{Width: 50, Height: 50})
	if p.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", p.Pending())
	}
	if _, err := p.Place(); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.Bounds(1); got.Width != 50 {
		t.Fatalf("bounds = %+v", got)
	}
}

func TestPlaceAnimated_CompletesAtTarget(t *testing.T) {
	b := newFake()
	anim := NewAnimator(b, time.Millisecond, nil)
	p := New(b, anim, nil)

	target := platform.Rect{X: 500, Y: 200, Width: 800, Height: 600}
	p.Add(1, target)

	done := make(chan Result, 1)
	if err := p.PlaceAnimated(20*time.Millisecond, "ease-out-cubic", func(r Result) { done <- r }); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-done:
		if r.Outcome != Completed {
			t.Fatalf("outcome = %v (%v)", r.Outcome, r.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("animation never completed")
	}
	if got, _ := b.Bounds(1); got != target {
		t.Fatalf("final bounds = %+v, want %+v", got, target)
	}
	if len(b.Batches()) < 2 {
		t.Fatalf("expected several frames, got %d", len(b.Batches()))
	}
}

func TestAnimator_NewBatchSupersedesRunning(t *testing.T) {
	b := newFake()
	anim := NewAnimator(b, time.Millisecond, nil)

	var mu sync.Mutex
	var results []Result
	aDone := make(chan struct{})

	err := anim.Start([]Target{{Window: 1, Rect: platform.Rect{X: 1000, Y: 0, Width: 100, Height: 100}}},
		10*time.Second, "linear", func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			close(aDone)
		})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(b.Batches()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first animation never produced a frame")
		}
		time.Sleep(time.Millisecond)
	}

	bDone := make(chan Result, 1)
	err = anim.Start([]Target{{Window: 2, Rect: platform.Rect{X: 10, Y: 10, Width: 50, Height: 50}}},
		10*time.Millisecond, "linear", func(r Result) { bDone <- r })
	if err != nil {
		t.Fatal(err)
	}

	// Start returns only after the first animation exited.
	select {
	case <-aDone:
	default:
		t.Fatal("superseded animation still running after Start returned")
	}
	framesBeforeB := len(b.Batches())

	select {
	case r := <-bDone:
		if r.Outcome != Completed {
			t.Fatalf("second outcome = %v", r.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second animation never completed")
	}

	mu.Lock()
	if len(results) != 1 || results[0].Outcome != Superseded || results[0].Err != nil {
		t.Fatalf("first animation results = %+v, want one Superseded", results)
	}
	mu.Unlock()

	for i, batch := range b.Batches()[framesBeforeB:] {
		for _, p := range batch {
			if p.Window == 1 {
				t.Fatalf("frame %d after supersede touched window 1", i)
			}
		}
	}
}

func TestAnimator_UnknownEasingFallsBackToLinear(t *testing.T) {
	b := newFake()
	anim := NewAnimator(b, time.Millisecond, nil)
	done := make(chan Result, 1)
	if err := anim.Start([]Target{{Window: 3, Rect: platform.Rect{Width: 300, Height: 300}}}, 0, "bounce", func(r Result) { done <- r }); err != nil {
		t.Fatal(err)
	}
	if r := <-done; r.Outcome != Completed {
		t.Fatalf("outcome = %v", r.Outcome)
	}
	if got, _ := b.Bounds(3); got.Width != 300 {
		t.Fatalf("bounds = %+v", got)
	}
}

func TestEasing_Endpoints(t *testing.T) {
	for _, name := range EasingNames() {
		fn, ok := Easing(name)
		if !ok {
			t.Fatalf("easing %q not registered", name)
		}
		if v := fn(0); math.Abs(v) > 1e-9 {
			t.Fatalf("%s(0) = %v", name, v)
		}
		if v := fn(1); math.Abs(v-1) > 1e-9 {
			t.Fatalf("%s(1) = %v", name, v)
		}
	}
	if _, ok := Easing("nope"); ok {
		t.Fatal("unknown easing reported as known")
	}
}

func TestInterpolate(t *testing.T) {
	from := platform.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	to := platform.Rect{X: 100, Y: 50, Width: 200, Height: 100}
	if got := Interpolate(from, to, 0.5); got != (platform.Rect{X: 50, Y: 25, Width: 150, Height: 100}) {
		t.Fatalf("Interpolate(0.5) = %+v", got)
	}
	if got := Interpolate(from, to, 1); got != to {
		t.Fatalf("Interpolate(1) = %+v", got)
	}
}
