package positioner

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/1broseidon/panewm/internal/platform"
)

// DefaultTick is the interval between animation frames.
const DefaultTick = 16 * time.Millisecond

// Outcome is how an animated batch ended.
type Outcome int

const (
	Completed Outcome = iota
	Superseded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Superseded:
		return "superseded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is delivered exactly once to an animated batch's callback.
type Result struct {
	Outcome Outcome
	Err     error
}

// Animator owns the single in-flight animation slot of the process.
type Animator struct {
	backend platform.Backend
	logger  *slog.Logger
	tick    time.Duration

	mu     sync.Mutex
	active *animation
}

type animation struct {
	cancel chan struct{}
	done   chan struct{}
}

// NewAnimator creates the animator. tick <= 0 selects DefaultTick.
func NewAnimator(backend platform.Backend, tick time.Duration, logger *slog.Logger) *Animator {
	if tick <= 0 {
		tick = DefaultTick
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Animator{backend: backend, tick: tick, logger: logger}
}

type track struct {
	window   platform.WindowID
	from, to platform.Rect
	flags    platform.PlacementFlags
}

// Start cancels any running animation, waits for it to exit, and then begins
// animating targets. onComplete runs on the animation goroutine.
func (a *Animator) Start(targets []Target, duration time.Duration, easingName string, onComplete func(Result)) error {
	ease, ok := Easing(easingName)
	if !ok {
		a.logger.Warn("unknown easing, using linear", "easing", easingName)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()

	tracks := make([]track, 0, len(targets))
	for _, t := range targets {
		info, err := a.backend.WindowInfo(t.Window)
		if err != nil {
			a.logger.Debug("not animating stale window", "window", t.Window)
			continue
		}
		tracks = append(tracks, track{window: t.Window, from: info.Bounds, to: t.Rect, flags: t.Flags})
	}

	anim := &animation{cancel: make(chan struct{}), done: make(chan struct{})}
	a.active = anim
	go a.run(anim, tracks, duration, ease, onComplete)
	return nil
}

// Stop cancels the running animation, if any, and waits for it to exit.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Animator) stopLocked() {
	if a.active == nil {
		return
	}
	select {
	case <-a.active.done:
	default:
		close(a.active.cancel)
		<-a.active.done
	}
	a.active = nil
}

func (a *Animator) run(anim *animation, tracks []track, duration time.Duration, ease EasingFunc, onComplete func(Result)) {
	res := Result{Outcome: Completed}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: Failed, Err: fmt.Errorf("animation panic: %v", r)}
		}
		if onComplete != nil {
			onComplete(res)
		}
		close(anim.done)
	}()

	if duration <= 0 {
		if _, err := a.frame(anim, tracks, 1); err != nil {
			res = a.outcomeFor(err)
		}
		return
	}

	start := time.Now()
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		progress := float64(time.Since(start)) / float64(duration)
		if progress > 1 {
			progress = 1
		}
		var err error
		if tracks, err = a.frame(anim, tracks, ease(progress)); err != nil {
			res = a.outcomeFor(err)
			return
		}
		if progress >= 1 {
			return
		}
		select {
		case <-anim.cancel:
			res = Result{Outcome: Superseded}
			return
		case <-ticker.C:
		}
	}
}

var errSuperseded = errors.New("superseded")

func (a *Animator) outcomeFor(err error) Result {
	if errors.Is(err, errSuperseded) {
		return Result{Outcome: Superseded}
	}
	return Result{Outcome: Failed, Err: err}
}

// frame applies one interpolated batch and returns the tracks still alive.
// Cancellation is checked immediately before touching the OS so no frame is
// applied once it has been observed.
func (a *Animator) frame(anim *animation, tracks []track, t float64) ([]track, error) {
	select {
	case <-anim.cancel:
		return tracks, errSuperseded
	default:
	}
	if len(tracks) == 0 {
		return tracks, nil
	}

	batch := make([]Target, 0, len(tracks))
	for _, tr := range tracks {
		batch = append(batch, Target{Window: tr.window, Rect: Interpolate(tr.from, tr.to, t), Flags: tr.flags})
	}
	res, err := Apply(a.backend, batch, a.logger)
	if err != nil {
		return tracks, err
	}
	if len(res.Skipped) == 0 {
		return tracks, nil
	}

	skipped := make(map[platform.WindowID]bool, len(res.Skipped))
	for _, id := range res.Skipped {
		skipped[id] = true
	}
	kept := tracks[:0]
	for _, tr := range tracks {
		if !skipped[tr.window] {
			kept = append(kept, tr)
		}
	}
	return kept, nil
}

// Interpolate returns the rect at eased progress t between from and to.
func Interpolate(from, to platform.Rect, t float64) platform.Rect {
	lerp := func(a, b int) int {
		return a + int(math.Round(float64(b-a)*t))
	}
	return platform.Rect{
		X:      lerp(from.X, to.X),
		Y:      lerp(from.Y, to.Y),
		Width:  lerp(from.Width, to.Width),
		Height: lerp(from.Height, to.Height),
	}
}
