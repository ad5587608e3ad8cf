// Package positioner applies batches of window rectangles to the OS, either
// in one atomic step or animated across a duration.
package positioner

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/panewm/internal/platform"
)

// Target is one window's requested placement.
type Target struct {
	Window platform.WindowID       `json:"window"`
	Rect   platform.Rect           `json:"rect"`
	Flags  platform.PlacementFlags `json:"flags,omitempty"`
}

// PlaceResult reports which windows a batch reached.
type PlaceResult struct {
	Applied []platform.WindowID
	Skipped []platform.WindowID
}

// Positioner accumulates targets and applies them as one batch.
type Positioner struct {
	backend  platform.Backend
	animator *Animator
	logger   *slog.Logger

	mu      sync.Mutex
	pending []Target
}

// New creates a Positioner. animator may be nil when animation is never used.
func New(backend platform.Backend, animator *Animator, logger *slog.Logger) *Positioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Positioner{backend: backend, animator: animator, logger: logger}
}

// Add queues a target. A later Add for the same window replaces the earlier one.
func (p *Positioner) Add(window platform.WindowID, rect platform.Rect) {
	p.AddTarget(Target{Window: window, Rect: rect})
}

// AddTarget queues a target with explicit placement flags.
func (p *Positioner) AddTarget(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.pending {
		if p.pending[i].Window == t.Window {
			p.pending[i] = t
			return
		}
	}
	p.pending = append(p.pending, t)
}

// Pending returns the number of queued targets.
func (p *Positioner) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Positioner) take() []Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := p.pending
	p.pending = nil
	return batch
}

// Place applies every queued target in one deferred batch. Windows that are
// no longer valid are skipped, not treated as failure.
func (p *Positioner) Place() (PlaceResult, error) {
	return Apply(p.backend, p.take(), p.logger)
}

// Apply performs one atomic batch for the given targets.
func Apply(backend platform.Backend, batch []Target, logger *slog.Logger) (PlaceResult, error) {
	var res PlaceResult
	if len(batch) == 0 {
		return res, nil
	}

	dp, err := backend.BeginDeferred(len(batch))
	if err != nil {
		return res, fmt.Errorf("begin deferred batch: %w", err)
	}

	var firstErr error
	for _, t := range batch {
		err := dp.Defer(t.Window, t.Rect, t.Flags)
		switch {
		case err == nil:
			res.Applied = append(res.Applied, t.Window)
		case errors.Is(err, platform.ErrStaleWindow):
			res.Skipped = append(res.Skipped, t.Window)
			if logger != nil {
				logger.Debug("skipping stale window", "window", t.Window)
			}
		default:
			res.Skipped = append(res.Skipped, t.Window)
			if firstErr == nil {
				firstErr = fmt.Errorf("defer window %d: %w", t.Window, err)
			}
		}
	}

	if err := dp.End(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("end deferred batch: %w", err)
	}
	return res, firstErr
}

// PlaceAnimated hands the queued targets to the animator. It returns once any
// previously running animation has terminated and the new one has started.
func (p *Positioner) PlaceAnimated(duration time.Duration, easing string, onComplete func(Result)) error {
	batch := p.take()
	if p.animator == nil {
		_, err := Apply(p.backend, batch, p.logger)
		if onComplete != nil {
			if err != nil {
				onComplete(Result{Outcome: Failed, Err: err})
			} else {
				onComplete(Result{Outcome: Completed})
			}
		}
		return err
	}
	return p.animator.Start(batch, duration, easing, onComplete)
}
