package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/panewm/internal/platform"
)

// DefaultReconcileInterval is used when the configured interval is unset.
const DefaultReconcileInterval = 10 * time.Second

// WindowLister returns the IDs of every top-level window that still exists.
type WindowLister func() ([]platform.WindowID, error)

// Pruner drops state for windows that are no longer alive.
type Pruner interface {
	Prune(ctx context.Context, alive map[platform.WindowID]bool)
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically compares tracked windows with the live window list
// and drops the ones whose destroy event was missed.
type Reconciler struct {
	interval    time.Duration
	pruner      Pruner
	listWindows WindowLister
	logger      *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, pruner Pruner, listWindows WindowLister) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		interval:    interval,
		pruner:      pruner,
		listWindows: listWindows,
		logger:      logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context) {
	// A bad pass must not take the daemon down.
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	ids, err := r.listWindows()
	if err != nil {
		r.logger.Error("reconciler: failed to list windows", "error", err)
		return
	}

	alive := make(map[platform.WindowID]bool, len(ids))
	for _, id := range ids {
		alive[id] = true
	}
	r.pruner.Prune(ctx, alive)
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow(ctx context.Context) {
	r.reconcile(ctx)
}
