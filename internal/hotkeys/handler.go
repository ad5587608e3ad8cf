// Package hotkeys owns the service's global key grabs and the interactive
// key-registration mode.
package hotkeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/1broseidon/panewm/internal/svc"
)

// ErrRegistrationActive is returned when registration is started twice.
var ErrRegistrationActive = errors.New("hotkey registration already active")

// Grabber is the window-system side of hotkey handling.
type Grabber interface {
	Bind(keys string, fn func()) error
	UnbindAll()
	// StartCapture grabs the whole keyboard and reports every completed
	// key combination as a sequence string until StopCapture.
	StartCapture(onSequence func(string)) error
	StopCapture()
}

// CommandFunc runs the CLI arguments attached to a binding.
type CommandFunc func(ctx context.Context, args []string) error

// Handler manages global keyboard shortcuts.
type Handler struct {
	grabber Grabber
	run     CommandFunc
	logger  *slog.Logger

	mu          sync.Mutex
	bindings    []svc.HotkeyBinding
	enabled     bool
	registering bool
	recorded    []string
}

// NewHandler creates a hotkey handler.
func NewHandler(grabber Grabber, run CommandFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{grabber: grabber, run: run, logger: logger.With("component", "hotkeys")}
}

// Enable replaces the active binding set. Bindings that fail to grab are
// reported together; the rest stay active.
func (h *Handler) Enable(bindings []svc.HotkeyBinding) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.bindings = append([]svc.HotkeyBinding(nil), bindings...)
	h.enabled = true
	if h.registering {
		// Applied when registration stops.
		return nil
	}
	return h.bindLocked()
}

// Disable drops every grab.
func (h *Handler) Disable() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = false
	h.grabber.UnbindAll()
}

// Bindings returns the configured binding set.
func (h *Handler) Bindings() []svc.HotkeyBinding {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]svc.HotkeyBinding(nil), h.bindings...)
}

func (h *Handler) bindLocked() error {
	h.grabber.UnbindAll()

	var errs []error
	for _, b := range h.bindings {
		if strings.TrimSpace(b.Keys) == "" || len(b.Command) == 0 {
			errs = append(errs, fmt.Errorf("binding %q: keys and command are required", b.Keys))
			continue
		}
		binding := b
		err := h.grabber.Bind(binding.Keys, func() {
			h.logger.Debug("hotkey pressed", "keys", binding.Keys, "command", binding.Command)
			if err := h.run(context.Background(), binding.Command); err != nil {
				h.logger.Warn("hotkey command failed", "keys", binding.Keys, "err", err)
			}
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("bind %q: %w", binding.Keys, err))
		}
	}
	return errors.Join(errs...)
}

// StartRegistration suspends bound hotkeys and begins recording key combos.
func (h *Handler) StartRegistration() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.registering {
		return ErrRegistrationActive
	}

	h.grabber.UnbindAll()
	h.recorded = nil
	if err := h.grabber.StartCapture(h.record); err != nil {
		if h.enabled {
			if berr := h.bindLocked(); berr != nil {
				h.logger.Warn("restoring hotkeys failed", "err", berr)
			}
		}
		return fmt.Errorf("start key capture: %w", err)
	}
	h.registering = true
	h.logger.Info("hotkey registration started")
	return nil
}

func (h *Handler) record(seq string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.registering {
		return
	}
	h.recorded = append(h.recorded, seq)
}

// StopRegistration ends recording, restores bindings, and returns the
// recorded sequences. Stopping when not registering returns nil.
func (h *Handler) StopRegistration() ([]string, error) {
	h.mu.Lock()
	if !h.registering {
		h.mu.Unlock()
		return nil, nil
	}
	h.registering = false
	recorded := h.recorded
	h.recorded = nil
	h.mu.Unlock()

	// StopCapture may wait on in-flight key callbacks that take h.mu.
	h.grabber.StopCapture()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Info("hotkey registration stopped", "recorded", len(recorded))
	if h.enabled {
		if err := h.bindLocked(); err != nil {
			return recorded, err
		}
	}
	return recorded, nil
}

// Registering reports whether registration mode is active.
func (h *Handler) Registering() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registering
}

var modifierKeys = map[string]bool{
	"Shift_L": true, "Shift_R": true,
	"Control_L": true, "Control_R": true,
	"Alt_L": true, "Alt_R": true,
	"Meta_L": true, "Meta_R": true,
	"Super_L": true, "Super_R": true,
	"Hyper_L": true, "Hyper_R": true,
	"Caps_Lock": true, "Num_Lock": true, "ISO_Level3_Shift": true,
}

// IsModifierKey reports whether a keysym name is a bare modifier.
func IsModifierKey(name string) bool {
	return modifierKeys[name]
}

// FormatSequence builds a binding string like "Mod4-Shift-Return" from a
// modifier string as produced by keybind.ModifierString and a key name.
// Lock modifiers are dropped.
func FormatSequence(mods, key string) string {
	var parts []string
	for _, m := range strings.Split(mods, "-") {
		switch strings.ToLower(m) {
		case "":
		case "lock", "mod2":
		case "shift":
			parts = append(parts, "Shift")
		case "control":
			parts = append(parts, "Control")
		default:
			parts = append(parts, strings.ToUpper(m[:1])+m[1:])
		}
	}
	parts = append(parts, key)
	return strings.Join(parts, "-")
}
