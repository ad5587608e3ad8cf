// Package service executes privileged actions received over the service
// channel: window visibility, placement, focus and hotkey capture.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/panewm/internal/hotkeys"
	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/positioner"
	"github.com/1broseidon/panewm/internal/svc"
)

// Service implements svc.Handler.
type Service struct {
	backend  platform.Backend
	animator *positioner.Animator
	hotkeys  *hotkeys.Handler
	stop     func()
	logger   *slog.Logger
}

var _ svc.Handler = (*Service)(nil)

// New creates the handler. stop is called for the stop action; hk may be nil
// when no keyboard access is available.
func New(backend platform.Backend, animator *positioner.Animator, hk *hotkeys.Handler, stop func(), logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:  backend,
		animator: animator,
		hotkeys:  hk,
		stop:     stop,
		logger:   logger.With("component", "service"),
	}
}

// Handle dispatches one authenticated action.
func (s *Service) Handle(ctx context.Context, action svc.Action) (any, error) {
	switch action.Type {
	case svc.ActionShowWindow:
		var p svc.WindowPayload
		if err := action.DecodePayload(&p); err != nil {
			return nil, err
		}
		return nil, s.backend.Show(p.Window)

	case svc.ActionHideWindow:
		var p svc.WindowPayload
		if err := action.DecodePayload(&p); err != nil {
			return nil, err
		}
		return nil, s.backend.Hide(p.Window)

	case svc.ActionSetPosition:
		var p svc.SetPositionPayload
		if err := action.DecodePayload(&p); err != nil {
			return nil, err
		}
		res, err := positioner.Apply(s.backend, []positioner.Target{{Window: p.Window, Rect: p.Rect, Flags: p.Flags}}, s.logger)
		return placementData(res), err

	case svc.ActionSetFocus:
		var p svc.WindowPayload
		if err := action.DecodePayload(&p); err != nil {
			return nil, err
		}
		return nil, s.backend.Focus(p.Window)

	case svc.ActionEnableHotkeys:
		var p svc.EnableHotkeysPayload
		if err := action.DecodePayload(&p); err != nil {
			return nil, err
		}
		if s.hotkeys == nil {
			return nil, fmt.Errorf("hotkeys unavailable")
		}
		return nil, s.hotkeys.Enable(p.Bindings)

	case svc.ActionDisableHotkeys:
		if s.hotkeys != nil {
			s.hotkeys.Disable()
		}
		return nil, nil

	case svc.ActionStartHotkeyRegistration:
		if s.hotkeys == nil {
			return nil, fmt.Errorf("hotkeys unavailable")
		}
		return nil, s.hotkeys.StartRegistration()

	case svc.ActionStopHotkeyRegistration:
		if s.hotkeys == nil {
			return svc.RegistrationData{}, nil
		}
		seqs, err := s.hotkeys.StopRegistration()
		return svc.RegistrationData{Sequences: seqs}, err

	case svc.ActionDeferredPositions:
		var p svc.DeferredPositionsPayload
		if err := action.DecodePayload(&p); err != nil {
			return nil, err
		}
		return s.deferredPositions(p)

	case svc.ActionStop:
		s.logger.Info("stop requested")
		if s.animator != nil {
			s.animator.Stop()
		}
		if s.stop != nil {
			s.stop()
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown action: %s", action.Type)
}

func (s *Service) deferredPositions(p svc.DeferredPositionsPayload) (any, error) {
	if !p.Animated || p.DurationMS <= 0 || s.animator == nil {
		// A plain batch must not race a running animation over the same windows.
		if s.animator != nil {
			s.animator.Stop()
		}
		res, err := positioner.Apply(s.backend, p.Positions, s.logger)
		return placementData(res), err
	}

	duration := time.Duration(p.DurationMS) * time.Millisecond
	err := s.animator.Start(p.Positions, duration, p.Easing, func(r positioner.Result) {
		switch r.Outcome {
		case positioner.Superseded:
			s.logger.Debug("animation superseded", "windows", len(p.Positions))
		case positioner.Failed:
			s.logger.Warn("animation failed", "err", r.Err)
		}
	})
	return nil, err
}

func placementData(res positioner.PlaceResult) svc.PlacementData {
	return svc.PlacementData{Applied: res.Applied, Skipped: res.Skipped}
}
