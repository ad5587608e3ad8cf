// Package svc implements the authenticated request/response channel between
// the unprivileged daemon and the privileged service process.
package svc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/positioner"
)

// ActionType names one member of the closed action set.
type ActionType string

const (
	ActionShowWindow              ActionType = "show_window"
	ActionHideWindow              ActionType = "hide_window"
	ActionSetPosition             ActionType = "set_position"
	ActionSetFocus                ActionType = "set_focus"
	ActionEnableHotkeys           ActionType = "enable_hotkeys"
	ActionDisableHotkeys          ActionType = "disable_hotkeys"
	ActionStartHotkeyRegistration ActionType = "start_hotkey_registration"
	ActionStopHotkeyRegistration  ActionType = "stop_hotkey_registration"
	ActionDeferredPositions       ActionType = "deferred_positions"
	ActionStop                    ActionType = "stop"
)

var knownActions = map[ActionType]bool{
	ActionShowWindow:              true,
	ActionHideWindow:              true,
	ActionSetPosition:             true,
	ActionSetFocus:                true,
	ActionEnableHotkeys:           true,
	ActionDisableHotkeys:          true,
	ActionStartHotkeyRegistration: true,
	ActionStopHotkeyRegistration:  true,
	ActionDeferredPositions:       true,
	ActionStop:                    true,
}

// Known reports whether t is part of the protocol.
func (t ActionType) Known() bool {
	return knownActions[t]
}

// Action is the tagged union carried by a Message.
type Action struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is one authenticated request frame.
type Message struct {
	Token  Token  `json:"token"`
	Action Action `json:"action"`
}

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Response is the single reply frame for a Message.
type Response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// WindowPayload targets a single window.
type WindowPayload struct {
	Window platform.WindowID `json:"window"`
}

// SetPositionPayload carries one absolute placement.
type SetPositionPayload struct {
	Window platform.WindowID       `json:"window"`
	Rect   platform.Rect           `json:"rect"`
	Flags  platform.PlacementFlags `json:"flags,omitempty"`
}

// HotkeyBinding maps a key sequence such as "Mod4-Right" to CLI arguments.
type HotkeyBinding struct {
	Keys    string   `json:"keys" yaml:"keys"`
	Command []string `json:"command" yaml:"command"`
}

// EnableHotkeysPayload replaces the active hotkey set.
type EnableHotkeysPayload struct {
	Bindings []HotkeyBinding `json:"bindings"`
}

// RegistrationData is returned by stop_hotkey_registration.
type RegistrationData struct {
	Sequences []string `json:"sequences"`
}

// DeferredPositionsPayload is one placement batch, optionally animated.
type DeferredPositionsPayload struct {
	Positions  []positioner.Target `json:"positions"`
	Animated   bool                `json:"animated,omitempty"`
	DurationMS int                 `json:"duration_ms,omitempty"`
	Easing     string              `json:"easing,omitempty"`
}

// PlacementData reports the windows a batch reached.
type PlacementData struct {
	Applied []platform.WindowID `json:"applied,omitempty"`
	Skipped []platform.WindowID `json:"skipped,omitempty"`
}

// NewAction builds an Action, marshaling payload when non-nil.
func NewAction(t ActionType, payload any) (Action, error) {
	a := Action{Type: t}
	if payload == nil {
		return a, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	a.Payload = raw
	return a, nil
}

// DecodePayload unmarshals the action payload into v.
func (a Action) DecodePayload(v any) error {
	if len(a.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", a.Type)
	}
	if err := json.Unmarshal(a.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", a.Type, err)
	}
	return nil
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data any) (*Response, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		raw = b
	}
	return &Response{Status: StatusOK, Data: raw}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(msg string) *Response {
	return &Response{Status: StatusError, Error: msg}
}
