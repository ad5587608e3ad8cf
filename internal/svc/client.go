package svc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/1broseidon/panewm/internal/platform"
	"github.com/1broseidon/panewm/internal/positioner"
)

// ErrTimeout is returned when every connection attempt failed.
var ErrTimeout = errors.New("service did not respond")

const (
	DefaultAttempts   = 5
	DefaultRetryDelay = 200 * time.Millisecond
	DefaultTimeout    = 2 * time.Second
)

// RemoteError is an Err response returned by the service.
type RemoteError struct {
	Action  ActionType
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("service %s: %s", e.Action, e.Message)
}

// Is maps the Unauthorized response to ErrUnauthorized.
func (e *RemoteError) Is(target error) bool {
	return target == ErrUnauthorized && e.Message == ErrUnauthorized.Error()
}

// ClientOptions tune retry behavior. Zero values select defaults.
type ClientOptions struct {
	Attempts   int
	RetryDelay time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client sends actions to the privileged service.
type Client struct {
	socketPath string
	token      Token
	attempts   int
	retryDelay time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a client for the service socket at socketPath.
func NewClient(socketPath string, token Token, opts ClientOptions) *Client {
	c := &Client{
		socketPath: socketPath,
		token:      token,
		attempts:   opts.Attempts,
		retryDelay: opts.RetryDelay,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}
	if c.attempts <= 0 {
		c.attempts = DefaultAttempts
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Send delivers one action and waits for its response. Only failures to
// connect are retried: once the frame is written the action may have run, so
// a write or read failure is returned as is. An Err response is returned as
// *RemoteError.
func (c *Client) Send(ctx context.Context, action Action) (*Response, error) {
	msg := Message{Token: c.token, Action: action}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		resp, err := c.exchange(ctx, msg)
		if err == nil {
			if resp.Status != StatusOK {
				return resp, &RemoteError{Action: action.Type, Message: resp.Error}
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, errConnect) {
			return nil, fmt.Errorf("service %s: %w", action.Type, err)
		}
		lastErr = err
		c.logger.Debug("service not reachable", "action", action.Type, "attempt", attempt, "err", err)
		if attempt == c.attempts {
			break
		}

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrTimeout, c.attempts, lastErr)
}

// errConnect marks an exchange that failed before anything was written.
var errConnect = errors.New("connect to service")

func (c *Client) exchange(ctx context.Context, msg Message) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(attemptCtx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConnect, err)
	}
	defer conn.Close()

	if deadline, ok := attemptCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := WriteFrame(conn, msg); err != nil {
		return nil, err
	}
	var resp Response
	if err := ReadFrame(conn, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) sendPayload(ctx context.Context, t ActionType, payload any, out any) error {
	action, err := NewAction(t, payload)
	if err != nil {
		return err
	}
	resp, err := c.Send(ctx, action)
	if err != nil {
		return err
	}
	return decodeData(resp, out)
}

// ShowWindow asks the service to show a window.
func (c *Client) ShowWindow(ctx context.Context, window platform.WindowID) error {
	return c.sendPayload(ctx, ActionShowWindow, WindowPayload{Window: window}, nil)
}

// HideWindow asks the service to hide a window.
func (c *Client) HideWindow(ctx context.Context, window platform.WindowID) error {
	return c.sendPayload(ctx, ActionHideWindow, WindowPayload{Window: window}, nil)
}

// SetPosition places one window.
func (c *Client) SetPosition(ctx context.Context, window platform.WindowID, rect platform.Rect, flags platform.PlacementFlags) error {
	return c.sendPayload(ctx, ActionSetPosition, SetPositionPayload{Window: window, Rect: rect, Flags: flags}, nil)
}

// SetFocus activates a window.
func (c *Client) SetFocus(ctx context.Context, window platform.WindowID) error {
	return c.sendPayload(ctx, ActionSetFocus, WindowPayload{Window: window}, nil)
}

// EnableHotkeys replaces the service's global hotkey set.
func (c *Client) EnableHotkeys(ctx context.Context, bindings []HotkeyBinding) error {
	return c.sendPayload(ctx, ActionEnableHotkeys, EnableHotkeysPayload{Bindings: bindings}, nil)
}

// DisableHotkeys removes every global hotkey grab.
func (c *Client) DisableHotkeys(ctx context.Context) error {
	return c.sendPayload(ctx, ActionDisableHotkeys, nil, nil)
}

// StartHotkeyRegistration enters key-recording mode.
func (c *Client) StartHotkeyRegistration(ctx context.Context) error {
	return c.sendPayload(ctx, ActionStartHotkeyRegistration, nil, nil)
}

// StopHotkeyRegistration leaves key-recording mode and returns what was recorded.
func (c *Client) StopHotkeyRegistration(ctx context.Context) ([]string, error) {
	var data RegistrationData
	if err := c.sendPayload(ctx, ActionStopHotkeyRegistration, nil, &data); err != nil {
		return nil, err
	}
	return data.Sequences, nil
}

// DeferredPositions applies one batch, optionally animated.
func (c *Client) DeferredPositions(ctx context.Context, positions []positioner.Target, animated bool, duration time.Duration, easing string) (PlacementData, error) {
	var data PlacementData
	err := c.sendPayload(ctx, ActionDeferredPositions, DeferredPositionsPayload{
		Positions:  positions,
		Animated:   animated,
		DurationMS: int(duration / time.Millisecond),
		Easing:     easing,
	}, &data)
	return data, err
}

// Stop asks the service to exit.
func (c *Client) Stop(ctx context.Context) error {
	return c.sendPayload(ctx, ActionStop, nil, nil)
}
