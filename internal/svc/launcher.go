package svc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"
)

// LauncherCloseSplash tells the launcher the daemon finished starting.
const LauncherCloseSplash = "close_splash"

// LauncherMessage is the only frame accepted on the launcher channel.
type LauncherMessage struct {
	Kind string `json:"kind"`
}

// ListenLauncher creates the unauthenticated launcher socket.
func ListenLauncher(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("create launcher socket dir: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale launcher socket: %w", err)
	}
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on launcher socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		l.Close()
		return nil, fmt.Errorf("chmod launcher socket: %w", err)
	}
	return l, nil
}

// ServeLauncher reads one frame per connection and passes it to onMessage
// until ctx is cancelled.
func ServeLauncher(ctx context.Context, l net.Listener, logger *slog.Logger, onMessage func(LauncherMessage)) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("launcher accept error", "err", err)
			continue
		}
		_ = conn.SetDeadline(time.Now().Add(DefaultTimeout))
		var msg LauncherMessage
		err = ReadFrame(conn, &msg)
		conn.Close()
		if err != nil {
			logger.Debug("launcher read error", "err", err)
			continue
		}
		onMessage(msg)
	}
}

// NotifyLauncher sends kind to the launcher. Failures are logged and
// swallowed: the launcher may legitimately be absent.
func NotifyLauncher(ctx context.Context, socketPath, kind string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		logger.Debug("launcher not reachable", "err", err)
		return
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := WriteFrame(conn, LauncherMessage{Kind: kind}); err != nil {
		logger.Debug("launcher notify failed", "err", err)
	}
}
