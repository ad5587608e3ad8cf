package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/1broseidon/panewm/internal/runtimepath"
	"github.com/1broseidon/panewm/internal/svc"
)

const defaultReadyTimeout = 15 * time.Second

func launchCmd() *cobra.Command {
	var readyTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start the service and the daemon and wait until they are ready",
		Long: `Start the privileged service and the daemon as child processes. The
launcher listens on its session socket until the daemon reports it finished
starting, then keeps supervising both children until one exits or a signal
arrives.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLaunch(cmd.Context(), readyTimeout)
		},
	}
	cmd.Flags().DurationVar(&readyTimeout, "ready-timeout", defaultReadyTimeout, "how long to wait for the daemon to report ready")
	return cmd
}

func runLaunch(ctx context.Context, readyTimeout time.Duration) error {
	res, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(res.Config.LogLevel).With("component", "launcher")

	launcherPath, err := runtimepath.LauncherSocketPath()
	if err != nil {
		return err
	}
	l, err := svc.ListenLauncher(launcherPath)
	if err != nil {
		return err
	}
	defer os.Remove(launcherPath)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ready := make(chan struct{})
	var once sync.Once
	go func() {
		_ = svc.ServeLauncher(ctx, l, logger, func(msg svc.LauncherMessage) {
			if msg.Kind == svc.LauncherCloseSplash {
				once.Do(func() { close(ready) })
			}
		})
	}()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	passthrough := childArgs()

	service, err := startChild(self, append([]string{"service"}, passthrough...), logger)
	if err != nil {
		return err
	}
	daemon, err := startChild(self, append([]string{"daemon"}, passthrough...), logger)
	if err != nil {
		stopChild(service, logger)
		return err
	}

	exited := make(chan error, 2)
	go func() { exited <- waitChild("service", service) }()
	go func() { exited <- waitChild("daemon", daemon) }()

	select {
	case <-ready:
		logger.Info("panewm ready")
	case <-time.After(readyTimeout):
		logger.Warn("daemon did not report ready", "timeout", readyTimeout)
	case err := <-exited:
		cancel()
		stopChild(service, logger)
		stopChild(daemon, logger)
		return err
	case <-ctx.Done():
	}

	var result error
	select {
	case <-ctx.Done():
	case result = <-exited:
	}
	stopChild(daemon, logger)
	stopChild(service, logger)
	return result
}

// childArgs forwards the config path and log level to the children.
func childArgs() []string {
	var args []string
	if p, err := configPath(); err == nil && p != "" {
		args = append(args, "--config", p)
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		args = append(args, "--log-level", lvl)
	}
	return args
}

func startChild(path string, args []string, logger *slog.Logger) (*exec.Cmd, error) {
	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	logger.Info("started", "process", args[0], "pid", cmd.Process.Pid)
	return cmd, nil
}

func waitChild(name string, cmd *exec.Cmd) error {
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s exited: %w", name, err)
	}
	return fmt.Errorf("%s exited", name)
}

// stopChild asks a child to terminate. Children that already exited are
// ignored.
func stopChild(cmd *exec.Cmd, logger *slog.Logger) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Debug("signal child failed", "pid", cmd.Process.Pid, "err", err)
	}
}
