package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1broseidon/panewm/internal/daemon"
	"github.com/1broseidon/panewm/internal/runtimepath"
	"github.com/1broseidon/panewm/internal/svc"
)

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the workspace and tiling daemon",
		Long: `Run the unprivileged daemon. It tracks windows, owns the per-monitor
workspaces and tiling trees, and applies every change through the privileged
service. SIGHUP reloads the configuration.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context())
		},
	}
}

func runDaemon(ctx context.Context) error {
	res, path, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := res.Config
	logger := newLogger(cfg.LogLevel)

	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	servicePath, err := runtimepath.ServiceSocketPath()
	if err != nil {
		return err
	}
	controlPath, err := runtimepath.SocketPath()
	if err != nil {
		return err
	}
	launcherPath, err := runtimepath.LauncherSocketPath()
	if err != nil {
		return err
	}

	opts := cfg.ClientOptions()
	opts.Logger = logger
	client := svc.NewClient(servicePath, svc.BuildToken(), opts)

	d, err := daemon.New(daemon.Options{
		Backend:        session.Backend,
		Events:         session.Events,
		Service:        client,
		Config:         cfg,
		ConfigPath:     path,
		ConfigFiles:    res.Files,
		ControlSocket:  controlPath,
		LauncherSocket: launcherPath,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("received SIGHUP, reloading config")
				if err := d.Reload(ctx); err != nil {
					logger.Error("config reload failed", "err", err)
				}
			}
		}
	}()

	if err := d.Init(ctx); err != nil {
		return err
	}

	// The window-system event loop feeds the event source; it runs until
	// the daemon shuts down.
	go session.Loop()
	defer session.Stop()

	return d.Run(ctx)
}
