package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1broseidon/panewm/internal/hotkeys"
	"github.com/1broseidon/panewm/internal/ipc"
	"github.com/1broseidon/panewm/internal/positioner"
	"github.com/1broseidon/panewm/internal/runtimepath"
	"github.com/1broseidon/panewm/internal/service"
	"github.com/1broseidon/panewm/internal/svc"
)

func serviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "service",
		Short: "Run the privileged service that moves windows and grabs hotkeys",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd.Context())
		},
	}
}

func runService(ctx context.Context) error {
	res, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(res.Config.LogLevel)

	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	socketPath, err := runtimepath.ServiceSocketPath()
	if err != nil {
		return err
	}
	controlPath, err := runtimepath.SocketPath()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	control := ipc.NewClient(controlPath)
	runBinding := func(ctx context.Context, args []string) error {
		req, err := ipc.CommandFromArgs(args)
		if err != nil {
			return err
		}
		_, err = control.Do(ctx, req)
		return err
	}

	animator := positioner.NewAnimator(session.Backend, positioner.DefaultTick, logger)
	hk := hotkeys.NewHandler(session.Grabber, runBinding, logger)
	handler := service.New(session.Backend, animator, hk, cancel, logger)

	server := svc.NewServer(socketPath, svc.BuildToken(), handler, logger)
	if err := server.Listen(); err != nil {
		return fmt.Errorf("service socket: %w", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(ctx)
	}()
	go func() {
		<-ctx.Done()
		animator.Stop()
		session.Stop()
	}()

	logger.Info("service running", "socket", socketPath)
	session.Loop()
	cancel()
	if err := <-errc; err != nil {
		return err
	}
	logger.Info("service stopped")
	return nil
}
