package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1broseidon/panewm/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server for workspace control",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve workspace tools over stdio",
		Long: `Run an MCP server on stdin/stdout. Every tool forwards to the running
daemon's control socket, so the daemon must already be running.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, _, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to stderr.
			logger := newLogger(res.Config.LogLevel).With("component", "mcp")
			client, err := controlClient()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return mcp.NewServer(client, logger).Run(ctx)
		},
	})
	return cmd
}
