package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/1broseidon/panewm/internal/config"
	"github.com/1broseidon/panewm/internal/ipc"
	"github.com/1broseidon/panewm/internal/runtimepath"
)

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErr("%s takes no arguments, got %q", cmd.CommandPath(), args)
	}
	return nil
}

func controlClient() (*ipc.Client, error) {
	path, err := runtimepath.SocketPath()
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(path), nil
}

// forward sends a CLI-style command to the daemon and prints the reply.
func forward(ctx context.Context, args []string) error {
	req, err := ipc.CommandFromArgs(args)
	if err != nil {
		return err
	}
	client, err := controlClient()
	if err != nil {
		return err
	}
	data, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	return newPrinter(os.Stdout).reply(req.Command, data)
}

func workspaceCmd() *cobra.Command {
	var monitor string
	cmd := &cobra.Command{
		Use:   "workspace <next|prev|switch|move|send|create|destroy|rename|list> [args]",
		Short: "Switch and manage per-monitor workspaces",
		Long: `Switch and manage the workspaces of a monitor.

  workspace next | prev          cycle the current workspace
  workspace switch <index>       make workspace <index> current
  workspace move <index>         move the focused window there and follow it
  workspace send <index>         send the focused window there and stay
  workspace create | destroy     add a workspace, or remove the current one
  workspace rename <name>        rename the current workspace
  workspace list                 list monitors and their workspaces

Without --monitor the monitor of the focused window is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			full := append([]string{"workspace"}, args...)
			if monitor != "" {
				full = append(full, monitor)
			}
			return forward(cmd.Context(), full)
		},
	}
	cmd.Flags().StringVarP(&monitor, "monitor", "m", "", "monitor id (default: monitor of the focused window)")
	return cmd
}

func wmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wm <grow|shrink|reset-sizes|force-retile|cycle-stack> [args]",
		Short: "Adjust the tiling of the focused window's workspace",
		Long: `Adjust the tiling of the current workspace.

  wm grow <width|height>     give the focused window more room
  wm shrink <width|height>   give the focused window less room
  wm reset-sizes             restore the layout's original proportions
  wm force-retile            re-apply the layout to every window
  wm cycle-stack [delta]     rotate windows through the stack area`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forward(cmd.Context(), append([]string{"wm"}, args...))
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return forward(cmd.Context(), []string{"status"})
		},
	}
}

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the configuration in the running daemon",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return forward(cmd.Context(), []string{"reload"})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(configCheckCmd(), configPathCmd())
	return cmd
}

type configCheckResult struct {
	OK    bool              `json:"ok"`
	Path  string            `json:"path"`
	Files []string          `json:"files,omitempty"`
	Keys  map[string]string `json:"sources,omitempty"`
	Error string            `json:"error,omitempty"`
}

func configCheckCmd() *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration without starting anything",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, path, err := loadConfig()
			out := configCheckResult{OK: err == nil, Path: path}
			if err != nil {
				out.Error = err.Error()
			} else {
				out.Files = res.Files
				if showSources {
					out.Keys = describeSources(res.Sources)
				}
			}
			if perr := newPrinter(os.Stdout).configCheck(out); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "show which file set each key")
	return cmd
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path in use",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func describeSources(sources map[string]config.Source) map[string]string {
	out := make(map[string]string, len(sources))
	for key, src := range sources {
		if src.Kind == config.SourceFile {
			out[key] = fmt.Sprintf("%s:%d", src.File, src.Line)
			continue
		}
		out[key] = string(src.Kind)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decodeReply[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to parse reply: %w", err)
	}
	return v, nil
}
