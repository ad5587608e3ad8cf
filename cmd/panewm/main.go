package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/1broseidon/panewm/internal/config"
	"github.com/1broseidon/panewm/internal/ipc"
)

const envPrefix = "PANEWM"

func main() {
	root := newRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status: 0 success,
// 2 usage errors, 1 everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ipc.ErrUsage):
		return 2
	default:
		return 1
	}
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ipc.ErrUsage, fmt.Sprintf(format, args...))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "panewm",
		Short: "Tiling and per-monitor workspaces for X11 desktops",
		Long: `panewm tiles windows into layout templates and gives every monitor its own
set of workspaces.

It runs as two processes: a privileged service that moves windows and grabs
hotkeys, and an unprivileged daemon that decides where windows go. Every
other command talks to the daemon over its control socket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErr("%v", err)
	})

	cobra.OnInitialize(initViper)
	root.PersistentFlags().String("config", "", "config file (default ~/.config/panewm/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default from config)")
	root.PersistentFlags().Bool("json", false, "print JSON instead of tables")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(
		serviceCmd(),
		daemonCmd(),
		launchCmd(),
		workspaceCmd(),
		wmCmd(),
		statusCmd(),
		reloadCmd(),
		configCmd(),
		mcpCmd(),
	)
	return root
}

func initViper() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// configPath returns --config / PANEWM_CONFIG, or the default location.
func configPath() (string, error) {
	if p := viper.GetString("config"); p != "" {
		return p, nil
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the effective configuration and its file list.
func loadConfig() (*config.LoadResult, string, error) {
	path, err := configPath()
	if err != nil {
		return nil, "", err
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, err
	}
	return res, path, nil
}

// newLogger builds the process logger. --log-level wins over the config.
func newLogger(configLevel string) *slog.Logger {
	level := viper.GetString("log-level")
	if level == "" {
		level = configLevel
	}
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
