package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1broseidon/panewm/internal/positioner"
	"github.com/1broseidon/panewm/internal/svc"
	"github.com/1broseidon/panewm/internal/tiling"
	"gopkg.in/yaml.v3"
)

// IncludeList accepts a single path or a list of paths.
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = IncludeList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("include must be a string or a list of strings")
}

// Layouts selects and defines tiling layouts.
type Layouts struct {
	// Monitors maps a monitor id (output name) to a layout id.
	Monitors map[string]string `yaml:"monitors,omitempty"`
	// Definitions adds or replaces layouts by id.
	Definitions map[string]*tiling.LayoutDefinition `yaml:"definitions,omitempty"`
}

// Tiling holds geometry settings shared by every layout.
type Tiling struct {
	GapSize       int            `yaml:"gap_size"`
	ScreenPadding tiling.Padding `yaml:"screen_padding"`
	ResizeStep    float64        `yaml:"resize_step"`
	MinProportion float64        `yaml:"min_proportion"`
}

// Workspaces configures the workspace manager.
type Workspaces struct {
	Names       []string      `yaml:"names,omitempty"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Animation configures how tiling batches are applied.
type Animation struct {
	Enabled  bool          `yaml:"enabled"`
	Duration time.Duration `yaml:"duration"`
	Easing   string        `yaml:"easing"`
}

// Service configures the daemon's connection to the privileged service.
type Service struct {
	Attempts   int           `yaml:"attempts"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Daemon configures daemon housekeeping.
type Daemon struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	// WatchConfig reloads the configuration when the file changes.
	WatchConfig bool `yaml:"watch_config"`
}

// Config is the effective panewm configuration.
type Config struct {
	Include       IncludeList         `yaml:"include,omitempty"`
	LogLevel      string              `yaml:"log_level"`
	DefaultLayout string              `yaml:"default_layout"`
	Layouts       Layouts             `yaml:"layouts"`
	Tiling        Tiling              `yaml:"tiling"`
	Workspaces    Workspaces          `yaml:"workspaces"`
	Animation     Animation           `yaml:"animation"`
	Hotkeys       []svc.HotkeyBinding `yaml:"hotkeys"`
	Service       Service             `yaml:"service"`
	Daemon        Daemon              `yaml:"daemon"`
}

const DefaultLayout = "tall"

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		DefaultLayout: DefaultLayout,
		Tiling: Tiling{
			GapSize:       8,
			ResizeStep:    tiling.DefaultResizeStep,
			MinProportion: tiling.DefaultMinProportion,
		},
		Workspaces: Workspaces{
			SettleDelay: 200 * time.Millisecond,
		},
		Animation: Animation{
			Enabled:  true,
			Duration: 150 * time.Millisecond,
			Easing:   "ease-out-cubic",
		},
		Hotkeys: defaultHotkeys(),
		Service: Service{
			Attempts:   svc.DefaultAttempts,
			RetryDelay: svc.DefaultRetryDelay,
			Timeout:    svc.DefaultTimeout,
		},
		Daemon: Daemon{
			ReconcileInterval: 10 * time.Second,
			WatchConfig:       true,
		},
	}
}

func defaultHotkeys() []svc.HotkeyBinding {
	bindings := []svc.HotkeyBinding{
		{Keys: "Mod4-Right", Command: []string{"workspace", "next"}},
		{Keys: "Mod4-Left", Command: []string{"workspace", "prev"}},
		{Keys: "Mod4-Shift-l", Command: []string{"wm", "grow", "width"}},
		{Keys: "Mod4-Shift-h", Command: []string{"wm", "shrink", "width"}},
		{Keys: "Mod4-Shift-k", Command: []string{"wm", "grow", "height"}},
		{Keys: "Mod4-Shift-j", Command: []string{"wm", "shrink", "height"}},
		{Keys: "Mod4-Shift-r", Command: []string{"wm", "reset-sizes"}},
	}
	for i := 1; i <= 4; i++ {
		n := fmt.Sprint(i - 1)
		bindings = append(bindings,
			svc.HotkeyBinding{Keys: fmt.Sprintf("Mod4-%d", i), Command: []string{"workspace", "switch", n}},
			svc.HotkeyBinding{Keys: fmt.Sprintf("Mod4-Shift-%d", i), Command: []string{"workspace", "move", n}},
		)
	}
	return bindings
}

// LayoutDefinitions returns the builtin layouts overlaid with the
// configured ones.
func (c *Config) LayoutDefinitions() map[string]*tiling.LayoutDefinition {
	defs := tiling.BuiltinLayouts()
	for id, def := range c.Layouts.Definitions {
		defs[id] = def
	}
	return defs
}

// LayoutNames lists every available layout id, sorted.
func (c *Config) LayoutNames() []string {
	defs := c.LayoutDefinitions()
	names := make([]string, 0, len(defs))
	for id := range defs {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// TilingSettings converts the config for the tiling engine.
func (c *Config) TilingSettings() tiling.Settings {
	return tiling.Settings{
		Layouts:        c.LayoutDefinitions(),
		DefaultLayout:  c.DefaultLayout,
		MonitorLayouts: c.Layouts.Monitors,
		GapSize:        c.Tiling.GapSize,
		Padding:        c.Tiling.ScreenPadding,
		ResizeStep:     c.Tiling.ResizeStep,
		MinProportion:  c.Tiling.MinProportion,
	}
}

// ClientOptions converts the service section for svc.NewClient.
func (c *Config) ClientOptions() svc.ClientOptions {
	return svc.ClientOptions{
		Attempts:   c.Service.Attempts,
		RetryDelay: c.Service.RetryDelay,
		Timeout:    c.Service.Timeout,
	}
}

// Validate checks the effective configuration. Layout ids referenced from
// layouts.monitors are not required to exist; unknown ids make that
// monitor float-only.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	if c.Tiling.GapSize < 0 {
		return &ValidationError{Path: "tiling.gap_size", Err: fmt.Errorf("gap_size must be >= 0")}
	}
	p := c.Tiling.ScreenPadding
	if p.Top < 0 || p.Bottom < 0 || p.Left < 0 || p.Right < 0 {
		return &ValidationError{Path: "tiling.screen_padding", Err: fmt.Errorf("screen_padding values must be >= 0")}
	}
	if c.Tiling.ResizeStep <= 0 || c.Tiling.ResizeStep >= 1 {
		return &ValidationError{Path: "tiling.resize_step", Err: fmt.Errorf("resize_step must be between 0 and 1")}
	}
	if c.Tiling.MinProportion <= 0 || c.Tiling.MinProportion >= 0.5 {
		return &ValidationError{Path: "tiling.min_proportion", Err: fmt.Errorf("min_proportion must be between 0 and 0.5")}
	}
	if c.Workspaces.SettleDelay < 0 {
		return &ValidationError{Path: "workspaces.settle_delay", Err: fmt.Errorf("settle_delay must be >= 0")}
	}
	if c.Animation.Duration < 0 {
		return &ValidationError{Path: "animation.duration", Err: fmt.Errorf("duration must be >= 0")}
	}
	if _, ok := positioner.Easing(c.Animation.Easing); !ok {
		return &ValidationError{Path: "animation.easing", Err: fmt.Errorf("unknown easing %q (available: %s)", c.Animation.Easing, strings.Join(positioner.EasingNames(), ", "))}
	}
	if c.Service.Attempts < 1 {
		return &ValidationError{Path: "service.attempts", Err: fmt.Errorf("attempts must be >= 1")}
	}
	if c.Service.Timeout <= 0 {
		return &ValidationError{Path: "service.timeout", Err: fmt.Errorf("timeout must be > 0")}
	}
	if c.Daemon.ReconcileInterval <= 0 {
		return &ValidationError{Path: "daemon.reconcile_interval", Err: fmt.Errorf("reconcile_interval must be > 0")}
	}

	for id, def := range c.Layouts.Definitions {
		if def == nil {
			return &ValidationError{Path: "layouts.definitions." + id, Err: fmt.Errorf("layout is empty")}
		}
		def.ID = id
		if err := def.Validate(); err != nil {
			return &ValidationError{Path: "layouts.definitions." + id, Err: err}
		}
	}
	if c.DefaultLayout != "" {
		if _, ok := c.LayoutDefinitions()[c.DefaultLayout]; !ok {
			return &ValidationError{Path: "default_layout", Err: fmt.Errorf("default_layout %q not found (available: %s)", c.DefaultLayout, strings.Join(c.LayoutNames(), ", "))}
		}
	}

	seen := make(map[string]bool)
	for i, b := range c.Hotkeys {
		path := fmt.Sprintf("hotkeys[%d]", i)
		if strings.TrimSpace(b.Keys) == "" {
			return &ValidationError{Path: path, Err: fmt.Errorf("keys is required")}
		}
		if len(b.Command) == 0 {
			return &ValidationError{Path: path, Err: fmt.Errorf("command is required for %q", b.Keys)}
		}
		if seen[b.Keys] {
			return &ValidationError{Path: path, Err: fmt.Errorf("duplicate binding for %q", b.Keys)}
		}
		seen[b.Keys] = true
	}
	return nil
}
