package ipc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUsage marks malformed command arguments.
var ErrUsage = errors.New("usage")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// CommandFromArgs converts CLI-style arguments, as used by hotkey bindings,
// into a request. For example ["workspace", "switch", "2"] or
// ["wm", "grow", "width"]. An optional trailing monitor id is accepted by
// workspace commands.
func CommandFromArgs(args []string) (Request, error) {
	if len(args) == 0 {
		return Request{}, usagef("empty command")
	}
	switch args[0] {
	case "status":
		return NewRequest(CommandStatus, nil)
	case "reload":
		return NewRequest(CommandReload, nil)
	case "workspace":
		return workspaceFromArgs(args[1:])
	case "wm":
		return wmFromArgs(args[1:])
	}
	return Request{}, usagef("unknown command %q", strings.Join(args, " "))
}

func workspaceFromArgs(args []string) (Request, error) {
	if len(args) == 0 {
		return Request{}, usagef("workspace needs a subcommand")
	}
	sub, rest := args[0], args[1:]
	monitorAt := func(i int) string {
		if len(rest) > i {
			return rest[i]
		}
		return ""
	}
	switch sub {
	case "next", "switch-next":
		return NewRequest(CommandSwitchNext, TargetPayload{Monitor: monitorAt(0)})
	case "prev", "switch-prev":
		return NewRequest(CommandSwitchPrev, TargetPayload{Monitor: monitorAt(0)})
	case "create":
		return NewRequest(CommandCreate, TargetPayload{Monitor: monitorAt(0)})
	case "destroy":
		return NewRequest(CommandDestroy, TargetPayload{Monitor: monitorAt(0)})
	case "list":
		return NewRequest(CommandListWorkspace, nil)
	case "rename":
		if len(rest) == 0 || strings.TrimSpace(rest[0]) == "" {
			return Request{}, usagef("workspace rename needs a name")
		}
		return NewRequest(CommandRename, RenamePayload{Name: rest[0], Monitor: monitorAt(1)})
	case "switch", "move", "send":
		if len(rest) == 0 {
			return Request{}, usagef("workspace %s needs an index", sub)
		}
		index, err := strconv.Atoi(rest[0])
		if err != nil || index < 0 {
			return Request{}, usagef("invalid workspace index %q", rest[0])
		}
		cmd := map[string]CommandType{"switch": CommandSwitch, "move": CommandMove, "send": CommandSend}[sub]
		return NewRequest(cmd, IndexPayload{Monitor: monitorAt(1), Index: index})
	}
	return Request{}, usagef("unknown workspace subcommand %q", sub)
}

func wmFromArgs(args []string) (Request, error) {
	if len(args) == 0 {
		return Request{}, usagef("wm needs a subcommand")
	}
	switch args[0] {
	case "grow", "shrink":
		if len(args) < 2 || (args[1] != "width" && args[1] != "height") {
			return Request{}, usagef("wm %s needs width or height", args[0])
		}
		cmd := CommandGrow
		if args[0] == "shrink" {
			cmd = CommandShrink
		}
		return NewRequest(cmd, ResizePayload{Dimension: args[1]})
	case "reset-sizes":
		return NewRequest(CommandResetSizes, nil)
	case "force-retile":
		return NewRequest(CommandForceRetile, nil)
	case "cycle-stack":
		delta := 1
		if len(args) > 1 {
			d, err := strconv.Atoi(args[1])
			if err != nil {
				return Request{}, usagef("invalid delta %q", args[1])
			}
			delta = d
		}
		return NewRequest(CommandCycleStack, CyclePayload{Delta: delta})
	}
	return Request{}, usagef("unknown wm subcommand %q", args[0])
}
