package device

import (
	"fmt"
	"strings"
)

// CommandKind selects the variant carried by a Command.
type CommandKind int

// Command variants.
const (
	CommandSwitch CommandKind = iota + 1
	CommandSetLevel
)

// Command is a user intent addressed to a controllable device.
// Exactly one of On or Level is meaningful, selected by Kind.
type Command struct {
	Kind  CommandKind
	On    bool
	Level int
}

// Switch returns an on/off command.
func Switch(on bool) Command {
	return Command{Kind: CommandSwitch, On: on}
}

// SetLevel returns an exact-level command on the 0..99 scale.
func SetLevel(level int) Command {
	return Command{Kind: CommandSetLevel, Level: level}
}

// ParseCommand maps the command names used by the API ("on", "off",
// "exact") to a Command. "exact" requires a level.
func ParseCommand(name string, level *int) (Command, error) {
	switch strings.ToLower(name) {
	case "on":
		return Switch(true), nil
	case "off":
		return Switch(false), nil
	case "exact":
		if level == nil {
			return Command{}, fmt.Errorf("%w: exact requires a level", ErrInvalidCommand)
		}
		if *level < 0 || *level > MaxLevel {
			return Command{}, fmt.Errorf("%w: level %d outside 0..%d", ErrInvalidCommand, *level, MaxLevel)
		}
		return SetLevel(*level), nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandSwitch:
		if c.On {
			return "on"
		}
		return "off"
	case CommandSetLevel:
		return fmt.Sprintf("exact(%d)", c.Level)
	default:
		return "unknown"
	}
}
