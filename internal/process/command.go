package process

import (
	"strconv"
	"strings"
)

// Command is an ordered argv. The first element is the binary path.
type Command struct {
	argv []string
}

// NewCommand builds a command from a binary and its arguments.
func NewCommand(binary string, args ...string) Command {
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, binary)
	argv = append(argv, args...)
	return Command{argv: argv}
}

// FromArgv builds a command from a full argv slice. The slice is copied.
func FromArgv(argv []string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	return Command{argv: append([]string(nil), argv...)}
}

// Empty reports whether the command has no binary.
func (c Command) Empty() bool {
	return len(c.argv) == 0 || strings.TrimSpace(c.argv[0]) == ""
}

// Binary returns argv[0].
func (c Command) Binary() string {
	if len(c.argv) == 0 {
		return ""
	}
	return c.argv[0]
}

// Args returns a copy of the arguments after the binary.
func (c Command) Args() []string {
	if len(c.argv) < 2 {
		return nil
	}
	return append([]string(nil), c.argv[1:]...)
}

// Argv returns a copy of the full argv.
func (c Command) Argv() []string {
	return append([]string(nil), c.argv...)
}

// String renders the command for logs, quoting arguments that contain spaces.
func (c Command) String() string {
	parts := make([]string, len(c.argv))
	for i, arg := range c.argv {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			parts[i] = strconv.Quote(arg)
			continue
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}
