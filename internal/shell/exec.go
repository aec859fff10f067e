package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ExecMiddleware wraps an ExecHandlerFunc to intercept external commands,
// e.g. to provide builtins the interpreter does not know about.
type ExecMiddleware = func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc

// runLine parses and runs one interactive line in the runner (not a
// subshell), so cd, exports and functions persist between lines.
// A non-zero exit status is returned as the exit code, not as an error.
func runLine(ctx context.Context, runner *interp.Runner, line string) (int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return 2, fmt.Errorf("failed to parse command: %w", err)
	}

	err = runner.Run(ctx, prog)
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return int(exitStatus), nil
		}
		return 1, err
	}
	return 0, nil
}
