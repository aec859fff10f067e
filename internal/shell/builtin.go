package shell

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/shellsync/unihist/internal/history"
	"github.com/shellsync/unihist/internal/timefmt"
	"mvdan.cc/sh/v3/interp"
)

// newHistoryCommandHandler provides a `history [n]` builtin that lists the
// session's view of the unified history, `history -s` which forces a sync
// and `history -i FILE` which merges FILE into the store and reloads.
func newHistoryCommandHandler(sh *Shell) ExecMiddleware {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 || args[0] != "history" {
				return next(ctx, args)
			}
			hc := interp.HandlerCtx(ctx)

			if len(args) > 1 && args[1] == "-s" {
				result := sh.sync()
				if result.Degraded {
					fmt.Fprintln(hc.Stderr, "history: shared store unavailable, keeping local history")
					return interp.ExitStatus(1)
				}
				return nil
			}

			if len(args) > 1 && args[1] == "-i" {
				if len(args) != 3 {
					fmt.Fprintln(hc.Stderr, "history: usage: history -i FILE")
					return interp.ExitStatus(2)
				}
				source := args[2]
				if !filepath.IsAbs(source) {
					source = filepath.Join(hc.Dir, source)
				}
				result, err := sh.importHistory(source)
				if err != nil {
					fmt.Fprintf(hc.Stderr, "history: %v\n", err)
					if errors.Is(err, history.ErrUsage) {
						return interp.ExitStatus(2)
					}
					return interp.ExitStatus(1)
				}
				if result.Adopted {
					fmt.Fprintf(hc.Stdout, "history: adopted %s (%d lines)\n", source, result.Lines)
				} else {
					fmt.Fprintf(hc.Stdout, "history: imported %s (%d lines, %d duplicates removed)\n", source, result.Lines, result.Removed)
				}
				return nil
			}

			all := sh.entries()
			entries := all
			if len(args) > 1 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 0 {
					fmt.Fprintf(hc.Stderr, "history: %s: numeric argument required\n", args[1])
					return interp.ExitStatus(2)
				}
				if n < len(entries) {
					entries = entries[len(entries)-n:]
				}
			}

			offset := len(all) - len(entries)
			for i, entry := range entries {
				fmt.Fprintf(hc.Stdout, "%5d  %s  %s\n", offset+i+1, formatEntryTime(entry, sh.timeMode), entry.Text)
			}
			return nil
		}
	}
}

func formatEntryTime(entry history.Entry, mode timefmt.Mode) string {
	return timefmt.FormatTime(entry.At, mode)
}
