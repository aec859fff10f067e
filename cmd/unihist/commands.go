package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/atotto/clipboard"
	"github.com/shellsync/unihist/internal/config"
	"github.com/shellsync/unihist/internal/history"
	"github.com/shellsync/unihist/internal/render"
	"github.com/shellsync/unihist/internal/shell"
	"github.com/shellsync/unihist/internal/timefmt"
	"go.uber.org/zap"
)

// app carries everything a command needs. Streams and the clipboard are
// fields so tests can substitute them.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *history.Store
	journal *history.Journal

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	termWidth       func() int
	copyToClipboard func(string) error
}

func newApp(cfg *config.Config, logger *zap.Logger, stdin io.Reader, stdout, stderr io.Writer) *app {
	a := &app{
		cfg:    cfg,
		logger: logger,
		store: history.NewStore(history.StoreOptions{
			Path:      cfg.StorePath,
			BackupDir: cfg.ResolvedBackupDir(),
			Logger:    logger,
		}),
		stdin:           stdin,
		stdout:          stdout,
		stderr:          stderr,
		copyToClipboard: clipboard.WriteAll,
	}

	if cfg.JournalPath != "" {
		journal, err := history.OpenJournal(cfg.JournalPath)
		if err != nil {
			logger.Warn("failed to open local journal, continuing without it",
				zap.String("path", cfg.JournalPath), zap.Error(err))
		} else {
			a.journal = journal
		}
	}

	return a
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("failed to close journal", zap.Error(err))
		}
	}
}

// run executes one command line and returns the process exit code:
// 0 on success, 1 when the operation failed and 2 for usage errors.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.stderr, helpText)
		return 2
	}

	code, err := a.dispatch(ctx, args[0], args[1:])
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(a.stdout, helpText)
		return 0
	}
	if err != nil {
		a.logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		a.renderer(a.stderr, a.cfg.TimeMode()).RenderError(err.Error())
		if errors.Is(err, history.ErrUsage) {
			fmt.Fprintln(a.stderr, "Run 'unihist help' for usage")
		}
		return exitCode(err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, history.ErrUsage):
		return 2
	default:
		return 1
	}
}

func (a *app) dispatch(ctx context.Context, command string, args []string) (int, error) {
	switch command {
	case "sync":
		return a.runSync(args)
	case "search":
		return 0, a.runSearch(args)
	case "context":
		return 0, a.runContext(args)
	case "recent":
		return 0, a.runRecent(args)
	case "dedup":
		return 0, a.runDedup(args)
	case "stats":
		return 0, a.runStats(args)
	case "backup":
		return 0, a.runBackup(args)
	case "import":
		return 0, a.runImport(args)
	case "shell":
		return a.runShell(ctx, args)
	case "info":
		return 0, a.runInfo(args)
	case "help", "-h", "--help":
		return 0, flag.ErrHelp
	default:
		return 0, fmt.Errorf("%w: unknown command %q", history.ErrUsage, command)
	}
}

func (a *app) runSync(args []string) (int, error) {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	if _, err := parseArgs(fs, args, 0); err != nil {
		return 0, err
	}

	result := a.newSession().Sync()
	a.renderer(a.stdout, a.cfg.TimeMode()).RenderSync(result)
	if result.Degraded {
		a.logger.Warn("sync degraded", zap.Error(result.Cause))
		return 1, nil
	}
	return 0, nil
}

func (a *app) runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	showAll := fs.Bool("all", false, "show every match")
	fuzzyMatch := fs.Bool("fuzzy", false, "fuzzy match")
	copyLast := fs.Bool("copy", false, "copy the most recent match to the clipboard")
	engineName := fs.String("engine", "stream", "search implementation")
	format := fs.String("format", a.cfg.TimeFormat, "timestamp format")

	positional, err := parseArgs(fs, args, 2)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return fmt.Errorf("%w: search requires a pattern", history.ErrUsage)
	}
	mode, err := parseTimeMode(*format)
	if err != nil {
		return err
	}
	engine, ok := history.Engines()[*engineName]
	if !ok {
		return fmt.Errorf("%w: unknown search engine %q", history.ErrUsage, *engineName)
	}

	query := history.Query{
		Pattern:    positional[0],
		MaxResults: a.cfg.MaxResults,
		ShowAll:    *showAll,
		Fuzzy:      *fuzzyMatch,
	}
	if len(positional) > 1 {
		if query.MaxResults, err = parseCount("max_results", positional[1], 1); err != nil {
			return err
		}
	}

	out := a.renderer(a.stdout, mode)
	var result *history.SearchResult
	err = a.withHistory(out, func(r io.Reader) error {
		var err error
		result, err = engine.Search(r, query)
		return err
	})
	if err != nil {
		return err
	}
	out.RenderSearch(query.Pattern, result)

	if *copyLast && len(result.Matches) > 0 {
		text := result.Matches[len(result.Matches)-1].Record.Text
		if err := a.copyToClipboard(text); err != nil {
			a.logger.Warn("failed to copy to clipboard", zap.Error(err))
			out.RenderWarning("Could not copy to clipboard: " + err.Error())
		} else {
			out.RenderNote("Copied to clipboard: " + text)
		}
	}
	return nil
}

func (a *app) runContext(args []string) error {
	fs := flag.NewFlagSet("context", flag.ContinueOnError)
	format := fs.String("format", a.cfg.TimeFormat, "timestamp format")

	positional, err := parseArgs(fs, args, 2)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return fmt.Errorf("%w: context requires a pattern", history.ErrUsage)
	}
	mode, err := parseTimeMode(*format)
	if err != nil {
		return err
	}
	lines := a.cfg.ContextLines
	if len(positional) > 1 {
		if lines, err = parseCount("context_lines", positional[1], 0); err != nil {
			return err
		}
	}

	out := a.renderer(a.stdout, mode)
	var blocks []history.ContextBlock
	err = a.withHistory(out, func(r io.Reader) error {
		var err error
		blocks, err = history.SearchContext(r, positional[0], lines)
		return err
	})
	if err != nil {
		return err
	}
	out.RenderContext(positional[0], blocks)
	return nil
}

func (a *app) runRecent(args []string) error {
	fs := flag.NewFlagSet("recent", flag.ContinueOnError)
	format := fs.String("format", a.cfg.TimeFormat, "timestamp format")

	positional, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	mode, err := parseTimeMode(*format)
	if err != nil {
		return err
	}
	count := a.cfg.RecentCount
	if len(positional) > 0 {
		if count, err = parseCount("count", positional[0], 1); err != nil {
			return err
		}
	}

	out := a.renderer(a.stdout, mode)
	var records []history.Record
	err = a.withHistory(out, func(r io.Reader) error {
		var err error
		records, err = history.Recent(r, count)
		return err
	})
	if err != nil {
		return err
	}
	out.RenderRecent(records)
	return nil
}

func (a *app) runDedup(args []string) error {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	result, err := a.store.Deduplicate()
	if err != nil {
		return err
	}
	a.renderer(a.stdout, a.cfg.TimeMode()).RenderDedup(result)
	return nil
}

func (a *app) runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	out := a.renderer(a.stdout, a.cfg.TimeMode())
	var stats *history.Stats
	err := a.withHistory(out, func(r io.Reader) error {
		var err error
		stats, err = history.Statistics(r)
		return err
	})
	if err != nil {
		return err
	}
	out.RenderStats(stats)
	return nil
}

func (a *app) runBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	result, err := a.store.Backup()
	if err != nil {
		return err
	}
	a.renderer(a.stdout, a.cfg.TimeMode()).RenderBackup(result)
	return nil
}

func (a *app) runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	positional, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return fmt.Errorf("%w: import requires a source file", history.ErrUsage)
	}

	result, err := a.store.Import(positional[0])
	if err != nil {
		return err
	}
	a.renderer(a.stdout, a.cfg.TimeMode()).RenderImport(result)
	return nil
}

func (a *app) runShell(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	prompt := fs.String("prompt", "", "prompt string")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return 0, err
	}

	session := a.newSession()
	if err := session.Reload(); err != nil {
		a.logger.Warn("failed to load history for new session", zap.Error(err))
	}

	sh, err := shell.New(shell.Options{
		Session:      session,
		Logger:       a.logger,
		TimeMode:     a.cfg.TimeMode(),
		Prompt:       *prompt,
		HistoryLimit: a.cfg.RetentionSize,
		Stdin:        a.stdin,
		Stdout:       a.stdout,
		Stderr:       a.stderr,
	})
	if err != nil {
		return 0, err
	}

	if err := sh.Run(ctx); err != nil {
		return 0, err
	}
	if result := sh.End(); result.Degraded {
		a.renderer(a.stderr, a.cfg.TimeMode()).RenderWarning("History store unavailable; commands from this session were not synced")
	}
	return sh.ExitCode(), nil
}

func (a *app) runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	info, err := a.store.Info()
	if err != nil {
		return err
	}
	var journalCount int64
	if a.journal != nil {
		if journalCount, err = a.journal.Count(); err != nil {
			a.logger.Warn("failed to count journal entries", zap.Error(err))
		}
	}
	a.renderer(a.stdout, a.cfg.TimeMode()).RenderInfo(info, journalCount)
	return nil
}

func (a *app) newSession() *history.Session {
	return history.NewSession(history.SessionOptions{
		Store:         a.store,
		Journal:       a.journal,
		Logger:        a.logger,
		RetentionSize: a.cfg.RetentionSize,
	})
}

// withHistory runs fn over the shared store, or over the local journal when
// the store does not exist yet.
func (a *app) withHistory(out *render.Renderer, fn func(io.Reader) error) error {
	r, origin, err := history.OpenHistory(a.store, a.journal, a.cfg.RetentionSize)
	if err != nil {
		return err
	}
	defer r.Close()

	if origin != history.OriginStore {
		a.logger.Info("shared history store missing", zap.String("path", a.store.Path()), zap.String("origin", string(origin)))
		out.RenderOrigin(origin)
	}
	return fn(r)
}

func (a *app) renderer(w io.Writer, mode timefmt.Mode) *render.Renderer {
	return render.New(w, render.Options{
		Color:     a.cfg.Color,
		TimeMode:  mode,
		TermWidth: a.termWidth,
	})
}

// parseArgs parses fs allowing flags after positional arguments, which the
// flag package does not do on its own. Everything after "--" is positional.
func parseArgs(fs *flag.FlagSet, args []string, maxPositional int) ([]string, error) {
	fs.SetOutput(io.Discard)

	var rest []string
	if i := slices.Index(args, "--"); i >= 0 {
		args, rest = args[:i], args[i+1:]
	}

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %w", history.ErrUsage, fs.Name(), err)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	positional = append(positional, rest...)

	if len(positional) > maxPositional {
		return nil, fmt.Errorf("%w: %s: too many arguments", history.ErrUsage, fs.Name())
	}
	return positional, nil
}

func parseCount(name, value string, minimum int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("%w: %s must be an integer >= %d, got %q", history.ErrUsage, name, minimum, value)
	}
	return n, nil
}

func parseTimeMode(name string) (timefmt.Mode, error) {
	mode, err := timefmt.ParseMode(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", history.ErrUsage, err)
	}
	return mode, nil
}
