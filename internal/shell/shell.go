// Package shell runs an interactive command loop whose history is the
// unified store: every command is synced as soon as it finishes, and the
// session is flushed one last time on exit, EOF and SIGHUP/SIGTERM.
package shell

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/samber/lo"
	"github.com/shellsync/unihist/internal/history"
	"github.com/shellsync/unihist/internal/timefmt"
	"go.uber.org/zap"
	"golang.org/x/term"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

const defaultPrompt = "unihist$ "

// Options configures a Shell. Stdin, Stdout and Stderr default to the
// process's standard streams.
type Options struct {
	Session      *history.Session
	Logger       *zap.Logger
	TimeMode     timefmt.Mode
	Prompt       string
	HistoryLimit int
	Stdin        io.Reader
	Stdout       io.Writer
	Stderr       io.Writer
}

// Shell is one interactive session.
type Shell struct {
	runner       *interp.Runner
	session      *history.Session
	logger       *zap.Logger
	timeMode     timefmt.Mode
	prompt       string
	historyLimit int
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	hook         func()
	exit         func(code int)

	// mu serializes session access between the command loop and the signal
	// handler.
	mu        sync.Mutex
	endOnce   sync.Once
	endResult history.SyncResult
	lastExit  int
}

func New(opts Options) (*Shell, error) {
	if opts.Session == nil {
		return nil, errors.New("shell requires a history session")
	}
	sh := &Shell{
		session:      opts.Session,
		logger:       opts.Logger,
		timeMode:     opts.TimeMode,
		prompt:       opts.Prompt,
		historyLimit: opts.HistoryLimit,
		stdin:        opts.Stdin,
		stdout:       opts.Stdout,
		stderr:       opts.Stderr,
		exit:         os.Exit,
	}
	if sh.logger == nil {
		sh.logger = zap.NewNop()
	}
	if sh.prompt == "" {
		sh.prompt = defaultPrompt
	}
	if sh.stdin == nil {
		sh.stdin = os.Stdin
	}
	if sh.stdout == nil {
		sh.stdout = os.Stdout
	}
	if sh.stderr == nil {
		sh.stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Interactive(true),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(sh.stdin, sh.stdout, sh.stderr),
		interp.ExecHandlers(newHistoryCommandHandler(sh)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bash runner: %w", err)
	}
	sh.runner = runner
	sh.hook = opts.Session.Hook()

	return sh, nil
}

// Execute runs one command line, records it with its working directory and
// exit status, and runs the post-command sync.
func (s *Shell) Execute(ctx context.Context, line string) (int, error) {
	exitCode, err := runLine(ctx, s.runner, line)
	if err != nil {
		fmt.Fprintln(s.stderr, err)
	}

	s.mu.Lock()
	s.session.Record(line, s.runner.Dir, sql.NullInt32{Int32: int32(exitCode), Valid: true})
	wasDegraded := s.session.Degraded()
	s.hook()
	degraded := s.session.Degraded()
	s.mu.Unlock()

	switch {
	case degraded && !wasDegraded:
		fmt.Fprintln(s.stderr, "unihist: shared history unavailable; keeping this session's commands until it is reachable")
	case !degraded && wasDegraded:
		fmt.Fprintln(s.stderr, "unihist: shared history reachable again")
	}

	s.lastExit = exitCode
	return exitCode, err
}

// Run reads and executes lines until EOF, `exit`, or ctx is cancelled. The
// final sync runs on every return path.
func (s *Shell) Run(ctx context.Context) error {
	input := s.newInput()
	defer input.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			s.handleSignal(sig)
		case <-done:
		}
	}()

	defer s.End()

	s.refreshInput(input)
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := input.ReadLine(s.prompt)
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		_, _ = s.Execute(ctx, line)
		s.refreshInput(input)

		if s.runner.Exited() {
			return nil
		}
	}
}

// End performs the session's final sync once; later calls return the first
// result.
func (s *Shell) End() history.SyncResult {
	s.endOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.endResult = s.session.End()
		s.logger.Debug("session ended",
			zap.Int("appended", s.endResult.Appended),
			zap.Bool("degraded", s.endResult.Degraded),
		)
	})
	return s.endResult
}

// ExitCode is the status of the last executed command.
func (s *Shell) ExitCode() int {
	return s.lastExit
}

func (s *Shell) handleSignal(sig os.Signal) {
	s.logger.Info("received signal, ending session", zap.String("signal", sig.String()))
	s.End()
	code := 1
	if sysSig, ok := sig.(syscall.Signal); ok {
		code = 128 + int(sysSig)
	}
	s.exit(code)
}

func (s *Shell) sync() history.SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Sync()
}

func (s *Shell) importHistory(source string) (history.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Import(source)
}

func (s *Shell) entries() []history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Entries()
}

func (s *Shell) newInput() lineInput {
	if f, ok := s.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		input, err := newReadlineInput(s.historyLimit)
		if err == nil {
			return input
		}
		s.logger.Warn("failed to initialize line editor, using basic input", zap.Error(err))
	}
	return newBasicLineInput(s.stdin, s.stdout)
}

func (s *Shell) refreshInput(input lineInput) {
	input.SetHistory(lo.Map(s.entries(), func(e history.Entry, _ int) string {
		return e.Text
	}))
}
