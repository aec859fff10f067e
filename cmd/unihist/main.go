package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shellsync/unihist/internal/config"
	"github.com/shellsync/unihist/internal/core"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var BUILD_VERSION = "dev"

var configPath = flag.String("config", "", "path to the config file (default ~/.unihist/config.yaml)")
var helpFlag = flag.Bool("h", false, "display help information")
var versionFlag = flag.Bool("ver", false, "display build version")

const helpText = `unihist - unified shell history shared across machines

USAGE:
  unihist [options] <command> [arguments]

COMMANDS:
  sync                         Reload history from the shared store
  search <pattern> [max]       Search history (case-insensitive regex)
      --all                    Show every match
      --fuzzy                  Fuzzy match instead of regex
      --copy                   Copy the most recent match to the clipboard
      --engine stream|buffered Search implementation
      --format MODE            Timestamp format: compact, full, epoch, relative
  context <pattern> [lines]    Show matches with surrounding commands
  recent [count]               Show the most recent commands
  dedup                        Remove duplicate entries from the store
  stats                        Show command statistics
  backup                       Write a timestamped copy of the store
  import <file>                Merge another history file into the store
  shell                        Start an interactive shell with live sync
  info                         Show store and journal details
  help                         Show this help

ENVIRONMENT:
  UNIHIST_FILE          Shared history file (default ~/.unified_history)
  UNIHIST_BACKUP_DIR    Backup directory (default: next to the history file)
  UNIHIST_JOURNAL       Local journal database
  UNIHIST_SIZE          Records kept in a session after sync
  UNIHIST_TIME_FORMAT   Default timestamp format
  UNIHIST_LOG_LEVEL     Log level for ~/.unihist/unihist.log
  NO_COLOR              Disable colored output

OPTIONS:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, helpText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if *helpFlag {
		fmt.Print(helpText)
		flag.PrintDefaults()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unihist: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unihist: failed to open log file: %v\n", err)
		logger = zap.NewNop()
	}

	logger.Info("-------- unihist --------", zap.Any("args", os.Args), zap.String("version", BUILD_VERSION))

	a := newApp(cfg, logger, os.Stdin, os.Stdout, os.Stderr)
	a.termWidth = terminalWidth
	code := a.run(context.Background(), flag.Args())

	a.close()
	_ = logger.Sync()
	os.Exit(code)
}

func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	logLevel, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if BUILD_VERSION == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	// Logs only go to file so they never mix with command output.
	// Use `tail -f ~/.unihist/unihist.log` to follow them.
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}
	loggerConfig.ErrorOutputPaths = []string{
		core.LogFile(),
	}

	return loggerConfig.Build()
}

func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}
