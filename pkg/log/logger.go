package log

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Category selects one of the service's log streams.
type Category int

const (
	Application Category = iota
	DiscordEvents
	Errors
)

func (c Category) fileName() string {
	switch c {
	case DiscordEvents:
		return "discord_events.log"
	case Errors:
		return "error.log"
	default:
		return "application.log"
	}
}

// Options configures SetupLogger. A zero value logs to stdout/stderr only.
type Options struct {
	// Dir enables rotating log files when non-empty.
	Dir        string
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	Stdout io.Writer
	Stderr io.Writer
}

// Logger holds one slog.Logger per category and the rotating files behind them.
type Logger struct {
	application *slog.Logger
	discord     *slog.Logger
	errors      *slog.Logger
	files       []*lumberjack.Logger
}

var (
	mu sync.RWMutex

	// GlobalLogger is the process-wide logger. It is replaced by SetupLogger.
	GlobalLogger *Logger
)

// SetupLogger builds the category loggers and installs them as GlobalLogger.
// The application logger also becomes slog's default.
func SetupLogger(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := GlobalLogger
	GlobalLogger = l
	mu.Unlock()

	slog.SetDefault(l.application)
	if prev != nil {
		_ = prev.Sync()
	}
	return nil
}

// New builds a Logger without installing it globally.
func New(opts Options) (*Logger, error) {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 28
	}

	l := &Logger{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, err
		}
	}

	build := func(c Category, console io.Writer) *slog.Logger {
		w := console
		if opts.Dir != "" {
			f := &lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, c.fileName()),
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
			}
			l.files = append(l.files, f)
			w = io.MultiWriter(console, f)
		}
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level}))
	}

	l.application = build(Application, stdout)
	l.discord = build(DiscordEvents, stdout).With("category", "discord")
	l.errors = build(Errors, stderr)
	return l, nil
}

// For returns the slog.Logger for a category.
func (l *Logger) For(c Category) *slog.Logger {
	switch c {
	case DiscordEvents:
		return l.discord
	case Errors:
		return l.errors
	default:
		return l.application
	}
}

// Sync closes the rotating files. Console output is unbuffered.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func current() *Logger {
	mu.RLock()
	l := GlobalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if GlobalLogger == nil {
		GlobalLogger, _ = New(Options{Level: slog.LevelInfo})
	}
	return GlobalLogger
}

// ApplicationLogger logs service lifecycle and request handling.
func ApplicationLogger() *slog.Logger { return current().For(Application) }

// DiscordLogger logs calls made to the Discord API.
func DiscordLogger() *slog.Logger { return current().For(DiscordEvents) }

// ErrorLoggerRaw logs failures.
func ErrorLoggerRaw() *slog.Logger { return current().For(Errors) }

// ParseLevel maps a config string to a slog level; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
