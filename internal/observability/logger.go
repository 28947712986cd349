// Package observability builds the process logger: a tint console handler
// and, when LOG_FILE is set, a JSON handler on that file.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"

	"flakeload/internal/common"
	"flakeload/internal/config"
	"flakeload/pkg/errors"
)

// LoggerOptions control where records go.
type LoggerOptions struct {
	// Console defaults to os.Stdout.
	Console io.Writer
	// NoColor forces plain output even on a terminal.
	NoColor bool
}

// ParseLevel maps a LOG_LEVEL value onto a slog level. WARNING is
// accepted as an alias of WARN.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.ConfigInvalid("LOG_LEVEL", "unknown level "+s)
	}
}

// NewLogger returns the process logger and a closer for the log file.
// The closer is a no-op when no file is configured.
func NewLogger(settings config.LogSettings, opts LoggerOptions) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(settings.Level)
	if err != nil {
		return nil, nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	handler := slog.Handler(tint.NewHandler(console, &tint.Options{
		Level:       level,
		TimeFormat:  time.RFC3339,
		NoColor:     opts.NoColor || !isTerminal(console),
		ReplaceAttr: utcTime,
	}))

	closer := func() error { return nil }
	if settings.File != "" {
		path, err := common.CleanPath(settings.File)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid LOG_FILE").
				WithContext("path", settings.File)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, common.FilePermissionSecure)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeConfigUnreadable, "failed to open LOG_FILE").
				WithContext("path", path)
		}
		handler = slogmulti.Fanout(
			handler,
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level, ReplaceAttr: utcTime}),
		)
		closer = f.Close
	}

	return slog.New(handler), closer, nil
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.TimeValue(a.Value.Time().UTC())
	}
	return a
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
