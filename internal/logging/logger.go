// Package logging holds the process-wide structured logger of sakuractl.
// Every record carries app=sakuractl; subsystems add a component attribute.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const appName = "sakuractl"

var (
	logger *slog.Logger
	level  = new(slog.LevelVar)
)

// Init points the logger at stderr.
func Init(lvl string) {
	InitWithWriter(os.Stderr, lvl)
}

// InitWithWriter points the logger at w. Records below lvl are dropped.
func InitWithWriter(w io.Writer, lvl string) {
	level.Set(ParseLevel(lvl))
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})).With("app", appName)
	slog.SetDefault(logger)
}

// SetLevel changes the threshold without replacing the handler.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

// ParseLevel maps a --log-level value to a level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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

// Logger returns the process logger, creating an info-level stderr one on first use.
func Logger() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Component returns a logger tagged with the subsystem name, e.g. "preflight".
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }

func Info(msg string, args ...any) { Logger().Info(msg, args...) }

func Warn(msg string, args ...any) { Logger().Warn(msg, args...) }

// Error is reserved for failures that end the command.
func Error(msg string, args ...any) { Logger().Error(msg, args...) }
