package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kazz187/taskcadence/internal/config"
	"github.com/kazz187/taskcadence/pkg/clog"
)

// newLogger writes to stderr, and also to a rotated file when LOG_FILE is set.
// Color is disabled when a file receives the text output.
func newLogger(env *config.Env) (*slog.Logger, io.Closer) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if env.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   env.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, file)
		closer = file
	}

	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(w, clog.WithLevel(level), clog.WithColor(env.LogFile == ""))
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(clog.NewAttributesHandler(handler)), closer
}
