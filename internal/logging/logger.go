// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger.
type Options struct {
	Level       string
	Development bool
	// File, when set, receives a copy of every record and is rotated.
	File string
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// NewHandler builds the base handler: text output in development, JSON
// otherwise. The returned closer releases the log file, if any.
func NewHandler(opts Options) (slog.Handler, io.Closer) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, rotator)
		closer = rotator
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if opts.Development {
		return slog.NewTextHandler(out, handlerOpts), closer
	}
	return slog.NewJSONHandler(out, handlerOpts), closer
}

// New returns a logger for opts.
func New(opts Options) (*slog.Logger, io.Closer) {
	h, closer := NewHandler(opts)
	return slog.New(h), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
