// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers used by inputbus binaries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Format names accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto"
)

// New creates a logger writing to w at level. Auto selects the text
// handler when w is a terminal and the JSON handler otherwise, so
// piped output stays machine-parseable.
func New(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	options := &slog.HandlerOptions{Level: level}
	if format == FormatAuto {
		format = FormatJSON
		if isTerminal(w) {
			format = FormatText
		}
	}
	switch format {
	case FormatText, "":
		return slog.New(slog.NewTextHandler(w, options)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, options)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// NewCommandLogger creates the logger for short-lived CLI commands:
// warnings and above on stderr, formatted for whoever is reading.
func NewCommandLogger() *slog.Logger {
	logger, _ := New(os.Stderr, slog.LevelWarn, FormatAuto)
	return logger
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
