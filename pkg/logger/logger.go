// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger configures the process-wide log/slog logger.
//
// Formats:
//   - "simple": level, message and attributes on one line (default)
//   - "verbose": same as simple, prefixed with a timestamp
//   - "json": slog.JSONHandler output for log shippers
//   - anything else: the standard slog.TextHandler format
//
// Terminal output is coloured by level. Logs from outside this module are
// dropped unless the level is DEBUG.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

const modulePrefix = "github.com/kadirpekel/notely"

// Format names.
const (
	FormatSimple  = "simple"
	FormatVerbose = "verbose"
	FormatJSON    = "json"
)

var (
	defaultLogger *slog.Logger

	// level is shared by every handler Init builds, so SetLevel takes effect
	// without rebuilding the logger.
	level = new(slog.LevelVar)
)

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn (warning), error.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", levelStr)
	}
}

// Init installs the default logger writing to output in the given format.
// Colour is enabled when output is a terminal.
func Init(lvl slog.Level, output *os.File, format string) {
	level.Set(lvl)

	defaultLogger = slog.New(NewHandler(output, format, isTerminal(output)))
	slog.SetDefault(defaultLogger)
}

// NewHandler builds the handler chain used by Init on an arbitrary writer.
// The handler follows the package level.
func NewHandler(w io.Writer, format string, color bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String(slog.LevelKey, "WARN")
			}
			return a
		},
	}

	var handler slog.Handler
	switch format {
	case FormatSimple, "":
		handler = newLineHandler(w, level, color, false)
	case FormatVerbose:
		handler = newLineHandler(w, level, color, true)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &filteringHandler{handler: handler, level: level}
}

// SetLevel changes the level of the installed logger at runtime.
func SetLevel(lvl slog.Level) {
	level.Set(lvl)
}

// Level returns the current level.
func Level() slog.Level {
	return level.Level()
}

// OpenLogFile opens or creates a log file at the specified path for appending.
// The returned cleanup function closes the file.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return file, func() { _ = file.Close() }, nil
}

// GetLogger returns the default logger, initialising it at INFO on stderr
// if Init was never called.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, FormatSimple)
	}
	return defaultLogger
}

func isTerminal(file *os.File) bool {
	return file != nil && term.IsTerminal(int(file.Fd()))
}
