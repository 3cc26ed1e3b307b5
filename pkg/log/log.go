// Copyright 2025 walteh LLC
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

package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	statusWidth = 15 // Width for status text
)

// 🏭 NewZerolog builds the process logger. Pretty output uses the console writer.
func NewZerolog(w io.Writer, level zerolog.Level, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}

// 🔍 ParseLevel parses a level name, treating "" as info
func ParseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, errors.Errorf("parsing log level %q: %w", s, err)
	}
	return lvl, nil
}

// 🎯 FileOperation is one file written into a workspace
type FileOperation struct {
	Path       string // Relative file path
	Status     string // new / modified / unchanged
	IsNew      bool
	IsModified bool
}

// 📦 WorkspaceOperation describes a transformation that produced files
type WorkspaceOperation struct {
	WorkspaceID string
	Kind        string // convert / generate-backend / generate-base
	Domain      string
}

// 🎯 Logger mirrors workspace operations to a console and to zerolog
type Logger struct {
	console io.Writer
	mu      sync.Mutex
}

// 🏭 New creates a logger writing summaries to console. A nil console only logs to zerolog.
func New(console io.Writer) *Logger {
	return &Logger{console: console}
}

// 📝 FormatFileOperation formats a file operation for display
func FormatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.IsNew:
		symbol = '✓'
		symbolColor = color.FgGreen
	case op.IsModified:
		symbol = '⟳'
		symbolColor = color.FgBlue
	default:
		symbol = '-'
		symbolColor = color.FgYellow
	}

	return fmt.Sprintf("%s%s %s %s",
		strings.Repeat(" ", fileIndent),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		fmt.Sprintf("%-*s", statusWidth, op.Status))
}

// 📝 LogWorkspace prints a header for op followed by one line per file.
// Lines from concurrent operations are never interleaved.
func (l *Logger) LogWorkspace(ctx context.Context, op WorkspaceOperation, files []FileOperation) {
	zlog := zerolog.Ctx(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.console != nil {
		fmt.Fprintf(l.console, "%s %s %s %s\n",
			color.New(color.FgMagenta).Sprint("◆"),
			color.New(color.Bold).Sprint(op.Kind),
			color.New(color.Faint).Sprint("•"),
			color.New(color.FgYellow).Sprint(op.Domain))
		fmt.Fprintf(l.console, "[workspace %s]\n", color.New(color.FgCyan).Sprint(op.WorkspaceID))
		for _, f := range files {
			fmt.Fprintln(l.console, FormatFileOperation(f))
		}
	}

	zlog.Info().
		Str("workspace_id", op.WorkspaceID).
		Str("kind", op.Kind).
		Str("domain", op.Domain).
		Int("files", len(files)).
		Msg("workspace operation complete")

	for _, f := range files {
		zlog.Debug().
			Str("workspace_id", op.WorkspaceID).
			Str("file", f.Path).
			Str("status", f.Status).
			Msg("file operation")
	}
}
