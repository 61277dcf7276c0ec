// Copyright 2025-2026 Patrick J. Scruggs
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

package saludo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Keys written by file sinks in place of slog's defaults.
const (
	TimestampKey = "timestamp"
	LevelKey     = "level"
	MessageKey   = "message"
	StackKey     = "stack"

	// TimestampLayout is the `YYYY-MM-DD HH:mm:ss` layout used by every sink.
	TimestampLayout = time.DateTime
)

// fanoutHandler delivers each record to every sink that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

var _ slog.Handler = (*fanoutHandler)(nil)

// newFanoutHandler drops nil entries from handlers.
func newFanoutHandler(handlers ...slog.Handler) *fanoutHandler {
	kept := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			kept = append(kept, h)
		}
	}
	return &fanoutHandler{handlers: kept}
}

// Enabled reports whether any sink accepts level.
func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes rec to every sink that accepts it. A failing sink does not
// stop the others; all errors are joined.
func (f *fanoutHandler) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies attrs to every sink.
func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

// WithGroup applies the group to every sink.
func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// newFileHandler builds the JSON handler used by file sinks.
func newFileHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: fileReplaceAttr,
	})
}

// fileReplaceAttr renames slog's built-in keys to the file record shape:
// {"timestamp":"2006-01-02 15:04:05","level":"info","message":"..."}.
func fileReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String(TimestampKey, t.Format(TimestampLayout))
		}
		a.Key = TimestampKey
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(LevelKey, LevelName(lvl))
		}
	case slog.MessageKey:
		a.Key = MessageKey
	}
	return a
}

// newConsoleHandler builds the colorized console sink.
func newConsoleHandler(w io.Writer, level slog.Leveler, color bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: TimestampLayout,
		NoColor:    !color,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Stacks are multi-line and already land in the file sinks.
			if len(groups) == 0 && a.Key == StackKey {
				return slog.Attr{}
			}
			return a
		},
	})
}
