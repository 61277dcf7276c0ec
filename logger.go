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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pjscruggs/saludo/logasync"
)

// File names created inside the log directory.
const (
	CombinedFile   = "combined.log"
	ErrorFile      = "error.log"
	RejectionsFile = "rejections.log"
)

// Logger is the process-wide structured logger. It embeds the *slog.Logger
// that fans out to the console, combined and error sinks, and keeps a second
// logger bound to the rejections sink for fatal events.
//
// A Logger is safe for concurrent use. Close must be called before exit so
// queued file records are flushed.
type Logger struct {
	*slog.Logger

	fatal    *slog.Logger
	levelVar *slog.LevelVar
	runtime  RuntimeInfo

	files   []*lumberjack.Logger
	closers []func() error

	closeOnce sync.Once
	closeErr  error
}

// New builds a Logger from LOG_* environment variables overlaid with opts.
func New(opts ...Option) (*Logger, error) {
	o := loadOptionsFromEnv()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	l := &Logger{levelVar: new(slog.LevelVar)}
	l.levelVar.Set(o.level)

	var mainSinks, fatalSinks []slog.Handler

	if o.console && o.consoleWriter != nil {
		mainSinks = append(mainSinks, newConsoleHandler(o.consoleWriter, l.levelVar, o.color))
	}

	if o.dir != "" {
		if err := os.MkdirAll(o.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %q: %w", o.dir, err)
		}
		mainSinks = append(mainSinks,
			l.openFileSink(o, CombinedFile, l.levelVar),
			l.openFileSink(o, ErrorFile, slog.LevelError),
		)
		fatalSinks = append(fatalSinks, l.openFileSink(o, RejectionsFile, slog.LevelDebug))
	}

	attrs := append([]slog.Attr(nil), o.attrs...)
	if o.runtimeInfo {
		l.runtime = DetectRuntimeInfo()
		attrs = append(attrs, l.runtime.Attrs()...)
	}

	var mainHandler slog.Handler = newFanoutHandler(mainSinks...)
	var fatalHandler slog.Handler = newFanoutHandler(fatalSinks...)
	if len(attrs) > 0 {
		mainHandler = mainHandler.WithAttrs(attrs)
		fatalHandler = fatalHandler.WithAttrs(attrs)
	}

	l.Logger = slog.New(mainHandler)
	l.fatal = slog.New(fatalHandler)
	return l, nil
}

// openFileSink creates a rotating file and the JSON handler writing to it,
// wrapped in an async queue when enabled.
func (l *Logger) openFileSink(o options, name string, level slog.Leveler) slog.Handler {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(o.dir, name),
		MaxSize:    o.maxSizeMB,
		MaxBackups: o.maxBackups,
		MaxAge:     o.maxAgeDays,
		Compress:   o.compress,
	}
	l.files = append(l.files, file)

	h := newFileHandler(file, level)
	if !o.async {
		return h
	}
	async := logasync.New(h, logasync.WithEnv())
	l.closers = append(l.closers, async.Close)
	return async
}

// Fatal returns the logger bound to the rejections sink. Only fatal events
// should be written to it; see [FatalGuard].
func (l *Logger) Fatal() *slog.Logger {
	return l.fatal
}

// SetLevel changes the minimum level of the console and combined sinks.
func (l *Logger) SetLevel(level slog.Level) {
	l.levelVar.Set(level)
}

// Level reports the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.levelVar.Level()
}

// Runtime returns the platform information detected at construction.
func (l *Logger) Runtime() RuntimeInfo {
	return l.runtime
}

// ErrorReportOptions returns the options that attach the detected service
// context to error records.
func (l *Logger) ErrorReportOptions() []ErrorReportOption {
	sc := l.runtime.ServiceContext
	if sc["service"] == "" {
		return nil
	}
	return []ErrorReportOption{WithServiceContext(sc["service"], sc["version"])}
}

// Rotate closes the current log files and opens new ones, moving the old
// contents aside according to the rotation settings.
func (l *Logger) Rotate() error {
	var errs []error
	for _, f := range l.files {
		if err := f.Rotate(); err != nil {
			errs = append(errs, fmt.Errorf("rotate %s: %w", f.Filename, err))
		}
	}
	return errors.Join(errs...)
}

// Close drains queued records and closes every log file. It is idempotent.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		var errs []error
		for _, c := range l.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		for _, f := range l.files {
			if err := f.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", f.Filename, err))
			}
		}
		l.closeErr = errors.Join(errs...)
	})
	return l.closeErr
}
