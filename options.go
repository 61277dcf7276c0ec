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
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	envLogLevel       = "LOG_LEVEL"
	envLogDir         = "LOG_DIR"
	envLogMaxSizeMB   = "LOG_MAX_SIZE_MB"
	envLogMaxBackups  = "LOG_MAX_BACKUPS"
	envLogMaxAgeDays  = "LOG_MAX_AGE_DAYS"
	envLogCompress    = "LOG_COMPRESS"
	envLogConsole     = "LOG_CONSOLE"
	envLogColor       = "LOG_COLOR"
	envNoColor        = "NO_COLOR"
	envLogAsync       = "LOG_ASYNC"
	envLogRuntimeInfo = "LOG_RUNTIME_INFO"

	defaultLogDir    = "logs"
	defaultMaxSizeMB = 100
)

// Option mutates Logger construction behaviour when supplied to [New].
// Options are applied after the environment has been read, so they take
// precedence over LOG_* variables.
type Option func(*options)

// options holds the resolved logger configuration.
type options struct {
	level         slog.Level
	dir           string
	maxSizeMB     int
	maxBackups    int
	maxAgeDays    int
	compress      bool
	console       bool
	color         bool
	async         bool
	runtimeInfo   bool
	consoleWriter io.Writer
	attrs         []slog.Attr
}

// defaultOptions returns the configuration used before the environment and
// functional options are applied.
func defaultOptions() options {
	return options{
		level:         slog.LevelInfo,
		dir:           defaultLogDir,
		maxSizeMB:     defaultMaxSizeMB,
		console:       true,
		color:         true,
		async:         true,
		runtimeInfo:   true,
		consoleWriter: os.Stdout,
	}
}

// loadOptionsFromEnv overlays LOG_* variables on the defaults. Invalid values
// are ignored so functional options can still supply overrides.
func loadOptionsFromEnv() options {
	o := defaultOptions()

	if raw, ok := os.LookupEnv(envLogLevel); ok {
		if lvl, err := ParseLevel(raw); err == nil {
			o.level = lvl
		}
	}
	if raw, ok := os.LookupEnv(envLogDir); ok {
		o.dir = strings.TrimSpace(raw)
	}
	if v, ok := envInt(envLogMaxSizeMB); ok && v > 0 {
		o.maxSizeMB = v
	}
	if v, ok := envInt(envLogMaxBackups); ok && v >= 0 {
		o.maxBackups = v
	}
	if v, ok := envInt(envLogMaxAgeDays); ok && v >= 0 {
		o.maxAgeDays = v
	}
	if v, ok := envBool(envLogCompress); ok {
		o.compress = v
	}
	if v, ok := envBool(envLogConsole); ok {
		o.console = v
	}
	if _, ok := os.LookupEnv(envNoColor); ok {
		o.color = false
	}
	if v, ok := envBool(envLogColor); ok {
		o.color = v
	}
	if v, ok := envBool(envLogAsync); ok {
		o.async = v
	}
	if v, ok := envBool(envLogRuntimeInfo); ok {
		o.runtimeInfo = v
	}
	return o
}

// WithLevel sets the minimum level for the console and combined sinks.
// The error sink always records error level and above.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithDir sets the directory holding combined.log, error.log and
// rejections.log. An empty dir disables the file sinks.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = strings.TrimSpace(dir)
	}
}

// WithRotation configures lumberjack rotation for every file sink. Zero
// maxBackups or maxAgeDays keeps old files forever.
func WithRotation(maxSizeMB, maxBackups, maxAgeDays int, compress bool) Option {
	return func(o *options) {
		if maxSizeMB > 0 {
			o.maxSizeMB = maxSizeMB
		}
		o.maxBackups = max(maxBackups, 0)
		o.maxAgeDays = max(maxAgeDays, 0)
		o.compress = compress
	}
}

// WithConsole redirects the console sink to w. A nil writer disables it.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.consoleWriter = w
		o.console = w != nil
	}
}

// WithColor toggles ANSI colors on the console sink.
func WithColor(enabled bool) Option {
	return func(o *options) {
		o.color = enabled
	}
}

// WithAsync toggles queueing of file writes through logasync.
func WithAsync(enabled bool) Option {
	return func(o *options) {
		o.async = enabled
	}
}

// WithRuntimeInfo toggles platform detection. When enabled the detected
// labels are attached to every record under the "runtime" group.
func WithRuntimeInfo(enabled bool) Option {
	return func(o *options) {
		o.runtimeInfo = enabled
	}
}

// WithAttrs adds attributes to every record. Multiple calls are cumulative.
func WithAttrs(attrs ...slog.Attr) Option {
	return func(o *options) {
		o.attrs = append(o.attrs, attrs...)
	}
}

// envInt parses an integer environment variable.
func envInt(key string) (int, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}

// envBool parses yes/on/1/true and no/off/0/false tokens.
func envBool(key string) (bool, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "on":
		return true, true
	case "0", "f", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
