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
	"log/slog"
	"strings"
)

// ErrorReportOption configures ErrorAttrs and ReportError.
type ErrorReportOption func(*errorReportConfig)

type errorReportConfig struct {
	service string
	version string
}

// WithServiceContext sets the service name and version attached to error
// records. [Logger.ErrorReportOptions] supplies the detected values.
func WithServiceContext(service, version string) ErrorReportOption {
	return func(cfg *errorReportConfig) {
		cfg.service = strings.TrimSpace(service)
		cfg.version = strings.TrimSpace(version)
	}
}

// ErrorAttrs returns the attributes every error record carries: the error's
// stack (or one captured at the call site when the error has none) and the
// service context when known.
func ErrorAttrs(err error, opts ...ErrorReportOption) []slog.Attr {
	if err == nil {
		return nil
	}

	var cfg errorReportConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	stack := ErrorStack(err)
	if stack == "" {
		captured, _ := CaptureStack(nil)
		stack = withMessage(err.Error(), captured)
	}

	attrs := make([]slog.Attr, 0, 2)
	if stack != "" {
		attrs = append(attrs, slog.String(StackKey, stack))
	}
	if cfg.service != "" {
		args := []any{slog.String("service", cfg.service)}
		if cfg.version != "" {
			args = append(args, slog.String("version", cfg.version))
		}
		attrs = append(attrs, slog.Group("serviceContext", args...))
	}
	return attrs
}

// ReportError logs err at error level with the attributes from ErrorAttrs
// followed by extra.
func ReportError(ctx context.Context, logger *slog.Logger, err error, msg string, extra []slog.Attr, opts ...ErrorReportOption) {
	if logger == nil || err == nil {
		return
	}
	attrs := ErrorAttrs(err, opts...)
	attrs = append(attrs, extra...)
	logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}
