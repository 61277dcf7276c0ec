// Copyright 2026 Patrick J. Scruggs
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

package http

import (
	"fmt"
	"log/slog"
	stdhttp "net/http"

	"github.com/pjscruggs/saludo"
)

// ErrorHandler is the terminal error stage. Every failure in the pipeline,
// whether returned by a handler, recovered from a panic, produced by the body
// parser or synthesized for an unmatched route, ends here exactly once.
type ErrorHandler struct {
	logger     *slog.Logger
	production bool
	reportOpts []saludo.ErrorReportOption
}

// ErrorOption configures an ErrorHandler.
type ErrorOption func(*ErrorHandler)

// WithProduction hides stack traces from response bodies when enabled.
func WithProduction(production bool) ErrorOption {
	return func(eh *ErrorHandler) {
		eh.production = production
	}
}

// WithReportOptions forwards options to saludo.ErrorAttrs for every error
// record, typically [saludo.Logger.ErrorReportOptions].
func WithReportOptions(opts ...saludo.ErrorReportOption) ErrorOption {
	return func(eh *ErrorHandler) {
		eh.reportOpts = append(eh.reportOpts, opts...)
	}
}

// NewErrorHandler returns the terminal stage. logger is used when the
// request context carries no request-scoped logger.
func NewErrorHandler(logger *slog.Logger, opts ...ErrorOption) *ErrorHandler {
	eh := &ErrorHandler{logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(eh)
		}
	}
	return eh
}

// Production reports whether stacks are hidden from clients.
func (eh *ErrorHandler) Production() bool {
	return eh.production
}

// ResolveStatus picks the response status for an error: an unset status, or
// one still at the 200 default, becomes 500.
func ResolveStatus(status int) int {
	if status == 0 || status == stdhttp.StatusOK {
		return stdhttp.StatusInternalServerError
	}
	return status
}

// ServeError logs err with request context and writes the JSON error body.
// When the handler already committed a response, only the log record is
// written.
func (eh *ErrorHandler) ServeError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	if err == nil {
		return
	}
	e := AsError(err)
	status := ResolveStatus(e.StatusCode())
	url := originalURL(r)

	ctx := r.Context()
	logger := saludo.LoggerFrom(ctx, eh.logger)

	attrs := saludo.ErrorAttrs(e, eh.reportOpts...)
	attrs = append(attrs,
		slog.Int("status", status),
		slog.String("path", url),
		slog.String("method", r.Method),
		slog.String("ip", clientIPFrom(r)),
		slog.String("userAgent", r.UserAgent()),
	)

	alreadySent := committed(w)
	if alreadySent {
		attrs = append(attrs, slog.Bool("responseCommitted", true))
	}
	logger.LogAttrs(ctx, slog.LevelError,
		fmt.Sprintf("Error %d - %s - %s - %s", status, e.Message, url, r.Method),
		attrs...)

	if alreadySent {
		return
	}

	body := ErrorBody{Message: e.Message}
	if !eh.production {
		stack := e.Stack()
		if stack == "" {
			captured, _ := saludo.CaptureStack(nil)
			stack = e.Message + "\n\n" + captured
		}
		body.Stack = &stack
	}
	if werr := WriteJSON(w, status, body); werr != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "write error response", slog.String("error", werr.Error()))
	}
}
