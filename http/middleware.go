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

package http

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pjscruggs/saludo"
)

// AccessLog returns middleware that derives a request-scoped logger, stores it
// in the request context, and writes exactly one info record per request once
// the response is complete. The record message follows the compact
// "dev" layout:
//
//	GET /api/saludo 200 0.412 ms - 52
func AccessLog(logger *slog.Logger, opts ...Option) func(stdhttp.Handler) stdhttp.Handler {
	cfg := applyOptions(opts)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			start := time.Now()
			ctx := r.Context()

			scope := newRequestScope(r, start, cfg)
			requestLogger := loggerWithAttrs(logger, scope.loggerAttrs(ctx))

			ctx = saludo.ContextWithLogger(ctx, requestLogger)
			ctx = context.WithValue(ctx, requestScopeKey{}, scope)
			r = r.WithContext(ctx)

			recorder := &responseRecorder{ResponseWriter: w, status: stdhttp.StatusOK}

			defer func() {
				scope.finalize(recorder.status, recorder.bytesWritten, time.Since(start))
				requestLogger.LogAttrs(ctx, slog.LevelInfo, scope.devLine(), scope.accessAttrs()...)
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}

// RequestScope captures request metadata surfaced to handlers via context.
type RequestScope struct {
	start     time.Time
	method    string
	url       string
	clientIP  string
	userAgent string
	requestID string

	status  int
	bytes   int64
	latency time.Duration
}

// newRequestScope builds a RequestScope capturing request metadata.
func newRequestScope(r *stdhttp.Request, start time.Time, cfg *config) *RequestScope {
	return &RequestScope{
		start:     start,
		method:    r.Method,
		url:       originalURL(r),
		clientIP:  clientIP(r, cfg.trustProxyHeaders),
		userAgent: r.UserAgent(),
		requestID: RequestIDFrom(r.Context()),
		status:    stdhttp.StatusOK,
	}
}

// loggerAttrs returns the attributes every record of this request carries.
func (rs *RequestScope) loggerAttrs(ctx context.Context) []slog.Attr {
	attrs := saludo.TraceAttrs(ctx)
	if rs.requestID != "" {
		attrs = append(attrs, slog.String("requestId", rs.requestID))
	}
	return attrs
}

// accessAttrs returns the attributes of the access record.
func (rs *RequestScope) accessAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("method", rs.method),
		slog.String("path", rs.url),
		slog.Int("status", rs.status),
		slog.Float64("responseTimeMs", durationMillis(rs.latency)),
		slog.Int64("bytes", rs.bytes),
	}
	if rs.clientIP != "" {
		attrs = append(attrs, slog.String("ip", rs.clientIP))
	}
	if rs.userAgent != "" {
		attrs = append(attrs, slog.String("userAgent", rs.userAgent))
	}
	return attrs
}

// devLine formats "METHOD URL STATUS TIME ms - BYTES".
func (rs *RequestScope) devLine() string {
	size := "-"
	if rs.bytes > 0 {
		size = strconv.FormatInt(rs.bytes, 10)
	}
	return fmt.Sprintf("%s %s %d %.3f ms - %s", rs.method, rs.url, rs.status, durationMillis(rs.latency), size)
}

// finalize stores the terminal status, byte count, and latency.
func (rs *RequestScope) finalize(status int, bytes int64, d time.Duration) {
	if status <= 0 {
		status = stdhttp.StatusOK
	}
	rs.status = status
	rs.bytes = max(bytes, 0)
	rs.latency = max(d, 0)
}

// Method returns the HTTP method.
func (rs *RequestScope) Method() string { return rs.method }

// URL returns the request target as sent by the client.
func (rs *RequestScope) URL() string { return rs.url }

// ClientIP returns the resolved client address.
func (rs *RequestScope) ClientIP() string { return rs.clientIP }

// UserAgent returns the request's User-Agent header.
func (rs *RequestScope) UserAgent() string { return rs.userAgent }

// RequestID returns the request identifier, if one was assigned.
func (rs *RequestScope) RequestID() string { return rs.requestID }

// Start returns the time the request began processing.
func (rs *RequestScope) Start() time.Time { return rs.start }

type requestScopeKey struct{}

// ScopeFromContext retrieves the RequestScope placed in the request context by
// AccessLog.
func ScopeFromContext(ctx context.Context) (*RequestScope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(requestScopeKey{}).(*RequestScope)
	return scope, ok && scope != nil
}

type responseRecorder struct {
	stdhttp.ResponseWriter
	status       int
	wroteHeader  bool
	bytesWritten int64
}

// WriteHeader records the first status code before delegating.
func (rr *responseRecorder) WriteHeader(status int) {
	if !rr.wroteHeader {
		rr.status = status
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(status)
}

// Write records bytes written and forwards the call to the underlying writer.
func (rr *responseRecorder) Write(p []byte) (int, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(stdhttp.StatusOK)
	}
	n, err := rr.ResponseWriter.Write(p)
	rr.bytesWritten += int64(n)
	return n, err
}

// ReadFrom streams data from src while tracking bytes for logging.
func (rr *responseRecorder) ReadFrom(src io.Reader) (int64, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(stdhttp.StatusOK)
	}
	var (
		n   int64
		err error
	)
	if rf, ok := rr.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(src)
	} else {
		n, err = io.Copy(rr.ResponseWriter, src)
	}
	rr.bytesWritten += n
	return n, err
}

// Flush forwards the flush request to the underlying ResponseWriter when supported.
func (rr *responseRecorder) Flush() {
	if flusher, ok := rr.ResponseWriter.(stdhttp.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack delegates to the wrapped Hijacker when supported, otherwise returns http.ErrNotSupported.
func (rr *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rr.ResponseWriter.(stdhttp.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, stdhttp.ErrNotSupported
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rr *responseRecorder) Unwrap() stdhttp.ResponseWriter {
	return rr.ResponseWriter
}

// clientIPFrom returns the client address recorded by AccessLog, falling back
// to the connection's remote address.
func clientIPFrom(r *stdhttp.Request) string {
	if scope, ok := ScopeFromContext(r.Context()); ok {
		return scope.clientIP
	}
	return extractIP(r.RemoteAddr)
}

// clientIP resolves the client address, honouring X-Forwarded-For only when
// proxy headers are trusted.
func clientIP(r *stdhttp.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	return extractIP(r.RemoteAddr)
}

// extractIP strips the port from a host:port string and returns the host component.
func extractIP(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// durationMillis converts d to fractional milliseconds.
func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// loggerWithAttrs returns a logger enriched with the supplied attributes.
func loggerWithAttrs(base *slog.Logger, attrs []slog.Attr) *slog.Logger {
	if len(attrs) == 0 {
		return base
	}
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return base.With(args...)
}
