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
	stdhttp "net/http"

	"github.com/klauspost/compress/gzhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/pjscruggs/saludo/http"

// Instrument wraps next with otelhttp so each request runs inside a server
// span whose context (remote parent included) is visible to AccessLog.
// tp may be nil to use the global tracer provider.
func Instrument(tp trace.TracerProvider) func(stdhttp.Handler) stdhttp.Handler {
	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *stdhttp.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return func(next stdhttp.Handler) stdhttp.Handler {
		return otelhttp.NewHandler(next, instrumentationName, opts...)
	}
}

// Compress gzips responses for clients that accept it. Small bodies are
// sent uncompressed.
func Compress() func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return gzhttp.GzipHandler(next)
	}
}

// Chain wraps h with middlewares so the first one listed is outermost.
func Chain(h stdhttp.Handler, middlewares ...func(stdhttp.Handler) stdhttp.Handler) stdhttp.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			h = middlewares[i](h)
		}
	}
	return h
}
