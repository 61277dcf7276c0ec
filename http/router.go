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
	stdhttp "net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HandlerFunc is a route handler. Returning a non-nil error hands the request
// to the terminal error stage; the handler must not have written a response
// in that case.
type HandlerFunc func(stdhttp.ResponseWriter, *stdhttp.Request) error

// Router dispatches requests to HandlerFuncs through chi. Paths match
// case-insensitively and a single trailing slash is ignored, so patterns are
// registered in lower case. Unmatched paths and unregistered methods both
// become NotFound errors.
type Router struct {
	mux    *chi.Mux
	errors *ErrorHandler
}

var _ stdhttp.Handler = (*Router)(nil)

// NewRouter returns a Router whose failures end in eh. middlewares run in
// order, outside the panic recovery stage, for every request including
// unmatched ones.
func NewRouter(eh *ErrorHandler, middlewares ...func(stdhttp.Handler) stdhttp.Handler) *Router {
	rt := &Router{mux: chi.NewRouter(), errors: eh}
	rt.mux.Use(normalizeRoutePath)
	rt.mux.Use(middlewares...)
	rt.mux.Use(Recoverer(eh))

	notFound := rt.Adapt(func(_ stdhttp.ResponseWriter, r *stdhttp.Request) error {
		return NotFound(r)
	})
	rt.mux.NotFound(notFound.ServeHTTP)
	rt.mux.MethodNotAllowed(notFound.ServeHTTP)
	return rt
}

// normalizeRoutePath sets the path chi routes on to the lower-cased request
// path without its trailing slash. The request URL itself is untouched, so
// messages and access records show the target as sent.
func normalizeRoutePath(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path := rctx.RoutePath
			if path == "" {
				path = r.URL.RawPath
				if path == "" {
					path = r.URL.Path
				}
			}
			if len(path) > 1 && strings.HasSuffix(path, "/") {
				path = path[:len(path)-1]
			}
			rctx.RoutePath = strings.ToLower(path)
		}
		next.ServeHTTP(w, r)
	})
}

// Get registers h for GET requests on pattern.
func (rt *Router) Get(pattern string, h HandlerFunc) {
	rt.mux.Method(stdhttp.MethodGet, pattern, rt.Adapt(h))
}

// Method registers h for method on pattern.
func (rt *Router) Method(method, pattern string, h HandlerFunc) {
	rt.mux.Method(method, pattern, rt.Adapt(h))
}

// Adapt turns h into an http.Handler that forwards h's error to the error
// stage.
func (rt *Router) Adapt(h HandlerFunc) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		tw := wrapTracking(w)
		if err := h(tw, r); err != nil {
			rt.errors.ServeError(tw, r, err)
		}
	})
}

// ServeHTTP dispatches the request.
func (rt *Router) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Errors returns the terminal error stage.
func (rt *Router) Errors() *ErrorHandler {
	return rt.errors
}
