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

// Package routes registers the saludo endpoints.
package routes

import (
	"context"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"time"

	"github.com/pjscruggs/saludo"
	"github.com/pjscruggs/saludo/http"
)

// Paths served by Register.
const (
	PathRoot       = "/"
	PathSaludo     = "/api/saludo"
	PathSyncError  = "/api/error-sincronico"
	PathAsyncError = "/api/error-asincronico"
)

// Response and error messages.
const (
	SaludoMessage     = "¡ HOLA ! Saludo desde el SERVIDOR 😊"
	SyncErrorMessage  = " ¡UPSS: Algo salio mal de forma sincronica 😡!"
	AsyncErrorMessage = " ¡UPSS: Algo salio mal de forma asincronica !"
)

// DefaultAsyncDelay is how long the asynchronous error route waits before failing.
const DefaultAsyncDelay = 500 * time.Millisecond

// Handlers holds the route handlers and what they depend on.
type Handlers struct {
	logger     *slog.Logger
	asyncDelay time.Duration
}

// Option configures Handlers.
type Option func(*Handlers)

// WithAsyncDelay overrides DefaultAsyncDelay.
func WithAsyncDelay(d time.Duration) Option {
	return func(h *Handlers) {
		if d >= 0 {
			h.asyncDelay = d
		}
	}
}

// New returns the route handlers. logger is used when a request carries no
// request-scoped logger.
func New(logger *slog.Logger, opts ...Option) *Handlers {
	h := &Handlers{logger: logger, asyncDelay: DefaultAsyncDelay}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts every route on rt.
func (h *Handlers) Register(rt *http.Router) {
	rt.Get(PathRoot, h.Root)
	rt.Get(PathSaludo, h.Saludo)
	rt.Get(PathSyncError, h.SyncError)
	rt.Get(PathAsyncError, h.AsyncError)
}

// Root logs the visit and answers 204 with no body.
func (h *Handlers) Root(w stdhttp.ResponseWriter, r *stdhttp.Request) error {
	h.log(r).InfoContext(r.Context(), "GET / - Solicitud a la ruta raiz (PRINCIPAL)")
	w.WriteHeader(stdhttp.StatusNoContent)
	return nil
}

// Saludo answers with the greeting.
func (h *Handlers) Saludo(w stdhttp.ResponseWriter, r *stdhttp.Request) error {
	h.log(r).InfoContext(r.Context(), "GET /api/saludo - Recibiendo solicitud de la ruta saludo")
	return http.WriteJSON(w, stdhttp.StatusOK, http.MessageBody{Message: SaludoMessage})
}

// SyncError fails immediately.
func (h *Handlers) SyncError(_ stdhttp.ResponseWriter, r *stdhttp.Request) error {
	h.log(r).WarnContext(r.Context(), "GET /api/error-sincronico - Simulacion de un error sincronico")
	return http.NewError(0, SyncErrorMessage)
}

// AsyncError fails once the async delay has elapsed.
func (h *Handlers) AsyncError(w stdhttp.ResponseWriter, r *stdhttp.Request) error {
	h.log(r).WarnContext(r.Context(), "GET /api/error-asincronico - Simulacion de un error asincronico")
	if err := failAfter(r.Context(), h.asyncDelay, http.NewError(0, AsyncErrorMessage)); err != nil {
		return err
	}
	// Not reached: the simulated operation always fails.
	return http.WriteJSON(w, stdhttp.StatusOK, http.MessageBody{Message: "Esto no se deberia ver"})
}

// log returns the request-scoped logger.
func (h *Handlers) log(r *stdhttp.Request) *slog.Logger {
	return saludo.LoggerFrom(r.Context(), h.logger)
}

// StatusClientClosedRequest is the non-standard status recorded when the
// client goes away before the asynchronous route finishes.
const StatusClientClosedRequest = 499

// errCanceled is returned when the request ends before the timer fires.
var errCanceled = errors.New("routes: request canceled before the operation completed")

// failAfter arms a single-shot timer and returns err when it fires. If ctx
// ends first the timer is stopped and an error with status 499 (client
// closed request) wrapping ctx.Err() is returned instead.
func failAfter(ctx context.Context, d time.Duration, err error) error {
	result := make(chan error, 1)
	timer := time.AfterFunc(d, func() {
		result <- err
	})

	select {
	case res := <-result:
		return res
	case <-ctx.Done():
		timer.Stop()
		return http.WrapError(StatusClientClosedRequest, errors.Join(errCanceled, ctx.Err()))
	}
}
