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

// Package http is the saludo request pipeline built on net/http and chi.
//
// Route handlers have the [HandlerFunc] signature and report failure by
// returning an error. Every failure takes the same path to one terminal stage,
// the [ErrorHandler]. That covers returned errors, panics caught by
// [Recoverer], body parse failures from [ParseJSON], and the [NotFound] error
// built for unmatched routes. The stage picks the status (an unset or 200
// status becomes 500) and logs one error record with the request context. It
// then writes {"message": ..., "stack": ...}, with a null stack in production
// mode.
//
// # Basic Usage
//
//	errs := http.NewErrorHandler(logger.Logger, http.WithProduction(prod))
//	router := http.NewRouter(errs, http.ParseJSON(errs, http.DefaultBodyLimit))
//	router.Get("/api/saludo", func(w stdhttp.ResponseWriter, r *stdhttp.Request) error {
//	    return http.WriteJSON(w, stdhttp.StatusOK, http.MessageBody{Message: "hola"})
//	})
//
//	handler := http.Chain(router,
//	    http.Instrument(nil),
//	    http.RequestID(),
//	    http.AccessLog(logger.Logger),
//	    http.Compress(),
//	)
//
// [AccessLog] writes one info record per request after the response
// completes, so a failed request logs its error record first and its access
// record second.
package http
