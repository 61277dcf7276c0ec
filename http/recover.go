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
	"errors"
	"fmt"
	stdhttp "net/http"

	"github.com/pjscruggs/saludo"
)

// Recoverer converts panics raised while serving a request into handler
// errors routed to eh, so an accidental panic is answered like a returned
// error instead of killing the connection. http.ErrAbortHandler is re-raised
// untouched.
func Recoverer(eh *ErrorHandler) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			tw := wrapTracking(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, stdhttp.ErrAbortHandler) {
					panic(rec)
				}
				eh.ServeError(tw, r, panicError(rec))
			}()
			next.ServeHTTP(tw, r)
		})
	}
}

// panicError wraps a recovered value. It runs inside the deferred recover,
// while the panicking frames are still on the stack, so the captured stack
// points at the panic site.
func panicError(rec any) *Error {
	e := &Error{pcs: saludo.CallersPCs(1)}
	if err, ok := rec.(error); ok {
		e.Message = err.Error()
		e.cause = err
	} else {
		e.Message = fmt.Sprint(rec)
	}
	return e
}
