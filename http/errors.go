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

// Error is an error with an HTTP status and the stack of the point where it
// was created. A zero Status means "not chosen"; the terminal error stage
// answers 500 for it.
type Error struct {
	Message string
	Status  int

	cause error
	pcs   []uintptr
}

var _ saludo.StackTracer = (*Error)(nil)

// NewError returns an Error with the given status and message.
func NewError(status int, msg string) *Error {
	return &Error{Message: msg, Status: status, pcs: saludo.CallersPCs(1)}
}

// Errorf returns an Error with a formatted message. A %w verb keeps the
// wrapped error reachable through errors.Is and errors.As.
func Errorf(status int, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{
		Message: err.Error(),
		Status:  status,
		cause:   err,
		pcs:     saludo.CallersPCs(1),
	}
}

// WrapError attaches status to err. The stack recorded by err is kept when it
// has one; otherwise the caller's stack is captured.
func WrapError(status int, err error) *Error {
	if err == nil {
		return nil
	}
	e := &Error{Message: err.Error(), Status: status, cause: err}
	var st saludo.StackTracer
	if errors.As(err, &st) {
		e.pcs = st.StackTrace()
	} else {
		e.pcs = saludo.CallersPCs(1)
	}
	return e
}

// AsError returns the first *Error in err's chain, or wraps err with an
// unset status. It returns nil for a nil error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	e = WrapError(0, err)
	e.pcs = saludo.CallersPCs(1)
	return e
}

// Error returns the message.
func (e *Error) Error() string { return e.Message }

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// StatusCode returns the status carried by the error.
func (e *Error) StatusCode() int { return e.Status }

// StackTrace returns the program counters captured at construction.
func (e *Error) StackTrace() []uintptr { return e.pcs }

// Stack returns the formatted stack trace headed by the message.
func (e *Error) Stack() string { return saludo.ErrorStack(e) }

// NotFound builds the error for a request no route matched. The message
// carries the original request URI, query string included.
func NotFound(r *stdhttp.Request) *Error {
	return &Error{
		Message: "Route not found - " + originalURL(r),
		Status:  stdhttp.StatusNotFound,
		pcs:     saludo.CallersPCs(1),
	}
}

// originalURL returns the request target as the client sent it.
func originalURL(r *stdhttp.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	if r.URL != nil {
		return r.URL.RequestURI()
	}
	return ""
}
