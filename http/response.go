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
	"bytes"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
)

// MessageBody is the success response shape.
type MessageBody struct {
	Message string `json:"message"`
}

// ErrorBody is the error response shape. Stack is null in production mode.
type ErrorBody struct {
	Message string  `json:"message"`
	Stack   *string `json:"stack"`
}

// WriteJSON encodes v and writes it with status. Encoding happens before the
// header is written so an encoding failure can still become an error response.
func WriteJSON(w stdhttp.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write json response: %w", err)
	}
	return nil
}

// trackingWriter remembers whether the response has been committed, which
// the error stage needs to honour "one response per request".
type trackingWriter struct {
	stdhttp.ResponseWriter
	committed bool
}

// wrapTracking returns w when it already tracks commitment.
func wrapTracking(w stdhttp.ResponseWriter) *trackingWriter {
	if tw, ok := w.(*trackingWriter); ok {
		return tw
	}
	return &trackingWriter{ResponseWriter: w}
}

// WriteHeader marks the response committed.
func (tw *trackingWriter) WriteHeader(status int) {
	tw.committed = true
	tw.ResponseWriter.WriteHeader(status)
}

// Write marks the response committed.
func (tw *trackingWriter) Write(p []byte) (int, error) {
	tw.committed = true
	return tw.ResponseWriter.Write(p)
}

// Flush forwards to the wrapped writer when it supports flushing.
func (tw *trackingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(stdhttp.Flusher); ok {
		tw.committed = true
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (tw *trackingWriter) Unwrap() stdhttp.ResponseWriter {
	return tw.ResponseWriter
}

// Committed reports whether a status or body has been sent.
func (tw *trackingWriter) Committed() bool {
	return tw.committed
}

// committed reports whether w is known to have sent a response already.
func committed(w stdhttp.ResponseWriter) bool {
	c, ok := w.(interface{ Committed() bool })
	return ok && c.Committed()
}
