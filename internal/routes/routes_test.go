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

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pjscruggs/saludo/http"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) records(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

// newTestServer mounts the routes behind the access log and error stage.
func newTestServer(t *testing.T, production bool, opts ...Option) (stdhttp.Handler, *lockedBuffer) {
	t.Helper()
	sink := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(sink, nil))
	eh := http.NewErrorHandler(logger, http.WithProduction(production))
	rt := http.NewRouter(eh)
	New(logger, opts...).Register(rt)
	return http.Chain(rt, http.AccessLog(logger)), sink
}

func get(h stdhttp.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodGet, target, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) http.ErrorBody {
	t.Helper()
	var body http.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body
}

// TestSaludo verifies the greeting response.
func TestSaludo(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, false)
	w := get(h, PathSaludo)

	if w.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type = %q", ct)
	}
	var body http.MessageBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != SaludoMessage {
		t.Fatalf("message = %q, want %q", body.Message, SaludoMessage)
	}
}

// TestRootRespondsNoContent verifies the root route logs and answers 204
// with an empty body instead of leaving the request open.
func TestRootRespondsNoContent(t *testing.T) {
	t.Parallel()

	h, sink := newTestServer(t, false)
	w := get(h, PathRoot)

	if w.Code != stdhttp.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("status = %d body = %q, want 204 and no body", w.Code, w.Body.String())
	}
	recs := sink.records(t)
	if len(recs) != 2 || !strings.HasPrefix(recs[0]["msg"].(string), "GET / - ") {
		t.Fatalf("records = %v, want route record then access record", recs)
	}
}

// TestSyncError verifies the synchronous failure in both modes and the
// order of its records.
func TestSyncError(t *testing.T) {
	t.Parallel()

	for _, production := range []bool{false, true} {
		h, sink := newTestServer(t, production)
		w := get(h, PathSyncError)

		if w.Code != stdhttp.StatusInternalServerError {
			t.Fatalf("production=%v: status = %d, want 500", production, w.Code)
		}
		body := decodeError(t, w)
		if body.Message != SyncErrorMessage {
			t.Fatalf("production=%v: message = %q", production, body.Message)
		}
		if production != (body.Stack == nil) {
			t.Fatalf("production=%v: stack = %v", production, body.Stack)
		}
		if !production && !strings.Contains(*body.Stack, "SyncError") {
			t.Fatalf("stack does not name the failing handler:\n%s", *body.Stack)
		}

		// Route warning, then the error record, then the access record. The
		// access log runs after the response, so the error record comes first.
		recs := sink.records(t)
		var levels []string
		for _, rec := range recs {
			levels = append(levels, rec["level"].(string))
		}
		if got, want := strings.Join(levels, ","), "WARN,ERROR,INFO"; got != want {
			t.Fatalf("production=%v: record levels = %s, want %s", production, got, want)
		}
	}
}

// TestAsyncErrorWaitsForDelay verifies the failure arrives after the default delay.
func TestAsyncErrorWaitsForDelay(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, false)
	start := time.Now()
	w := get(h, PathAsyncError)
	elapsed := time.Since(start)

	if elapsed < DefaultAsyncDelay {
		t.Fatalf("responded after %v, want at least %v", elapsed, DefaultAsyncDelay)
	}
	if w.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decodeError(t, w)
	if body.Message != AsyncErrorMessage {
		t.Fatalf("message = %q, want %q", body.Message, AsyncErrorMessage)
	}
	if body.Stack == nil {
		t.Fatalf("stack missing outside production")
	}
}

// TestAsyncErrorConfigurableDelay verifies WithAsyncDelay.
func TestAsyncErrorConfigurableDelay(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, true, WithAsyncDelay(5*time.Millisecond), WithAsyncDelay(-1))
	w := get(h, PathAsyncError)
	if w.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"message":" ¡UPSS: Algo salio mal de forma asincronica !","stack":null}` {
		t.Fatalf("body = %s", got)
	}
}

// TestAsyncErrorCanceled verifies a departed client stops the timer.
func TestAsyncErrorCanceled(t *testing.T) {
	t.Parallel()

	handlers := New(nil, WithAsyncDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(stdhttp.MethodGet, PathAsyncError, nil).WithContext(ctx)

	done := make(chan error, 1)
	go func() { done <- handlers.AsyncError(httptest.NewRecorder(), r) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled in chain", err)
		}
		if got := http.AsError(err).StatusCode(); got != StatusClientClosedRequest {
			t.Fatalf("status = %d, want %d", got, StatusClientClosedRequest)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("handler did not return after cancellation")
	}
}

// TestUnknownRoutesNotFound verifies unregistered targets and methods.
func TestUnknownRoutesNotFound(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, false)
	for _, target := range []string{"/api/inexistente", "/api/saludo/extra", "/api", "/favicon.ico?v=2"} {
		w := get(h, target)
		if w.Code != stdhttp.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, w.Code)
			continue
		}
		if msg := decodeError(t, w).Message; msg != "Route not found - "+target {
			t.Errorf("GET %s message = %q", target, msg)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodPost, PathSaludo, nil))
	if w.Code != stdhttp.StatusNotFound {
		t.Fatalf("POST %s status = %d, want 404", PathSaludo, w.Code)
	}
}

// TestRoutesMatchLeniently verifies mixed-case targets and a trailing slash
// reach the registered handlers.
func TestRoutesMatchLeniently(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, false)
	testCases := []struct {
		target string
		status int
	}{
		{"/api/saludo/", stdhttp.StatusOK},
		{"/API/Saludo", stdhttp.StatusOK},
		{"/Api/Saludo/?lang=es", stdhttp.StatusOK},
		{"/API/ERROR-SINCRONICO/", stdhttp.StatusInternalServerError},
		{"/api/saludo//", stdhttp.StatusNotFound},
	}
	for _, tc := range testCases {
		if w := get(h, tc.target); w.Code != tc.status {
			t.Errorf("GET %s status = %d, want %d", tc.target, w.Code, tc.status)
		}
	}
}

// TestFailAfterReturnsError verifies the timer path.
func TestFailAfterReturnsError(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	if got := failAfter(context.Background(), time.Millisecond, want); got != want {
		t.Fatalf("failAfter = %v, want %v", got, want)
	}
}
