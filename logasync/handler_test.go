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

package logasync

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recorder is a slog.Handler test double that keeps what it receives.
type recorder struct {
	mu       sync.Mutex
	msgs     []string
	block    <-chan struct{}
	err      error
	panics   atomic.Int32
	closed   atomic.Int32
	closeErr error
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	if r.block != nil {
		<-r.block
	}
	if r.panics.Load() > 0 {
		r.panics.Add(-1)
		panic("sink exploded")
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, rec.Message)
	r.mu.Unlock()
	return r.err
}

func (r *recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recorderView{parent: r, attrs: attrs}
}

func (r *recorder) WithGroup(string) slog.Handler { return r }

func (r *recorder) Close() error {
	r.closed.Add(1)
	return r.closeErr
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

// recorderView is a derived handler writing into its parent.
type recorderView struct {
	parent *recorder
	attrs  []slog.Attr
}

func (v *recorderView) Enabled(ctx context.Context, l slog.Level) bool {
	return v.parent.Enabled(ctx, l)
}

func (v *recorderView) Handle(ctx context.Context, rec slog.Record) error {
	rec = rec.Clone()
	rec.AddAttrs(v.attrs...)
	msg := rec.Message
	rec.Attrs(func(a slog.Attr) bool {
		msg += " " + a.String()
		return true
	})
	v.parent.mu.Lock()
	v.parent.msgs = append(v.parent.msgs, msg)
	v.parent.mu.Unlock()
	return nil
}

func (v *recorderView) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recorderView{parent: v.parent, attrs: append(append([]slog.Attr(nil), v.attrs...), attrs...)}
}

func (v *recorderView) WithGroup(string) slog.Handler { return v }

// TestHandlerFlushesOnClose verifies every queued record is written before
// Close returns and that the inner handler is closed.
func TestHandlerFlushesOnClose(t *testing.T) {
	t.Parallel()

	inner := &recorder{}
	h := New(inner, WithQueueSize(4))
	logger := slog.New(h)

	for i := range 20 {
		logger.Info("msg", slog.Int("i", i))
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(inner.messages()); got != 20 {
		t.Fatalf("inner received %d records, want 20", got)
	}
	if got := inner.closed.Load(); got != 1 {
		t.Fatalf("inner closed %d times, want 1", got)
	}
}

// TestHandlerDropNewestWhenFull verifies the overflow strategy and callback.
func TestHandlerDropNewestWhenFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	inner := &recorder{block: release}
	var dropped atomic.Int32
	h := New(inner,
		WithQueueSize(1),
		WithDropMode(DropModeDropNewest),
		WithOnDrop(func(context.Context, slog.Record) { dropped.Add(1) }),
	)
	logger := slog.New(h)

	// The worker holds one record while blocked and the queue holds one more,
	// so at least one of the remaining records has to be dropped.
	for range 5 {
		logger.Info("burst")
	}
	close(release)
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	written := len(inner.messages())
	if dropped.Load() == 0 {
		t.Fatalf("no records dropped")
	}
	if written+int(dropped.Load()) != 5 {
		t.Fatalf("written %d + dropped %d != 5", written, dropped.Load())
	}
}

// TestHandlerDropsAfterClose verifies late records reach the drop callback.
func TestHandlerDropsAfterClose(t *testing.T) {
	t.Parallel()

	inner := &recorder{}
	var dropped atomic.Int32
	h := New(inner, WithOnDrop(func(context.Context, slog.Record) { dropped.Add(1) }))
	_ = h.Close()

	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "late", 0)); err != nil {
		t.Fatalf("Handle after close: %v", err)
	}
	if dropped.Load() != 1 || len(inner.messages()) != 0 {
		t.Fatalf("late record: dropped=%d written=%v", dropped.Load(), inner.messages())
	}
}

// TestHandlerReportsWorkerFailures verifies errors and panics are reported
// and the worker keeps going.
func TestHandlerReportsWorkerFailures(t *testing.T) {
	t.Parallel()

	inner := &recorder{err: errors.New("write failed")}
	inner.panics.Store(1)
	var diag bytes.Buffer
	var mu sync.Mutex
	h := New(inner, WithErrorWriter(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return diag.Write(p)
	})))
	logger := slog.New(h)

	logger.Info("first")
	logger.Info("second")
	_ = h.Close()

	mu.Lock()
	out := diag.String()
	mu.Unlock()
	if !strings.Contains(out, "recovered panic from handler: sink exploded") {
		t.Fatalf("diagnostics %q missing panic report", out)
	}
	if !strings.Contains(out, "handler error: write failed") {
		t.Fatalf("diagnostics %q missing error report", out)
	}
	if got := inner.messages(); len(got) != 1 || got[0] != "second" {
		t.Fatalf("inner messages = %v, want [second]", got)
	}
}

// TestHandlerDerivedHandlersShareQueue verifies WithAttrs children are
// drained by the parent's Close.
func TestHandlerDerivedHandlersShareQueue(t *testing.T) {
	t.Parallel()

	inner := &recorder{}
	h := New(inner)
	slog.New(h).With("requestId", "abc").Info("child")
	slog.New(h).Info("parent")
	_ = h.Close()

	got := strings.Join(inner.messages(), "|")
	if !strings.Contains(got, "child requestId=abc") || !strings.Contains(got, "parent") {
		t.Fatalf("messages = %q", got)
	}
}

// TestCloseTimesOut verifies a stuck worker yields ErrFlushTimeout.
func TestCloseTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	h := New(&recorder{block: release}, WithFlushTimeout(20*time.Millisecond))
	slog.New(h).Info("stuck")

	if err := h.Close(); !errors.Is(err, ErrFlushTimeout) {
		t.Fatalf("Close error = %v, want ErrFlushTimeout", err)
	}
	if err := h.Close(); !errors.Is(err, ErrFlushTimeout) {
		t.Fatalf("second Close error = %v, want the first result", err)
	}
}

// TestClosePropagatesInnerCloseError verifies the inner Close error surfaces.
func TestClosePropagatesInnerCloseError(t *testing.T) {
	t.Parallel()

	boom := errors.New("close failed")
	h := New(&recorder{closeErr: boom})
	if err := h.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close error = %v, want %v", err, boom)
	}
}

// TestBuildConfigClampsInvalidValues verifies negative values fall back.
func TestBuildConfigClampsInvalidValues(t *testing.T) {
	t.Parallel()

	cfg := buildConfig([]Option{WithQueueSize(-1), WithFlushTimeout(-time.Second), nil})
	if cfg.QueueSize != defaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, defaultQueueSize)
	}
	if cfg.FlushTimeout != 0 {
		t.Errorf("FlushTimeout = %v, want 0", cfg.FlushTimeout)
	}
}

// TestWithEnvParsesValues verifies the LOG_ASYNC_* variables.
func TestWithEnvParsesValues(t *testing.T) {
	t.Setenv(envQueueSize, "16")
	t.Setenv(envDropMode, "DROP_NEWEST")
	t.Setenv(envFlushTimeout, "250ms")

	cfg := buildConfig([]Option{WithEnv()})
	if cfg.QueueSize != 16 || cfg.DropMode != DropModeDropNewest || cfg.FlushTimeout != 250*time.Millisecond {
		t.Fatalf("config = %+v", cfg)
	}

	t.Setenv(envQueueSize, "many")
	t.Setenv(envDropMode, "sideways")
	t.Setenv(envFlushTimeout, "soon")
	cfg = buildConfig([]Option{WithEnv()})
	if cfg.QueueSize != defaultQueueSize || cfg.DropMode != DropModeBlock || cfg.FlushTimeout != defaultFlushTimeout {
		t.Fatalf("invalid values changed config: %+v", cfg)
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
