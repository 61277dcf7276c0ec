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

package logasync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize    = 1024
	defaultFlushTimeout = 5 * time.Second

	envQueueSize    = "LOG_ASYNC_QUEUE_SIZE"
	envDropMode     = "LOG_ASYNC_DROP_MODE"
	envFlushTimeout = "LOG_ASYNC_FLUSH_TIMEOUT"
)

// DropMode controls how the handler behaves when the queue is full.
type DropMode int

const (
	// DropModeBlock blocks the caller until the worker frees a slot.
	DropModeBlock DropMode = iota
	// DropModeDropNewest discards the incoming record when the queue is full.
	DropModeDropNewest
)

// ErrFlushTimeout indicates Close returned before the queue was drained.
var ErrFlushTimeout = errors.New("logasync: flush timeout")

// DropHandler observes dropped records.
type DropHandler func(ctx context.Context, rec slog.Record)

// Config controls async handler behaviour.
type Config struct {
	QueueSize    int
	DropMode     DropMode
	OnDrop       DropHandler
	ErrorWriter  io.Writer
	FlushTimeout time.Duration
}

// Option customizes the async handler configuration.
type Option func(*Config)

// WithQueueSize adjusts the queue capacity. Zero yields an unbuffered queue.
func WithQueueSize(size int) Option {
	return func(cfg *Config) {
		cfg.QueueSize = size
	}
}

// WithDropMode sets the queue overflow strategy.
func WithDropMode(mode DropMode) Option {
	return func(cfg *Config) {
		cfg.DropMode = mode
	}
}

// WithOnDrop registers a callback invoked when a record is dropped.
func WithOnDrop(fn DropHandler) Option {
	return func(cfg *Config) {
		cfg.OnDrop = fn
	}
}

// WithErrorWriter directs worker errors and recovered panics to w. Use nil
// to silence them.
func WithErrorWriter(w io.Writer) Option {
	return func(cfg *Config) {
		cfg.ErrorWriter = w
	}
}

// WithFlushTimeout limits how long Close waits for the worker. Zero waits
// indefinitely.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		cfg.FlushTimeout = timeout
	}
}

// WithEnv overlays LOG_ASYNC_QUEUE_SIZE, LOG_ASYNC_DROP_MODE ("block" or
// "drop_newest") and LOG_ASYNC_FLUSH_TIMEOUT (a Go duration).
func WithEnv() Option {
	return func(cfg *Config) {
		applyEnv(cfg)
	}
}

// Handler is an async slog.Handler wrapper. Handlers derived through
// WithAttrs and WithGroup share the parent's queue and worker.
type Handler struct {
	inner    slog.Handler
	dropMode DropMode
	onDrop   DropHandler
	state    *queueState
}

type queueState struct {
	queue        chan queuedRecord
	done         chan struct{}
	closed       atomic.Bool
	mu           sync.RWMutex
	flushTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
	closer       func() error
	errWriter    io.Writer
}

type queuedRecord struct {
	ctx     context.Context
	rec     slog.Record
	handler slog.Handler
}

var _ slog.Handler = (*Handler)(nil)

// New wraps inner and starts its worker goroutine.
func New(inner slog.Handler, opts ...Option) *Handler {
	cfg := buildConfig(opts)
	state := &queueState{
		queue:        make(chan queuedRecord, cfg.QueueSize),
		done:         make(chan struct{}),
		flushTimeout: cfg.FlushTimeout,
		closer:       closerFor(inner),
		errWriter:    cfg.ErrorWriter,
	}
	go state.run()

	return &Handler{
		inner:    inner,
		dropMode: cfg.DropMode,
		onDrop:   cfg.OnDrop,
		state:    state,
	}
}

// run drains the queue until it is closed.
func (s *queueState) run() {
	defer close(s.done)
	for item := range s.queue {
		s.handle(item)
	}
}

// handle writes one record, reporting errors and panics from the inner handler.
func (s *queueState) handle(item queuedRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.reportf("logasync: recovered panic from handler: %v\n", r)
		}
	}()
	if err := item.handler.Handle(item.ctx, item.rec); err != nil {
		s.reportf("logasync: handler error: %v\n", err)
	}
}

// reportf writes a diagnostic line to the configured error writer.
func (s *queueState) reportf(format string, args ...any) {
	if s.errWriter == nil {
		return
	}
	_, _ = fmt.Fprintf(s.errWriter, format, args...)
}

// Enabled defers to the inner handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues a clone of rec. Records arriving after Close are dropped.
func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	item := queuedRecord{
		ctx:     context.WithoutCancel(ctx),
		rec:     rec.Clone(),
		handler: h.inner,
	}

	h.state.mu.RLock()
	defer h.state.mu.RUnlock()

	if h.state.closed.Load() {
		h.drop(item)
		return nil
	}

	if h.dropMode == DropModeDropNewest {
		select {
		case h.state.queue <- item:
		default:
			h.drop(item)
		}
		return nil
	}
	h.state.queue <- item
	return nil
}

// drop reports item to the drop callback.
func (h *Handler) drop(item queuedRecord) {
	if h.onDrop != nil {
		h.onDrop(item.ctx, item.rec)
	}
}

// WithAttrs returns a child handler sharing the same queue.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		inner:    h.inner.WithAttrs(attrs),
		dropMode: h.dropMode,
		onDrop:   h.onDrop,
		state:    h.state,
	}
}

// WithGroup returns a child handler sharing the same queue.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		inner:    h.inner.WithGroup(name),
		dropMode: h.dropMode,
		onDrop:   h.onDrop,
		state:    h.state,
	}
}

// Close stops accepting records, waits for the worker to drain the queue
// and then closes the inner handler when it exposes Close. It is idempotent.
func (h *Handler) Close() error {
	s := h.state
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.queue)
		s.mu.Unlock()

		if s.flushTimeout > 0 {
			select {
			case <-s.done:
			case <-time.After(s.flushTimeout):
				s.closeErr = ErrFlushTimeout
			}
		} else {
			<-s.done
		}

		if s.closer != nil {
			if err := s.closer(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// closerFor extracts a Close function from inner when available.
func closerFor(inner slog.Handler) func() error {
	if c, ok := inner.(interface{ Close() error }); ok {
		return c.Close
	}
	return nil
}

// buildConfig applies options over the defaults and clamps invalid values.
func buildConfig(opts []Option) Config {
	cfg := Config{
		QueueSize:    defaultQueueSize,
		DropMode:     DropModeBlock,
		ErrorWriter:  os.Stderr,
		FlushTimeout: defaultFlushTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.FlushTimeout < 0 {
		cfg.FlushTimeout = 0
	}
	return cfg
}

// applyEnv overlays configuration from environment variables. Invalid values
// are ignored.
func applyEnv(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(envQueueSize)); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			cfg.QueueSize = size
		}
	}
	if raw := strings.TrimSpace(os.Getenv(envDropMode)); raw != "" {
		switch strings.ToLower(raw) {
		case "block":
			cfg.DropMode = DropModeBlock
		case "drop_newest", "drop-newest":
			cfg.DropMode = DropModeDropNewest
		}
	}
	if raw := strings.TrimSpace(os.Getenv(envFlushTimeout)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.FlushTimeout = d
		}
	}
}
