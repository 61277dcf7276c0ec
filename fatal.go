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

package saludo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
)

// Kinds of fatal event recorded in the `kind` attribute.
const (
	FatalUncaughtException  = "uncaughtException"
	FatalUnhandledRejection = "unhandledRejection"
)

// FatalGuard turns events that escape request handling into a logged fatal
// event followed by process exit with status 1. Two events qualify: a panic
// that is not recovered by any request stage, and an error returned by a
// goroutine started with [FatalGuard.Go] that nobody observes.
//
// The process does not keep serving after either event.
type FatalGuard struct {
	logger *Logger
	exit   func(int)
	once   sync.Once
}

// FatalOption configures a FatalGuard.
type FatalOption func(*FatalGuard)

// WithExitFunc replaces os.Exit, which lets tests observe the exit code.
func WithExitFunc(exit func(int)) FatalOption {
	return func(g *FatalGuard) {
		if exit != nil {
			g.exit = exit
		}
	}
}

// NewFatalGuard returns a guard that reports through logger.
func NewFatalGuard(logger *Logger, opts ...FatalOption) *FatalGuard {
	g := &FatalGuard{logger: logger, exit: os.Exit}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Recover reports a panic in progress as an uncaught exception. It must be
// deferred directly:
//
//	defer guard.Recover()
func (g *FatalGuard) Recover() {
	if r := recover(); r != nil {
		g.Uncaught(r, string(debug.Stack()))
	}
}

// Go runs fn on a new goroutine. A panic in fn is an uncaught exception and
// a non-nil error is an unhandled rejection; both end the process.
func (g *FatalGuard) Go(fn func() error) {
	go func() {
		defer g.Recover()
		if err := fn(); err != nil {
			g.Unhandled(err)
		}
	}()
}

// Uncaught reports a recovered panic value with the stack of the panicking
// goroutine and exits.
func (g *FatalGuard) Uncaught(v any, stack string) {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("%v", v)
	}
	g.fail(FatalUncaughtException, "uncaught exception", err, withMessage(err.Error(), stack))
}

// Unhandled reports an unobserved asynchronous error and exits.
func (g *FatalGuard) Unhandled(err error) {
	if err == nil {
		return
	}
	stack := ErrorStack(err)
	if stack == "" {
		captured, _ := CaptureStack(nil)
		stack = withMessage(err.Error(), captured)
	}
	g.fail(FatalUnhandledRejection, "unhandled rejection", err, stack)
}

// fail writes the fatal record to the rejections sink and the main sinks,
// flushes the logger, and exits. Only the first event is reported.
func (g *FatalGuard) fail(kind, msg string, err error, stack string) {
	g.once.Do(func() {
		attrs := []slog.Attr{
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		}
		if stack != "" {
			attrs = append(attrs, slog.String(StackKey, stack))
		}
		if g.logger != nil {
			ctx := context.Background()
			g.logger.Fatal().LogAttrs(ctx, slog.LevelError, msg, attrs...)
			g.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
			if cerr := g.logger.Close(); cerr != nil {
				fmt.Fprintf(os.Stderr, "saludo: close logger: %v\n", cerr)
			}
		}
		g.exit(1)
	})
}
