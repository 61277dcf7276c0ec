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

package saludo

import (
	"errors"
	"runtime"
	"strconv"
	"strings"
)

const maxStackFrames = 64

// StackTracer is implemented by errors that remember where they were created.
// It is compatible with errors produced by github.com/pkg/errors.
type StackTracer interface {
	StackTrace() []uintptr
}

// CallersPCs returns the program counters of the caller's stack, skipping
// skip frames above the caller of CallersPCs. Error types use it to record the
// point of construction cheaply and format the stack only when needed.
func CallersPCs(skip int) []uintptr {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(skip+2, pcs)
	return pcs[:n]
}

// ErrorStack returns the stack recorded by err (or an error it wraps),
// formatted like a Go panic trace and headed by the error message. It returns
// an empty string when no error in the chain implements [StackTracer].
func ErrorStack(err error) string {
	if err == nil {
		return ""
	}
	var st StackTracer
	if !errors.As(err, &st) {
		return ""
	}
	pcs := st.StackTrace()
	if len(pcs) == 0 {
		return ""
	}
	if len(pcs) > maxStackFrames {
		pcs = pcs[:maxStackFrames]
	}
	return withMessage(err.Error(), formatPCsToStackString(pcs))
}

// CaptureStack captures the current goroutine stack, trimming leading frames
// matched by skipFn (or [SkipInternalStackFrame] when nil). It returns the
// formatted stack and the first remaining frame.
func CaptureStack(skipFn func(string) bool) (string, runtime.Frame) {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(0, pcs)
	if n == 0 {
		return "", runtime.Frame{}
	}
	pcs = pcs[:n]

	if skipFn == nil {
		skipFn = SkipInternalStackFrame
	}
	trimmed := trimStackPCs(pcs, skipFn)
	if len(trimmed) == 0 {
		trimmed = pcs
	}

	top, _ := runtime.CallersFrames(trimmed).Next()
	return formatPCsToStackString(trimmed), top
}

// SkipInternalStackFrame reports whether a frame belongs to the runtime, slog,
// or this package and should be hidden from captured stacks.
func SkipInternalStackFrame(funcName string) bool {
	if funcName == "" {
		return false
	}
	if strings.HasPrefix(funcName, "runtime.") {
		return true
	}
	return strings.HasPrefix(funcName, "github.com/pjscruggs/saludo.") ||
		strings.HasPrefix(funcName, "log/slog.")
}

// withMessage prefixes a formatted trace with the error message, the layout
// panics and error reporting tools expect.
func withMessage(msg, stack string) string {
	if stack == "" {
		return ""
	}
	if msg == "" {
		return stack
	}
	return msg + "\n\n" + stack
}

// formatPCsToStackString renders program counters as a Go stack trace.
func formatPCsToStackString(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}

	header := currentGoroutineHeader()

	var sb strings.Builder
	sb.Grow(len(header) + 1 + len(pcs)*64)
	sb.WriteString(header)
	sb.WriteByte('\n')

	var intBuf [20]byte
	frames := runtime.CallersFrames(pcs)
	frameCount := 0

	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if frame.Function == "" || frame.Function == "runtime.goexit" {
			if !more {
				break
			}
			continue
		}

		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteByte(':')
		sb.Write(strconv.AppendInt(intBuf[:0], int64(frame.Line), 10))

		if frame.Entry != 0 && frame.PC > frame.Entry {
			sb.WriteString(" +0x")
			sb.Write(strconv.AppendUint(intBuf[:0], uint64(frame.PC-frame.Entry), 16))
		}
		sb.WriteByte('\n')

		frameCount++
		if !more || frameCount >= maxStackFrames {
			break
		}
	}

	return sb.String()
}

// trimStackPCs removes leading frames that match skipFn.
func trimStackPCs(pcs []uintptr, skipFn func(string) bool) []uintptr {
	frames := runtime.CallersFrames(pcs)
	skip := 0
	for {
		frame, more := frames.Next()
		if !skipFn(frame.Function) {
			break
		}
		skip++
		if !more {
			return nil
		}
	}
	return pcs[skip:]
}

// currentGoroutineHeader returns the goroutine header emitted by runtime.Stack.
func currentGoroutineHeader() string {
	const fallbackHeader = "goroutine 0 [running]:"

	var buf [128]byte
	n := runtime.Stack(buf[:], false)
	if n <= 0 {
		return fallbackHeader
	}
	header, _, _ := strings.Cut(string(buf[:n]), "\n")
	header = strings.TrimSpace(header)
	if header == "" {
		return fallbackHeader
	}
	return header
}
