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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestErrorAttrsUsesErrorStack verifies a recorded stack is preferred.
func TestErrorAttrsUsesErrorStack(t *testing.T) {
	t.Parallel()

	err := newTracedError("broken")
	attrs := ErrorAttrs(err)
	if len(attrs) != 1 || attrs[0].Key != StackKey {
		t.Fatalf("ErrorAttrs = %v, want a single stack attr", attrs)
	}
	if got, want := attrs[0].Value.String(), ErrorStack(err); got != want {
		t.Fatalf("stack = %q, want %q", got, want)
	}
}

// TestErrorAttrsCapturesStackForPlainErrors verifies a call-site stack is
// captured when the error carries none. Frames from this package are trimmed,
// so the trace starts at the test runner.
func TestErrorAttrsCapturesStackForPlainErrors(t *testing.T) {
	t.Parallel()

	attrs := ErrorAttrs(errors.New("plain"))
	if len(attrs) == 0 {
		t.Fatalf("ErrorAttrs returned no attributes")
	}
	stack := attrs[0].Value.String()
	if !strings.HasPrefix(stack, "plain\n\ngoroutine ") {
		t.Fatalf("stack prefix = %q", firstLines(stack, 3))
	}
	if strings.Contains(stack, "saludo.ErrorAttrs") {
		t.Fatalf("stack kept internal frames:\n%s", stack)
	}
	if !strings.Contains(stack, "testing.tRunner") {
		t.Fatalf("stack missing caller:\n%s", stack)
	}
}

// TestErrorAttrsServiceContext verifies the serviceContext group.
func TestErrorAttrsServiceContext(t *testing.T) {
	t.Parallel()

	attrs := ErrorAttrs(newTracedError("x"), WithServiceContext(" saludo ", "rev-1"))
	if len(attrs) != 2 {
		t.Fatalf("ErrorAttrs len = %d, want 2", len(attrs))
	}
	got := attrs[1]
	want := slog.Group("serviceContext", slog.String("service", "saludo"), slog.String("version", "rev-1"))
	if got.String() != want.String() {
		t.Fatalf("serviceContext = %s, want %s", got, want)
	}

	if attrs := ErrorAttrs(nil); attrs != nil {
		t.Fatalf("ErrorAttrs(nil) = %v, want nil", attrs)
	}
}

// TestReportError verifies the record level, message and attribute order.
func TestReportError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ReportError(context.Background(), logger, newTracedError("boom"), "request failed",
		[]slog.Attr{slog.Int("status", 500)})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	want := map[string]any{
		"level":  "ERROR",
		"msg":    "request failed",
		"status": float64(500),
	}
	got := map[string]any{
		"level":  entry["level"],
		"msg":    entry["msg"],
		"status": entry["status"],
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if stack, _ := entry[StackKey].(string); !strings.HasPrefix(stack, "boom\n\n") {
		t.Fatalf("stack = %q", stack)
	}

	buf.Reset()
	ReportError(context.Background(), logger, nil, "ignored", nil)
	ReportError(context.Background(), nil, errors.New("x"), "ignored", nil)
	if buf.Len() != 0 {
		t.Fatalf("nil inputs should not log: %s", buf.String())
	}
}
