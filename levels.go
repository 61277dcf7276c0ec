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
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ErrInvalidLevel indicates a level string that ParseLevel does not recognise.
var ErrInvalidLevel = errors.New("saludo: invalid log level")

// ParseLevel converts textual levels into slog.Level values. It accepts the
// names used by the JSON records ("debug", "info", "warn", "error"), the
// common "warning" alias, and plain integers.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "":
		return 0, fmt.Errorf("%w: empty value", ErrInvalidLevel)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return slog.Level(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, raw)
}

// LevelName returns the lower-case name written to the `level` field of file
// records. Levels between the named ones keep slog's offset notation, for
// example "info+2".
func LevelName(l slog.Level) string {
	return strings.ToLower(l.String())
}
